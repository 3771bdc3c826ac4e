package tar

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrStopWalk can be returned by a Walk callback to stop the walk early
// without Walk reporting an error.
var ErrStopWalk = errors.New("stop walk")

// Writer writes entries into a tar archive. Entry names are slash-separated
// paths inside the archive and are independent of the on-disk location of
// the files being added.
type Writer struct {
	file *os.File
	tw   *tar.Writer
}

// NewWriter creates the archive file at 'tarfile' (truncating any existing
// file) and returns a Writer for it.
func NewWriter(tarfile string) (*Writer, error) {
	file, err := os.Create(tarfile)
	if err != nil {
		return nil, err
	}
	return &Writer{
		file: file,
		tw:   tar.NewWriter(file),
	}, nil
}

// AddFile adds the file identified by 'actualFile' to the archive under the
// entry name 'name'. The entry name can differ from the file name on the
// file system.
func (w *Writer) AddFile(name, actualFile string) error {
	file, err := os.Open(actualFile)
	if err != nil {
		return err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return err
	}
	header, err := tar.FileInfoHeader(info, info.Name())
	if err != nil {
		return err
	}
	header.Name = name
	if err := w.tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(w.tw, file)
	return err
}

// AddBytes adds the passed bytes to the archive as though they were a file.
// When you untar the archive the extracted entry behaves like any other
// file. The intended use case is writing serialized metadata (a manifest or
// config) without staging it on disk.
func (w *Writer) AddBytes(name string, content []byte) error {
	header := tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     int64(len(content)),
		Mode:     436,
		ModTime:  time.Now(),
	}
	if err := w.tw.WriteHeader(&header); err != nil {
		return err
	}
	_, err := io.Copy(w.tw, bytes.NewReader(content))
	return err
}

// Close flushes and closes the archive. The Writer cannot be used after
// Close returns.
func (w *Writer) Close() error {
	if err := w.tw.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// Walk reads the archive sequentially, calling 'fn' once per entry with the
// entry header and a reader positioned at the entry content. The reader is
// only valid for the duration of the callback. Returning ErrStopWalk from
// the callback stops the walk without error.
func Walk(tarfile string, fn func(header *tar.Header, r io.Reader) error) error {
	file, err := os.Open(tarfile)
	if err != nil {
		return err
	}
	defer file.Close()
	tr := tar.NewReader(file)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading archive %q: %w", tarfile, err)
		}
		if err := fn(header, tr); err != nil {
			if err == ErrStopWalk {
				return nil
			}
			return err
		}
	}
}

// List returns the names of all entries in the archive in archive order.
func List(tarfile string) ([]string, error) {
	names := []string{}
	err := Walk(tarfile, func(header *tar.Header, r io.Reader) error {
		names = append(names, header.Name)
		return nil
	})
	return names, err
}

// ReadEntry returns the content of the named regular-file entry. If the
// archive has no such entry the returned error wraps fs.ErrNotExist so
// callers can distinguish a missing entry from an unreadable archive.
func ReadEntry(tarfile, name string) ([]byte, error) {
	var content []byte
	found := false
	err := Walk(tarfile, func(header *tar.Header, r io.Reader) error {
		if header.Name != name || header.Typeflag != tar.TypeReg {
			return nil
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		content = data
		found = true
		return ErrStopWalk
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("entry %q in archive %q: %w", name, tarfile, fs.ErrNotExist)
	}
	return content, nil
}

// Append adds the file identified by 'srcFile' to an existing archive under
// the entry name 'name'. Go's archive/tar cannot extend a finished tar in
// place, so the archive is rewritten through a temp file in the same
// directory and atomically renamed over the original.
func Append(tarfile, name, srcFile string) error {
	tmp, err := os.CreateTemp(filepath.Dir(tarfile), ".append-*.tar")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	tw := tar.NewWriter(tmp)

	copyEntry := func(header *tar.Header, r io.Reader) error {
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		_, err := io.Copy(tw, r)
		return err
	}
	if err := Walk(tarfile, copyEntry); err != nil {
		tmp.Close()
		return err
	}

	w := Writer{file: tmp, tw: tw}
	if err := w.AddFile(name, srcFile); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), tarfile)
}

// Extract extracts every entry of the archive into 'destDir', preserving
// the archive's internal path structure. Entry names that would resolve
// outside 'destDir' (absolute paths or parent-directory traversal) cause an
// error: archives are treated as untrusted input. Entry types other than
// regular files and directories are skipped.
func Extract(tarfile, destDir string) error {
	return Walk(tarfile, func(header *tar.Header, r io.Reader) error {
		name := filepath.FromSlash(header.Name)
		if name == "" || name == "." {
			return nil
		}
		if !filepath.IsLocal(name) {
			return fmt.Errorf("archive %q: entry %q escapes extraction root", tarfile, header.Name)
		}
		target := filepath.Join(destDir, name)
		switch header.Typeflag {
		case tar.TypeDir:
			return os.MkdirAll(target, 0755)
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				return err
			}
			if _, err := io.Copy(file, r); err != nil {
				file.Close()
				return err
			}
			return file.Close()
		}
		return nil
	})
}
