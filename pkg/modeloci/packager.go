package modeloci

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	tarutil "github.com/invincible-jha/aumai-modeloci/internal/tar"
	"github.com/invincible-jha/aumai-modeloci/internal/util"
	"github.com/invincible-jha/aumai-modeloci/pkg/modeloci/types"
)

const (
	manifestFilename = "manifest.json"
	configFilename   = "config.json"
)

// PackagerOpts defines the configurable behaviors of the packager.
type PackagerOpts struct {
	// CompressionLevel is the gzip level used for layer blobs. Defaults
	// to gzip.DefaultCompression.
	CompressionLevel int
}

// PackagerOpt supports creating a Packager with variadic args.
type PackagerOpt func(*PackagerOpts)

// WithCompressionLevel sets the gzip compression level for layer blobs.
func WithCompressionLevel(level int) PackagerOpt {
	return func(o *PackagerOpts) {
		o.CompressionLevel = level
	}
}

// Packager packages a model directory into an OCI-compliant tar archive:
// one content-addressed gzipped layer blob per file, a config, and a
// manifest tying them together.
type Packager struct {
	opts PackagerOpts
}

// NewPackager creates a Packager with any additional options from the opts
// variadic list. Example:
//
//	p := modeloci.NewPackager(modeloci.WithCompressionLevel(gzip.BestSpeed))
func NewPackager(opts ...PackagerOpt) Packager {
	o := PackagerOpts{
		CompressionLevel: gzip.DefaultCompression,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return Packager{opts: o}
}

// Package creates an OCI-compliant tar archive from the model files under
// 'sourceDir' and returns the path of the created archive. The archive is
// named '<model_name>-<version>.tar' and placed alongside the source
// directory. Archive layout:
//
//	blobs/sha256/<hex>      layer blobs, one per model file
//	config.json             serialized ModelConfig
//	manifest.json           serialized Manifest
//
// Files are discovered recursively and packaged in lexicographic order of
// their relative paths. An empty directory yields a valid archive with zero
// layers. Returns ErrNotADirectory if 'sourceDir' does not exist or is not
// a directory.
func (p Packager) Package(sourceDir string, cfg types.ModelConfig) (string, error) {
	info, err := os.Stat(sourceDir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %q", ErrNotADirectory, sourceDir)
	}
	sourceDir = filepath.Clean(sourceDir)
	outPath := filepath.Join(filepath.Dir(sourceDir), fmt.Sprintf("%s-%s.tar", cfg.ModelName, cfg.Version))

	tmp, err := os.MkdirTemp("", "modeloci-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)
	blobsDir := filepath.Join(tmp, util.BlobsDir, digest.Canonical.String())
	if err := os.MkdirAll(blobsDir, 0755); err != nil {
		return "", err
	}

	relPaths, err := discoverFiles(sourceDir)
	if err != nil {
		return "", err
	}
	layers := make([]ocispec.Descriptor, 0, len(relPaths))
	for _, relPath := range relPaths {
		desc, err := createLayerBlob(filepath.Join(sourceDir, filepath.FromSlash(relPath)), blobsDir, relPath, p.opts.CompressionLevel)
		if err != nil {
			return "", err
		}
		layers = append(layers, desc)
	}

	cfgBytes, err := marshalConfig(cfg)
	if err != nil {
		return "", err
	}
	manifest, err := p.CreateManifest(cfg, layers)
	if err != nil {
		return "", err
	}
	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", err
	}

	if err := writeArchive(outPath, blobsDir, layers, cfgBytes, manifestBytes); err != nil {
		os.Remove(outPath)
		return "", err
	}
	return outPath, nil
}

// CreateManifest builds a Manifest from the passed config and
// already-computed layer descriptors. It is a pure function: callers that
// computed layers out-of-band (for example via AddLayer) can assemble a
// manifest without re-walking a directory. The config descriptor's digest
// and size are computed over the same serialization that Package stores as
// config.json.
func (p Packager) CreateManifest(cfg types.ModelConfig, layers []ocispec.Descriptor) (types.Manifest, error) {
	cfgBytes, err := marshalConfig(cfg)
	if err != nil {
		return types.Manifest{}, err
	}
	configDesc := ocispec.Descriptor{
		MediaType: ocispec.MediaTypeImageConfig,
		Digest:    digest.FromBytes(cfgBytes),
		Size:      int64(len(cfgBytes)),
	}
	return types.NewManifest(configDesc, layers), nil
}

// AddLayer creates a layer blob from the file at 'filePath' and appends it
// to the blob storage of the archive at 'archivePath', returning the new
// layer's descriptor. The blob's internal tar entry is named by the bare
// filename. Returns ErrFileNotFound if 'filePath' does not exist or is not
// a regular file.
//
// AddLayer is a low-level primitive: it does NOT update the archive's
// manifest.json, which afterwards no longer lists every blob. Callers that
// need a consistent manifest must fold the returned descriptor into a
// manifest rebuilt with CreateManifest and replace the archive's copy.
func (p Packager) AddLayer(archivePath, filePath string) (ocispec.Descriptor, error) {
	info, err := os.Stat(filePath)
	if err != nil || !info.Mode().IsRegular() {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %q", ErrFileNotFound, filePath)
	}
	if _, err := os.Stat(archivePath); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: archive %q", ErrFileNotFound, archivePath)
	}
	tmp, err := os.MkdirTemp("", "modeloci-")
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	defer os.RemoveAll(tmp)

	desc, err := createLayerBlob(filePath, tmp, filepath.Base(filePath), p.opts.CompressionLevel)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	blobFile := filepath.Join(tmp, desc.Digest.Encoded())
	if err := tarutil.Append(archivePath, util.BlobPath(desc.Digest), blobFile); err != nil {
		return ocispec.Descriptor{}, err
	}
	return desc, nil
}

// discoverFiles returns the slash-separated relative paths of every regular
// file under 'sourceDir', recursively, sorted lexicographically by full
// relative path. Sorting the collected paths (rather than relying on walk
// order) keeps 'a.c' before 'a/b'.
func discoverFiles(sourceDir string) ([]string, error) {
	relPaths := []string{}
	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		relPath, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		relPaths = append(relPaths, filepath.ToSlash(relPath))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(relPaths)
	return relPaths, nil
}

// createLayerBlob wraps the single file at 'filePath' in a gzip-compressed
// tar holding exactly one entry named 'title', and writes the result into
// 'blobsDir' with the blob's bare hex digest as the file name. The digest
// is computed over the compressed bytes - what is stored, not the original
// file - so a stored blob can be verified without the source file.
func createLayerBlob(filePath, blobsDir, title string, level int) (ocispec.Descriptor, error) {
	src, err := os.Open(filePath)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	blob, err := os.CreateTemp(blobsDir, ".layer-*")
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	defer blob.Close()

	digester := digest.Canonical.Digester()
	gzw, err := gzip.NewWriterLevel(io.MultiWriter(blob, digester.Hash()), level)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	tw := tar.NewWriter(gzw)
	header, err := tar.FileInfoHeader(info, info.Name())
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	header.Name = title
	if err := tw.WriteHeader(header); err != nil {
		return ocispec.Descriptor{}, err
	}
	if _, err := io.Copy(tw, src); err != nil {
		return ocispec.Descriptor{}, err
	}
	if err := tw.Close(); err != nil {
		return ocispec.Descriptor{}, err
	}
	if err := gzw.Close(); err != nil {
		return ocispec.Descriptor{}, err
	}

	written, err := blob.Stat()
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	dgst := digester.Digest()
	if err := os.Rename(blob.Name(), filepath.Join(blobsDir, dgst.Encoded())); err != nil {
		return ocispec.Descriptor{}, err
	}
	return types.NewLayerDescriptor(dgst, written.Size(), title), nil
}

// writeArchive assembles the output tar from the staged blobs plus the
// serialized config and manifest. Identical files produce identical blobs;
// a shared blob is stored once even when several layers reference it.
func writeArchive(outPath, blobsDir string, layers []ocispec.Descriptor, cfgBytes, manifestBytes []byte) error {
	w, err := tarutil.NewWriter(outPath)
	if err != nil {
		return err
	}
	added := map[string]bool{}
	for _, desc := range layers {
		name := util.BlobPath(desc.Digest)
		if added[name] {
			continue
		}
		added[name] = true
		if err := w.AddFile(name, filepath.Join(blobsDir, desc.Digest.Encoded())); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.AddBytes(configFilename, cfgBytes); err != nil {
		w.Close()
		return err
	}
	if err := w.AddBytes(manifestFilename, manifestBytes); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// marshalConfig is the one serialization of ModelConfig used everywhere: it
// produces the bytes stored as config.json and the bytes the manifest's
// config descriptor is digested over, so the descriptor always matches the
// stored file.
func marshalConfig(cfg types.ModelConfig) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}
