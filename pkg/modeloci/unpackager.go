package modeloci

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	tarutil "github.com/invincible-jha/aumai-modeloci/internal/tar"
	"github.com/invincible-jha/aumai-modeloci/internal/util"
	"github.com/invincible-jha/aumai-modeloci/pkg/modeloci/types"
)

// Unpackager extracts model archives and verifies layer integrity.
type Unpackager struct{}

// NewUnpackager returns a new Unpackager.
func NewUnpackager() Unpackager {
	return Unpackager{}
}

// Unpack extracts the archive at 'archivePath' into 'outputDir', creating
// the directory (and any missing parents) if absent. The archive's internal
// path structure is preserved, so 'blobs/...', 'config.json' and
// 'manifest.json' all land under 'outputDir'. Entries that would escape the
// output directory are rejected. Returns the parsed ModelConfig from the
// extracted config.json, or ErrFileNotFound if the archive contains none.
func (u Unpackager) Unpack(archivePath, outputDir string) (types.ModelConfig, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return types.ModelConfig{}, err
	}
	if err := tarutil.Extract(archivePath, outputDir); err != nil {
		return types.ModelConfig{}, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}
	data, err := os.ReadFile(filepath.Join(outputDir, configFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return types.ModelConfig{}, fmt.Errorf("%w: config.json not found in archive %q", ErrFileNotFound, archivePath)
	} else if err != nil {
		return types.ModelConfig{}, err
	}
	var cfg types.ModelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return types.ModelConfig{}, fmt.Errorf("%w: parsing config.json: %v", ErrMalformedArchive, err)
	}
	return cfg, nil
}

// VerifyLayers recomputes the digest of every layer blob in the archive and
// compares it to the digest recorded in the manifest. Nothing is extracted
// to disk; blobs are digested streaming from the archive. The result has
// one entry per manifest layer, in manifest order. A layer whose blob is
// missing from the archive, unreadable, or digest-mismatched is reported
// with Valid false; the scan always covers every layer. Returns
// ErrFileNotFound if the archive contains no manifest.json.
//
// This is the archive's sole integrity mechanism: it detects truncation,
// corruption or tampering of any individual blob without needing the
// original source files.
func (u Unpackager) VerifyLayers(archivePath string) ([]types.LayerVerification, error) {
	manifestBytes, err := tarutil.ReadEntry(archivePath, manifestFilename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: manifest.json not found in archive %q", ErrFileNotFound, archivePath)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}
	var manifest types.Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest.json: %v", ErrMalformedArchive, err)
	}

	// One sequential pass over the archive digesting every blob entry.
	// Manifest order and archive order are independent, so results are
	// assembled from this map afterwards.
	blobDigests := map[string]digest.Digest{}
	err = tarutil.Walk(archivePath, func(header *tar.Header, r io.Reader) error {
		if header.Typeflag != tar.TypeReg || !strings.HasPrefix(header.Name, util.BlobsDir+"/") {
			return nil
		}
		digester := digest.Canonical.Digester()
		if _, err := io.Copy(digester.Hash(), r); err != nil {
			// unreadable blob: leave it out of the map so the layer
			// is reported invalid rather than aborting the scan
			return nil
		}
		blobDigests[header.Name] = digester.Digest()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	results := make([]types.LayerVerification, 0, len(manifest.Layers))
	for _, layer := range manifest.Layers {
		lv := types.LayerVerification{Digest: layer.Digest}
		if layer.Digest.Validate() == nil {
			actual, ok := blobDigests[util.BlobPath(layer.Digest)]
			lv.Valid = ok && actual == layer.Digest
		}
		results = append(results, lv)
	}
	return results, nil
}
