package modeloci

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	tarutil "github.com/invincible-jha/aumai-modeloci/internal/tar"
	"github.com/invincible-jha/aumai-modeloci/internal/testhelpers"
	"github.com/invincible-jha/aumai-modeloci/internal/util"
	"github.com/invincible-jha/aumai-modeloci/pkg/modeloci/types"
)

func packSample(t *testing.T, files map[string]string) (string, types.ModelConfig) {
	t.Helper()
	d := t.TempDir()
	modelDir := filepath.Join(d, "model")
	if err := os.MkdirAll(modelDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := testhelpers.MakeModelDir(modelDir, files); err != nil {
		t.Fatal(err)
	}
	cfg := testhelpers.SampleConfig()
	archivePath, err := NewPackager().Package(modelDir, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return archivePath, cfg
}

func readManifest(t *testing.T, archivePath string) types.Manifest {
	t.Helper()
	data, err := tarutil.ReadEntry(archivePath, manifestFilename)
	if err != nil {
		t.Fatal(err)
	}
	var manifest types.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatal(err)
	}
	return manifest
}

func TestPackageReturnsTarPath(t *testing.T) {
	archivePath, cfg := packSample(t, map[string]string{"weights.bin": "wwww"})
	if !strings.HasSuffix(archivePath, ".tar") {
		t.Fatalf("archive path %q does not end in .tar", archivePath)
	}
	if _, err := os.Stat(archivePath); err != nil {
		t.Fatal(err)
	}
	name := filepath.Base(archivePath)
	if !strings.Contains(name, cfg.ModelName) || !strings.Contains(name, cfg.Version) {
		t.Fatalf("archive name %q missing model name or version", name)
	}
}

func TestArchiveContents(t *testing.T) {
	archivePath, _ := packSample(t, map[string]string{
		"weights.bin": "wwww",
		"labels.txt":  "cat\ndog\n",
	})
	names, err := tarutil.List(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	blobs := 0
	hasConfig := false
	hasManifest := false
	for _, name := range names {
		switch {
		case strings.HasPrefix(name, "blobs/sha256/"):
			blobs++
		case name == configFilename:
			hasConfig = true
		case name == manifestFilename:
			hasManifest = true
		}
	}
	if blobs != 2 || !hasConfig || !hasManifest {
		t.Fatalf("unexpected archive entries: %v", names)
	}
}

func TestLayerCountInvariant(t *testing.T) {
	layerCountTests := []struct {
		name  string
		files map[string]string
	}{
		{name: "empty", files: map[string]string{}},
		{name: "single", files: map[string]string{"a": "1"}},
		{name: "nested", files: map[string]string{
			"a":         "1",
			"sub/b":     "2",
			"sub/din/c": "3",
			"zed":       "4",
		}},
	}
	for _, tt := range layerCountTests {
		t.Run(tt.name, func(t *testing.T) {
			archivePath, _ := packSample(t, tt.files)
			manifest := readManifest(t, archivePath)
			if len(manifest.Layers) != len(tt.files) {
				t.Fatalf("manifest has %d layers, want %d", len(manifest.Layers), len(tt.files))
			}
			if manifest.SchemaVersion != 2 {
				t.Fatalf("schema version %d", manifest.SchemaVersion)
			}
		})
	}
}

// TestExampleScenario packages a.bin and sub/b.txt and checks layer order
// (lexicographic by relative path), titles, and the config descriptor.
func TestExampleScenario(t *testing.T) {
	archivePath, cfg := packSample(t, map[string]string{
		"a.bin":     "pqrs",
		"sub/b.txt": "hello world\n",
	})
	manifest := readManifest(t, archivePath)
	if len(manifest.Layers) != 2 {
		t.Fatalf("got %d layers", len(manifest.Layers))
	}
	if title := manifest.Layers[0].Annotations[ocispec.AnnotationTitle]; title != "a.bin" {
		t.Fatalf("layers[0] title %q", title)
	}
	if title := manifest.Layers[1].Annotations[ocispec.AnnotationTitle]; title != "sub/b.txt" {
		t.Fatalf("layers[1] title %q", title)
	}
	for _, layer := range manifest.Layers {
		if layer.MediaType != ocispec.MediaTypeImageLayerGzip {
			t.Fatalf("layer media type %q", layer.MediaType)
		}
	}

	cfgBytes, err := marshalConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if manifest.Config.Digest != digest.FromBytes(cfgBytes) {
		t.Fatal("config descriptor digest does not match a fresh hash of the serialized config")
	}
	if manifest.Config.Size != int64(len(cfgBytes)) {
		t.Fatalf("config descriptor size %d, want %d", manifest.Config.Size, len(cfgBytes))
	}
	stored, err := tarutil.ReadEntry(archivePath, configFilename)
	if err != nil {
		t.Fatal(err)
	}
	if manifest.Config.Digest != digest.FromBytes(stored) {
		t.Fatal("config descriptor digest does not match the stored config.json")
	}
}

// TestDigestCorrectness recomputes the hash of every stored blob and checks
// it against the manifest, then gunzips one blob and checks the packaged
// file round-trips byte for byte.
func TestDigestCorrectness(t *testing.T) {
	content := "some model weights"
	archivePath, _ := packSample(t, map[string]string{"weights.bin": content})
	manifest := readManifest(t, archivePath)
	if len(manifest.Layers) != 1 {
		t.Fatalf("got %d layers", len(manifest.Layers))
	}
	layer := manifest.Layers[0]
	blob, err := tarutil.ReadEntry(archivePath, util.BlobPath(layer.Digest))
	if err != nil {
		t.Fatal(err)
	}
	if digest.FromBytes(blob) != layer.Digest {
		t.Fatal("stored blob does not hash to the manifest digest")
	}
	if int64(len(blob)) != layer.Size {
		t.Fatalf("blob is %d bytes, manifest says %d", len(blob), layer.Size)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		t.Fatal(err)
	}
	tr := tar.NewReader(gzr)
	header, err := tr.Next()
	if err != nil {
		t.Fatal(err)
	}
	if header.Name != "weights.bin" {
		t.Fatalf("blob entry named %q", header.Name)
	}
	extracted, err := io.ReadAll(tr)
	if err != nil {
		t.Fatal(err)
	}
	if string(extracted) != content {
		t.Fatalf("blob content %q", extracted)
	}
	if _, err := tr.Next(); err != io.EOF {
		t.Fatal("blob contains more than one entry")
	}
}

func TestDeterminism(t *testing.T) {
	d := t.TempDir()
	modelDir := filepath.Join(d, "model")
	files := map[string]string{"a.bin": "aaaa", "sub/b.txt": "bbbb"}
	if err := os.MkdirAll(modelDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := testhelpers.MakeModelDir(modelDir, files); err != nil {
		t.Fatal(err)
	}
	cfg := testhelpers.SampleConfig()
	p := NewPackager()

	archivePath, err := p.Package(modelDir, cfg)
	if err != nil {
		t.Fatal(err)
	}
	first := readManifest(t, archivePath)
	if _, err := p.Package(modelDir, cfg); err != nil {
		t.Fatal(err)
	}
	second := readManifest(t, archivePath)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repacking the same content produced a different manifest:\n%s", diff)
	}
}

func TestPackageNotADirectory(t *testing.T) {
	d := t.TempDir()
	file := filepath.Join(d, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := testhelpers.SampleConfig()
	if _, err := NewPackager().Package(file, cfg); !errors.Is(err, ErrNotADirectory) {
		t.Fatalf("packaging a regular file: got %v", err)
	}
	if _, err := NewPackager().Package(filepath.Join(d, "missing"), cfg); !errors.Is(err, ErrNotADirectory) {
		t.Fatalf("packaging a missing path: got %v", err)
	}
}

func TestCreateManifest(t *testing.T) {
	cfg := testhelpers.SampleConfig()
	layers := []ocispec.Descriptor{
		types.NewLayerDescriptor(digest.FromString("blob one"), 8, "one.bin"),
		types.NewLayerDescriptor(digest.FromString("blob two"), 9, "two.bin"),
	}
	manifest, err := NewPackager().CreateManifest(cfg, layers)
	if err != nil {
		t.Fatal(err)
	}
	if manifest.SchemaVersion != 2 {
		t.Fatalf("schema version %d", manifest.SchemaVersion)
	}
	if manifest.MediaType != ocispec.MediaTypeImageManifest {
		t.Fatalf("media type %q", manifest.MediaType)
	}
	if manifest.Config.MediaType != ocispec.MediaTypeImageConfig {
		t.Fatalf("config media type %q", manifest.Config.MediaType)
	}
	if len(manifest.Layers) != 2 || manifest.Layers[0].Digest != layers[0].Digest {
		t.Fatal("layer descriptors not carried through in order")
	}
	cfgBytes, err := marshalConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if manifest.Config.Digest != digest.FromBytes(cfgBytes) || manifest.Config.Size != int64(len(cfgBytes)) {
		t.Fatal("config descriptor does not match the canonical config serialization")
	}
}

func TestAddLayer(t *testing.T) {
	archivePath, _ := packSample(t, map[string]string{"weights.bin": "wwww"})
	manifestBefore, err := tarutil.ReadEntry(archivePath, manifestFilename)
	if err != nil {
		t.Fatal(err)
	}

	d := t.TempDir()
	extra := filepath.Join(d, "extra.bin")
	if err := os.WriteFile(extra, []byte("extra layer data"), 0644); err != nil {
		t.Fatal(err)
	}
	desc, err := NewPackager().AddLayer(archivePath, extra)
	if err != nil {
		t.Fatal(err)
	}
	if desc.Annotations[ocispec.AnnotationTitle] != "extra.bin" {
		t.Fatalf("descriptor title %q", desc.Annotations[ocispec.AnnotationTitle])
	}

	blob, err := tarutil.ReadEntry(archivePath, util.BlobPath(desc.Digest))
	if err != nil {
		t.Fatal(err)
	}
	if digest.FromBytes(blob) != desc.Digest {
		t.Fatal("appended blob does not hash to the returned digest")
	}
	if int64(len(blob)) != desc.Size {
		t.Fatalf("appended blob is %d bytes, descriptor says %d", len(blob), desc.Size)
	}

	// AddLayer is a low-level primitive: the manifest must be untouched
	manifestAfter, err := tarutil.ReadEntry(archivePath, manifestFilename)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(manifestBefore, manifestAfter) {
		t.Fatal("AddLayer modified manifest.json")
	}
}

func TestAddLayerMissingFile(t *testing.T) {
	archivePath, _ := packSample(t, map[string]string{"weights.bin": "wwww"})
	if _, err := NewPackager().AddLayer(archivePath, "/nonexistent"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("got %v", err)
	}
}

// Two files with identical content still get distinct layers: the blob
// wraps the file in a tar entry named by its relative path, so the blobs
// (and digests) differ.
func TestIdenticalContentDistinctLayers(t *testing.T) {
	archivePath, _ := packSample(t, map[string]string{
		"copy1.bin": "same bytes",
		"copy2.bin": "same bytes",
	})
	manifest := readManifest(t, archivePath)
	if len(manifest.Layers) != 2 {
		t.Fatalf("got %d layers", len(manifest.Layers))
	}
	if manifest.Layers[0].Digest == manifest.Layers[1].Digest {
		t.Fatal("layers with different titles produced the same blob digest")
	}
}
