package types

import (
	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ModelConfig carries the user-supplied packaging intent for a model. It is
// serialized verbatim into the archive as 'config.json' and also digested to
// form the manifest's config descriptor. The Metadata map is free-form: the
// package round-trips whatever JSON-representable values the caller puts in
// it without interpreting them.
type ModelConfig struct {
	ModelName    string         `json:"model_name"`
	Version      string         `json:"version"`
	Framework    string         `json:"framework"`
	Architecture string         `json:"architecture"`
	Metadata     map[string]any `json:"metadata"`
}

// Manifest is an OCI image manifest (schema version 2) describing a packaged
// model: one config descriptor plus one layer descriptor per packaged file,
// in the order the files were discovered. Layer and config descriptors are
// the standard OCI descriptor struct so the manifest marshals exactly like
// the manifests produced by other OCI tooling.
type Manifest struct {
	specs.Versioned
	MediaType string               `json:"mediaType"`
	Config    ocispec.Descriptor   `json:"config"`
	Layers    []ocispec.Descriptor `json:"layers"`
}

// NewManifest returns a Manifest for the passed config descriptor and layer
// descriptors with the schema version and media type that this package
// produces.
func NewManifest(config ocispec.Descriptor, layers []ocispec.Descriptor) Manifest {
	if layers == nil {
		layers = []ocispec.Descriptor{}
	}
	return Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageManifest,
		Config:    config,
		Layers:    layers,
	}
}

// NewLayerDescriptor returns an OCI descriptor for a layer blob with the
// passed digest and size. The 'title' arg is the packaged file's original
// relative path and is recorded under the standard OCI title annotation for
// display and traceability.
func NewLayerDescriptor(dgst digest.Digest, size int64, title string) ocispec.Descriptor {
	return ocispec.Descriptor{
		MediaType:   ocispec.MediaTypeImageLayerGzip,
		Digest:      dgst,
		Size:        size,
		Annotations: map[string]string{ocispec.AnnotationTitle: title},
	}
}

// LayerVerification is the verification result for a single manifest layer.
// Valid is true only when a blob was found in the archive at the layer's
// content-addressed path and its recomputed digest exactly matched Digest.
type LayerVerification struct {
	Digest digest.Digest
	Valid  bool
}
