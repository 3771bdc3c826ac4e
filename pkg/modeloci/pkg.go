// Package modeloci packages ML model directories into OCI-compliant tar
// archives, and unpacks and verifies such archives.
//
// The top level functions provided by the library are:
//
//	func NewPackager(opts ...PackagerOpt) - Returns a new Packager struct
//	func NewUnpackager()                  - Returns a new Unpackager struct
//
// Once you have a Packager, then:
//
//	func (p Packager) Package(sourceDir string, cfg types.ModelConfig)                 - Packages a model directory into a tar archive
//	func (p Packager) CreateManifest(cfg types.ModelConfig, layers []ocispec.Descriptor) - Builds a manifest from already-computed layers
//	func (p Packager) AddLayer(archivePath, filePath string)                           - Adds one file as a new layer blob to an existing archive
//
// And with an Unpackager:
//
//	func (u Unpackager) Unpack(archivePath, outputDir string) - Extracts an archive and returns its model config
//	func (u Unpackager) VerifyLayers(archivePath string)      - Recomputes and checks every layer digest against the manifest
//
// Operations are self-contained: no state is shared between calls, and
// concurrent calls against different archives are safe. Concurrent calls
// against the same archive path are not coordinated and may race on the
// archive file.
package modeloci
