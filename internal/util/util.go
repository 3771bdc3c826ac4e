package util

import (
	"path"

	"github.com/opencontainers/go-digest"
)

// BlobsDir is the directory inside a model archive that holds the
// content-addressed blobs, one subdirectory per digest algorithm.
const BlobsDir = "blobs"

// BlobPath returns the content-addressed archive path for a blob with the
// passed digest, like 'blobs/sha256/<hex>'. The blob file name is the bare
// hex digest with no extension.
func BlobPath(dgst digest.Digest) string {
	return path.Join(BlobsDir, dgst.Algorithm().String(), dgst.Encoded())
}
