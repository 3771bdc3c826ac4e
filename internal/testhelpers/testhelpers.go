// Package testhelpers has shared fixtures for tests in this module.
package testhelpers

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/invincible-jha/aumai-modeloci/pkg/modeloci/types"
)

// MakeDigest generates a random digest
func MakeDigest() string {
	foo := fmt.Sprintf("%d", rand.Uint64())
	return digest.FromBytes([]byte(foo)).Encoded()
}

// MakeModelDir creates a directory tree under 'root' from a map of
// slash-separated relative paths to file contents, creating parent
// directories as needed.
func MakeModelDir(root string, files map[string]string) error {
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

// SampleConfig returns a config like the ones the CLI builds, with a small
// free-form metadata map.
func SampleConfig() types.ModelConfig {
	return types.ModelConfig{
		ModelName:    "test-model",
		Version:      "1.0.0",
		Framework:    "pytorch",
		Architecture: "transformer",
		Metadata:     map[string]any{"author": "test"},
	}
}
