package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/invincible-jha/aumai-modeloci/pkg/modeloci"
	"github.com/invincible-jha/aumai-modeloci/pkg/modeloci/types"
)

// runPack handles the 'pack' subcommand: it assembles a ModelConfig from
// the command line and packages the model directory.
func runPack(args []string) error {
	fs := pflag.NewFlagSet("pack", pflag.ContinueOnError)
	modelDir := fs.String("model-dir", "", "directory containing the model files")
	name := fs.String("name", "", "model name")
	version := fs.String("version", "", "model version")
	framework := fs.String("framework", "pytorch", "ML framework (e.g. pytorch, tensorflow, onnx)")
	architecture := fs.String("architecture", "transformer", "model architecture description")
	metadataJSON := fs.String("metadata", "", "extra metadata as a JSON string")
	metadataFile := fs.String("metadata-file", "", "extra metadata from a YAML or JSON file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelDir == "" || *name == "" || *version == "" {
		return fmt.Errorf("pack requires --model-dir, --name, and --version")
	}

	metadata, err := parseMetadata(*metadataJSON, *metadataFile)
	if err != nil {
		return err
	}
	cfg := types.ModelConfig{
		ModelName:    *name,
		Version:      *version,
		Framework:    *framework,
		Architecture: *architecture,
		Metadata:     metadata,
	}

	archivePath, err := modeloci.NewPackager().Package(*modelDir, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Packaged model: %s\n", archivePath)
	fmt.Printf("  Name        : %s\n", cfg.ModelName)
	fmt.Printf("  Version     : %s\n", cfg.Version)
	fmt.Printf("  Framework   : %s\n", cfg.Framework)
	fmt.Printf("  Archive     : %s\n", archivePath)
	return nil
}

// parseMetadata merges free-form metadata from an inline JSON string and an
// optional YAML (or JSON) file. File values win on key collisions.
func parseMetadata(inlineJSON, file string) (map[string]any, error) {
	metadata := map[string]any{}
	if inlineJSON != "" {
		if err := json.Unmarshal([]byte(inlineJSON), &metadata); err != nil {
			return nil, fmt.Errorf("invalid JSON for --metadata: %v", err)
		}
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		fromFile := map[string]any{}
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("invalid metadata file %q: %v", file, err)
		}
		for k, v := range fromFile {
			metadata[k] = v
		}
	}
	if len(metadata) == 0 {
		return nil, nil
	}
	return metadata, nil
}
