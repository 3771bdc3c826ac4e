package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/pflag"

	tarutil "github.com/invincible-jha/aumai-modeloci/internal/tar"
	"github.com/invincible-jha/aumai-modeloci/pkg/modeloci"
	"github.com/invincible-jha/aumai-modeloci/pkg/modeloci/types"
)

// runInspect handles the 'inspect' subcommand: it prints the archive's
// config, its layer table, and the result of verifying every layer, all
// without extracting anything to disk.
func runInspect(args []string) error {
	fs := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	archive := fs.String("archive", "", "path to the model tar archive")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *archive == "" {
		return fmt.Errorf("inspect requires --archive")
	}

	if data, err := tarutil.ReadEntry(*archive, "config.json"); err == nil {
		var cfg types.ModelConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config.json: %v", err)
		}
		fmt.Printf("Model    : %s\n", cfg.ModelName)
		fmt.Printf("Version  : %s\n", cfg.Version)
		fmt.Printf("Framework: %s\n", cfg.Framework)
		fmt.Printf("Arch     : %s\n", cfg.Architecture)
		if len(cfg.Metadata) > 0 {
			metadata, err := json.Marshal(cfg.Metadata)
			if err != nil {
				return err
			}
			fmt.Printf("Metadata : %s\n", metadata)
		}
	}

	if data, err := tarutil.ReadEntry(*archive, "manifest.json"); err == nil {
		var manifest types.Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			return fmt.Errorf("parsing manifest.json: %v", err)
		}
		fmt.Printf("\nLayers (%d):\n", len(manifest.Layers))
		for _, layer := range manifest.Layers {
			title := layer.Annotations[ocispec.AnnotationTitle]
			if title == "" {
				title = "(unknown)"
			}
			fmt.Printf("  %-40s  %8s  %s...\n", title, humanize.IBytes(uint64(layer.Size)), truncateDigest(layer.Digest.String(), 23))
		}
	}

	verification, err := modeloci.NewUnpackager().VerifyLayers(*archive)
	if err != nil {
		return err
	}
	fmt.Printf("\nLayer verification (%d layers):\n", len(verification))
	allValid := true
	for _, lv := range verification {
		status := "OK  "
		if !lv.Valid {
			status = "FAIL"
			allValid = false
		}
		fmt.Printf("  %s  %s...\n", status, truncateDigest(lv.Digest.String(), 30))
	}
	if !allValid {
		return fmt.Errorf("some layers failed verification")
	}
	fmt.Println("All layers verified.")
	return nil
}

func truncateDigest(dgst string, n int) string {
	if len(dgst) <= n {
		return dgst
	}
	return dgst[:n]
}
