package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/invincible-jha/aumai-modeloci/pkg/modeloci"
)

// runUnpack handles the 'unpack' subcommand.
func runUnpack(args []string) error {
	fs := pflag.NewFlagSet("unpack", pflag.ContinueOnError)
	archive := fs.String("archive", "", "path to the model tar archive")
	output := fs.String("output", "", "directory to unpack into")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *archive == "" || *output == "" {
		return fmt.Errorf("unpack requires --archive and --output")
	}

	cfg, err := modeloci.NewUnpackager().Unpack(*archive, *output)
	if err != nil {
		return err
	}
	fmt.Printf("Unpacked to: %s\n", *output)
	fmt.Printf("  Model    : %s v%s\n", cfg.ModelName, cfg.Version)
	fmt.Printf("  Framework: %s\n", cfg.Framework)
	return nil
}
