package main

import (
	"fmt"
	"os"
)

var usageText = `
Usage:

  modeloci pack    --model-dir <dir> --name <name> --version <version>
                   [--framework fw] [--architecture arch]
                   [--metadata json] [--metadata-file file]
  modeloci unpack  --archive <tar file> --output <dir>
  modeloci inspect --archive <tar file>

Commands:

  pack      Package a model directory into an OCI-compliant tar archive
  unpack    Extract a model archive and show its config
  inspect   Show config, layers, and layer verification without extracting

Example:

  modeloci pack --model-dir ./resnet --name resnet --version 1.0
  modeloci inspect --archive ./resnet-1.0.tar

The pack command writes <name>-<version>.tar alongside the model directory.
`

func main() {
	if len(os.Args) < 2 {
		showUsageAndExit()
	}
	var err error
	switch os.Args[1] {
	case "pack":
		err = runPack(os.Args[2:])
	case "unpack":
		err = runUnpack(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Println(usageText)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		showUsageAndExit()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func showUsageAndExit() {
	fmt.Println(usageText)
	os.Exit(1)
}
