// station-cfg is a CLI tool for station configuration validation,
// inspection, and conversion.
package main

import (
	"fmt"
	"os"

	"github.com/qnlab/station-go/cmd/station-cfg/commands"
)

const (
	exitSuccess   = 0
	exitViolation = 1
	exitUsage     = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitUsage)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var exitCode int
	switch cmd {
	case "validate":
		exitCode = commands.RunValidate(args, os.Stdout, os.Stderr)
	case "lint":
		exitCode = commands.RunLint(args, os.Stdout, os.Stderr)
	case "show":
		exitCode = commands.RunShow(args, os.Stdout, os.Stderr)
	case "convert":
		exitCode = commands.RunConvert(args, os.Stdout, os.Stderr)
	case "discover":
		exitCode = commands.RunDiscover(args, os.Stdout, os.Stderr)
	case "help", "-h", "--help":
		printUsage()
		exitCode = exitSuccess
	case "version", "-v", "--version":
		fmt.Println("station-cfg version 0.1.0")
		exitCode = exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		exitCode = exitUsage
	}

	os.Exit(exitCode)
}

func printUsage() {
	fmt.Println(`station-cfg - station configuration tool

Usage:
  station-cfg <command> [options] [files...]

Commands:
  validate   Check station files for errors
  lint       Check station files against the full rule set
  show       Display the resolved station layout
  convert    Convert station files between YAML and JSON
  discover   Find instruments on the local network

Options:
  -h, --help     Show this help message
  -v, --version  Show version information

Examples:
  station-cfg validate station.yaml
  station-cfg lint -severity warning station.yaml
  station-cfg show -instrument mdac station.yaml
  station-cfg convert -to json station.yaml
  station-cfg discover -yaml

For command-specific help, run:
  station-cfg <command> --help`)
}
