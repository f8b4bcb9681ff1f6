// station-log is a CLI tool for inspecting station event logs.
package main

import (
	"fmt"
	"os"

	"github.com/qnlab/station-go/cmd/station-log/commands"
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
	case "view":
		exitCode = commands.RunView(args, os.Stdout, os.Stderr)
	case "stats":
		exitCode = commands.RunStats(args, os.Stdout, os.Stderr)
	case "help", "-h", "--help":
		printUsage()
		exitCode = exitSuccess
	case "version", "-v", "--version":
		fmt.Println("station-log version 0.1.0")
		exitCode = exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		exitCode = exitUsage
	}

	os.Exit(exitCode)
}

func printUsage() {
	fmt.Println(`station-log - station event log inspector

Usage:
  station-log <command> [options] <file>

Commands:
  view    Print log events in readable or JSON form
  stats   Summarize a log file

Options:
  -h, --help     Show this help message
  -v, --version  Show version information

Examples:
  station-log view station.cbor
  station-log view -category monitor -instrument mdac station.cbor
  station-log view -since 30m -json station.cbor
  station-log stats station.cbor

For command-specific help, run:
  station-log <command> --help`)
}
