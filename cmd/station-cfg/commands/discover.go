package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/qnlab/station-go/pkg/discovery"
)

// DiscoverOptions configures the discover command.
type DiscoverOptions struct {
	Timeout   time.Duration
	Services  string // comma-separated service types, empty = defaults
	Interface string // network interface name, empty = all
	YAML      bool   // emit a station file stub instead of a table
}

// RunDiscover runs the discover command.
func RunDiscover(args []string, stdout, stderr io.Writer) int {
	opts, err := parseDiscoverArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		printDiscoverUsage(stderr)
		return exitUsage
	}

	browser := discovery.NewBrowser(discovery.Options{
		Services:  splitList(opts.Services),
		Interface: opts.Interface,
	})

	found, err := browser.Browse(context.Background(), opts.Timeout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitViolation
	}

	if opts.YAML {
		fmt.Fprint(stdout, discovery.SuggestYAML(found))
		return exitSuccess
	}

	printDiscoverTable(stdout, found)
	return exitSuccess
}

func printDiscoverTable(w io.Writer, found []discovery.Found) {
	if len(found) == 0 {
		fmt.Fprintln(w, "No instruments discovered.")
		return
	}

	fmt.Fprintf(w, "Found %d instrument(s):\n\n", len(found))
	fmt.Fprintf(w, "%-28s %-16s %-24s %s\n", "NAME", "SERVICE", "ENDPOINT", "DRIVER")
	for _, f := range found {
		driverGuess := discovery.GuessDriver(f)
		if driverGuess == "" {
			driverGuess = "-"
		}
		endpoint := f.Endpoint()
		if endpoint == "" {
			endpoint = "-"
		}
		fmt.Fprintf(w, "%-28s %-16s %-24s %s\n", f.Name, strings.TrimSuffix(f.Service, "."), endpoint, driverGuess)
	}
}

func parseDiscoverArgs(args []string) (DiscoverOptions, error) {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	opts := DiscoverOptions{}

	fs.DurationVar(&opts.Timeout, "timeout", discovery.DefaultTimeout, "How long to browse")
	fs.StringVar(&opts.Services, "services", "", "Comma-separated mDNS service types (default: LXI, SCPI-raw, HTTP)")
	fs.StringVar(&opts.Interface, "interface", "", "Browse on a single network interface")
	fs.BoolVar(&opts.YAML, "yaml", false, "Emit a station file stub for the discovered instruments")

	fs.Usage = func() {}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.Timeout <= 0 {
		return opts, fmt.Errorf("timeout must be positive")
	}
	if len(fs.Args()) > 0 {
		return opts, fmt.Errorf("unexpected argument %q", fs.Args()[0])
	}

	return opts, nil
}

func printDiscoverUsage(w io.Writer) {
	fmt.Fprintln(w, `
Usage: station-cfg discover [options]

Browses the local network for instruments advertising over mDNS.

Options:
  -timeout    How long to browse [default: 5s]
  -services   Comma-separated mDNS service types
  -interface  Browse on a single network interface
  -yaml       Emit a station file stub for the discovered instruments

Examples:
  station-cfg discover
  station-cfg discover -timeout 10s -yaml
  station-cfg discover -services _scpi-raw._tcp`)
}
