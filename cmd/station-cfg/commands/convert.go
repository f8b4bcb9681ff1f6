package commands

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/qnlab/station-go/pkg/station"
)

// ConvertOptions configures the convert command.
type ConvertOptions struct {
	To     string // json, yaml
	Output string // output file, empty writes to stdout
	File   string
}

// configDoc is the canonical station document. Because YAML is a superset
// of JSON, the JSON rendering parses back with station.Parse unchanged.
type configDoc struct {
	Instruments map[string]instrumentDoc `json:"instruments" yaml:"instruments"`
}

type instrumentDoc struct {
	Driver        string              `json:"driver" yaml:"driver"`
	Type          string              `json:"type,omitempty" yaml:"type,omitempty"`
	Address       string              `json:"address,omitempty" yaml:"address,omitempty"`
	Port          int                 `json:"port,omitempty" yaml:"port,omitempty"`
	AutoReconnect bool                `json:"auto_reconnect,omitempty" yaml:"auto_reconnect,omitempty"`
	Init          map[string]any      `json:"init,omitempty" yaml:"init,omitempty"`
	AddParameters map[string]paramDoc `json:"add_parameters,omitempty" yaml:"add_parameters,omitempty"`
	Parameters    map[string]paramDoc `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

type paramDoc struct {
	Source       string    `json:"source,omitempty" yaml:"source,omitempty"`
	Label        string    `json:"label,omitempty" yaml:"label,omitempty"`
	Unit         string    `json:"unit,omitempty" yaml:"unit,omitempty"`
	Scale        *float64  `json:"scale,omitempty" yaml:"scale,omitempty"`
	Limits       []float64 `json:"limits,omitempty" yaml:"limits,omitempty,flow"`
	Monitor      *bool     `json:"monitor,omitempty" yaml:"monitor,omitempty"`
	InitialValue any       `json:"initial_value,omitempty" yaml:"initial_value,omitempty"`
}

// RunConvert runs the convert command.
func RunConvert(args []string, stdout, stderr io.Writer) int {
	opts, err := parseConvertArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	if opts.File == "" {
		fmt.Fprintln(stderr, "Error: no file specified")
		printConvertUsage(stderr)
		return exitUsage
	}

	cfg, err := station.ParseFile(opts.File)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitViolation
	}

	doc := buildConfigDoc(cfg)

	var data []byte
	switch opts.To {
	case "yaml":
		data, err = yaml.Marshal(doc)
	default:
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitViolation
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitViolation
		}
		fmt.Fprintf(stdout, "Converted %s -> %s\n", opts.File, opts.Output)
		return exitSuccess
	}

	fmt.Fprint(stdout, string(data))
	return exitSuccess
}

func buildConfigDoc(cfg *station.Config) configDoc {
	doc := configDoc{Instruments: make(map[string]instrumentDoc, len(cfg.Instruments))}

	for _, inst := range cfg.Instruments {
		entry := instrumentDoc{
			Driver:        inst.Driver,
			Type:          inst.Type,
			Address:       inst.Address,
			Port:          inst.Port,
			AutoReconnect: inst.AutoReconnect,
			Init:          inst.Init,
		}
		if len(inst.AddParams) > 0 {
			entry.AddParameters = make(map[string]paramDoc, len(inst.AddParams))
			for _, p := range inst.AddParams {
				entry.AddParameters[p.Name] = buildParamDoc(p)
			}
		}
		if len(inst.Overrides) > 0 {
			entry.Parameters = make(map[string]paramDoc, len(inst.Overrides))
			for _, p := range inst.Overrides {
				entry.Parameters[p.Name] = buildParamDoc(p)
			}
		}
		doc.Instruments[inst.ID] = entry
	}

	return doc
}

func buildParamDoc(p *station.Param) paramDoc {
	doc := paramDoc{
		Source:       p.Source,
		Label:        p.Label,
		Unit:         p.Unit,
		Scale:        p.Scale,
		Monitor:      p.Monitor,
		InitialValue: p.InitialValue,
	}
	if p.Limits != nil {
		doc.Limits = []float64{p.Limits.Min, p.Limits.Max}
	}
	return doc
}

func parseConvertArgs(args []string) (ConvertOptions, error) {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	opts := ConvertOptions{}

	fs.StringVar(&opts.To, "to", "json", "Target format (json, yaml)")
	fs.StringVar(&opts.Output, "o", "", "Output file (default: stdout)")

	fs.Usage = func() {}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch opts.To {
	case "json", "yaml":
	default:
		return opts, fmt.Errorf("unknown target format %q", opts.To)
	}

	remaining := fs.Args()
	if len(remaining) > 0 {
		opts.File = remaining[0]
	}

	return opts, nil
}

func printConvertUsage(w io.Writer) {
	fmt.Fprintln(w, `
Usage: station-cfg convert [options] <file>

Converts a station configuration to its canonical form. The JSON output
is itself a valid station configuration.

Options:
  -to  Target format (json, yaml) [default: json]
  -o   Output file (default: stdout)

Examples:
  station-cfg convert station.yaml
  station-cfg convert -to yaml station.json
  station-cfg convert -o station.json station.yaml`)
}
