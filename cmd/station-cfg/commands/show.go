package commands

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/station"
)

// ShowOptions configures the show command.
type ShowOptions struct {
	Format     string // text, json, yaml
	Instrument string // filter by instrument id
	File       string
}

// ShowOutput is the resolved station layout for display.
type ShowOutput struct {
	File        string             `json:"file,omitempty" yaml:"file,omitempty"`
	Instruments []InstrumentOutput `json:"instruments" yaml:"instruments"`
	Monitored   []string           `json:"monitored,omitempty" yaml:"monitored,omitempty"`
}

// InstrumentOutput is one resolved instrument entry.
type InstrumentOutput struct {
	ID            string        `json:"id" yaml:"id"`
	Driver        string        `json:"driver" yaml:"driver"`
	Type          string        `json:"type,omitempty" yaml:"type,omitempty"`
	Address       string        `json:"address,omitempty" yaml:"address,omitempty"`
	Port          int           `json:"port,omitempty" yaml:"port,omitempty"`
	AutoReconnect bool          `json:"auto_reconnect,omitempty" yaml:"auto_reconnect,omitempty"`
	Dynamic       bool          `json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
	Params        []ParamOutput `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// ParamOutput is one resolved parameter row.
type ParamOutput struct {
	Path     string   `json:"path" yaml:"path"`
	Label    string   `json:"label,omitempty" yaml:"label,omitempty"`
	Kind     string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Access   string   `json:"access,omitempty" yaml:"access,omitempty"`
	Unit     string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	Limits   string   `json:"limits,omitempty" yaml:"limits,omitempty"`
	Scale    *float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	Source   string   `json:"source,omitempty" yaml:"source,omitempty"`
	Overlaid bool     `json:"overlaid,omitempty" yaml:"overlaid,omitempty"`
	Monitor  bool     `json:"monitor,omitempty" yaml:"monitor,omitempty"`
	Initial  any      `json:"initial_value,omitempty" yaml:"initial_value,omitempty"`
}

// RunShow runs the show command.
func RunShow(args []string, stdout, stderr io.Writer) int {
	opts, err := parseShowArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	if opts.File == "" {
		fmt.Fprintln(stderr, "Error: no file specified")
		printShowUsage(stderr)
		return exitUsage
	}

	cfg, err := station.ParseFile(opts.File)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitViolation
	}

	if opts.Instrument != "" {
		if _, ok := cfg.Instrument(opts.Instrument); !ok {
			fmt.Fprintf(stderr, "Error: no instrument %q in %s\n", opts.Instrument, opts.File)
			return exitViolation
		}
	}

	output := buildShowOutput(cfg, driver.Default(), opts)

	switch opts.Format {
	case "json":
		data, _ := json.MarshalIndent(output, "", "  ")
		fmt.Fprintln(stdout, string(data))
	case "yaml":
		data, _ := yaml.Marshal(output)
		fmt.Fprint(stdout, string(data))
	default:
		printShowText(stdout, output)
	}

	return exitSuccess
}

func buildShowOutput(cfg *station.Config, drivers *driver.Registry, opts ShowOptions) ShowOutput {
	output := ShowOutput{File: cfg.Path}

	for _, inst := range cfg.Instruments {
		if opts.Instrument != "" && inst.ID != opts.Instrument {
			continue
		}

		row := InstrumentOutput{
			ID:            inst.ID,
			Driver:        inst.Driver,
			Address:       inst.Address,
			Port:          inst.Port,
			AutoReconnect: inst.AutoReconnect,
		}

		entry, known := drivers.Lookup(inst.Driver)
		var catalog driver.Catalog
		if known {
			catalog = entry.Catalog
			row.Type = catalog.Type
			row.Dynamic = catalog.Dynamic
		} else {
			row.Error = fmt.Sprintf("unknown driver %q", inst.Driver)
		}
		if inst.Type != "" {
			row.Type = inst.Type
		}

		row.Params = resolveParams(inst, catalog, known)

		for _, p := range row.Params {
			if p.Monitor {
				output.Monitored = append(output.Monitored, inst.ID+"."+p.Path)
			}
		}

		output.Instruments = append(output.Instruments, row)
	}

	return output
}

// resolveParams merges the driver catalog with the instrument's
// configuration: overrides fold into their catalog rows, derived
// parameters are appended with their source.
func resolveParams(inst *station.Instrument, catalog driver.Catalog, known bool) []ParamOutput {
	overrides := make(map[string]*station.Param, len(inst.Overrides))
	for _, p := range inst.Overrides {
		overrides[p.Name] = p
	}

	var params []ParamOutput

	if known && !catalog.Dynamic {
		for _, path := range catalog.Paths() {
			cp, _ := catalog.Resolve(path)
			row := ParamOutput{
				Path:   path,
				Label:  cp.Label,
				Kind:   cp.Kind.String(),
				Access: cp.Access.String(),
				Unit:   cp.Unit,
			}
			if cp.Min != 0 || cp.Max != 0 {
				row.Limits = fmt.Sprintf("[%v, %v]", cp.Min, cp.Max)
			}
			if o, ok := overrides[path]; ok {
				applyOverride(&row, o)
			}
			params = append(params, row)
		}
	} else {
		// No static surface to merge into; show the overrides as rows
		// of their own.
		var paths []string
		for path := range overrides {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			row := ParamOutput{Path: path}
			applyOverride(&row, overrides[path])
			params = append(params, row)
		}
	}

	for _, p := range inst.AddParams {
		row := ParamOutput{
			Path:   p.Name,
			Label:  p.Label,
			Unit:   p.Unit,
			Scale:  p.Scale,
			Source: p.Source,
		}
		if cp, ok := catalog.Resolve(p.Source); known && ok {
			row.Kind = cp.Kind.String()
			row.Access = cp.Access.String()
			if row.Unit == "" {
				row.Unit = cp.Unit
			}
		}
		if p.Limits != nil {
			row.Limits = p.Limits.String()
		}
		if p.Monitor != nil {
			row.Monitor = *p.Monitor
		}
		row.Initial = p.InitialValue
		params = append(params, row)
	}

	return params
}

func applyOverride(row *ParamOutput, o *station.Param) {
	row.Overlaid = true
	if o.Label != "" {
		row.Label = o.Label
	}
	if o.Unit != "" {
		row.Unit = o.Unit
	}
	if o.Scale != nil {
		row.Scale = o.Scale
	}
	if o.Limits != nil {
		row.Limits = o.Limits.String()
	}
	if o.Monitor != nil {
		row.Monitor = *o.Monitor
	}
	if o.InitialValue != nil {
		row.Initial = o.InitialValue
	}
}

func printShowText(w io.Writer, output ShowOutput) {
	if output.File != "" {
		fmt.Fprintf(w, "File: %s\n", output.File)
	}

	totalParams := 0
	for i := range output.Instruments {
		inst := &output.Instruments[i]

		header := fmt.Sprintf("\nInstrument %s: %s", inst.ID, inst.Driver)
		if inst.Type != "" {
			header += fmt.Sprintf(" (%s)", inst.Type)
		}
		if inst.Address != "" {
			header += fmt.Sprintf(" @ %s", inst.Address)
			if inst.Port > 0 {
				header += fmt.Sprintf(":%d", inst.Port)
			}
		}
		fmt.Fprintln(w, header)

		if inst.Error != "" {
			fmt.Fprintf(w, "  ERROR: %s\n", inst.Error)
		}
		if inst.Dynamic {
			fmt.Fprintln(w, "  (parameters discovered at connect time)")
		}

		for _, p := range inst.Params {
			totalParams++
			fmt.Fprintf(w, "  %s", p.Path)
			var notes []string
			if p.Kind != "" {
				notes = append(notes, p.Kind)
			}
			if p.Access != "" {
				notes = append(notes, p.Access)
			}
			if p.Unit != "" {
				notes = append(notes, p.Unit)
			}
			if p.Limits != "" {
				notes = append(notes, p.Limits)
			}
			if len(notes) > 0 {
				fmt.Fprintf(w, " (%s)", strings.Join(notes, ", "))
			}
			if p.Source != "" {
				fmt.Fprintf(w, " <- %s", p.Source)
				if p.Scale != nil {
					fmt.Fprintf(w, " x%v", *p.Scale)
				}
			}
			if p.Overlaid {
				fmt.Fprint(w, " [overridden]")
			}
			if p.Monitor {
				fmt.Fprint(w, " [monitored]")
			}
			if p.Initial != nil {
				fmt.Fprintf(w, " init=%v", p.Initial)
			}
			fmt.Fprintln(w)
		}
	}

	if len(output.Monitored) > 0 {
		fmt.Fprintf(w, "\nMonitored: %s\n", strings.Join(output.Monitored, ", "))
	}

	fmt.Fprintf(w, "\nTotal: %d instruments, %d parameters\n", len(output.Instruments), totalParams)
}

func parseShowArgs(args []string) (ShowOptions, error) {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	opts := ShowOptions{}

	fs.StringVar(&opts.Format, "format", "text", "Output format (text, json, yaml)")
	fs.StringVar(&opts.Format, "f", "text", "Output format (shorthand)")
	fs.StringVar(&opts.Instrument, "instrument", "", "Show a single instrument")

	fs.Usage = func() {}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch opts.Format {
	case "text", "json", "yaml":
	default:
		return opts, fmt.Errorf("unknown format %q", opts.Format)
	}

	remaining := fs.Args()
	if len(remaining) > 0 {
		opts.File = remaining[0]
	}

	return opts, nil
}

func printShowUsage(w io.Writer) {
	fmt.Fprintln(w, `
Usage: station-cfg show [options] <file>

Options:
  -f, -format  Output format (text, json, yaml) [default: text]
  -instrument  Show a single instrument

Examples:
  station-cfg show station.yaml
  station-cfg show -format json station.yaml
  station-cfg show -instrument mdac station.yaml`)
}
