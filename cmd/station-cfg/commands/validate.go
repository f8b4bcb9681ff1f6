// Package commands implements the station-cfg subcommands. Each command
// takes its arguments and output writers explicitly so tests can drive
// them without a process.
package commands

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/station"
	"github.com/qnlab/station-go/pkg/station/rules"

	// Registers the built-in drivers so catalog checks resolve.
	_ "github.com/qnlab/station-go/pkg/instruments"
)

const (
	exitSuccess   = 0
	exitViolation = 1
	exitUsage     = 2
)

// ValidateOptions configures the validate command.
type ValidateOptions struct {
	Format  string // text, json
	Verbose bool
	Files   []string
}

// ValidationOutput is the validation result for one file.
type ValidationOutput struct {
	Valid    bool          `json:"valid"`
	Errors   []IssueOutput `json:"errors,omitempty"`
	Warnings []IssueOutput `json:"warnings,omitempty"`
}

// IssueOutput is a single validation finding.
type IssueOutput struct {
	Code       string `json:"code"`
	Severity   string `json:"severity,omitempty"`
	Message    string `json:"message"`
	Line       int    `json:"line,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// RunValidate runs the validate command.
func RunValidate(args []string, stdout, stderr io.Writer) int {
	opts, err := parseValidateArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	if len(opts.Files) == 0 {
		fmt.Fprintln(stderr, "Error: no files specified")
		printValidateUsage(stderr)
		return exitUsage
	}

	hasErrors := false
	results := make(map[string]*ValidationOutput)

	for _, file := range opts.Files {
		result := validateFile(file)
		results[file] = result

		if !result.Valid {
			hasErrors = true
		}

		if opts.Format != "json" {
			printValidationResult(stdout, file, result, opts.Verbose)
		}
	}

	if opts.Format == "json" {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Fprintln(stdout, string(output))
	}

	if hasErrors {
		return exitViolation
	}
	return exitSuccess
}

func validateFile(path string) *ValidationOutput {
	output := &ValidationOutput{Valid: true}

	cfg, err := station.ParseFile(path)
	if err != nil {
		output.Valid = false
		output.Errors = append(output.Errors, IssueOutput{
			Code:    "PARSE",
			Message: err.Error(),
		})
		return output
	}

	// Error-severity findings from the full rule set; warnings ride
	// along for context but do not fail the run.
	registry := rules.NewDefaultRegistry(driver.Default())
	result := station.NewValidator().ValidateWithOptions(cfg, station.ValidateOptions{
		Registry:    registry,
		MinSeverity: station.SeverityWarning,
	})

	output.Valid = result.Valid

	for _, e := range result.Errors {
		output.Errors = append(output.Errors, IssueOutput{
			Code:    e.Code,
			Message: e.Message,
			Line:    e.Line,
		})
	}
	for _, w := range result.Warnings {
		output.Warnings = append(output.Warnings, IssueOutput{
			Code:    w.Code,
			Message: w.Message,
			Line:    w.Line,
		})
	}

	return output
}

func printValidationResult(w io.Writer, file string, result *ValidationOutput, verbose bool) {
	if result.Valid && len(result.Errors) == 0 && len(result.Warnings) == 0 {
		fmt.Fprintf(w, "%s: OK\n", file)
		return
	}

	if result.Valid && len(result.Warnings) > 0 {
		fmt.Fprintf(w, "%s: OK (with %d warnings)\n", file, len(result.Warnings))
	} else if !result.Valid {
		fmt.Fprintf(w, "%s: FAILED (%d errors, %d warnings)\n", file, len(result.Errors), len(result.Warnings))
	}

	if verbose || !result.Valid {
		for _, e := range result.Errors {
			if e.Line > 0 {
				fmt.Fprintf(w, "  ERROR [line %d] %s: %s\n", e.Line, e.Code, e.Message)
			} else {
				fmt.Fprintf(w, "  ERROR %s: %s\n", e.Code, e.Message)
			}
		}
	}

	if verbose {
		for _, warn := range result.Warnings {
			if warn.Line > 0 {
				fmt.Fprintf(w, "  WARNING [line %d] %s: %s\n", warn.Line, warn.Code, warn.Message)
			} else {
				fmt.Fprintf(w, "  WARNING %s: %s\n", warn.Code, warn.Message)
			}
		}
	}
}

func parseValidateArgs(args []string) (ValidateOptions, error) {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	opts := ValidateOptions{}

	fs.StringVar(&opts.Format, "format", "text", "Output format (text, json)")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Show all warnings")
	fs.BoolVar(&opts.Verbose, "v", false, "Show all warnings (shorthand)")

	fs.Usage = func() {}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.Format != "text" && opts.Format != "json" {
		return opts, fmt.Errorf("unknown format %q", opts.Format)
	}

	opts.Files = fs.Args()
	return opts, nil
}

func printValidateUsage(w io.Writer) {
	fmt.Fprintln(w, `
Usage: station-cfg validate [options] <files...>

Options:
  -format      Output format (text, json) [default: text]
  -v, -verbose Show all warnings

Examples:
  station-cfg validate station.yaml
  station-cfg validate -format json lab/*.yaml`)
}
