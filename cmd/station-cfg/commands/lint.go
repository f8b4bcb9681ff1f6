package commands

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/station"
	"github.com/qnlab/station-go/pkg/station/rules"
)

// LintOptions configures the lint command.
type LintOptions struct {
	Severity string // error, warning, info
	Disable  string // comma-separated rule IDs
	JSON     bool
	Verbose  bool
	Files    []string
}

// LintIssue is a single lint finding.
type LintIssue struct {
	Code       string `json:"code"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Line       int    `json:"line,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// LintOutput is the lint result for one file.
type LintOutput struct {
	File   string      `json:"file"`
	Issues []LintIssue `json:"issues"`
	Clean  bool        `json:"clean"`
}

// RunLint runs the lint command.
func RunLint(args []string, stdout, stderr io.Writer) int {
	opts, err := parseLintArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	if len(opts.Files) == 0 {
		fmt.Fprintln(stderr, "Error: no files specified")
		printLintUsage(stderr)
		return exitUsage
	}

	minSeverity, err := parseSeverity(opts.Severity)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	results := make([]LintOutput, 0, len(opts.Files))
	hasIssues := false

	for _, file := range opts.Files {
		output := lintFile(file, opts, minSeverity)
		results = append(results, output)

		if !output.Clean {
			hasIssues = true
		}

		if !opts.JSON {
			printLintResult(stdout, output, opts.Verbose)
		}
	}

	if opts.JSON {
		out, _ := json.MarshalIndent(results, "", "  ")
		fmt.Fprintln(stdout, string(out))
	}

	if hasIssues {
		return exitViolation
	}
	return exitSuccess
}

func lintFile(path string, opts LintOptions, minSeverity station.Severity) LintOutput {
	output := LintOutput{File: path, Clean: true}

	cfg, err := station.ParseFile(path)
	if err != nil {
		output.Clean = false
		output.Issues = append(output.Issues, LintIssue{
			Code:     "PARSE",
			Severity: "error",
			Message:  err.Error(),
		})
		return output
	}

	registry := rules.NewDefaultRegistry(driver.Default())
	for _, id := range splitList(opts.Disable) {
		registry.Disable(id)
	}

	violations := registry.RunRules(cfg)

	for _, v := range violations {
		if v.Severity > minSeverity {
			continue
		}
		// Info findings are advisory; errors and warnings fail the lint.
		if v.Severity <= station.SeverityWarning {
			output.Clean = false
		}

		line := 0
		if len(v.LineNumbers) > 0 {
			line = v.LineNumbers[0]
		}

		output.Issues = append(output.Issues, LintIssue{
			Code:       v.RuleID,
			Severity:   v.Severity.String(),
			Message:    v.Message,
			Line:       line,
			Suggestion: v.Suggestion,
		})
	}

	sort.Slice(output.Issues, func(i, j int) bool {
		if output.Issues[i].Severity != output.Issues[j].Severity {
			return severityOrder(output.Issues[i].Severity) < severityOrder(output.Issues[j].Severity)
		}
		return output.Issues[i].Line < output.Issues[j].Line
	})

	return output
}

func severityOrder(s string) int {
	switch s {
	case "error":
		return 0
	case "warning":
		return 1
	case "info":
		return 2
	default:
		return 3
	}
}

func parseSeverity(s string) (station.Severity, error) {
	switch s {
	case "error":
		return station.SeverityError, nil
	case "", "warning":
		return station.SeverityWarning, nil
	case "info":
		return station.SeverityInfo, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printLintResult(w io.Writer, output LintOutput, verbose bool) {
	if output.Clean && len(output.Issues) == 0 {
		fmt.Fprintf(w, "%s: clean\n", output.File)
		return
	}

	errors := 0
	warnings := 0
	infos := 0
	for _, issue := range output.Issues {
		switch issue.Severity {
		case "error":
			errors++
		case "warning":
			warnings++
		default:
			infos++
		}
	}

	var parts []string
	if errors > 0 {
		parts = append(parts, fmt.Sprintf("%d errors", errors))
	}
	if warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d warnings", warnings))
	}
	if infos > 0 {
		parts = append(parts, fmt.Sprintf("%d notes", infos))
	}

	fmt.Fprintf(w, "%s: %s\n", output.File, strings.Join(parts, ", "))

	for _, issue := range output.Issues {
		if !verbose && issue.Severity == "info" {
			continue
		}

		prefix := strings.ToUpper(issue.Severity)
		if issue.Line > 0 {
			fmt.Fprintf(w, "  %s [line %d] %s: %s\n", prefix, issue.Line, issue.Code, issue.Message)
		} else {
			fmt.Fprintf(w, "  %s %s: %s\n", prefix, issue.Code, issue.Message)
		}
		if verbose && issue.Suggestion != "" {
			fmt.Fprintf(w, "    -> %s\n", issue.Suggestion)
		}
	}
}

func parseLintArgs(args []string) (LintOptions, error) {
	fs := flag.NewFlagSet("lint", flag.ContinueOnError)
	opts := LintOptions{}

	fs.StringVar(&opts.Severity, "severity", "warning", "Minimum severity to report (error, warning, info)")
	fs.StringVar(&opts.Disable, "disable", "", "Comma-separated rule IDs to disable")
	fs.BoolVar(&opts.JSON, "json", false, "Output results as JSON")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Show notes and suggestions")
	fs.BoolVar(&opts.Verbose, "v", false, "Show notes and suggestions (shorthand)")

	fs.Usage = func() {}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.Files = fs.Args()
	return opts, nil
}

func printLintUsage(w io.Writer) {
	fmt.Fprintln(w, `
Usage: station-cfg lint [options] <files...>

Options:
  -severity    Minimum severity to report (error, warning, info) [default: warning]
  -disable     Comma-separated rule IDs to disable
  -json        Output results as JSON
  -v, -verbose Show notes and suggestions

Examples:
  station-cfg lint station.yaml
  station-cfg lint -severity info -disable MON-001 station.yaml`)
}
