// Package commands implements the station-log subcommands. Each command
// takes its arguments and output writers explicitly so tests can drive
// them without a process.
package commands

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/qnlab/station-go/pkg/log"
)

const (
	exitSuccess   = 0
	exitViolation = 1
	exitUsage     = 2
)

// viewTimeLayout is the header timestamp format, UTC with microseconds.
const viewTimeLayout = "2006-01-02T15:04:05.000000Z"

// ViewOptions configures the view command.
type ViewOptions struct {
	Category   string
	Instrument string
	Since      string
	JSON       bool
	File       string
}

// RunView runs the view command.
func RunView(args []string, stdout, stderr io.Writer) int {
	opts, err := parseViewArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	if opts.File == "" {
		fmt.Fprintln(stderr, "Error: no log file specified")
		printViewUsage(stderr)
		return exitUsage
	}

	filter, err := buildFilter(opts, time.Now())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	reader, err := log.NewFilteredReader(opts.File, filter)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitViolation
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error: reading %s: %v\n", opts.File, err)
			return exitViolation
		}

		if opts.JSON {
			printEventJSON(stdout, event)
		} else {
			printEvent(stdout, event)
		}
	}

	return exitSuccess
}

func buildFilter(opts ViewOptions, now time.Time) (log.Filter, error) {
	var filter log.Filter

	if opts.Category != "" {
		category, err := parseCategory(opts.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &category
	}

	filter.Instrument = opts.Instrument

	if opts.Since != "" {
		since, err := parseSince(opts.Since, now)
		if err != nil {
			return filter, err
		}
		filter.TimeStart = &since
	}

	return filter, nil
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "connection":
		return log.CategoryConnection, nil
	case "parameter":
		return log.CategoryParameter, nil
	case "monitor":
		return log.CategoryMonitor, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be connection, parameter, monitor, state, or error)", s)
	}
}

// parseSince accepts a duration ("30m" means the last 30 minutes), an
// RFC3339 timestamp, a zone-less timestamp, or a plain date (UTC).
func parseSince(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid -since value %q (want a duration, RFC3339 time, or date)", s)
}

// printEvent writes one event as a header line plus indented detail lines,
// followed by a blank line.
func printEvent(w io.Writer, e log.Event) {
	subject := e.Instrument
	if e.Parameter != "" {
		subject = e.Instrument + "." + e.Parameter
	}
	fmt.Fprintf(w, "%s [session:%s] %-10s %s\n",
		e.Timestamp.UTC().Format(viewTimeLayout), shortSession(e.SessionID), e.Category, subject)

	switch {
	case e.Connection != nil:
		fmt.Fprintf(w, "  Action: %s\n", e.Connection.Action)
		if e.Connection.Driver != "" {
			fmt.Fprintf(w, "  Driver: %s\n", e.Connection.Driver)
		}
		if e.Connection.Address != "" {
			fmt.Fprintf(w, "  Address: %s\n", e.Connection.Address)
		}
		if e.Connection.IDN != "" {
			fmt.Fprintf(w, "  IDN: %s\n", e.Connection.IDN)
		}
	case e.Param != nil:
		fmt.Fprintf(w, "  Op: %s\n", e.Param.Op)
		if e.Param.Value != nil {
			fmt.Fprintf(w, "  Value: %s\n", valueWithUnit(e.Param.Value, e.Param.Unit))
		}
		if e.Param.Raw != nil {
			fmt.Fprintf(w, "  Raw: %v\n", e.Param.Raw)
		}
		if e.Param.Elapsed != nil {
			fmt.Fprintf(w, "  Elapsed: %s\n", e.Param.Elapsed)
		}
	case e.Sample != nil:
		fmt.Fprintf(w, "  Value: %s\n", valueWithUnit(e.Sample.Value, e.Sample.Unit))
	case e.State != nil:
		fmt.Fprintf(w, "  Entity: %s\n", e.State.Entity)
		if e.State.OldState != "" {
			fmt.Fprintf(w, "  State: %s -> %s\n", e.State.OldState, e.State.NewState)
		} else {
			fmt.Fprintf(w, "  State: %s\n", e.State.NewState)
		}
		if e.State.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", e.State.Reason)
		}
	case e.Error != nil:
		fmt.Fprintf(w, "  Error: %s\n", e.Error.Message)
		if e.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", e.Error.Context)
		}
	}
	fmt.Fprintln(w)
}

func valueWithUnit(value any, unit string) string {
	if unit == "" {
		return fmt.Sprintf("%v", value)
	}
	return fmt.Sprintf("%v %s", value, unit)
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// eventJSON is the flattened line format emitted by view -json.
type eventJSON struct {
	Time       string `json:"time"`
	Session    string `json:"session,omitempty"`
	Category   string `json:"category"`
	Instrument string `json:"instrument,omitempty"`
	Parameter  string `json:"parameter,omitempty"`

	// Connection fields.
	Action  string `json:"action,omitempty"`
	Driver  string `json:"driver,omitempty"`
	Address string `json:"address,omitempty"`
	IDN     string `json:"idn,omitempty"`

	// Parameter operation and sample fields.
	Op      string `json:"op,omitempty"`
	Value   any    `json:"value,omitempty"`
	Raw     any    `json:"raw,omitempty"`
	Unit    string `json:"unit,omitempty"`
	Elapsed string `json:"elapsed,omitempty"`

	// State fields.
	Entity   string `json:"entity,omitempty"`
	OldState string `json:"old_state,omitempty"`
	NewState string `json:"new_state,omitempty"`
	Reason   string `json:"reason,omitempty"`

	// Error fields.
	Error   string `json:"error,omitempty"`
	Context string `json:"context,omitempty"`
}

// printEventJSON writes one event as a single JSON object per line.
func printEventJSON(w io.Writer, e log.Event) {
	row := eventJSON{
		Time:       e.Timestamp.UTC().Format(time.RFC3339Nano),
		Session:    e.SessionID,
		Category:   e.Category.String(),
		Instrument: e.Instrument,
		Parameter:  e.Parameter,
	}

	switch {
	case e.Connection != nil:
		row.Action = e.Connection.Action.String()
		row.Driver = e.Connection.Driver
		row.Address = e.Connection.Address
		row.IDN = e.Connection.IDN
	case e.Param != nil:
		row.Op = e.Param.Op.String()
		row.Value = e.Param.Value
		row.Raw = e.Param.Raw
		row.Unit = e.Param.Unit
		if e.Param.Elapsed != nil {
			row.Elapsed = e.Param.Elapsed.String()
		}
	case e.Sample != nil:
		row.Value = e.Sample.Value
		row.Unit = e.Sample.Unit
	case e.State != nil:
		row.Entity = e.State.Entity.String()
		row.OldState = e.State.OldState
		row.NewState = e.State.NewState
		row.Reason = e.State.Reason
	case e.Error != nil:
		row.Error = e.Error.Message
		row.Context = e.Error.Context
	}

	data, err := json.Marshal(row)
	if err != nil {
		return
	}
	fmt.Fprintln(w, string(data))
}

func parseViewArgs(args []string) (ViewOptions, error) {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	opts := ViewOptions{}

	fs.StringVar(&opts.Category, "category", "", "Only events of this category")
	fs.StringVar(&opts.Instrument, "instrument", "", "Only events for this instrument")
	fs.StringVar(&opts.Since, "since", "", "Only events at or after this time")
	fs.BoolVar(&opts.JSON, "json", false, "Emit one JSON object per event")

	fs.Usage = func() {}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	remaining := fs.Args()
	if len(remaining) > 0 {
		opts.File = remaining[0]
	}

	return opts, nil
}

func printViewUsage(w io.Writer) {
	fmt.Fprintln(w, `
Usage: station-log view [options] <file>

Options:
  -category    Only events of this category
               (connection, parameter, monitor, state, error)
  -instrument  Only events for this instrument
  -since       Only events at or after this time
               (a duration like 30m, an RFC3339 time, or a date)
  -json        Emit one JSON object per event

Examples:
  station-log view station.cbor
  station-log view -category monitor station.cbor
  station-log view -instrument mdac -since 1h station.cbor
  station-log view -json station.cbor`)
}
