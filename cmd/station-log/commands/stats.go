package commands

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/qnlab/station-go/pkg/log"
)

// Stats aggregates counts over one log file.
type Stats struct {
	TotalEvents  int
	ByCategory   map[log.Category]int
	ByInstrument map[string]int
	Sessions     map[string]*SessionStats
	TimeRange    struct {
		First time.Time
		Last  time.Time
	}
}

// SessionStats summarizes one logging session within a file.
type SessionStats struct {
	Events int
	First  time.Time
	Last   time.Time
}

// StatsOptions configures the stats command.
type StatsOptions struct {
	File string
}

// RunStats runs the stats command.
func RunStats(args []string, stdout, stderr io.Writer) int {
	opts, err := parseStatsArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	if opts.File == "" {
		fmt.Fprintln(stderr, "Error: no log file specified")
		printStatsUsage(stderr)
		return exitUsage
	}

	stats, err := collectStats(opts.File)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitViolation
	}

	printStats(stdout, stats)
	return exitSuccess
}

func collectStats(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	stats := &Stats{
		ByCategory:   make(map[log.Category]int),
		ByInstrument: make(map[string]int),
		Sessions:     make(map[string]*SessionStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		stats.add(event)
	}

	return stats, nil
}

func (s *Stats) add(e log.Event) {
	s.TotalEvents++
	s.ByCategory[e.Category]++
	if e.Instrument != "" {
		s.ByInstrument[e.Instrument]++
	}

	if s.TimeRange.First.IsZero() || e.Timestamp.Before(s.TimeRange.First) {
		s.TimeRange.First = e.Timestamp
	}
	if e.Timestamp.After(s.TimeRange.Last) {
		s.TimeRange.Last = e.Timestamp
	}

	if e.SessionID != "" {
		sess := s.Sessions[e.SessionID]
		if sess == nil {
			sess = &SessionStats{First: e.Timestamp}
			s.Sessions[e.SessionID] = sess
		}
		sess.Events++
		if e.Timestamp.Before(sess.First) {
			sess.First = e.Timestamp
		}
		if e.Timestamp.After(sess.Last) {
			sess.Last = e.Timestamp
		}
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Station Log Statistics ===")
	fmt.Fprintln(w)

	if !stats.TimeRange.First.IsZero() {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.First.UTC().Format(time.RFC3339),
			stats.TimeRange.Last.UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.Last.Sub(stats.TimeRange.First).Round(time.Second))
	}
	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "By Category:")
	categories := []log.Category{
		log.CategoryConnection,
		log.CategoryParameter,
		log.CategoryMonitor,
		log.CategoryState,
		log.CategoryError,
	}
	for _, c := range categories {
		if count := stats.ByCategory[c]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", c.String()+":", count)
		}
	}

	if len(stats.ByInstrument) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "By Instrument:")
		ids := make([]string, 0, len(stats.ByInstrument))
		for id := range stats.ByInstrument {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "  %-12s %d\n", id+":", stats.ByInstrument[id])
		}
	}

	if len(stats.Sessions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sessions:")
		ids := make([]string, 0, len(stats.Sessions))
		for id := range stats.Sessions {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			return stats.Sessions[ids[i]].First.Before(stats.Sessions[ids[j]].First)
		})
		for _, id := range ids {
			sess := stats.Sessions[id]
			fmt.Fprintf(w, "  %s  %s  %d events\n",
				shortSession(id), sess.First.UTC().Format(time.RFC3339), sess.Events)
		}
	}
}

func parseStatsArgs(args []string) (StatsOptions, error) {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	opts := StatsOptions{}

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

func printStatsUsage(w io.Writer) {
	fmt.Fprintln(w, `
Usage: station-log stats <file>

Prints event counts by category and instrument, the sessions in the
file, and the time span covered.

Examples:
  station-log stats station.cbor`)
}
