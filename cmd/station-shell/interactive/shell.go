// Package interactive provides the interactive command loop for
// station-shell.
package interactive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/qnlab/station-go/pkg/inspect"
	"github.com/qnlab/station-go/pkg/log"
	"github.com/qnlab/station-go/pkg/monitor"
	"github.com/qnlab/station-go/pkg/param"
	"github.com/qnlab/station-go/pkg/persistence"
	"github.com/qnlab/station-go/pkg/station"
)

// Options configures the shell.
type Options struct {
	// SnapshotDir is where snapshot save/load keep their state. Empty
	// disables the snapshot store.
	SnapshotDir string

	// Interval between monitor samples. Zero means the monitor default.
	Interval time.Duration

	// Logger receives station and monitor events. Nil disables logging.
	Logger log.Logger
}

// Shell handles interactive mode for station-shell.
type Shell struct {
	st        *station.Station
	inspector *inspect.Inspector
	formatter *inspect.Formatter
	rl        *readline.Instance
	out       io.Writer

	snapshots *persistence.Store
	interval  time.Duration
	logger    log.Logger

	// Monitor state. Engines are single-use, so every start builds a
	// fresh one.
	mu     sync.Mutex
	engine *monitor.Engine
	unsub  func()
}

// New creates the shell over a loaded station.
func New(st *station.Station, opts Options) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "station> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := &Shell{
		st:        st,
		inspector: inspect.NewInspector(st),
		formatter: inspect.NewFormatter(),
		rl:        rl,
		out:       rl.Stdout(),
		interval:  opts.Interval,
		logger:    opts.Logger,
	}
	if s.logger == nil {
		s.logger = log.NoopLogger{}
	}
	if opts.SnapshotDir != "" {
		s.snapshots = persistence.NewStore(opts.SnapshotDir)
	}
	return s, nil
}

// Stdout returns a writer that coordinates with the readline prompt. Use
// this for background output so it does not mangle the current line.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()
	defer s.stopMonitor(false)

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			s.printf("Exiting...\n")
			cancel()
			return
		}

		if s.execute(line) {
			cancel()
			return
		}
	}
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// execute runs a single command line. It returns true when the shell
// should exit.
func (s *Shell) execute(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]
	ctx := context.Background()

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "list", "l":
		s.cmdList(ctx)

	case "info", "i":
		s.cmdInfo(ctx, args)

	case "get", "g":
		s.cmdGet(ctx, args)

	case "set":
		s.cmdSet(ctx, args)

	case "ramp":
		s.cmdRamp(ctx, args)

	case "limits":
		s.cmdLimits(args)

	case "monitor", "mon":
		s.cmdMonitor(args)

	case "snapshot", "snap":
		s.cmdSnapshot(ctx, args)

	case "quit", "exit", "q":
		s.printf("Exiting...\n")
		return true

	default:
		s.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	return false
}

func (s *Shell) printHelp() {
	s.printf(`
Station Commands:
  Inspection:
    list                - Show all instruments and their parameters
    info <id>           - Show one instrument in detail
    get <path>          - Read a parameter value
    limits <path>       - Show a parameter's limits and ramp defaults

  Control:
    set <path> <value>  - Write a parameter value
    ramp <path> <target> [rate] - Ramp to target, blocking until done

  Monitoring:
    monitor start       - Start sampling the monitored parameters
    monitor stop        - Stop sampling
    monitor status      - Show the monitor state

  Snapshots:
    snapshot            - Print the live station snapshot
    snapshot save       - Save the snapshot to the snapshot directory
    snapshot load       - Show the last saved snapshot

  General:
    help                - Show this help
    exit                - Leave the shell

  Path Format:
    instrument.parameter - e.g., mdac.ch01.voltage
`)
}

func (s *Shell) cmdList(ctx context.Context) {
	tree := s.inspector.InspectStation(ctx)
	s.printf("%s", s.inspector.FormatStationTree(tree, s.formatter))
}

func (s *Shell) cmdInfo(ctx context.Context, args []string) {
	if len(args) < 1 {
		s.printf("Usage: info <instrument>\n")
		s.printf("  Use 'list' to see the loaded instruments\n")
		return
	}

	info, err := s.inspector.InspectInstrument(ctx, args[0])
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	s.printf("%s", s.inspector.FormatInstrument(info, s.formatter))
}

func (s *Shell) cmdGet(ctx context.Context, args []string) {
	if len(args) < 1 {
		s.printf("Usage: get <path>\n")
		s.printf("  Example: get mdac.ch01.voltage\n")
		return
	}

	path, err := s.inspector.Resolve(args[0], "")
	if err != nil {
		s.printf("Invalid path: %v\n", err)
		return
	}

	if path.IsPartial {
		// An instrument-only path reads everything it has.
		s.cmdInfo(ctx, []string{path.Instrument})
		return
	}

	value, meta, err := s.inspector.Read(ctx, path)
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	s.printf("%s = %s\n", path.Raw, s.formatter.FormatValue(value, meta.Unit))
}

func (s *Shell) cmdSet(ctx context.Context, args []string) {
	if len(args) < 2 {
		s.printf("Usage: set <path> <value>\n")
		s.printf("  Example: set mdac.ch01.voltage 0.25\n")
		return
	}

	path, err := s.inspector.Resolve(args[0], "")
	if err != nil {
		s.printf("Invalid path: %v\n", err)
		return
	}
	if path.IsPartial {
		s.printf("Error: %s names an instrument, not a parameter\n", args[0])
		return
	}

	if err := s.inspector.Write(ctx, path, parseValue(strings.Join(args[1:], " "))); err != nil {
		s.printf("Write failed: %v\n", err)
		return
	}

	s.printf("OK\n")
}

func (s *Shell) cmdRamp(ctx context.Context, args []string) {
	if len(args) < 2 {
		s.printf("Usage: ramp <path> <target> [rate]\n")
		s.printf("  Example: ramp mdac.ch01.voltage 0.5 0.1\n")
		return
	}

	path, err := s.inspector.Resolve(args[0], "")
	if err != nil {
		s.printf("Invalid path: %v\n", err)
		return
	}
	if path.IsPartial {
		s.printf("Error: %s names an instrument, not a parameter\n", args[0])
		return
	}

	target, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		s.printf("Invalid target: %v\n", err)
		return
	}

	var opts param.RampOptions
	if len(args) > 2 {
		rate, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			s.printf("Invalid rate: %v\n", err)
			return
		}
		opts.Rate = rate
	}

	s.printf("Ramping %s to %v...\n", path.Raw, target)
	start := time.Now()
	if err := s.inspector.Ramp(ctx, path, target, opts); err != nil {
		s.printf("Ramp failed: %v\n", err)
		return
	}
	s.printf("Done (took %s)\n", time.Since(start).Round(time.Millisecond))
}

func (s *Shell) cmdLimits(args []string) {
	if len(args) < 1 {
		s.printf("Usage: limits <path>\n")
		return
	}

	path, err := s.inspector.Resolve(args[0], "")
	if err != nil {
		s.printf("Invalid path: %v\n", err)
		return
	}
	if path.IsPartial {
		s.printf("Error: %s names an instrument, not a parameter\n", args[0])
		return
	}

	p, err := s.st.Parameter(path.Instrument + "." + path.Param)
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}

	meta := p.Metadata()
	s.printf("%s: %s, %s", path.Raw, meta.Kind, inspect.FormatAccess(meta.Access))
	if meta.Unit != "" {
		s.printf(", unit %s", meta.Unit)
	}
	s.printf("\n")

	if meta.Limits != nil {
		s.printf("  limits: %s\n", meta.Limits)
	} else {
		s.printf("  limits: none\n")
	}
	if meta.Rate > 0 {
		s.printf("  ramp rate: %v %s/s\n", meta.Rate, meta.Unit)
	}
	if meta.Step > 0 {
		s.printf("  max step: %v %s\n", meta.Step, meta.Unit)
	}
}

func (s *Shell) cmdMonitor(args []string) {
	sub := "status"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}

	switch sub {
	case "start":
		s.startMonitor()
	case "stop":
		s.stopMonitor(true)
	case "status":
		s.monitorStatus()
	default:
		s.printf("Usage: monitor start|stop|status\n")
	}
}

func (s *Shell) startMonitor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		s.printf("Monitor already running\n")
		return
	}

	monitored := s.st.MonitoredParameters()
	if len(monitored) == 0 {
		s.printf("No monitored parameters in this station\n")
		return
	}

	e := monitor.NewEngine(s.st, monitor.Options{
		Interval: s.interval,
		Logger:   s.logger,
	})
	unsub := e.Subscribe(s.printSample)
	if err := e.Start(context.Background()); err != nil {
		unsub()
		s.printf("Failed to start monitor: %v\n", err)
		return
	}

	s.engine = e
	s.unsub = unsub

	interval := s.interval
	if interval <= 0 {
		interval = monitor.DefaultInterval
	}
	s.printf("Monitor started (%d parameters, every %s)\n", len(monitored), interval)
}

func (s *Shell) stopMonitor(report bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		if report {
			s.printf("Monitor not running\n")
		}
		return
	}

	s.unsub()
	s.engine.Stop()
	dropped := s.engine.Dropped()
	s.engine = nil
	s.unsub = nil

	if report {
		s.printf("Monitor stopped")
		if dropped > 0 {
			s.printf(" (%d samples dropped)", dropped)
		}
		s.printf("\n")
	}
}

func (s *Shell) monitorStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()

	monitored := s.st.MonitoredParameters()
	if s.engine == nil {
		s.printf("Monitor stopped (%d parameters configured)\n", len(monitored))
		return
	}

	interval := s.interval
	if interval <= 0 {
		interval = monitor.DefaultInterval
	}
	s.printf("Monitor running (%d parameters, every %s, %d samples dropped)\n",
		len(monitored), interval, s.engine.Dropped())
}

func (s *Shell) printSample(sample monitor.Sample) {
	ref := sample.Instrument + "." + sample.Parameter
	if sample.Err != nil {
		s.printf("[MON] %s error: %v\n", ref, sample.Err)
		return
	}
	s.printf("[MON] %s = %s\n", ref, s.formatter.FormatValue(sample.Value, sample.Unit))
}

func (s *Shell) cmdSnapshot(ctx context.Context, args []string) {
	sub := ""
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}

	switch sub {
	case "":
		snap, err := s.st.Snapshot(ctx)
		if err != nil {
			s.printf("Error: %v\n", err)
			return
		}
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			s.printf("Error: %v\n", err)
			return
		}
		s.printf("%s\n", data)

	case "save":
		if s.snapshots == nil {
			s.printf("Snapshot directory not configured (start with -snapshot-dir)\n")
			return
		}
		snap, err := s.st.Snapshot(ctx)
		if err != nil {
			s.printf("Error: %v\n", err)
			return
		}
		if err := s.snapshots.SaveSnapshot(snap); err != nil {
			s.printf("Save failed: %v\n", err)
			return
		}
		s.printf("Snapshot saved to %s\n", s.snapshots.Path())

	case "load":
		if s.snapshots == nil {
			s.printf("Snapshot directory not configured (start with -snapshot-dir)\n")
			return
		}
		snap, err := s.snapshots.LoadSnapshot()
		if err != nil {
			s.printf("Load failed: %v\n", err)
			return
		}
		if snap == nil {
			s.printf("No saved snapshot in %s\n", s.snapshots.Path())
			return
		}
		s.printSavedSnapshot(snap)

	default:
		s.printf("Usage: snapshot [save|load]\n")
	}
}

func (s *Shell) printSavedSnapshot(snap *station.Snapshot) {
	s.printf("Snapshot from %s (session %s)\n",
		snap.TakenAt.Format(time.RFC3339), snap.Session)

	ids := make([]string, 0, len(snap.Instruments))
	for id := range snap.Instruments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		inst := snap.Instruments[id]
		s.printf("  %s (%s) @ %s\n", id, inst.Type, inst.Address)

		paths := make([]string, 0, len(inst.Params))
		for path := range inst.Params {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		for _, path := range paths {
			p := inst.Params[path]
			s.printf("    %s = %s\n", path, s.formatter.FormatValue(p.Value, p.Unit))
		}
	}
}

// parseValue interprets a command argument as int, float, bool, then
// string.
func parseValue(raw string) any {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v
	}
	return strings.Trim(raw, "\"'")
}
