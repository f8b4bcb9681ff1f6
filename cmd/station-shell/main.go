// Command station-shell loads a station configuration and drops into an
// interactive prompt over the live instruments.
//
// The shell reads and writes parameters by dotted path, ramps setpoints,
// runs the monitor over the configured parameters, and saves snapshots of
// the station state.
//
// Usage:
//
//	station-shell -config station.yaml [flags]
//
// Flags:
//
//	-config string        Station configuration file (required)
//	-instruments string   Comma-separated instrument IDs to load (default: all)
//	-skip-initial         Do not write initial_value entries after connecting
//	-log-file string      Append station events to this CBOR log file
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-snapshot-dir string  Directory for snapshot save/load
//	-sim-interval duration Drift writable monitored parameters at this interval
//
// Examples:
//
//	# Load the full station
//	station-shell -config station.yaml
//
//	# Load two instruments and keep an event log
//	station-shell -config station.yaml -instruments mdac,lockin -log-file run.cbor
//
//	# Exercise the monitor against drifting values
//	station-shell -config station.yaml -sim-interval 2s -snapshot-dir ./state
package main

import (
	"context"
	"flag"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/qnlab/station-go/cmd/station-shell/interactive"
	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/log"
	"github.com/qnlab/station-go/pkg/station"
	"github.com/qnlab/station-go/pkg/station/rules"

	_ "github.com/qnlab/station-go/pkg/instruments"
)

// Config holds the shell configuration.
type Config struct {
	ConfigFile  string
	Instruments string
	SkipInitial bool
	LogFile     string
	LogLevel    string
	SnapshotDir string
	SimInterval time.Duration
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "Station configuration file (required)")
	flag.StringVar(&config.Instruments, "instruments", "", "Comma-separated instrument IDs to load (default: all)")
	flag.BoolVar(&config.SkipInitial, "skip-initial", false, "Do not write initial_value entries after connecting")
	flag.StringVar(&config.LogFile, "log-file", "", "Append station events to this CBOR log file")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.SnapshotDir, "snapshot-dir", "", "Directory for snapshot save/load")
	flag.DurationVar(&config.SimInterval, "sim-interval", 0, "Drift writable monitored parameters at this interval (0 disables)")
}

func main() {
	flag.Parse()

	if config.ConfigFile == "" {
		stdlog.Fatal("station-shell: -config is required")
	}

	setupLogging(config.LogLevel)

	stdlog.Println("Station Shell")
	stdlog.Printf("Config: %s", config.ConfigFile)

	cfg, err := station.ParseFile(config.ConfigFile)
	if err != nil {
		stdlog.Fatalf("Failed to parse configuration: %v", err)
	}
	checkConfig(cfg)

	eventLogger, closeLogger := buildEventLogger()
	defer closeLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := station.LoadOptions{
		Logger:            eventLogger,
		SkipInitialValues: config.SkipInitial,
	}
	if config.Instruments != "" {
		for _, id := range strings.Split(config.Instruments, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.OnlyInstruments = append(opts.OnlyInstruments, id)
			}
		}
	}

	st, err := station.Load(ctx, cfg, opts)
	if err != nil {
		stdlog.Fatalf("Failed to load station: %v", err)
	}
	defer st.Close()

	stdlog.Printf("Loaded %d instruments (session %s)", len(st.Instruments()), st.SessionID())

	if config.SimInterval > 0 {
		go runSimulation(ctx, st, config.SimInterval)
	}

	shell, err := interactive.New(st, interactive.Options{
		SnapshotDir: config.SnapshotDir,
		Logger:      eventLogger,
	})
	if err != nil {
		stdlog.Fatalf("Failed to start shell: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	shell.Run(ctx, cancel)

	stdlog.Println("Goodbye!")
}

func setupLogging(level string) {
	switch level {
	case "debug":
		stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds | stdlog.Lshortfile)
	case "info":
		stdlog.SetFlags(stdlog.Ltime)
	case "warn", "error":
		stdlog.SetFlags(0)
	default:
		stdlog.Fatalf("Unknown log level: %s", level)
	}
}

// checkConfig runs the full rule set and refuses to load a configuration
// with errors. Warnings are printed and loading continues.
func checkConfig(cfg *station.Config) {
	registry := rules.NewDefaultRegistry(driver.Default())
	result := station.NewValidator().ValidateWithOptions(cfg, station.ValidateOptions{
		Registry:    registry,
		MinSeverity: station.SeverityWarning,
	})

	for _, w := range result.Warnings {
		stdlog.Printf("WARNING %s: %s", w.Code, w.Message)
	}
	if !result.Valid {
		for _, e := range result.Errors {
			stdlog.Printf("ERROR %s: %s", e.Code, e.Message)
		}
		stdlog.Fatalf("Invalid station configuration (%d errors)", len(result.Errors))
	}
}

// buildEventLogger assembles the station event logger from the flags: a
// CBOR file log when -log-file is set, an slog echo at debug level.
func buildEventLogger() (log.Logger, func()) {
	var loggers []log.Logger
	closer := func() {}

	if config.LogFile != "" {
		fl, err := log.NewFileLogger(config.LogFile)
		if err != nil {
			stdlog.Fatalf("Failed to open log file: %v", err)
		}
		loggers = append(loggers, fl)
		closer = func() { _ = fl.Close() }
	}

	if config.LogLevel == "debug" {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		loggers = append(loggers, log.NewSlogAdapter(slog.New(handler)))
	}

	switch len(loggers) {
	case 0:
		return log.NoopLogger{}, closer
	case 1:
		return loggers[0], closer
	default:
		return log.NewMultiLogger(loggers...), closer
	}
}
