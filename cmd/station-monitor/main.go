// Command station-monitor runs a headless monitoring service over a
// station configuration.
//
// It loads the station, samples every monitored parameter on a fixed
// interval, and serves the readings over HTTP:
//   - prometheus metrics on /metrics
//   - JSON API under /api/v1 (station snapshot, latest values, history,
//     monitoring runs)
//   - SQLite bookkeeping of monitoring runs
//   - optional reload when the config file changes on disk
//
// Usage:
//
//	station-monitor -config station.yaml [flags]
//
// Flags:
//
//	-config string     Station config YAML (required)
//	-listen string     HTTP listen address (default ":9090")
//	-interval duration Sampling interval (default 1s)
//	-history string    bbolt history database path (empty disables history)
//	-db string         SQLite run database path (default "./station-monitor.db")
//	-log-file string   CBOR event log path (empty disables)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-watch             Reload when the config file changes
//
// Examples:
//
//	# Monitor a station with history and metrics
//	station-monitor -config station.yaml -history history.db
//
//	# Fast sampling, reload on config edits
//	station-monitor -config station.yaml -interval 250ms -watch
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qnlab/station-go/pkg/log"
	"github.com/qnlab/station-go/pkg/monitor"

	_ "github.com/qnlab/station-go/pkg/instruments"
)

// Version information - set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "dev"
	GitCommit = "unknown"
)

var (
	configFile  = flag.String("config", "", "Station config YAML (required)")
	listen      = flag.String("listen", ":9090", "HTTP listen address")
	interval    = flag.Duration("interval", monitor.DefaultInterval, "Sampling interval")
	historyPath = flag.String("history", "", "bbolt history database path (empty disables history)")
	dbPath      = flag.String("db", "./station-monitor.db", "SQLite run database path")
	logFile     = flag.String("log-file", "", "CBOR event log path (empty disables)")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	watch       = flag.Bool("watch", false, "Reload when the config file changes")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("station-monitor %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		return 0
	}

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -config is required")
		flag.Usage()
		return 1
	}

	// Configure logging
	stdlog.SetFlags(stdlog.Ldate | stdlog.Ltime)
	if *logLevel == "debug" {
		stdlog.SetFlags(stdlog.Ldate | stdlog.Ltime | stdlog.Lmicroseconds | stdlog.Lshortfile)
	}

	eventLogger, closeLogger := buildEventLogger()
	defer closeLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := NewServer(ServerConfig{
		ConfigPath:  *configFile,
		Listen:      *listen,
		Interval:    *interval,
		HistoryPath: *historyPath,
		DBPath:      *dbPath,
		Version:     Version,
		Logger:      eventLogger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create server: %v\n", err)
		return 1
	}
	defer srv.Close()

	if *watch {
		if err := srv.WatchConfig(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to watch config: %v\n", err)
			return 1
		}
	}

	// Shut down on SIGINT/SIGTERM so the run row gets finalised.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		stdlog.Println("Shutting down...")
		cancel()
		shutCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutCtx)
	}()

	stdlog.Printf("Starting station monitor on %s", *listen)
	stdlog.Printf("Config: %s", *configFile)
	stdlog.Printf("Run database: %s", *dbPath)
	if *historyPath != "" {
		stdlog.Printf("History: %s", *historyPath)
	}
	if *watch {
		stdlog.Printf("Watching %s for changes", *configFile)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "Error: server failed: %v\n", err)
		return 1
	}

	return 0
}

// buildEventLogger assembles the event logger from -log-file and
// -log-level. The returned closer flushes the file logger.
func buildEventLogger() (log.Logger, func()) {
	var loggers []log.Logger
	closer := func() {}

	if *logFile != "" {
		fl, err := log.NewFileLogger(*logFile)
		if err != nil {
			stdlog.Fatalf("Failed to open log file: %v", err)
		}
		loggers = append(loggers, fl)
		closer = func() { _ = fl.Close() }
	}

	if *logLevel == "debug" {
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
