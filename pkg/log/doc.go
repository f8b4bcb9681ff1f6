// Package log provides structured activity logging for stations.
//
// This package defines the Logger interface and Event types for capturing
// station-level activity: connections, parameter operations, monitor
// samples and state changes. It is separate from operational logging
// (slog) - activity capture provides a complete machine-readable record of
// what the station did to the instruments, for debugging and provenance.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	opts.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	opts.Logger, _ = log.NewFileLogger("/var/log/station/run.stlog")
//
//	// Both: use MultiLogger
//	opts.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    log.NewFileLogger("/var/log/station/run.stlog"),
//	)
//
// # Event Types
//
// Events carry one payload matching their category:
//   - Connection: instrument connect/disconnect (ConnectionEvent)
//   - Parameter: get/set/ramp operations (ParamEvent)
//   - Monitor: periodic samples (SampleEvent)
//   - State: station and instrument lifecycle (StateEvent)
//
// Errors have a dedicated event type usable at any point.
//
// # File Format
//
// Log files use CBOR encoding with .stlog extension. The station-log CLI
// tool provides viewing, filtering, and export capabilities.
package log
