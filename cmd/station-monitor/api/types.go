// Package api provides the HTTP API types, handlers, and the run store
// for the station monitor.
package api

import "time"

// Run represents one monitoring run in API responses. A run spans the
// lifetime of a monitor engine: it starts when the station is loaded and
// completes when the engine stops, on shutdown or config reload.
type Run struct {
	ID          string     `json:"id"`
	ConfigPath  string     `json:"config_path"`
	Interval    string     `json:"interval,omitempty"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	SampleCount int        `json:"sample_count"`
	ErrorCount  int        `json:"error_count"`
	Duration    string     `json:"duration,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// RunListResponse is the response for GET /api/v1/runs.
type RunListResponse struct {
	Runs  []Run `json:"runs"`
	Total int   `json:"total"`
}

// Value is the latest reading of one monitored parameter.
type Value struct {
	Instrument string    `json:"instrument"`
	Parameter  string    `json:"parameter"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	Time       time.Time `json:"time"`
	Error      string    `json:"error,omitempty"`
}

// ValueListResponse is the response for GET /api/v1/values.
type ValueListResponse struct {
	Values []Value `json:"values"`
	Total  int     `json:"total"`
}

// HistoryPoint is one persisted sample in API responses.
type HistoryPoint struct {
	Time      time.Time `json:"time"`
	Parameter string    `json:"parameter"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
}

// HistoryResponse is the response for GET /api/v1/history.
type HistoryResponse struct {
	Instrument string         `json:"instrument"`
	From       time.Time      `json:"from"`
	To         time.Time      `json:"to"`
	Points     []HistoryPoint `json:"points"`
	Total      int            `json:"total"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RunStatus constants.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
