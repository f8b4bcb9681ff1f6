package main

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qnlab/station-go/cmd/station-monitor/api"
	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/log"
	"github.com/qnlab/station-go/pkg/monitor"
	"github.com/qnlab/station-go/pkg/station"
	"github.com/qnlab/station-go/pkg/station/rules"
)

// ServerConfig holds configuration for the monitor server.
type ServerConfig struct {
	ConfigPath  string
	Listen      string
	Interval    time.Duration
	HistoryPath string
	DBPath      string
	Version     string

	// Logger receives station and monitor events. Nil disables logging.
	Logger log.Logger

	// Registry supplies instrument drivers. Nil means the default registry.
	Registry *driver.Registry
}

// Server is the HTTP server for the headless station monitor. It owns the
// loaded station and its monitor engine, and swaps both on config reload.
type Server struct {
	config   ServerConfig
	mux      *http.ServeMux
	server   *http.Server
	store    *api.Store
	runsAPI  *api.RunsAPI
	history  *monitor.HistoryStore
	logger   log.Logger
	registry *driver.Registry

	// Per-run sample statistics, reset on every station start.
	sampleCount atomic.Uint64
	errorCount  atomic.Uint64

	valuesMu sync.RWMutex
	latest   map[string]api.Value

	mu      sync.RWMutex
	st      *station.Station
	engine  *monitor.Engine
	unsub   func()
	metrics *prometheus.Registry
	runID   string
	loadErr error
}

// NewServer creates a server, loads the station from cfg.ConfigPath, and
// starts its first monitoring run.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.NoopLogger{}
	}
	if cfg.Registry == nil {
		cfg.Registry = driver.Default()
	}

	store, err := api.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize run store: %w", err)
	}

	var history *monitor.HistoryStore
	if cfg.HistoryPath != "" {
		history, err = monitor.OpenHistory(cfg.HistoryPath)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
	}

	s := &Server{
		config:   cfg,
		mux:      http.NewServeMux(),
		store:    store,
		runsAPI:  api.NewRunsAPI(store),
		history:  history,
		logger:   cfg.Logger,
		registry: cfg.Registry,
		latest:   make(map[string]api.Value),
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:    cfg.Listen,
		Handler: s.mux,
	}

	if err := s.Reload(context.Background()); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/metrics", s.handleMetrics)
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/station", s.handleStation)
	s.mux.HandleFunc("/api/v1/values", s.handleValues)
	s.mux.HandleFunc("/api/v1/history", s.handleHistory)
	s.mux.HandleFunc("/api/v1/runs", s.runsAPI.HandleRuns)
	s.mux.HandleFunc("/api/v1/runs/", s.runsAPI.HandleRunByID)
}

// Reload re-reads the config file and swaps the running station for one
// built from it. When the new config fails to parse or validate, the
// running station stays untouched. When loading fails after the old
// station is closed, the server stays up without a station until the next
// successful reload.
func (s *Server) Reload(ctx context.Context) error {
	cfg, err := station.ParseFile(s.config.ConfigPath)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := s.checkConfig(cfg); err != nil {
		return err
	}

	s.stopStation("")
	return s.startStation(ctx, cfg)
}

// checkConfig runs the rule set against a parsed config. Errors reject the
// config; warnings are logged and let it through.
func (s *Server) checkConfig(cfg *station.Config) error {
	violations := rules.NewDefaultRegistry(s.registry).RunRules(cfg)

	errs := 0
	for _, v := range violations {
		switch v.Severity {
		case station.SeverityError:
			errs++
			stdlog.Printf("Config error: %s", v)
		case station.SeverityWarning:
			stdlog.Printf("Config warning: %s", v)
		}
	}
	if errs > 0 {
		return fmt.Errorf("config invalid: %d errors", errs)
	}
	return nil
}

func (s *Server) startStation(ctx context.Context, cfg *station.Config) error {
	st, err := station.Load(ctx, cfg, station.LoadOptions{
		Registry: s.registry,
		Logger:   s.logger,
	})
	if err != nil {
		s.mu.Lock()
		s.loadErr = err
		s.mu.Unlock()
		return fmt.Errorf("load station: %w", err)
	}

	metrics := prometheus.NewRegistry()
	engine := monitor.NewEngine(st, monitor.Options{
		Interval: s.config.Interval,
		Logger:   s.logger,
		History:  s.history,
		Metrics:  true,
		Registry: metrics,
	})

	s.sampleCount.Store(0)
	s.errorCount.Store(0)
	s.valuesMu.Lock()
	s.latest = make(map[string]api.Value)
	s.valuesMu.Unlock()

	unsub := engine.Subscribe(s.recordSample)
	if err := engine.Start(context.Background()); err != nil {
		unsub()
		st.Close()
		s.mu.Lock()
		s.loadErr = err
		s.mu.Unlock()
		return fmt.Errorf("start monitor: %w", err)
	}

	now := time.Now()
	runID := uuid.New().String()
	interval := s.config.Interval
	if interval <= 0 {
		interval = monitor.DefaultInterval
	}
	if err := s.store.CreateRun(&api.Run{
		ID:         runID,
		ConfigPath: s.config.ConfigPath,
		Interval:   interval.String(),
		Status:     api.RunStatusRunning,
		StartedAt:  &now,
	}); err != nil {
		stdlog.Printf("Failed to record run: %v", err)
	}

	s.mu.Lock()
	s.st = st
	s.engine = engine
	s.unsub = unsub
	s.metrics = metrics
	s.runID = runID
	s.loadErr = nil
	s.mu.Unlock()

	stdlog.Printf("Station loaded: %d instruments, session %s",
		len(st.Instruments()), st.SessionID())
	return nil
}

// stopStation halts the engine, finalises the run row, and closes the
// station. It is a no-op when nothing is running. The metrics registry is
// kept so /metrics serves the last readings until the next start.
func (s *Server) stopStation(errMsg string) {
	s.mu.Lock()
	st, engine, unsub, runID := s.st, s.engine, s.unsub, s.runID
	s.st, s.engine, s.unsub, s.runID = nil, nil, nil, ""
	s.mu.Unlock()

	if engine == nil {
		return
	}

	unsub()
	engine.Stop()

	samples := int(s.sampleCount.Load())
	errors := int(s.errorCount.Load())
	if err := s.store.CompleteRun(runID, samples, errors, errMsg); err != nil {
		stdlog.Printf("Failed to finalise run %s: %v", runID, err)
	}

	if err := st.Close(); err != nil {
		stdlog.Printf("Station close: %v", err)
	}
}

// recordSample tracks run statistics and the latest value per parameter.
// It runs on the engine's subscriber goroutine.
func (s *Server) recordSample(smp monitor.Sample) {
	s.sampleCount.Add(1)

	v := api.Value{
		Instrument: smp.Instrument,
		Parameter:  smp.Parameter,
		Unit:       smp.Unit,
		Time:       smp.Time,
	}
	if smp.Err != nil {
		s.errorCount.Add(1)
		v.Error = smp.Err.Error()
	} else {
		v.Value = smp.Value
	}

	s.valuesMu.Lock()
	s.latest[smp.Instrument+"."+smp.Parameter] = v
	s.valuesMu.Unlock()
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	version := s.config.Version
	if version == "" {
		version = "dev"
	}

	s.mu.RLock()
	st := s.st
	loadErr := s.loadErr
	s.mu.RUnlock()

	resp := map[string]string{
		"status":  "ok",
		"version": version,
	}
	if st != nil {
		resp["session"] = st.SessionID()
	} else {
		resp["status"] = "degraded"
		if loadErr != nil {
			resp["error"] = loadErr.Error()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleStation returns the live station snapshot.
func (s *Server) handleStation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	st := s.st
	s.mu.RUnlock()

	if st == nil {
		writeJSON(w, http.StatusServiceUnavailable, api.ErrorResponse{
			Error: "No station loaded",
		})
		return
	}

	snap, err := st.Snapshot(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{
			Error:   "Snapshot failed",
			Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleValues returns the latest sample of every monitored parameter.
func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.valuesMu.RLock()
	keys := make([]string, 0, len(s.latest))
	for k := range s.latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]api.Value, 0, len(keys))
	for _, k := range keys {
		values = append(values, s.latest[k])
	}
	s.valuesMu.RUnlock()

	writeJSON(w, http.StatusOK, api.ValueListResponse{
		Values: values,
		Total:  len(values),
	})
}

// handleHistory returns persisted samples for one instrument. The range
// defaults to the last hour.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, api.ErrorResponse{
			Error: "History not enabled",
		})
		return
	}

	q := r.URL.Query()
	instrument := q.Get("instrument")
	if instrument == "" {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{
			Error: "Instrument is required",
		})
		return
	}

	to := time.Now()
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, api.ErrorResponse{
				Error:   "Invalid to timestamp",
				Details: err.Error(),
			})
			return
		}
		to = t
	}
	from := to.Add(-time.Hour)
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, api.ErrorResponse{
				Error:   "Invalid from timestamp",
				Details: err.Error(),
			})
			return
		}
		from = t
	}

	samples, err := s.history.Range(instrument, from, to)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{
			Error:   "History query failed",
			Details: err.Error(),
		})
		return
	}

	points := make([]api.HistoryPoint, 0, len(samples))
	for _, smp := range samples {
		points = append(points, api.HistoryPoint{
			Time:      smp.Time,
			Parameter: smp.Parameter,
			Value:     smp.Value,
			Unit:      smp.Unit,
		})
	}

	writeJSON(w, http.StatusOK, api.HistoryResponse{
		Instrument: instrument,
		From:       from,
		To:         to,
		Points:     points,
		Total:      len(points),
	})
}

// handleMetrics serves the current engine's prometheus registry.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	reg := s.metrics
	s.mu.RUnlock()

	if reg == nil {
		http.Error(w, "Metrics not ready", http.StatusServiceUnavailable)
		return
	}

	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Close stops the monitoring run and releases the stores.
func (s *Server) Close() error {
	s.stopStation("")
	if s.history != nil {
		s.history.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
