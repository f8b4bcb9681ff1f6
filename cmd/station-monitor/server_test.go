package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/qnlab/station-go/cmd/station-monitor/api"
	"github.com/qnlab/station-go/internal/stationtest"
	"github.com/qnlab/station-go/pkg/station"
)

func writeStationConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newTestServer builds a server over the mock driver fleet with a fast
// sampling interval and an in-memory run store.
func newTestServer(t *testing.T, tweak func(*ServerConfig)) (*Server, *stationtest.Fleet, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "station.yaml")
	writeStationConfig(t, path, stationtest.OneInstrument)

	reg, fleet := stationtest.NewRegistry()
	cfg := ServerConfig{
		ConfigPath: path,
		Listen:     "127.0.0.1:0",
		Interval:   20 * time.Millisecond,
		DBPath:     ":memory:",
		Version:    "1.0.0-test",
		Registry:   reg,
	}
	if tweak != nil {
		tweak(&cfg)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	return srv, fleet, path
}

func doRequest(srv *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	return w
}

func pollUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	w := doRequest(srv, http.MethodGet, "/api/v1/health")

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("Expected status 'ok', got %q", resp["status"])
	}

	if resp["version"] != "1.0.0-test" {
		t.Errorf("Expected version '1.0.0-test', got %q", resp["version"])
	}

	if resp["session"] == "" {
		t.Error("Expected a session id")
	}
}

func TestHealthEndpointMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	w := doRequest(srv, http.MethodPost, "/api/v1/health")

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestStationEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	w := doRequest(srv, http.MethodGet, "/api/v1/station")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var snap station.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Failed to parse snapshot: %v", err)
	}

	inst, ok := snap.Instruments["probe"]
	if !ok {
		t.Fatalf("Expected instrument 'probe' in snapshot, got %v", snap.Instruments)
	}

	if inst.Type != "MOCK" {
		t.Errorf("Expected type 'MOCK', got %q", inst.Type)
	}

	if _, ok := inst.Params["level"]; !ok {
		t.Error("Expected parameter 'level' in snapshot")
	}
}

func TestValuesEndpoint(t *testing.T) {
	srv, fleet, _ := newTestServer(t, nil)

	fleet.Source("probe").SetValue(2.5)

	var last api.ValueListResponse
	pollUntil(t, 5*time.Second, func() bool {
		w := doRequest(srv, http.MethodGet, "/api/v1/values")
		if w.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(w.Body.Bytes(), &last); err != nil {
			return false
		}
		for _, v := range last.Values {
			if v.Instrument == "probe" && v.Parameter == "level" && v.Value == 2.5 {
				return true
			}
		}
		return false
	}, "timed out waiting for probe.level = 2.5 in /api/v1/values")

	if last.Total != len(last.Values) {
		t.Errorf("Expected total %d, got %d", len(last.Values), last.Total)
	}
}

func TestValuesEndpointReportsReadErrors(t *testing.T) {
	srv, fleet, _ := newTestServer(t, nil)

	fleet.Source("probe").Fail(errors.New("sensor offline"))

	pollUntil(t, 5*time.Second, func() bool {
		w := doRequest(srv, http.MethodGet, "/api/v1/values")
		if w.Code != http.StatusOK {
			return false
		}
		var resp api.ValueListResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			return false
		}
		for _, v := range resp.Values {
			if v.Instrument == "probe" && v.Error != "" {
				return true
			}
		}
		return false
	}, "timed out waiting for a failed read in /api/v1/values")
}

func TestHistoryEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, func(cfg *ServerConfig) {
		cfg.HistoryPath = filepath.Join(t.TempDir(), "history.db")
	})

	var resp api.HistoryResponse
	pollUntil(t, 5*time.Second, func() bool {
		w := doRequest(srv, http.MethodGet, "/api/v1/history?instrument=probe")
		if w.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			return false
		}
		return resp.Total > 0
	}, "timed out waiting for history points")

	if resp.Instrument != "probe" {
		t.Errorf("Expected instrument 'probe', got %q", resp.Instrument)
	}

	if resp.Points[0].Parameter != "level" {
		t.Errorf("Expected parameter 'level', got %q", resp.Points[0].Parameter)
	}

	if !resp.To.After(resp.From) {
		t.Errorf("Expected from < to, got %v .. %v", resp.From, resp.To)
	}
}

func TestHistoryEndpointRequiresInstrument(t *testing.T) {
	srv, _, _ := newTestServer(t, func(cfg *ServerConfig) {
		cfg.HistoryPath = filepath.Join(t.TempDir(), "history.db")
	})

	w := doRequest(srv, http.MethodGet, "/api/v1/history")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestHistoryEndpointDisabled(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	w := doRequest(srv, http.MethodGet, "/api/v1/history?instrument=probe")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestRunsEndpoint(t *testing.T) {
	srv, _, path := newTestServer(t, nil)

	w := doRequest(srv, http.MethodGet, "/api/v1/runs")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp api.RunListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp.Total != 1 {
		t.Fatalf("Expected 1 run, got %d", resp.Total)
	}

	run := resp.Runs[0]
	if run.Status != api.RunStatusRunning {
		t.Errorf("Expected status 'running', got %q", run.Status)
	}
	if run.ConfigPath != path {
		t.Errorf("Expected config path %q, got %q", path, run.ConfigPath)
	}
	if run.Interval != "20ms" {
		t.Errorf("Expected interval '20ms', got %q", run.Interval)
	}

	// Fetch the same run by id
	w = doRequest(srv, http.MethodGet, "/api/v1/runs/"+run.ID)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for run %s, got %d", run.ID, w.Code)
	}

	w = doRequest(srv, http.MethodGet, "/api/v1/runs/does-not-exist")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestReloadSwapsStation(t *testing.T) {
	srv, _, path := newTestServer(t, nil)

	// Make sure the first run has recorded at least one sample.
	pollUntil(t, 5*time.Second, func() bool {
		return srv.sampleCount.Load() > 0
	}, "timed out waiting for the first sample")

	writeStationConfig(t, path, stationtest.TwoInstruments)

	if err := srv.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	w := doRequest(srv, http.MethodGet, "/api/v1/station")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var snap station.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Failed to parse snapshot: %v", err)
	}
	if _, ok := snap.Instruments["probe"]; !ok {
		t.Error("Expected instrument 'probe' after reload")
	}
	if _, ok := snap.Instruments["pump"]; !ok {
		t.Error("Expected instrument 'pump' after reload")
	}

	// One completed run, one running
	w = doRequest(srv, http.MethodGet, "/api/v1/runs")
	var runs api.RunListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &runs); err != nil {
		t.Fatalf("Failed to parse runs: %v", err)
	}
	if runs.Total != 2 {
		t.Fatalf("Expected 2 runs, got %d", runs.Total)
	}

	var running, completed int
	for _, run := range runs.Runs {
		switch run.Status {
		case api.RunStatusRunning:
			running++
		case api.RunStatusCompleted:
			completed++
			if run.SampleCount == 0 {
				t.Error("Expected the completed run to have samples")
			}
			if run.CompletedAt == nil {
				t.Error("Expected the completed run to have a completion time")
			}
		}
	}
	if running != 1 || completed != 1 {
		t.Errorf("Expected 1 running and 1 completed run, got %d/%d", running, completed)
	}
}

func TestReloadRejectsUnparsableConfig(t *testing.T) {
	srv, _, path := newTestServer(t, nil)

	writeStationConfig(t, path, "instruments: [not a map\n")

	if err := srv.Reload(context.Background()); err == nil {
		t.Fatal("Expected reload to fail on an unparsable config")
	}

	// The old station stays live
	w := doRequest(srv, http.MethodGet, "/api/v1/station")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "probe") {
		t.Error("Expected the previous station to keep serving")
	}

	w = doRequest(srv, http.MethodGet, "/api/v1/runs")
	var runs api.RunListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &runs); err != nil {
		t.Fatalf("Failed to parse runs: %v", err)
	}
	if runs.Total != 1 {
		t.Errorf("Expected the original run to keep running, got %d runs", runs.Total)
	}
}

func TestReloadRejectsInvalidConfig(t *testing.T) {
	srv, _, path := newTestServer(t, nil)

	writeStationConfig(t, path, `
instruments:
  ghost:
    driver: drivers/nope
    address: 127.0.0.1
`)

	if err := srv.Reload(context.Background()); err == nil {
		t.Fatal("Expected reload to fail on an unknown driver")
	}

	w := doRequest(srv, http.MethodGet, "/api/v1/station")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "probe") {
		t.Error("Expected the previous station to keep serving")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	pollUntil(t, 5*time.Second, func() bool {
		w := doRequest(srv, http.MethodGet, "/metrics")
		return w.Code == http.StatusOK &&
			strings.Contains(w.Body.String(), "station_parameter_value")
	}, "timed out waiting for the parameter gauge on /metrics")

	w := doRequest(srv, http.MethodGet, "/metrics")
	if !strings.Contains(w.Body.String(), "station_monitor_scrape_errors_total") {
		t.Error("Expected the scrape error counter on /metrics")
	}
}

func TestWatchConfigReloads(t *testing.T) {
	srv, _, path := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.WatchConfig(ctx); err != nil {
		t.Fatalf("Failed to watch config: %v", err)
	}

	writeStationConfig(t, path, stationtest.TwoInstruments)

	pollUntil(t, 10*time.Second, func() bool {
		w := doRequest(srv, http.MethodGet, "/api/v1/station")
		return w.Code == http.StatusOK && strings.Contains(w.Body.String(), "pump")
	}, "timed out waiting for the watcher to reload the config")
}
