package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func connectEvent(session, instrument string) Event {
	return Event{
		Timestamp:  time.Now().UTC(),
		SessionID:  session,
		Category:   CategoryConnection,
		Instrument: instrument,
		Connection: &ConnectionEvent{Action: ActionConnect, Driver: "drivers/mdac"},
	}
}

func TestFileLoggerCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.stlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestFileLoggerWritesDecodableEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.stlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	logger.Log(connectEvent("session-1", "mdac"))
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("log file is empty")
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if decoded.Instrument != "mdac" {
		t.Errorf("Instrument: got %q, want mdac", decoded.Instrument)
	}
	if decoded.Connection == nil || decoded.Connection.Action != ActionConnect {
		t.Errorf("Connection payload wrong: %+v", decoded.Connection)
	}
}

func TestFileLoggerAppendsAcrossReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.stlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(connectEvent("session-1", "mdac"))
	logger.Close()

	logger, err = NewFileLogger(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	logger.Log(connectEvent("session-2", "lockin"))
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	dec := NewDecoder(bytes.NewReader(data))
	var sessions []string
	for {
		var e Event
		if err := dec.Decode(&e); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Decode failed: %v", err)
		}
		sessions = append(sessions, e.SessionID)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d events, want 2", len(sessions))
	}
	if sessions[0] != "session-1" || sessions[1] != "session-2" {
		t.Errorf("sessions = %v, want [session-1 session-2]", sessions)
	}
}

func TestFileLoggerThreadSafe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.stlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	const goroutines = 10
	const eventsEach = 100

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < eventsEach; i++ {
				logger.Log(Event{
					Timestamp:  time.Now().UTC(),
					SessionID:  "session-1",
					Category:   CategoryMonitor,
					Instrument: fmt.Sprintf("inst-%d", g),
					Parameter:  "value",
					Sample:     &SampleEvent{Value: float64(i)},
				})
			}
		}(g)
	}
	wg.Wait()
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	dec := NewDecoder(bytes.NewReader(data))
	count := 0
	for {
		var e Event
		if err := dec.Decode(&e); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Decode failed at event %d: %v", count, err)
		}
		count++
	}
	if count != goroutines*eventsEach {
		t.Errorf("got %d events, want %d", count, goroutines*eventsEach)
	}
}

func TestFileLoggerDoubleClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.stlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestFileLoggerLogAfterClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.stlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Close()

	// Must not panic.
	logger.Log(connectEvent("session-1", "mdac"))
}
