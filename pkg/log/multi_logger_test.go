package log

import (
	"sync"
	"testing"
	"time"
)

// countingLogger records how many events it has seen.
type countingLogger struct {
	mu    sync.Mutex
	count int
	last  Event
}

func (c *countingLogger) Log(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	c.last = event
}

func TestMultiLoggerFansOut(t *testing.T) {
	a := &countingLogger{}
	b := &countingLogger{}
	multi := NewMultiLogger(a, b)

	event := Event{
		Timestamp:  time.Now().UTC(),
		SessionID:  "session-1",
		Category:   CategoryConnection,
		Instrument: "mdac",
		Connection: &ConnectionEvent{Action: ActionConnect},
	}
	multi.Log(event)
	multi.Log(event)

	if a.count != 2 || b.count != 2 {
		t.Errorf("counts = %d, %d, want 2, 2", a.count, b.count)
	}
	if a.last.Instrument != "mdac" {
		t.Errorf("last event Instrument = %q, want mdac", a.last.Instrument)
	}
}

func TestMultiLoggerEmpty(t *testing.T) {
	multi := NewMultiLogger()
	// Must not panic with no targets.
	multi.Log(Event{Timestamp: time.Now().UTC(), SessionID: "s", Category: CategoryError})
}
