package log

import (
	"testing"
	"time"
)

func TestNoopLogger(t *testing.T) {
	var logger NoopLogger

	// Must accept events without panicking.
	logger.Log(Event{
		Timestamp: time.Now().UTC(),
		SessionID: "session-1",
		Category:  CategoryState,
		State:     &StateEvent{Entity: StateEntityStation, NewState: "loaded"},
	})
	logger.Log(Event{})
}
