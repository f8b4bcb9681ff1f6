package log

import (
	"testing"
	"time"
)

func TestCategoryString(t *testing.T) {
	tests := []struct {
		category Category
		want     string
	}{
		{CategoryConnection, "CONNECTION"},
		{CategoryParameter, "PARAMETER"},
		{CategoryMonitor, "MONITOR"},
		{CategoryState, "STATE"},
		{CategoryError, "ERROR"},
		{Category(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.category.String(); got != tt.want {
			t.Errorf("Category(%d).String() = %q, want %q", tt.category, got, tt.want)
		}
	}
}

func TestConnActionString(t *testing.T) {
	tests := []struct {
		action ConnAction
		want   string
	}{
		{ActionConnect, "CONNECT"},
		{ActionDisconnect, "DISCONNECT"},
		{ActionReconnect, "RECONNECT"},
		{ConnAction(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.action.String(); got != tt.want {
			t.Errorf("ConnAction(%d).String() = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestParamOpString(t *testing.T) {
	tests := []struct {
		op   ParamOp
		want string
	}{
		{OpGet, "GET"},
		{OpSet, "SET"},
		{OpRamp, "RAMP"},
		{OpInit, "INIT"},
		{ParamOp(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("ParamOp(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestStateEntityString(t *testing.T) {
	tests := []struct {
		entity StateEntity
		want   string
	}{
		{StateEntityStation, "STATION"},
		{StateEntityInstrument, "INSTRUMENT"},
		{StateEntityMonitor, "MONITOR"},
		{StateEntity(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.entity.String(); got != tt.want {
			t.Errorf("StateEntity(%d).String() = %q, want %q", tt.entity, got, tt.want)
		}
	}
}

func TestEncodeDecodeConnectionEvent(t *testing.T) {
	event := Event{
		Timestamp:  time.Date(2026, 2, 3, 10, 30, 0, 123456789, time.UTC),
		SessionID:  "3f2c8a1e-0000-0000-0000-000000000001",
		Category:   CategoryConnection,
		Instrument: "mdac",
		Connection: &ConnectionEvent{
			Action:  ActionConnect,
			Driver:  "drivers/mdac",
			Address: "192.168.0.10:7000",
			IDN:     "QNL,MDAC,sim-mdac,1.8",
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, event.Timestamp)
	}
	if decoded.SessionID != event.SessionID {
		t.Errorf("SessionID: got %q, want %q", decoded.SessionID, event.SessionID)
	}
	if decoded.Category != CategoryConnection {
		t.Errorf("Category: got %v, want CategoryConnection", decoded.Category)
	}
	if decoded.Instrument != "mdac" {
		t.Errorf("Instrument: got %q, want mdac", decoded.Instrument)
	}
	if decoded.Connection == nil {
		t.Fatal("Connection payload is nil")
	}
	if decoded.Connection.Action != ActionConnect {
		t.Errorf("Action: got %v, want ActionConnect", decoded.Connection.Action)
	}
	if decoded.Connection.IDN != event.Connection.IDN {
		t.Errorf("IDN: got %q, want %q", decoded.Connection.IDN, event.Connection.IDN)
	}
}

func TestEncodeDecodeParamEvent(t *testing.T) {
	elapsed := 42 * time.Millisecond
	event := Event{
		Timestamp:  time.Now().UTC(),
		SessionID:  "session-1",
		Category:   CategoryParameter,
		Instrument: "mdac",
		Parameter:  "ch01.voltage",
		Param: &ParamEvent{
			Op:      OpSet,
			Value:   1.5,
			Raw:     12.0,
			Unit:    "V",
			Elapsed: &elapsed,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Parameter != "ch01.voltage" {
		t.Errorf("Parameter: got %q, want ch01.voltage", decoded.Parameter)
	}
	if decoded.Param == nil {
		t.Fatal("Param payload is nil")
	}
	if decoded.Param.Op != OpSet {
		t.Errorf("Op: got %v, want OpSet", decoded.Param.Op)
	}
	if v, ok := decoded.Param.Value.(float64); !ok || v != 1.5 {
		t.Errorf("Value: got %v (%T), want 1.5", decoded.Param.Value, decoded.Param.Value)
	}
	if decoded.Param.Elapsed == nil || *decoded.Param.Elapsed != elapsed {
		t.Errorf("Elapsed: got %v, want %v", decoded.Param.Elapsed, elapsed)
	}
}

func TestEncodeDecodeSampleEvent(t *testing.T) {
	event := Event{
		Timestamp:  time.Now().UTC(),
		SessionID:  "session-1",
		Category:   CategoryMonitor,
		Instrument: "fridge",
		Parameter:  "mc_temp",
		Sample:     &SampleEvent{Value: 0.0123, Unit: "K"},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Sample == nil {
		t.Fatal("Sample payload is nil")
	}
	if decoded.Sample.Value != 0.0123 {
		t.Errorf("Value: got %v, want 0.0123", decoded.Sample.Value)
	}
	if decoded.Sample.Unit != "K" {
		t.Errorf("Unit: got %q, want K", decoded.Sample.Unit)
	}
}

func TestEncodeDecodeStateEvent(t *testing.T) {
	event := Event{
		Timestamp: time.Now().UTC(),
		SessionID: "session-1",
		Category:  CategoryState,
		State: &StateEvent{
			Entity:   StateEntityStation,
			OldState: "loading",
			NewState: "loaded",
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.State == nil {
		t.Fatal("State payload is nil")
	}
	if decoded.State.Entity != StateEntityStation {
		t.Errorf("Entity: got %v, want StateEntityStation", decoded.State.Entity)
	}
	if decoded.State.OldState != "loading" || decoded.State.NewState != "loaded" {
		t.Errorf("states: got %q -> %q, want loading -> loaded", decoded.State.OldState, decoded.State.NewState)
	}
}

func TestEncodeDecodeErrorEvent(t *testing.T) {
	event := Event{
		Timestamp:  time.Now().UTC(),
		SessionID:  "session-1",
		Category:   CategoryError,
		Instrument: "fridge",
		Error: &ErrorEvent{
			Message: "connection refused",
			Context: "connect",
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Error == nil {
		t.Fatal("Error payload is nil")
	}
	if decoded.Error.Message != "connection refused" {
		t.Errorf("Message: got %q, want connection refused", decoded.Error.Message)
	}
	if decoded.Error.Context != "connect" {
		t.Errorf("Context: got %q, want connect", decoded.Error.Context)
	}
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	// A minimal event should stay small: optional strings and payloads
	// are omitted entirely.
	minimal := Event{
		Timestamp: time.Now().UTC(),
		SessionID: "s",
		Category:  CategoryState,
		State:     &StateEvent{Entity: StateEntityStation, NewState: "loaded"},
	}
	full := Event{
		Timestamp:  minimal.Timestamp,
		SessionID:  "s",
		Category:   CategoryState,
		Instrument: "mdac",
		Parameter:  "ch01.voltage",
		State: &StateEvent{
			Entity:   StateEntityStation,
			OldState: "loading",
			NewState: "loaded",
			Reason:   "all instruments up",
		},
	}

	minData, err := EncodeEvent(minimal)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	fullData, err := EncodeEvent(full)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	if len(minData) >= len(fullData) {
		t.Errorf("minimal event (%d bytes) not smaller than full event (%d bytes)", len(minData), len(fullData))
	}
}
