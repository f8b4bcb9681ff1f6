package log

import (
	"time"
)

// Event represents one record of station activity.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the station run (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// Instrument is the instrument ID the event concerns, if any.
	Instrument string `cbor:"4,keyasint,omitempty"`

	// Parameter is the parameter path the event concerns, if any.
	Parameter string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Connection *ConnectionEvent `cbor:"10,keyasint,omitempty"` // Connect/disconnect
	Param      *ParamEvent      `cbor:"11,keyasint,omitempty"` // Get/set/ramp
	Sample     *SampleEvent     `cbor:"12,keyasint,omitempty"` // Monitor samples
	State      *StateEvent      `cbor:"13,keyasint,omitempty"` // Lifecycle
	Error      *ErrorEvent      `cbor:"14,keyasint,omitempty"` // Errors anywhere
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryConnection indicates an instrument connection event.
	CategoryConnection Category = 0
	// CategoryParameter indicates a parameter operation (get/set/ramp).
	CategoryParameter Category = 1
	// CategoryMonitor indicates a periodic monitor sample.
	CategoryMonitor Category = 2
	// CategoryState indicates a lifecycle state change.
	CategoryState Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryConnection:
		return "CONNECTION"
	case CategoryParameter:
		return "PARAMETER"
	case CategoryMonitor:
		return "MONITOR"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ConnectionEvent captures an instrument connect or disconnect.
type ConnectionEvent struct {
	// Action is what happened to the connection.
	Action ConnAction `cbor:"1,keyasint"`

	// Driver is the driver path (e.g. "drivers/mdac").
	Driver string `cbor:"2,keyasint,omitempty"`

	// Address is the endpoint the instrument was reached at.
	Address string `cbor:"3,keyasint,omitempty"`

	// IDN is the identification string reported by the instrument.
	IDN string `cbor:"4,keyasint,omitempty"`
}

// ConnAction indicates the kind of connection event.
type ConnAction uint8

const (
	// ActionConnect indicates a successful connect.
	ActionConnect ConnAction = 0
	// ActionDisconnect indicates a disconnect.
	ActionDisconnect ConnAction = 1
	// ActionReconnect indicates an automatic close-and-replace.
	ActionReconnect ConnAction = 2
)

// String returns the action name.
func (a ConnAction) String() string {
	switch a {
	case ActionConnect:
		return "CONNECT"
	case ActionDisconnect:
		return "DISCONNECT"
	case ActionReconnect:
		return "RECONNECT"
	default:
		return "UNKNOWN"
	}
}

// ParamEvent captures a parameter operation.
type ParamEvent struct {
	// Op distinguishes get/set/ramp/init.
	Op ParamOp `cbor:"1,keyasint"`

	// Value is the user-facing value (after scaling).
	Value any `cbor:"2,keyasint,omitempty"`

	// Raw is the raw instrument value when it differs from Value.
	Raw any `cbor:"3,keyasint,omitempty"`

	// Unit is the unit of Value.
	Unit string `cbor:"4,keyasint,omitempty"`

	// Elapsed is the operation duration. Stored as nanoseconds.
	Elapsed *time.Duration `cbor:"5,keyasint,omitempty"`
}

// ParamOp distinguishes parameter operations.
type ParamOp uint8

const (
	// OpGet indicates a read.
	OpGet ParamOp = 0
	// OpSet indicates a write.
	OpSet ParamOp = 1
	// OpRamp indicates a stepped write.
	OpRamp ParamOp = 2
	// OpInit indicates an initial value applied at load time.
	OpInit ParamOp = 3
)

// String returns the operation name.
func (o ParamOp) String() string {
	switch o {
	case OpGet:
		return "GET"
	case OpSet:
		return "SET"
	case OpRamp:
		return "RAMP"
	case OpInit:
		return "INIT"
	default:
		return "UNKNOWN"
	}
}

// SampleEvent captures one periodic monitor reading.
type SampleEvent struct {
	// Value is the sampled value.
	Value float64 `cbor:"1,keyasint"`

	// Unit is the unit of Value.
	Unit string `cbor:"2,keyasint,omitempty"`
}

// StateEvent captures station and instrument lifecycle changes.
type StateEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityStation indicates a station state change.
	StateEntityStation StateEntity = 0
	// StateEntityInstrument indicates an instrument state change.
	StateEntityInstrument StateEntity = 1
	// StateEntityMonitor indicates a monitor engine state change.
	StateEntityMonitor StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityStation:
		return "STATION"
	case StateEntityInstrument:
		return "INSTRUMENT"
	case StateEntityMonitor:
		return "MONITOR"
	default:
		return "UNKNOWN"
	}
}

// ErrorEvent captures errors from any stage.
type ErrorEvent struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
