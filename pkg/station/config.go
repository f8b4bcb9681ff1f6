// Package station loads and validates declarative instrument station
// configurations.
//
// A station file is a YAML document with a top-level "instruments" mapping.
// Each entry names an instrument, the driver that serves it, how to reach
// it, and optional parameter tweaks: overrides of driver parameters and new
// derived parameters that delegate to a source parameter through a scale.
package station

import (
	"github.com/qnlab/station-go/pkg/param"
)

// KeyAt records a configuration key and its source line, used to report
// unknown keys with a location.
type KeyAt struct {
	Key  string
	Line int
}

// Param is a parameter entry in an instrument block. Entries under
// add_parameters carry a Source; entries under parameters refer to an
// existing driver parameter by name.
type Param struct {
	// Name is the parameter name (map key). For overrides it may be a
	// dotted path into a channel ("ch01.voltage").
	Name string

	// Source is the driver parameter a derived parameter delegates to.
	// Only valid under add_parameters.
	Source string

	// Label overrides the display label.
	Label string

	// Unit overrides the display unit.
	Unit string

	// Scale divides the raw value on read and multiplies on write.
	// Nil means unchanged (1 for new parameters).
	Scale *float64

	// Limits bound the user-facing value. Nil means unchanged.
	Limits *param.Limits

	// Monitor marks the parameter for periodic monitoring. Nil means
	// unchanged.
	Monitor *bool

	// InitialValue is written to the parameter after connecting.
	InitialValue any

	// Line is the source line of the entry (1-based).
	Line int
}

// InitialFloat returns the initial value coerced to float64, when the
// entry has a numeric initial value.
func (p *Param) InitialFloat() (float64, bool) {
	if p.InitialValue == nil {
		return 0, false
	}
	return toFloat(p.InitialValue)
}

// Instrument is one entry of the top-level instruments mapping.
type Instrument struct {
	// ID is the instrument identifier (map key).
	ID string

	// Driver is the driver path (e.g. "drivers/mdac").
	Driver string

	// Type is the optional declared instrument type, checked against the
	// driver catalog.
	Type string

	// Address is the connection endpoint.
	Address string

	// Port is the network port when Address is a bare host.
	Port int

	// AutoReconnect allows a later load of the same ID to replace the
	// live instrument instead of failing.
	AutoReconnect bool

	// Init holds driver constructor keyword arguments.
	Init map[string]any

	// AddParams are new derived parameters, in file order.
	AddParams []*Param

	// Overrides are tweaks to existing driver parameters, in file order.
	Overrides []*Param

	// Unknown lists unrecognized keys in the instrument block.
	Unknown []KeyAt

	// Line is the source line of the entry (1-based).
	Line int
}

// Params returns AddParams followed by Overrides, preserving file order
// within each group.
func (i *Instrument) Params() []*Param {
	out := make([]*Param, 0, len(i.AddParams)+len(i.Overrides))
	out = append(out, i.AddParams...)
	out = append(out, i.Overrides...)
	return out
}

// Config is a parsed station configuration.
type Config struct {
	// Instruments holds the entries in file order.
	Instruments []*Instrument

	// Unknown lists unrecognized top-level keys.
	Unknown []KeyAt

	// Path is the source file path, empty when parsed from memory.
	Path string

	byID map[string]*Instrument
}

// Instrument returns the entry with the given ID.
func (c *Config) Instrument(id string) (*Instrument, bool) {
	inst, ok := c.byID[id]
	return inst, ok
}

// IDs returns the instrument IDs in file order.
func (c *Config) IDs() []string {
	ids := make([]string, len(c.Instruments))
	for i, inst := range c.Instruments {
		ids[i] = inst.ID
	}
	return ids
}
