// Package stationtest provides a controllable mock driver and station
// helpers for tests across packages. The mock driver registers as
// "drivers/mock" and exposes a monitored read-only "level" parameter backed
// by a scriptable Source, plus a writable "setpoint".
package stationtest

import (
	"context"
	"sync"
	"testing"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/param"
	"github.com/qnlab/station-go/pkg/station"
)

// Source is the scriptable backing value behind a mock instrument's
// "level" parameter.
type Source struct {
	mu    sync.Mutex
	value float64
	err   error
	reads int
}

// SetValue sets the value the next reads return.
func (s *Source) SetValue(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
}

// Fail makes subsequent reads return err. Pass nil to heal.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Reads returns how many reads have been served (including failed ones).
func (s *Source) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *Source) read(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	return s.value, nil
}

// MockInstrument is a driver.Instrument with scriptable connect behavior.
type MockInstrument struct {
	*driver.Base

	// OnConnect, when set, replaces the default connect behavior.
	OnConnect func(ctx context.Context) error

	source *Source
}

// Connect runs OnConnect when set, otherwise succeeds.
func (m *MockInstrument) Connect(ctx context.Context) error {
	if m.OnConnect != nil {
		if err := m.OnConnect(ctx); err != nil {
			return err
		}
	}
	return m.Base.Connect(ctx)
}

// Source returns the backing source of the "level" parameter.
func (m *MockInstrument) Source() *Source { return m.source }

// Fleet tracks the instruments a mock registry has created, so tests can
// reach instances the loader builds.
type Fleet struct {
	mu          sync.Mutex
	instruments map[string]*MockInstrument
}

// Instrument returns the created instrument by configured id, or nil.
func (f *Fleet) Instrument(name string) *MockInstrument {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instruments[name]
}

// Source returns the level source of the named instrument, or nil.
func (f *Fleet) Source(name string) *Source {
	if inst := f.Instrument(name); inst != nil {
		return inst.source
	}
	return nil
}

func (f *Fleet) factory(ctx context.Context, cfg driver.Config) (driver.Instrument, error) {
	src := &Source{value: 1.0}
	inst := &MockInstrument{
		Base:   driver.NewBase(cfg.Name, "MOCK", cfg.Endpoint()),
		source: src,
	}
	inst.SetIDN(driver.IDN{Vendor: "QNL", Model: "MOCK", Serial: cfg.Name, Firmware: "0.1"})
	inst.MustAddParameter("level", param.MustNew(&param.Metadata{
		Name: "level", Label: "Level", Unit: "V",
		Kind: param.KindFloat, Access: param.AccessRead, Monitor: true,
	}, src.read, nil))
	inst.MustAddParameter("setpoint", param.MustNew(&param.Metadata{
		Name: "setpoint", Label: "Setpoint", Unit: "V",
		Kind: param.KindFloat, Access: param.AccessReadWrite,
		Limits: &param.Limits{Min: -10, Max: 10},
	}, nil, nil))

	f.mu.Lock()
	f.instruments[cfg.Name] = inst
	f.mu.Unlock()
	return inst, nil
}

// MockCatalog describes the mock driver's parameter surface.
func MockCatalog() driver.Catalog {
	return driver.Catalog{
		Type: "MOCK",
		Params: []driver.CatalogParam{
			{Path: "level", Label: "Level", Unit: "V", Kind: param.KindFloat, Access: param.AccessRead},
			{Path: "setpoint", Label: "Setpoint", Unit: "V", Kind: param.KindFloat, Access: param.AccessReadWrite, Min: -10, Max: 10},
		},
	}
}

// NewRegistry returns a fresh registry with the mock driver installed and
// the fleet tracking its instances.
func NewRegistry() (*driver.Registry, *Fleet) {
	fleet := &Fleet{instruments: make(map[string]*MockInstrument)}
	r := driver.NewRegistry()
	r.Register("drivers/mock", fleet.factory, MockCatalog())
	return r, fleet
}

// OneInstrument is a minimal station config with a single mock instrument.
const OneInstrument = `
instruments:
  probe:
    driver: drivers/mock
    address: 127.0.0.1
`

// TwoInstruments is a station config with two mock instruments.
const TwoInstruments = `
instruments:
  probe:
    driver: drivers/mock
    address: 127.0.0.1
  pump:
    driver: drivers/mock
    address: 127.0.0.2
`

// LoadStation parses the config, loads it against a fresh mock registry,
// and closes the station when the test finishes.
func LoadStation(t *testing.T, yaml string, opts station.LoadOptions) (*station.Station, *Fleet) {
	t.Helper()
	reg, fleet := NewRegistry()
	opts.Registry = reg

	cfg, err := station.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("stationtest: parse config: %v", err)
	}
	st, err := station.Load(context.Background(), cfg, opts)
	if err != nil {
		t.Fatalf("stationtest: load station: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, fleet
}
