package station

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/log"
	"github.com/qnlab/station-go/pkg/param"
)

// Load stages, reported in LoadError.Stage.
const (
	StageResolve    = "resolve"
	StageReconnect  = "reconnect"
	StageCreate     = "create"
	StageConnect    = "connect"
	StageConfigure  = "configure"
	StageInitialize = "initialize"
)

// Loader errors.
var (
	ErrAlreadyLoaded = errors.New("instrument already loaded")
	ErrStationClosed = errors.New("station is closed")
	ErrInvalidConfig = errors.New("configuration has validation errors")
)

// LoadError reports a failure while loading one instrument.
type LoadError struct {
	// ID is the instrument identifier from the configuration.
	ID string

	// Stage names the load stage that failed.
	Stage string

	// Err is the underlying error.
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %s: %v", e.ID, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadOptions configures station loading. The zero value loads every
// instrument from the default driver registry without event logging.
type LoadOptions struct {
	// Registry resolves driver paths. Nil means driver.Default().
	Registry *driver.Registry

	// Logger receives station events. Nil disables event logging.
	Logger log.Logger

	// OnlyInstruments restricts Load to the named entries. Empty loads all.
	OnlyInstruments []string

	// SkipInitialValues suppresses writing initial_value entries after
	// connecting. Parameter overlays and derived parameters still apply.
	SkipInitialValues bool
}

// Station holds the live instruments loaded from a configuration.
// All methods are safe for concurrent use.
type Station struct {
	cfg       *Config
	registry  *driver.Registry
	logger    log.Logger
	sessionID string
	skipInit  bool
	only      []string

	// loadMu serializes load and close sequences; mu guards the maps for
	// concurrent readers.
	loadMu sync.Mutex
	mu     sync.RWMutex
	insts  map[string]driver.Instrument
	order  []string
	closed bool
}

// NewStation creates a station over the configuration without loading
// anything. Call Load or LoadInstrument to bring instruments up.
func NewStation(cfg *Config, opts LoadOptions) *Station {
	registry := opts.Registry
	if registry == nil {
		registry = driver.Default()
	}
	var logger log.Logger = log.NoopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}
	return &Station{
		cfg:       cfg,
		registry:  registry,
		logger:    logger,
		sessionID: uuid.NewString(),
		skipInit:  opts.SkipInitialValues,
		only:      opts.OnlyInstruments,
		insts:     make(map[string]driver.Instrument),
	}
}

// Load parses nothing and loads everything: it creates a station over cfg
// and loads the configured instruments. On failure the partial station is
// closed and the error returned.
func Load(ctx context.Context, cfg *Config, opts LoadOptions) (*Station, error) {
	st := NewStation(cfg, opts)
	if err := st.Load(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// Load brings up the configured instruments in file order, restricted to
// OnlyInstruments when set. The configuration is validated first; Error
// violations refuse the load. On failure every instrument loaded by this
// call is closed again, in reverse order.
func (s *Station) Load(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if err := s.checkConfig(); err != nil {
		return err
	}

	want := make(map[string]bool, len(s.only))
	for _, id := range s.only {
		want[id] = true
	}

	var loaded []string
	cleanup := func() {
		for i := len(loaded) - 1; i >= 0; i-- {
			_ = s.CloseInstrument(loaded[i])
		}
	}

	for _, entry := range s.cfg.Instruments {
		if len(want) > 0 && !want[entry.ID] {
			continue
		}
		delete(want, entry.ID)
		if err := s.loadOne(ctx, entry); err != nil {
			cleanup()
			return err
		}
		loaded = append(loaded, entry.ID)
	}

	if len(want) > 0 {
		cleanup()
		missing := make([]string, 0, len(want))
		for id := range want {
			missing = append(missing, id)
		}
		return fmt.Errorf("instruments not in configuration: %s", strings.Join(missing, ", "))
	}

	s.emit(log.Event{
		Category: log.CategoryState,
		State: &log.StateEvent{
			Entity:   log.StateEntityStation,
			NewState: "loaded",
			Reason:   fmt.Sprintf("%d instruments", len(loaded)),
		},
	})
	return nil
}

// LoadInstrument loads a single entry by id. An already-loaded id is
// replaced when the entry sets auto_reconnect, and refused otherwise.
func (s *Station) LoadInstrument(ctx context.Context, id string) (driver.Instrument, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if err := s.checkConfig(); err != nil {
		return nil, err
	}
	entry, ok := s.cfg.Instrument(id)
	if !ok {
		return nil, fmt.Errorf("instrument %q not in configuration", id)
	}
	if err := s.loadOne(ctx, entry); err != nil {
		return nil, err
	}
	inst, _ := s.Instrument(id)
	return inst, nil
}

// checkConfig refuses configurations with Error-level static violations.
func (s *Station) checkConfig() error {
	result := ValidateConfig(s.cfg)
	if result.Valid {
		return nil
	}
	return fmt.Errorf("%w: %d error(s), first: %s", ErrInvalidConfig, len(result.Errors), result.Errors[0].Error())
}

// loadOne runs the full load pipeline for one entry:
// resolve, create, connect, configure parameters, write initial values.
func (s *Station) loadOne(ctx context.Context, entry *Instrument) (err error) {
	defer func() {
		if err != nil {
			s.logLoadError(entry.ID, err)
		}
	}()

	reg, ok := s.registry.Lookup(entry.Driver)
	if !ok {
		return &LoadError{ID: entry.ID, Stage: StageResolve, Err: fmt.Errorf("unknown driver %q", entry.Driver)}
	}
	if entry.Type != "" && reg.Catalog.Type != "" && !strings.EqualFold(entry.Type, reg.Catalog.Type) {
		return &LoadError{
			ID:    entry.ID,
			Stage: StageResolve,
			Err:   fmt.Errorf("declared type %q does not match driver type %q", entry.Type, reg.Catalog.Type),
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return &LoadError{ID: entry.ID, Stage: StageResolve, Err: ErrStationClosed}
	}
	old, exists := s.insts[entry.ID]
	s.mu.Unlock()

	reconnect := false
	if exists {
		if !entry.AutoReconnect {
			return &LoadError{ID: entry.ID, Stage: StageResolve, Err: ErrAlreadyLoaded}
		}
		reconnect = true
		// Release the previous instance before dialing again so the
		// endpoint is free.
		s.remove(entry.ID)
		if cerr := old.Close(); cerr != nil {
			return &LoadError{ID: entry.ID, Stage: StageReconnect, Err: cerr}
		}
	}

	inst, err := reg.Factory(ctx, driver.Config{
		Name:    entry.ID,
		Address: entry.Address,
		Port:    entry.Port,
		Init:    entry.Init,
	})
	if err != nil {
		return &LoadError{ID: entry.ID, Stage: StageCreate, Err: err}
	}

	if err := inst.Connect(ctx); err != nil {
		_ = inst.Close()
		return &LoadError{ID: entry.ID, Stage: StageConnect, Err: err}
	}

	action := log.ActionConnect
	if reconnect {
		action = log.ActionReconnect
	}
	conn := &log.ConnectionEvent{Action: action, Driver: entry.Driver, Address: inst.Address()}
	if idn := inst.IDN(); idn != (driver.IDN{}) {
		conn.IDN = idn.String()
	}
	s.emit(log.Event{Category: log.CategoryConnection, Instrument: entry.ID, Connection: conn})

	if err := s.configure(inst, entry); err != nil {
		_ = inst.Close()
		return &LoadError{ID: entry.ID, Stage: StageConfigure, Err: err}
	}

	if !s.skipInit {
		if err := s.writeInitialValues(ctx, inst, entry); err != nil {
			_ = inst.Close()
			return &LoadError{ID: entry.ID, Stage: StageInitialize, Err: err}
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = inst.Close()
		return &LoadError{ID: entry.ID, Stage: StageConnect, Err: ErrStationClosed}
	}
	s.insts[entry.ID] = inst
	s.order = append(s.order, entry.ID)
	s.mu.Unlock()
	return nil
}

// configure materializes the entry's parameter tweaks on the live
// instrument: derived parameters first, then overlays on existing ones.
// Runs after Connect so parameters a driver creates at connect time
// (dynamic catalogs) are visible.
func (s *Station) configure(inst driver.Instrument, entry *Instrument) error {
	for _, a := range entry.AddParams {
		src, ok := inst.Parameter(a.Source)
		if !ok {
			return fmt.Errorf("add_parameters %s: source %q not found on instrument", a.Name, a.Source)
		}
		derived, err := param.Delegate(a.Name, src, overlayOf(a))
		if err != nil {
			return fmt.Errorf("add_parameters %s: %w", a.Name, err)
		}
		if err := inst.AddParameter(a.Name, derived); err != nil {
			return err
		}
	}
	for _, o := range entry.Overrides {
		p, ok := inst.Parameter(o.Name)
		if !ok {
			return fmt.Errorf("parameters %s: no such parameter on instrument", o.Name)
		}
		if err := overlayOf(o).Apply(p); err != nil {
			return fmt.Errorf("parameters %s: %w", o.Name, err)
		}
	}
	return nil
}

func overlayOf(p *Param) param.Overlay {
	return param.Overlay{
		Label:   p.Label,
		Unit:    p.Unit,
		Scale:   p.Scale,
		Limits:  p.Limits,
		Monitor: p.Monitor,
	}
}

// writeInitialValues pushes initial_value entries through the full Set
// pipeline, so limits and access checks apply. Derived parameters first,
// then overlays, each group in file order.
func (s *Station) writeInitialValues(ctx context.Context, inst driver.Instrument, entry *Instrument) error {
	for _, pc := range entry.Params() {
		if pc.InitialValue == nil {
			continue
		}
		p, ok := inst.Parameter(pc.Name)
		if !ok {
			return fmt.Errorf("initial_value %s: no such parameter on instrument", pc.Name)
		}
		start := time.Now()
		if err := p.Set(ctx, pc.InitialValue); err != nil {
			return fmt.Errorf("initial_value %s: %w", pc.Name, err)
		}
		elapsed := time.Since(start)
		s.emit(log.Event{
			Category:   log.CategoryParameter,
			Instrument: entry.ID,
			Parameter:  pc.Name,
			Param: &log.ParamEvent{
				Op:      log.OpInit,
				Value:   pc.InitialValue,
				Raw:     p.Raw(),
				Unit:    p.Metadata().Unit,
				Elapsed: &elapsed,
			},
		})
	}
	return nil
}

// Instrument returns a loaded instrument by id.
func (s *Station) Instrument(id string) (driver.Instrument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.insts[id]
	return inst, ok
}

// Instruments returns the loaded instrument ids in configuration file order.
func (s *Station) Instruments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.insts))
	for _, entry := range s.cfg.Instruments {
		if _, ok := s.insts[entry.ID]; ok {
			ids = append(ids, entry.ID)
		}
	}
	return ids
}

// Parameter resolves an "id.path" reference against the loaded instruments.
func (s *Station) Parameter(ref string) (*param.Parameter, error) {
	id, rest, ok := strings.Cut(ref, ".")
	if !ok || id == "" || rest == "" {
		return nil, fmt.Errorf("parameter reference %q: want instrument.path", ref)
	}
	inst, found := s.Instrument(id)
	if !found {
		return nil, fmt.Errorf("instrument %q not loaded", id)
	}
	p, found := inst.Parameter(rest)
	if !found {
		return nil, fmt.Errorf("%s: parameter %q not found", id, rest)
	}
	return p, nil
}

// MonitoredParam is one parameter flagged for periodic sampling.
type MonitoredParam struct {
	Instrument string
	Path       string
	Param      *param.Parameter
}

// MonitoredParameters returns every parameter with the monitor flag set,
// instruments in file order, paths sorted within each instrument.
func (s *Station) MonitoredParameters() []MonitoredParam {
	var out []MonitoredParam
	for _, id := range s.Instruments() {
		inst, ok := s.Instrument(id)
		if !ok {
			continue
		}
		for _, path := range inst.Parameters() {
			p, ok := inst.Parameter(path)
			if !ok {
				continue
			}
			if p.Metadata().Monitor {
				out = append(out, MonitoredParam{Instrument: id, Path: path, Param: p})
			}
		}
	}
	return out
}

// Config returns the originating configuration. Loading never mutates it.
func (s *Station) Config() *Config { return s.cfg }

// SessionID returns the identifier stamped on every event this station logs.
func (s *Station) SessionID() string { return s.sessionID }

// CloseInstrument closes one instrument and removes it from the station.
func (s *Station) CloseInstrument(id string) error {
	s.mu.Lock()
	inst, ok := s.insts[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("instrument %q not loaded", id)
	}
	delete(s.insts, id)
	s.removeFromOrder(id)
	s.mu.Unlock()

	err := inst.Close()
	s.emit(log.Event{
		Category:   log.CategoryConnection,
		Instrument: id,
		Connection: &log.ConnectionEvent{Action: log.ActionDisconnect},
	})
	return err
}

// Close closes all instruments in reverse load order. Close is idempotent;
// errors from individual instruments are joined.
func (s *Station) Close() error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	order := s.order
	insts := s.insts
	s.order = nil
	s.insts = make(map[string]driver.Instrument)
	s.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		inst, ok := insts[id]
		if !ok {
			continue
		}
		if err := inst.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
		s.emit(log.Event{
			Category:   log.CategoryConnection,
			Instrument: id,
			Connection: &log.ConnectionEvent{Action: log.ActionDisconnect},
		})
	}

	s.emit(log.Event{
		Category: log.CategoryState,
		State:    &log.StateEvent{Entity: log.StateEntityStation, OldState: "loaded", NewState: "closed"},
	})
	return errors.Join(errs...)
}

// remove drops an instrument from the maps without closing it.
func (s *Station) remove(id string) {
	s.mu.Lock()
	delete(s.insts, id)
	s.removeFromOrder(id)
	s.mu.Unlock()
}

// removeFromOrder must be called with mu held.
func (s *Station) removeFromOrder(id string) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// emit stamps and sends an event to the station logger.
func (s *Station) emit(ev log.Event) {
	ev.Timestamp = time.Now()
	ev.SessionID = s.sessionID
	s.logger.Log(ev)
}

func (s *Station) logLoadError(id string, err error) {
	detail := &log.ErrorEvent{Message: err.Error()}
	var le *LoadError
	if errors.As(err, &le) {
		detail.Context = le.Stage
		detail.Message = le.Err.Error()
	}
	s.emit(log.Event{Category: log.CategoryError, Instrument: id, Error: detail})
}
