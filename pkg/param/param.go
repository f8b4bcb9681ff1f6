package param

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Access flags for parameters.
type Access uint8

const (
	// AccessRead allows reading the parameter.
	AccessRead Access = 1 << iota

	// AccessWrite allows writing the parameter.
	AccessWrite

	// AccessReadWrite is read and write.
	AccessReadWrite = AccessRead | AccessWrite
)

// CanRead returns true if reading is allowed.
func (a Access) CanRead() bool { return a&AccessRead != 0 }

// CanWrite returns true if writing is allowed.
func (a Access) CanWrite() bool { return a&AccessWrite != 0 }

// String returns the access flags as a string.
func (a Access) String() string {
	var s string
	if a.CanRead() {
		s += "R"
	}
	if a.CanWrite() {
		s += "W"
	}
	if s == "" {
		return "-"
	}
	return s
}

// Kind represents the type of a parameter value.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindFloat
	KindInt
	KindBool
	KindString
)

// String returns the kind name.
func (k Kind) String() string {
	names := []string{"unknown", "float", "int", "bool", "string"}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Limits is an inclusive numeric range on a parameter's value.
type Limits struct {
	Min float64
	Max float64
}

// Validate returns an error if the pair is not ordered.
func (l Limits) Validate() error {
	if l.Min > l.Max {
		return fmt.Errorf("%w: min %v > max %v", ErrLimitsOrder, l.Min, l.Max)
	}
	return nil
}

// Contains returns true if v lies within the limits.
func (l Limits) Contains(v float64) bool {
	return v >= l.Min && v <= l.Max
}

// String returns the limits as "[min, max]".
func (l Limits) String() string {
	return fmt.Sprintf("[%v, %v]", l.Min, l.Max)
}

// Metadata describes a parameter's properties.
type Metadata struct {
	// Name is the parameter name, unique within its owner.
	Name string

	// Label is the human-readable label. FullLabel falls back to Name.
	Label string

	// Unit is the unit of measurement of the scaled value (e.g. "V", "T", "K").
	Unit string

	// Kind is the value type.
	Kind Kind

	// Access defines the allowed operations.
	Access Access

	// Scale maps the user-facing value to the raw value: raw = value * Scale
	// on set, value = raw / Scale on get. Zero is rejected; the zero struct
	// value is normalized to 1.
	Scale float64

	// Limits bounds the user-facing value (scaled units). Nil means unbounded.
	Limits *Limits

	// Monitor marks the parameter for periodic sampling.
	Monitor bool

	// Enum restricts string parameters to a fixed set of values.
	Enum []string

	// Step is the preferred maximum change per ramp step (user units).
	Step float64

	// Rate is the preferred ramp rate (user units per second).
	Rate float64

	// Default is the initial user-facing value.
	Default any
}

// FullLabel returns the label, or the name when no label is set.
func (m *Metadata) FullLabel() string {
	if m.Label != "" {
		return m.Label
	}
	return m.Name
}

// Parameter errors.
var (
	ErrNotWritable = errors.New("parameter is not writable")
	ErrNotReadable = errors.New("parameter is not readable")
	ErrValueType   = errors.New("invalid value type for parameter")
	ErrOutOfRange  = errors.New("value out of range")
	ErrLimitsOrder = errors.New("limits pair out of order")
	ErrZeroScale   = errors.New("scale must be nonzero")
	ErrEnumValue   = errors.New("value not in enum")
)

// RangeError reports a limit violation on a parameter set.
type RangeError struct {
	Name  string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: value %v outside limits [%v, %v]", e.Name, e.Value, e.Min, e.Max)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// GetFunc reads the raw value from the backing instrument.
type GetFunc func(ctx context.Context) (any, error)

// SetFunc writes the raw value to the backing instrument.
type SetFunc func(ctx context.Context, raw any) error

// Change describes a committed parameter set.
type Change struct {
	Name  string
	Value any
	Raw   any
	Time  time.Time
}

// Parameter is a thread-safe instrument parameter with scaling and limits.
// The cached value and the backing functions operate in the raw domain;
// Get/Set translate to and from user-facing values via Scale.
type Parameter struct {
	mu       sync.RWMutex
	metadata *Metadata
	raw      any
	dirty    bool
	getter   GetFunc
	setter   SetFunc
	onChange []func(Change)
}

// New creates a parameter with the given metadata and optional backing
// functions. A nil getter reads the cache; a nil setter writes the cache.
func New(meta *Metadata, getter GetFunc, setter SetFunc) (*Parameter, error) {
	if meta.Name == "" {
		return nil, errors.New("parameter name must not be empty")
	}
	if meta.Scale == 0 {
		meta.Scale = 1
	}
	if meta.Limits != nil {
		if err := meta.Limits.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", meta.Name, err)
		}
	}
	p := &Parameter{
		metadata: meta,
		getter:   getter,
		setter:   setter,
	}
	if meta.Default != nil {
		raw, err := p.toRaw(meta.Default)
		if err != nil {
			return nil, fmt.Errorf("%s: default: %w", meta.Name, err)
		}
		p.raw = raw
	}
	return p, nil
}

// MustNew is New but panics on error. For static driver catalogs.
func MustNew(meta *Metadata, getter GetFunc, setter SetFunc) *Parameter {
	p, err := New(meta, getter, setter)
	if err != nil {
		panic(err)
	}
	return p
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.metadata.Name
}

// Metadata returns the parameter metadata.
// The metadata is shared; callers must not mutate it directly.
func (p *Parameter) Metadata() *Metadata {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metadata
}

// Get returns the user-facing value.
// When a backing getter is set it is consulted and the cache updated;
// otherwise the cached value is returned.
func (p *Parameter) Get(ctx context.Context) (any, error) {
	p.mu.RLock()
	meta := p.metadata
	getter := p.getter
	raw := p.raw
	p.mu.RUnlock()

	if !meta.Access.CanRead() {
		return nil, fmt.Errorf("%s: %w", meta.Name, ErrNotReadable)
	}

	if getter != nil {
		v, err := getter(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: get: %w", meta.Name, err)
		}
		p.mu.Lock()
		p.raw = v
		p.mu.Unlock()
		raw = v
	}

	return p.fromRaw(raw)
}

// Set writes a user-facing value through the full pipeline:
// access check, kind coercion, limits check, scaling, backing setter.
func (p *Parameter) Set(ctx context.Context, value any) error {
	p.mu.RLock()
	meta := p.metadata
	setter := p.setter
	p.mu.RUnlock()

	if !meta.Access.CanWrite() {
		return fmt.Errorf("%s: %w", meta.Name, ErrNotWritable)
	}

	raw, err := p.toRaw(value)
	if err != nil {
		return err
	}

	if setter != nil {
		if err := setter(ctx, raw); err != nil {
			return fmt.Errorf("%s: set: %w", meta.Name, err)
		}
	}

	p.mu.Lock()
	changed := p.raw != raw
	p.raw = raw
	if changed {
		p.dirty = true
	}
	listeners := p.onChange
	p.mu.Unlock()

	if changed {
		ch := Change{Name: meta.Name, Value: value, Raw: raw, Time: time.Now()}
		for _, fn := range listeners {
			fn(ch)
		}
	}
	return nil
}

// Raw returns the cached raw value without consulting the backing getter.
func (p *Parameter) Raw() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.raw
}

// Value returns the user-facing view of the cached raw value without
// consulting the backing getter or checking read access. Write-only
// parameters report their last committed value this way.
func (p *Parameter) Value() (any, error) {
	p.mu.RLock()
	raw := p.raw
	p.mu.RUnlock()
	return p.fromRaw(raw)
}

// UpdateRaw replaces the cached raw value, bypassing access checks and the
// backing setter. Drivers use this to push readings into measured parameters.
func (p *Parameter) UpdateRaw(raw any) {
	p.mu.Lock()
	if p.raw != raw {
		p.raw = raw
		p.dirty = true
	}
	p.mu.Unlock()
}

// IsDirty returns true if the value changed since the last ClearDirty call.
func (p *Parameter) IsDirty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dirty
}

// ClearDirty clears the dirty flag.
func (p *Parameter) ClearDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = false
}

// OnChange registers a listener invoked after every committed set.
// Listeners run outside the parameter lock and must not block.
func (p *Parameter) OnChange(fn func(Change)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// toRaw validates a user-facing value and converts it to the raw domain.
func (p *Parameter) toRaw(value any) (any, error) {
	meta := p.metadata

	switch meta.Kind {
	case KindFloat, KindInt:
		v, ok := toFloat64(value)
		if !ok {
			return nil, fmt.Errorf("%s: %w: expected numeric, got %T", meta.Name, ErrValueType, value)
		}
		if meta.Kind == KindInt && v != float64(int64(v)) {
			return nil, fmt.Errorf("%s: %w: expected integer, got %v", meta.Name, ErrValueType, value)
		}
		if meta.Limits != nil && !meta.Limits.Contains(v) {
			return nil, &RangeError{Name: meta.Name, Value: v, Min: meta.Limits.Min, Max: meta.Limits.Max}
		}
		raw := v * meta.Scale
		if meta.Kind == KindInt && meta.Scale == 1 {
			return int64(raw), nil
		}
		return raw, nil
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%s: %w: expected bool, got %T", meta.Name, ErrValueType, value)
		}
		return b, nil
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%s: %w: expected string, got %T", meta.Name, ErrValueType, value)
		}
		if len(meta.Enum) > 0 {
			found := false
			for _, e := range meta.Enum {
				if e == s {
					found = true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("%s: %w: %q (allowed: %v)", meta.Name, ErrEnumValue, s, meta.Enum)
			}
		}
		return s, nil
	default:
		return value, nil
	}
}

// fromRaw converts a raw value back to the user-facing domain.
func (p *Parameter) fromRaw(raw any) (any, error) {
	meta := p.metadata

	if raw == nil {
		return nil, nil
	}

	switch meta.Kind {
	case KindFloat:
		v, ok := toFloat64(raw)
		if !ok {
			return nil, fmt.Errorf("%s: %w: raw %T", meta.Name, ErrValueType, raw)
		}
		return v / meta.Scale, nil
	case KindInt:
		v, ok := toFloat64(raw)
		if !ok {
			return nil, fmt.Errorf("%s: %w: raw %T", meta.Name, ErrValueType, raw)
		}
		scaled := v / meta.Scale
		if scaled == float64(int64(scaled)) {
			return int64(scaled), nil
		}
		return scaled, nil
	default:
		return raw, nil
	}
}

// Float reads the parameter and coerces the result to float64.
func (p *Parameter) Float(ctx context.Context) (float64, error) {
	v, err := p.Get(ctx)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat64(v)
	if !ok {
		return 0, fmt.Errorf("%s: %w: got %T", p.metadata.Name, ErrValueType, v)
	}
	return f, nil
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
