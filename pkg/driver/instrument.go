// Package driver defines the instrument interface, the static parameter
// catalogs used for configuration checking, and the driver registry the
// station loader resolves against.
package driver

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/qnlab/station-go/pkg/param"
)

// IDN identifies an instrument, mirroring the usual *IDN? quartet.
type IDN struct {
	Vendor   string
	Model    string
	Serial   string
	Firmware string
}

// String returns the IDN as a comma-separated identification string.
func (i IDN) String() string {
	return fmt.Sprintf("%s,%s,%s,%s", i.Vendor, i.Model, i.Serial, i.Firmware)
}

// Config is the constructor input for a driver, assembled by the loader
// from a configuration entry.
type Config struct {
	// Name is the instrument identifier from the configuration.
	Name string

	// Address is the connection endpoint (VISA resource, host, host:port, URL).
	Address string

	// Port is the network port when Address is a bare host.
	Port int

	// Init holds driver constructor keyword arguments.
	Init map[string]any
}

// Endpoint joins Address and Port into a dialable endpoint. The port is
// only appended when the address does not already carry one; VISA resource
// strings and URLs pass through untouched.
func (c Config) Endpoint() string {
	if c.Port <= 0 || c.Address == "" {
		return c.Address
	}
	if strings.Contains(c.Address, ":") {
		return c.Address
	}
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// CheckInit returns an error if the init map contains a keyword outside the
// allowed set. Drivers call this first so misspelled kwargs fail loading.
func CheckInit(init map[string]any, allowed ...string) error {
	for key := range init {
		ok := false
		for _, a := range allowed {
			if key == a {
				ok = true
				break
			}
		}
		if !ok {
			sort.Strings(allowed)
			return fmt.Errorf("unknown init kwarg %q (allowed: %s)", key, strings.Join(allowed, ", "))
		}
	}
	return nil
}

// InitInt reads an integer init kwarg, returning def when absent.
func InitInt(init map[string]any, key string, def int) (int, error) {
	v, ok := init[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("init kwarg %q: expected integer, got %T", key, v)
}

// InitFloat reads a float init kwarg, returning def when absent.
func InitFloat(init map[string]any, key string, def float64) (float64, error) {
	v, ok := init[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("init kwarg %q: expected number, got %T", key, v)
}

// InitString reads a string init kwarg, returning def when absent.
func InitString(init map[string]any, key string, def string) (string, error) {
	v, ok := init[key]
	if !ok {
		return def, nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("init kwarg %q: expected string, got %T", key, v)
}

// InitBool reads a boolean init kwarg, returning def when absent.
func InitBool(init map[string]any, key string, def bool) (bool, error) {
	v, ok := init[key]
	if !ok {
		return def, nil
	}
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("init kwarg %q: expected bool, got %T", key, v)
}

// Instrument is a live instrument with an addressable parameter tree.
// Implementations must be safe for concurrent use.
type Instrument interface {
	// Name returns the instrument identifier from the configuration.
	Name() string

	// Type returns the driver type name (e.g. "SR860").
	Type() string

	// Address returns the configured connection endpoint.
	Address() string

	// IDN returns the instrument identification.
	IDN() IDN

	// Parameter looks up a parameter by its dotted path (e.g. "ch01.voltage").
	Parameter(path string) (*param.Parameter, bool)

	// Parameters returns all parameter paths, sorted.
	Parameters() []string

	// AddParameter registers a parameter under the given path.
	// Registering a path twice is an error.
	AddParameter(path string, p *param.Parameter) error

	// Connect establishes the connection to the instrument.
	Connect(ctx context.Context) error

	// Close releases the connection. Close is idempotent.
	Close() error
}

// Base is an embeddable Instrument implementation holding the parameter
// tree. Drivers embed it and override Connect/Close as needed.
type Base struct {
	name    string
	typ     string
	address string

	mu        sync.RWMutex
	idn       IDN
	params    map[string]*param.Parameter
	connected bool
}

// NewBase creates a Base for the given identity.
func NewBase(name, typ, address string) *Base {
	return &Base{
		name:    name,
		typ:     typ,
		address: address,
		params:  make(map[string]*param.Parameter),
	}
}

// Name returns the instrument identifier.
func (b *Base) Name() string { return b.name }

// Type returns the driver type name.
func (b *Base) Type() string { return b.typ }

// Address returns the configured endpoint.
func (b *Base) Address() string { return b.address }

// IDN returns the instrument identification.
func (b *Base) IDN() IDN {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idn
}

// SetIDN sets the instrument identification.
func (b *Base) SetIDN(idn IDN) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.idn = idn
}

// Parameter looks up a parameter by path.
func (b *Base) Parameter(path string) (*param.Parameter, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.params[path]
	return p, ok
}

// Parameters returns all parameter paths, sorted.
func (b *Base) Parameters() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	paths := make([]string, 0, len(b.params))
	for path := range b.params {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// AddParameter registers a parameter under the given path.
func (b *Base) AddParameter(path string, p *param.Parameter) error {
	if path == "" {
		return fmt.Errorf("%s: empty parameter path", b.name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.params[path]; exists {
		return fmt.Errorf("%s: parameter %q already exists", b.name, path)
	}
	b.params[path] = p
	return nil
}

// MustAddParameter is AddParameter but panics on error.
// For driver constructors building their static parameter tree.
func (b *Base) MustAddParameter(path string, p *param.Parameter) {
	if err := b.AddParameter(path, p); err != nil {
		panic(err)
	}
}

// Connect marks the instrument connected. Drivers with real connection
// work override this and call it on success.
func (b *Base) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

// Close marks the instrument disconnected.
func (b *Base) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	return nil
}

// Connected reports whether Connect has succeeded and Close not been called.
func (b *Base) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}
