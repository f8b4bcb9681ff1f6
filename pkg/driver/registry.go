package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory constructs an instrument from its configuration.
// The returned instrument is not yet connected.
type Factory func(ctx context.Context, cfg Config) (Instrument, error)

// Entry is a registered driver.
type Entry struct {
	// Driver is the registry path (e.g. "drivers/sr860").
	Driver string

	// Factory constructs instances.
	Factory Factory

	// Catalog is the static parameter surface. Catalog.Type is the
	// driver type name used for configuration validation.
	Catalog Catalog
}

// Registry maps driver paths to factories and catalogs.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register installs a driver under the given path.
// It panics on empty or duplicate registration to catch mistakes at start-up.
func (r *Registry) Register(driverPath string, f Factory, c Catalog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if driverPath == "" {
		panic("driver: empty driver path")
	}
	if f == nil {
		panic(fmt.Sprintf("driver: nil factory for %q", driverPath))
	}
	if _, exists := r.entries[driverPath]; exists {
		panic(fmt.Sprintf("driver: %q already registered", driverPath))
	}
	r.entries[driverPath] = Entry{Driver: driverPath, Factory: f, Catalog: c}
	r.order = append(r.order, driverPath)
}

// Lookup returns the entry for a driver path.
func (r *Registry) Lookup(driverPath string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[driverPath]
	return e, ok
}

// New constructs an instrument via the registered factory.
func (r *Registry) New(ctx context.Context, driverPath string, cfg Config) (Instrument, error) {
	e, ok := r.Lookup(driverPath)
	if !ok {
		return nil, fmt.Errorf("unknown driver %q", driverPath)
	}
	inst, err := e.Factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("driver %q: %w", driverPath, err)
	}
	return inst, nil
}

// Drivers returns all registered driver paths, sorted.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, len(r.order))
	copy(paths, r.order)
	sort.Strings(paths)
	return paths
}

// Count returns the number of registered drivers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry. Importing a driver package
// populates it.
func Default() *Registry {
	return defaultRegistry
}
