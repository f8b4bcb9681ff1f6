// Package rules provides the built-in station configuration validation
// rules.
//
// Rules are grouped by category:
//   - instrument: identifier, driver and address checks (INST-*)
//   - parameter: name, limit, scale and initial value checks (PAR-*)
//   - source: derived parameter source checks (SRC-*)
//   - monitor: monitoring flag checks (MON-*)
//
// Rules that resolve names against driver catalogs take the driver
// registry at construction; with a nil registry those checks are skipped.
package rules

import (
	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/station"
)

// RegisterAllRules registers every built-in rule with the given registry.
func RegisterAllRules(registry *station.RuleRegistry, drivers *driver.Registry) {
	RegisterInstrumentRules(registry, drivers)
	RegisterParameterRules(registry, drivers)
	RegisterSourceRules(registry, drivers)
	RegisterMonitorRules(registry, drivers)
}

// NewDefaultRegistry creates a registry with all built-in rules registered.
func NewDefaultRegistry(drivers *driver.Registry) *station.RuleRegistry {
	registry := station.NewRuleRegistry()
	RegisterAllRules(registry, drivers)
	return registry
}

// catalogFor looks up the catalog for an instrument's driver. The second
// return is false when no registry was supplied or the driver is unknown.
func catalogFor(drivers *driver.Registry, inst *station.Instrument) (driver.Catalog, bool) {
	if drivers == nil || inst.Driver == "" {
		return driver.Catalog{}, false
	}
	e, ok := drivers.Lookup(inst.Driver)
	if !ok {
		return driver.Catalog{}, false
	}
	return e.Catalog, true
}
