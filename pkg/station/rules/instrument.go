package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/station"
)

// RegisterInstrumentRules registers all instrument-level rules with the
// given registry.
func RegisterInstrumentRules(registry *station.RuleRegistry, drivers *driver.Registry) {
	registry.Register(NewINST001())
	registry.Register(NewINST002())
	registry.Register(NewINST003(drivers))
	registry.Register(NewINST004(drivers))
	registry.Register(NewINST005(drivers))
	registry.Register(NewINST006(drivers))
}

// INST001 checks that instrument IDs are valid identifiers.
type INST001 struct {
	*station.BaseRule
}

func NewINST001() *INST001 {
	return &INST001{
		BaseRule: station.NewBaseRule("INST-001", "instrument ID must be a valid identifier", "instrument", station.SeverityError),
	}
}

func (r *INST001) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		if station.ValidIdent(inst.ID) {
			continue
		}
		violations = append(violations, station.Violation{
			RuleID:      r.ID(),
			Severity:    r.DefaultSeverity(),
			Message:     fmt.Sprintf("instrument ID %q is not a valid identifier", inst.ID),
			Paths:       []string{inst.ID},
			LineNumbers: []int{inst.Line},
			Suggestion:  "Use letters, digits and underscores, not starting with a digit",
		})
	}
	return violations
}

// INST002 checks that every instrument declares a driver.
type INST002 struct {
	*station.BaseRule
}

func NewINST002() *INST002 {
	return &INST002{
		BaseRule: station.NewBaseRule("INST-002", "instrument must declare a driver", "instrument", station.SeverityError),
	}
}

func (r *INST002) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		if inst.Driver != "" {
			continue
		}
		violations = append(violations, station.Violation{
			RuleID:      r.ID(),
			Severity:    r.DefaultSeverity(),
			Message:     fmt.Sprintf("%s: missing driver", inst.ID),
			Paths:       []string{inst.ID + ".driver"},
			LineNumbers: []int{inst.Line},
			Suggestion:  "Add a driver key (e.g. drivers/mdac)",
		})
	}
	return violations
}

// INST003 checks that the declared driver is known to the registry.
type INST003 struct {
	*station.BaseRule
	drivers *driver.Registry
}

func NewINST003(drivers *driver.Registry) *INST003 {
	return &INST003{
		BaseRule: station.NewBaseRule("INST-003", "driver must be registered", "instrument", station.SeverityError),
		drivers:  drivers,
	}
}

func (r *INST003) Check(cfg *station.Config) []station.Violation {
	if r.drivers == nil {
		return nil
	}
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		if inst.Driver == "" {
			continue
		}
		if _, ok := r.drivers.Lookup(inst.Driver); ok {
			continue
		}
		violations = append(violations, station.Violation{
			RuleID:      r.ID(),
			Severity:    r.DefaultSeverity(),
			Message:     fmt.Sprintf("%s: unknown driver %q", inst.ID, inst.Driver),
			Paths:       []string{inst.ID + ".driver"},
			LineNumbers: []int{inst.Line},
			Suggestion:  fmt.Sprintf("Known drivers: %s", strings.Join(r.drivers.Drivers(), ", ")),
		})
	}
	return violations
}

// INST004 checks that a declared type matches the driver catalog type.
type INST004 struct {
	*station.BaseRule
	drivers *driver.Registry
}

func NewINST004(drivers *driver.Registry) *INST004 {
	return &INST004{
		BaseRule: station.NewBaseRule("INST-004", "declared type must match the driver", "instrument", station.SeverityWarning),
		drivers:  drivers,
	}
}

func (r *INST004) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		if inst.Type == "" {
			continue
		}
		cat, ok := catalogFor(r.drivers, inst)
		if !ok {
			continue
		}
		if strings.EqualFold(inst.Type, cat.Type) {
			continue
		}
		violations = append(violations, station.Violation{
			RuleID:      r.ID(),
			Severity:    r.DefaultSeverity(),
			Message:     fmt.Sprintf("%s: declared type %q but driver %s provides %q", inst.ID, inst.Type, inst.Driver, cat.Type),
			Paths:       []string{inst.ID + ".type"},
			LineNumbers: []int{inst.Line},
			Suggestion:  fmt.Sprintf("Change type to %q or drop the key", cat.Type),
		})
	}
	return violations
}

// INST005 checks address and port coherence: drivers that need an address
// must have one, a port without an address is suspicious, and a port next
// to an address that already carries one is ignored when dialing.
type INST005 struct {
	*station.BaseRule
	drivers *driver.Registry
}

func NewINST005(drivers *driver.Registry) *INST005 {
	return &INST005{
		BaseRule: station.NewBaseRule("INST-005", "address must satisfy the driver", "instrument", station.SeverityError),
		drivers:  drivers,
	}
}

func (r *INST005) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		if inst.Port != 0 && inst.Address == "" {
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    station.SeverityWarning,
				Message:     fmt.Sprintf("%s: port %d given without an address", inst.ID, inst.Port),
				Paths:       []string{inst.ID + ".port"},
				LineNumbers: []int{inst.Line},
				Suggestion:  "Add an address key or remove the port",
			})
		}
		if inst.Port != 0 && strings.Contains(inst.Address, ":") {
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    station.SeverityWarning,
				Message:     fmt.Sprintf("%s: port %d is ignored, address %q already carries one", inst.ID, inst.Port, inst.Address),
				Paths:       []string{inst.ID + ".port"},
				LineNumbers: []int{inst.Line},
				Suggestion:  "Drop the port key or use a bare host address",
			})
		}

		cat, ok := catalogFor(r.drivers, inst)
		if !ok || !cat.NeedsAddress || inst.Address != "" {
			continue
		}
		violations = append(violations, station.Violation{
			RuleID:      r.ID(),
			Severity:    r.DefaultSeverity(),
			Message:     fmt.Sprintf("%s: driver %s requires an address", inst.ID, inst.Driver),
			Paths:       []string{inst.ID + ".address"},
			LineNumbers: []int{inst.Line},
			Suggestion:  "Add an address key (host, host:port or VISA resource)",
		})
	}
	return violations
}

// INST006 flags unknown configuration keys and unknown init kwargs.
type INST006 struct {
	*station.BaseRule
	drivers *driver.Registry
}

func NewINST006(drivers *driver.Registry) *INST006 {
	return &INST006{
		BaseRule: station.NewBaseRule("INST-006", "no unknown configuration keys", "instrument", station.SeverityWarning),
		drivers:  drivers,
	}
}

func (r *INST006) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, k := range cfg.Unknown {
		violations = append(violations, station.Violation{
			RuleID:      r.ID(),
			Severity:    r.DefaultSeverity(),
			Message:     fmt.Sprintf("unknown top-level key %q", k.Key),
			Paths:       []string{k.Key},
			LineNumbers: []int{k.Line},
		})
	}
	for _, inst := range cfg.Instruments {
		for _, k := range inst.Unknown {
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    r.DefaultSeverity(),
				Message:     fmt.Sprintf("%s: unknown key %q", inst.ID, k.Key),
				Paths:       []string{inst.ID + "." + k.Key},
				LineNumbers: []int{k.Line},
			})
		}

		cat, ok := catalogFor(r.drivers, inst)
		if !ok || len(inst.Init) == 0 {
			continue
		}
		keys := make([]string, 0, len(inst.Init))
		for key := range inst.Init {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if cat.AllowsInit(key) {
				continue
			}
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    r.DefaultSeverity(),
				Message:     fmt.Sprintf("%s: init kwarg %q is not accepted by driver %s", inst.ID, key, inst.Driver),
				Paths:       []string{inst.ID + ".init." + key},
				LineNumbers: []int{inst.Line},
				Suggestion:  fmt.Sprintf("Accepted kwargs: %s", strings.Join(cat.InitKeys, ", ")),
			})
		}
	}
	return violations
}
