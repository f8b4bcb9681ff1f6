package rules

import (
	"fmt"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/param"
	"github.com/qnlab/station-go/pkg/station"
)

// RegisterParameterRules registers all parameter-level rules with the
// given registry.
func RegisterParameterRules(registry *station.RuleRegistry, drivers *driver.Registry) {
	registry.Register(NewPAR001())
	registry.Register(NewPAR002(drivers))
	registry.Register(NewPAR003())
	registry.Register(NewPAR004(drivers))
	registry.Register(NewPAR005(drivers))
	registry.Register(NewPAR006())
}

// PAR001 checks parameter names: add_parameters entries must be plain
// identifiers, overrides may be dotted paths.
type PAR001 struct {
	*station.BaseRule
}

func NewPAR001() *PAR001 {
	return &PAR001{
		BaseRule: station.NewBaseRule("PAR-001", "parameter names must be valid", "parameter", station.SeverityError),
	}
}

func (r *PAR001) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		for _, p := range inst.AddParams {
			if station.ValidIdent(p.Name) {
				continue
			}
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    r.DefaultSeverity(),
				Message:     fmt.Sprintf("%s: parameter name %q is not a valid identifier", inst.ID, p.Name),
				Paths:       []string{inst.ID + ".add_parameters." + p.Name},
				LineNumbers: []int{p.Line},
			})
		}
		for _, p := range inst.Overrides {
			if station.ValidParamPath(p.Name) {
				continue
			}
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    r.DefaultSeverity(),
				Message:     fmt.Sprintf("%s: parameter name %q is not a valid path", inst.ID, p.Name),
				Paths:       []string{inst.ID + ".parameters." + p.Name},
				LineNumbers: []int{p.Line},
			})
		}
	}
	return violations
}

// PAR002 checks for name collisions: a name in both add_parameters and
// parameters, an added name shadowing a driver parameter, or an override
// of a parameter the driver does not have.
type PAR002 struct {
	*station.BaseRule
	drivers *driver.Registry
}

func NewPAR002(drivers *driver.Registry) *PAR002 {
	return &PAR002{
		BaseRule: station.NewBaseRule("PAR-002", "parameter names must not collide", "parameter", station.SeverityError),
		drivers:  drivers,
	}
}

func (r *PAR002) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		added := map[string]*station.Param{}
		for _, p := range inst.AddParams {
			added[p.Name] = p
		}
		for _, p := range inst.Overrides {
			prev, dup := added[p.Name]
			if !dup {
				continue
			}
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    r.DefaultSeverity(),
				Message:     fmt.Sprintf("%s: parameter %q defined both under add_parameters (line %d) and parameters", inst.ID, p.Name, prev.Line),
				Paths:       []string{inst.ID + ".parameters." + p.Name},
				LineNumbers: []int{p.Line, prev.Line},
				Suggestion:  "Keep one definition",
			})
		}

		cat, ok := catalogFor(r.drivers, inst)
		if !ok || cat.Dynamic {
			continue
		}
		for _, p := range inst.AddParams {
			if _, exists := cat.Resolve(p.Name); !exists {
				continue
			}
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    r.DefaultSeverity(),
				Message:     fmt.Sprintf("%s: added parameter %q shadows a %s driver parameter", inst.ID, p.Name, cat.Type),
				Paths:       []string{inst.ID + ".add_parameters." + p.Name},
				LineNumbers: []int{p.Line},
				Suggestion:  "Pick a different name or use the parameters block to adjust the existing parameter",
			})
		}
		for _, p := range inst.Overrides {
			if _, exists := cat.Resolve(p.Name); exists {
				continue
			}
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    r.DefaultSeverity(),
				Message:     fmt.Sprintf("%s: driver %s has no parameter %q to adjust", inst.ID, inst.Driver, p.Name),
				Paths:       []string{inst.ID + ".parameters." + p.Name},
				LineNumbers: []int{p.Line},
			})
		}
	}
	return violations
}

// PAR003 checks that limit pairs are ordered.
type PAR003 struct {
	*station.BaseRule
}

func NewPAR003() *PAR003 {
	return &PAR003{
		BaseRule: station.NewBaseRule("PAR-003", "limits must be ordered", "parameter", station.SeverityError),
	}
}

func (r *PAR003) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		for _, p := range inst.Params() {
			if p.Limits == nil || p.Limits.Validate() == nil {
				continue
			}
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    r.DefaultSeverity(),
				Message:     fmt.Sprintf("%s.%s: limits %s has min above max", inst.ID, p.Name, p.Limits),
				Paths:       []string{fmt.Sprintf("%s.%s.limits", inst.ID, p.Name)},
				LineNumbers: []int{p.Line},
				Suggestion:  "Swap the two values",
			})
		}
	}
	return violations
}

// PAR004 checks scale values: nonzero always, and numeric targets when the
// catalog knows the parameter.
type PAR004 struct {
	*station.BaseRule
	drivers *driver.Registry
}

func NewPAR004(drivers *driver.Registry) *PAR004 {
	return &PAR004{
		BaseRule: station.NewBaseRule("PAR-004", "scale must be usable", "parameter", station.SeverityError),
		drivers:  drivers,
	}
}

func (r *PAR004) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		cat, hasCat := catalogFor(r.drivers, inst)
		for _, p := range inst.Params() {
			if p.Scale == nil {
				continue
			}
			if *p.Scale == 0 {
				violations = append(violations, station.Violation{
					RuleID:      r.ID(),
					Severity:    r.DefaultSeverity(),
					Message:     fmt.Sprintf("%s.%s: scale must be nonzero", inst.ID, p.Name),
					Paths:       []string{fmt.Sprintf("%s.%s.scale", inst.ID, p.Name)},
					LineNumbers: []int{p.Line},
				})
				continue
			}

			if !hasCat || cat.Dynamic {
				continue
			}
			target := p.Name
			if p.Source != "" {
				target = p.Source
			}
			cp, known := cat.Resolve(target)
			if !known || cp.Kind == param.KindFloat || cp.Kind == param.KindInt || cp.Kind == param.KindUnknown {
				continue
			}
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    station.SeverityWarning,
				Message:     fmt.Sprintf("%s.%s: scale on non-numeric parameter %q (%s)", inst.ID, p.Name, target, cp.Kind),
				Paths:       []string{fmt.Sprintf("%s.%s.scale", inst.ID, p.Name)},
				LineNumbers: []int{p.Line},
			})
		}
	}
	return violations
}

// PAR005 checks initial values: they must sit inside declared limits, and
// the target parameter must be writable when the catalog knows it.
type PAR005 struct {
	*station.BaseRule
	drivers *driver.Registry
}

func NewPAR005(drivers *driver.Registry) *PAR005 {
	return &PAR005{
		BaseRule: station.NewBaseRule("PAR-005", "initial values must be settable", "parameter", station.SeverityError),
		drivers:  drivers,
	}
}

func (r *PAR005) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		cat, hasCat := catalogFor(r.drivers, inst)
		for _, p := range inst.Params() {
			if p.InitialValue == nil {
				continue
			}

			if p.Limits != nil && p.Limits.Validate() == nil {
				if f, ok := p.InitialFloat(); ok && !p.Limits.Contains(f) {
					violations = append(violations, station.Violation{
						RuleID:      r.ID(),
						Severity:    r.DefaultSeverity(),
						Message:     fmt.Sprintf("%s.%s: initial_value %v outside limits %s", inst.ID, p.Name, p.InitialValue, p.Limits),
						Paths:       []string{fmt.Sprintf("%s.%s.initial_value", inst.ID, p.Name)},
						LineNumbers: []int{p.Line},
					})
				}
			}

			if !hasCat || cat.Dynamic {
				continue
			}
			target := p.Name
			if p.Source != "" {
				target = p.Source
			}
			cp, known := cat.Resolve(target)
			if !known || cp.Access.CanWrite() {
				continue
			}
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    r.DefaultSeverity(),
				Message:     fmt.Sprintf("%s.%s: initial_value on read-only parameter %q", inst.ID, p.Name, target),
				Paths:       []string{fmt.Sprintf("%s.%s.initial_value", inst.ID, p.Name)},
				LineNumbers: []int{p.Line},
				Suggestion:  "Remove the initial_value",
			})
		}
	}
	return violations
}

// PAR006 flags overlay entries that adjust nothing. Entries carrying a
// stray source key are SRC-003's business and skipped here.
type PAR006 struct {
	*station.BaseRule
}

func NewPAR006() *PAR006 {
	return &PAR006{
		BaseRule: station.NewBaseRule("PAR-006", "overlay entries must adjust something", "parameter", station.SeverityWarning),
	}
}

func (r *PAR006) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		for _, p := range inst.Overrides {
			if p.Source != "" || p.Label != "" || p.Unit != "" ||
				p.Scale != nil || p.Limits != nil || p.Monitor != nil || p.InitialValue != nil {
				continue
			}
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    r.DefaultSeverity(),
				Message:     fmt.Sprintf("%s.%s: entry adjusts nothing", inst.ID, p.Name),
				Paths:       []string{inst.ID + ".parameters." + p.Name},
				LineNumbers: []int{p.Line},
				Suggestion:  "Set label, unit, scale, limits, monitor or initial_value, or drop the entry",
			})
		}
	}
	return violations
}
