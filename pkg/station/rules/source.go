package rules

import (
	"fmt"
	"strings"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/station"
)

// RegisterSourceRules registers all source-resolution rules with the
// given registry.
func RegisterSourceRules(registry *station.RuleRegistry, drivers *driver.Registry) {
	registry.Register(NewSRC001())
	registry.Register(NewSRC002(drivers))
	registry.Register(NewSRC003())
}

// SRC001 checks that every add_parameters entry names a source.
type SRC001 struct {
	*station.BaseRule
}

func NewSRC001() *SRC001 {
	return &SRC001{
		BaseRule: station.NewBaseRule("SRC-001", "derived parameters need a source", "source", station.SeverityError),
	}
}

func (r *SRC001) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		for _, p := range inst.AddParams {
			if p.Source != "" {
				continue
			}
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    r.DefaultSeverity(),
				Message:     fmt.Sprintf("%s: added parameter %q has no source", inst.ID, p.Name),
				Paths:       []string{inst.ID + ".add_parameters." + p.Name},
				LineNumbers: []int{p.Line},
				Suggestion:  "Add a source key naming the underlying driver parameter",
			})
		}
	}
	return violations
}

// SRC002 checks that sources resolve against the driver catalog. Drivers
// that discover parameters at connect time only rate an info.
type SRC002 struct {
	*station.BaseRule
	drivers *driver.Registry
}

func NewSRC002(drivers *driver.Registry) *SRC002 {
	return &SRC002{
		BaseRule: station.NewBaseRule("SRC-002", "sources must resolve against the driver", "source", station.SeverityError),
		drivers:  drivers,
	}
}

func (r *SRC002) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		cat, ok := catalogFor(r.drivers, inst)
		if !ok {
			continue
		}
		for _, p := range inst.AddParams {
			if p.Source == "" {
				continue
			}
			if _, known := cat.Resolve(p.Source); known {
				continue
			}
			severity := r.DefaultSeverity()
			message := fmt.Sprintf("%s: source %q does not exist on driver %s", inst.ID, p.Source, inst.Driver)
			suggestion := suggestNearest(p.Source, cat)
			if cat.Dynamic {
				severity = station.SeverityInfo
				message = fmt.Sprintf("%s: source %q not declared by driver %s; it must appear at connect time", inst.ID, p.Source, inst.Driver)
				suggestion = ""
			}
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    severity,
				Message:     message,
				Paths:       []string{fmt.Sprintf("%s.add_parameters.%s.source", inst.ID, p.Name)},
				LineNumbers: []int{p.Line},
				Suggestion:  suggestion,
			})
		}
	}
	return violations
}

// suggestNearest proposes catalog paths sharing the last path segment with
// the unresolved source, e.g. voltage -> ch01.voltage.
func suggestNearest(source string, cat driver.Catalog) string {
	leaf := source
	if i := strings.LastIndex(source, "."); i >= 0 {
		leaf = source[i+1:]
	}
	var near []string
	for _, path := range cat.Paths() {
		if path == source {
			continue
		}
		if strings.HasSuffix(path, "."+leaf) || path == leaf {
			near = append(near, path)
			if len(near) == 3 {
				break
			}
		}
	}
	if len(near) == 0 {
		return ""
	}
	return "Did you mean " + strings.Join(near, ", ") + "?"
}

// SRC003 checks that overrides do not carry a source key.
type SRC003 struct {
	*station.BaseRule
}

func NewSRC003() *SRC003 {
	return &SRC003{
		BaseRule: station.NewBaseRule("SRC-003", "source is only valid under add_parameters", "source", station.SeverityError),
	}
}

func (r *SRC003) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		for _, p := range inst.Overrides {
			if p.Source == "" {
				continue
			}
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    r.DefaultSeverity(),
				Message:     fmt.Sprintf("%s.%s: source is only valid under add_parameters", inst.ID, p.Name),
				Paths:       []string{fmt.Sprintf("%s.parameters.%s.source", inst.ID, p.Name)},
				LineNumbers: []int{p.Line},
				Suggestion:  "Move the entry to add_parameters or drop the source key",
			})
		}
	}
	return violations
}
