package rules

import (
	"fmt"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/station"
)

// RegisterMonitorRules registers all monitoring rules with the given
// registry.
func RegisterMonitorRules(registry *station.RuleRegistry, drivers *driver.Registry) {
	registry.Register(NewMON001(drivers))
}

// MON001 checks that monitored parameters are readable. A monitor flag on
// a write-only parameter produces no samples.
type MON001 struct {
	*station.BaseRule
	drivers *driver.Registry
}

func NewMON001(drivers *driver.Registry) *MON001 {
	return &MON001{
		BaseRule: station.NewBaseRule("MON-001", "monitored parameters must be readable", "monitor", station.SeverityWarning),
		drivers:  drivers,
	}
}

func (r *MON001) Check(cfg *station.Config) []station.Violation {
	var violations []station.Violation
	for _, inst := range cfg.Instruments {
		cat, ok := catalogFor(r.drivers, inst)
		if !ok || cat.Dynamic {
			continue
		}
		for _, p := range inst.Params() {
			if p.Monitor == nil || !*p.Monitor {
				continue
			}
			target := p.Name
			if p.Source != "" {
				target = p.Source
			}
			cp, known := cat.Resolve(target)
			if !known || cp.Access.CanRead() {
				continue
			}
			violations = append(violations, station.Violation{
				RuleID:      r.ID(),
				Severity:    r.DefaultSeverity(),
				Message:     fmt.Sprintf("%s.%s: monitoring a write-only parameter %q yields no samples", inst.ID, p.Name, target),
				Paths:       []string{fmt.Sprintf("%s.%s.monitor", inst.ID, p.Name)},
				LineNumbers: []int{p.Line},
				Suggestion:  "Remove the monitor flag",
			})
		}
	}
	return violations
}
