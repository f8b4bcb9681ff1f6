package station

import (
	"testing"
)

func TestRuleRegistry_Register(t *testing.T) {
	registry := NewRuleRegistry()

	rule := newTestRule("TEST-001", "test", SeverityError)
	registry.Register(rule)

	if registry.Count() != 1 {
		t.Errorf("Count() = %d, want 1", registry.Count())
	}
	if !registry.IsEnabled("TEST-001") {
		t.Error("expected TEST-001 to be enabled by default")
	}
	if registry.GetRule("TEST-001") != rule {
		t.Error("GetRule() returned wrong rule")
	}
	if registry.GetRule("TEST-404") != nil {
		t.Error("GetRule() for unknown ID should return nil")
	}
}

func TestRuleRegistry_EnableDisable(t *testing.T) {
	registry := NewRuleRegistry()
	registry.Register(newTestRule("TEST-001", "test", SeverityError))

	registry.Disable("TEST-001")
	if registry.IsEnabled("TEST-001") {
		t.Error("expected TEST-001 to be disabled")
	}
	if registry.EnabledCount() != 0 {
		t.Errorf("EnabledCount() = %d, want 0", registry.EnabledCount())
	}

	registry.Enable("TEST-001")
	if !registry.IsEnabled("TEST-001") {
		t.Error("expected TEST-001 to be enabled")
	}
	if registry.EnabledCount() != 1 {
		t.Errorf("EnabledCount() = %d, want 1", registry.EnabledCount())
	}
}

func TestRuleRegistry_SetSeverity(t *testing.T) {
	registry := NewRuleRegistry()
	registry.Register(newTestRule("TEST-001", "test", SeverityError))

	if registry.GetSeverity("TEST-001") != SeverityError {
		t.Errorf("GetSeverity() = %v, want SeverityError", registry.GetSeverity("TEST-001"))
	}

	registry.SetSeverity("TEST-001", SeverityWarning)
	if registry.GetSeverity("TEST-001") != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want SeverityWarning", registry.GetSeverity("TEST-001"))
	}
}

func TestRuleRegistry_Categories(t *testing.T) {
	registry := NewRuleRegistry()
	registry.Register(newTestRule("SRC-001", "source", SeverityError))
	registry.Register(newTestRule("SRC-002", "source", SeverityError))
	registry.Register(newTestRule("INST-001", "instrument", SeverityError))

	categories := registry.Categories()
	if len(categories) != 2 {
		t.Errorf("Categories() returned %d categories, want 2", len(categories))
	}

	srcRules := registry.RulesByCategory("source")
	if len(srcRules) != 2 {
		t.Errorf("RulesByCategory(source) returned %d rules, want 2", len(srcRules))
	}
}

func TestRuleRegistry_RunRules(t *testing.T) {
	registry := NewRuleRegistry()
	registry.Register(newTestRule("TEST-001", "test", SeverityError))

	cfg := mustParseValid(t, "instruments:\n  dac:\n    driver: x\n")
	violations := registry.RunRules(cfg)

	if len(violations) != 1 {
		t.Fatalf("RunRules() returned %d violations, want 1", len(violations))
	}
	if violations[0].RuleID != "TEST-001" {
		t.Errorf("violation.RuleID = %s, want TEST-001", violations[0].RuleID)
	}
}

func TestRuleRegistry_RunRulesSeverity(t *testing.T) {
	registry := NewRuleRegistry()

	// A rule may downgrade individual findings below its default.
	rule := &testStationRule{
		BaseRule: NewBaseRule("TEST-001", "mixed severities", "test", SeverityError),
		checkFunc: func(cfg *Config) []Violation {
			return []Violation{
				{RuleID: "TEST-001", Severity: SeverityError, Message: "hard"},
				{RuleID: "TEST-001", Severity: SeverityWarning, Message: "soft"},
			}
		},
	}
	registry.Register(rule)

	cfg := mustParseValid(t, "instruments:\n  dac:\n    driver: x\n")
	violations := registry.RunRules(cfg)
	if len(violations) != 2 {
		t.Fatalf("RunRules() returned %d violations, want 2", len(violations))
	}
	if violations[0].Severity != SeverityError || violations[1].Severity != SeverityWarning {
		t.Errorf("per-violation severities not preserved: %v", violations)
	}

	// An explicit override rewrites all of the rule's findings.
	registry.SetSeverity("TEST-001", SeverityInfo)
	violations = registry.RunRules(cfg)
	for _, v := range violations {
		if v.Severity != SeverityInfo {
			t.Errorf("severity = %v, want SeverityInfo after override", v.Severity)
		}
	}
}

func TestRuleRegistry_EnableDisableCategory(t *testing.T) {
	registry := NewRuleRegistry()
	registry.Register(newTestRule("SRC-001", "source", SeverityError))
	registry.Register(newTestRule("SRC-002", "source", SeverityError))
	registry.Register(newTestRule("INST-001", "instrument", SeverityError))

	registry.DisableCategory("source")
	if registry.IsEnabled("SRC-001") || registry.IsEnabled("SRC-002") {
		t.Error("source rules should be disabled")
	}
	if !registry.IsEnabled("INST-001") {
		t.Error("instrument rule should still be enabled")
	}

	registry.EnableCategory("source")
	if !registry.IsEnabled("SRC-001") || !registry.IsEnabled("SRC-002") {
		t.Error("source rules should be enabled")
	}
}

func TestRuleRegistry_EnableDisableAll(t *testing.T) {
	registry := NewRuleRegistry()
	registry.Register(newTestRule("TEST-001", "test", SeverityError))
	registry.Register(newTestRule("TEST-002", "test", SeverityError))

	registry.DisableAll()
	if registry.EnabledCount() != 0 {
		t.Errorf("EnabledCount() after DisableAll() = %d, want 0", registry.EnabledCount())
	}

	registry.EnableAll()
	if registry.EnabledCount() != 2 {
		t.Errorf("EnabledCount() after EnableAll() = %d, want 2", registry.EnabledCount())
	}
}

func TestRuleRegistry_AllRules(t *testing.T) {
	registry := NewRuleRegistry()
	registry.Register(newTestRule("TEST-001", "test", SeverityError))
	registry.Register(newTestRule("TEST-002", "test", SeverityError))
	registry.Disable("TEST-002")

	all := registry.AllRules()
	if len(all) != 2 {
		t.Errorf("AllRules() returned %d rules, want 2", len(all))
	}

	enabled := registry.EnabledRules()
	if len(enabled) != 1 {
		t.Errorf("EnabledRules() returned %d rules, want 1", len(enabled))
	}
}
