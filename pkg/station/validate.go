package station

import (
	"fmt"
	"strings"
)

// Severity represents the severity level of a validation issue.
type Severity int

const (
	// SeverityError indicates a critical issue that makes the configuration invalid.
	SeverityError Severity = iota
	// SeverityWarning indicates a potential issue that should be addressed.
	SeverityWarning
	// SeverityInfo indicates an informational note or suggestion.
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Rule represents a validation rule that can be applied to a configuration.
type Rule interface {
	// ID returns the unique identifier for this rule (e.g., "SRC-001").
	ID() string
	// Name returns a human-readable name for the rule.
	Name() string
	// Category returns the rule category (e.g., "instrument", "parameter", "source").
	Category() string
	// DefaultSeverity returns the default severity level.
	DefaultSeverity() Severity
	// Check applies the rule to a configuration and returns any violations.
	Check(cfg *Config) []Violation
}

// Violation represents a single rule violation found during validation.
type Violation struct {
	// RuleID is the ID of the rule that was violated.
	RuleID string
	// Severity is the severity level of this violation.
	Severity Severity
	// Message describes what went wrong.
	Message string
	// Paths lists the configuration paths involved in the violation.
	Paths []string
	// LineNumbers lists the source line numbers involved (if known).
	LineNumbers []int
	// Suggestion provides a suggested fix (if applicable).
	Suggestion string
}

// String returns a formatted string representation of the violation.
func (v Violation) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s: %s", v.RuleID, v.Severity, v.Message))

	if len(v.Paths) > 0 {
		sb.WriteString(fmt.Sprintf(" (at: %s)", strings.Join(v.Paths, ", ")))
	}

	if len(v.LineNumbers) > 0 {
		lines := make([]string, len(v.LineNumbers))
		for i, ln := range v.LineNumbers {
			lines[i] = fmt.Sprintf("%d", ln)
		}
		sb.WriteString(fmt.Sprintf(" [lines: %s]", strings.Join(lines, ", ")))
	}

	if v.Suggestion != "" {
		sb.WriteString(fmt.Sprintf(" -> %s", v.Suggestion))
	}

	return sb.String()
}

// HasErrors returns true if any violation has severity Error.
func HasErrors(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

// FilterBySeverity returns violations at or above the given severity level.
func FilterBySeverity(violations []Violation, minSeverity Severity) []Violation {
	var filtered []Violation
	for _, v := range violations {
		if v.Severity <= minSeverity {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// BaseRule provides a default implementation of common Rule methods.
type BaseRule struct {
	id              string
	name            string
	category        string
	defaultSeverity Severity
}

// ID returns the rule ID.
func (r *BaseRule) ID() string { return r.id }

// Name returns the rule name.
func (r *BaseRule) Name() string { return r.name }

// Category returns the rule category.
func (r *BaseRule) Category() string { return r.category }

// DefaultSeverity returns the default severity.
func (r *BaseRule) DefaultSeverity() Severity { return r.defaultSeverity }

// NewBaseRule creates a new BaseRule with the given properties.
func NewBaseRule(id, name, category string, severity Severity) *BaseRule {
	return &BaseRule{
		id:              id,
		name:            name,
		category:        category,
		defaultSeverity: severity,
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Code    string
	Message string
	Line    int
}

func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	// Valid is true if the configuration passed all validation checks.
	Valid bool

	// Errors contains all validation errors.
	Errors []ValidationError

	// Warnings contains non-fatal issues.
	Warnings []ValidationError
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(code, message string, line int) {
	r.Errors = append(r.Errors, ValidationError{
		Code:    code,
		Message: message,
		Line:    line,
	})
	r.Valid = false
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(code, message string, line int) {
	r.Warnings = append(r.Warnings, ValidationError{
		Code:    code,
		Message: message,
		Line:    line,
	})
}

// Validator validates station configurations against structural rules.
// It covers the checks that need no driver registry; the full rule set
// lives in the rules subpackage and runs through ValidateWithOptions.
type Validator struct{}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates a configuration.
func (v *Validator) Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{Valid: true}

	for _, inst := range cfg.Instruments {
		v.checkInstrument(inst, result)
	}

	return result
}

func (v *Validator) checkInstrument(inst *Instrument, result *ValidationResult) {
	if !ValidIdent(inst.ID) {
		result.AddError("IDENT", fmt.Sprintf("instrument ID %q is not a valid identifier", inst.ID), inst.Line)
	}
	if inst.Driver == "" {
		result.AddError("DRIVER", fmt.Sprintf("%s: missing driver", inst.ID), inst.Line)
	}

	added := map[string]*Param{}
	for _, p := range inst.AddParams {
		added[p.Name] = p
		if !ValidIdent(p.Name) {
			result.AddError("IDENT", fmt.Sprintf("%s: parameter name %q is not a valid identifier", inst.ID, p.Name), p.Line)
		}
		if p.Source == "" {
			result.AddError("SOURCE", fmt.Sprintf("%s.%s: add_parameters entry has no source", inst.ID, p.Name), p.Line)
		}
		v.checkParam(inst.ID, p, result)
	}
	for _, p := range inst.Overrides {
		if !ValidParamPath(p.Name) {
			result.AddError("IDENT", fmt.Sprintf("%s: parameter name %q is not a valid path", inst.ID, p.Name), p.Line)
		}
		if p.Source != "" {
			result.AddError("SOURCE", fmt.Sprintf("%s.%s: source is only valid under add_parameters", inst.ID, p.Name), p.Line)
		}
		if prev, dup := added[p.Name]; dup {
			result.AddError("DUPLICATE", fmt.Sprintf("%s: parameter %q defined both under add_parameters (line %d) and parameters", inst.ID, p.Name, prev.Line), p.Line)
		}
		v.checkParam(inst.ID, p, result)
	}
}

func (v *Validator) checkParam(id string, p *Param, result *ValidationResult) {
	if p.Scale != nil && *p.Scale == 0 {
		result.AddError("SCALE", fmt.Sprintf("%s.%s: scale must be nonzero", id, p.Name), p.Line)
	}
	if p.Limits != nil {
		if err := p.Limits.Validate(); err != nil {
			result.AddError("LIMITS", fmt.Sprintf("%s.%s: %v", id, p.Name, err), p.Line)
		} else if p.InitialValue != nil {
			if f, ok := toFloat(p.InitialValue); ok && !p.Limits.Contains(f) {
				result.AddError("INITIAL", fmt.Sprintf("%s.%s: initial_value %v outside limits %s", id, p.Name, p.InitialValue, p.Limits), p.Line)
			}
		}
	}
}

// ValidateConfig is a convenience function to validate a configuration.
func ValidateConfig(cfg *Config) *ValidationResult {
	return NewValidator().Validate(cfg)
}

// ValidateOptions configures validation behavior.
type ValidateOptions struct {
	// Registry is the rule registry to use. If nil, uses structural validation.
	Registry *RuleRegistry
	// MinSeverity filters violations to only those at or above this severity.
	MinSeverity Severity
	// DisabledRules is a list of rule IDs to disable.
	DisabledRules []string
	// EnabledCategories limits validation to rules in these categories.
	// If empty, all categories are included.
	EnabledCategories []string
}

// ValidateWithOptions validates a configuration using the rule registry
// system.
func (v *Validator) ValidateWithOptions(cfg *Config, opts ValidateOptions) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if opts.Registry == nil {
		return v.Validate(cfg)
	}

	for _, id := range opts.DisabledRules {
		opts.Registry.Disable(id)
	}

	if len(opts.EnabledCategories) > 0 {
		opts.Registry.DisableAll()
		for _, cat := range opts.EnabledCategories {
			opts.Registry.EnableCategory(cat)
		}
	}

	violations := opts.Registry.RunRules(cfg)

	for _, viol := range violations {
		if viol.Severity > opts.MinSeverity {
			continue
		}

		line := 0
		if len(viol.LineNumbers) > 0 {
			line = viol.LineNumbers[0]
		}

		switch viol.Severity {
		case SeverityError:
			result.AddError(viol.RuleID, viol.Message, line)
		default:
			result.AddWarning(viol.RuleID, viol.Message, line)
		}
	}

	return result
}

// ValidateWithRegistry validates using all rules in the provided registry.
func ValidateWithRegistry(cfg *Config, registry *RuleRegistry) *ValidationResult {
	v := NewValidator()
	return v.ValidateWithOptions(cfg, ValidateOptions{
		Registry:    registry,
		MinSeverity: SeverityWarning,
	})
}

// ValidIdent reports whether s is a plain identifier: letters, digits and
// underscores, not starting with a digit.
func ValidIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// ValidParamPath reports whether s is a dotted path of identifiers.
func ValidParamPath(s string) bool {
	if s == "" {
		return false
	}
	for _, seg := range strings.Split(s, ".") {
		if !ValidIdent(seg) {
			return false
		}
	}
	return true
}

// toFloat coerces a configuration scalar to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
