// Package validate scores plans, execution logs and final run variables.
//
// The three scoring validators (Plan, Execution, Context) never fail: a
// malformed input produces false findings, not errors. Diagnose adds
// advisory, human-readable diagnostics that do not affect scores.
package validate

import (
	"fmt"

	"github.com/ormasoftchile/triage/pkg/kernel/registry"
)

// Default plan rules.
const (
	DefaultMinSteps    = 2
	DefaultMaxSteps    = 5
	DefaultEntryAction = "classify_ticket"
)

// DefaultAllowedVars are the variables a plan may reference.
var DefaultAllowedVars = []string{"ticket", "summary", "priority", "category", "related_issue"}

// Rules parameterize plan validation.
type Rules struct {
	MinSteps    int
	MaxSteps    int
	EntryAction string
	AllowedVars []string
	// Actions are the registered action names.
	Actions []string
	// Outputs maps each action to the keys it produces.
	Outputs map[string][]string
}

// DefaultRules returns the default rules for the operations in reg.
func DefaultRules(reg *registry.Registry) Rules {
	r := Rules{
		MinSteps:    DefaultMinSteps,
		MaxSteps:    DefaultMaxSteps,
		EntryAction: DefaultEntryAction,
		AllowedVars: append([]string(nil), DefaultAllowedVars...),
	}
	return r.WithRegistry(reg)
}

// WithRegistry returns a copy of r whose actions and outputs come from reg.
func (r Rules) WithRegistry(reg *registry.Registry) Rules {
	r.Actions = reg.Names()
	r.Outputs = make(map[string][]string, len(r.Actions))
	for _, name := range r.Actions {
		r.Outputs[name] = reg.RequiredOutputs(name)
	}
	return r
}

func (r Rules) allowedAction(name string) bool {
	for _, a := range r.Actions {
		if a == name {
			return true
		}
	}
	return false
}

func (r Rules) allowedVar(name string) bool {
	for _, v := range r.AllowedVars {
		if v == name {
			return true
		}
	}
	return false
}

// Severity levels of a ValidationError.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Diagnostic phases.
const (
	PhaseStructural = "structural"
	PhaseSemantic   = "semantic"
	PhaseDomain     = "domain"
)

// ValidationError is one diagnostic produced by Diagnose.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s at %s", e.Phase, e.Message, e.Path)
	}
	return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
}

func errorf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{
		Phase:    phase,
		Path:     path,
		Message:  fmt.Sprintf(msg, args...),
		Severity: SeverityError,
	}
}

func warningf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{
		Phase:    phase,
		Path:     path,
		Message:  fmt.Sprintf(msg, args...),
		Severity: SeverityWarning,
	}
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}
