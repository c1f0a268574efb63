package validate

import (
	"github.com/ormasoftchile/triage/pkg/kernel/engine"
	"github.com/ormasoftchile/triage/pkg/kernel/registry"
	"github.com/ormasoftchile/triage/pkg/kernel/schema"
)

// ExecutionFindings are the fidelity checks of an execution log against
// the plan that produced it.
type ExecutionFindings struct {
	AllStepsExecuted    bool `json:"all_steps_executed"`
	CorrectOrder        bool `json:"correct_order"`
	OutputsAreDicts     bool `json:"outputs_are_dicts"`
	NoNoneOutputs       bool `json:"no_none_outputs"`
	AllToolsAllowed     bool `json:"all_tools_allowed"`
	RequiredKeysPresent bool `json:"required_keys_present"`
}

// Checks returns the findings in evaluation order.
func (f ExecutionFindings) Checks() []Check {
	return []Check{
		{"all_steps_executed", f.AllStepsExecuted},
		{"correct_order", f.CorrectOrder},
		{"outputs_are_dicts", f.OutputsAreDicts},
		{"no_none_outputs", f.NoNoneOutputs},
		{"all_tools_allowed", f.AllToolsAllowed},
		{"required_keys_present", f.RequiredKeysPresent},
	}
}

// Execution checks log against plan. Required output keys come from the
// contracts in reg; a non-object output is missing every key.
func Execution(plan *schema.Plan, log []engine.LogEntry, reg *registry.Registry) ExecutionFindings {
	var f ExecutionFindings

	f.AllStepsExecuted = len(log) == len(plan.Steps)

	if f.AllStepsExecuted {
		f.CorrectOrder = true
		actions := plan.Actions()
		for i, entry := range log {
			if entry.Action != actions[i] {
				f.CorrectOrder = false
				break
			}
		}
	}

	f.OutputsAreDicts = true
	f.NoNoneOutputs = true
	f.AllToolsAllowed = true
	for _, entry := range log {
		if _, ok := entry.Output.(map[string]any); !ok {
			f.OutputsAreDicts = false
		}
		if entry.Output == nil {
			f.NoNoneOutputs = false
		}
		if !reg.Has(entry.Action) {
			f.AllToolsAllowed = false
		}
	}

	f.RequiredKeysPresent = true
	for _, entry := range log {
		if !hasKeys(entry.Output, reg.RequiredOutputs(entry.Action)) {
			f.RequiredKeysPresent = false
			break
		}
	}

	return f
}

func hasKeys(output any, keys []string) bool {
	if len(keys) == 0 {
		return true
	}
	m, ok := output.(map[string]any)
	if !ok {
		return false
	}
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}
