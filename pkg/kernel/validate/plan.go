package validate

import (
	"github.com/ormasoftchile/triage/pkg/kernel/schema"
)

// PlanFindings are the structural checks of a plan document.
type PlanFindings struct {
	HasSteps           bool `json:"has_steps"`
	StepCountValid     bool `json:"step_count_valid"`
	StartsWithClassify bool `json:"starts_with_classify"`
	OnlyAllowedActions bool `json:"only_allowed_actions"`
	ValidStepSchema    bool `json:"valid_step_schema"`
	ValidVariableRefs  bool `json:"valid_variable_refs"`
}

// Checks returns the findings in evaluation order.
func (f PlanFindings) Checks() []Check {
	return []Check{
		{"has_steps", f.HasSteps},
		{"step_count_valid", f.StepCountValid},
		{"starts_with_classify", f.StartsWithClassify},
		{"only_allowed_actions", f.OnlyAllowedActions},
		{"valid_step_schema", f.ValidStepSchema},
		{"valid_variable_refs", f.ValidVariableRefs},
	}
}

var stepKeys = map[string]bool{
	schema.StepKeyID:     true,
	schema.StepKeyAction: true,
	schema.StepKeyInputs: true,
}

// Plan checks the structure of a plan document. A missing, non-list or
// empty steps value fails every finding.
func Plan(doc schema.Document, rules Rules) PlanFindings {
	steps, ok := doc.Steps()
	if !ok || len(steps) == 0 {
		return PlanFindings{}
	}

	f := PlanFindings{HasSteps: true}
	f.StepCountValid = len(steps) >= rules.MinSteps && len(steps) <= rules.MaxSteps
	f.StartsWithClassify = stepAction(steps[0]) == rules.EntryAction

	f.OnlyAllowedActions = true
	for _, s := range steps {
		if !rules.allowedAction(stepAction(s)) {
			f.OnlyAllowedActions = false
			break
		}
	}

	f.ValidStepSchema = true
	for _, s := range steps {
		m, ok := s.(map[string]any)
		if !ok {
			f.ValidStepSchema = false
			break
		}
		for k := range m {
			if !stepKeys[k] {
				f.ValidStepSchema = false
			}
		}
		if !f.ValidStepSchema {
			break
		}
	}

	f.ValidVariableRefs = true
	for _, s := range steps {
		in := stepInputs(s)
		if in == nil {
			continue
		}
		if !schema.WalkRefs(schema.ParseValue(in), rules.allowedVar) {
			f.ValidVariableRefs = false
			break
		}
	}

	return f
}

// stepAction returns the action of a raw step, or "" when the step is not
// an object or its action is not a string.
func stepAction(s any) string {
	m, ok := s.(map[string]any)
	if !ok {
		return ""
	}
	a, _ := m[schema.StepKeyAction].(string)
	return a
}

func stepInputs(s any) any {
	m, ok := s.(map[string]any)
	if !ok {
		return nil
	}
	return m[schema.StepKeyInputs]
}
