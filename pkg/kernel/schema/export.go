package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// PlanSpec is the documented shape of a plan. It exists for schema
// generation; execution works on Document and Plan.
type PlanSpec struct {
	Steps      []StepSpec `json:"steps" jsonschema:"minItems=1,description=Ordered steps executed one after another"`
	TicketText string     `json:"ticket_text,omitempty" jsonschema:"description=Ticket text the plan was generated for"`
	Usage      *Usage     `json:"_usage,omitempty" jsonschema:"description=Token usage reported by the planner"`
}

// StepSpec is the documented shape of a single step.
type StepSpec struct {
	ID     int            `json:"id" jsonschema:"minimum=1,description=Step identifier"`
	Action string         `json:"action" jsonschema:"description=Name of a registered operation"`
	Inputs map[string]any `json:"inputs" jsonschema:"description=Keyword inputs; strings starting with $ reference run variables"`
}

// GeneratePlanSchema reflects the plan JSON Schema. When actions is not
// empty the step action is constrained to those names.
func GeneratePlanSchema(actions []string) *jsonschema.Schema {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	s := r.Reflect(&PlanSpec{})
	s.ID = "https://github.com/ormasoftchile/triage/schemas/plan-v0.json"
	s.Title = "Ticket workflow plan"
	s.Description = "Plan documents produced by a planner and executed by the engine (Draft 2020-12)"

	if len(actions) > 0 {
		if def, ok := s.Definitions["StepSpec"]; ok && def.Properties != nil {
			if action, ok := def.Properties.Get("action"); ok {
				enum := make([]any, len(actions))
				for i, a := range actions {
					enum[i] = a
				}
				action.Enum = enum
			}
		}
	}
	return s
}

// GeneratePlanJSONSchema renders GeneratePlanSchema as indented JSON.
func GeneratePlanJSONSchema(actions []string) ([]byte, error) {
	data, err := json.MarshalIndent(GeneratePlanSchema(actions), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal plan schema: %w", err)
	}
	return data, nil
}
