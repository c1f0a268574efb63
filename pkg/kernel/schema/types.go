// Package schema defines the plan document produced by a planner, its
// compiled executable form, and the evaluation case fixtures.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
)

// Reserved document keys.
const (
	KeySteps      = "steps"
	KeyUsage      = "_usage"
	KeyTicketText = "ticket_text"
)

// Step keys allowed by the plan schema.
const (
	StepKeyID     = "id"
	StepKeyAction = "action"
	StepKeyInputs = "inputs"
)

// ---------------------------------------------------------------------------
// Document
// ---------------------------------------------------------------------------

// Document is a plan exactly as the planner returned it, decoded into
// generic JSON values. Validators work on documents so that a malformed
// plan degrades findings instead of failing to decode.
type Document map[string]any

// Steps returns the raw steps value and whether it is a list.
func (d Document) Steps() ([]any, bool) {
	steps, ok := d[KeySteps].([]any)
	return steps, ok
}

// TicketText returns the ticket text attached by the planner, if any.
func (d Document) TicketText() string {
	s, _ := d[KeyTicketText].(string)
	return s
}

// Usage returns the token usage attached under the reserved usage key.
// Missing figures are zero; a missing total is prompt + completion.
func (d Document) Usage() Usage {
	return usageFrom(d[KeyUsage])
}

// Metadata returns every key except the steps.
func (d Document) Metadata() map[string]any {
	meta := make(map[string]any, len(d))
	for k, v := range d {
		if k == KeySteps {
			continue
		}
		meta[k] = v
	}
	return meta
}

// Usage holds token counts reported by the planner.
type Usage struct {
	Prompt     int `yaml:"prompt"     json:"prompt"`
	Completion int `yaml:"completion" json:"completion"`
	Total      int `yaml:"total"      json:"total"`
}

// Map returns the usage in the shape stored under the reserved key.
func (u Usage) Map() map[string]any {
	return map[string]any{
		"prompt":     u.Prompt,
		"completion": u.Completion,
		"total":      u.Total,
	}
}

func usageFrom(raw any) Usage {
	m, ok := raw.(map[string]any)
	if !ok {
		return Usage{}
	}
	u := Usage{}
	u.Prompt, _ = toInt(m["prompt"])
	u.Completion, _ = toInt(m["completion"])
	if total, ok := toInt(m["total"]); ok {
		u.Total = total
	} else {
		u.Total = u.Prompt + u.Completion
	}
	return u
}

// ---------------------------------------------------------------------------
// Plan
// ---------------------------------------------------------------------------

// Plan is the executable form of a document.
type Plan struct {
	Steps    []Step
	Metadata map[string]any
}

// Step is one unit of work: an operation name plus its templated inputs.
type Step struct {
	ID     int
	Action string
	Inputs map[string]Value
}

// Actions returns the step actions in plan order.
func (p *Plan) Actions() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Action
	}
	return out
}

// Compile converts a document into an executable plan. It fails when the
// document lacks the fields execution depends on: a steps list whose
// entries are objects with an integer id, a string action and an inputs
// object. Extra step keys are ignored here; the plan validator reports them.
func Compile(doc Document) (*Plan, error) {
	raw, ok := doc[KeySteps]
	if !ok {
		return nil, fmt.Errorf("plan has no %q", KeySteps)
	}
	steps, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("plan %q is %T, want list", KeySteps, raw)
	}

	plan := &Plan{
		Steps:    make([]Step, 0, len(steps)),
		Metadata: doc.Metadata(),
	}
	for i, rs := range steps {
		step, err := compileStep(rs)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan, nil
}

func compileStep(raw any) (Step, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Step{}, fmt.Errorf("step is %T, want object", raw)
	}

	rawID, ok := m[StepKeyID]
	if !ok {
		return Step{}, fmt.Errorf("missing %q", StepKeyID)
	}
	id, ok := toInt(rawID)
	if !ok {
		return Step{}, fmt.Errorf("%q is %v, want integer", StepKeyID, rawID)
	}

	action, ok := m[StepKeyAction].(string)
	if !ok {
		return Step{}, fmt.Errorf("missing or non-string %q", StepKeyAction)
	}

	rawInputs, ok := m[StepKeyInputs]
	if !ok {
		return Step{}, fmt.Errorf("missing %q", StepKeyInputs)
	}
	obj, ok := ParseValue(rawInputs).(Object)
	if !ok {
		return Step{}, fmt.Errorf("%q is %T, want object", StepKeyInputs, rawInputs)
	}

	return Step{ID: id, Action: action, Inputs: obj}, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
