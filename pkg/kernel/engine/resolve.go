package engine

import (
	"maps"

	"github.com/ormasoftchile/triage/pkg/kernel/schema"
)

// TicketVar is the variable every run is seeded with.
const TicketVar = "ticket"

// Vars is the variable scope of a single run. It only grows: merged step
// outputs overwrite same-named keys and nothing is removed.
type Vars map[string]any

// NewVars returns the initial scope for a ticket.
func NewVars(ticket string) Vars {
	return Vars{TicketVar: ticket}
}

// Merge copies every key of out into v.
func (v Vars) Merge(out map[string]any) {
	maps.Copy(v, out)
}

// Resolve substitutes run variables into step inputs. References to absent
// variables resolve to nil; the operation decides whether that is an error.
// Resolve never modifies vars.
func Resolve(inputs map[string]schema.Value, vars Vars) map[string]any {
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		out[k] = resolveValue(v, vars)
	}
	return out
}

func resolveValue(v schema.Value, vars Vars) any {
	switch x := v.(type) {
	case schema.Ref:
		return vars[x.Name]
	case schema.Object:
		return Resolve(x, vars)
	case schema.Literal:
		return x.V
	default:
		return nil
	}
}
