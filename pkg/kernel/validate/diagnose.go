package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/triage/pkg/kernel/contract"
	"github.com/ormasoftchile/triage/pkg/kernel/engine"
	"github.com/ormasoftchile/triage/pkg/kernel/schema"
)

// DiagnoseFile loads a plan file and diagnoses it. A document that cannot
// be decoded yields a single structural error and a nil document.
func DiagnoseFile(path string, rules Rules) (schema.Document, []*ValidationError) {
	doc, err := schema.LoadDocumentFile(path)
	if err != nil {
		return nil, []*ValidationError{errorf(PhaseStructural, "", "failed to load: %s", err)}
	}
	return doc, Diagnose(doc, rules)
}

// Diagnose checks a plan document against the plan JSON Schema (semantic
// phase) and, when that passes, against the plan rules (domain phase).
func Diagnose(doc schema.Document, rules Rules) []*ValidationError {
	errs := validateSemantic(doc, rules.Actions)
	if HasErrors(errs) {
		return errs
	}
	return append(errs, validateDomain(doc, rules)...)
}

const planSchemaURL = "plan.schema.json"

func compilePlanSchema(actions []string) (*jsonschema.Schema, error) {
	raw, err := schema.GeneratePlanJSONSchema(actions)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode plan schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(planSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add plan schema: %w", err)
	}
	return c.Compile(planSchemaURL)
}

func validateSemantic(doc schema.Document, actions []string) []*ValidationError {
	sch, err := compilePlanSchema(actions)
	if err != nil {
		return []*ValidationError{errorf(PhaseSemantic, "", "plan schema: %s", err)}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return []*ValidationError{errorf(PhaseSemantic, "", "encode plan: %s", err)}
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return []*ValidationError{errorf(PhaseSemantic, "", "decode plan: %s", err)}
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []*ValidationError{errorf(PhaseSemantic, "", "%s", err)}
	}
	var errs []*ValidationError
	for _, cause := range contract.Flatten(ve) {
		errs = append(errs, errorf(PhaseSemantic, instancePath(cause.InstanceLocation), "%s", contract.Describe(cause)))
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Path < errs[j].Path })
	return errs
}

// instancePath renders ["steps","0","id"] as steps[0].id.
func instancePath(loc []string) string {
	var b strings.Builder
	for _, seg := range loc {
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

func stepPath(i int) string {
	return fmt.Sprintf("steps[%d]", i)
}

// validateDomain applies the plan rules to a schema-valid document. It
// reports rule violations as errors and suspicious references as warnings.
func validateDomain(doc schema.Document, rules Rules) []*ValidationError {
	var errs []*ValidationError
	steps, _ := doc.Steps()

	if n := len(steps); n < rules.MinSteps || n > rules.MaxSteps {
		errs = append(errs, errorf(PhaseDomain, "steps", "plan has %d steps, want %d to %d", n, rules.MinSteps, rules.MaxSteps))
	}
	if len(steps) > 0 && stepAction(steps[0]) != rules.EntryAction {
		errs = append(errs, errorf(PhaseDomain, stepPath(0)+".action", "first step must be %q, got %q", rules.EntryAction, stepAction(steps[0])))
	}

	seenIDs := map[string]int{}
	available := map[string]bool{engine.TicketVar: true}
	for i, s := range steps {
		m, _ := s.(map[string]any)
		path := stepPath(i)

		id := fmt.Sprint(m[schema.StepKeyID])
		if prev, dup := seenIDs[id]; dup {
			errs = append(errs, warningf(PhaseDomain, path+".id", "duplicate step id %s (also %s)", id, stepPath(prev)))
		} else {
			seenIDs[id] = i
		}

		action := stepAction(s)
		if !rules.allowedAction(action) {
			errs = append(errs, errorf(PhaseDomain, path+".action", "unknown action %q", action))
		}

		for _, ref := range schema.Refs(schema.ParseValue(m[schema.StepKeyInputs])) {
			switch {
			case !rules.allowedVar(ref):
				errs = append(errs, errorf(PhaseDomain, path+".inputs", "reference to disallowed variable $%s", ref))
			case !available[ref]:
				errs = append(errs, warningf(PhaseDomain, path+".inputs", "$%s is not produced by an earlier step and resolves to null", ref))
			}
		}

		for _, out := range rules.Outputs[action] {
			available[out] = true
		}
	}
	return errs
}
