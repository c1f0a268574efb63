package planner

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/ormasoftchile/triage/pkg/kernel/contract"
	"github.com/ormasoftchile/triage/pkg/kernel/schema"
	"github.com/ormasoftchile/triage/pkg/kernel/validate"
)

// SystemPrompt is sent as the system message. It describes the available
// operations, the plan format and the rules the plan is scored against.
const SystemPrompt = `You are a support ticket workflow planner. Given a ticket, produce a JSON
plan of steps that triages it using only the operations listed below.

## Operations

{{ range .Operations -}}
- {{ .Name }}({{ .Args }}) -> {{ .Outputs }}{{ if .Description }}: {{ .Description }}{{ end }}
{{ end }}
## Plan format

Return a single JSON object that conforms to this JSON Schema:

` + "```json" + `
{{ .JSONSchema }}
` + "```" + `

Example:

{"steps": [
  {"id": 1, "action": "classify_ticket", "inputs": {"text": "$ticket"}},
  {"id": 2, "action": "extract_summary", "inputs": {"text": "$ticket"}}
]}

## Rules

1. Use between {{ .MinSteps }} and {{ .MaxSteps }} steps.
2. The first step must be {{ .EntryAction }}.
3. Each step has exactly the keys id, action and inputs.
4. A string input starting with $ references a variable. Allowed variables: {{ .AllowedVars }}.
   $ticket holds the ticket text; the others are produced by earlier steps.
5. Output JSON only. No prose, no code fences.
`

var systemTemplate = template.Must(template.New("system").Parse(SystemPrompt))

// PromptOperation is one operation entry in the prompt catalog.
type PromptOperation struct {
	Name        string
	Args        string
	Outputs     string
	Description string
}

// PromptData holds the data for rendering the system prompt.
type PromptData struct {
	Operations  []PromptOperation
	JSONSchema  string
	MinSteps    int
	MaxSteps    int
	EntryAction string
	AllowedVars string
}

// NewPromptData builds prompt data from the operation contracts and plan
// rules. Operations are listed in name order.
func NewPromptData(contracts map[string]contract.Contract, rules validate.Rules) (PromptData, error) {
	names := make([]string, 0, len(contracts))
	for name := range contracts {
		names = append(names, name)
	}
	sort.Strings(names)

	ops := make([]PromptOperation, 0, len(names))
	for _, name := range names {
		c := contracts[name]
		ops = append(ops, PromptOperation{
			Name:        name,
			Args:        strings.Join(c.InputNames(), ", "),
			Outputs:     "{" + strings.Join(c.Outputs, ", ") + "}",
			Description: c.Description,
		})
	}

	js, err := schema.GeneratePlanJSONSchema(names)
	if err != nil {
		return PromptData{}, err
	}

	vars := make([]string, len(rules.AllowedVars))
	for i, v := range rules.AllowedVars {
		vars[i] = schema.RefPrefix + v
	}

	return PromptData{
		Operations:  ops,
		JSONSchema:  string(js),
		MinSteps:    rules.MinSteps,
		MaxSteps:    rules.MaxSteps,
		EntryAction: rules.EntryAction,
		AllowedVars: strings.Join(vars, ", "),
	}, nil
}

// RenderSystemPrompt renders the system prompt.
func RenderSystemPrompt(data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := systemTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return buf.String(), nil
}
