// Package diagram draws plans as Mermaid flowcharts or ASCII boxes.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/triage/pkg/kernel/schema"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate draws plan. outputs maps each known action to the variables it
// produces; it labels data-flow edges and marks unknown actions.
func Generate(plan *schema.Plan, outputs map[string][]string, format Format) (string, error) {
	if plan == nil {
		return "", fmt.Errorf("nil plan")
	}
	steps := flatten(plan, outputs)
	switch format {
	case FormatMermaid:
		return generateMermaid(steps), nil
	case FormatASCII:
		return generateASCII(steps, plan.Metadata), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

type diagramStep struct {
	id      string
	label   string
	known   bool
	outputs []string
	// feeds are the referenced variables and the nodes that produced them.
	feeds []feed
}

type feed struct {
	from string
	name string
}

// flatten resolves, for every reference, the latest earlier step that
// produces it.
func flatten(plan *schema.Plan, outputs map[string][]string) []diagramStep {
	producer := map[string]string{}
	result := make([]diagramStep, 0, len(plan.Steps))
	for i, s := range plan.Steps {
		outs, known := outputs[s.Action]
		ds := diagramStep{
			id:      fmt.Sprintf("S%d", i+1),
			label:   fmt.Sprintf("%d. %s", s.ID, s.Action),
			known:   known,
			outputs: outs,
		}
		seen := map[string]bool{}
		for _, ref := range schema.Refs(schema.Object(s.Inputs)) {
			from, ok := producer[ref]
			if !ok || seen[ref] {
				continue
			}
			seen[ref] = true
			ds.feeds = append(ds.feeds, feed{from: from, name: ref})
		}
		for _, o := range outs {
			producer[o] = ds.id
		}
		result = append(result, ds)
	}
	return result
}

// --- Mermaid flowchart ---

func generateMermaid(steps []diagramStep) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	if len(steps) == 0 {
		b.WriteString("    START([ticket]) --> DONE([done])\n")
		return b.String()
	}

	b.WriteString("    START([ticket]) --> " + steps[0].id + "\n")
	for i, s := range steps {
		b.WriteString(fmt.Sprintf("    %s[%q]\n", s.id, s.label))
		next := "DONE([done])"
		if i < len(steps)-1 {
			next = steps[i+1].id
		}
		b.WriteString(fmt.Sprintf("    %s --> %s\n", s.id, next))
	}

	for _, s := range steps {
		for _, f := range s.feeds {
			b.WriteString(fmt.Sprintf("    %s -. %s .-> %s\n", f.from, f.name, s.id))
		}
	}
	for _, s := range steps {
		if !s.known {
			b.WriteString(fmt.Sprintf("    style %s fill:#a00,stroke:#700,color:#fff\n", s.id))
		}
	}
	return b.String()
}

// --- ASCII ---

func generateASCII(steps []diagramStep, meta map[string]any) string {
	var b strings.Builder
	name := "Plan"
	if t, _ := meta[schema.KeyTicketText].(string); t != "" {
		name = runewidth.Truncate(t, 48, "…")
	}
	if len(steps) == 0 {
		b.WriteString(name + " (empty)\n")
		return b.String()
	}

	const indent = 4
	boxWidth := computeUniformBoxWidth(steps, name)
	connPad := strings.Repeat(" ", indent+1+boxWidth/2)
	pad := strings.Repeat(" ", indent)
	mid := boxWidth / 2

	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + centerPad(name, boxWidth) + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╤" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")

	for _, s := range steps {
		b.WriteString(connPad + "│\n")
		writeASCIIStep(&b, s, indent, boxWidth)
	}
	return b.String()
}

func stepLines(s diagramStep) []string {
	icon := "○"
	if !s.known {
		icon = "✗"
	}
	lines := []string{fmt.Sprintf(" %s %s ", icon, s.label)}
	for _, f := range s.feeds {
		lines = append(lines, fmt.Sprintf(" ← %s (%s) ", f.name, f.from))
	}
	if len(s.outputs) > 0 {
		lines = append(lines, " → "+strings.Join(s.outputs, ", ")+" ")
	}
	return lines
}

// computeUniformBoxWidth returns the widest interior width needed across
// all steps and the header name.
func computeUniformBoxWidth(steps []diagramStep, name string) int {
	w := max(22, runewidth.StringWidth(name)+4)
	for _, s := range steps {
		for _, l := range stepLines(s) {
			w = max(w, runewidth.StringWidth(l))
		}
	}
	return w
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

func writeASCIIStep(b *strings.Builder, s diagramStep, indent, boxWidth int) {
	pad := strings.Repeat(" ", indent)
	mid := boxWidth / 2
	b.WriteString(pad + "┌" + strings.Repeat("─", mid) + "┴" + strings.Repeat("─", boxWidth-mid-1) + "┐\n")
	for _, l := range stepLines(s) {
		b.WriteString(pad + "│" + runewidth.FillRight(l, boxWidth) + "│\n")
	}
	b.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
}
