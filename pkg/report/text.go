package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/triage/pkg/kernel/eval"
	"github.com/ormasoftchile/triage/pkg/kernel/harness"
)

var (
	colorGreen = lipgloss.Color("42")
	colorRed   = lipgloss.Color("196")
	colorCyan  = lipgloss.Color("51")
	colorDim   = lipgloss.Color("240")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	headerStyle  = lipgloss.NewStyle().Bold(true)
	scoredStyle  = lipgloss.NewStyle().Foreground(colorGreen)
	crashedStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

// nameWidth caps the case name column.
const nameWidth = 44

type column struct {
	title string
	width int
	right bool
}

func (c column) cell(s string) string {
	s = runewidth.Truncate(s, c.width, "…")
	if c.right {
		return strings.Repeat(" ", c.width-runewidth.StringWidth(s)) + s
	}
	return runewidth.FillRight(s, c.width)
}

// Text renders one table per configuration followed by the comparison
// summary.
func Text(reports []*harness.Report) string {
	var b strings.Builder
	for _, r := range reports {
		writeCases(&b, r)
		b.WriteString("\n")
	}
	writeSummary(&b, reports)
	return b.String()
}

func writeCases(b *strings.Builder, r *harness.Report) {
	names := len("case")
	for _, res := range r.Results {
		names = max(names, runewidth.StringWidth(res.Name))
	}
	cols := []column{
		{"case", min(names, nameWidth), false},
		{"status", 7, false},
		{"plan", 5, true},
		{"exec", 5, true},
		{"func", 5, true},
		{"overall", 7, true},
		{"latency", 8, true},
		{"cost", 10, true},
	}

	b.WriteString(titleStyle.Render(r.Configuration))
	b.WriteString("\n")
	writeRow(b, cols, headerStyle, titles(cols)...)

	for _, res := range r.Results {
		if res.Status != harness.StatusScored {
			status := crashedStyle.Render(cols[1].cell(res.Status))
			b.WriteString(cols[0].cell(res.Name) + "  " + status + "  ")
			b.WriteString(dimStyle.Render(res.Stage + ": " + oneLine(res.Error)))
			b.WriteString("\n")
			continue
		}
		cells := []string{
			cols[0].cell(res.Name),
			scoredStyle.Render(cols[1].cell(res.Status)),
			cols[2].cell(score(res.PlanEvalScore)),
			cols[3].cell(score(res.ExecutionEvalScore)),
			cols[4].cell(score(res.FunctionalEval.FunctionalScore)),
			cols[5].cell(score(res.OverallScore)),
			cols[6].cell(secs(res.Latency())),
			cols[7].cell(usd(res.Cost.TotalCostUSD)),
		}
		b.WriteString(strings.Join(cells, "  "))
		b.WriteString("\n")
		if eval.AllPassed(res.Assertions) {
			continue
		}
		for _, a := range res.Assertions {
			if !a.Passed {
				b.WriteString(dimStyle.Render("    check failed: " + a.Expr))
				b.WriteString("\n")
			}
		}
	}
}

func writeSummary(b *strings.Builder, reports []*harness.Report) {
	width := len("configuration")
	for _, r := range reports {
		width = max(width, runewidth.StringWidth(r.Configuration))
	}
	cols := []column{
		{"configuration", width, false},
		{"scored", 6, true},
		{"crashed", 7, true},
		{"mean overall", 12, true},
		{"mean latency", 12, true},
		{"mean cost", 10, true},
	}

	b.WriteString(titleStyle.Render("Comparison"))
	b.WriteString("\n")
	writeRow(b, cols, headerStyle, titles(cols)...)
	for _, r := range reports {
		s := r.Summary
		writeRow(b, cols, lipgloss.NewStyle(),
			s.Configuration,
			fmt.Sprint(s.Scored),
			fmt.Sprint(s.Crashed),
			score(s.MeanOverall),
			secs(s.MeanLatencySec),
			usd(s.MeanCostUSD),
		)
	}
	if best, ok := Best(reports); ok {
		fmt.Fprintf(b, "\nbest: %s (%s)\n", titleStyle.Render(best.Configuration), score(best.MeanOverall))
	}
}

func writeRow(b *strings.Builder, cols []column, style lipgloss.Style, values ...string) {
	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = c.cell(values[i])
	}
	b.WriteString(style.Render(strings.Join(cells, "  ")))
	b.WriteString("\n")
}

func titles(cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.title
	}
	return out
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
