package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/ormasoftchile/triage/pkg/kernel/harness"
)

// Markdown renders the comparison as a Markdown document: a summary table
// and a per-case table for each configuration.
func Markdown(reports []*harness.Report) string {
	var b strings.Builder
	b.WriteString("# Planner comparison\n\n")
	b.WriteString("| configuration | scored | crashed | mean overall | mean latency | mean cost |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, r := range reports {
		s := r.Summary
		fmt.Fprintf(&b, "| %s | %d | %d | %s | %s | %s |\n",
			cell(s.Configuration), s.Scored, s.Crashed,
			score(s.MeanOverall), secs(s.MeanLatencySec), usd(s.MeanCostUSD))
	}
	if best, ok := Best(reports); ok {
		fmt.Fprintf(&b, "\nBest configuration: **%s** (%s)\n", cell(best.Configuration), score(best.MeanOverall))
	}

	for _, r := range reports {
		fmt.Fprintf(&b, "\n## %s\n\n", cell(r.Configuration))
		b.WriteString("| case | status | plan | exec | functional | overall | cost |\n")
		b.WriteString("|---|---|---:|---:|---:|---:|---:|\n")
		for _, res := range r.Results {
			if res.Status != harness.StatusScored {
				fmt.Fprintf(&b, "| %s | crashed (%s) | | | | | |\n", cell(res.Name), res.Stage)
				continue
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				cell(res.Name), res.Status,
				score(res.PlanEvalScore), score(res.ExecutionEvalScore),
				score(res.FunctionalEval.FunctionalScore), score(res.OverallScore),
				usd(res.Cost.TotalCostUSD))
		}
	}
	return b.String()
}

// RenderMarkdown styles md for the terminal, wrapping at width columns.
func RenderMarkdown(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

// cell escapes table separators.
func cell(s string) string {
	return strings.ReplaceAll(oneLine(s), "|", `\|`)
}
