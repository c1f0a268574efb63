// Package report renders evaluation results as JSON, aligned terminal
// tables or Markdown.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ormasoftchile/triage/pkg/kernel/harness"
)

// WriteJSON writes reports as an indented JSON array.
func WriteJSON(w io.Writer, reports []*harness.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// Best returns the summary with the highest mean overall score, preferring
// the cheaper configuration on a tie. It returns false when no
// configuration scored a case.
func Best(reports []*harness.Report) (harness.Summary, bool) {
	var best harness.Summary
	found := false
	for _, r := range reports {
		s := r.Summary
		if s.Scored == 0 {
			continue
		}
		if !found || s.MeanOverall > best.MeanOverall ||
			(s.MeanOverall == best.MeanOverall && s.MeanCostUSD < best.MeanCostUSD) {
			best, found = s, true
		}
	}
	return best, found
}

func score(v float64) string { return fmt.Sprintf("%.2f", v) }

func usd(v float64) string { return fmt.Sprintf("$%.6f", v) }

func secs(v float64) string { return fmt.Sprintf("%.2fs", v) }
