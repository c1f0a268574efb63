package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/triage/pkg/kernel/validate"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan.json|plan.yaml>",
		Short: "Score a plan's structure and report schema and rule diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules := a.rules(a.registry())
			doc, diags := validate.DiagnoseFile(args[0], rules)
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

			printDiagnostics(errOut, diags)
			if doc == nil {
				return fmt.Errorf("%s could not be loaded", args[0])
			}

			f := validate.Plan(doc, rules)
			printChecks(out, f)
			fmt.Fprintf(out, "plan score: %.2f\n", validate.Score(f))

			if n := countErrors(diags); n > 0 {
				return fmt.Errorf("validation failed with %d error(s)", n)
			}
			steps, _ := doc.Steps()
			fmt.Fprintf(out, "✓ %s is valid (%d steps)\n", args[0], len(steps))
			return nil
		},
	}
}

func printDiagnostics(w io.Writer, diags []*validate.ValidationError) {
	for _, d := range diags {
		icon := "✗"
		if d.Severity == validate.SeverityWarning {
			icon = "⚠"
		}
		fmt.Fprintf(w, "  %s [%s] %s\n", icon, d.Phase, d.Message)
		if d.Path != "" {
			fmt.Fprintf(w, "    at: %s\n", d.Path)
		}
	}
}

func printChecks(w io.Writer, c validate.Checker) {
	for _, check := range c.Checks() {
		icon := "✓"
		if !check.Passed {
			icon = "✗"
		}
		fmt.Fprintf(w, "  %s %s\n", icon, check.Name)
	}
}

func countErrors(diags []*validate.ValidationError) int {
	n := 0
	for _, d := range diags {
		if d.Severity == validate.SeverityError {
			n++
		}
	}
	return n
}
