package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/triage/pkg/diagram"
	"github.com/ormasoftchile/triage/pkg/kernel/schema"
)

func newDiagramCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "diagram <plan.json|plan.yaml>",
		Short: "Draw a plan as a Mermaid flowchart or ASCII boxes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := schema.LoadDocumentFile(args[0])
			if err != nil {
				return err
			}
			plan, err := schema.Compile(doc)
			if err != nil {
				return fmt.Errorf("compile plan: %w", err)
			}
			out, err := diagram.Generate(plan, a.rules(a.registry()).Outputs, diagram.Format(format))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(diagram.FormatASCII), "Diagram format: ascii or mermaid")
	return cmd
}
