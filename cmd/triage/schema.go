package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/triage/pkg/kernel/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Export the plan JSON Schema to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.GeneratePlanJSONSchema(a.registry().Names())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
