package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/triage/pkg/kernel/schema"
)

type planOptions struct {
	ticket        string
	ticketFile    string
	configuration string
	replay        string
	record        string
}

func newPlanCmd(a *app) *cobra.Command {
	o := &planOptions{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Ask a planner for a plan and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ticket, err := readTicket(o.ticket, o.ticketFile, "")
			if err != nil {
				return err
			}
			configuration := o.configuration
			if configuration == "" {
				if len(a.cfg.Configurations) == 0 {
					return fmt.Errorf("no configuration: pass --configuration")
				}
				configuration = a.cfg.Configurations[0]
			}

			reg := a.registry()
			p, err := a.planner(o.replay, reg)
			if err != nil {
				return err
			}
			p, save := a.record(p, o.record)
			doc, err := p.Plan(cmd.Context(), ticket, configuration)
			if err != nil {
				return fmt.Errorf("plan: %w", err)
			}
			if err := save(); err != nil {
				return err
			}
			a.logger.Info("plan generated",
				"configuration", configuration,
				"fingerprint", schema.Fingerprint(doc),
				"tokens", doc.Usage().Total)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
	cmd.Flags().StringVar(&o.ticket, "ticket", "", "Ticket text")
	cmd.Flags().StringVar(&o.ticketFile, "ticket-file", "", "Read ticket text from a file")
	cmd.Flags().StringVarP(&o.configuration, "configuration", "c", "", "Planner configuration (default: first configured)")
	cmd.Flags().StringVar(&o.replay, "replay", "", "Serve recorded plans from a file instead of calling the API")
	cmd.Flags().StringVar(&o.record, "record", "", "Save the generated plan to a replay file")
	cmd.MarkFlagsMutuallyExclusive("ticket", "ticket-file")
	return cmd
}
