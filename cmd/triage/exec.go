package main

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/triage/pkg/kernel/engine"
	"github.com/ormasoftchile/triage/pkg/kernel/schema"
	"github.com/ormasoftchile/triage/pkg/kernel/trace"
	"github.com/ormasoftchile/triage/pkg/kernel/validate"
)

// demoPlan is run when exec gets no --plan.
//
//go:embed demo.json
var demoPlan []byte

type execOptions struct {
	plan       string
	ticket     string
	ticketFile string
	trace      string
	json       bool
}

func newExecCmd(a *app) *cobra.Command {
	o := &execOptions{}
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Execute a plan against a ticket (the built-in demo plan by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExec(cmd, o)
		},
	}
	cmd.Flags().StringVar(&o.plan, "plan", "", "Plan file (JSON or YAML)")
	cmd.Flags().StringVar(&o.ticket, "ticket", "", "Ticket text (defaults to the plan's ticket_text)")
	cmd.Flags().StringVar(&o.ticketFile, "ticket-file", "", "Read ticket text from a file")
	cmd.Flags().StringVar(&o.trace, "trace", "", "Write trace to JSONL file")
	cmd.Flags().BoolVar(&o.json, "json", false, "Output vars and log as JSON")
	cmd.MarkFlagsMutuallyExclusive("ticket", "ticket-file")
	return cmd
}

func (a *app) runExec(cmd *cobra.Command, o *execOptions) error {
	var (
		doc schema.Document
		err error
	)
	if o.plan != "" {
		doc, err = schema.LoadDocumentFile(o.plan)
	} else {
		doc, err = schema.ParseDocument(demoPlan)
	}
	if err != nil {
		return err
	}

	ticket, err := readTicket(o.ticket, o.ticketFile, doc.TicketText())
	if err != nil {
		return err
	}

	plan, err := schema.Compile(doc)
	if err != nil {
		return fmt.Errorf("compile plan: %w", err)
	}

	var tw *trace.Writer
	if o.trace != "" {
		tw, err = trace.NewFileWriter(o.trace, "")
		if err != nil {
			return fmt.Errorf("trace: %w", err)
		}
		defer tw.Close()
		tw.SetSecrets([]string{a.cfg.Planner.APIKeyEnv})
	}

	reg := a.registry()
	res, err := a.engine(reg, tw).Execute(cmd.Context(), plan, ticket)
	if err != nil {
		var se *engine.StepError
		if errors.As(err, &se) {
			fmt.Fprintf(cmd.ErrOrStderr(), "run aborted after %d step(s)\n", len(se.Log))
		}
		return err
	}

	out := cmd.OutOrStdout()
	f := validate.Execution(plan, res.Log, reg)
	if o.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"vars":            res.Vars,
			"log":             res.Log,
			"execution_eval":  f,
			"execution_score": validate.Score(f),
		})
	}

	for _, entry := range res.Log {
		fmt.Fprintf(out, "  %d. %s → %v\n", entry.Step, entry.Action, entry.Output)
	}
	printChecks(out, f)
	fmt.Fprintf(out, "execution score: %.2f\n", validate.Score(f))
	fmt.Fprintf(out, "  Duration: %s\n", res.Duration)
	return nil
}

// readTicket picks the ticket text from the flag, the file or the plan, in
// that order.
func readTicket(text, file, fallback string) (string, error) {
	switch {
	case text != "":
		return text, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read ticket: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case fallback != "":
		return fallback, nil
	default:
		return "", errors.New("no ticket: pass --ticket or --ticket-file")
	}
}
