package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/triage/pkg/kernel/harness"
	"github.com/ormasoftchile/triage/pkg/kernel/schema"
	"github.com/ormasoftchile/triage/pkg/report"
)

const defaultCases = "testdata/cases/**/*.yaml"

type evalOptions struct {
	cases          []string
	configurations []string
	replay         string
	record         string
	parallel       int
	json           bool
	markdown       bool
	width          int
	minScore       float64
}

func (o *evalOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&o.cases, "cases", []string{defaultCases}, "Case fixture glob, repeatable (** matches directories)")
	cmd.Flags().StringVar(&o.replay, "replay", "", "Serve recorded plans from a file instead of calling the API")
	cmd.Flags().StringVar(&o.record, "record", "", "Save the plans used to a replay file")
	cmd.Flags().IntVar(&o.parallel, "parallel", 0, "Cases evaluated at once (default from config)")
	cmd.Flags().BoolVar(&o.json, "json", false, "Output full results as JSON")
	cmd.Flags().BoolVar(&o.markdown, "markdown", false, "Output a rendered Markdown report")
	cmd.Flags().IntVar(&o.width, "width", 100, "Word wrap for --markdown")
	cmd.Flags().Float64Var(&o.minScore, "min-score", 0, "Fail when a configuration's mean overall score is below this")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
}

func newEvalCmd(a *app) *cobra.Command {
	o := &evalOptions{}
	var configuration string
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate case fixtures under one planner configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configuration == "" && len(a.cfg.Configurations) > 0 {
				configuration = a.cfg.Configurations[0]
			}
			if configuration == "" {
				return fmt.Errorf("no configuration: pass --configuration")
			}
			o.configurations = []string{configuration}
			return a.runEval(cmd, o)
		},
	}
	o.addFlags(cmd)
	cmd.Flags().StringVarP(&configuration, "configuration", "c", "", "Planner configuration (default: first configured)")
	return cmd
}

func newCompareCmd(a *app) *cobra.Command {
	o := &evalOptions{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Evaluate case fixtures under several configurations and compare them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(o.configurations) == 0 {
				o.configurations = a.cfg.Configurations
			}
			return a.runEval(cmd, o)
		},
	}
	o.addFlags(cmd)
	cmd.Flags().StringSliceVar(&o.configurations, "configs", nil, "Configurations to compare (default: all configured)")
	return cmd
}

func (a *app) runEval(cmd *cobra.Command, o *evalOptions) error {
	cases, err := schema.LoadCases(o.cases...)
	if err != nil {
		return err
	}

	reg := a.registry()
	p, err := a.planner(o.replay, reg)
	if err != nil {
		return err
	}
	p, save := a.record(p, o.record)
	r := a.runner(p, reg, o.parallel)

	reports, err := r.Compare(cmd.Context(), cases, o.configurations)
	if err != nil {
		return err
	}
	if err := save(); err != nil {
		return err
	}
	if err := writeReports(cmd.OutOrStdout(), reports, o); err != nil {
		return err
	}

	for _, rep := range reports {
		if rep.Summary.MeanOverall < o.minScore {
			return fmt.Errorf("%s: mean overall %.2f is below %.2f", rep.Configuration, rep.Summary.MeanOverall, o.minScore)
		}
	}
	return nil
}

func writeReports(w io.Writer, reports []*harness.Report, o *evalOptions) error {
	switch {
	case o.json:
		return report.WriteJSON(w, reports)
	case o.markdown:
		out, err := report.RenderMarkdown(report.Markdown(reports), o.width)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		_, err := io.WriteString(w, report.Text(reports))
		return err
	}
}
