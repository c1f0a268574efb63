// Package harness drives evaluation cases through planning, execution and
// the three validators, and aggregates scores per configuration.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ormasoftchile/triage/pkg/kernel/engine"
	"github.com/ormasoftchile/triage/pkg/kernel/eval"
	"github.com/ormasoftchile/triage/pkg/kernel/schema"
	"github.com/ormasoftchile/triage/pkg/kernel/trace"
	"github.com/ormasoftchile/triage/pkg/kernel/validate"
	"github.com/ormasoftchile/triage/pkg/planner"
)

// Case statuses.
const (
	StatusScored  = "scored"
	StatusCrashed = "crashed"
)

// Stages at which a case can crash.
const (
	StagePlan    = "plan"
	StageExecute = "execute"
)

// CaseResult is the evaluation of one case under one configuration.
// Findings of stages that did not run are nil.
type CaseResult struct {
	RunID         string `json:"run_id"`
	Name          string `json:"name"`
	Configuration string `json:"configuration"`
	Ticket        string `json:"ticket"`

	Status string `json:"status"`
	Stage  string `json:"stage,omitempty"`
	Error  string `json:"error,omitempty"`

	PlannerLatencySec  float64 `json:"planner_latency_sec"`
	ExecutorLatencySec float64 `json:"executor_latency_sec"`
	Cost               Cost    `json:"cost"`
	PlanFingerprint    string  `json:"plan_fingerprint,omitempty"`

	PlanEval           *validate.PlanFindings      `json:"plan_eval,omitempty"`
	PlanEvalScore      float64                     `json:"plan_eval_score"`
	ExecutionEval      *validate.ExecutionFindings `json:"execution_eval,omitempty"`
	ExecutionEvalScore float64                     `json:"execution_eval_score"`
	FunctionalEval     *validate.ContextFindings   `json:"functional_eval,omitempty"`
	OverallScore       float64                     `json:"overall_score"`

	Assertions []eval.Assertion `json:"assertions,omitempty"`
	FinalVars  map[string]any   `json:"final_vars,omitempty"`
}

// Latency returns the end-to-end latency in seconds.
func (r CaseResult) Latency() float64 {
	return r.PlannerLatencySec + r.ExecutorLatencySec
}

// Runner evaluates cases. Planner and Engine are required.
type Runner struct {
	Planner planner.Planner
	Engine  *engine.Engine
	Rules   validate.Rules
	Prices  map[string]Price
	// Parallel bounds the number of cases evaluated at once; values
	// below 2 run cases one at a time.
	Parallel int
	Logger   *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

// EvaluateCase runs one case end to end. Planner and execution failures
// are recorded on the result as a crash; they are not returned.
func (r *Runner) EvaluateCase(ctx context.Context, c schema.Case, configuration string) CaseResult {
	res := CaseResult{
		RunID:         trace.NewRunID(),
		Name:          c.DisplayName(),
		Configuration: configuration,
		Ticket:        c.Ticket,
	}
	log := r.logger().With("run_id", res.RunID, "case", res.Name, "configuration", configuration)

	t0 := time.Now()
	doc, err := r.Planner.Plan(ctx, c.Ticket, configuration)
	res.PlannerLatencySec = time.Since(t0).Seconds()
	if err != nil {
		return r.crash(ctx, log, res, StagePlan, err)
	}

	res.Cost = ComputeCost(doc.Usage(), r.Prices[configuration])
	res.PlanFingerprint = schema.Fingerprint(doc)

	pf := validate.Plan(doc, r.Rules)
	res.PlanEval = &pf
	res.PlanEvalScore = validate.Score(pf)

	plan, err := schema.Compile(doc)
	if err != nil {
		return r.crash(ctx, log, res, StageExecute, fmt.Errorf("compile plan: %w", err))
	}

	t1 := time.Now()
	out, err := r.Engine.Execute(ctx, plan, c.Ticket)
	res.ExecutorLatencySec = time.Since(t1).Seconds()
	if err != nil {
		return r.crash(ctx, log, res, StageExecute, err)
	}

	ef := validate.Execution(plan, out.Log, r.Engine.Registry())
	res.ExecutionEval = &ef
	res.ExecutionEvalScore = validate.Score(ef)

	cf := validate.Context(out.Vars, c.Expected)
	res.FunctionalEval = &cf

	res.OverallScore = (res.PlanEvalScore + res.ExecutionEvalScore + cf.FunctionalScore) / 3
	res.Assertions = eval.CheckAll(c.Checks, out.Vars)
	res.FinalVars = out.Vars
	res.Status = StatusScored

	log.InfoContext(ctx, "case scored",
		"overall", res.OverallScore,
		"plan", res.PlanEvalScore,
		"execution", res.ExecutionEvalScore,
		"functional", cf.FunctionalScore)
	return res
}

func (r *Runner) crash(ctx context.Context, log *slog.Logger, res CaseResult, stage string, err error) CaseResult {
	res.Status = StatusCrashed
	res.Stage = stage
	res.Error = err.Error()
	log.WarnContext(ctx, "case crashed", "stage", stage, "error", err)
	return res
}

// Summary aggregates the results of one configuration. Means cover scored
// cases only; with no scored cases they are zero.
type Summary struct {
	Configuration  string  `json:"configuration"`
	Cases          int     `json:"cases"`
	Scored         int     `json:"scored"`
	Crashed        int     `json:"crashed"`
	MeanOverall    float64 `json:"mean_overall"`
	MeanLatencySec float64 `json:"mean_latency_sec"`
	MeanCostUSD    float64 `json:"mean_cost_usd"`
}

// Summarize aggregates results.
func Summarize(configuration string, results []CaseResult) Summary {
	s := Summary{Configuration: configuration, Cases: len(results)}
	var overall, latency, cost float64
	for _, r := range results {
		if r.Status != StatusScored {
			s.Crashed++
			continue
		}
		s.Scored++
		overall += r.OverallScore
		latency += r.Latency()
		cost += r.Cost.TotalCostUSD
	}
	if s.Scored > 0 {
		n := float64(s.Scored)
		s.MeanOverall = overall / n
		s.MeanLatencySec = latency / n
		s.MeanCostUSD = cost / n
	}
	return s
}

// Report holds the results of one configuration.
type Report struct {
	Configuration string       `json:"configuration"`
	Results       []CaseResult `json:"results"`
	Summary       Summary      `json:"summary"`
}

// RunAll evaluates every case under configuration. Results keep case
// order. The only error is the context's.
func (r *Runner) RunAll(ctx context.Context, cases []schema.Case, configuration string) (*Report, error) {
	results := make([]CaseResult, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Parallel, 1))
	for i, c := range cases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.EvaluateCase(gctx, c, configuration)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run %s: %w", configuration, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run %s: %w", configuration, err)
	}

	return &Report{
		Configuration: configuration,
		Results:       results,
		Summary:       Summarize(configuration, results),
	}, nil
}

// ErrNoConfigurations is returned by Compare when given nothing to compare.
var ErrNoConfigurations = errors.New("no configurations")

// Compare runs every case under each configuration in turn.
func (r *Runner) Compare(ctx context.Context, cases []schema.Case, configurations []string) ([]*Report, error) {
	if len(configurations) == 0 {
		return nil, ErrNoConfigurations
	}
	reports := make([]*Report, 0, len(configurations))
	for _, cfg := range configurations {
		r.logger().InfoContext(ctx, "evaluating configuration", "configuration", cfg, "cases", len(cases))
		rep, err := r.RunAll(ctx, cases, cfg)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
