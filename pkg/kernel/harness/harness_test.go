package harness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/ormasoftchile/triage/pkg/kernel/engine"
	"github.com/ormasoftchile/triage/pkg/kernel/schema"
	"github.com/ormasoftchile/triage/pkg/kernel/validate"
	"github.com/ormasoftchile/triage/pkg/operations"
	"github.com/ormasoftchile/triage/pkg/planner"
)

const happyTicket = "The API returns 500 errors when uploading CSV files in production for EU customers."

func step(id int, action string, inputs map[string]any) map[string]any {
	return map[string]any{"id": float64(id), "action": action, "inputs": inputs}
}

func happyDoc() schema.Document {
	return schema.Document{
		"steps": []any{
			step(1, "classify_ticket", map[string]any{"text": "$ticket"}),
			step(2, "extract_summary", map[string]any{"text": "$ticket"}),
			step(3, "calculate_priority", map[string]any{"summary": "$summary"}),
			step(4, "lookup_known_issues", map[string]any{"summary": "$summary"}),
			step(5, "send_slack_notification", map[string]any{"recipient": "oncall", "message": "$summary"}),
		},
		"_usage": map[string]any{"prompt": 1000.0, "completion": 500.0},
	}
}

func newRunner(p planner.Planner) *Runner {
	reg := operations.NewRegistry(operations.LogNotifier{})
	return &Runner{
		Planner: p,
		Engine:  engine.New(reg, engine.Config{}),
		Rules:   validate.DefaultRules(reg),
		Prices: map[string]Price{
			"gpt-4.1": {Prompt: 0.003, Completion: 0.012},
		},
	}
}

var happyCase = schema.Case{
	Name:     "csv-upload",
	Ticket:   happyTicket,
	Expected: schema.Expected{Priority: "critical", ShouldAlert: true, ShouldMatchKnownIssue: true},
	Checks:   []string{`category == "bug"`, `priority == "normal"`},
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEvaluateCase_HappyPath(t *testing.T) {
	r := newRunner(planner.Static{Doc: happyDoc()})
	res := r.EvaluateCase(context.Background(), happyCase, "gpt-4.1")

	if res.Status != StatusScored {
		t.Fatalf("status = %s (%s: %s)", res.Status, res.Stage, res.Error)
	}
	if res.PlanEvalScore != 1 || res.ExecutionEvalScore != 1 || res.FunctionalEval.FunctionalScore != 1 {
		t.Errorf("scores = %v/%v/%v, want 1/1/1", res.PlanEvalScore, res.ExecutionEvalScore, res.FunctionalEval.FunctionalScore)
	}
	if res.OverallScore != 1 {
		t.Errorf("overall = %v, want 1", res.OverallScore)
	}
	if !approx(res.Cost.TotalCostUSD, 0.009) {
		t.Errorf("cost = %v, want 0.009", res.Cost.TotalCostUSD)
	}
	if res.Cost.TotalTokens != 1500 {
		t.Errorf("total tokens = %d, want 1500", res.Cost.TotalTokens)
	}
	if res.RunID == "" || res.PlanFingerprint == "" {
		t.Error("run id and fingerprint must be set")
	}
	if len(res.Assertions) != 2 || !res.Assertions[0].Passed || res.Assertions[1].Passed {
		t.Errorf("assertions = %+v", res.Assertions)
	}
	if res.FinalVars["slack_sent"] != true {
		t.Errorf("final vars = %v", res.FinalVars)
	}
}

func TestEvaluateCase_OverallIsMean(t *testing.T) {
	doc := happyDoc()
	steps, _ := doc.Steps()
	// Six steps: the plan loses step_count_valid, execution is unaffected.
	doc["steps"] = append(steps, step(6, "extract_summary", map[string]any{"text": "$ticket"}))

	c := happyCase
	c.Expected.Priority = "high"
	res := newRunner(planner.Static{Doc: doc}).EvaluateCase(context.Background(), c, "o1")

	if res.Status != StatusScored {
		t.Fatalf("status = %s: %s", res.Status, res.Error)
	}
	if !approx(res.PlanEvalScore, 5.0/6.0) {
		t.Errorf("plan score = %v, want 5/6", res.PlanEvalScore)
	}
	want := (5.0/6.0 + 1 + 2.0/3.0) / 3
	if !approx(res.OverallScore, want) {
		t.Errorf("overall = %v, want %v", res.OverallScore, want)
	}
	if res.Cost.TotalCostUSD != 0 {
		t.Errorf("unpriced configuration cost = %v, want 0", res.Cost.TotalCostUSD)
	}
}

type failingPlanner struct{ err error }

func (f failingPlanner) Plan(context.Context, string, string) (schema.Document, error) {
	return nil, f.err
}

func TestEvaluateCase_Crashes(t *testing.T) {
	unknown := happyDoc()
	steps, _ := unknown.Steps()
	steps[2] = step(3, "escalate_to_vp", map[string]any{})

	tests := []struct {
		name     string
		planner  planner.Planner
		stage    string
		planEval bool
		allowed  bool
	}{
		{"planner error", failingPlanner{errors.New("rate limited")}, StagePlan, false, false},
		{"unknown operation", planner.Static{Doc: unknown}, StageExecute, true, false},
		{"uncompilable plan", planner.Static{Doc: schema.Document{"steps": "nope"}}, StageExecute, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newRunner(tt.planner).EvaluateCase(context.Background(), happyCase, "gpt-4.1")
			if res.Status != StatusCrashed || res.Stage != tt.stage {
				t.Fatalf("status/stage = %s/%s, want crashed/%s", res.Status, res.Stage, tt.stage)
			}
			if res.Error == "" {
				t.Error("crash without error text")
			}
			if (res.PlanEval != nil) != tt.planEval {
				t.Errorf("plan findings present = %v, want %v", res.PlanEval != nil, tt.planEval)
			}
			if res.PlanEval != nil && res.PlanEval.OnlyAllowedActions != tt.allowed {
				t.Errorf("only_allowed_actions = %v", res.PlanEval.OnlyAllowedActions)
			}
			if res.ExecutionEval != nil || res.FunctionalEval != nil {
				t.Error("stages after the crash must not report findings")
			}
		})
	}
}

func TestSummarize_ExcludesCrashed(t *testing.T) {
	results := []CaseResult{
		{Status: StatusScored, OverallScore: 1, PlannerLatencySec: 1, ExecutorLatencySec: 1, Cost: Cost{TotalCostUSD: 0.02}},
		{Status: StatusScored, OverallScore: 0.5, PlannerLatencySec: 3, Cost: Cost{TotalCostUSD: 0.04}},
		{Status: StatusCrashed, OverallScore: 0, PlannerLatencySec: 100, Cost: Cost{TotalCostUSD: 9}},
	}
	s := Summarize("gpt-4.1", results)
	if s.Cases != 3 || s.Scored != 2 || s.Crashed != 1 {
		t.Errorf("counts = %+v", s)
	}
	if !approx(s.MeanOverall, 0.75) || !approx(s.MeanLatencySec, 2.5) || !approx(s.MeanCostUSD, 0.03) {
		t.Errorf("means = %v/%v/%v, want 0.75/2.5/0.03", s.MeanOverall, s.MeanLatencySec, s.MeanCostUSD)
	}

	zero := Summarize("o1", []CaseResult{{Status: StatusCrashed}})
	if zero.MeanOverall != 0 || zero.MeanLatencySec != 0 || zero.MeanCostUSD != 0 {
		t.Errorf("all-crashed summary = %+v, want zero means", zero)
	}
	if empty := Summarize("o1", nil); empty.Cases != 0 || empty.MeanOverall != 0 {
		t.Errorf("empty summary = %+v", empty)
	}
}

func TestComputeCost(t *testing.T) {
	c := ComputeCost(schema.Usage{Prompt: 2000, Completion: 1000, Total: 3000}, Price{Prompt: 0.015, Completion: 0.12})
	if !approx(c.PromptCostUSD, 0.03) || !approx(c.CompletionCostUSD, 0.12) || !approx(c.TotalCostUSD, 0.15) {
		t.Errorf("cost = %+v", c)
	}
	if z := ComputeCost(schema.Usage{Prompt: 5}, Price{}); z.TotalCostUSD != 0 {
		t.Errorf("zero price cost = %v", z.TotalCostUSD)
	}
}

func TestRunAll_ParallelKeepsOrder(t *testing.T) {
	r := newRunner(planner.Static{Doc: happyDoc()})
	r.Parallel = 4

	cases := make([]schema.Case, 9)
	for i := range cases {
		cases[i] = schema.Case{
			Name:     fmt.Sprintf("case-%d", i),
			Ticket:   fmt.Sprintf("ticket %d: upload error", i),
			Expected: schema.Expected{Priority: "high", ShouldAlert: true, ShouldMatchKnownIssue: true},
		}
	}
	rep, err := r.RunAll(context.Background(), cases, "gpt-4.1")
	if err != nil {
		t.Fatal(err)
	}
	for i, res := range rep.Results {
		if res.Name != cases[i].Name || res.Ticket != cases[i].Ticket {
			t.Errorf("results[%d] = %s, want %s", i, res.Name, cases[i].Name)
		}
		if res.FinalVars["ticket"] != cases[i].Ticket {
			t.Errorf("results[%d] saw another case's vars", i)
		}
	}
	if rep.Summary.Scored != 9 || rep.Summary.MeanOverall != 1 {
		t.Errorf("summary = %+v", rep.Summary)
	}
}

func TestRunAll_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newRunner(planner.Static{Doc: happyDoc()}).RunAll(ctx, []schema.Case{happyCase}, "gpt-4.1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCompare(t *testing.T) {
	replay, err := planner.NewReplay([]planner.ReplayEntry{
		{Configuration: "gpt-4.1", Plan: happyDoc()},
		{Configuration: "o3-mini", Plan: map[string]any{"steps": []any{}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	r := newRunner(replay)

	reports, err := r.Compare(context.Background(), []schema.Case{happyCase}, []string{"gpt-4.1", "o3-mini", "o1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 3 {
		t.Fatalf("reports = %d, want 3", len(reports))
	}

	if s := reports[0].Summary; s.Scored != 1 || s.MeanOverall != 1 {
		t.Errorf("gpt-4.1 summary = %+v", s)
	}

	// An empty plan scores zero on plan checks but still executes.
	empty := reports[1].Results[0]
	if empty.Status != StatusScored || empty.PlanEvalScore != 0 {
		t.Errorf("o3-mini result = %+v", empty)
	}
	if empty.ExecutionEvalScore != 1 {
		t.Errorf("empty execution score = %v, want 1", empty.ExecutionEvalScore)
	}

	if s := reports[2].Summary; s.Crashed != 1 || s.Scored != 0 || s.MeanOverall != 0 {
		t.Errorf("o1 summary = %+v", s)
	}

	if _, err := r.Compare(context.Background(), nil, nil); !errors.Is(err, ErrNoConfigurations) {
		t.Errorf("err = %v, want ErrNoConfigurations", err)
	}
}
