package engine

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ormasoftchile/triage/pkg/kernel/contract"
	"github.com/ormasoftchile/triage/pkg/kernel/registry"
	"github.com/ormasoftchile/triage/pkg/kernel/schema"
	"github.com/ormasoftchile/triage/pkg/kernel/trace"
	"github.com/ormasoftchile/triage/pkg/operations"
)

const csvTicket = "Customer reports CSV upload fails with a 500 error in production"

func compile(t *testing.T, doc string) *schema.Plan {
	t.Helper()
	d, err := schema.ParseDocument([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p, err := schema.Compile(d)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return p
}

const happyPlan = `{"steps": [
  {"id": 1, "action": "classify_ticket", "inputs": {"text": "$ticket"}},
  {"id": 2, "action": "extract_summary", "inputs": {"text": "$ticket"}},
  {"id": 3, "action": "calculate_priority", "inputs": {"summary": "$summary"}},
  {"id": 4, "action": "lookup_known_issues", "inputs": {"summary": "$summary"}},
  {"id": 5, "action": "send_slack_notification", "inputs": {"recipient": "oncall", "message": "$summary"}}
]}`

func TestExecute_HappyPath(t *testing.T) {
	var traceBuf bytes.Buffer
	eng := New(operations.NewRegistry(operations.LogNotifier{}), Config{
		Trace: trace.NewWriter(&traceBuf, "test-run"),
	})

	res, err := eng.Execute(context.Background(), compile(t, happyPlan), csvTicket)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := map[string]any{
		"ticket":        csvTicket,
		"category":      "bug",
		"summary":       csvTicket,
		"priority":      "critical",
		"related_issue": "Known CSV upload regression #1245",
		"slack_sent":    true,
	}
	if !reflect.DeepEqual(map[string]any(res.Vars), want) {
		t.Errorf("vars = %v\nwant %v", res.Vars, want)
	}

	if len(res.Log) != 5 {
		t.Fatalf("log = %d entries, want 5", len(res.Log))
	}
	for i, e := range res.Log {
		if e.Step != i+1 {
			t.Errorf("log[%d].Step = %d, want %d", i, e.Step, i+1)
		}
	}
	if got := res.Log[4].Inputs; !reflect.DeepEqual(got, map[string]any{"recipient": "oncall", "message": csvTicket}) {
		t.Errorf("resolved inputs of step 5 = %v", got)
	}

	events, err := trace.Read(&traceBuf)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 12 {
		t.Errorf("trace events = %d, want 12", len(events))
	}
	if events[0].Type != trace.EventRunStart || events[len(events)-1].Type != trace.EventRunComplete {
		t.Errorf("trace not bracketed by run events: %s ... %s", events[0].Type, events[len(events)-1].Type)
	}
}

func recordingRegistry(outputs ...any) (*registry.Registry, *[]map[string]any) {
	var seen []map[string]any
	i := 0
	op := registry.Func{
		C: contract.Contract{},
		Fn: func(_ context.Context, args map[string]any) (any, error) {
			seen = append(seen, args)
			out := outputs[i]
			i++
			return out, nil
		},
	}
	return registry.MustNew(map[string]registry.Operation{"op": op}), &seen
}

func TestExecute_OrderAndMonotonicGrowth(t *testing.T) {
	reg, seen := recordingRegistry(
		map[string]any{"a": 1},
		map[string]any{"b": 2},
		"not a map",
		map[string]any{"a": 3},
	)
	plan := compile(t, `{"steps": [
	  {"id": 10, "action": "op", "inputs": {"v": "$a"}},
	  {"id": 20, "action": "op", "inputs": {"v": "$a"}},
	  {"id": 30, "action": "op", "inputs": {"v": "$b"}},
	  {"id": 40, "action": "op", "inputs": {"v": "$a"}}]}`)

	res, err := New(reg, Config{}).Execute(context.Background(), plan, "t")
	if err != nil {
		t.Fatal(err)
	}

	wantSteps := []int{10, 20, 30, 40}
	for i, e := range res.Log {
		if e.Step != wantSteps[i] {
			t.Errorf("log[%d].Step = %d, want %d", i, e.Step, wantSteps[i])
		}
	}

	gotSeen := []any{(*seen)[0]["v"], (*seen)[1]["v"], (*seen)[2]["v"], (*seen)[3]["v"]}
	wantSeen := []any{nil, 1, 2, 1}
	if !reflect.DeepEqual(gotSeen, wantSeen) {
		t.Errorf("inputs seen = %v, want %v", gotSeen, wantSeen)
	}

	if res.Log[2].Output != "not a map" {
		t.Errorf("non-map output not logged verbatim: %v", res.Log[2].Output)
	}
	want := Vars{"ticket": "t", "a": 3, "b": 2}
	if !reflect.DeepEqual(res.Vars, want) {
		t.Errorf("vars = %v, want %v", res.Vars, want)
	}
}

func TestExecute_EmptyPlan(t *testing.T) {
	res, err := New(operations.NewRegistry(nil), Config{}).Execute(context.Background(), &schema.Plan{}, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Log) != 0 || !reflect.DeepEqual(res.Vars, Vars{"ticket": "hello"}) {
		t.Errorf("result = %+v", res)
	}
}

func TestExecute_UnknownOperation(t *testing.T) {
	plan := compile(t, `{"steps": [
	  {"id": 1, "action": "classify_ticket", "inputs": {"text": "$ticket"}},
	  {"id": 2, "action": "delete_database", "inputs": {}},
	  {"id": 3, "action": "extract_summary", "inputs": {"text": "$ticket"}}]}`)

	res, err := New(operations.NewRegistry(nil), Config{}).Execute(context.Background(), plan, "x")
	if res != nil {
		t.Error("result must be nil on failure")
	}
	if !errors.Is(err, registry.ErrUnknownOperation) {
		t.Fatalf("err = %v, want ErrUnknownOperation", err)
	}
	var se *StepError
	if !errors.As(err, &se) {
		t.Fatalf("err is %T, want *StepError", err)
	}
	if se.Step != 2 || se.Action != "delete_database" {
		t.Errorf("StepError = step %d action %q", se.Step, se.Action)
	}
	if len(se.Log) != 1 || se.Log[0].Action != "classify_ticket" {
		t.Errorf("partial log = %+v", se.Log)
	}
}

func TestExecute_OperationErrorPropagates(t *testing.T) {
	boom := errors.New("downstream unavailable")
	reg := registry.MustNew(map[string]registry.Operation{
		"fail": registry.Func{Fn: func(context.Context, map[string]any) (any, error) { return nil, boom }},
	})
	plan := compile(t, `{"steps": [{"id": 7, "action": "fail", "inputs": {}}]}`)

	_, err := New(reg, Config{}).Execute(context.Background(), plan, "x")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if !strings.Contains(err.Error(), "step 7 (fail)") {
		t.Errorf("error text %q does not name the step", err)
	}
}

func TestExecute_ContractErrorFromOperation(t *testing.T) {
	// Missing variable resolves to nil; the operation rejects it.
	plan := compile(t, `{"steps": [{"id": 1, "action": "calculate_priority", "inputs": {"summary": "$summary"}}]}`)
	_, err := New(operations.NewRegistry(nil), Config{}).Execute(context.Background(), plan, "x")
	if err == nil || !strings.Contains(err.Error(), "summary") {
		t.Fatalf("err = %v, want argument error naming summary", err)
	}
}

func TestExecute_Deterministic(t *testing.T) {
	eng := New(operations.NewRegistry(operations.LogNotifier{}), Config{})
	plan := compile(t, happyPlan)
	a, err := eng.Execute(context.Background(), plan, csvTicket)
	if err != nil {
		t.Fatal(err)
	}
	b, err := eng.Execute(context.Background(), plan, csvTicket)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Vars, b.Vars) || !reflect.DeepEqual(a.Log, b.Log) {
		t.Error("two runs of the same plan differ")
	}
}
