// Package engine executes compiled plans against an operation registry,
// threading step outputs through a per-run variable scope.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ormasoftchile/triage/pkg/kernel/registry"
	"github.com/ormasoftchile/triage/pkg/kernel/schema"
	"github.com/ormasoftchile/triage/pkg/kernel/trace"
)

// Run statuses reported in traces and logs.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// LogEntry records one executed step.
type LogEntry struct {
	Step   int            `json:"step"`
	Action string         `json:"action"`
	Inputs map[string]any `json:"inputs"`
	Output any            `json:"output"`
}

// Result is the outcome of a successful run.
type Result struct {
	Vars     Vars          `json:"vars"`
	Log      []LogEntry    `json:"log"`
	Duration time.Duration `json:"duration"`
}

// StepError reports the step that aborted a run. Log holds the entries of
// the steps that completed before it.
type StepError struct {
	Step   int
	Action string
	Log    []LogEntry
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Config configures an engine. Both fields are optional.
type Config struct {
	Trace  *trace.Writer
	Logger *slog.Logger
}

// Engine runs plans sequentially. It holds no per-run state, so one engine
// may execute many plans, concurrently if its operations allow it.
type Engine struct {
	reg    *registry.Registry
	trace  *trace.Writer
	logger *slog.Logger
}

// New creates an engine dispatching to reg.
func New(reg *registry.Registry, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{reg: reg, trace: cfg.Trace, logger: logger}
}

// Registry returns the registry the engine dispatches to.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Execute runs every step of plan in order against a scope seeded with
// input. The first failing step aborts the run with a *StepError.
func (e *Engine) Execute(ctx context.Context, plan *schema.Plan, input string) (*Result, error) {
	start := time.Now()
	vars := NewVars(input)
	log := make([]LogEntry, 0, len(plan.Steps))

	if e.trace != nil {
		e.trace.EmitRunStart(input, len(plan.Steps))
	}
	e.logger.DebugContext(ctx, "run started", "steps", len(plan.Steps))

	for _, step := range plan.Steps {
		entry, err := e.executeStep(ctx, step, vars)
		if err != nil {
			duration := time.Since(start)
			if e.trace != nil {
				e.trace.EmitRunComplete(StatusError, len(log), duration)
			}
			e.logger.WarnContext(ctx, "run failed",
				"step", step.ID, "action", step.Action, "error", err)
			return nil, &StepError{Step: step.ID, Action: step.Action, Log: log, Err: err}
		}
		log = append(log, entry)
	}

	duration := time.Since(start)
	if e.trace != nil {
		e.trace.EmitRunComplete(StatusCompleted, len(log), duration)
	}
	e.logger.DebugContext(ctx, "run completed", "steps", len(log), "duration", duration)

	return &Result{Vars: vars, Log: log, Duration: duration}, nil
}

func (e *Engine) executeStep(ctx context.Context, step schema.Step, vars Vars) (LogEntry, error) {
	stepStart := time.Now()

	op, err := e.reg.Lookup(step.Action)
	if err != nil {
		e.stepFailed(step, nil, stepStart, err)
		return LogEntry{}, err
	}

	inputs := Resolve(step.Inputs, vars)
	if e.trace != nil {
		e.trace.EmitStepStart(step.ID, step.Action, inputs)
	}

	output, err := op.Invoke(ctx, inputs)
	if err != nil {
		e.stepFailed(step, inputs, stepStart, err)
		return LogEntry{}, err
	}

	if m, ok := output.(map[string]any); ok {
		vars.Merge(m)
	}

	if e.trace != nil {
		e.trace.EmitStepComplete(step.ID, step.Action, trace.StatusSuccess, output, time.Since(stepStart), "")
	}
	e.logger.DebugContext(ctx, "step completed", "step", step.ID, "action", step.Action)

	return LogEntry{Step: step.ID, Action: step.Action, Inputs: inputs, Output: output}, nil
}

func (e *Engine) stepFailed(step schema.Step, inputs map[string]any, start time.Time, err error) {
	if e.trace == nil {
		return
	}
	if inputs == nil {
		e.trace.EmitStepStart(step.ID, step.Action, nil)
	}
	e.trace.EmitStepComplete(step.ID, step.Action, trace.StatusError, nil, time.Since(start), err.Error())
}
