// Package trace writes the append-only JSONL record of plan runs.
package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType enumerates trace event types.
type EventType string

const (
	EventRunStart     EventType = "run_start"
	EventRunComplete  EventType = "run_complete"
	EventStepStart    EventType = "step_start"
	EventStepComplete EventType = "step_complete"
)

// StepStatus is the execution status of a step.
type StepStatus string

const (
	StatusSuccess StepStatus = "success"
	StatusError   StepStatus = "error"
)

// Event is a single trace event written to the JSONL stream.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewRunID returns a new lexically sortable run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// Writer writes trace events to an append-only JSONL stream. It is safe
// for concurrent use; events from one run share its run id.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	runID   string
	enc     *json.Encoder
	secrets []string
}

// NewWriter creates a trace writer that writes to w. An empty runID gets a
// fresh one.
func NewWriter(w io.Writer, runID string) *Writer {
	if runID == "" {
		runID = NewRunID()
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Writer{
		w:     w,
		runID: runID,
		enc:   enc,
	}
}

// NewFileWriter creates a trace writer that appends to a JSONL file.
func NewFileWriter(path, runID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	tw := NewWriter(f, runID)
	tw.closer = f
	return tw, nil
}

// RunID returns the writer's run id.
func (tw *Writer) RunID() string { return tw.runID }

// Close closes the underlying file when the writer owns one.
func (tw *Writer) Close() error {
	if tw.closer == nil {
		return nil
	}
	return tw.closer.Close()
}

// SetSecrets configures the writer to redact the values of the given
// environment variables from string fields.
func (tw *Writer) SetSecrets(envVars []string) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.secrets = tw.secrets[:0]
	for _, name := range envVars {
		if v := os.Getenv(name); v != "" {
			tw.secrets = append(tw.secrets, v)
		}
	}
}

func (tw *Writer) redact(v any) any {
	switch x := v.(type) {
	case string:
		for _, s := range tw.secrets {
			x = strings.ReplaceAll(x, s, "<REDACTED>")
		}
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = tw.redact(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = tw.redact(item)
		}
		return out
	default:
		return v
	}
}

// Emit writes a single trace event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if len(tw.secrets) > 0 && data != nil {
		data = tw.redact(data).(map[string]any)
	}
	evt := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     tw.runID,
		Data:      data,
	}
	return tw.enc.Encode(evt)
}

// EmitRunStart emits a run_start event.
func (tw *Writer) EmitRunStart(ticket string, steps int) error {
	return tw.Emit(EventRunStart, map[string]any{
		"ticket": ticket,
		"steps":  steps,
	})
}

// EmitStepStart emits a step_start event with the resolved inputs.
func (tw *Writer) EmitStepStart(step int, action string, inputs map[string]any) error {
	data := map[string]any{
		"step":   step,
		"action": action,
	}
	if inputs != nil {
		data["inputs"] = inputs
	}
	return tw.Emit(EventStepStart, data)
}

// EmitStepComplete emits a step_complete event. errMsg is empty on success.
func (tw *Writer) EmitStepComplete(step int, action string, status StepStatus, output any, duration time.Duration, errMsg string) error {
	data := map[string]any{
		"step":     step,
		"action":   action,
		"status":   string(status),
		"duration": duration.String(),
	}
	if output != nil {
		data["output"] = output
	}
	if errMsg != "" {
		data["error"] = errMsg
	}
	return tw.Emit(EventStepComplete, data)
}

// EmitRunComplete emits a run_complete event.
func (tw *Writer) EmitRunComplete(status string, executed int, duration time.Duration) error {
	return tw.Emit(EventRunComplete, map[string]any{
		"status":   status,
		"executed": executed,
		"duration": duration.String(),
	})
}
