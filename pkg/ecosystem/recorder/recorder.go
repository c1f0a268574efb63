// Package recorder captures the plans a live planner produces so they can
// be served again by a replay planner.
package recorder

import (
	"context"
	"fmt"
	"maps"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/triage/pkg/kernel/schema"
	"github.com/ormasoftchile/triage/pkg/planner"
)

// Recorder wraps a Planner and captures every plan it returns. It is safe
// for concurrent use.
type Recorder struct {
	inner   planner.Planner
	secrets []string // env var names whose values are redacted

	mu    sync.Mutex
	plans []planner.ReplayEntry
}

// New creates a recording wrapper around inner.
func New(inner planner.Planner) *Recorder {
	return &Recorder{inner: inner}
}

// SetSecrets configures env var names whose values are redacted in captured
// plans.
func (r *Recorder) SetSecrets(envVars []string) {
	r.secrets = envVars
}

// Plan delegates to the inner planner and records the plan. Failed calls
// are not recorded.
func (r *Recorder) Plan(ctx context.Context, ticket, configuration string) (schema.Document, error) {
	doc, err := r.inner.Plan(ctx, ticket, configuration)
	if err != nil {
		return nil, err
	}

	captured := maps.Clone(doc)
	delete(captured, schema.KeyTicketText)

	r.mu.Lock()
	r.plans = append(r.plans, planner.ReplayEntry{
		Configuration: configuration,
		Ticket:        ticket,
		Plan:          r.redact(map[string]any(captured)).(map[string]any),
	})
	r.mu.Unlock()
	return doc, nil
}

// Entries returns the captured plans ordered by configuration, then ticket.
// A later capture of the same pair replaces an earlier one.
func (r *Recorder) Entries() []planner.ReplayEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	latest := make(map[[2]string]int, len(r.plans))
	for i, e := range r.plans {
		latest[[2]string{e.Configuration, e.Ticket}] = i
	}
	out := make([]planner.ReplayEntry, 0, len(latest))
	for _, i := range latest {
		out = append(out, r.plans[i])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Configuration != out[j].Configuration {
			return out[i].Configuration < out[j].Configuration
		}
		return out[i].Ticket < out[j].Ticket
	})
	return out
}

// Save writes the captured plans as a replay file.
func (r *Recorder) Save(path string) error {
	data, err := yaml.Marshal(planner.ReplayFile{Plans: r.Entries()})
	if err != nil {
		return fmt.Errorf("encode recording: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	return nil
}

// redact replaces secret values with <REDACTED> in every string of v.
func (r *Recorder) redact(v any) any {
	switch x := v.(type) {
	case string:
		for _, envVar := range r.secrets {
			if val := os.Getenv(envVar); val != "" {
				x = strings.ReplaceAll(x, val, "<REDACTED>")
			}
		}
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = r.redact(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = r.redact(item)
		}
		return out
	default:
		return v
	}
}
