// Package planner turns ticket text into plan documents. The OpenAI
// planner calls a chat completions endpoint; Replay and Static serve
// canned plans for offline evaluation and tests.
package planner

import (
	"context"
	"errors"
	"maps"

	"github.com/ormasoftchile/triage/pkg/kernel/schema"
)

// ErrNoPlan is returned when a planner has no plan for a request.
var ErrNoPlan = errors.New("no plan")

// Planner generates a plan document for a ticket. configuration selects
// the model or variant that produces the plan.
type Planner interface {
	Plan(ctx context.Context, ticket, configuration string) (schema.Document, error)
}

// Static returns the same document for every ticket. The ticket text is
// attached under the reserved key.
type Static struct {
	Doc schema.Document
}

func (s Static) Plan(_ context.Context, ticket, _ string) (schema.Document, error) {
	if s.Doc == nil {
		return nil, ErrNoPlan
	}
	doc := maps.Clone(s.Doc)
	doc[schema.KeyTicketText] = ticket
	return doc, nil
}
