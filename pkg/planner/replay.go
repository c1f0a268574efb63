package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ormasoftchile/triage/pkg/kernel/schema"
	"gopkg.in/yaml.v3"
)

// ReplayFile is the on-disk form of recorded plans.
type ReplayFile struct {
	Plans []ReplayEntry `yaml:"plans" json:"plans"`
}

// ReplayEntry is one recorded plan. An empty Configuration or Ticket
// matches any value.
type ReplayEntry struct {
	Configuration string         `yaml:"configuration,omitempty" json:"configuration,omitempty"`
	Ticket        string         `yaml:"ticket,omitempty"        json:"ticket,omitempty"`
	Plan          map[string]any `yaml:"plan"                    json:"plan"`
}

type replayPlan struct {
	configuration string
	ticket        string
	raw           []byte
}

// Replay serves recorded plans. Lookups prefer an entry matching both the
// configuration and the ticket, then the ticket alone, then the
// configuration alone, then a catch-all entry. Every call returns a fresh
// copy of the document with the ticket text attached.
type Replay struct {
	plans []replayPlan
}

// LoadReplay reads recorded plans from a YAML or JSON file.
func LoadReplay(path string) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	r, err := ParseReplay(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// ParseReplay parses recorded plans.
func ParseReplay(data []byte) (*Replay, error) {
	var f ReplayFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse replay: %w", err)
	}
	return NewReplay(f.Plans)
}

// NewReplay builds a replay planner from entries.
func NewReplay(entries []ReplayEntry) (*Replay, error) {
	r := &Replay{}
	for i, e := range entries {
		if e.Plan == nil {
			return nil, fmt.Errorf("plans[%d]: missing plan", i)
		}
		raw, err := json.Marshal(e.Plan)
		if err != nil {
			return nil, fmt.Errorf("plans[%d]: encode plan: %w", i, err)
		}
		r.plans = append(r.plans, replayPlan{
			configuration: e.Configuration,
			ticket:        strings.TrimSpace(e.Ticket),
			raw:           raw,
		})
	}
	return r, nil
}

func (r *Replay) Plan(_ context.Context, ticket, configuration string) (schema.Document, error) {
	ticket = strings.TrimSpace(ticket)
	best, bestRank := -1, 0
	for i, p := range r.plans {
		rank := matchRank(p, ticket, configuration)
		if rank > bestRank {
			best, bestRank = i, rank
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("%w for configuration %q and ticket %q", ErrNoPlan, configuration, ticket)
	}

	doc, err := schema.ParseDocument(r.plans[best].raw)
	if err != nil {
		return nil, fmt.Errorf("decode recorded plan: %w", err)
	}
	doc[schema.KeyTicketText] = ticket
	return doc, nil
}

// matchRank scores how specifically p matches; 0 means no match.
func matchRank(p replayPlan, ticket, configuration string) int {
	cfgOK := p.configuration == "" || p.configuration == configuration
	ticketOK := p.ticket == "" || p.ticket == ticket
	if !cfgOK || !ticketOK {
		return 0
	}
	rank := 1
	if p.configuration != "" {
		rank++
	}
	if p.ticket != "" {
		rank += 2
	}
	return rank
}
