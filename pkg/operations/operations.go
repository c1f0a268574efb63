// Package operations provides the built-in ticket operations: deterministic
// stand-ins for the classifiers, lookups and notifiers a production
// deployment would call.
package operations

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ormasoftchile/triage/pkg/kernel/contract"
	"github.com/ormasoftchile/triage/pkg/kernel/registry"
)

// Action names.
const (
	ClassifyTicket        = "classify_ticket"
	ExtractSummary        = "extract_summary"
	CalculatePriority     = "calculate_priority"
	LookupKnownIssues     = "lookup_known_issues"
	SendSlackNotification = "send_slack_notification"
)

// Categories, priorities and known issues produced by the operations.
const (
	CategoryBug            = "bug"
	CategoryFeatureRequest = "feature_request"
	CategoryGeneral        = "general_inquiry"

	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityNormal   = "normal"

	IssueCSVUpload  = "Known CSV upload regression #1245"
	IssueAuthExpiry = "Frequent auth token expiration issue"
	IssueNone       = "No known issues found"
)

// SummaryLimit is the number of characters kept by extract_summary.
const SummaryLimit = 120

// Notifier delivers a notification message to a recipient.
type Notifier interface {
	Notify(ctx context.Context, recipient, message string) error
}

// LogNotifier records notifications as log entries instead of sending them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, recipient, message string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "slack notification sent", "recipient", recipient, "message", message)
	return nil
}

// op is a built-in operation. Arguments are checked against the contract
// before run sees them.
type op struct {
	c      contract.Contract
	binder *contract.Binder
	run    func(ctx context.Context, args map[string]any) (map[string]any, error)
}

func newOp(name string, c contract.Contract, run func(context.Context, map[string]any) (map[string]any, error)) *op {
	return &op{c: c, binder: contract.MustBinder(name, c), run: run}
}

func (o *op) Contract() contract.Contract { return o.c }

func (o *op) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if err := o.binder.Bind(args); err != nil {
		return nil, err
	}
	return o.run(ctx, args)
}

func text(desc string) map[string]contract.ParamDef {
	return map[string]contract.ParamDef{
		"text": {Type: "string", Required: true, Description: desc},
	}
}

func summary(desc string) map[string]contract.ParamDef {
	return map[string]contract.ParamDef{
		"summary": {Type: "string", Required: true, Description: desc},
	}
}

// Table returns the built-in operations keyed by action name. A nil
// notifier logs through slog.Default.
func Table(n Notifier) map[string]registry.Operation {
	if n == nil {
		n = LogNotifier{}
	}
	return map[string]registry.Operation{
		ClassifyTicket: newOp(ClassifyTicket, contract.Contract{
			Description: "Classify a ticket as bug, feature_request or general_inquiry",
			Inputs:      text("Ticket text"),
			Outputs:     []string{"category"},
		}, func(_ context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"category": Classify(args["text"].(string))}, nil
		}),

		ExtractSummary: newOp(ExtractSummary, contract.Contract{
			Description: "Summarize ticket text",
			Inputs:      text("Ticket text"),
			Outputs:     []string{"summary"},
		}, func(_ context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"summary": Summarize(args["text"].(string))}, nil
		}),

		CalculatePriority: newOp(CalculatePriority, contract.Contract{
			Description: "Derive a priority of critical, high or normal from a summary",
			Inputs:      summary("Ticket summary"),
			Outputs:     []string{"priority"},
		}, func(_ context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"priority": Priority(args["summary"].(string))}, nil
		}),

		LookupKnownIssues: newOp(LookupKnownIssues, contract.Contract{
			Description: "Find a known issue related to a summary",
			Inputs:      summary("Ticket summary"),
			Outputs:     []string{"related_issue"},
		}, func(_ context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"related_issue": KnownIssue(args["summary"].(string))}, nil
		}),

		SendSlackNotification: newOp(SendSlackNotification, contract.Contract{
			Description: "Send a Slack message to a recipient",
			Inputs: map[string]contract.ParamDef{
				"recipient": {Type: "string", Required: true, Description: "Channel or user to notify"},
				"message":   {Type: "string", Required: true, Description: "Message body"},
			},
			Outputs: []string{"slack_sent"},
		}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
			if err := n.Notify(ctx, args["recipient"].(string), args["message"].(string)); err != nil {
				return nil, err
			}
			return map[string]any{"slack_sent": true}, nil
		}),
	}
}

// NewRegistry returns a registry holding the built-in operations.
func NewRegistry(n Notifier) *registry.Registry {
	return registry.MustNew(Table(n))
}

// Classify applies the keyword rules for ticket categories.
func Classify(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "error", "500", "fail"):
		return CategoryBug
	case containsAny(lower, "feature", "request"):
		return CategoryFeatureRequest
	default:
		return CategoryGeneral
	}
}

// Summarize truncates text to SummaryLimit characters, marking the cut
// with an ellipsis.
func Summarize(text string) string {
	r := []rune(text)
	if len(r) <= SummaryLimit {
		return text
	}
	return string(r[:SummaryLimit]) + "..."
}

// Priority applies the keyword rules for ticket priority.
func Priority(summary string) string {
	lower := strings.ToLower(summary)
	switch {
	case containsAny(lower, "production", "500", "down"):
		return PriorityCritical
	case strings.Contains(lower, "error"):
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// KnownIssue returns the known issue matching summary, or IssueNone.
func KnownIssue(summary string) string {
	lower := strings.ToLower(summary)
	switch {
	case strings.Contains(lower, "csv"):
		return IssueCSVUpload
	case strings.Contains(lower, "auth"):
		return IssueAuthExpiry
	default:
		return IssueNone
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
