package validate

import (
	"github.com/ormasoftchile/triage/pkg/kernel/schema"
)

// Variables inspected by the functional checks.
const (
	VarPriority     = "priority"
	VarSlackSent    = "slack_sent"
	VarRelatedIssue = "related_issue"
)

// ContextFindings compare final run variables with a case's expectations.
type ContextFindings struct {
	PriorityExpected string `json:"priority_expected"`
	PriorityGot      any    `json:"priority_got"`
	PriorityCorrect  bool   `json:"priority_correct"`

	AlertExpected bool `json:"alert_expected"`
	AlertGot      any  `json:"alert_got"`
	AlertCorrect  bool `json:"alert_correct"`

	KnownIssueExpected bool `json:"known_issue_expected"`
	KnownIssueGot      bool `json:"known_issue_got"`
	KnownIssueCorrect  bool `json:"known_issue_correct"`

	FunctionalScore float64 `json:"functional_score"`
}

// Checks returns the three correctness findings.
func (f ContextFindings) Checks() []Check {
	return []Check{
		{"priority_correct", f.PriorityCorrect},
		{"alert_correct", f.AlertCorrect},
		{"known_issue_correct", f.KnownIssueCorrect},
	}
}

// Context checks the final variables of a run against expected. An absent
// slack_sent counts as false; a known issue matches when related_issue is
// present and non-nil.
func Context(vars map[string]any, expected schema.Expected) ContextFindings {
	f := ContextFindings{
		PriorityExpected:   expected.Priority,
		AlertExpected:      expected.ShouldAlert,
		KnownIssueExpected: expected.ShouldMatchKnownIssue,
	}

	f.PriorityGot = vars[VarPriority]
	switch got := f.PriorityGot.(type) {
	case string:
		f.PriorityCorrect = got == expected.Priority
	case nil:
		f.PriorityCorrect = expected.Priority == ""
	}

	alert, ok := vars[VarSlackSent]
	if !ok {
		alert = false
	}
	f.AlertGot = alert
	if b, ok := alert.(bool); ok {
		f.AlertCorrect = b == expected.ShouldAlert
	}

	f.KnownIssueGot = vars[VarRelatedIssue] != nil
	f.KnownIssueCorrect = f.KnownIssueGot == expected.ShouldMatchKnownIssue

	f.FunctionalScore = Score(f)
	return f
}
