package planner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ormasoftchile/triage/pkg/kernel/schema"
	"github.com/ormasoftchile/triage/pkg/kernel/validate"
	"github.com/ormasoftchile/triage/pkg/operations"
)

const planJSON = `{"steps": [{"id": 1, "action": "classify_ticket", "inputs": {"text": "$ticket"}}, {"id": 2, "action": "extract_summary", "inputs": {"text": "$ticket"}}]}`

func TestOpenAI_Plan(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("request body: %v", err)
		}
		resp := map[string]any{
			"choices": []any{map[string]any{
				"message":       map[string]any{"content": planJSON},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 300, "completion_tokens": 40, "total_tokens": 340},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p, err := NewOpenAI(OpenAIConfig{Endpoint: srv.URL + "/v1/", APIKey: "sk-test", SystemPrompt: "plan it"})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := p.Plan(context.Background(), "CSV upload fails", "gpt-4.1-mini")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if got.Model != "gpt-4.1-mini" || got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Content != "plan it" || got.Messages[1].Content != "CSV upload fails" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if doc.TicketText() != "CSV upload fails" {
		t.Errorf("ticket_text = %q", doc.TicketText())
	}
	if u := doc.Usage(); u != (schema.Usage{Prompt: 300, Completion: 40, Total: 340}) {
		t.Errorf("usage = %+v", u)
	}
	if steps, _ := doc.Steps(); len(steps) != 2 {
		t.Errorf("steps = %v", doc["steps"])
	}
}

func TestOpenAI_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"http error", http.StatusUnauthorized, `{"error": {"message": "bad key"}}`, "401"},
		{"api error", http.StatusOK, `{"error": {"message": "overloaded", "type": "server_error"}}`, "overloaded"},
		{"no choices", http.StatusOK, `{"choices": []}`, "no choices"},
		{"truncated", http.StatusOK, `{"choices": [{"message": {"content": "{"}, "finish_reason": "length"}]}`, "truncated"},
		{"not json", http.StatusOK, `{"choices": [{"message": {"content": "steps: ["}, "finish_reason": "stop"}]}`, "decode plan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p, err := NewOpenAI(OpenAIConfig{Endpoint: srv.URL, APIKey: "k", SystemPrompt: "s"})
			if err != nil {
				t.Fatal(err)
			}
			_, err = p.Plan(context.Background(), "t", "o1")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestNewOpenAIFromEnv_MissingKey(t *testing.T) {
	t.Setenv("TRIAGE_TEST_KEY", "")
	if _, err := NewOpenAIFromEnv("TRIAGE_TEST_KEY", OpenAIConfig{SystemPrompt: "s"}); err == nil {
		t.Error("expected error for missing key")
	}
}

const replayYAML = `
plans:
  - plan:
      steps: []
  - configuration: o1
    plan:
      steps:
        - {id: 1, action: classify_ticket, inputs: {text: $ticket}}
  - ticket: CSV upload fails
    plan:
      steps:
        - {id: 1, action: extract_summary, inputs: {text: $ticket}}
      _usage: {prompt: 10, completion: 2}
  - configuration: o1
    ticket: CSV upload fails
    plan:
      steps:
        - {id: 1, action: lookup_known_issues, inputs: {summary: $ticket}}
`

func firstAction(t *testing.T, doc schema.Document) string {
	t.Helper()
	steps, _ := doc.Steps()
	if len(steps) == 0 {
		return ""
	}
	return steps[0].(map[string]any)["action"].(string)
}

func TestReplay_Matching(t *testing.T) {
	r, err := ParseReplay([]byte(replayYAML))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		ticket, configuration, want string
	}{
		{"CSV upload fails", "o1", "lookup_known_issues"},
		{"  CSV upload fails ", "gpt-4.1", "extract_summary"},
		{"something else", "o1", "classify_ticket"},
		{"something else", "gpt-4.1", ""},
	}
	for _, tt := range tests {
		doc, err := r.Plan(context.Background(), tt.ticket, tt.configuration)
		if err != nil {
			t.Fatalf("Plan(%q, %q): %v", tt.ticket, tt.configuration, err)
		}
		if got := firstAction(t, doc); got != tt.want {
			t.Errorf("Plan(%q, %q) first action = %q, want %q", tt.ticket, tt.configuration, got, tt.want)
		}
		if doc.TicketText() != strings.TrimSpace(tt.ticket) {
			t.Errorf("ticket_text = %q", doc.TicketText())
		}
	}

	doc, _ := r.Plan(context.Background(), "CSV upload fails", "gpt-4.1")
	if doc.Usage().Total != 12 {
		t.Errorf("usage total = %d, want 12", doc.Usage().Total)
	}
}

func TestReplay_FreshCopies(t *testing.T) {
	r, err := ParseReplay([]byte(replayYAML))
	if err != nil {
		t.Fatal(err)
	}
	a, _ := r.Plan(context.Background(), "x", "o1")
	a["steps"] = nil
	b, _ := r.Plan(context.Background(), "x", "o1")
	if firstAction(t, b) != "classify_ticket" {
		t.Error("mutating one plan changed the recording")
	}
}

func TestReplay_NoMatch(t *testing.T) {
	r, err := NewReplay([]ReplayEntry{{Configuration: "o1", Plan: map[string]any{"steps": []any{}}}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Plan(context.Background(), "t", "gpt-4.1"); !errors.Is(err, ErrNoPlan) {
		t.Errorf("err = %v, want ErrNoPlan", err)
	}
}

func TestParseReplay_Errors(t *testing.T) {
	for _, data := range []string{
		"plans:\n  - configuration: o1\n",
		"plans: []\nunknown: 1\n",
	} {
		if _, err := ParseReplay([]byte(data)); err == nil {
			t.Errorf("ParseReplay(%q): expected error", data)
		}
	}
}

func TestStatic(t *testing.T) {
	s := Static{Doc: schema.Document{"steps": []any{}}}
	doc, err := s.Plan(context.Background(), "hello", "any")
	if err != nil {
		t.Fatal(err)
	}
	if doc.TicketText() != "hello" {
		t.Errorf("ticket_text = %q", doc.TicketText())
	}
	if _, ok := s.Doc[schema.KeyTicketText]; ok {
		t.Error("Static mutated its document")
	}
	if _, err := (Static{}).Plan(context.Background(), "t", "c"); !errors.Is(err, ErrNoPlan) {
		t.Errorf("err = %v, want ErrNoPlan", err)
	}
}

func TestRenderSystemPrompt(t *testing.T) {
	reg := operations.NewRegistry(nil)
	data, err := NewPromptData(reg.Contracts(), validate.DefaultRules(reg))
	if err != nil {
		t.Fatal(err)
	}
	prompt, err := RenderSystemPrompt(data)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"- send_slack_notification(message, recipient) -> {slack_sent}",
		"- classify_ticket(text) -> {category}",
		"between 2 and 5 steps",
		"The first step must be classify_ticket",
		"$ticket, $summary, $priority, $category, $related_issue",
		`"_usage"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
