package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ormasoftchile/triage/pkg/kernel/schema"
)

// DefaultEndpoint is the OpenAI API base URL.
const DefaultEndpoint = "https://api.openai.com/v1"

// OpenAIConfig holds configuration for creating an OpenAI planner.
type OpenAIConfig struct {
	Endpoint     string
	APIKey       string
	SystemPrompt string
	Timeout      time.Duration
	Logger       *slog.Logger
}

// OpenAI plans tickets with the chat completions API in JSON mode. The
// configuration passed to Plan is the model name.
type OpenAI struct {
	Endpoint     string
	APIKey       string
	SystemPrompt string
	HTTPClient   *http.Client
	logger       *slog.Logger
}

// NewOpenAI creates a planner from explicit config.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.SystemPrompt == "" {
		return nil, fmt.Errorf("system prompt is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &OpenAI{
		Endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		APIKey:       cfg.APIKey,
		SystemPrompt: cfg.SystemPrompt,
		HTTPClient:   &http.Client{Timeout: cfg.Timeout},
		logger:       logger,
	}, nil
}

// NewOpenAIFromEnv creates a planner whose API key is read from the
// environment variable keyEnv.
func NewOpenAIFromEnv(keyEnv string, cfg OpenAIConfig) (*OpenAI, error) {
	cfg.APIKey = os.Getenv(keyEnv)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s is required", keyEnv)
	}
	return NewOpenAI(cfg)
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Plan asks model for a plan. The returned document carries the ticket
// text and the token usage reported by the API.
func (c *OpenAI) Plan(ctx context.Context, ticket, model string) (schema.Document, error) {
	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: c.SystemPrompt},
			{Role: "user", Content: ticket},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI returned %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("API error [%s]: %s", chatResp.Error.Type, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	if chatResp.Choices[0].FinishReason == "length" {
		return nil, fmt.Errorf("plan was truncated (hit the completion token limit)")
	}

	doc, err := schema.ParseDocument([]byte(chatResp.Choices[0].Message.Content))
	if err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	doc[schema.KeyTicketText] = ticket
	if u := chatResp.Usage; u != nil {
		total := u.TotalTokens
		if total == 0 {
			total = u.PromptTokens + u.CompletionTokens
		}
		doc[schema.KeyUsage] = schema.Usage{
			Prompt:     u.PromptTokens,
			Completion: u.CompletionTokens,
			Total:      total,
		}.Map()
	}

	c.logger.DebugContext(ctx, "plan generated",
		"model", model, "duration", time.Since(start), "usage", doc.Usage())
	return doc, nil
}
