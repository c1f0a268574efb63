package harness

import "github.com/ormasoftchile/triage/pkg/kernel/schema"

// Price is the USD cost per 1K tokens for one configuration.
type Price struct {
	Prompt     float64 `yaml:"prompt"     json:"prompt"`
	Completion float64 `yaml:"completion" json:"completion"`
}

// Cost is the token usage and USD cost of one plan.
type Cost struct {
	PromptTokens      int     `json:"prompt_tokens"`
	CompletionTokens  int     `json:"completion_tokens"`
	TotalTokens       int     `json:"total_tokens"`
	PromptCostUSD     float64 `json:"prompt_cost_usd"`
	CompletionCostUSD float64 `json:"completion_cost_usd"`
	TotalCostUSD      float64 `json:"total_cost_usd"`
}

// ComputeCost prices usage. A zero Price costs nothing.
func ComputeCost(u schema.Usage, p Price) Cost {
	c := Cost{
		PromptTokens:     u.Prompt,
		CompletionTokens: u.Completion,
		TotalTokens:      u.Total,
	}
	c.PromptCostUSD = float64(u.Prompt) / 1000 * p.Prompt
	c.CompletionCostUSD = float64(u.Completion) / 1000 * p.Completion
	c.TotalCostUSD = c.PromptCostUSD + c.CompletionCostUSD
	return c
}
