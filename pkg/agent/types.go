package agent

import (
	"strings"

	"github.com/agencyswarm/claii/pkg/toolexecutor"
)

// DefaultMaxSteps bounds the model queries in one run.
const DefaultMaxSteps = 20

// Outcome describes how a run ended.
type Outcome string

const (
	// OutcomeCompleted means the model produced a final text answer.
	OutcomeCompleted Outcome = "completed"
	// OutcomeStepBudgetExhausted means every step requested tools and the
	// run stopped at the step budget. It is not an error.
	OutcomeStepBudgetExhausted Outcome = "step_budget_exhausted"
)

// RunParams contains input parameters for one agent run
type RunParams struct {
	Prompt     string `json:"prompt"`
	WorkingDir string `json:"working_dir"`
	Verbose    bool   `json:"verbose,omitempty"`
	UseMemory  bool   `json:"use_memory,omitempty"`
	Prune      bool   `json:"prune,omitempty"`

	MaxSteps          int     `json:"max_steps,omitempty"`
	MaxMemoryMessages int     `json:"max_memory_messages,omitempty"`
	Model             string  `json:"model,omitempty"`
	Temperature       float64 `json:"temperature,omitempty"`
	MaxTokens         int     `json:"max_tokens,omitempty"`

	ToolPolicy *toolexecutor.ToolPolicy `json:"tool_policy,omitempty"`
}

// Result contains output from an agent run
type Result struct {
	Response string      `json:"response"`
	Outcome  Outcome     `json:"outcome"`
	Steps    int         `json:"steps"`
	RunID    string      `json:"run_id"`
	Usage    *TokenUsage `json:"usage,omitempty"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u *TokenUsage) add(other *TokenUsage) *TokenUsage {
	if other == nil {
		return u
	}
	if u == nil {
		u = &TokenUsage{}
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	return u
}

// AuthProfile represents authentication credentials for LLM providers
type AuthProfile struct {
	ID            string `json:"id"`
	Provider      string `json:"provider"` // "gemini", "anthropic", "openai", or a gollm provider
	APIKey        string `json:"api_key"`
	Model         string `json:"model,omitempty"`
	CooldownUntil *int64 `json:"cooldown_until,omitempty"`
	FailureCount  int    `json:"failure_count"`
	Priority      int    `json:"priority"`
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())

	// Network errors
	if strings.Contains(errMsg, "econnreset") || strings.Contains(errMsg, "etimedout") ||
		strings.Contains(errMsg, "connection reset") {
		return true
	}

	// Rate limits
	if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "rate limit") ||
		strings.Contains(errMsg, "resource_exhausted") {
		return true
	}

	// Server errors
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(errMsg, code) {
			return true
		}
	}

	return false
}
