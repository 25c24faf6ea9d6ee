package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agencyswarm/claii/pkg/protocol"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// LLMProvider is an interface for LLM API providers
type LLMProvider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request LLMRequest) (*LLMResponse, error)

	// Provider returns the provider name
	Provider() string
}

// LLMRequest contains the request parameters for LLM call
type LLMRequest struct {
	Model        string
	Messages     []protocol.Message
	Tools        []protocol.ToolDeclaration
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Candidate is one alternative reply from the model.
type Candidate struct {
	Content protocol.Message
}

// LLMResponse contains the response from LLM
type LLMResponse struct {
	Candidates []Candidate
	Usage      *TokenUsage
}

// ProviderCreator creates LLM providers from auth profiles.
type ProviderCreator interface {
	NewProvider(profile AuthProfile) (LLMProvider, error)
}

// ProviderFactory creates LLM providers
type ProviderFactory struct{}

// gollmProviders are served through gollm rather than a native SDK.
var gollmProviders = map[string]bool{
	"ollama":     true,
	"groq":       true,
	"mistral":    true,
	"cohere":     true,
	"deepseek":   true,
	"openrouter": true,
}

// SupportedProviders lists every provider name NewProvider accepts.
func SupportedProviders() []string {
	return []string{"gemini", "anthropic", "openai", "ollama", "groq", "mistral", "cohere", "deepseek", "openrouter"}
}

// NewProvider creates a new LLM provider based on auth profile
func (f *ProviderFactory) NewProvider(profile AuthProfile) (LLMProvider, error) {
	switch {
	case profile.Provider == "anthropic":
		return NewAnthropicProvider(profile.APIKey), nil
	case profile.Provider == "openai":
		return NewOpenAIProvider(profile.APIKey), nil
	case profile.Provider == "gemini":
		return NewGeminiProvider(profile.APIKey), nil
	case gollmProviders[profile.Provider]:
		return NewGollmProvider(profile.Provider, profile.APIKey, profile.Model)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

// newCallID fills in a tool call id for providers that do not send one.
func newCallID() string {
	id, err := gonanoid.New(12)
	if err != nil {
		return "call_fallback"
	}
	return "call_" + id
}

// toolResponseContent renders a tool response as the single string most
// APIs expect, reporting whether it is an error.
func toolResponseContent(resp protocol.ToolResponse) (string, bool) {
	if msg, ok := resp.Response["error"].(string); ok {
		return msg, true
	}
	if result, ok := resp.Response["result"].(string); ok {
		return result, false
	}
	data, err := json.Marshal(resp.Response)
	if err != nil {
		return fmt.Sprintf("%v", resp.Response), false
	}
	return string(data), false
}

// singleCandidate wraps parts as the model's only candidate.
func singleCandidate(parts []protocol.Part, usage *TokenUsage) *LLMResponse {
	return &LLMResponse{
		Candidates: []Candidate{{Content: protocol.Message{Role: protocol.RoleModel, Parts: parts}}},
		Usage:      usage,
	}
}
