package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/agencyswarm/claii/pkg/protocol"
	"github.com/teilomillet/gollm"
)

// GollmProvider serves the providers without a native SDK integration
// (ollama, groq, mistral and friends) through gollm. gollm has no structured
// tool calling, so the conversation is flattened into a single prompt and
// tool calls are parsed back out of the reply text.
type GollmProvider struct {
	provider string

	mu  sync.Mutex
	llm gollm.LLM
}

// NewGollmProvider creates a gollm backed provider. An empty apiKey lets gollm
// read the key from its own environment variables.
func NewGollmProvider(provider, apiKey, model string) (*GollmProvider, error) {
	opts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if model != "" {
		opts = append(opts, gollm.SetModel(model))
	}
	if apiKey != "" {
		opts = append(opts, gollm.SetAPIKey(apiKey))
	}

	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm client for provider %s: %w", provider, err)
	}

	return &GollmProvider{
		provider: provider,
		llm:      llm,
	}, nil
}

// Provider returns the provider name
func (p *GollmProvider) Provider() string {
	return p.provider
}

// Call renders the request as a gollm prompt and generates a reply.
func (p *GollmProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if request.Model != "" {
		p.llm.SetOption("model", request.Model)
	}
	if request.Temperature > 0 {
		p.llm.SetOption("temperature", request.Temperature)
	}
	if request.MaxTokens > 0 {
		p.llm.SetOption("max_tokens", request.MaxTokens)
	}

	opts := []gollm.PromptOption{}
	if request.SystemPrompt != "" {
		opts = append(opts, gollm.WithSystemPrompt(request.SystemPrompt, gollm.CacheTypeEphemeral))
	}
	if request.MaxTokens > 0 {
		opts = append(opts, gollm.WithMaxLength(request.MaxTokens))
	}
	if len(request.Tools) > 0 {
		opts = append(opts, gollm.WithTools(toGollmTools(request.Tools)))
	}

	text, err := p.llm.Generate(ctx, gollm.NewPrompt(renderGollmPrompt(request.Messages), opts...))
	if err != nil {
		return nil, err
	}

	return parseGollmReply(text), nil
}

func toGollmTools(decls []protocol.ToolDeclaration) []gollm.Tool {
	tools := make([]gollm.Tool, 0, len(decls))
	for _, decl := range decls {
		tools = append(tools, gollm.Tool{
			Type: "function",
			Function: gollm.Function{
				Name:        decl.Name,
				Description: decl.Description,
				Parameters:  decl.Parameters.Map(),
			},
		})
	}
	return tools
}

// renderGollmPrompt flattens the conversation into one prompt text.
func renderGollmPrompt(messages []protocol.Message) string {
	var lines []string
	for _, msg := range messages {
		switch msg.Role {
		case protocol.RoleModel:
			if text := msg.Text(); text != "" {
				lines = append(lines, "[Assistant]: "+text)
			}
			for _, call := range msg.ToolCalls() {
				args, _ := json.Marshal(call.Args)
				lines = append(lines, fmt.Sprintf("[Tool Call]: %s(%s)", call.Name, args))
			}
		case protocol.RoleTool:
			for _, resp := range msg.ToolResponses() {
				content, isErr := toolResponseContent(resp)
				prefix := "[Tool Result]"
				if isErr {
					prefix = "[Tool Error]"
				}
				lines = append(lines, fmt.Sprintf("%s %s: %s", prefix, resp.Name, content))
			}
		default:
			if text := msg.Text(); text != "" {
				lines = append(lines, text)
			}
		}
	}

	prompt := strings.Join(lines, "\n")
	if prompt == "" {
		prompt = "Hello"
	}
	return prompt
}

type gollmToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// parseGollmReply splits a reply into text and any embedded tool calls. Tool
// calls appear either as a bare [{"name": ...}] array or wrapped in
// {"tool_calls": [...]}.
func parseGollmReply(text string) *LLMResponse {
	var calls []gollmToolCall
	cut := -1

	if start := strings.Index(text, `{"tool_calls"`); start != -1 {
		var wrapped struct {
			ToolCalls []gollmToolCall `json:"tool_calls"`
		}
		if err := json.Unmarshal([]byte(text[start:]), &wrapped); err == nil {
			calls, cut = wrapped.ToolCalls, start
		}
	} else if start := strings.Index(text, `[{"name"`); start != -1 {
		if err := json.Unmarshal([]byte(text[start:]), &calls); err == nil {
			cut = start
		}
	}

	var parts []protocol.Part
	remaining := text
	if cut != -1 {
		remaining = strings.TrimSpace(text[:cut])
	}
	if remaining != "" {
		parts = append(parts, protocol.Part{Text: remaining})
	}
	for _, call := range calls {
		if call.Name == "" {
			continue
		}
		parts = append(parts, protocol.Part{ToolCall: &protocol.ToolCall{
			ID:   newCallID(),
			Name: call.Name,
			Args: call.Arguments,
		}})
	}

	return singleCandidate(parts, nil)
}
