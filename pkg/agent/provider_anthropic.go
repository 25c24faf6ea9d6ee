package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agencyswarm/claii/pkg/protocol"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicProvider implements LLMProvider for Anthropic Claude
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Provider returns the provider name
func (p *AnthropicProvider) Provider() string {
	return "anthropic"
}

// Call makes an API call to Anthropic Claude
func (p *AnthropicProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	reqParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		Messages:  toAnthropicMessages(request.Messages),
		MaxTokens: int64(maxTokens),
	}

	if request.SystemPrompt != "" {
		reqParams.System = []anthropic.TextBlockParam{
			{Text: request.SystemPrompt},
		}
	}

	if request.Temperature > 0 {
		reqParams.Temperature = anthropic.Float(request.Temperature)
	}

	if len(request.Tools) > 0 {
		reqParams.Tools = toAnthropicTools(request.Tools)
	}

	response, err := p.client.Messages.New(ctx, reqParams)
	if err != nil {
		return nil, err
	}

	var parts []protocol.Part
	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			parts = append(parts, protocol.Part{Text: b.Text})
		case anthropic.ToolUseBlock:
			var args map[string]any
			if err := json.Unmarshal([]byte(b.JSON.Input.Raw()), &args); err != nil {
				return nil, fmt.Errorf("failed to parse tool input: %w", err)
			}
			parts = append(parts, protocol.Part{ToolCall: &protocol.ToolCall{
				ID:   b.ID,
				Name: b.Name,
				Args: args,
			}})
		}
	}

	return singleCandidate(parts, &TokenUsage{
		InputTokens:  int(response.Usage.InputTokens),
		OutputTokens: int(response.Usage.OutputTokens),
	}), nil
}

// toAnthropicMessages converts the conversation, folding tool responses
// into user turns and merging consecutive turns of the same role.
func toAnthropicMessages(messages []protocol.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam

	for _, msg := range messages {
		role := anthropic.MessageParamRoleUser
		var blocks []anthropic.ContentBlockParamUnion

		switch msg.Role {
		case protocol.RoleModel:
			role = anthropic.MessageParamRoleAssistant
			for _, part := range msg.Parts {
				switch {
				case part.ToolCall != nil:
					args := part.ToolCall.Args
					if args == nil {
						args = map[string]any{}
					}
					blocks = append(blocks, anthropic.NewToolUseBlock(part.ToolCall.ID, args, part.ToolCall.Name))
				case part.Text != "":
					blocks = append(blocks, anthropic.NewTextBlock(part.Text))
				}
			}
		case protocol.RoleTool:
			for _, resp := range msg.ToolResponses() {
				content, isError := toolResponseContent(resp)
				blocks = append(blocks, anthropic.NewToolResultBlock(resp.ID, content, isError))
			}
		default:
			for _, text := range msg.Texts() {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
		}

		if len(blocks) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			continue
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}

	return out
}

func toAnthropicTools(decls []protocol.ToolDeclaration) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(decls))
	for _, decl := range decls {
		schema := decl.Parameters.Map()
		toolParam := anthropic.ToolParam{
			Name:        decl.Name,
			Description: anthropic.String(decl.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema["properties"],
			},
		}
		if decl.Parameters != nil {
			toolParam.InputSchema.Required = decl.Parameters.Required
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return tools
}
