package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agencyswarm/claii/pkg/protocol"
	"google.golang.org/genai"
)

// GeminiProvider implements LLMProvider for Google Gemini
type GeminiProvider struct {
	apiKey string

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider. The client is created on
// first use.
func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{
		apiKey: apiKey,
	}
}

// Provider returns the provider name
func (p *GeminiProvider) Provider() string {
	return "gemini"
}

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	p.client = client
	return client, nil
}

// Call makes an API call to Google Gemini
func (p *GeminiProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{}
	if request.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(request.SystemPrompt, genai.RoleUser)
	}
	if request.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(request.Temperature))
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}
	if len(request.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(request.Tools))
		for _, decl := range request.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        decl.Name,
				Description: decl.Description,
				Parameters:  toGeminiSchema(decl.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	response, err := client.Models.GenerateContent(ctx, request.Model, toGeminiContents(request.Messages), config)
	if err != nil {
		return nil, err
	}

	return fromGeminiResponse(response), nil
}

func toGeminiContents(messages []protocol.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		var parts []*genai.Part
		role := genai.RoleUser

		switch msg.Role {
		case protocol.RoleModel:
			role = genai.RoleModel
			for _, part := range msg.Parts {
				switch {
				case part.ToolCall != nil:
					parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
						ID:   part.ToolCall.ID,
						Name: part.ToolCall.Name,
						Args: part.ToolCall.Args,
					}})
				case part.Text != "":
					parts = append(parts, genai.NewPartFromText(part.Text))
				}
			}
		case protocol.RoleTool:
			for _, resp := range msg.ToolResponses() {
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       resp.ID,
					Name:     resp.Name,
					Response: resp.Response,
				}})
			}
		default:
			for _, text := range msg.Texts() {
				parts = append(parts, genai.NewPartFromText(text))
			}
		}

		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.Role(role)))
	}
	return contents
}

func fromGeminiResponse(response *genai.GenerateContentResponse) *LLMResponse {
	result := &LLMResponse{}
	if response == nil {
		return result
	}

	for _, cand := range response.Candidates {
		msg := protocol.Message{Role: protocol.RoleModel}
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				switch {
				case part == nil || part.Thought:
				case part.FunctionCall != nil:
					id := part.FunctionCall.ID
					if id == "" {
						id = newCallID()
					}
					msg.Parts = append(msg.Parts, protocol.Part{ToolCall: &protocol.ToolCall{
						ID:   id,
						Name: part.FunctionCall.Name,
						Args: part.FunctionCall.Args,
					}})
				case part.Text != "":
					msg.Parts = append(msg.Parts, protocol.Part{Text: part.Text})
				}
			}
		}
		result.Candidates = append(result.Candidates, Candidate{Content: msg})
	}

	if usage := response.UsageMetadata; usage != nil {
		result.Usage = &TokenUsage{
			InputTokens:  int(usage.PromptTokenCount),
			OutputTokens: int(usage.CandidatesTokenCount),
		}
	}
	return result
}

func toGeminiSchema(s *protocol.Schema) *genai.Schema {
	if s == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(s.Type)),
		Description: s.Description,
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGeminiSchema(prop)
		}
	}
	if s.Items != nil {
		out.Items = toGeminiSchema(s.Items)
	}
	return out
}
