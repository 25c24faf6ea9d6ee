package protocol

import "strings"

// Role identifies the author of a message in the conversation.
type Role string

const (
	// RoleUser is the human request and any persisted history.
	RoleUser Role = "user"
	// RoleModel is the language model's reply.
	RoleModel Role = "model"
	// RoleTool carries tool responses back to the model.
	RoleTool Role = "tool"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleModel, RoleTool:
		return true
	}
	return false
}

// ToolCall is a model request to invoke a named tool.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResponse is the result of a tool call, returned to the model.
// Response holds exactly one of "result" or "error".
type ToolResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Part is one element of a message. Exactly one field is set.
type Part struct {
	Text         string        `json:"text,omitempty"`
	ToolCall     *ToolCall     `json:"tool_call,omitempty"`
	ToolResponse *ToolResponse `json:"tool_response,omitempty"`
}

// Message is a single turn in the conversation.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextMessage builds a message with a single text part.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{{Text: text}}}
}

// NewToolResponseMessage wraps a tool response in a tool-role message.
func NewToolResponseMessage(resp ToolResponse) Message {
	return Message{Role: RoleTool, Parts: []Part{{ToolResponse: &resp}}}
}

// Texts returns the non-empty text parts in order.
func (m Message) Texts() []string {
	var out []string
	for _, p := range m.Parts {
		if p.Text != "" {
			out = append(out, p.Text)
		}
	}
	return out
}

// Text joins the text parts with newlines.
func (m Message) Text() string {
	return strings.Join(m.Texts(), "\n")
}

// ToolCalls returns the tool call parts in order.
func (m Message) ToolCalls() []ToolCall {
	var out []ToolCall
	for _, p := range m.Parts {
		if p.ToolCall != nil {
			out = append(out, *p.ToolCall)
		}
	}
	return out
}

// ToolResponses returns the tool response parts in order.
func (m Message) ToolResponses() []ToolResponse {
	var out []ToolResponse
	for _, p := range m.Parts {
		if p.ToolResponse != nil {
			out = append(out, *p.ToolResponse)
		}
	}
	return out
}
