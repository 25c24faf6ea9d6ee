package toolexecutor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/agencyswarm/claii/internal/observability"
	"github.com/agencyswarm/claii/internal/tracing"
	"github.com/agencyswarm/claii/pkg/protocol"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// reservedArgs are argument keys the model may send but never controls.
var reservedArgs = []string{"working_directory"}

// ToolParameter defines a parameter for a tool
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Items       string      `json:"items,omitempty"` // element type for arrays
	Default     interface{} `json:"default,omitempty"`
}

// ToolDefinition defines a tool's metadata and handler
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	Handler     ToolHandler     `json:"-"`
}

// ToolHandler is the function signature for tool execution. A returned
// error is rendered to the model as an "Error:" result.
type ToolHandler func(ctx context.Context, params map[string]interface{}) (string, error)

// ExecutionContext provides runtime information for tool execution. The
// sandbox root lives here and nowhere in model arguments.
type ExecutionContext struct {
	RunID      string
	WorkingDir string
	ToolPolicy *ToolPolicy
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Success  bool                   `json:"success"`
	Output   string                 `json:"output,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Text renders the result in the "Error:" prefix convention.
func (r ToolResult) Text() string {
	if r.Success {
		return r.Output
	}
	return "Error: " + r.Error
}

// ToolExecutor manages and executes tools
type ToolExecutor struct {
	tools   map[string]*ToolDefinition
	schemas map[string]*gojsonschema.Schema
	order   []string
	mu      sync.RWMutex
}

// New creates a new ToolExecutor
func New() *ToolExecutor {
	return &ToolExecutor{
		tools:   make(map[string]*ToolDefinition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// RegisterTool registers a new tool
func (te *ToolExecutor) RegisterTool(def ToolDefinition) error {
	if err := te.validateToolDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := te.generateJSONSchema(def)
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	if _, exists := te.tools[def.Name]; exists {
		return fmt.Errorf("tool %s is already registered", def.Name)
	}
	te.tools[def.Name] = &def
	te.schemas[def.Name] = schema
	te.order = append(te.order, def.Name)

	log.Debug().Str("tool", def.Name).Msg("Tool registered")

	return nil
}

// GetTool returns a tool definition by name
func (te *ToolExecutor) GetTool(name string) *ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return te.tools[name]
}

// ListTools returns all registered tool names in registration order
func (te *ToolExecutor) ListTools() []string {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return append([]string(nil), te.order...)
}

// GetToolCount returns the number of registered tools
func (te *ToolExecutor) GetToolCount() int {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return len(te.tools)
}

// Declarations returns what the model is told about each tool the policy
// allows, in registration order.
func (te *ToolExecutor) Declarations(policy *ToolPolicy) []protocol.ToolDeclaration {
	te.mu.RLock()
	defer te.mu.RUnlock()

	decls := make([]protocol.ToolDeclaration, 0, len(te.order))
	for _, name := range te.order {
		if !policy.IsToolAllowed(name) {
			continue
		}
		decls = append(decls, declarationFor(te.tools[name]))
	}
	return decls
}

func declarationFor(def *ToolDefinition) protocol.ToolDeclaration {
	schema := &protocol.Schema{
		Type:       "object",
		Properties: make(map[string]*protocol.Schema, len(def.Parameters)),
	}
	for _, param := range def.Parameters {
		prop := &protocol.Schema{Type: param.Type, Description: param.Description}
		if param.Type == "array" && param.Items != "" {
			prop.Items = &protocol.Schema{Type: param.Items}
		}
		schema.Properties[param.Name] = prop
		if param.Required {
			schema.Required = append(schema.Required, param.Name)
		}
	}
	return protocol.ToolDeclaration{
		Name:        def.Name,
		Description: def.Description,
		Parameters:  schema,
	}
}

// Dispatch executes a model tool call and wraps the outcome as a tool-role
// message. Unknown tools produce an "error" response; everything else,
// including tool failures, produces a "result" string.
func (te *ToolExecutor) Dispatch(ctx context.Context, call protocol.ToolCall, execCtx *ExecutionContext) protocol.Message {
	resp := protocol.ToolResponse{ID: call.ID, Name: call.Name}

	if te.GetTool(call.Name) == nil {
		log.Warn().Str("tool", call.Name).Msg("Model requested unknown tool")
		observability.RecordToolExecution(call.Name, 0, false)
		resp.Response = map[string]any{"error": "Unknown function: " + call.Name}
		return protocol.NewToolResponseMessage(resp)
	}

	result := te.Execute(ctx, call.Name, call.Args, execCtx)
	resp.Response = map[string]any{"result": result.Text()}
	return protocol.NewToolResponseMessage(resp)
}

// Execute executes a tool with the given parameters
func (te *ToolExecutor) Execute(ctx context.Context, toolName string, params map[string]interface{}, execCtx *ExecutionContext) (result ToolResult) {
	startTime := time.Now()

	ctx, span := tracing.StartSpan(ctx, "claii.toolexecutor", "tool.dispatch", attribute.String("tool", toolName))
	defer span.End()
	defer func() {
		observability.RecordToolExecution(toolName, time.Since(startTime), result.Success)
		runID := ""
		if execCtx != nil {
			runID = execCtx.RunID
		}
		observability.RecordToolAudit(ctx, toolName, runID, result.Success, nil)
		if !result.Success {
			span.SetStatus(codes.Error, result.Error)
		}
	}()

	if execCtx != nil && execCtx.ToolPolicy != nil && !execCtx.ToolPolicy.IsToolAllowed(toolName) {
		log.Warn().Str("tool", toolName).Msg("Tool execution blocked by policy")
		return ToolResult{Error: fmt.Sprintf("tool '%s' is not allowed by policy", toolName)}
	}

	te.mu.RLock()
	tool := te.tools[toolName]
	schema := te.schemas[toolName]
	te.mu.RUnlock()

	if tool == nil {
		log.Error().Str("tool", toolName).Msg("Tool not found")
		return ToolResult{Error: fmt.Sprintf("tool not found: %s", toolName)}
	}

	params = stripReserved(toolName, params)

	if err := te.validateParameters(schema, params); err != nil {
		log.Warn().Str("tool", toolName).Err(err).Msg("Parameter validation failed")
		return ToolResult{Error: fmt.Sprintf("invalid arguments for %s: %v", toolName, err)}
	}

	if err := ctx.Err(); err != nil {
		return ToolResult{Error: err.Error()}
	}

	log.Debug().Str("tool", toolName).Msg("Executing tool")

	output, err := invoke(ContextWithExecContext(ctx, execCtx), tool, params)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().
			Str("tool", toolName).
			Dur("duration", duration).
			Err(err).
			Msg("Tool execution failed")

		return ToolResult{
			Error: err.Error(),
			Metadata: map[string]interface{}{
				"duration": duration.Milliseconds(),
			},
		}
	}

	log.Debug().
		Str("tool", toolName).
		Dur("duration", duration).
		Msg("Tool execution completed")

	return ToolResult{
		Success: true,
		Output:  output,
		Metadata: map[string]interface{}{
			"duration": duration.Milliseconds(),
		},
	}
}

// invoke runs the handler, turning a panic into an ordinary error.
func invoke(ctx context.Context, tool *ToolDefinition, params map[string]interface{}) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("tool", tool.Name).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Tool handler panicked")
			err = fmt.Errorf("tool %s failed unexpectedly: %v", tool.Name, r)
		}
	}()
	return tool.Handler(ctx, params)
}

// stripReserved returns params without keys the model must not control.
func stripReserved(toolName string, params map[string]interface{}) map[string]interface{} {
	clean := make(map[string]interface{}, len(params))
	for k, v := range params {
		clean[k] = v
	}
	for _, key := range reservedArgs {
		if _, ok := clean[key]; ok {
			log.Warn().Str("tool", toolName).Str("arg", key).Msg("Ignoring model-supplied reserved argument")
			delete(clean, key)
		}
	}
	return clean
}

// validateToolDefinition validates a tool definition
func (te *ToolExecutor) validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}

	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if param.Type == "" {
			return fmt.Errorf("parameter type cannot be empty for %s", param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
		if param.Items != "" && !validTypes[param.Items] {
			return fmt.Errorf("invalid item type %s for %s", param.Items, param.Name)
		}
		for _, reserved := range reservedArgs {
			if param.Name == reserved {
				return fmt.Errorf("parameter name %s is reserved", param.Name)
			}
		}
	}

	return nil
}

// generateJSONSchema generates a JSON Schema from tool parameters
func (te *ToolExecutor) generateJSONSchema(def ToolDefinition) (*gojsonschema.Schema, error) {
	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           make(map[string]interface{}),
	}

	properties := schemaMap["properties"].(map[string]interface{})
	required := []interface{}{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Items != "" {
			paramSchema["items"] = map[string]interface{}{"type": param.Items}
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}

		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

// validateParameters validates parameters against a JSON Schema
func (te *ToolExecutor) validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if params == nil {
		params = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errors := []string{}
		for _, err := range result.Errors() {
			errors = append(errors, err.String())
		}
		return fmt.Errorf("validation errors: %v", errors)
	}

	return nil
}
