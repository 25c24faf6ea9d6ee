// Package toolexecutor registers and dispatches the tools the agent exposes
// to the model.
//
// Invariants:
// - Tool names are unique and keep their registration order.
// - Parameters are schema-validated before execution.
// - The sandbox root travels in ExecutionContext, never in model arguments.
// - Handlers never take the process down; panics become error results.
//
// Usage:
//
//	exec := toolexecutor.New()
//	_ = exec.RegisterTool(toolexecutor.ToolDefinition{
//		Name: "echo",
//		Description: "Echo input",
//		Parameters: []toolexecutor.ToolParameter{{Name: "text", Type: "string", Description: "text", Required: true}},
//		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) { return params["text"].(string), nil },
//	})
//	msg := exec.Dispatch(ctx, call, &toolexecutor.ExecutionContext{WorkingDir: root})
package toolexecutor
