// Package agent runs the model/tool loop behind the claii command.
//
// Invariants:
// - One model query at a time; tool calls dispatch in the order they appear.
// - Tool calls route through toolexecutor only, with the sandbox root taken
//   from RunParams.WorkingDir and never from model arguments.
// - A run stops on the first step without tool calls that has text, or after
//   MaxSteps model queries.
// - Memory is saved once at the end of a successful run and never after a
//   provider error.
//
// Usage:
//
//	provider, _ := agent.NewFailoverProvider(profiles, nil, agent.FailoverOptions{})
//	runner, _ := agent.NewRunner(agent.Config{Provider: provider, ToolExecutor: te})
//	result, _ := runner.Run(ctx, agent.RunParams{
//		Prompt:     "fix the tests",
//		WorkingDir: "/path/to/project",
//		UseMemory:  true,
//		Prune:      true,
//	})
//	_ = result
package agent
