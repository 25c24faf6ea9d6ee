package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/agencyswarm/claii/internal/observability"
	"github.com/agencyswarm/claii/internal/tracing"
	"github.com/agencyswarm/claii/pkg/memory"
	"github.com/agencyswarm/claii/pkg/protocol"
	"github.com/agencyswarm/claii/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// PromptExpander rewrites a raw prompt before it enters the conversation.
type PromptExpander interface {
	Expand(prompt, root string) string
}

// Runner drives the model/tool loop for one request at a time.
type Runner struct {
	provider     LLMProvider
	toolExecutor *toolexecutor.ToolExecutor
	memory       memory.Store
	expander     PromptExpander
	logger       zerolog.Logger
	out          io.Writer
	systemPrompt string
}

// Config holds runner configuration
type Config struct {
	Provider     LLMProvider
	ToolExecutor *toolexecutor.ToolExecutor
	Memory       memory.Store   // optional
	Expander     PromptExpander // optional
	Logger       zerolog.Logger
	Out          io.Writer // progress lines for the user, default discard
	SystemPrompt string    // default SystemPrompt
}

// NewRunner creates a new agent runner
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.ToolExecutor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}

	out := cfg.Out
	if out == nil {
		out = io.Discard
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = SystemPrompt
	}

	return &Runner{
		provider:     cfg.Provider,
		toolExecutor: cfg.ToolExecutor,
		memory:       cfg.Memory,
		expander:     cfg.Expander,
		logger:       cfg.Logger,
		out:          out,
		systemPrompt: systemPrompt,
	}, nil
}

// Run executes one request. Reaching the step budget is reported through
// Result.Outcome, not as an error. A provider error aborts the run and
// leaves memory untouched.
func (r *Runner) Run(ctx context.Context, params RunParams) (result Result, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(params.Prompt) == "" {
		return Result{}, errors.New("prompt cannot be empty")
	}
	if params.WorkingDir == "" {
		return Result{}, errors.New("working directory is required")
	}
	maxSteps := params.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	maxMemory := params.MaxMemoryMessages
	if maxMemory <= 0 {
		maxMemory = memory.DefaultMaxMessages
	}

	providerName := r.provider.Provider()
	ctx = tracing.NewAgentRunContext(ctx, providerName)
	runID := tracing.GetRunID(ctx)
	ctx, span := tracing.StartSpan(ctx, "claii.agent", "agent.run",
		attribute.String("run_id", runID),
		attribute.String("provider", providerName),
	)
	logger := tracing.LoggerFromContext(ctx, r.logger)

	start := time.Now()
	steps := 0
	defer func() {
		outcome := string(result.Outcome)
		if err != nil {
			outcome = "error"
		}
		observability.RecordAgentRun(providerName, outcome, steps, time.Since(start))
		tracing.EndSpan(span, err)
	}()

	if params.Verbose {
		fmt.Fprintf(r.out, "User prompt: %s\n", params.Prompt)
	}

	var messages []protocol.Message
	if params.UseMemory && r.memory != nil {
		loaded, loadErr := r.memory.Load(ctx)
		if loadErr != nil {
			logger.Warn().Err(loadErr).Msg("Failed to load memory, starting fresh")
		}
		messages = loaded
	}

	prompt := params.Prompt
	if r.expander != nil {
		prompt = r.expander.Expand(prompt, params.WorkingDir)
	}
	messages = append(messages, protocol.NewTextMessage(protocol.RoleUser, prompt))

	execCtx := &toolexecutor.ExecutionContext{
		RunID:      runID,
		WorkingDir: params.WorkingDir,
		ToolPolicy: params.ToolPolicy,
	}
	decls := r.toolExecutor.Declarations(params.ToolPolicy)

	result = Result{RunID: runID, Outcome: OutcomeStepBudgetExhausted}
	for steps < maxSteps {
		steps++
		var final string
		var done bool
		messages, final, done, err = r.step(ctx, steps, messages, decls, execCtx, params, &result)
		if err != nil {
			logger.Error().Err(err).Int("step", steps).Msg("Agent run aborted")
			return Result{}, err
		}
		if done {
			result.Response = final
			result.Outcome = OutcomeCompleted
			break
		}
	}
	result.Steps = steps

	if result.Outcome == OutcomeStepBudgetExhausted {
		logger.Warn().Int("steps", steps).Msg("Step budget exhausted without a final answer")
	}

	if params.UseMemory && r.memory != nil {
		if params.Prune {
			messages = memory.Prune(messages, maxMemory)
		}
		if saveErr := r.memory.Save(tracing.CloneContext(ctx), messages); saveErr != nil {
			logger.Error().Err(saveErr).Msg("Failed to save memory")
		}
	}

	logger.Info().
		Str("outcome", string(result.Outcome)).
		Int("steps", steps).
		Dur("duration", time.Since(start)).
		Msg("Agent run finished")

	return result, nil
}

// step runs one model query and dispatches every tool call it asks for. It
// reports done with the final text when the model answered without tools.
func (r *Runner) step(
	ctx context.Context,
	n int,
	messages []protocol.Message,
	decls []protocol.ToolDeclaration,
	execCtx *toolexecutor.ExecutionContext,
	params RunParams,
	result *Result,
) (_ []protocol.Message, final string, done bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "claii.agent", "agent.step", attribute.Int("step", n))
	defer func() { tracing.EndSpan(span, err) }()

	response, err := r.provider.Call(ctx, LLMRequest{
		Model:        params.Model,
		Messages:     messages,
		Tools:        decls,
		Temperature:  params.Temperature,
		MaxTokens:    params.MaxTokens,
		SystemPrompt: r.systemPrompt,
	})
	if err != nil {
		return messages, "", false, fmt.Errorf("model call failed at step %d: %w", n, err)
	}
	result.Usage = result.Usage.add(response.Usage)

	var texts []string
	calledTools := false

	for _, cand := range response.Candidates {
		content := cand.Content
		content.Role = protocol.RoleModel
		if len(content.Parts) == 0 {
			continue
		}
		for i := range content.Parts {
			if call := content.Parts[i].ToolCall; call != nil && call.ID == "" {
				filled := *call
				filled.ID = newCallID()
				content.Parts[i].ToolCall = &filled
			}
		}
		messages = append(messages, content)

		for _, part := range content.Parts {
			switch {
			case part.ToolCall != nil:
				calledTools = true
				messages = append(messages, r.dispatch(ctx, *part.ToolCall, execCtx, params.Verbose))
			case part.Text != "":
				texts = append(texts, part.Text)
			}
		}
	}

	if calledTools {
		return messages, "", false, nil
	}
	final = strings.TrimSpace(strings.Join(texts, "\n"))
	return messages, final, final != "", nil
}

func (r *Runner) dispatch(ctx context.Context, call protocol.ToolCall, execCtx *toolexecutor.ExecutionContext, verbose bool) protocol.Message {
	if verbose {
		args, _ := json.Marshal(call.Args)
		fmt.Fprintf(r.out, "Calling function: %s(%s)\n", call.Name, args)
	} else {
		fmt.Fprintf(r.out, " - Calling function: %s\n", call.Name)
	}

	reply := r.toolExecutor.Dispatch(ctx, call, execCtx)

	if verbose {
		for _, resp := range reply.ToolResponses() {
			content, _ := toolResponseContent(resp)
			fmt.Fprintf(r.out, "-> %s\n", content)
		}
	}
	return reply
}
