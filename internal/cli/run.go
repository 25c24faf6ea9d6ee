package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/agencyswarm/claii/internal/config"
	"github.com/agencyswarm/claii/internal/observability"
	"github.com/agencyswarm/claii/internal/tracing"
	"github.com/agencyswarm/claii/pkg/agent"
	"github.com/agencyswarm/claii/pkg/memory"
	"github.com/agencyswarm/claii/pkg/mention"
	"github.com/agencyswarm/claii/pkg/toolexecutor"
	"github.com/spf13/cobra"
)

const budgetExhaustedMessage = "Max agent steps reached without final answer."

func runPrompt(cmd *cobra.Command, opts *options, args []string) error {
	prompt := strings.Join(args, " ")

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer lg.Close()
	log := lg.GetZerolog()

	executor, toolset, err := newToolset(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up tools: %w", err)
	}
	policy := toolPolicy(cfg)
	if err := toolexecutor.ValidatePolicy(policy, executor.ListTools()); err != nil {
		return fmt.Errorf("invalid tool policy: %w", err)
	}
	for _, warning := range config.NewValidator().ValidateConfig(cfg, nil) {
		log.Warn().Err(warning).Msg("Suspicious configuration")
	}

	if cfg.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		defer observability.GetAuditLogger().Close()
	}
	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry("claii"); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer tracing.ShutdownOpenTelemetry(context.Background())
	}
	if cfg.Metrics.Textfile != "" {
		defer func() {
			if err := observability.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				log.Warn().Err(err).Str("path", cfg.Metrics.Textfile).Msg("Failed to write metrics")
			}
		}()
	}

	root, err := projectRoot(cfg)
	if err != nil {
		return err
	}

	provider, err := newProvider(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	useMemory := cfg.Memory.Enabled && !opts.noMemory
	var store memory.Store
	if useMemory {
		store, err = openMemory(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to open memory: %w", err)
		}
		defer store.Close()
	}

	runner, err := agent.NewRunner(agent.Config{
		Provider:     provider,
		ToolExecutor: executor,
		Memory:       store,
		Expander:     mention.NewExpander(toolset),
		Logger:       log,
		Out:          cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := runner.Run(ctx, agent.RunParams{
		Prompt:            prompt,
		WorkingDir:        root,
		Verbose:           opts.verbose,
		UseMemory:         useMemory,
		Prune:             cfg.Memory.Prune && !opts.noPrune,
		MaxSteps:          cfg.MaxSteps,
		MaxMemoryMessages: cfg.Memory.MaxMessages,
		Model:             cfg.Model,
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		ToolPolicy:        policy,
	})
	if err != nil {
		return err
	}

	log.Debug().
		Str("run_id", result.RunID).
		Str("outcome", string(result.Outcome)).
		Int("steps", result.Steps).
		Msg("Run finished")

	out := cmd.OutOrStdout()
	if result.Outcome == agent.OutcomeStepBudgetExhausted {
		fmt.Fprintln(out, budgetExhaustedMessage)
		return nil
	}
	fmt.Fprintf(out, "Final response:\n\n%s\n", result.Response)
	return nil
}
