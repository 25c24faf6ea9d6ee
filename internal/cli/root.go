package cli

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// options collects the flags shared by every command.
type options struct {
	cfgFile  string
	logLevel string

	verbose  bool
	noMemory bool
	noPrune  bool
	workDir  string
	provider string
	model    string
}

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "claii <prompt>",
		Short: "CLAII - a coding agent for one project directory",
		Long: `CLAII sends a prompt to a language model and lets it inspect, edit and run
files inside the working directory until it can answer.

Mention knowledge base files with @kb/<path> and project files with @file:<path>.`,
		Args:          cobra.MinimumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrompt(cmd, opts, args)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./claii.json)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.workDir, "workdir", "", "directory the tools are confined to")

	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "print the prompt, tool arguments and tool results")
	cmd.Flags().BoolVar(&opts.noMemory, "no-memory", false, "neither load nor save conversation memory")
	cmd.Flags().BoolVar(&opts.noPrune, "no-prune", false, "save the full history instead of the most recent messages")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "model provider, overrides the configured failover chain")
	cmd.Flags().StringVar(&opts.model, "model", "", "model name")

	cmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	cmd.AddCommand(newMemoryCmd(opts))
	cmd.AddCommand(newToolsCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))

	return cmd
}

// Execute runs the CLI. It is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
