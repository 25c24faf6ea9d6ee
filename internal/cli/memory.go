package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/agencyswarm/claii/internal/observability"
	"github.com/agencyswarm/claii/pkg/memory"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newMemoryCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect or reset the conversation memory",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the remembered conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeAll, err := openMemoryFromFlags(opts)
			if err != nil {
				return err
			}
			defer closeAll()

			msgs, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			printMemory(cmd.OutOrStdout(), memory.ToRecords(msgs))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the remembered conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeAll, err := openMemoryFromFlags(opts)
			if err != nil {
				return err
			}
			defer closeAll()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Memory cleared.")
			return nil
		},
	})

	return cmd
}

// openMemoryFromFlags opens the configured store. The returned func closes
// the store and, when one was opened, the audit log.
func openMemoryFromFlags(opts *options) (memory.Store, func(), error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	auditing := cfg.Logging.AuditFile != ""
	if auditing {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			return nil, nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}
	closeAudit := func() {
		if auditing {
			observability.GetAuditLogger().Close()
		}
	}

	store, err := openMemory(cfg, zerolog.Nop())
	if err != nil {
		closeAudit()
		return nil, nil, fmt.Errorf("failed to open memory: %w", err)
	}
	return store, func() {
		store.Close()
		closeAudit()
	}, nil
}

func printMemory(out io.Writer, records []memory.Record) {
	if len(records) == 0 {
		fmt.Fprintln(out, "Memory is empty.")
		return
	}
	for _, rec := range records {
		fmt.Fprintf(out, "[%s] %s\n", rec.Role, strings.TrimSpace(rec.Text))
	}
}
