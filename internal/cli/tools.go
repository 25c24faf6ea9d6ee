package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newToolsCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools advertised to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			executor, _, err := newToolset(cfg)
			if err != nil {
				return err
			}

			decls := executor.Declarations(toolPolicy(cfg))
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(decls)
			}
			for _, decl := range decls {
				fmt.Fprintf(out, "%-18s %s\n", decl.Name, decl.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print full declarations with parameter schemas")
	return cmd
}
