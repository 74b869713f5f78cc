package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/joyeria/internal/core"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dir>",
		Short: "Check the table YAML files of a directory without registering them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := core.LoadTableConfigs(os.DirFS(args[0]), ".")
			if err != nil {
				errorColor.Fprintln(cmd.ErrOrStderr(), "✗ Table configs are invalid")
				return err
			}
			for _, cfg := range configs {
				if _, taken := core.Get(cfg.Key); taken {
					warnColor.Fprintf(cmd.OutOrStdout(), "! %s overrides a built-in table and will be rejected\n", cfg.Key)
					continue
				}
				infoColor.Fprintf(cmd.OutOrStdout(), "  %s (%d columns)\n", cfg.Key, len(cfg.Columns))
			}
			okColor.Fprintf(cmd.OutOrStdout(), "✓ %d table configs valid\n", len(configs))
			return nil
		},
	}
}
