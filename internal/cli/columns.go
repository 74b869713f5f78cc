package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/joyeria/internal/core"
)

func newColumnsCmd(a *app) *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "columns <table>",
		Short: "Describe the columns of a table and which are visible under a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := core.Lookup(args[0])
			if err != nil {
				return err
			}
			visible, err := visibility(cfg, preset, nil)
			if err != nil {
				return err
			}

			rows := make([][]string, len(cfg.Columns))
			for i, c := range cfg.Columns {
				mark := dimStyle.Render("·")
				if visible[c.Key] {
					mark = "✓"
				}
				typ := string(c.Type)
				if typ == "" {
					typ = "auto"
				}
				rows[i] = []string{mark, c.Key, core.FieldLabel(c.Key, cfg.Columns), typ, strconv.Itoa(c.EffectivePriority())}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(cfg.Title))
			fmt.Fprintln(out, renderTable([]string{"", "Clave", "Etiqueta", "Tipo", "Prioridad"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "default", "Column preset (all, essential, default)")
	return cmd
}
