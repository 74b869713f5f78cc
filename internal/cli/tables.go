package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/joyeria/internal/core"
)

func newTablesCmd(a *app) *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the registered tables by group",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			groups := core.Groups()
			if group != "" {
				groups = []string{group}
			}

			shown := 0
			for _, g := range groups {
				configs := core.ByGroup(g)
				if len(configs) == 0 {
					continue
				}
				rows := make([][]string, 0, len(configs))
				for _, cfg := range configs {
					rows = append(rows, []string{cfg.Key, cfg.Title, strconv.Itoa(len(cfg.Columns)), actionsSummary(cfg.Actions)})
				}
				fmt.Fprintln(out, titleStyle.Render(g))
				fmt.Fprintln(out, renderTable([]string{"Clave", "Título", "Columnas", "Acciones"}, rows))
				shown += len(configs)
			}

			if shown == 0 {
				warnColor.Fprintln(out, "No hay tablas registradas")
				return nil
			}
			infoColor.Fprintf(out, "%d tablas\n", shown)
			return nil
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", "", "Only list tables of this group")
	return cmd
}

// actionsSummary lists the enabled actions, e.g. "add edit export".
func actionsSummary(a core.Actions) string {
	var parts []string
	for _, p := range []struct {
		on   bool
		name string
	}{
		{a.CanAdd, "add"},
		{a.CanEdit, "edit"},
		{a.CanDelete, "delete"},
		{a.CanExport, "export"},
		{a.CanView, "view"},
	} {
		if p.on {
			parts = append(parts, p.name)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
