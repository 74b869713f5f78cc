package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/joyeria/internal/core"
)

func newViewCmd(a *app) *cobra.Command {
	var (
		req     core.ViewRequest
		dir     string
		columns []string
		preset  string
	)

	cmd := &cobra.Command{
		Use:   "view <table>",
		Short: "Show one page of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.Service()
			if err != nil {
				return err
			}
			cfg, err := svc.Config(args[0])
			if err != nil {
				return err
			}

			visible, err := visibility(cfg, preset, columns)
			if err != nil {
				return err
			}
			if req.Sort.Key != "" {
				req.Sort.Direction = core.ParseDirection(dir)
			}

			view, err := svc.View(cmd.Context(), cfg.Key, req, visible)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if view.Warning != "" {
				warnColor.Fprintln(cmd.ErrOrStderr(), "!", view.Warning)
			}
			fmt.Fprintln(out, titleStyle.Render(cfg.Title))

			if len(view.Cells) == 0 {
				fmt.Fprintln(out, dimStyle.Render("No se encontraron registros"))
				return nil
			}

			headers := make([]string, len(view.Columns))
			for i, col := range view.Columns {
				headers[i] = core.FieldLabel(col.Key, cfg.Columns)
				if view.Sort.Key == col.Key {
					headers[i] += map[core.Direction]string{core.Asc: " ▲", core.Desc: " ▼"}[view.Sort.Direction]
				}
			}
			rows := make([][]string, len(view.Cells))
			for i, cells := range view.Cells {
				row := make([]string, len(view.Columns))
				for j, col := range view.Columns {
					row[j] = cellText(cells[col.Key])
				}
				rows[i] = row
			}
			fmt.Fprintln(out, renderTable(headers, rows))

			res := view.Result
			fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("Página %d de %d · %d registros", res.Page, res.TotalPages, res.Total)))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.Search, "search", "s", "", "Search query")
	f.StringVar(&req.Sort.Key, "sort", "", "Column to sort by")
	f.StringVar(&dir, "dir", "asc", "Sort direction (asc, desc)")
	f.IntVarP(&req.Page, "page", "p", 1, "Page number")
	f.IntVarP(&req.PageSize, "page-size", "n", core.DefaultPageSize, "Rows per page")
	f.StringSliceVarP(&columns, "columns", "c", nil, "Columns to show, comma separated")
	f.StringVar(&preset, "preset", "", "Column preset (all, essential, default)")
	return cmd
}

// visibility builds the visibility map from a preset or an explicit
// column list. Neither means the config defaults.
func visibility(cfg core.TableConfig, preset string, columns []string) (core.VisibleColumns, error) {
	if len(columns) > 0 {
		m := make(core.VisibleColumns, len(cfg.Columns))
		for _, c := range cfg.Columns {
			m[c.Key] = false
		}
		for _, key := range columns {
			key = strings.TrimSpace(key)
			if _, ok := cfg.Column(key); !ok {
				return nil, fmt.Errorf("unknown column %q in table %s", key, cfg.Key)
			}
			m[key] = true
		}
		return m, nil
	}

	switch preset {
	case "", "default":
		return core.DefaultVisibility(cfg.Columns), nil
	case "all":
		return core.ShowAll(cfg.Columns), nil
	case "essential":
		return core.ShowOnlyEssential(cfg.Columns), nil
	default:
		return nil, fmt.Errorf("unknown preset %q (want all, essential or default)", preset)
	}
}
