package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/joyeria/internal/core"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		search string
		sortBy string
		dir    string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <table>",
		Short: "Export the filtered rows of a table to CSV, Excel or a printable report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := core.ParseExportFormat(format)
			if err != nil {
				return err
			}
			svc, err := a.Service()
			if err != nil {
				return err
			}

			req := core.ExportRequest{Format: f, Search: search, Now: time.Now()}
			if sortBy != "" {
				req.Sort = core.SortState{Key: sortBy, Direction: core.ParseDirection(dir)}
			}

			res, err := svc.Export(cmd.Context(), args[0], req)
			if errors.Is(err, core.ErrNothingToExport) {
				warnColor.Fprintln(cmd.ErrOrStderr(), "!", core.FormatUserError(err))
				return nil
			}
			if err != nil {
				return err
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(res.Body)
				return err
			}
			path := output
			if path == "" {
				path = res.Filename
			} else if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, res.Filename)
			}
			if err := os.WriteFile(path, res.Body, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}

			okColor.Fprintf(cmd.OutOrStdout(), "✓ %d registros exportados a %s\n", res.Rows, path)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&format, "format", "f", "csv", "Export format (csv, excel, csv-bom, pdf)")
	fl.StringVarP(&search, "search", "s", "", "Only export rows matching this query")
	fl.StringVar(&sortBy, "sort", "", "Column to sort by")
	fl.StringVar(&dir, "dir", "asc", "Sort direction (asc, desc)")
	fl.StringVarP(&output, "output", "o", "", "Output file or directory, - for stdout")
	return cmd
}
