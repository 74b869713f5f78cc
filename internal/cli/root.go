// Package cli implements joyeriactl, a terminal client for the admin
// tables. It talks to the same upstream API as the web server and runs
// the same engine, so views and exports match what the browser shows.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/joyeria/internal/core"
	"github.com/JonMunkholm/joyeria/internal/core/tables"
	"github.com/JonMunkholm/joyeria/internal/logging"
	"github.com/JonMunkholm/joyeria/internal/upstream"
	"github.com/JonMunkholm/joyeria/internal/web/templates"
)

// options are the persistent flags shared by every command.
type options struct {
	apiURL       string
	sessionToken string
	configDir    string
	locale       string
	timezone     string
	logLevel     string
}

// app carries the flags and the lazily built service.
type app struct {
	opts    options
	source  core.Source
	service *core.Service
}

// Execute runs the CLI.
func Execute() {
	_ = godotenv.Load()
	if err := NewRootCmd().Execute(); err != nil {
		errorColor.Fprintln(os.Stderr, "✗", err)
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "joyeriactl",
		Short: "Browse, search and export the jewelry admin tables",
		Long: `joyeriactl reads the admin API and renders its tables in the terminal.

Examples:

  joyeriactl tables
  joyeriactl view orders --search pendiente --sort total --dir desc
  joyeriactl export orders --format excel -o pedidos.xlsx
  joyeriactl columns products --preset essential
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetupWriter(cmd.ErrOrStderr(), a.opts.logLevel, "text")
			if a.opts.configDir == "" {
				return nil
			}
			n, err := tables.LoadDir(a.opts.configDir)
			if err != nil {
				return fmt.Errorf("load tables from %s: %w", a.opts.configDir, err)
			}
			logging.FromContext(cmd.Context()).Debug("loaded table configs", "dir", a.opts.configDir, "count", n)
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.opts.apiURL, "api-url", envOr("API_BASE_URL", "http://localhost:3000"), "Base URL of the admin API")
	f.StringVar(&a.opts.sessionToken, "session", os.Getenv("API_SESSION_TOKEN"), "Session cookie value for the admin API")
	f.StringVar(&a.opts.configDir, "config-dir", os.Getenv("TABLE_CONFIG_DIR"), "Directory with extra table YAML files")
	f.StringVar(&a.opts.locale, "locale", envOr("TABLE_LOCALE", "es-MX"), "Locale for numbers and dates")
	f.StringVar(&a.opts.timezone, "timezone", envOr("TABLE_TIMEZONE", "UTC"), "Time zone for dates")
	f.StringVar(&a.opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")

	root.AddCommand(
		newTablesCmd(a),
		newViewCmd(a),
		newExportCmd(a),
		newColumnsCmd(a),
		newValidateCmd(),
	)
	return root
}

// Service builds the table service on first use.
func (a *app) Service() (*core.Service, error) {
	if a.service != nil {
		return a.service, nil
	}

	formatter, err := core.ParseFormatter(a.opts.locale, a.opts.timezone)
	if err != nil {
		return nil, fmt.Errorf("locale settings: %w", err)
	}

	src := a.source
	if src == nil {
		client, err := upstream.New(upstream.Options{
			BaseURL:      a.opts.apiURL,
			SessionToken: a.opts.sessionToken,
		})
		if err != nil {
			return nil, err
		}
		src = client
	}

	a.service = core.NewService(core.NewEngine(core.WithFormatter(formatter)), src,
		core.WithReportRenderer(templates.Printer{}))
	return a.service, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
