package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/joyeria/internal/config"
	"github.com/JonMunkholm/joyeria/internal/core"
	"github.com/JonMunkholm/joyeria/internal/core/tables"
	"github.com/JonMunkholm/joyeria/internal/logging"
	"github.com/JonMunkholm/joyeria/internal/upstream"
	"github.com/JonMunkholm/joyeria/internal/web"
	"github.com/JonMunkholm/joyeria/internal/web/templates"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"upstream", cfg.Upstream.BaseURL,
		"audit_db", cfg.Database.URL != "",
		"export_max_concurrent", cfg.Export.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	if cfg.Table.ConfigDir != "" {
		n, err := tables.LoadDir(cfg.Table.ConfigDir)
		if err != nil {
			slog.Error("failed to load table configs", "dir", cfg.Table.ConfigDir, "error", err)
			os.Exit(1)
		}
		slog.Info("loaded table configs", "dir", cfg.Table.ConfigDir, "count", n)
	}

	slog.Info("tables registered",
		"count", core.TableCount(),
		"groups", len(core.Groups()),
	)
	for _, group := range core.Groups() {
		slog.Debug("table group", "group", group, "tables", len(core.ByGroup(group)))
	}

	// Audit entries go to Postgres when a database is configured and stay
	// in memory otherwise.
	var audit core.AuditLogger
	if cfg.Database.URL != "" {
		pool, err := connectDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store := core.NewPgAuditStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare audit schema", "error", err)
			os.Exit(1)
		}
		audit = store
	} else {
		audit = core.NewMemoryAuditLog(core.DefaultAuditLimit)
	}

	client, err := upstream.New(upstream.Options{
		BaseURL:           cfg.Upstream.BaseURL,
		CookieName:        cfg.Upstream.CookieName,
		SessionToken:      cfg.Upstream.SessionToken,
		Timeout:           cfg.Upstream.Timeout,
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		Burst:             cfg.Upstream.Burst,
	})
	if err != nil {
		slog.Error("failed to create upstream client", "error", err)
		os.Exit(1)
	}

	formatter, err := core.ParseFormatter(cfg.Table.Locale, cfg.Table.Timezone)
	if err != nil {
		slog.Error("invalid locale settings", "error", err)
		os.Exit(1)
	}

	engine := core.NewEngine(
		core.WithFormatter(formatter),
		core.WithLegacyStringSort(cfg.Table.LegacyStringSort),
		core.WithDefaultPageSize(cfg.Table.DefaultPageSize),
		core.WithReportOptions(core.ReportOptions{
			Brand:      cfg.Export.Brand,
			MaxRows:    cfg.Export.PDFMaxRows,
			MaxColumns: cfg.Export.PDFMaxColumns,
		}),
	)

	service := core.NewService(engine, client,
		core.WithAuditLogger(audit),
		core.WithExportLimiter(core.NewExportLimiter(cfg.Export.MaxConcurrent, cfg.Export.MaxWaitTime)),
		core.WithReportRenderer(templates.Printer{}),
		core.WithRefreshDebounce(cfg.Table.SearchDebounce),
		core.WithExportTimeout(cfg.Export.Timeout),
	)

	server := web.NewServer(service, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartRefreshScheduler(jobCtx, cfg.Table.RefreshInterval,
		server.Sessions().PurgeHook(cfg.Table.SessionTTL))

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.ExportStatus(); status.Active > 0 {
			slog.Info("waiting for exports to complete", "active", status.Active)
			if err := service.WaitForExports(shutdownCtx); err != nil {
				slog.Warn("exports did not complete in time", "error", err)
			} else {
				slog.Info("all exports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		service.Close()
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// connectDB opens and pings the audit database pool.
func connectDB(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
