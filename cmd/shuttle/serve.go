package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mercator-hq/shuttle/internal/demo"
	"mercator-hq/shuttle/pkg/cli"
	"mercator-hq/shuttle/pkg/config"
	"mercator-hq/shuttle/pkg/limits"
	"mercator-hq/shuttle/pkg/security/secrets"
	"mercator-hq/shuttle/pkg/server"
	"mercator-hq/shuttle/pkg/sse/journal"
	"mercator-hq/shuttle/pkg/stream"
	"mercator-hq/shuttle/pkg/telemetry/health"
	"mercator-hq/shuttle/pkg/telemetry/logging"
	"mercator-hq/shuttle/pkg/telemetry/metrics"
	"mercator-hq/shuttle/pkg/telemetry/tracing"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	envFile       string
	watch         bool
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the shuttle server",
	Long: `Start the shuttle HTTP server with the specified configuration.

Variables from the env file are loaded before the configuration, so SHUTTLE_*
overrides and SHUTTLE_SECRET_* secrets can live there during development.
Secret references of the form ${secret:name} in credential fields are
resolved before the server starts.

The first SIGINT or SIGTERM fails readiness, ends open event streams and
waits up to server.shutdown_timeout for requests to finish. A second signal
exits immediately.

Examples:
  # Start with defaults
  shuttle serve

  # Start with a config file and reload it on change
  shuttle serve --config /etc/shuttle/config.yaml --watch

  # Override listen address
  shuttle serve --listen 0.0.0.0:8080

  # Validate config and secrets without starting the server
  shuttle serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&serveFlags.envFile, "env-file", ".env", "dotenv file loaded before the configuration (ignored when missing)")
	serveCmd.Flags().BoolVar(&serveFlags.watch, "watch", false, "reload the configuration file when it changes")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config and secrets without starting the server")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadEnvFile(serveFlags.envFile); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := *config.GetConfig()

	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Telemetry.Logging, os.Stdout, cfg.Context.LogKeys...)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	ctx, stop := cli.SignalContext(cmd.Context(), logger)
	defer stop()

	secretManager, secretFiles, err := secrets.FromConfig(&cfg.Security.Secrets, logger)
	if err != nil {
		return cli.NewConfigError("security.secrets", err.Error())
	}
	if secretFiles != nil {
		defer secretFiles.Close()
	}
	resolved, err := secretManager.ResolveConfig(ctx, &cfg)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	if serveFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	logger.Info("starting shuttle",
		"version", Version,
		"config", cfgFile,
		"listen_address", resolved.Server.ListenAddress,
	)

	tracer, err := tracing.New(&resolved.Telemetry.Tracing, tracing.WithServiceVersion(Version))
	if err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	var collector *metrics.Collector
	if resolved.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&resolved.Telemetry.Metrics, prometheus.NewRegistry())
		stream.SetObserver(collector)
	}

	checker := health.New(0)
	checker.RegisterCheck("config", func(context.Context) error {
		if config.GetConfig() == nil {
			return errors.New("config not loaded")
		}
		return nil
	})

	store, err := openJournal(ctx, &resolved.Journal)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	if store != nil {
		defer store.Close()
		checker.RegisterCheck("journal", store.Ping)

		scheduler := journal.NewScheduler(store, resolved.Journal.PruneSchedule, resolved.Journal.Retention)
		if err := scheduler.Start(ctx); err != nil {
			return cli.NewConfigError("journal.prune_schedule", err.Error())
		}
		defer scheduler.Stop()
	}

	var limiter *limits.Limiter
	if resolved.Limits.Enabled {
		var opts []limits.Option
		if collector != nil {
			opts = append(opts, limits.WithObserver(collector))
		}
		limiter = limits.New(&resolved.Limits, opts...)
	}

	if serveFlags.watch && cfgFile != "" {
		// The watcher swaps the config singleton; running components keep
		// the settings they were built with.
		watcher, err := config.NewWatcher(cfgFile, 0, func(*config.Config) {
			logger.Warn("configuration changed on disk; listener, TLS and extractor settings apply on restart")
		}, logger)
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("config watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	srv := server.New(resolved,
		server.WithLogger(logger),
		server.WithCollector(collector),
		server.WithTracer(tracer),
		server.WithHealth(checker),
		server.WithVersion(server.VersionInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate}),
		server.WithRoutes(demo.Routes(demo.Deps{
			SSE:     resolved.SSE,
			Journal: store,
			Limits:  limiter,
			Logger:  logger,
		})),
	)

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %q: %w", path, err)
	}
	return nil
}

// openJournal returns the configured event journal, or nil when
// journaling is disabled.
func openJournal(ctx context.Context, cfg *config.JournalConfig) (journal.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Backend {
	case "sqlite":
		store, err := journal.NewSQLiteStore(&journal.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			Driver:      cfg.SQLite.Driver,
			WALMode:     cfg.SQLite.WALMode,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		return store, nil
	case "postgres":
		store, err := journal.NewPostgresStore(ctx, &journal.PostgresConfig{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		return store, nil
	case "memory", "":
		return journal.NewMemoryStore(cfg.Capacity), nil
	default:
		return nil, fmt.Errorf("unsupported journal backend: %s", cfg.Backend)
	}
}
