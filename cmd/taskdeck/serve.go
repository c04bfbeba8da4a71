// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/taskdeck/taskdeck/internal/api"
	"github.com/taskdeck/taskdeck/internal/auth"
	authpg "github.com/taskdeck/taskdeck/internal/auth/postgres"
	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/logging"
	"github.com/taskdeck/taskdeck/internal/observability"
	"github.com/taskdeck/taskdeck/internal/store"
	"github.com/taskdeck/taskdeck/internal/task"
	taskpg "github.com/taskdeck/taskdeck/internal/task/postgres"
)

// sessionPurgeInterval controls how often expired sessions are swept
// out of the store while serving.
const sessionPurgeInterval = time.Hour

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Taskdeck API server",
		Long: `Start the HTTP API server. Configuration comes from built-in
defaults, the optional --config YAML file, and flags, in that order.
The PostgreSQL connection string is read from DATABASE_URL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// dbPool is the subset of pgxpool.Pool the serve command itself needs.
type dbPool interface {
	Ping(ctx context.Context) error
	Close()
}

// ServeDeps holds injectable dependencies for the serve command.
// Nil fields fall back to production implementations.
type ServeDeps struct {
	DatabaseURL   func() string
	ConnectDB     func(ctx context.Context, url string) (dbPool, error)
	Migrate       func(url string) error
	BuildServices func(pool dbPool, logger *slog.Logger) (*auth.Service, *task.Service, error)
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.DatabaseURL == nil {
		deps.DatabaseURL = func() string {
			return os.Getenv("DATABASE_URL")
		}
	}
	if deps.ConnectDB == nil {
		deps.ConnectDB = func(ctx context.Context, url string) (dbPool, error) {
			return store.Connect(ctx, url)
		}
	}
	if deps.Migrate == nil {
		deps.Migrate = runMigrationsUp
	}
	if deps.BuildServices == nil {
		deps.BuildServices = buildServices
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("taskdeck", version, cfg.LogFormat)
	logger := slog.Default()

	logger.Info("starting server",
		"http_addr", cfg.HTTPAddr,
		"metrics_addr", cfg.MetricsAddr,
		"log_format", cfg.LogFormat,
	)

	databaseURL := deps.DatabaseURL()
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	if cfg.AutoMigrate {
		logger.Info("applying pending migrations")
		if err := deps.Migrate(databaseURL); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
		}
	}

	pool, err := deps.ConnectDB(ctx, databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	logger.Info("connected to database")

	authSvc, taskSvc, err := deps.BuildServices(pool, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Observability server is optional; readiness follows the database.
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		metrics = obsServer.Metrics()

		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	apiServer, err := api.NewServer(api.Config{
		Addr:         cfg.HTTPAddr,
		CookieSecure: cfg.CookieSecure,
	}, authSvc, taskSvc, metrics, logger)
	if err != nil {
		return err
	}

	apiErrCh, err := apiServer.Start()
	if err != nil {
		if obsServer != nil {
			stopServer(obsServer, "observability", logger)
		}
		return oops.Code("API_START_FAILED").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	go purgeSessionsLoop(ctx, authSvc, metrics, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	cmd.Println("Taskdeck server started")
	logger.Info("server ready", "addr", apiServer.Addr())

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")

	stopServer(apiServer, "api", logger)
	if obsServer != nil {
		stopServer(obsServer, "observability", logger)
	}

	logger.Info("shutdown complete")
	return nil
}

// buildServices wires the PostgreSQL repositories into the domain
// services. The pool must be a real pgxpool.Pool; tests inject their
// own BuildServices instead.
func buildServices(pool dbPool, logger *slog.Logger) (*auth.Service, *task.Service, error) {
	pgxPool, ok := pool.(*pgxpool.Pool)
	if !ok {
		return nil, nil, oops.Code("SERVE_INVALID_POOL").Errorf("database pool is not a pgxpool.Pool")
	}

	authSvc, err := auth.NewServiceWithLogger(
		authpg.NewUserRepository(pgxPool),
		authpg.NewSessionRepository(pgxPool),
		auth.NewArgon2idHasher(),
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	taskSvc, err := task.NewServiceWithLogger(taskpg.NewTaskRepository(pgxPool), logger)
	if err != nil {
		return nil, nil, err
	}

	return authSvc, taskSvc, nil
}

// runMigrationsUp applies all pending migrations.
func runMigrationsUp(databaseURL string) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	return migrator.Up()
}

// purgeSessionsLoop periodically removes expired sessions so the
// sessions table does not grow without bound.
func purgeSessionsLoop(ctx context.Context, authSvc *auth.Service, metrics *observability.Metrics, logger *slog.Logger) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := authSvc.PurgeExpiredSessions(ctx)
			if err != nil {
				logger.Warn("session purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired sessions", "count", n)
				if metrics != nil {
					metrics.SessionsPurged.Add(float64(n))
					metrics.ActiveSessionsSet.Sub(float64(n))
				}
			}
		}
	}
}

// stoppable covers both HTTP servers for shutdown.
type stoppable interface {
	Stop(ctx context.Context) error
}

func stopServer(s stoppable, name string, logger *slog.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := s.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors monitors a server's error channel and cancels the
// context on error so a failed listener brings the whole process down
// for a clean restart. It exits when an error arrives, the channel
// closes, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
