package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskflow-api/internal/cache"
	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
	"github.com/phrazzld/taskflow-api/internal/queue"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	gateway      *postgres.Gateway
	cacheBackend cache.Backend
	taskCache    *cache.Cache
	queueClient  *queue.Client
	queueRunner  *queue.Runner

	taskService service.TaskService
	verifier    auth.TokenVerifier
}

// newApplication creates a new application instance with all dependencies initialized.
// The database connection must already be established and migrated.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.verifier, err = auth.NewTokenVerifier(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	app.gateway = postgres.NewGateway(db, logger)

	app.cacheBackend, err = setupCacheBackend(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	app.taskCache = cache.New(app.cacheBackend, logger,
		cache.WithDefaultTTL(time.Duration(cfg.Cache.DefaultTTLSeconds)*time.Second))

	app.queueClient = queue.NewClient(app.gateway.Jobs(), logger)
	app.queueRunner = setupQueueRunner(app.gateway.Jobs(), cfg.Queue, logger)

	opts := []service.Option{
		service.WithTaskTTL(time.Duration(cfg.Cache.TaskTTLSeconds) * time.Second),
	}
	if cfg.Queue.Outbox {
		opts = append(opts, service.WithTransactionalOutbox())
	}
	app.taskService, err = service.NewTaskService(app.gateway, app.queueClient, app.taskCache, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupQueueRunner builds the worker pool that drains status-update jobs.
func setupQueueRunner(jobs store.JobStore, cfg config.QueueConfig, logger *slog.Logger) *queue.Runner {
	runner := queue.NewRunner(jobs, queue.RunnerConfig{
		WorkerCount:  cfg.WorkerCount,
		PollInterval: time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		BatchSize:    cfg.BatchSize,
		StuckJobAge:  time.Duration(cfg.StuckJobAgeMinutes) * time.Minute,
	}, logger)
	runner.Register(domain.JobKindTaskStatusUpdate, queue.NewStatusUpdateHandler(logger))
	runner.SetDiscardHandler(func(job *domain.QueueJob, err error) {
		logger.Error("task status job discarded",
			"job_id", job.ID.String(),
			"attempts", job.Attempts,
			"error", err)
	})
	return runner
}

// Run starts the queue workers and the HTTP server and blocks until ctx is
// cancelled or the server fails.
func (app *application) Run(ctx context.Context) error {
	if err := app.queueRunner.Start(ctx); err != nil {
		app.cleanup()
		return fmt.Errorf("failed to start queue runner: %w", err)
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.queueRunner != nil {
		app.queueRunner.Stop()
	}

	if closer, ok := app.cacheBackend.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			app.logger.Error("Error closing cache backend", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
