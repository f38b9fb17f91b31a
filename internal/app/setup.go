package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sparkforge/nigel/internal/config"
	"github.com/sparkforge/nigel/internal/database"
	"github.com/sparkforge/nigel/internal/doctrine"
	"github.com/sparkforge/nigel/internal/log"
	"github.com/sparkforge/nigel/internal/observability"
	"github.com/sparkforge/nigel/internal/provider/claude"
	"github.com/sparkforge/nigel/internal/provider/gemini"
	"github.com/sparkforge/nigel/internal/rag"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	logger := provideLogger(cfg)
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if cfg.Telemetry.Enabled {
		a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)
	}

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	store, err := doctrine.New(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating doctrine store: %w", err)
	}
	a.Store = store

	embedder, err := gemini.New(ctx, gemini.Config{
		APIKey:    cfg.GeminiAPIKey,
		Model:     cfg.EmbedderModel,
		Dimension: cfg.EmbeddingDimension,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	completer, err := claude.New(claude.Config{
		APIKey: cfg.AnthropicAPIKey,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}

	engine, err := rag.NewEngine(rag.Config{
		Embedder:  embedder,
		Store:     store,
		Completer: completer,
		FastModel: cfg.FastModel,
		DeepModel: cfg.DeepModel,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating retrieval engine: %w", err)
	}
	a.Engine = engine

	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// provideLogger builds the application logger from config and installs
// it as the slog default so package-level logging is consistent.
func provideLogger(cfg *config.Config) *slog.Logger {
	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(logger)
	return logger
}

// provideOtelShutdown sets up trace export. Returns a cleanup that
// flushes pending spans with its own timeout, since the parent context
// is usually already canceled during teardown.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		Environment: cfg.Telemetry.Environment,
		ServiceName: cfg.Telemetry.ServiceName,
		Logger:      logger,
	})
	if err != nil {
		logger.Warn("setting up tracing", "error", err)
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := database.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
