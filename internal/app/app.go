// Package app provides application initialization and dependency
// wiring.
//
// Setup builds the full pipeline in dependency order: logging,
// tracing, database pool (with migrations), doctrine store, provider
// clients, retrieval engine. Close releases everything in reverse.
package app

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sparkforge/nigel/internal/config"
	"github.com/sparkforge/nigel/internal/doctrine"
	"github.com/sparkforge/nigel/internal/rag"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool   *pgxpool.Pool
	Store  *doctrine.Store
	Engine *rag.Engine

	otelCleanup func()
	cancel      context.CancelFunc
}

// Close gracefully shuts down all resources. Safe to call on a
// partially initialized App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down")
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.Pool != nil {
		a.Pool.Close()
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
