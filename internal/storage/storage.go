// Package storage persists rate series, alert latch state and the alert
// audit trail. Three backends implement the same interfaces: flat files,
// PostgreSQL and Redis.
package storage

import (
	"context"
	"errors"
	"fmt"

	"fx-rate-alerts/internal/config"
	"fx-rate-alerts/internal/signal"
)

var (
	// ErrNotConfigured indicates the backend was not initialised.
	ErrNotConfigured = errors.New("storage: backend not configured")
)

// SeriesStore persists the rolling price history per symbol. Values are
// ordered oldest first; SaveSeries replaces the whole series.
type SeriesStore interface {
	LoadSeries(ctx context.Context, symbol string) ([]float64, error)
	SaveSeries(ctx context.Context, symbol string, values []float64) error
}

// StateStore persists the last alerted side per symbol. A symbol that was
// never alerted loads as signal.SideNone.
type StateStore interface {
	LoadSide(ctx context.Context, symbol string) (signal.Side, error)
	SaveSide(ctx context.Context, symbol string, side signal.Side) error
}

// AlertLog records emitted alerts for auditing. Backends that cannot keep
// an audit trail may omit it; callers discover support via type assertion.
type AlertLog interface {
	AppendAlert(ctx context.Context, rec AlertRecord) error
	RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
}

// Store aggregates the persistence surface the watcher needs.
type Store interface {
	SeriesStore
	StateStore
	Close()
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return NewFileStore(cfg.File.Dir)
	case config.BackendPostgres:
		return NewPostgresStore(ctx, cfg.Postgres)
	case config.BackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
