package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fx-rate-alerts/internal/config"
	"fx-rate-alerts/internal/signal"
)

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS fx_series (
        symbol   TEXT             NOT NULL,
        position INTEGER          NOT NULL,
        price    DOUBLE PRECISION NOT NULL,
        PRIMARY KEY (symbol, position)
    );
    CREATE TABLE IF NOT EXISTS fx_alert_state (
        symbol     TEXT PRIMARY KEY,
        side       TEXT NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE TABLE IF NOT EXISTS fx_alerts (
        id         BIGSERIAL PRIMARY KEY,
        symbol     TEXT             NOT NULL,
        signal     TEXT             NOT NULL,
        price      DOUBLE PRECISION NOT NULL,
        threshold  DOUBLE PRECISION NOT NULL,
        created_at TIMESTAMPTZ      NOT NULL DEFAULT now()
    );`

	loadSeriesSQL = `SELECT price
    FROM fx_series
    WHERE symbol = $1
    ORDER BY position;`

	deleteSeriesSQL = `DELETE FROM fx_series WHERE symbol = $1;`

	loadSideSQL = `SELECT side FROM fx_alert_state WHERE symbol = $1;`

	upsertSideSQL = `INSERT INTO fx_alert_state (symbol, side, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (symbol) DO UPDATE
    SET side       = EXCLUDED.side,
        updated_at = now();`

	insertAlertSQL = `INSERT INTO fx_alerts (
        symbol,
        signal,
        price,
        threshold
    ) VALUES (
        $1,$2,$3,$4
    );`

	listRecentAlertsSQL = `SELECT
        symbol,
        signal,
        price,
        threshold,
        created_at
    FROM fx_alerts
    ORDER BY created_at DESC
    LIMIT $1;`
)

// PostgresStore persists series, latch state and alerts in PostgreSQL.
// The whole series is rewritten per save inside one transaction; at 1440
// rows per symbol that is cheaper than being clever.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var (
	_ Store    = (*PostgresStore)(nil)
	_ AlertLog = (*PostgresStore)(nil)
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// NewPostgresStore opens the pool and ensures the schema exists.
func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig) (*PostgresStore, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// LoadSeries implements SeriesStore.
func (s *PostgresStore) LoadSeries(ctx context.Context, symbol string) ([]float64, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, loadSeriesSQL, NormalizeKey(symbol))
	if queryErr != nil {
		return nil, fmt.Errorf("load series: %w", queryErr)
	}
	defer rows.Close()

	values := make([]float64, 0)
	for rows.Next() {
		var v float64
		if scanErr := rows.Scan(&v); scanErr != nil {
			return nil, scanErr
		}
		values = append(values, v)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return values, nil
}

// SaveSeries implements SeriesStore: delete then bulk-insert in one tx.
func (s *PostgresStore) SaveSeries(ctx context.Context, symbol string, values []float64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	key := NormalizeKey(symbol)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save series: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteSeriesSQL, key); err != nil {
		return fmt.Errorf("clear series: %w", err)
	}

	if len(values) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"fx_series"},
			[]string{"symbol", "position", "price"},
			pgx.CopyFromSlice(len(values), func(i int) ([]interface{}, error) {
				return []interface{}{key, i, values[i]}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy series: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save series: %w", err)
	}
	return nil
}

// LoadSide implements StateStore.
func (s *PostgresStore) LoadSide(ctx context.Context, symbol string) (signal.Side, error) {
	pool, err := s.getPool()
	if err != nil {
		return signal.SideNone, err
	}

	var side string
	scanErr := pool.QueryRow(ctx, loadSideSQL, NormalizeKey(symbol)).Scan(&side)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return signal.SideNone, nil
	}
	if scanErr != nil {
		return signal.SideNone, fmt.Errorf("load side: %w", scanErr)
	}
	return signal.ParseSide(side), nil
}

// SaveSide implements StateStore.
func (s *PostgresStore) SaveSide(ctx context.Context, symbol string, side signal.Side) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertSideSQL, NormalizeKey(symbol), side.String()); execErr != nil {
		return fmt.Errorf("save side: %w", execErr)
	}
	return nil
}

// AppendAlert implements AlertLog.
func (s *PostgresStore) AppendAlert(ctx context.Context, rec AlertRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, insertAlertSQL,
		rec.Symbol,
		rec.Signal,
		rec.Price,
		rec.Threshold,
	)
	if execErr != nil {
		return fmt.Errorf("append alert: %w", execErr)
	}
	return nil
}

// RecentAlerts implements AlertLog, newest first.
func (s *PostgresStore) RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	records := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var rec AlertRecord
		if err := rows.Scan(
			&rec.Symbol,
			&rec.Signal,
			&rec.Price,
			&rec.Threshold,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}
