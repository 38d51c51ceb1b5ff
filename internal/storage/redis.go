package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"fx-rate-alerts/internal/config"
	"fx-rate-alerts/internal/signal"
)

const (
	redisSeriesPrefix = "fx:series:"
	redisStateKey     = "fx:state"
	redisAlertsKey    = "fx:alerts"

	// redisAlertsKeep bounds the audit list so it cannot grow unchecked.
	redisAlertsKeep = 1000
)

// RedisStore keeps each series in a list, the latch sides in one hash and
// the alert audit trail in a capped list.
type RedisStore struct {
	client *redis.Client
}

var (
	_ Store    = (*RedisStore)(nil)
	_ AlertLog = (*RedisStore)(nil)
)

// NewRedisStore connects and pings the server so a bad address fails at
// startup instead of on the first tick.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("storage: redis backend needs an addr")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close implements Store.
func (s *RedisStore) Close() {
	if s == nil || s.client == nil {
		return
	}
	_ = s.client.Close()
}

func (s *RedisStore) getClient() (*redis.Client, error) {
	if s == nil || s.client == nil {
		return nil, ErrNotConfigured
	}
	return s.client, nil
}

func seriesKey(symbol string) string {
	return redisSeriesPrefix + NormalizeKey(symbol)
}

// LoadSeries implements SeriesStore. Entries that fail to parse are
// skipped, mirroring the file backend's lenient reads.
func (s *RedisStore) LoadSeries(ctx context.Context, symbol string) ([]float64, error) {
	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	raw, err := client.LRange(ctx, seriesKey(symbol), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}

	values := make([]float64, 0, len(raw))
	for _, item := range raw {
		v, err := strconv.ParseFloat(item, 64)
		if err != nil {
			continue
		}
		values = append(values, v)
	}
	return values, nil
}

// SaveSeries implements SeriesStore: replace the list in one MULTI/EXEC.
func (s *RedisStore) SaveSeries(ctx context.Context, symbol string, values []float64) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}

	key := seriesKey(symbol)
	pipe := client.TxPipeline()
	pipe.Del(ctx, key)
	if len(values) > 0 {
		items := make([]interface{}, len(values))
		for i, v := range values {
			items[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		pipe.RPush(ctx, key, items...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save series: %w", err)
	}
	return nil
}

// LoadSide implements StateStore.
func (s *RedisStore) LoadSide(ctx context.Context, symbol string) (signal.Side, error) {
	client, err := s.getClient()
	if err != nil {
		return signal.SideNone, err
	}

	side, err := client.HGet(ctx, redisStateKey, symbol).Result()
	if errors.Is(err, redis.Nil) {
		return signal.SideNone, nil
	}
	if err != nil {
		return signal.SideNone, fmt.Errorf("load side: %w", err)
	}
	return signal.ParseSide(side), nil
}

// SaveSide implements StateStore.
func (s *RedisStore) SaveSide(ctx context.Context, symbol string, side signal.Side) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}
	if err := client.HSet(ctx, redisStateKey, symbol, side.String()).Err(); err != nil {
		return fmt.Errorf("save side: %w", err)
	}
	return nil
}

// AppendAlert implements AlertLog: push newest first, trim the tail.
func (s *RedisStore) AppendAlert(ctx context.Context, rec AlertRecord) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	pipe := client.TxPipeline()
	pipe.LPush(ctx, redisAlertsKey, payload)
	pipe.LTrim(ctx, redisAlertsKey, 0, redisAlertsKeep-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append alert: %w", err)
	}
	return nil
}

// RecentAlerts implements AlertLog, newest first.
func (s *RedisStore) RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	raw, err := client.LRange(ctx, redisAlertsKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent alerts: %w", err)
	}

	records := make([]AlertRecord, 0, len(raw))
	for _, item := range raw {
		var rec AlertRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
