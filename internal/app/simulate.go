package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fx-rate-alerts/internal/fetcher"
	"fx-rate-alerts/internal/service"
	"fx-rate-alerts/internal/signal"
)

// SimulateAlert 注入给定报价,对真实历史跑一次完整告警流程。
//
// The cycle runs against a detached copy of the stored series and latch,
// so a simulation sends real notifications but never moves real state.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	values, err := store.LoadSeries(ctx, opts.Symbol)
	if err != nil {
		return err
	}
	side, err := store.LoadSide(ctx, opts.Symbol)
	if err != nil {
		return err
	}

	mem := newMemoryStore()
	mem.series[opts.Symbol] = values
	mem.sides[opts.Symbol] = side

	cfg := *a.Config
	cfg.Symbols = []string{opts.Symbol}

	ft := &staticRateFetcher{symbol: opts.Symbol, price: decimal.NewFromFloat(opts.Price)}
	svc := service.New(&cfg, nil, ft, mem, notifier, a.Logger)

	bucket := time.Now().UTC().Truncate(cfg.Scheduler.Interval)
	return svc.ProcessCycle(ctx, bucket)
}

type staticRateFetcher struct {
	symbol string
	price  decimal.Decimal
}

func (s *staticRateFetcher) FetchTable(ctx context.Context, date time.Time) (fetcher.RateTable, error) {
	return fetcher.RateTable{
		s.symbol: {Unit: s.symbol, Name: "simulated", Deal: s.price},
	}, nil
}

func (s *staticRateFetcher) LatestTable(ctx context.Context, now time.Time) (fetcher.RateTable, time.Time, error) {
	table, err := s.FetchTable(ctx, now)
	return table, now, err
}

var _ fetcher.RateFetcher = (*staticRateFetcher)(nil)

// memoryStore is the simulation sandbox. It deliberately does not
// implement storage.AlertLog: simulations must stay out of the audit
// trail.
type memoryStore struct {
	series map[string][]float64
	sides  map[string]signal.Side
}

func newMemoryStore() *memoryStore {
	return &memoryStore{series: map[string][]float64{}, sides: map[string]signal.Side{}}
}

func (m *memoryStore) LoadSeries(ctx context.Context, symbol string) ([]float64, error) {
	return append([]float64(nil), m.series[symbol]...), nil
}

func (m *memoryStore) SaveSeries(ctx context.Context, symbol string, values []float64) error {
	m.series[symbol] = append([]float64(nil), values...)
	return nil
}

func (m *memoryStore) LoadSide(ctx context.Context, symbol string) (signal.Side, error) {
	if side, ok := m.sides[symbol]; ok {
		return side, nil
	}
	return signal.SideNone, nil
}

func (m *memoryStore) SaveSide(ctx context.Context, symbol string, side signal.Side) error {
	m.sides[symbol] = side
	return nil
}

func (m *memoryStore) Close() {}
