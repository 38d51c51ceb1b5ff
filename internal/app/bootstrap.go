package app

import (
	"context"
	"errors"
	"time"

	"fx-rate-alerts/internal/fetcher"
	"fx-rate-alerts/internal/storage"
)

// Bootstrap seeds the per-symbol series from daily history so signals work
// from day one instead of after thirty days of sampling. Each published
// daily close is repeated samples_per_day times; holidays carry the last
// close forward, which is what live sampling would have recorded anyway.
func (a *App) Bootstrap(ctx context.Context, opts BootstrapOptions) error {
	samplesPerDay := a.Config.Signal.SamplesPerDay
	capacity := a.Config.Signal.Capacity()

	days := opts.Days
	if days <= 0 {
		days = (capacity + samplesPerDay - 1) / samplesPerDay
	}

	var store storage.Store
	if opts.DryRun {
		a.Logger.Warn().Msg("引导 dry-run：不会写入存储")
	} else {
		var err error
		store, err = a.openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	ft := a.newFetcher()
	end := time.Now().UTC()

	// One request per calendar day covers every symbol.
	tables := make([]fetcher.RateTable, 0, days)
	failed := 0
	for i := days - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		date := end.AddDate(0, 0, -i)
		table, err := ft.FetchTable(ctx, date)
		if err != nil {
			if !errors.Is(err, fetcher.ErrNoData) {
				failed++
				a.Logger.Error().Err(err).Str("date", date.Format("2006-01-02")).Msg("引导抓取失败")
			}
			tables = append(tables, nil)
			continue
		}
		tables = append(tables, table)
	}

	processed := 0
	skipped := 0
	for _, symbol := range a.Config.Symbols {
		values := expandDaily(tables, symbol, samplesPerDay, capacity)
		if len(values) == 0 {
			a.Logger.Warn().Str("symbol", symbol).Msg("no history found for symbol")
			continue
		}

		if opts.DryRun {
			a.Logger.Info().Str("symbol", symbol).Int("samples", len(values)).Msg("would seed series")
			continue
		}

		existing, err := store.LoadSeries(ctx, symbol)
		if err != nil {
			return err
		}
		if len(existing) >= capacity && !opts.Force {
			skipped++
			a.Logger.Warn().Str("symbol", symbol).Int("samples", len(existing)).Msg("series already at capacity; use --force to overwrite")
			continue
		}

		if err := store.SaveSeries(ctx, symbol, values); err != nil {
			return err
		}
		processed++
		a.Logger.Info().Str("symbol", symbol).Int("samples", len(values)).Msg("series seeded")
	}

	a.Logger.Info().Int("seeded", processed).Int("skipped", skipped).Int("failed_days", failed).Msg("引导完成")
	if failed > 0 {
		return errors.New("部分日期抓取失败，请检查日志")
	}
	return nil
}

// expandDaily turns daily closes into a sampling-cadence series for one
// symbol: repeat each close samplesPerDay times, carry the last close over
// gap days, drop leading days before the first close, trim to capacity.
func expandDaily(tables []fetcher.RateTable, symbol string, samplesPerDay, capacity int) []float64 {
	values := make([]float64, 0, len(tables)*samplesPerDay)
	var last float64
	have := false
	for _, table := range tables {
		if table != nil {
			if quote, ok := table[symbol]; ok {
				last = quote.Deal.InexactFloat64()
				have = true
			}
		}
		if !have {
			continue
		}
		for j := 0; j < samplesPerDay; j++ {
			values = append(values, last)
		}
	}
	if len(values) > capacity {
		values = values[len(values)-capacity:]
	}
	return values
}
