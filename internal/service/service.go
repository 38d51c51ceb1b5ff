// Package service orchestrates one polling cycle: fetch the daily table,
// roll the per-symbol series forward, evaluate trend and signals, and
// dispatch notifications.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fx-rate-alerts/internal/alerting"
	"fx-rate-alerts/internal/config"
	"fx-rate-alerts/internal/fetcher"
	"fx-rate-alerts/internal/render"
	"fx-rate-alerts/internal/scheduler"
	"fx-rate-alerts/internal/series"
	"fx-rate-alerts/internal/signal"
	"fx-rate-alerts/internal/storage"
	"fx-rate-alerts/internal/trend"
)

// Service wires fetching, persistence, signal evaluation and alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	fetcher   fetcher.RateFetcher
	store     storage.Store
	alertLog  storage.AlertLog
	notifier  alerting.Notifier
	logger    zerolog.Logger

	symbols       []string
	capacity      int
	shortWindow   int
	longWindow    int
	shortHalfDays float64
	longHalfDays  float64
	threshold     float64
	urgentPct     float64
	epsilon       float64
	interval      time.Duration

	alertsOn         bool
	alwaysReport     bool
	urgentSuppresses bool
	attachChart      bool
}

// New constructs the watcher service. The alert audit log is optional;
// backends that support it are discovered by type assertion.
func New(cfg *config.Config, sched *scheduler.Scheduler, rf fetcher.RateFetcher, store storage.Store, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var alertLog storage.AlertLog
	if l, ok := store.(storage.AlertLog); ok {
		alertLog = l
	}

	return &Service{
		scheduler: sched,
		fetcher:   rf,
		store:     store,
		alertLog:  alertLog,
		notifier:  notifier,
		logger:    logger.With().Str("component", "service").Logger(),

		symbols:       cfg.Symbols,
		capacity:      cfg.Signal.Capacity(),
		shortWindow:   cfg.Signal.ShortWindow,
		longWindow:    cfg.Signal.LongWindow,
		shortHalfDays: cfg.Signal.ShortHalfDays(),
		longHalfDays:  cfg.Signal.LongHalfDays(),
		threshold:     cfg.Signal.Threshold,
		urgentPct:     cfg.Signal.UrgentPct,
		epsilon:       cfg.Signal.TrendEpsilon,
		interval:      cfg.Scheduler.Interval,

		alertsOn:         cfg.Alerting.Enabled,
		alwaysReport:     cfg.Alerting.AlwaysReport,
		urgentSuppresses: cfg.Alerting.UrgentSuppressesReport,
		attachChart:      cfg.Alerting.AttachChart,
	}
}

// Run begins the aligned polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessCycle)
}

// ProcessCycle 执行单个轮询周期。
//
// A whole-table fetch failure aborts the cycle for every symbol: stored
// series stay untouched and a single failure notice goes out. A symbol
// missing from an otherwise good table only skips that symbol.
func (s *Service) ProcessCycle(ctx context.Context, bucket time.Time) error {
	table, date, err := s.fetcher.LatestTable(ctx, bucket)
	if err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("rate table fetch failed")
		s.notifyFetchFailure(ctx, bucket, err)
		return fmt.Errorf("fetch rate table: %w", err)
	}

	s.logger.Debug().
		Time("bucket", bucket).
		Str("table_date", date.Format("2006-01-02")).
		Int("rows", len(table)).
		Msg("rate table fetched")

	var errs []error
	for _, symbol := range s.symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.processSymbol(ctx, bucket, symbol, table); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) processSymbol(ctx context.Context, bucket time.Time, symbol string, table fetcher.RateTable) error {
	quote, ok := table[symbol]
	if !ok {
		s.logger.Warn().Str("symbol", symbol).Msg("symbol missing from rate table, skipping")
		return nil
	}
	price := quote.Deal.InexactFloat64()

	values, err := s.store.LoadSeries(ctx, symbol)
	if err != nil {
		return fmt.Errorf("load series: %w", err)
	}
	hist := series.Restore(s.capacity, values)

	var urgent *alerting.Urgent
	if prev, ok := hist.Last(); ok {
		if pct, isUrgent := signal.Urgency(prev, price, s.urgentPct); isUrgent {
			urgent = &alerting.Urgent{
				Symbol:    symbol,
				Time:      bucket,
				Prev:      prev,
				Current:   price,
				PctChange: pct,
				UrgentPct: s.urgentPct,
			}
		}
	}

	hist.Append(price)

	// Persist before alerting. If the save fails the cycle must not alert
	// on state that will be recomputed differently next time.
	if err := s.store.SaveSeries(ctx, symbol, hist.Values()); err != nil {
		return fmt.Errorf("save series: %w", err)
	}

	shortAvg, shortOK := hist.MeanLast(s.shortWindow)
	longAvg, longOK := hist.MeanLast(s.longWindow)
	shortDisplay, _ := hist.MeanLastPartial(s.shortWindow)
	longDisplay, _ := hist.MeanLastPartial(s.longWindow)

	vals := hist.Values()
	shortTrend, shortTrendOK := trend.Analyze(vals, s.shortWindow, s.shortHalfDays)
	longTrend, longTrendOK := trend.Analyze(vals, s.longWindow, s.longHalfDays)
	label := ""
	if shortTrendOK && longTrendOK {
		label = trend.CombineLabel(shortTrend, longTrend, s.epsilon)
	}

	sig := signal.Decide(price, signal.AvgOf(shortAvg, shortOK), signal.AvgOf(longAvg, longOK), s.threshold)

	fired := false
	if sig != signal.None {
		prevSide, err := s.store.LoadSide(ctx, symbol)
		if err != nil {
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to load alert state")
		} else if next, fire := signal.Transition(prevSide, sig); fire {
			fired = true
			if err := s.store.SaveSide(ctx, symbol, next); err != nil {
				s.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to persist alert state")
			}
			s.recordAlert(ctx, symbol, sig, price)
		}
	}

	s.logger.Info().
		Str("symbol", symbol).
		Float64("price", price).
		Int("samples", hist.Len()).
		Str("signal", sig.String()).
		Bool("fired", fired).
		Str("trend", label).
		Msg("cycle processed")

	report := alerting.Report{
		Symbol:      symbol,
		Time:        bucket,
		Price:       price,
		ShortAvg:    shortDisplay,
		ShortOK:     shortOK,
		LongAvg:     longDisplay,
		LongOK:      longOK,
		Samples:     hist.Len(),
		ShortWindow: s.shortWindow,
		LongWindow:  s.longWindow,
		TrendLabel:  label,
		ShortTrend:  shortTrend,
		LongTrend:   longTrend,
		Signal:      sig,
		Threshold:   s.threshold,
	}

	s.dispatch(ctx, symbol, report, urgent, vals, fired)
	return nil
}

// dispatch delivers the cycle's messages. Notification failures are logged
// and swallowed: the series and latch state are already safe on disk.
func (s *Service) dispatch(ctx context.Context, symbol string, report alerting.Report, urgent *alerting.Urgent, values []float64, fired bool) {
	if !s.alertsOn || s.notifier == nil {
		return
	}

	if urgent != nil {
		if err := s.notifier.Notify(ctx, alerting.Message{Text: urgent.Render()}); err != nil {
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to dispatch urgent alert")
		}
		if s.urgentSuppresses {
			return
		}
	}

	if !s.alwaysReport && !fired {
		return
	}

	msg := alerting.Message{Text: report.Render()}
	if s.attachChart {
		png, err := render.Chart(render.Options{
			Symbol:      symbol,
			Values:      values,
			End:         report.Time,
			Interval:    s.interval,
			ShortWindow: s.shortWindow,
			LongWindow:  s.longWindow,
			TrendLabel:  report.TrendLabel,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("chart render failed, sending text only")
		} else {
			msg.Image = png
			msg.ImageName = strings.ToLower(storage.NormalizeKey(symbol)) + ".png"
		}
	}

	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to dispatch report")
	}
}

func (s *Service) recordAlert(ctx context.Context, symbol string, sig signal.Signal, price float64) {
	if s.alertLog == nil {
		return
	}
	rec := storage.AlertRecord{
		Symbol:    symbol,
		Signal:    sig.String(),
		Price:     price,
		Threshold: s.threshold,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.alertLog.AppendAlert(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to persist alert record")
	}
}

func (s *Service) notifyFetchFailure(ctx context.Context, bucket time.Time, fetchErr error) {
	if !s.alertsOn || s.notifier == nil {
		return
	}
	note := alerting.FetchFailure{Time: bucket, Err: fetchErr.Error()}
	if err := s.notifier.Notify(ctx, alerting.Message{Text: note.Render()}); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch fetch-failure notice")
	}
}
