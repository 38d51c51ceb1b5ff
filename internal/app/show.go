package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"fx-rate-alerts/internal/series"
	"fx-rate-alerts/internal/storage"
	"fx-rate-alerts/internal/trend"
)

// Show prints the per-symbol watcher status, or the recent alert history
// with --alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.Alerts {
		return a.showAlerts(ctx, store, opts.Limit)
	}
	return a.showStatus(ctx, store)
}

func (a *App) showStatus(ctx context.Context, store storage.Store) error {
	cfg := a.Config.Signal

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tSamples\tLast\tShortAvg\tLongAvg\tTrend\tSide")

	for _, symbol := range a.Config.Symbols {
		values, err := store.LoadSeries(ctx, symbol)
		if err != nil {
			return err
		}
		side, err := store.LoadSide(ctx, symbol)
		if err != nil {
			return err
		}

		hist := series.Restore(cfg.Capacity(), values)
		if hist.Len() == 0 {
			fmt.Fprintf(writer, "%s\t0/%d\t-\t-\t-\t-\t%s\n", symbol, cfg.Capacity(), side)
			continue
		}

		last, _ := hist.Last()
		shortAvg, _ := hist.MeanLastPartial(cfg.ShortWindow)
		longAvg, _ := hist.MeanLastPartial(cfg.LongWindow)

		label := "-"
		shortTrend, shortOK := trend.Analyze(hist.Values(), cfg.ShortWindow, a.Config.Signal.ShortHalfDays())
		longTrend, longOK := trend.Analyze(hist.Values(), cfg.LongWindow, a.Config.Signal.LongHalfDays())
		if shortOK && longOK {
			label = trend.CombineLabel(shortTrend, longTrend, cfg.TrendEpsilon)
		}

		fmt.Fprintf(
			writer,
			"%s\t%d/%d\t%.2f\t%.4f\t%.4f\t%s\t%s\n",
			symbol,
			hist.Len(),
			cfg.Capacity(),
			last,
			shortAvg,
			longAvg,
			label,
			side,
		)
	}

	return writer.Flush()
}

func (a *App) showAlerts(ctx context.Context, store storage.Store, limit int) error {
	log, ok := store.(storage.AlertLog)
	if !ok {
		return errors.New("the configured backend keeps no alert history")
	}

	records, err := log.RecentAlerts(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts recorded")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSymbol\tSignal\tPrice\tThreshold")
	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%.2f\t%.3f\n",
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.Symbol,
			rec.Signal,
			rec.Price,
			rec.Threshold,
		)
	}

	return writer.Flush()
}
