package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"fx-rate-alerts/internal/render"
)

// Export writes one symbol's history as CSV rows and/or a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	values, err := store.LoadSeries(ctx, opts.Symbol)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		a.Logger.Info().Str("symbol", opts.Symbol).Msg("no samples found for export")
		return nil
	}

	downsampled := render.Downsample(values, opts.MaxPoints)
	a.Logger.Info().
		Str("symbol", opts.Symbol).
		Int("total", len(values)).
		Int("exported", len(downsampled)).
		Msg("exporting samples")

	// Timestamps are reconstructed backwards from now. After downsampling
	// the stride between surviving points grows accordingly.
	end := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	interval := a.Config.Scheduler.Interval
	if len(downsampled) > 1 && len(downsampled) < len(values) {
		ratio := float64(len(values)-1) / float64(len(downsampled)-1)
		interval = time.Duration(float64(interval) * ratio)
	}

	if opts.CSVPath != "" {
		if err := writeSeriesCSV(opts.CSVPath, opts.Symbol, downsampled, end, interval); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		png, err := render.Chart(render.Options{
			Symbol:      opts.Symbol,
			Values:      downsampled,
			End:         end,
			Interval:    interval,
			ShortWindow: a.Config.Signal.ShortWindow,
			LongWindow:  a.Config.Signal.LongWindow,
		})
		if err != nil {
			return err
		}
		if err := ensureDir(opts.PNGPath); err != nil {
			return err
		}
		if err := os.WriteFile(opts.PNGPath, png, 0o644); err != nil {
			return err
		}
	}

	return nil
}

func writeSeriesCSV(path, symbol string, values []float64, end time.Time, interval time.Duration) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"time", "symbol", "price"}); err != nil {
		return err
	}

	for i, v := range values {
		ts := end.Add(-time.Duration(len(values)-1-i) * interval)
		record := []string{
			ts.Format(time.RFC3339),
			symbol,
			strconv.FormatFloat(v, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
