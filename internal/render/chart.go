// Package render draws rate history charts for alert attachments and the
// export command.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
)

// Options describe one chart. Values are ordered oldest first; timestamps
// are reconstructed backwards from End at Interval steps, which is exact
// enough for a sampling series that never stored its own clock.
type Options struct {
	Symbol      string
	Values      []float64
	End         time.Time
	Interval    time.Duration
	ShortWindow int
	LongWindow  int
	TrendLabel  string
}

// Chart renders the rate line with short and long moving-average overlays
// and returns the encoded PNG.
func Chart(opts Options) ([]byte, error) {
	if len(opts.Values) < 2 {
		return nil, errors.New("render: need at least two samples")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	end := opts.End
	if end.IsZero() {
		end = time.Now().UTC()
	}

	xs := make([]time.Time, len(opts.Values))
	for i := range opts.Values {
		xs[i] = end.Add(-time.Duration(len(opts.Values)-1-i) * interval)
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}

	price := chart.TimeSeries{
		Name:    opts.Symbol,
		XValues: xs,
		YValues: opts.Values,
	}

	series := []chart.Series{price}
	if opts.ShortWindow > 1 {
		series = append(series, &chart.SMASeries{
			Name:        fmt.Sprintf("SMA %d", opts.ShortWindow),
			Period:      opts.ShortWindow,
			InnerSeries: price,
		})
	}
	if opts.LongWindow > 1 && opts.LongWindow != opts.ShortWindow {
		series = append(series, &chart.SMASeries{
			Name:        fmt.Sprintf("SMA %d", opts.LongWindow),
			Period:      opts.LongWindow,
			InnerSeries: price,
		})
	}

	title := fmt.Sprintf("%s (KRW)", opts.Symbol)
	if opts.TrendLabel != "" {
		title = fmt.Sprintf("%s (KRW), %s", opts.Symbol, opts.TrendLabel)
	}

	graph := chart.Chart{
		Title:  title,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "KRW",
			ValueFormatter: rateFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// Downsample evenly thins values to at most max points while keeping the
// first and last sample.
func Downsample(values []float64, max int) []float64 {
	if max <= 0 || len(values) <= max {
		return values
	}

	result := make([]float64, 0, max)
	step := float64(len(values)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(values) {
			idx = len(values) - 1
		}
		result = append(result, values[idx])
	}
	return result
}
