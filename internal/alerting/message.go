package alerting

import (
	"fmt"
	"strings"
	"time"

	"fx-rate-alerts/internal/signal"
	"fx-rate-alerts/internal/trend"
)

// Message 是投递单元:一段文本与可选的走势图附件。
type Message struct {
	Text      string
	Image     []byte
	ImageName string
}

// Report summarises one polling cycle for one symbol. The service fills it,
// Render turns it into channel text.
type Report struct {
	Symbol string
	Time   time.Time
	Price  float64

	ShortAvg float64
	ShortOK  bool
	LongAvg  float64
	LongOK   bool

	Samples     int
	ShortWindow int
	LongWindow  int

	TrendLabel string
	ShortTrend trend.Result
	LongTrend  trend.Result

	Signal    signal.Signal
	Threshold float64
}

// Render formats the cycle report. Partial averages show how many samples
// they actually cover, and a collecting banner flags series that have not
// filled the short window yet.
func (r Report) Render() string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("[FX Watch] %s\n", r.Symbol))
	b.WriteString(fmt.Sprintf("Time: %s\n", r.Time.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Rate: %.2f KRW\n", r.Price))

	b.WriteString(fmt.Sprintf("Short avg: %.4f (%d/%d)\n", r.ShortAvg, minInt(r.Samples, r.ShortWindow), r.ShortWindow))
	b.WriteString(fmt.Sprintf("Long avg: %.4f (%d/%d)\n", r.LongAvg, minInt(r.Samples, r.LongWindow), r.LongWindow))

	if r.TrendLabel != "" {
		b.WriteString(fmt.Sprintf("Trend: %s\n", r.TrendLabel))
		b.WriteString(fmt.Sprintf("  short %+.3f%%/day (%.1f°)\n", r.ShortTrend.PctPerDay, r.ShortTrend.AngleDeg))
		b.WriteString(fmt.Sprintf("  long  %+.3f%%/day (%.1f°)\n", r.LongTrend.PctPerDay, r.LongTrend.AngleDeg))
	} else {
		b.WriteString("Trend: n/a\n")
	}

	switch {
	case r.Signal == signal.None:
		b.WriteString("Signal: NONE\n")
	case r.Signal.Side() == signal.SideBuy:
		b.WriteString(fmt.Sprintf("📉 Signal: %s (rate below the %s average band, threshold %.3f)\n",
			r.Signal, windowWord(r.Signal), r.Threshold))
	default:
		b.WriteString(fmt.Sprintf("📈 Signal: %s (rate above the %s average band, threshold %.3f)\n",
			r.Signal, windowWord(r.Signal), r.Threshold))
	}

	if r.Samples < r.ShortWindow {
		b.WriteString(fmt.Sprintf("⏳ Collecting history: %d/%d samples, averages are partial\n", r.Samples, r.ShortWindow))
	}
	return b.String()
}

// Urgent flags a single-sample move beyond the urgency limit.
type Urgent struct {
	Symbol    string
	Time      time.Time
	Prev      float64
	Current   float64
	PctChange float64
	UrgentPct float64
}

// Render formats the urgency alert.
func (u Urgent) Render() string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("🚨 [FX Watch] %s moved %+.2f%% in one sample\n", u.Symbol, u.PctChange))
	b.WriteString(fmt.Sprintf("Time: %s\n", u.Time.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Prev: %.2f KRW\n", u.Prev))
	b.WriteString(fmt.Sprintf("Now: %.2f KRW\n", u.Current))
	b.WriteString(fmt.Sprintf("Limit: %.2f%% per sample\n", u.UrgentPct))
	return b.String()
}

// FetchFailure reports a cycle that could not obtain the rate table at all.
type FetchFailure struct {
	Time time.Time
	Err  string
}

// Render formats the fetch-failure notice.
func (f FetchFailure) Render() string {
	b := strings.Builder{}
	b.WriteString("⚠️ [FX Watch] rate fetch failed\n")
	b.WriteString(fmt.Sprintf("Time: %s\n", f.Time.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Error: %s\n", f.Err))
	b.WriteString("Stored series are untouched; the next cycle retries.\n")
	return b.String()
}

func windowWord(sig signal.Signal) string {
	if sig.IsLong() {
		return "long"
	}
	return "short"
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
