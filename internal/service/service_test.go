package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fx-rate-alerts/internal/alerting"
	"fx-rate-alerts/internal/config"
	"fx-rate-alerts/internal/fetcher"
	"fx-rate-alerts/internal/signal"
	"fx-rate-alerts/internal/storage"
)

type fakeStore struct {
	series   map[string][]float64
	sides    map[string]signal.Side
	alerts   []storage.AlertRecord
	failSave bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{series: map[string][]float64{}, sides: map[string]signal.Side{}}
}

func (f *fakeStore) LoadSeries(ctx context.Context, symbol string) ([]float64, error) {
	return append([]float64(nil), f.series[symbol]...), nil
}

func (f *fakeStore) SaveSeries(ctx context.Context, symbol string, values []float64) error {
	if f.failSave {
		return errors.New("disk full")
	}
	f.series[symbol] = append([]float64(nil), values...)
	return nil
}

func (f *fakeStore) LoadSide(ctx context.Context, symbol string) (signal.Side, error) {
	if side, ok := f.sides[symbol]; ok {
		return side, nil
	}
	return signal.SideNone, nil
}

func (f *fakeStore) SaveSide(ctx context.Context, symbol string, side signal.Side) error {
	f.sides[symbol] = side
	return nil
}

func (f *fakeStore) Close() {}

func (f *fakeStore) AppendAlert(ctx context.Context, rec storage.AlertRecord) error {
	f.alerts = append(f.alerts, rec)
	return nil
}

func (f *fakeStore) RecentAlerts(ctx context.Context, limit int) ([]storage.AlertRecord, error) {
	out := append([]storage.AlertRecord(nil), f.alerts...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type staticFetcher struct {
	table fetcher.RateTable
	err   error
	calls int
}

func (s *staticFetcher) FetchTable(ctx context.Context, date time.Time) (fetcher.RateTable, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.table, nil
}

func (s *staticFetcher) LatestTable(ctx context.Context, now time.Time) (fetcher.RateTable, time.Time, error) {
	s.calls++
	if s.err != nil {
		return nil, time.Time{}, s.err
	}
	return s.table, now, nil
}

type recordingNotifier struct {
	messages []alerting.Message
}

func (r *recordingNotifier) Notify(ctx context.Context, msg alerting.Message) error {
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingNotifier) texts() []string {
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Text
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Symbols: []string{"USD"},
		Signal: config.SignalConfig{
			Threshold:     1.1,
			UrgentPct:     50, // out of the way unless a test lowers it
			ShortWindow:   4,
			LongWindow:    8,
			SamplesPerDay: 48,
			TrendEpsilon:  0.01,
		},
		Scheduler: config.SchedulerConfig{Interval: 30 * time.Minute},
		Alerting:  config.AlertingConfig{Enabled: true, AlwaysReport: true},
	}
}

func usdTable(price float64) fetcher.RateTable {
	return fetcher.RateTable{
		"USD": {Unit: "USD", Name: "US Dollar", Deal: decimal.NewFromFloat(price)},
	}
}

func flatSeries(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

var bucket = time.Date(2026, 2, 13, 9, 0, 0, 0, time.UTC)

func TestCycleFiresBuyOnceAndLatches(t *testing.T) {
	store := newFakeStore()
	store.series["USD"] = flatSeries(8, 100)
	notifier := &recordingNotifier{}
	ft := &staticFetcher{table: usdTable(80)}
	svc := New(testConfig(), nil, ft, store, notifier, zerolog.Nop())

	if err := svc.ProcessCycle(context.Background(), bucket); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if store.sides["USD"] != signal.SideBuy {
		t.Fatalf("expected BUY latched, got %v", store.sides["USD"])
	}
	if len(store.alerts) != 1 {
		t.Fatalf("expected 1 alert record, got %d", len(store.alerts))
	}
	if store.alerts[0].Signal != "BUY_LONG" {
		t.Fatalf("expected BUY_LONG record, got %s", store.alerts[0].Signal)
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0].Text, "BUY_LONG") {
		t.Fatalf("expected one report mentioning BUY_LONG, got %q", notifier.texts())
	}

	// Same side again: report still goes out, but no new alert record.
	if err := svc.ProcessCycle(context.Background(), bucket.Add(30*time.Minute)); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if len(store.alerts) != 1 {
		t.Fatalf("repeated signal must not append alerts, got %d", len(store.alerts))
	}
	if len(notifier.messages) != 2 {
		t.Fatalf("always_report should keep reporting, got %d messages", len(notifier.messages))
	}
	if store.sides["USD"] != signal.SideBuy {
		t.Fatalf("latch must persist, got %v", store.sides["USD"])
	}
}

func TestCycleOppositeSideFiresAgain(t *testing.T) {
	store := newFakeStore()
	store.series["USD"] = flatSeries(8, 100)
	store.sides["USD"] = signal.SideBuy
	notifier := &recordingNotifier{}
	svc := New(testConfig(), nil, &staticFetcher{table: usdTable(115)}, store, notifier, zerolog.Nop())

	if err := svc.ProcessCycle(context.Background(), bucket); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if store.sides["USD"] != signal.SideSell {
		t.Fatalf("expected flip to SELL, got %v", store.sides["USD"])
	}
	if len(store.alerts) != 1 || store.alerts[0].Signal != "SELL_LONG" {
		t.Fatalf("expected one SELL_LONG record, got %+v", store.alerts)
	}
}

func TestCycleNoneNeverResetsLatch(t *testing.T) {
	store := newFakeStore()
	store.series["USD"] = flatSeries(8, 100)
	store.sides["USD"] = signal.SideBuy
	notifier := &recordingNotifier{}
	svc := New(testConfig(), nil, &staticFetcher{table: usdTable(100)}, store, notifier, zerolog.Nop())

	for i := 0; i < 5; i++ {
		if err := svc.ProcessCycle(context.Background(), bucket.Add(time.Duration(i)*30*time.Minute)); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
	if store.sides["USD"] != signal.SideBuy {
		t.Fatalf("quiet cycles must keep the latch, got %v", store.sides["USD"])
	}
	if len(store.alerts) != 0 {
		t.Fatalf("no signal fired, expected no alert records, got %d", len(store.alerts))
	}
}

func TestCycleAppendsAndBoundsSeries(t *testing.T) {
	store := newFakeStore()
	store.series["USD"] = flatSeries(8, 100)
	svc := New(testConfig(), nil, &staticFetcher{table: usdTable(101)}, store, &recordingNotifier{}, zerolog.Nop())

	if err := svc.ProcessCycle(context.Background(), bucket); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	got := store.series["USD"]
	if len(got) != 8 {
		t.Fatalf("series must stay at capacity 8, got %d", len(got))
	}
	if got[len(got)-1] != 101 {
		t.Fatalf("newest sample must be appended, got %v", got)
	}
	if got[0] != 100 {
		t.Fatalf("expected oldest survivor 100, got %v", got[0])
	}
}

func TestCycleUrgentMove(t *testing.T) {
	cfg := testConfig()
	cfg.Signal.UrgentPct = 0.5
	store := newFakeStore()
	store.series["USD"] = flatSeries(8, 100)
	notifier := &recordingNotifier{}
	svc := New(cfg, nil, &staticFetcher{table: usdTable(100.6)}, store, notifier, zerolog.Nop())

	if err := svc.ProcessCycle(context.Background(), bucket); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(notifier.messages) != 2 {
		t.Fatalf("expected urgent + report, got %d: %q", len(notifier.messages), notifier.texts())
	}
	if !strings.Contains(notifier.messages[0].Text, "🚨") {
		t.Fatalf("urgent notice must go first, got %q", notifier.messages[0].Text)
	}
	if !strings.Contains(notifier.messages[1].Text, "[FX Watch] USD") {
		t.Fatalf("report should follow, got %q", notifier.messages[1].Text)
	}
}

func TestCycleUrgentSuppressesReport(t *testing.T) {
	cfg := testConfig()
	cfg.Signal.UrgentPct = 0.5
	cfg.Alerting.UrgentSuppressesReport = true
	store := newFakeStore()
	store.series["USD"] = flatSeries(8, 100)
	notifier := &recordingNotifier{}
	svc := New(cfg, nil, &staticFetcher{table: usdTable(102)}, store, notifier, zerolog.Nop())

	if err := svc.ProcessCycle(context.Background(), bucket); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0].Text, "🚨") {
		t.Fatalf("expected only the urgent notice, got %q", notifier.texts())
	}
}

func TestCycleFetchFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Symbols = []string{"USD", "EUR"}
	store := newFakeStore()
	store.series["USD"] = flatSeries(8, 100)
	notifier := &recordingNotifier{}
	svc := New(cfg, nil, &staticFetcher{err: errors.New("eximbank status 500")}, store, notifier, zerolog.Nop())

	err := svc.ProcessCycle(context.Background(), bucket)
	if err == nil {
		t.Fatal("fetch failure must surface as cycle error")
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0].Text, "⚠️") {
		t.Fatalf("expected a single failure notice, got %q", notifier.texts())
	}
	if len(store.series["USD"]) != 8 {
		t.Fatalf("stored series must stay untouched, got %d samples", len(store.series["USD"]))
	}
}

func TestCycleSkipsSymbolMissingFromTable(t *testing.T) {
	cfg := testConfig()
	cfg.Symbols = []string{"USD", "EUR"}
	store := newFakeStore()
	notifier := &recordingNotifier{}
	svc := New(cfg, nil, &staticFetcher{table: usdTable(100)}, store, notifier, zerolog.Nop())

	if err := svc.ProcessCycle(context.Background(), bucket); err != nil {
		t.Fatalf("missing symbol must not fail the cycle: %v", err)
	}
	if len(store.series["USD"]) != 1 {
		t.Fatalf("USD should be sampled, got %d", len(store.series["USD"]))
	}
	if len(store.series["EUR"]) != 0 {
		t.Fatalf("EUR must be skipped, got %d", len(store.series["EUR"]))
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("only USD should report, got %q", notifier.texts())
	}
}

func TestCycleSaveFailureSkipsAlerting(t *testing.T) {
	store := newFakeStore()
	store.series["USD"] = flatSeries(8, 100)
	store.failSave = true
	notifier := &recordingNotifier{}
	svc := New(testConfig(), nil, &staticFetcher{table: usdTable(80)}, store, notifier, zerolog.Nop())

	if err := svc.ProcessCycle(context.Background(), bucket); err == nil {
		t.Fatal("save failure must surface as cycle error")
	}
	if len(notifier.messages) != 0 {
		t.Fatalf("no messages may be sent after a failed save, got %q", notifier.texts())
	}
	if _, ok := store.sides["USD"]; ok {
		t.Fatal("latch must not move when the series was not saved")
	}
}

func TestCyclePartialHistoryReportsWithoutSignal(t *testing.T) {
	store := newFakeStore()
	notifier := &recordingNotifier{}
	svc := New(testConfig(), nil, &staticFetcher{table: usdTable(80)}, store, notifier, zerolog.Nop())

	if err := svc.ProcessCycle(context.Background(), bucket); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(store.alerts) != 0 {
		t.Fatalf("partial history must not fire signals, got %+v", store.alerts)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected one report, got %d", len(notifier.messages))
	}
	text := notifier.messages[0].Text
	if !strings.Contains(text, "Signal: NONE") {
		t.Fatalf("expected NONE signal, got %q", text)
	}
	if !strings.Contains(text, "Collecting history: 1/4") {
		t.Fatalf("expected collecting banner, got %q", text)
	}
}

func TestCycleReportsOnlyOnFireWhenAlwaysReportOff(t *testing.T) {
	cfg := testConfig()
	cfg.Alerting.AlwaysReport = false
	store := newFakeStore()
	store.series["USD"] = flatSeries(8, 100)
	notifier := &recordingNotifier{}
	svc := New(cfg, nil, &staticFetcher{table: usdTable(100)}, store, notifier, zerolog.Nop())

	if err := svc.ProcessCycle(context.Background(), bucket); err != nil {
		t.Fatalf("quiet cycle: %v", err)
	}
	if len(notifier.messages) != 0 {
		t.Fatalf("quiet cycle must stay silent, got %q", notifier.texts())
	}

	svc = New(cfg, nil, &staticFetcher{table: usdTable(80)}, store, notifier, zerolog.Nop())
	if err := svc.ProcessCycle(context.Background(), bucket.Add(30*time.Minute)); err != nil {
		t.Fatalf("firing cycle: %v", err)
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0].Text, "BUY_LONG") {
		t.Fatalf("fired cycle must report, got %q", notifier.texts())
	}
}
