package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"fx-rate-alerts/internal/signal"
)

const (
	stateFileName  = "state.json"
	alertsFileName = "alerts.csv"
)

// FileStore keeps everything under one directory: data_<KEY>.csv with one
// price per line, state.json with the latch sides, alerts.csv as audit log.
// The flat layout stays readable with nothing but cat and a spreadsheet.
type FileStore struct {
	dir string

	mu sync.Mutex
}

var (
	_ Store    = (*FileStore)(nil)
	_ AlertLog = (*FileStore)(nil)
)

// NewFileStore creates dir if needed and returns the backend.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("storage: file backend needs a data dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Close implements Store. Nothing is held open between calls.
func (f *FileStore) Close() {}

func (f *FileStore) seriesPath(symbol string) string {
	return filepath.Join(f.dir, "data_"+NormalizeKey(symbol)+".csv")
}

// LoadSeries reads the series file, oldest first. A missing file is an
// empty series. Unparseable lines are skipped, so one corrupt write does
// not take the whole history down.
func (f *FileStore) LoadSeries(ctx context.Context, symbol string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.seriesPath(symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read series %s: %w", symbol, err)
	}

	lines := strings.Split(string(data), "\n")
	values := make([]float64, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		values = append(values, v)
	}
	return values, nil
}

// SaveSeries rewrites the series file atomically via a temp file rename.
func (f *FileStore) SaveSeries(ctx context.Context, symbol string, values []float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var b strings.Builder
	for _, v := range values {
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		b.WriteByte('\n')
	}
	return f.writeAtomic(f.seriesPath(symbol), []byte(b.String()))
}

// LoadSide returns the latched side for symbol, SideNone when unknown.
func (f *FileStore) LoadSide(ctx context.Context, symbol string) (signal.Side, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sides, err := f.readState()
	if err != nil {
		return signal.SideNone, err
	}
	return signal.ParseSide(sides[symbol]), nil
}

// SaveSide persists the latched side for symbol.
func (f *FileStore) SaveSide(ctx context.Context, symbol string, side signal.Side) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sides, err := f.readState()
	if err != nil {
		return err
	}
	sides[symbol] = side.String()

	data, err := json.MarshalIndent(sides, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return f.writeAtomic(filepath.Join(f.dir, stateFileName), data)
}

// readState loads state.json as symbol -> side. Corrupt or missing state
// degrades to empty, matching the latch semantics: worst case one extra
// alert, never a crash loop.
func (f *FileStore) readState() (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, stateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	sides := map[string]string{}
	if err := json.Unmarshal(data, &sides); err != nil {
		return map[string]string{}, nil
	}
	return sides, nil
}

// AppendAlert implements AlertLog by appending one csv row.
func (f *FileStore) AppendAlert(ctx context.Context, rec AlertRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(filepath.Join(f.dir, alertsFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open alerts log: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.Symbol,
		rec.Signal,
		strconv.FormatFloat(rec.Price, 'f', -1, 64),
		strconv.FormatFloat(rec.Threshold, 'f', -1, 64),
	}); err != nil {
		return fmt.Errorf("append alert: %w", err)
	}
	w.Flush()
	return w.Error()
}

// RecentAlerts implements AlertLog, newest first.
func (f *FileStore) RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(filepath.Join(f.dir, alertsFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open alerts log: %w", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read alerts log: %w", err)
	}

	records := make([]AlertRecord, 0, limit)
	for i := len(rows) - 1; i >= 0 && len(records) < limit; i-- {
		row := rows[i]
		if len(row) < 5 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			continue
		}
		price, _ := strconv.ParseFloat(row[3], 64)
		threshold, _ := strconv.ParseFloat(row[4], 64)
		records = append(records, AlertRecord{
			CreatedAt: ts,
			Symbol:    row[1],
			Signal:    row[2],
			Price:     price,
			Threshold: threshold,
		})
	}
	return records, nil
}

func (f *FileStore) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
