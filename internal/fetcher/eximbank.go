package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// DefaultBaseURL is the Korea Eximbank open API host.
	DefaultBaseURL = "https://oapi.koreaexim.go.kr"

	// exchangePath serves the daily exchange-rate table.
	exchangePath = "/site/program/financial/exchangeJSON"

	// dataCode selects the exchange-rate dataset (AP01). The same endpoint
	// also serves loan rates (AP02/AP03), which we never ask for.
	dataCode = "AP01"

	defaultTimeout      = 10 * time.Second
	defaultLookbackDays = 7
	defaultUserAgent    = "fxwatcher/1.0"
)

// Options configure the Eximbank client.
type Options struct {
	// BaseURL overrides the API host. Empty means DefaultBaseURL.
	BaseURL string
	// AuthKey is the per-account API key. Required.
	AuthKey string
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration
	// Retries is the number of extra attempts on transport errors and 5xx.
	Retries int
	// RetryBackoff is the base wait between attempts; resty grows it per
	// attempt, so the effective schedule is increasing.
	RetryBackoff time.Duration
	// LookbackDays bounds how far LatestTable walks back over holidays.
	LookbackDays int
	// UserAgent overrides the request User-Agent header.
	UserAgent string
}

// Eximbank fetches daily tables from the Korea Eximbank open API.
//
// Eximbank 为进出口银行开放接口的 HTTP 客户端,带重试与回看。
type Eximbank struct {
	opts   Options
	client *resty.Client
	logger zerolog.Logger
}

var _ RateFetcher = (*Eximbank)(nil)

// NewEximbank builds a client from opts. Zero option fields fall back to
// package defaults; AuthKey is checked at call time so a watcher without a
// key can still boot for offline commands.
func NewEximbank(opts Options, logger zerolog.Logger) *Eximbank {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = defaultLookbackDays
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(backoff).
		SetRetryMaxWaitTime(backoff * time.Duration(opts.Retries+1)).
		SetHeader("User-Agent", userAgent).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Eximbank{opts: opts, client: client, logger: logger}
}

// rateRow mirrors one element of the API response array.
type rateRow struct {
	Result   int    `json:"result"`
	CurUnit  string `json:"cur_unit"`
	CurName  string `json:"cur_nm"`
	DealBasR string `json:"deal_bas_r"`
	TTB      string `json:"ttb"`
	TTS      string `json:"tts"`
}

// FetchTable implements RateFetcher.
func (e *Eximbank) FetchTable(ctx context.Context, date time.Time) (RateTable, error) {
	if e.opts.AuthKey == "" {
		return nil, errors.New("eximbank: auth key not configured")
	}

	resp, err := e.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"authkey":    e.opts.AuthKey,
			"searchdate": date.Format("20060102"),
			"data":       dataCode,
		}).
		Get(exchangePath)
	if err != nil {
		return nil, fmt.Errorf("eximbank request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("eximbank status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	// The API answers "null" (not "[]") on some holiday dates, so decode
	// into a nillable slice instead of relying on SetResult.
	var rows []rateRow
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("decode eximbank response: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	table := make(RateTable, len(rows))
	for _, row := range rows {
		if row.Result != resultOK {
			return nil, resultError(row.Result)
		}
		if row.CurUnit == "" {
			continue
		}
		deal, err := ParseAmount(row.DealBasR)
		if err != nil {
			e.logger.Warn().
				Str("cur_unit", row.CurUnit).
				Str("deal_bas_r", row.DealBasR).
				Msg("skipping row with unparseable deal rate")
			continue
		}
		quote := Quote{Unit: row.CurUnit, Name: row.CurName, Deal: deal}
		if ttb, err := ParseAmount(row.TTB); err == nil {
			quote.TTB = ttb
		}
		if tts, err := ParseAmount(row.TTS); err == nil {
			quote.TTS = tts
		}
		table[row.CurUnit] = quote
	}
	if len(table) == 0 {
		return nil, ErrNoData
	}
	return table, nil
}

// LatestTable implements RateFetcher. Holiday gaps surface as ErrNoData per
// day and drive the walk-back; any other error aborts immediately, because a
// broken key or dead network will not get better yesterday.
func (e *Eximbank) LatestTable(ctx context.Context, now time.Time) (RateTable, time.Time, error) {
	var lastErr error
	for i := 0; i < e.opts.LookbackDays; i++ {
		date := now.AddDate(0, 0, -i)
		table, err := e.FetchTable(ctx, date)
		if err == nil {
			return table, date, nil
		}
		if !errors.Is(err, ErrNoData) {
			return nil, time.Time{}, err
		}
		lastErr = err
		e.logger.Debug().
			Str("date", date.Format("2006-01-02")).
			Msg("no rate table published, stepping back a day")
	}
	return nil, time.Time{}, fmt.Errorf("no rate table within %d days: %w", e.opts.LookbackDays, lastErr)
}

// resultOK is the per-row success code. The other codes the API documents:
// 2 bad data code, 3 bad auth key, 4 daily quota exhausted.
const resultOK = 1

func resultError(code int) error {
	switch code {
	case 2:
		return fmt.Errorf("eximbank: invalid data code (result %d)", code)
	case 3:
		return fmt.Errorf("eximbank: invalid auth key (result %d)", code)
	case 4:
		return fmt.Errorf("eximbank: daily request quota exhausted (result %d)", code)
	default:
		return fmt.Errorf("eximbank: unexpected result code %d", code)
	}
}

// ParseAmount parses an API money string such as "1,193.21". The table uses
// comma thousands separators throughout.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Decimal{}, errors.New("empty amount")
	}
	return decimal.NewFromString(s)
}
