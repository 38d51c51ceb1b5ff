// Package fetcher retrieves the official daily FX table published by the
// Korea Eximbank open API.
//
// fetcher 包负责拉取韩国进出口银行公布的每日汇率牌价表。
package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoData reports that the API published no table for the requested date.
// The bank skips weekends and Korean public holidays, so callers should
// treat this as "step back a day", not as a failure.
var ErrNoData = errors.New("fetcher: no rate table for date")

// Quote is one row of the daily table.
//
// Quote 表示牌价表中的一行。
type Quote struct {
	// Unit is the currency unit label as published, e.g. "USD" or "JPY(100)".
	// Quotes for small-denomination currencies are per 100 units.
	Unit string
	// Name is the human-readable currency name.
	Name string
	// Deal is the trading standard rate (deal_bas_r), the price the
	// signal engine works on.
	Deal decimal.Decimal
	// TTB and TTS are the telegraphic transfer buy/sell rates. Display only.
	TTB decimal.Decimal
	TTS decimal.Decimal
}

// RateTable maps currency unit labels to their quotes for one reference date.
type RateTable map[string]Quote

// RateFetcher retrieves daily rate tables.
//
// RateFetcher 是日汇率数据源的抽象,便于在测试与模拟中替换。
type RateFetcher interface {
	// FetchTable returns the table published for the given calendar date.
	// Returns ErrNoData when the bank published nothing for that date.
	FetchTable(ctx context.Context, date time.Time) (RateTable, error)

	// LatestTable walks back from now, one calendar day at a time, until
	// it finds a published table. It returns the table together with the
	// date it was published for.
	LatestTable(ctx context.Context, now time.Time) (RateTable, time.Time, error)
}
