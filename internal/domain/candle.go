package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar is a single OHLCV candle. Bars are immutable once fetched.
type PriceBar struct {
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// PriceSeries is a chronological sequence of bars for one instrument.
// Timestamps are strictly increasing.
type PriceSeries []PriceBar

// Closes returns the close price of every bar in order.
func (s PriceSeries) Closes() []decimal.Decimal {
	closes := make([]decimal.Decimal, len(s))
	for i, bar := range s {
		closes[i] = bar.Close
	}
	return closes
}

// Last returns the most recent bar. The second return value is false for an
// empty series.
func (s PriceSeries) Last() (PriceBar, bool) {
	if len(s) == 0 {
		return PriceBar{}, false
	}
	return s[len(s)-1], true
}
