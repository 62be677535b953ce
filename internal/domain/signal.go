package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Action is the trading action produced by a strategy.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// IndicatorSnapshot holds indicator values computed at a single bar index.
// It is derived from the series that produced it and never persisted on its own.
// RSI is undefined over a flat-close window; RSIValid reports whether the
// value is usable, and strategies must not read RSI when it is false.
type IndicatorSnapshot struct {
	BollingerUpper decimal.Decimal
	BollingerMid   decimal.Decimal
	BollingerLower decimal.Decimal
	WilliamsR      decimal.Decimal
	RSI            decimal.Decimal
	RSIValid       bool
}

// TradingSignal is the outcome of evaluating one instrument during a scan.
// Created fresh per scan, never mutated.
type TradingSignal struct {
	Symbol     string
	Action     Action
	Reason     string
	Price      decimal.Decimal
	Indicators IndicatorSnapshot
	Time       time.Time
}

func (s *TradingSignal) String() string {
	return fmt.Sprintf("%s %s at %s: %s", s.Symbol, s.Action, s.Price.String(), s.Reason)
}

// ScanFailure records an instrument that could not be evaluated.
type ScanFailure struct {
	Symbol string
	Err    error
}

// ScanReport aggregates one scan pass. Signals and Failures are ordered by the
// deduplicated input symbol list; every input symbol lands in exactly one of
// the two slices.
type ScanReport struct {
	Signals  []TradingSignal
	Failures []ScanFailure
}
