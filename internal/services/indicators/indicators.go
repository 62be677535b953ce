// Package indicators computes the technical indicators the signal strategies
// consume: Bollinger Bands, Williams %R and RSI. Band math is computed
// in-package because the strategy contract pins the exact numeric semantics
// (population standard deviation, configurable band multiplier, explicit
// insufficient-data failures); RSI goes through the cinar/indicator library.
package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"kisquant/internal/domain"
)

const (
	DefaultBollingerPeriod = 20
	DefaultBollingerStdDev = 2.0
	DefaultWilliamsPeriod  = 14
	DefaultRSIPeriod       = 14
)

// Params are the lookback parameters shared by one scan.
type Params struct {
	BollingerPeriod int
	BollingerStdDev float64
	WilliamsPeriod  int
	RSIPeriod       int
}

// DefaultParams returns the parameter set the original strategy was tuned
// with: Bollinger(20, 2) and Williams %R(14).
func DefaultParams() Params {
	return Params{
		BollingerPeriod: DefaultBollingerPeriod,
		BollingerStdDev: DefaultBollingerStdDev,
		WilliamsPeriod:  DefaultWilliamsPeriod,
		RSIPeriod:       DefaultRSIPeriod,
	}
}

func (p Params) validate() error {
	if p.BollingerPeriod <= 0 {
		return errors.Wrapf(domain.ErrValidation, "bollinger period must be positive, got %d", p.BollingerPeriod)
	}
	if p.BollingerStdDev <= 0 {
		return errors.Wrapf(domain.ErrValidation, "bollinger std dev multiplier must be positive, got %v", p.BollingerStdDev)
	}
	if p.WilliamsPeriod <= 0 {
		return errors.Wrapf(domain.ErrValidation, "williams period must be positive, got %d", p.WilliamsPeriod)
	}
	if p.RSIPeriod <= 0 {
		return errors.Wrapf(domain.ErrValidation, "rsi period must be positive, got %d", p.RSIPeriod)
	}
	return nil
}

// MinBars is the number of bars required before the first snapshot can be
// produced. RSI needs one extra bar for its first price change.
func (p Params) MinBars() int {
	min := p.BollingerPeriod
	if p.WilliamsPeriod > min {
		min = p.WilliamsPeriod
	}
	if p.RSIPeriod+1 > min {
		min = p.RSIPeriod + 1
	}
	return min
}

// Compute derives one snapshot per bar index >= MinBars()-1. Earlier indices
// lack lookback and are omitted, not zero-filled. The result is deterministic
// for a given series and parameter set.
func Compute(series domain.PriceSeries, params Params) ([]domain.IndicatorSnapshot, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if len(series) < params.MinBars() {
		return nil, errors.Wrapf(domain.ErrInsufficientData,
			"need %d bars, got %d", params.MinBars(), len(series))
	}

	closes := make([]float64, len(series))
	highs := make([]float64, len(series))
	lows := make([]float64, len(series))
	for i, bar := range series {
		closes[i] = decimalToFloat(bar.Close)
		highs[i] = decimalToFloat(bar.High)
		lows[i] = decimalToFloat(bar.Low)
	}

	rsiVals := computeRSI(closes, params.RSIPeriod)
	rsiOffset := len(closes) - len(rsiVals)

	warmup := params.MinBars() - 1
	snapshots := make([]domain.IndicatorSnapshot, 0, len(series)-warmup)

	for i := warmup; i < len(series); i++ {
		mid, upper, lower := bollinger(closes, i, params.BollingerPeriod, params.BollingerStdDev)

		wr, err := williamsR(highs, lows, closes, i, params.WilliamsPeriod)
		if err != nil {
			return nil, err
		}

		snap := domain.IndicatorSnapshot{
			BollingerUpper: decimal.NewFromFloat(upper),
			BollingerMid:   decimal.NewFromFloat(mid),
			BollingerLower: decimal.NewFromFloat(lower),
			WilliamsR:      decimal.NewFromFloat(wr),
		}
		// a flat change window leaves RSI undefined (NaN); mark the snapshot
		// instead of letting NaN through the decimal conversion, so strategies
		// can tell "no RSI" apart from RSI zero
		if idx := i - rsiOffset; idx >= 0 && idx < len(rsiVals) &&
			!math.IsNaN(rsiVals[idx]) && !math.IsInf(rsiVals[idx], 0) {
			snap.RSI = decimal.NewFromFloat(rsiVals[idx])
			snap.RSIValid = true
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, nil
}

// Latest returns the snapshot for the most recent bar.
func Latest(series domain.PriceSeries, params Params) (domain.IndicatorSnapshot, error) {
	snapshots, err := Compute(series, params)
	if err != nil {
		return domain.IndicatorSnapshot{}, err
	}
	return snapshots[len(snapshots)-1], nil
}

// bollinger computes the middle, upper and lower band at index i over the
// trailing period. Sigma is the population standard deviation of the window.
func bollinger(closes []float64, i, period int, stdDev float64) (mid, upper, lower float64) {
	window := closes[i-period+1 : i+1]

	var sum float64
	for _, c := range window {
		sum += c
	}
	mean := sum / float64(period)

	var variance float64
	for _, c := range window {
		variance += (c - mean) * (c - mean)
	}
	variance /= float64(period)
	sigma := math.Sqrt(variance)

	return mean, mean + stdDev*sigma, mean - stdDev*sigma
}

// williamsR computes Williams %R at index i over the trailing period window of
// highs and lows. A window where the high equals the low has no range to
// measure against and fails explicitly.
func williamsR(highs, lows, closes []float64, i, period int) (float64, error) {
	hh := highs[i-period+1]
	ll := lows[i-period+1]
	for j := i - period + 2; j <= i; j++ {
		if highs[j] > hh {
			hh = highs[j]
		}
		if lows[j] < ll {
			ll = lows[j]
		}
	}

	if hh == ll {
		return 0, errors.Wrapf(domain.ErrInsufficientData,
			"flat market: %d-bar window at index %d has zero range", period, i)
	}

	return (hh - closes[i]) / (hh - ll) * -100, nil
}

func computeRSI(closes []float64, period int) []float64 {
	rsi := momentum.NewRsiWithPeriod[float64](period)
	return helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes)))
}

func decimalToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
