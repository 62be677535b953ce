package indicators

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kisquant/internal/domain"
)

func testParams() Params {
	return Params{
		BollingerPeriod: 3,
		BollingerStdDev: 1,
		WilliamsPeriod:  3,
		RSIPeriod:       2,
	}
}

// seriesFromCloses builds bars with high = close+1 and low = close-1.
func seriesFromCloses(closes ...float64) domain.PriceSeries {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(domain.PriceSeries, len(closes))
	for i, c := range closes {
		series[i] = domain.PriceBar{
			Time:   base.AddDate(0, 0, i),
			Open:   decimal.NewFromFloat(c),
			High:   decimal.NewFromFloat(c + 1),
			Low:    decimal.NewFromFloat(c - 1),
			Close:  decimal.NewFromFloat(c),
			Volume: 1000,
		}
	}
	return series
}

func TestComputeBollingerAndWilliams(t *testing.T) {
	series := seriesFromCloses(1, 2, 3, 4)

	snapshots, err := Compute(series, testParams())
	require.NoError(t, err)
	// warmup omits the first two indices, nothing is zero-filled
	require.Len(t, snapshots, 2)

	// window [1 2 3]: mean 2, population sigma sqrt(2/3)
	sigma := 0.816496580927726
	first := snapshots[0]
	assert.InDelta(t, 2.0, first.BollingerMid.InexactFloat64(), 1e-9)
	assert.InDelta(t, 2.0+sigma, first.BollingerUpper.InexactFloat64(), 1e-9)
	assert.InDelta(t, 2.0-sigma, first.BollingerLower.InexactFloat64(), 1e-9)
	// highs [2 3 4], lows [0 1 2], close 3: (4-3)/(4-0)*-100
	assert.InDelta(t, -25.0, first.WilliamsR.InexactFloat64(), 1e-9)

	second := snapshots[1]
	assert.InDelta(t, 3.0, second.BollingerMid.InexactFloat64(), 1e-9)
	assert.InDelta(t, -25.0, second.WilliamsR.InexactFloat64(), 1e-9)
}

func TestComputeInsufficientData(t *testing.T) {
	series := seriesFromCloses(1, 2)

	_, err := Compute(series, testParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestComputeFlatMarket(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(domain.PriceSeries, 5)
	for i := range series {
		series[i] = domain.PriceBar{
			Time:  base.AddDate(0, 0, i),
			Open:  decimal.NewFromInt(100),
			High:  decimal.NewFromInt(100),
			Low:   decimal.NewFromInt(100),
			Close: decimal.NewFromInt(100),
		}
	}

	_, err := Compute(series, testParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
	assert.Contains(t, err.Error(), "flat market")
}

func TestComputeDeterministic(t *testing.T) {
	series := seriesFromCloses(10, 11, 9, 12, 8, 13, 10, 11)

	a, err := Compute(series, testParams())
	require.NoError(t, err)
	b, err := Compute(series, testParams())
	require.NoError(t, err)

	require.Equal(t, a, b)
}

func TestComputeRSIBounds(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i) // strictly rising, all gains
	}
	series := seriesFromCloses(closes...)

	snapshots, err := Compute(series, DefaultParams())
	require.NoError(t, err)
	require.NotEmpty(t, snapshots)

	last := snapshots[len(snapshots)-1]
	assert.True(t, last.RSIValid)
	assert.True(t, last.RSI.GreaterThanOrEqual(decimal.NewFromInt(99)),
		"all-gains series should saturate RSI, got %s", last.RSI.String())
	assert.True(t, last.RSI.LessThanOrEqual(decimal.NewFromInt(100)))
}

func TestComputeFlatClosesMarkRSIInvalid(t *testing.T) {
	// closes never move while highs and lows still carry a range: %R stays
	// defined but RSI has zero gains and zero losses and is undefined
	series := seriesFromCloses(100, 100, 100, 100, 100)

	snapshots, err := Compute(series, testParams())
	require.NoError(t, err)
	require.NotEmpty(t, snapshots)

	for _, snap := range snapshots {
		assert.False(t, snap.RSIValid)
		assert.True(t, snap.RSI.IsZero())
		// highs 101, lows 99, close 100
		assert.InDelta(t, -50.0, snap.WilliamsR.InexactFloat64(), 1e-9)
	}
}

func TestParamsValidation(t *testing.T) {
	series := seriesFromCloses(1, 2, 3, 4)

	bad := testParams()
	bad.BollingerPeriod = 0
	_, err := Compute(series, bad)
	assert.ErrorIs(t, err, domain.ErrValidation)

	bad = testParams()
	bad.BollingerStdDev = -1
	_, err = Compute(series, bad)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMinBars(t *testing.T) {
	assert.Equal(t, 20, DefaultParams().MinBars())

	p := Params{BollingerPeriod: 5, BollingerStdDev: 2, WilliamsPeriod: 9, RSIPeriod: 3}
	assert.Equal(t, 9, p.MinBars())
}
