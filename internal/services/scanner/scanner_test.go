package scanner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kisquant/internal/domain"
	"kisquant/internal/services/indicators"
)

type stubProvider struct {
	series map[string]domain.PriceSeries
	errs   map[string]error

	active atomic.Int64
	peak   atomic.Int64
	delay  time.Duration
}

func (p *stubProvider) FetchHistory(ctx context.Context, symbol string, lookback int) (domain.PriceSeries, error) {
	current := p.active.Add(1)
	for {
		peak := p.peak.Load()
		if current <= peak || p.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.active.Add(-1)

	if err, ok := p.errs[symbol]; ok {
		return nil, err
	}
	return p.series[symbol], nil
}

type fixedStrategy struct {
	action domain.Action
}

func (s *fixedStrategy) Name() string { return "fixed" }

func (s *fixedStrategy) Evaluate(symbol string, price decimal.Decimal, snap domain.IndicatorSnapshot) domain.TradingSignal {
	return domain.TradingSignal{
		Symbol:     symbol,
		Action:     s.action,
		Reason:     "fixed",
		Price:      price,
		Indicators: snap,
	}
}

func testParams() indicators.Params {
	return indicators.Params{
		BollingerPeriod: 3,
		BollingerStdDev: 2,
		WilliamsPeriod:  3,
		RSIPeriod:       2,
	}
}

func usableSeries(n int) domain.PriceSeries {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	series := make(domain.PriceSeries, n)
	for i := 0; i < n; i++ {
		c := 100 + float64(i%5)
		series[i] = domain.PriceBar{
			Time:   base.AddDate(0, 0, i),
			Open:   decimal.NewFromFloat(c - 0.5),
			High:   decimal.NewFromFloat(c + 2),
			Low:    decimal.NewFromFloat(c - 2),
			Close:  decimal.NewFromFloat(c),
			Volume: 100,
		}
	}
	return series
}

func TestScanBatchIntegrityWithDuplicates(t *testing.T) {
	provider := &stubProvider{
		series: map[string]domain.PriceSeries{
			"005930": usableSeries(10),
			"000660": usableSeries(10),
		},
		errs: map[string]error{
			"035720": errors.Wrap(domain.ErrDataUnavailable, "empty daily series for 035720"),
		},
	}
	s := New(zap.NewNop(), provider, &fixedStrategy{action: domain.ActionHold}, testParams(), 2)

	input := []string{"005930", "035720", "005930", "000660", "035720"}
	report := s.Scan(context.Background(), input)

	// three deduplicated symbols, each accounted for exactly once
	assert.Equal(t, 3, len(report.Signals)+len(report.Failures))
	require.Len(t, report.Signals, 2)
	require.Len(t, report.Failures, 1)

	// ordering follows the deduplicated input
	assert.Equal(t, "005930", report.Signals[0].Symbol)
	assert.Equal(t, "000660", report.Signals[1].Symbol)
	assert.Equal(t, "035720", report.Failures[0].Symbol)
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrDataUnavailable)
}

func TestScanContinuesPastFailures(t *testing.T) {
	provider := &stubProvider{
		series: map[string]domain.PriceSeries{"000660": usableSeries(10)},
		errs: map[string]error{
			"005930": errors.Wrap(domain.ErrDataUnavailable, "no data"),
			"035720": errors.Wrap(domain.ErrAuth, "expired app key"),
		},
	}
	s := New(zap.NewNop(), provider, &fixedStrategy{action: domain.ActionBuy}, testParams(), 1)

	report := s.Scan(context.Background(), []string{"005930", "035720", "000660"})

	require.Len(t, report.Failures, 2)
	require.Len(t, report.Signals, 1)
	assert.Equal(t, "000660", report.Signals[0].Symbol)
}

func TestScanShortSeriesDegradesToHold(t *testing.T) {
	provider := &stubProvider{
		series: map[string]domain.PriceSeries{"005930": usableSeries(2)},
	}
	s := New(zap.NewNop(), provider, &fixedStrategy{action: domain.ActionBuy}, testParams(), 1)

	report := s.Scan(context.Background(), []string{"005930"})

	require.Len(t, report.Signals, 1)
	require.Empty(t, report.Failures)
	sig := report.Signals[0]
	assert.Equal(t, domain.ActionHold, sig.Action)
	assert.Contains(t, sig.Reason, "insufficient data")
}

func TestScanIdempotentForUnchangedSeries(t *testing.T) {
	provider := &stubProvider{
		series: map[string]domain.PriceSeries{
			"005930": usableSeries(12),
			"000660": usableSeries(15),
		},
	}
	s := New(zap.NewNop(), provider, &fixedStrategy{action: domain.ActionHold}, testParams(), 3)

	first := s.Scan(context.Background(), []string{"005930", "000660"})
	second := s.Scan(context.Background(), []string{"005930", "000660"})

	require.Equal(t, first, second)
}

func TestScanSignalCarriesBarTimestamp(t *testing.T) {
	series := usableSeries(10)
	provider := &stubProvider{series: map[string]domain.PriceSeries{"005930": series}}
	s := New(zap.NewNop(), provider, &fixedStrategy{action: domain.ActionSell}, testParams(), 1)

	report := s.Scan(context.Background(), []string{"005930"})

	require.Len(t, report.Signals, 1)
	assert.Equal(t, series[len(series)-1].Time, report.Signals[0].Time)
	assert.True(t, report.Signals[0].Price.Equal(series[len(series)-1].Close))
}

func TestScanBoundsParallelism(t *testing.T) {
	provider := &stubProvider{
		series: map[string]domain.PriceSeries{},
		delay:  20 * time.Millisecond,
	}
	symbols := make([]string, 8)
	for i := range symbols {
		symbol := string(rune('A' + i))
		symbols[i] = symbol
		provider.series[symbol] = usableSeries(10)
	}

	s := New(zap.NewNop(), provider, &fixedStrategy{action: domain.ActionHold}, testParams(), 2)
	report := s.Scan(context.Background(), symbols)

	assert.Equal(t, 8, len(report.Signals)+len(report.Failures))
	assert.LessOrEqual(t, provider.peak.Load(), int64(2), "worker bound exceeded")
}

func TestScanCancelledContextAccountsForEverySymbol(t *testing.T) {
	provider := &stubProvider{
		series: map[string]domain.PriceSeries{"005930": usableSeries(10), "000660": usableSeries(10)},
	}
	s := New(zap.NewNop(), provider, &fixedStrategy{action: domain.ActionHold}, testParams(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := s.Scan(ctx, []string{"005930", "000660"})
	assert.Equal(t, 2, len(report.Signals)+len(report.Failures))
}
