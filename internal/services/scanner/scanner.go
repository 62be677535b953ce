// Package scanner drives one evaluation pass over a set of instruments:
// fetch history, compute indicators, classify. One instrument's failure never
// aborts the batch; every deduplicated input symbol lands in exactly one of
// the report's two slices.
package scanner

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kisquant/internal/domain"
	"kisquant/internal/services/indicators"
	"kisquant/internal/services/strategy"
)

// HistoryProvider fetches the daily price series for one instrument.
type HistoryProvider interface {
	FetchHistory(ctx context.Context, symbol string, lookback int) (domain.PriceSeries, error)
}

// Scanner evaluates instruments with a shared strategy and parameter set.
type Scanner struct {
	provider HistoryProvider
	strategy strategy.Strategy
	params   indicators.Params
	workers  int
	logger   *zap.Logger
}

// New builds a scanner. The worker bound exists because the broker's rate
// limiter is the true constraint; parallelism past it only adds contention.
func New(logger *zap.Logger, provider HistoryProvider, strat strategy.Strategy, params indicators.Params, workers int) *Scanner {
	if workers <= 0 {
		workers = 4
	}
	return &Scanner{
		provider: provider,
		strategy: strat,
		params:   params,
		workers:  workers,
		logger:   logger,
	}
}

type outcome struct {
	signal  domain.TradingSignal
	err     error
	failure bool
}

// Scan evaluates every symbol and returns signals and failures ordered by the
// deduplicated input. Cancellation aborts symbols that have not started; they
// are reported as failures so the batch stays accounted for.
func (s *Scanner) Scan(ctx context.Context, symbols []string) domain.ScanReport {
	deduped := dedupe(symbols)
	outcomes := make([]outcome, len(deduped))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, symbol := range deduped {
		i, symbol := i, symbol
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i] = outcome{err: errors.Wrapf(domain.ErrTransient, "scan abandoned: %v", err), failure: true}
				return nil
			}
			outcomes[i] = s.evaluate(gctx, symbol)
			return nil
		})
	}
	_ = g.Wait()

	report := domain.ScanReport{}
	for i, out := range outcomes {
		if out.failure {
			s.logger.Warn("symbol evaluation failed",
				zap.String("symbol", deduped[i]), zap.Error(out.err))
			report.Failures = append(report.Failures, domain.ScanFailure{Symbol: deduped[i], Err: out.err})
			continue
		}
		report.Signals = append(report.Signals, out.signal)
	}

	s.logger.Info("scan complete",
		zap.Int("symbols", len(deduped)),
		zap.Int("signals", len(report.Signals)),
		zap.Int("failures", len(report.Failures)))
	return report
}

// evaluate runs the per-symbol pipeline. Insufficient indicator data degrades
// to a HOLD signal; anything else becomes a failure entry.
func (s *Scanner) evaluate(ctx context.Context, symbol string) outcome {
	series, err := s.provider.FetchHistory(ctx, symbol, s.lookbackDays())
	if err != nil {
		return outcome{err: err, failure: true}
	}

	snap, err := indicators.Latest(series, s.params)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			last, _ := series.Last()
			return outcome{signal: domain.TradingSignal{
				Symbol: symbol,
				Action: domain.ActionHold,
				Reason: err.Error(),
				Price:  last.Close,
				Time:   last.Time,
			}}
		}
		return outcome{err: err, failure: true}
	}

	last, ok := series.Last()
	if !ok {
		return outcome{err: errors.Wrapf(domain.ErrDataUnavailable, "empty series for %s", symbol), failure: true}
	}

	signal := s.strategy.Evaluate(symbol, last.Close, snap)
	// the signal carries the data point's timestamp, not wall-clock time, so
	// re-running a scan over an unchanged series yields identical output
	signal.Time = last.Time
	return outcome{signal: signal}
}

// lookbackDays converts the bar requirement into calendar days, padded for
// weekends and market holidays.
func (s *Scanner) lookbackDays() int {
	return s.params.MinBars()*2 + 10
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}
	return out
}
