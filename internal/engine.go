// Package internal wires the signal core together: broker adapter, scanner,
// strategy and executor behind one facade consumed by external triggers.
package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"kisquant/config"
	"kisquant/internal/domain"
	"kisquant/internal/services/executor"
	"kisquant/internal/services/scanner"
	"kisquant/internal/services/strategy"
)

// Broker is the full broker-adapter contract the engine consumes.
type Broker interface {
	Authenticate(ctx context.Context) error
	FetchHistory(ctx context.Context, symbol string, lookback int) (domain.PriceSeries, error)
	FetchQuote(ctx context.Context, symbol string) (domain.PriceBar, error)
	FetchAccount(ctx context.Context) (domain.Portfolio, error)
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
}

// Engine is the synchronous surface exposed to external triggers:
// scans, order execution and portfolio passthrough.
type Engine struct {
	broker   Broker
	scanner  *scanner.Scanner
	executor *executor.Executor
	logger   *zap.Logger
}

// NewEngine assembles the core from configuration and a constructed broker
// adapter.
func NewEngine(logger *zap.Logger, cfg config.Config, brk Broker) (*Engine, error) {
	strat, err := strategy.New(cfg.Strategy)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select strategy")
	}

	logger.Info("engine assembled",
		zap.String("strategy", strat.Name()),
		zap.Int("workers", cfg.Workers))

	return &Engine{
		broker:   brk,
		scanner:  scanner.New(logger, brk, strat, cfg.IndicatorParams(), cfg.Workers),
		executor: executor.New(logger, brk, cfg.OrderTimeout),
		logger:   logger,
	}, nil
}

// Scan evaluates the given symbols and returns signals alongside per-symbol
// failures. It never aborts the batch for one instrument.
func (e *Engine) Scan(ctx context.Context, symbols []string) domain.ScanReport {
	return e.scanner.Scan(ctx, symbols)
}

// RunScheduledScan has the identical contract to Scan; it exists so the
// timer-driven path is explicit at call sites.
func (e *Engine) RunScheduledScan(ctx context.Context, symbols []string) domain.ScanReport {
	e.logger.Info("scheduled scan triggered", zap.Int("symbols", len(symbols)))
	return e.scanner.Scan(ctx, symbols)
}

// ExecuteOrder validates and places a single order.
func (e *Engine) ExecuteOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderExecution, error) {
	return e.executor.Execute(ctx, req)
}

// GetPortfolio is a synchronous passthrough to the broker adapter.
func (e *Engine) GetPortfolio(ctx context.Context) (domain.Portfolio, error) {
	return e.broker.FetchAccount(ctx)
}

// Warmup authenticates eagerly so the first scheduled scan does not pay the
// token acquisition latency. Bounded; failure is non-fatal.
func (e *Engine) Warmup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return e.broker.Authenticate(ctx)
}
