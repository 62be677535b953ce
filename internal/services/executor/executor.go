// Package executor validates order requests and hands them to the broker
// adapter. It decides nothing about whether to trade; it only guards the path
// to the broker: invalid requests never reach the network, and two concurrent
// requests with identical content reach the broker exactly once.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"kisquant/internal/domain"
)

// OrderPlacer is the broker-adapter contract the executor depends on.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
}

// Executor coordinates order placement.
type Executor struct {
	broker       OrderPlacer
	logger       *zap.Logger
	orderTimeout time.Duration

	mu       sync.Mutex
	inflight map[string]*pendingOrder
}

// pendingOrder is the in-flight marker for one order fingerprint. Late
// callers with the same fingerprint wait on done and share the result.
type pendingOrder struct {
	done   chan struct{}
	result domain.OrderExecution
	err    error
}

// New builds an executor. orderTimeout bounds the broker call once an order
// has been committed to the wire.
func New(logger *zap.Logger, broker OrderPlacer, orderTimeout time.Duration) *Executor {
	if orderTimeout <= 0 {
		orderTimeout = 15 * time.Second
	}
	return &Executor{
		broker:       broker,
		logger:       logger,
		orderTimeout: orderTimeout,
		inflight:     make(map[string]*pendingOrder),
	}
}

// Execute validates the request, suppresses duplicate submissions and places
// the order. The result is the broker's verdict verbatim, annotated with a
// local timestamp and an audit id.
func (e *Executor) Execute(ctx context.Context, req domain.OrderRequest) (domain.OrderExecution, error) {
	if err := req.Validate(); err != nil {
		return domain.OrderExecution{}, err
	}

	fingerprint := req.Fingerprint()

	e.mu.Lock()
	if pending, ok := e.inflight[fingerprint]; ok {
		e.mu.Unlock()
		e.logger.Warn("duplicate order suppressed, awaiting in-flight submission",
			zap.String("fingerprint", fingerprint))
		select {
		case <-pending.done:
			return pending.result, pending.err
		case <-ctx.Done():
			return domain.OrderExecution{}, errors.Wrap(ctx.Err(), "abandoned wait on duplicate order")
		}
	}
	pending := &pendingOrder{done: make(chan struct{})}
	e.inflight[fingerprint] = pending
	e.mu.Unlock()

	pending.result, pending.err = e.place(ctx, req)
	close(pending.done)

	e.mu.Lock()
	delete(e.inflight, fingerprint)
	e.mu.Unlock()

	return pending.result, pending.err
}

func (e *Executor) place(ctx context.Context, req domain.OrderRequest) (domain.OrderExecution, error) {
	execution := domain.OrderExecution{
		Request:     req,
		AuditID:     uuid.NewString(),
		SubmittedAt: time.Now().UTC(),
	}

	// an order, once sent, cannot be un-sent: detach from caller cancellation
	// and rely on the bounded timeout instead
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.orderTimeout)
	defer cancel()

	result, err := e.broker.PlaceOrder(callCtx, req)
	if err != nil {
		e.logger.Error("order placement failed",
			zap.String("audit_id", execution.AuditID),
			zap.String("symbol", req.Symbol),
			zap.Error(err))
		return domain.OrderExecution{}, err
	}

	execution.OrderResult = result
	e.logger.Info("order placement finished",
		zap.String("audit_id", execution.AuditID),
		zap.String("symbol", req.Symbol),
		zap.Bool("accepted", result.Accepted),
		zap.String("broker_order_id", result.BrokerOrderID))
	return execution, nil
}
