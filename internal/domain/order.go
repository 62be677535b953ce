package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType distinguishes limit orders from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// OrderRequest is a request to place a single order. LimitPrice is required
// for limit orders and must be absent for market orders.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Quantity   int64
	Type       OrderType
	LimitPrice decimal.Decimal
}

// Validate checks the request before it is allowed anywhere near the network.
func (r *OrderRequest) Validate() error {
	if r.Symbol == "" {
		return errors.Wrap(ErrValidation, "symbol is required")
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return errors.Wrapf(ErrValidation, "invalid side %q", r.Side)
	}
	if r.Quantity <= 0 {
		return errors.Wrapf(ErrValidation, "quantity must be positive, got %d", r.Quantity)
	}
	switch r.Type {
	case OrderTypeLimit:
		if r.LimitPrice.LessThanOrEqual(decimal.Zero) {
			return errors.Wrap(ErrValidation, "limit order requires a positive limit price")
		}
	case OrderTypeMarket:
		if !r.LimitPrice.IsZero() {
			return errors.Wrap(ErrValidation, "market order must not carry a limit price")
		}
	default:
		return errors.Wrapf(ErrValidation, "invalid order type %q", r.Type)
	}
	return nil
}

// Fingerprint identifies the order content. Two requests with the same
// fingerprint submitted while one is still in flight are treated as duplicates.
func (r *OrderRequest) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%d|%s|%s", r.Symbol, r.Side, r.Quantity, r.Type, r.LimitPrice.String())
}

// OrderResult is the broker's verdict on a placed order.
type OrderResult struct {
	Accepted      bool
	BrokerOrderID string
	Err           error
}

// OrderExecution wraps an OrderResult with local audit metadata.
type OrderExecution struct {
	OrderResult
	Request     OrderRequest
	AuditID     string
	SubmittedAt time.Time
}
