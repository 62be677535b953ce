// Package strategy contains the rule sets that turn indicator snapshots into
// trading signals. Strategies are pure: no I/O, no hidden state, identical
// inputs always produce the identical signal.
package strategy

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"kisquant/internal/domain"
)

// Strategy classifies the latest close price and indicator snapshot into a
// trading action with a human-readable justification.
type Strategy interface {
	Name() string
	Evaluate(symbol string, price decimal.Decimal, snap domain.IndicatorSnapshot) domain.TradingSignal
}

// New selects a strategy implementation by its configured name.
func New(name string) (Strategy, error) {
	switch name {
	case "", NameBollingerWilliams:
		return NewBollingerWilliams(), nil
	case NameRSIReversion:
		return NewRSIReversion(), nil
	default:
		return nil, errors.Wrapf(domain.ErrValidation, "unknown strategy %q", name)
	}
}
