package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"kisquant/internal/domain"
)

const NameBollingerWilliams = "bollinger_williams"

// BollingerWilliams is the confluence rule set: a price outside the Bollinger
// Bands only counts when Williams %R confirms the same extreme. Rules are
// checked in fixed precedence, first match wins.
type BollingerWilliams struct {
	oversold   decimal.Decimal
	overbought decimal.Decimal
}

// NewBollingerWilliams builds the rule set with the stock thresholds:
// Williams %R at or below -80 is oversold, at or above -20 is overbought.
func NewBollingerWilliams() *BollingerWilliams {
	return &BollingerWilliams{
		oversold:   decimal.NewFromInt(-80),
		overbought: decimal.NewFromInt(-20),
	}
}

// NewBollingerWilliamsWithThresholds builds the rule set with custom
// Williams %R thresholds.
func NewBollingerWilliamsWithThresholds(oversold, overbought decimal.Decimal) *BollingerWilliams {
	return &BollingerWilliams{oversold: oversold, overbought: overbought}
}

func (s *BollingerWilliams) Name() string { return NameBollingerWilliams }

func (s *BollingerWilliams) Evaluate(symbol string, price decimal.Decimal, snap domain.IndicatorSnapshot) domain.TradingSignal {
	signal := domain.TradingSignal{
		Symbol:     symbol,
		Price:      price,
		Indicators: snap,
	}

	switch {
	case price.LessThan(snap.BollingerLower) && snap.WilliamsR.LessThanOrEqual(s.oversold):
		signal.Action = domain.ActionBuy
		signal.Reason = fmt.Sprintf("oversold: price %s below lower band %s and Williams %%R %s at or below %s",
			price.String(), snap.BollingerLower.StringFixed(2), snap.WilliamsR.StringFixed(2), s.oversold.String())
	case price.GreaterThan(snap.BollingerUpper) && snap.WilliamsR.GreaterThanOrEqual(s.overbought):
		signal.Action = domain.ActionSell
		signal.Reason = fmt.Sprintf("overbought: price %s above upper band %s and Williams %%R %s at or above %s",
			price.String(), snap.BollingerUpper.StringFixed(2), snap.WilliamsR.StringFixed(2), s.overbought.String())
	default:
		signal.Action = domain.ActionHold
		signal.Reason = "no confluent signal"
	}

	return signal
}
