package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"kisquant/internal/domain"
)

const NameRSIReversion = "rsi_reversion"

// RSIReversion is an alternative mean-reversion rule set driven by RSI:
// buy below 30, sell above 70, hold in between.
type RSIReversion struct {
	oversold   decimal.Decimal
	overbought decimal.Decimal
}

func NewRSIReversion() *RSIReversion {
	return &RSIReversion{
		oversold:   decimal.NewFromInt(30),
		overbought: decimal.NewFromInt(70),
	}
}

func (s *RSIReversion) Name() string { return NameRSIReversion }

func (s *RSIReversion) Evaluate(symbol string, price decimal.Decimal, snap domain.IndicatorSnapshot) domain.TradingSignal {
	signal := domain.TradingSignal{
		Symbol:     symbol,
		Price:      price,
		Indicators: snap,
	}

	switch {
	case !snap.RSIValid:
		signal.Action = domain.ActionHold
		signal.Reason = "flat market: RSI unavailable"
	case snap.RSI.LessThan(s.oversold):
		signal.Action = domain.ActionBuy
		signal.Reason = fmt.Sprintf("oversold: RSI %s below %s", snap.RSI.StringFixed(2), s.oversold.String())
	case snap.RSI.GreaterThan(s.overbought):
		signal.Action = domain.ActionSell
		signal.Reason = fmt.Sprintf("overbought: RSI %s above %s", snap.RSI.StringFixed(2), s.overbought.String())
	default:
		signal.Action = domain.ActionHold
		signal.Reason = fmt.Sprintf("RSI %s inside neutral range", snap.RSI.StringFixed(2))
	}

	return signal
}
