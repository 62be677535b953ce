package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountSummary is a read-only projection of the broker account state at the
// time of the fetch that produced it.
type AccountSummary struct {
	TotalCash decimal.Decimal
	TotalEval decimal.Decimal
	NetAsset  decimal.Decimal
}

// PortfolioPosition is one holding in the brokerage account.
type PortfolioPosition struct {
	Symbol           string
	Name             string
	Quantity         int64
	AvgPurchasePrice decimal.Decimal
	CurrentPrice     decimal.Decimal
	EvalAmount       decimal.Decimal
	ProfitLoss       decimal.Decimal
	ProfitLossRatio  decimal.Decimal
}

// Portfolio bundles the account summary with its positions.
type Portfolio struct {
	Account   AccountSummary
	Positions []PortfolioPosition
	FetchedAt time.Time
}
