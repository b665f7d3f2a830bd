package ledger

import "github.com/shopspring/decimal"

// Position tracks the long and short sides of one symbol independently.
// Both sides never hold shares at the same time; the mutators in account.go
// enforce flattening before the opposite side may open.
type Position struct {
	Symbol       string          `json:"-"`
	LongShares   int64           `json:"longShares"`
	LongAvgCost  decimal.Decimal `json:"longAvgCost"`
	ShortShares  int64           `json:"shortShares"`
	ShortAvgCost decimal.Decimal `json:"shortAvgCost"`
}

// Flat reports whether neither side holds shares.
func (p Position) Flat() bool {
	return p.LongShares == 0 && p.ShortShares == 0
}

// MarketValue is the position's contribution to account equity at the given
// price: long shares add value, short shares owe it.
func (p Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	long := price.Mul(decimal.NewFromInt(p.LongShares))
	short := price.Mul(decimal.NewFromInt(p.ShortShares))
	return long.Sub(short)
}

// avgCost returns the volume-weighted average entry price after adding
// shares at price to an existing (held, avg) lot.
func avgCost(held int64, avg decimal.Decimal, shares int64, price decimal.Decimal) decimal.Decimal {
	total := avg.Mul(decimal.NewFromInt(held)).Add(price.Mul(decimal.NewFromInt(shares)))
	return total.Div(decimal.NewFromInt(held + shares))
}
