// Package ledger implements the authoritative cash and position record for
// one trading account. The four Apply mutators are the only way account
// state changes; each checks its full precondition before touching anything,
// so a failed call leaves the account exactly as it was.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Account is the ledger: cash plus per-symbol positions. Realized accumulates
// booked P&L across closing trades so the conservation invariant
//
//	cash + Σ position.MarketValue(price) == deposit + Realized
//
// can be checked at any time.
type Account struct {
	Cash      decimal.Decimal     `json:"cash"`
	Deposit   decimal.Decimal     `json:"deposit"`
	Realized  decimal.Decimal     `json:"realized"`
	Positions map[string]Position `json:"positions"`
}

// New creates an account funded with the given deposit.
func New(deposit decimal.Decimal) *Account {
	return &Account{
		Cash:      deposit,
		Deposit:   deposit,
		Positions: make(map[string]Position),
	}
}

// Position returns the tracked position for symbol, zero-valued if none.
func (a *Account) Position(symbol string) Position {
	p := a.Positions[symbol]
	p.Symbol = symbol
	return p
}

func (a *Account) setPosition(symbol string, p Position) {
	if a.Positions == nil {
		a.Positions = make(map[string]Position)
	}
	if p.Flat() {
		delete(a.Positions, symbol)
		return
	}
	p.Symbol = ""
	a.Positions[symbol] = p
}

// Equity is cash plus the market value of all open positions, priced by the
// lookup. Missing prices value the position at its average cost.
func (a *Account) Equity(price func(symbol string) (decimal.Decimal, bool)) decimal.Decimal {
	eq := a.Cash
	for sym, p := range a.Positions {
		px, ok := price(sym)
		if !ok {
			if p.LongShares > 0 {
				px = p.LongAvgCost
			} else {
				px = p.ShortAvgCost
			}
		}
		eq = eq.Add(p.MarketValue(px))
	}
	return eq
}

// ApplyBuy opens or extends a long position: cash pays shares*price and the
// long average cost is volume-weighted over the combined lot.
func (a *Account) ApplyBuy(symbol string, shares int64, price decimal.Decimal) error {
	p := a.Position(symbol)
	if p.ShortShares > 0 {
		return fmt.Errorf("buy %s: short position open: %w", symbol, ErrOppositeSideOpen)
	}
	cost := price.Mul(decimal.NewFromInt(shares))
	if a.Cash.LessThan(cost) {
		return fmt.Errorf("buy %d %s at %s needs %s, have %s: %w",
			shares, symbol, price, cost, a.Cash, ErrInsufficientBalance)
	}

	p.LongAvgCost = avgCost(p.LongShares, p.LongAvgCost, shares, price)
	p.LongShares += shares
	a.Cash = a.Cash.Sub(cost)
	a.setPosition(symbol, p)
	return nil
}

// ApplySellLong closes part or all of a long position and books
// shares*(price-avgCost) of realized P&L. Returns the booked amount.
func (a *Account) ApplySellLong(symbol string, shares int64, price decimal.Decimal) (decimal.Decimal, error) {
	p := a.Position(symbol)
	if p.LongShares < shares {
		return decimal.Zero, fmt.Errorf("sell %d %s, holding %d: %w",
			shares, symbol, p.LongShares, ErrInsufficientShares)
	}

	qty := decimal.NewFromInt(shares)
	pnl := price.Sub(p.LongAvgCost).Mul(qty)
	p.LongShares -= shares
	if p.LongShares == 0 {
		p.LongAvgCost = decimal.Zero
	}
	a.Cash = a.Cash.Add(price.Mul(qty))
	a.Realized = a.Realized.Add(pnl)
	a.setPosition(symbol, p)
	return pnl, nil
}

// ApplyShortSell opens or extends a short position. Proceeds credit cash
// immediately; no margin requirement is enforced, a documented
// simplification of the paper account.
func (a *Account) ApplyShortSell(symbol string, shares int64, price decimal.Decimal) error {
	p := a.Position(symbol)
	if p.LongShares > 0 {
		return fmt.Errorf("short %s: long position open: %w", symbol, ErrOppositeSideOpen)
	}

	p.ShortAvgCost = avgCost(p.ShortShares, p.ShortAvgCost, shares, price)
	p.ShortShares += shares
	a.Cash = a.Cash.Add(price.Mul(decimal.NewFromInt(shares)))
	a.setPosition(symbol, p)
	return nil
}

// ApplyCoverShort buys back part or all of a short position and books
// shares*(avgCost-price) of realized P&L. Returns the booked amount. Cash
// must cover the buyback, so the account can never go negative on a cover.
func (a *Account) ApplyCoverShort(symbol string, shares int64, price decimal.Decimal) (decimal.Decimal, error) {
	p := a.Position(symbol)
	if p.ShortShares < shares {
		return decimal.Zero, fmt.Errorf("cover %d %s, short %d: %w",
			shares, symbol, p.ShortShares, ErrInsufficientShortPosition)
	}
	cost := price.Mul(decimal.NewFromInt(shares))
	if a.Cash.LessThan(cost) {
		return decimal.Zero, fmt.Errorf("cover %d %s at %s needs %s, have %s: %w",
			shares, symbol, price, cost, a.Cash, ErrInsufficientBalance)
	}

	qty := decimal.NewFromInt(shares)
	pnl := p.ShortAvgCost.Sub(price).Mul(qty)
	p.ShortShares -= shares
	if p.ShortShares == 0 {
		p.ShortAvgCost = decimal.Zero
	}
	a.Cash = a.Cash.Sub(price.Mul(qty))
	a.Realized = a.Realized.Add(pnl)
	a.setPosition(symbol, p)
	return pnl, nil
}
