// Package strategies turns observations into order intents. Two strategies
// exist: Threshold trades price moves against a per-symbol anchor, Policy
// delegates to a trained model. Both feed the same decoder, so the bot and
// the permission gate treat them identically.
package strategies

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/investor/broker"
	"github.com/rustyeddy/investor/ledger"
	"github.com/rustyeddy/investor/market"
)

// ErrInvalidAction rejects a policy action index outside [0, ActionCount).
var ErrInvalidAction = errors.New("invalid action")

// Intent is the closed set of five decoded order intents. The values match
// the policy's discrete action indices.
type Intent int

const (
	SellLong Intent = iota
	Hold
	BuyLong
	CoverShort
	ShortSell

	ActionCount = 5
)

func (i Intent) String() string {
	switch i {
	case SellLong:
		return "SELL"
	case Hold:
		return "HOLD"
	case BuyLong:
		return "BUY"
	case CoverShort:
		return "BUY_TO_COVER"
	case ShortSell:
		return "SHORT_SELL"
	default:
		return fmt.Sprintf("Intent(%d)", int(i))
	}
}

// OrderKind maps the intent to the broker operation it requests. Hold maps
// to nothing.
func (i Intent) OrderKind() (broker.OrderKind, bool) {
	switch i {
	case SellLong:
		return broker.Sell, true
	case BuyLong:
		return broker.Buy, true
	case CoverShort:
		return broker.BuyToCover, true
	case ShortSell:
		return broker.ShortSell, true
	default:
		return 0, false
	}
}

// DecodeAction maps a discrete action index to an intent. Pure and total:
// any out-of-range index fails with ErrInvalidAction, and a close intent
// with no underlying position degrades to Hold. The silent no-op is
// deliberate; the loop logs nothing for it.
func DecodeAction(index int, pos ledger.Position) (Intent, error) {
	if index < 0 || index >= ActionCount {
		return Hold, fmt.Errorf("action index %d: %w", index, ErrInvalidAction)
	}
	intent := Intent(index)

	switch intent {
	case SellLong:
		if pos.LongShares == 0 {
			return Hold, nil
		}
	case CoverShort:
		if pos.ShortShares == 0 {
			return Hold, nil
		}
	}
	return intent, nil
}

// Decision is one symbol's decoded intent for this cycle.
type Decision struct {
	Symbol string
	Intent Intent
	Reason string
}

// Strategy produces one decision per quoted symbol each cycle. Quotes only
// contain the symbols that could actually be priced this cycle.
type Strategy interface {
	Name() string
	Decide(ctx context.Context, acct ledger.Account, quotes map[string]market.Quote) ([]Decision, error)
}

// FillObserver is implemented by strategies that adjust internal state when
// an order actually executes. The bot calls it after every fill.
type FillObserver interface {
	OnFill(rec broker.TradeRecord)
}
