package strategies

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/investor/broker"
	"github.com/rustyeddy/investor/ledger"
	"github.com/rustyeddy/investor/market"
)

// Threshold is the rule-driven strategy: each symbol keeps an anchor price,
// and the current price is compared against anchor*buy and anchor*sell
// ratios. The anchor trails to the fill price after every executed trade;
// between trades it stays put.
type Threshold struct {
	buy  decimal.Decimal // e.g. 0.95: buy when price drops 5% below anchor
	sell decimal.Decimal // e.g. 1.05: sell when price rises 5% above anchor

	mu      sync.Mutex
	anchors map[string]decimal.Decimal
}

func NewThreshold(buy, sell decimal.Decimal) (*Threshold, error) {
	if !buy.IsPositive() || !sell.IsPositive() {
		return nil, fmt.Errorf("thresholds must be positive, got buy=%s sell=%s", buy, sell)
	}
	if buy.GreaterThanOrEqual(sell) {
		return nil, fmt.Errorf("buy threshold %s must be below sell threshold %s", buy, sell)
	}
	return &Threshold{
		buy:     buy,
		sell:    sell,
		anchors: make(map[string]decimal.Decimal),
	}, nil
}

func (t *Threshold) Name() string { return "threshold" }

func (t *Threshold) Decide(ctx context.Context, acct ledger.Account, quotes map[string]market.Quote) ([]Decision, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	symbols := make([]string, 0, len(quotes))
	for sym := range quotes {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var decisions []Decision
	for _, sym := range symbols {
		price := quotes[sym].Price

		anchor, ok := t.anchors[sym]
		if !ok {
			// first observation establishes the anchor, no signal yet
			t.anchors[sym] = price
			decisions = append(decisions, Decision{Symbol: sym, Intent: Hold, Reason: "anchor established"})
			continue
		}

		pos := acct.Position(sym)
		switch {
		case price.LessThanOrEqual(anchor.Mul(t.buy)):
			decisions = append(decisions, Decision{
				Symbol: sym,
				Intent: BuyLong,
				Reason: fmt.Sprintf("price %s <= anchor %s * %s", price, anchor, t.buy),
			})
		case price.GreaterThanOrEqual(anchor.Mul(t.sell)):
			intent := SellLong
			reason := fmt.Sprintf("price %s >= anchor %s * %s", price, anchor, t.sell)
			if pos.LongShares == 0 {
				intent = Hold
				reason = "sell signal with no long position"
			}
			decisions = append(decisions, Decision{Symbol: sym, Intent: intent, Reason: reason})
		default:
			decisions = append(decisions, Decision{Symbol: sym, Intent: Hold, Reason: "within thresholds"})
		}
	}
	return decisions, nil
}

// OnFill trails the anchor to the executed price.
func (t *Threshold) OnFill(rec broker.TradeRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.anchors[rec.Order.Symbol] = rec.Order.Price
}

// Anchor returns the current anchor for a symbol, if one is set.
func (t *Threshold) Anchor(symbol string) (decimal.Decimal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.anchors[symbol]
	return a, ok
}
