// Package journal records every decision outcome for dashboards and
// reports: executed trades, denied orders and skipped symbols. The account
// file in store is authoritative; the journal is the queryable audit trail.
package journal

import (
	"time"

	"github.com/rustyeddy/investor/broker"
)

// Skip is a decision that produced no trade: a permission denial, a ledger
// rejection or a missing quote.
type Skip struct {
	Time   time.Time
	Symbol string
	Kind   string
	Reason string
}

type Journal interface {
	RecordTrade(broker.TradeRecord) error
	RecordSkip(Skip) error
	Close() error
}

// Noop discards everything. Used by tests and one-shot CLI trades.
type Noop struct{}

func (Noop) RecordTrade(broker.TradeRecord) error { return nil }
func (Noop) RecordSkip(Skip) error                { return nil }
func (Noop) Close() error                         { return nil }
