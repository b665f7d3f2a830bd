// Package paper implements the simulated broker: orders mutate an in-process
// ledger and every mutation is snapshotted to the account file. Given the
// same order sequence and prices it always produces the same ledger, which
// keeps backtests reproducible.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/investor/broker"
	"github.com/rustyeddy/investor/internal/id"
	"github.com/rustyeddy/investor/journal"
	"github.com/rustyeddy/investor/ledger"
	"github.com/rustyeddy/investor/market"
	"github.com/rustyeddy/investor/store"
)

// Broker is the paper account. All fields are guarded by mu; Execute applies
// the ledger mutation, appends the audit record and persists, in that order,
// with no other writer in between.
type Broker struct {
	mu      sync.Mutex
	acct    *ledger.Account
	history []broker.TradeRecord
	quotes  market.QuoteSource
	store   *store.Store
	journal journal.Journal
}

// New builds a paper broker around existing state. The journal may be nil.
func New(st *store.State, quotes market.QuoteSource, db *store.Store, j journal.Journal) *Broker {
	if j == nil {
		j = journal.Noop{}
	}
	acct := st.Account
	acct.Positions = make(map[string]ledger.Position, len(st.Positions))
	for sym, p := range st.Positions {
		acct.Positions[sym] = p
	}
	return &Broker{
		acct:    &acct,
		history: append([]broker.TradeRecord(nil), st.TradeHistory...),
		quotes:  quotes,
		store:   db,
		journal: j,
	}
}

// Open loads the persisted account and wraps it in a paper broker.
func Open(db *store.Store, quotes market.QuoteSource, j journal.Journal) (*Broker, error) {
	st, err := db.Load()
	if err != nil {
		return nil, fmt.Errorf("open paper account: %w", err)
	}
	return New(st, quotes, db, j), nil
}

// Init creates a fresh account with the given deposit and persists it.
func Init(db *store.Store, deposit decimal.Decimal, quotes market.QuoteSource, j journal.Journal) (*Broker, error) {
	if !deposit.IsPositive() {
		return nil, fmt.Errorf("initial deposit must be positive, got %s", deposit)
	}
	st := &store.State{Account: *ledger.New(deposit)}
	if err := db.Save(st); err != nil {
		return nil, fmt.Errorf("init paper account: %w", err)
	}
	return New(st, quotes, db, j), nil
}

func (b *Broker) Connected() bool { return true }

func (b *Broker) GetQuote(ctx context.Context, symbol string) (market.Quote, error) {
	return b.quotes.GetQuote(ctx, symbol)
}

// GetAccount returns a snapshot; the caller cannot mutate broker state
// through it.
func (b *Broker) GetAccount(ctx context.Context) (ledger.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := *b.acct
	snap.Positions = make(map[string]ledger.Position, len(b.acct.Positions))
	for sym, p := range b.acct.Positions {
		snap.Positions[sym] = p
	}
	return snap, nil
}

// History returns a copy of the append-only trade history.
func (b *Broker) History() []broker.TradeRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broker.TradeRecord(nil), b.history...)
}

// Execute applies the order to the ledger. An order without a price is
// filled at the current quote; an order with a price uses it as an explicit
// override. Failed preconditions leave ledger, history and file untouched.
func (b *Broker) Execute(ctx context.Context, o broker.Order) (broker.TradeRecord, error) {
	if o.Price.IsZero() {
		q, err := b.quotes.GetQuote(ctx, o.Symbol)
		if err != nil {
			return broker.TradeRecord{}, fmt.Errorf("fill price for %s: %w", o.Symbol, err)
		}
		o.Price = q.Price
		if o.Time.IsZero() {
			o.Time = q.Time
		}
	}
	if err := o.Validate(); err != nil {
		return broker.TradeRecord{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.applyLocked(o)
	if err != nil {
		return broker.TradeRecord{}, err
	}

	b.history = append(b.history, rec)
	b.persistLocked()

	if err := b.journal.RecordTrade(rec); err != nil {
		slog.Error("journal trade failed", "id", rec.ID, "error", err)
	}
	return rec, nil
}

func (b *Broker) applyLocked(o broker.Order) (broker.TradeRecord, error) {
	var (
		pl     *decimal.Decimal
		err    error
		closed decimal.Decimal
	)
	switch o.Kind {
	case broker.Buy:
		err = b.acct.ApplyBuy(o.Symbol, o.Shares, o.Price)
	case broker.Sell:
		closed, err = b.acct.ApplySellLong(o.Symbol, o.Shares, o.Price)
		pl = &closed
	case broker.ShortSell:
		err = b.acct.ApplyShortSell(o.Symbol, o.Shares, o.Price)
	case broker.BuyToCover:
		closed, err = b.acct.ApplyCoverShort(o.Symbol, o.Shares, o.Price)
		pl = &closed
	default:
		err = fmt.Errorf("unsupported order kind %s", o.Kind)
	}
	if err != nil {
		return broker.TradeRecord{}, err
	}

	return broker.TradeRecord{
		ID:            id.New(),
		Order:         o,
		ResultingCash: b.acct.Cash,
		RealizedPL:    pl,
		Source:        broker.SourcePaper,
	}, nil
}

// persistLocked snapshots the ledger after a mutation. A write failure does
// not roll the trade back; the store disables itself and the condition is
// surfaced loudly so the operator can intervene.
func (b *Broker) persistLocked() {
	st := &store.State{Account: *b.acct, TradeHistory: b.history}
	if err := b.store.Save(st); err != nil {
		slog.Error("account snapshot failed, state on disk is stale", "path", b.store.Path(), "error", err)
	}
}
