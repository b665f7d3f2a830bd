// Package live connects the broker capability to an external brokerage
// session. The wire protocol lives behind the Session interface; this
// package owns the safety semantics: execution is off unless explicitly
// enabled, every call is bounded by a timeout, and a lost connection fails
// fast instead of retrying silently.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/investor/broker"
	"github.com/rustyeddy/investor/internal/id"
	"github.com/rustyeddy/investor/journal"
	"github.com/rustyeddy/investor/ledger"
	"github.com/rustyeddy/investor/market"
	"github.com/rustyeddy/investor/permit"
)

// Capabilities is what the brokerage reports about the account on connect.
type Capabilities struct {
	Shortable bool
}

// Fill is the brokerage's confirmation of an executed order.
type Fill struct {
	Shares     int64
	Price      decimal.Decimal
	RealizedPL *decimal.Decimal
	Time       time.Time
}

// Session is the contract a brokerage connection must satisfy. The gateway
// package provides the websocket implementation; tests provide stubs.
type Session interface {
	Connected() bool
	Capabilities(ctx context.Context) (Capabilities, error)
	Quote(ctx context.Context, symbol string) (market.Quote, error)
	Account(ctx context.Context) (ledger.Account, error)
	Place(ctx context.Context, o broker.Order) (Fill, error)
}

const defaultTimeout = 10 * time.Second

// Connector adapts a Session to the broker capability.
type Connector struct {
	session Session
	journal journal.Journal
	timeout time.Duration
	execute bool
}

// Option configures a Connector.
type Option func(*Connector)

// WithExecution enables live order execution. Without it the connector is
// read-only: quotes and positions work, Execute fails.
func WithExecution() Option {
	return func(c *Connector) { c.execute = true }
}

// WithTimeout bounds every session call. One unresponsive gateway call must
// never stall the decision loop indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(c *Connector) { c.timeout = d }
}

func WithJournal(j journal.Journal) Option {
	return func(c *Connector) { c.journal = j }
}

func NewConnector(s Session, opts ...Option) *Connector {
	c := &Connector{
		session: s,
		journal: journal.Noop{},
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect queries the account's capabilities and narrows the permission
// gate to match: an account that cannot short never sees a short order,
// whatever the configured permissions say.
func (c *Connector) Connect(ctx context.Context, gate *permit.Gate) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	caps, err := c.session.Capabilities(ctx)
	if err != nil {
		return fmt.Errorf("query account capabilities: %w", err)
	}
	if !caps.Shortable {
		gate.RestrictShorting()
	}
	slog.Info("live session connected", "shortable", caps.Shortable, "execution", c.execute)
	return nil
}

func (c *Connector) Connected() bool { return c.session.Connected() }

func (c *Connector) GetQuote(ctx context.Context, symbol string) (market.Quote, error) {
	if !c.session.Connected() {
		return market.Quote{}, broker.ErrBrokerDisconnected
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.session.Quote(ctx, symbol)
}

func (c *Connector) GetAccount(ctx context.Context) (ledger.Account, error) {
	if !c.session.Connected() {
		return ledger.Account{}, broker.ErrBrokerDisconnected
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.session.Account(ctx)
}

// Execute forwards the order to the brokerage session and maps the fill
// into a trade record. It does not retry: the caller owns retry policy.
func (c *Connector) Execute(ctx context.Context, o broker.Order) (broker.TradeRecord, error) {
	if !c.execute {
		return broker.TradeRecord{}, fmt.Errorf("%s %s: %w", o.Kind, o.Symbol, broker.ErrExecutionDisabled)
	}
	if !c.session.Connected() {
		return broker.TradeRecord{}, fmt.Errorf("%s %s: %w", o.Kind, o.Symbol, broker.ErrBrokerDisconnected)
	}
	if err := o.Validate(); err != nil {
		return broker.TradeRecord{}, err
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()

	fill, err := c.session.Place(ctx, o)
	if err != nil {
		return broker.TradeRecord{}, fmt.Errorf("place %s %s: %w", o.Kind, o.Symbol, err)
	}

	o.Shares = fill.Shares
	o.Price = fill.Price
	if !fill.Time.IsZero() {
		o.Time = fill.Time
	}

	rec := broker.TradeRecord{
		ID:         id.New(),
		Order:      o,
		RealizedPL: fill.RealizedPL,
		Source:     broker.SourceLive,
	}

	// The order is filled from here on. Whatever else fails, the record must
	// reach the audit trail, with resulting cash left zero when unknown.
	acct, acctErr := c.session.Account(ctx)
	if acctErr == nil {
		rec.ResultingCash = acct.Cash
	} else {
		slog.Error("account query after fill failed, recording trade with unknown cash",
			"id", rec.ID, "symbol", o.Symbol, "error", acctErr)
	}
	if err := c.journal.RecordTrade(rec); err != nil {
		slog.Error("journal live trade failed", "id", rec.ID, "error", err)
	}
	if acctErr != nil {
		return rec, fmt.Errorf("account after fill: %w", acctErr)
	}
	return rec, nil
}

func (c *Connector) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}
