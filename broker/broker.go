// Package broker defines the capability contract every execution backend
// satisfies. Two implementations exist: broker/paper applies orders to an
// in-process ledger, broker/live forwards them to a brokerage gateway
// session. Call sites depend only on this interface.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/investor/ledger"
	"github.com/rustyeddy/investor/market"
)

var (
	// ErrExecutionDisabled means the live connector is in read-only
	// monitoring mode; quotes and positions still work.
	ErrExecutionDisabled = errors.New("live execution disabled")

	// ErrBrokerDisconnected means the gateway session is down. The caller
	// decides whether and when to retry.
	ErrBrokerDisconnected = errors.New("broker disconnected")
)

// OrderKind is the closed set of operations a broker can execute.
type OrderKind int

const (
	Buy OrderKind = iota
	Sell
	ShortSell
	BuyToCover
)

func (k OrderKind) String() string {
	switch k {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	case ShortSell:
		return "SHORT_SELL"
	case BuyToCover:
		return "BUY_TO_COVER"
	default:
		return fmt.Sprintf("OrderKind(%d)", int(k))
	}
}

// Kinds lists every order kind, in a stable order.
func Kinds() []OrderKind {
	return []OrderKind{Buy, Sell, ShortSell, BuyToCover}
}

// Order is one requested operation. Price carries either a live quote or an
// explicit caller override.
type Order struct {
	Symbol string          `json:"symbol"`
	Kind   OrderKind       `json:"kind"`
	Shares int64           `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Time   time.Time       `json:"time"`
}

// Validate rejects orders that no backend should ever see.
func (o Order) Validate() error {
	if o.Symbol == "" {
		return errors.New("order: empty symbol")
	}
	if o.Shares <= 0 {
		return fmt.Errorf("order %s %s: shares must be positive, got %d", o.Kind, o.Symbol, o.Shares)
	}
	if !o.Price.IsPositive() {
		return fmt.Errorf("order %s %s: price must be positive, got %s", o.Kind, o.Symbol, o.Price)
	}
	return nil
}

// Source identifies which backend executed a trade.
type Source string

const (
	SourcePaper Source = "paper"
	SourceLive  Source = "live"
)

// TradeRecord is the immutable audit entry for one executed order.
// RealizedPL is nil for opening trades.
type TradeRecord struct {
	ID            string           `json:"id"`
	Order         Order            `json:"order"`
	ResultingCash decimal.Decimal  `json:"resultingCash"`
	RealizedPL    *decimal.Decimal `json:"realizedPnL"`
	Source        Source           `json:"source"`
}

// Broker is the execution capability. Execute either fully applies the order
// and returns its audit record, or fails without side effects.
type Broker interface {
	GetQuote(ctx context.Context, symbol string) (market.Quote, error)
	GetAccount(ctx context.Context) (ledger.Account, error)
	Execute(ctx context.Context, o Order) (TradeRecord, error)
	Connected() bool
}
