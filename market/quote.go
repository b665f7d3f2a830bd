package market

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrQuoteUnavailable is returned when a source has no current price for a
// symbol. Callers treat it as a per-symbol condition, not a source failure.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// Quote is the latest observed price for one symbol.
type Quote struct {
	Symbol string
	Price  decimal.Decimal
	Time   time.Time
}

// QuoteSource supplies current prices. Implemented by the in-memory store,
// the paper broker and the live gateway session.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}

// QuoteStore is a concurrency-safe in-memory QuoteSource. The paper broker
// and tests seed it directly.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]Quote)}
}

func (qs *QuoteStore) Set(q Quote) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.quotes[q.Symbol] = q
}

func (qs *QuoteStore) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	q, ok := qs.quotes[symbol]
	if !ok {
		return Quote{}, ErrQuoteUnavailable
	}
	return q, nil
}
