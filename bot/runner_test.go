package bot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/investor/broker"
	"github.com/rustyeddy/investor/broker/paper"
	"github.com/rustyeddy/investor/journal"
	"github.com/rustyeddy/investor/ledger"
	"github.com/rustyeddy/investor/market"
	"github.com/rustyeddy/investor/permit"
	"github.com/rustyeddy/investor/strategies"
	"github.com/rustyeddy/investor/store"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// scripted emits a fixed sequence of decisions, one slice per cycle.
type scripted struct {
	mu     sync.Mutex
	cycles [][]strategies.Decision
	calls  int
	fills  []broker.TradeRecord
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Decide(ctx context.Context, acct ledger.Account, quotes map[string]market.Quote) ([]strategies.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.cycles) {
		return nil, nil
	}
	return s.cycles[i], nil
}

func (s *scripted) OnFill(rec broker.TradeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills = append(s.fills, rec)
}

// recordingJournal captures skips in memory.
type recordingJournal struct {
	mu    sync.Mutex
	skips []journal.Skip
}

func (r *recordingJournal) RecordTrade(broker.TradeRecord) error { return nil }

func (r *recordingJournal) RecordSkip(s journal.Skip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skips = append(r.skips, s)
	return nil
}

func (r *recordingJournal) Close() error { return nil }

func (r *recordingJournal) Skips() []journal.Skip {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]journal.Skip(nil), r.skips...)
}

func testRig(t *testing.T, deposit string) (*paper.Broker, *market.QuoteStore, *store.Store) {
	t.Helper()
	db := store.New(filepath.Join(t.TempDir(), "account.json"))
	quotes := market.NewQuoteStore()
	b, err := paper.Init(db, d(deposit), quotes, nil)
	require.NoError(t, err)
	return b, quotes, db
}

func testConfig() Config {
	return Config{
		Symbols:        []string{"AAPL"},
		PollInterval:   time.Hour, // cycles are driven manually in tests
		OrderShares:    10,
		MaxOrderShares: 25,
	}
}

func TestHoldCyclesLeaveEverythingUntouched(t *testing.T) {
	t.Parallel()

	b, quotes, db := testRig(t, "100000")
	quotes.Set(market.Quote{Symbol: "AAPL", Price: d("150"), Time: time.Now()})

	strat := &scripted{cycles: [][]strategies.Decision{
		{{Symbol: "AAPL", Intent: strategies.Hold}},
		{{Symbol: "AAPL", Intent: strategies.Hold}},
		{{Symbol: "AAPL", Intent: strategies.Hold}},
	}}
	j := &recordingJournal{}
	r, err := NewRunner(testConfig(), strat, permit.NewGate(nil), b, j)
	require.NoError(t, err)

	before, err := db.Load()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		r.cycle(context.Background())
	}

	assert.Empty(t, b.History(), "no trade records for hold cycles")
	assert.Empty(t, j.Skips())

	after, err := db.Load()
	require.NoError(t, err)
	assert.True(t, before.Cash.Equal(after.Cash))
	assert.Empty(t, after.TradeHistory)
}

func TestBuyDecisionExecutes(t *testing.T) {
	t.Parallel()

	b, quotes, _ := testRig(t, "100000")
	quotes.Set(market.Quote{Symbol: "AAPL", Price: d("150"), Time: time.Now()})

	strat := &scripted{cycles: [][]strategies.Decision{
		{{Symbol: "AAPL", Intent: strategies.BuyLong}},
	}}
	r, err := NewRunner(testConfig(), strat, permit.NewGate(nil), b, nil)
	require.NoError(t, err)

	r.cycle(context.Background())

	history := b.History()
	require.Len(t, history, 1)
	assert.Equal(t, broker.Buy, history[0].Order.Kind)
	assert.Equal(t, int64(10), history[0].Order.Shares)
	assert.True(t, history[0].Order.Price.Equal(d("150")))

	require.Len(t, strat.fills, 1, "strategy observes its fill")
}

func TestSharesClampedToMaxOrderSize(t *testing.T) {
	t.Parallel()

	b, quotes, _ := testRig(t, "100000")
	quotes.Set(market.Quote{Symbol: "AAPL", Price: d("10"), Time: time.Now()})

	cfg := testConfig()
	cfg.OrderShares = 500
	cfg.MaxOrderShares = 25

	strat := &scripted{cycles: [][]strategies.Decision{
		{{Symbol: "AAPL", Intent: strategies.BuyLong}},
	}}
	r, err := NewRunner(cfg, strat, permit.NewGate(nil), b, nil)
	require.NoError(t, err)

	r.cycle(context.Background())

	history := b.History()
	require.Len(t, history, 1)
	assert.Equal(t, int64(25), history[0].Order.Shares)
}

func TestDeniedOrderIsRecordedNotExecuted(t *testing.T) {
	t.Parallel()

	b, quotes, _ := testRig(t, "100000")
	quotes.Set(market.Quote{Symbol: "AAPL", Price: d("150"), Time: time.Now()})

	gate := permit.NewGate(permit.Set{broker.Buy: false, broker.Sell: true})
	strat := &scripted{cycles: [][]strategies.Decision{
		{{Symbol: "AAPL", Intent: strategies.BuyLong}},
	}}
	j := &recordingJournal{}
	r, err := NewRunner(testConfig(), strat, gate, b, j)
	require.NoError(t, err)

	r.cycle(context.Background())

	assert.Empty(t, b.History(), "denied order never reaches the broker")
	skips := j.Skips()
	require.Len(t, skips, 1)
	assert.Equal(t, "AAPL", skips[0].Symbol)
	assert.Equal(t, broker.Buy.String(), skips[0].Kind)
}

func TestQuoteFailureSkipsOnlyThatSymbol(t *testing.T) {
	t.Parallel()

	b, quotes, _ := testRig(t, "100000")
	quotes.Set(market.Quote{Symbol: "AAPL", Price: d("150"), Time: time.Now()})
	// TSLA has no quote

	cfg := testConfig()
	cfg.Symbols = []string{"AAPL", "TSLA"}

	strat := &scripted{cycles: [][]strategies.Decision{
		{{Symbol: "AAPL", Intent: strategies.BuyLong}},
	}}
	r, err := NewRunner(cfg, strat, permit.NewGate(nil), b, nil)
	require.NoError(t, err)

	r.cycle(context.Background())

	history := b.History()
	require.Len(t, history, 1)
	assert.Equal(t, "AAPL", history[0].Order.Symbol)
}

func TestInsufficientBalanceContainedToCycle(t *testing.T) {
	t.Parallel()

	b, quotes, _ := testRig(t, "100")
	quotes.Set(market.Quote{Symbol: "AAPL", Price: d("150"), Time: time.Now()})

	strat := &scripted{cycles: [][]strategies.Decision{
		{{Symbol: "AAPL", Intent: strategies.BuyLong}},
	}}
	j := &recordingJournal{}
	r, err := NewRunner(testConfig(), strat, permit.NewGate(nil), b, j)
	require.NoError(t, err)

	r.cycle(context.Background())

	assert.Empty(t, b.History())
	require.Len(t, j.Skips(), 1)
}

// halfFilled executes every order but fails afterwards, the way a live
// broker does when the post-fill account query errors.
type halfFilled struct {
	quotes *market.QuoteStore
	placed []broker.Order
}

func (h *halfFilled) Connected() bool { return true }

func (h *halfFilled) GetQuote(ctx context.Context, symbol string) (market.Quote, error) {
	return h.quotes.GetQuote(ctx, symbol)
}

func (h *halfFilled) GetAccount(ctx context.Context) (ledger.Account, error) {
	return *ledger.New(d("100000")), nil
}

func (h *halfFilled) Execute(ctx context.Context, o broker.Order) (broker.TradeRecord, error) {
	h.placed = append(h.placed, o)
	rec := broker.TradeRecord{ID: "01TESTFILL", Order: o, Source: broker.SourceLive}
	return rec, errors.New("account after fill: gateway hiccup")
}

func TestExecutedOrderWithFollowUpFailureIsNotASkip(t *testing.T) {
	t.Parallel()

	quotes := market.NewQuoteStore()
	quotes.Set(market.Quote{Symbol: "AAPL", Price: d("150"), Time: time.Now()})
	b := &halfFilled{quotes: quotes}

	strat := &scripted{cycles: [][]strategies.Decision{
		{{Symbol: "AAPL", Intent: strategies.BuyLong}},
	}}
	j := &recordingJournal{}
	r, err := NewRunner(testConfig(), strat, permit.NewGate(nil), b, j)
	require.NoError(t, err)

	r.cycle(context.Background())

	require.Len(t, b.placed, 1)
	assert.Empty(t, j.Skips(), "a filled order is never recorded as a skip")
	require.Len(t, strat.fills, 1, "strategy still observes the fill")
	assert.Equal(t, "01TESTFILL", strat.fills[0].ID)
}

func TestRunStopsWithinOneInterval(t *testing.T) {
	t.Parallel()

	b, quotes, _ := testRig(t, "100000")
	quotes.Set(market.Quote{Symbol: "AAPL", Price: d("150"), Time: time.Now()})

	cfg := testConfig()
	cfg.PollInterval = 10 * time.Millisecond

	strat := &scripted{}
	r, err := NewRunner(cfg, strat, permit.NewGate(nil), b, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.Equal(t, Stopped, r.State())
}
