// Package bot runs the polling decision loop: once per interval it quotes
// the watchlist, asks the active strategy for intents, and submits the
// resulting orders through the permission gate to the active broker. One
// runner per process; cycles never overlap.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/investor/broker"
	"github.com/rustyeddy/investor/journal"
	"github.com/rustyeddy/investor/market"
	"github.com/rustyeddy/investor/permit"
	"github.com/rustyeddy/investor/strategies"
)

// State is where the loop currently is. Stopped is terminal.
type State int

const (
	Idle State = iota
	Polling
	Deciding
	Submitting
	Sleeping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Deciding:
		return "deciding"
	case Submitting:
		return "submitting"
	case Sleeping:
		return "sleeping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config is everything the loop needs beyond its collaborators. These come
// from flags and environment, never from persisted state.
type Config struct {
	Symbols        []string
	PollInterval   time.Duration
	OrderShares    int64 // shares per submitted order
	MaxOrderShares int64 // hard clamp applied before the gate
}

func (c Config) validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("bot: empty watchlist")
	}
	if c.PollInterval <= 0 {
		return errors.New("bot: poll interval must be positive")
	}
	if c.OrderShares <= 0 {
		return errors.New("bot: order shares must be positive")
	}
	if c.MaxOrderShares <= 0 {
		return errors.New("bot: max order shares must be positive")
	}
	return nil
}

// Runner drives one strategy against one broker.
type Runner struct {
	cfg      Config
	strategy strategies.Strategy
	gate     *permit.Gate
	broker   broker.Broker
	journal  journal.Journal

	mu    sync.Mutex
	state State
}

func NewRunner(cfg Config, strat strategies.Strategy, gate *permit.Gate, b broker.Broker, j journal.Journal) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if j == nil {
		j = journal.Noop{}
	}
	return &Runner{
		cfg:      cfg,
		strategy: strat,
		gate:     gate,
		broker:   b,
		journal:  j,
		state:    Idle,
	}, nil
}

// State reports the loop's current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run cycles until ctx is cancelled. The stop check sits at the top of each
// cycle, so a stop request is honored within one poll interval and never
// interrupts a submission in flight.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("bot starting",
		"strategy", r.strategy.Name(),
		"symbols", r.cfg.Symbols,
		"poll_interval", r.cfg.PollInterval,
	)

	for {
		if ctx.Err() != nil {
			r.setState(Stopped)
			slog.Info("bot stopped")
			return nil
		}

		r.cycle(ctx)

		r.setState(Sleeping)
		select {
		case <-ctx.Done():
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// cycle runs one Polling→Deciding→Submitting pass. It never returns an
// error: every failure inside a cycle is logged, recorded and contained.
func (r *Runner) cycle(ctx context.Context) {
	r.setState(Polling)
	quotes := r.poll(ctx)
	if len(quotes) == 0 {
		slog.Warn("no symbol could be quoted this cycle")
		return
	}

	r.setState(Deciding)
	acct, err := r.broker.GetAccount(ctx)
	if err != nil {
		slog.Error("account unavailable, skipping cycle", "error", err)
		return
	}
	decisions, err := r.strategy.Decide(ctx, acct, quotes)
	if err != nil {
		slog.Error("strategy failed, skipping cycle", "strategy", r.strategy.Name(), "error", err)
		return
	}

	r.setState(Submitting)
	r.submit(ctx, decisions, quotes)
}

// poll quotes every watched symbol. A failed symbol is skipped this cycle,
// never fatal.
func (r *Runner) poll(ctx context.Context) map[string]market.Quote {
	quotes := make(map[string]market.Quote, len(r.cfg.Symbols))
	for _, sym := range r.cfg.Symbols {
		q, err := r.broker.GetQuote(ctx, sym)
		if err != nil {
			slog.Warn("quote failed, skipping symbol", "symbol", sym, "error", err)
			continue
		}
		quotes[sym] = q
	}
	return quotes
}

func (r *Runner) submit(ctx context.Context, decisions []strategies.Decision, quotes map[string]market.Quote) {
	suspended := false

	for _, dec := range decisions {
		kind, ok := dec.Intent.OrderKind()
		if !ok {
			continue // hold
		}
		if suspended {
			r.skip(dec.Symbol, kind, "submission suspended this cycle")
			continue
		}

		q, ok := quotes[dec.Symbol]
		if !ok {
			r.skip(dec.Symbol, kind, "no quote this cycle")
			continue
		}

		order := broker.Order{
			Symbol: dec.Symbol,
			Kind:   kind,
			Shares: r.clamp(r.cfg.OrderShares),
			Price:  q.Price,
			Time:   q.Time,
		}

		if err := r.gate.Check(order); err != nil {
			slog.Warn("order denied", "symbol", order.Symbol, "kind", order.Kind.String(), "error", err)
			r.skip(order.Symbol, order.Kind, err.Error())
			continue
		}

		rec, err := r.broker.Execute(ctx, order)
		switch {
		case err == nil:
			slog.Info("order executed",
				"id", rec.ID,
				"symbol", order.Symbol,
				"kind", order.Kind.String(),
				"shares", order.Shares,
				"price", order.Price,
				"cash", rec.ResultingCash,
			)
			if obs, ok := r.strategy.(strategies.FillObserver); ok {
				obs.OnFill(rec)
			}
		case rec.ID != "":
			// the broker filled the order before failing; it is already in
			// the audit trail, not a skip
			slog.Warn("order executed, follow-up failed",
				"id", rec.ID, "symbol", order.Symbol, "kind", order.Kind.String(), "error", err)
			if obs, ok := r.strategy.(strategies.FillObserver); ok {
				obs.OnFill(rec)
			}
			if errors.Is(err, broker.ErrBrokerDisconnected) {
				suspended = true
			}
		case errors.Is(err, broker.ErrBrokerDisconnected), errors.Is(err, broker.ErrExecutionDisabled):
			// live execution is down; keep monitoring, stop submitting
			slog.Error("live execution unavailable for the rest of the cycle", "error", err)
			r.skip(order.Symbol, order.Kind, err.Error())
			suspended = true
		default:
			slog.Warn("order rejected", "symbol", order.Symbol, "kind", order.Kind.String(), "error", err)
			r.skip(order.Symbol, order.Kind, err.Error())
		}
	}
}

func (r *Runner) clamp(shares int64) int64 {
	if shares > r.cfg.MaxOrderShares {
		return r.cfg.MaxOrderShares
	}
	return shares
}

func (r *Runner) skip(symbol string, kind broker.OrderKind, reason string) {
	err := r.journal.RecordSkip(journal.Skip{
		Time:   time.Now().UTC(),
		Symbol: symbol,
		Kind:   kind.String(),
		Reason: reason,
	})
	if err != nil {
		slog.Error("journal skip failed", "symbol", symbol, "error", err)
	}
}
