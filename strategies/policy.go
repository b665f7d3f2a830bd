package strategies

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rustyeddy/investor/ledger"
	"github.com/rustyeddy/investor/market"
	"github.com/rustyeddy/investor/policy"
)

// PolicyStrategy feeds the trained policy an observation vector and decodes
// the returned action indices. The observation layout is fixed per run:
//
//	[cash, then per symbol: longShares, shortShares, window of recent prices]
//
// Symbols are ordered as configured so the vector layout matches the
// exported model. Missing quotes repeat the last known price, so the vector
// length never varies.
type PolicyStrategy struct {
	model   policy.Policy
	symbols []string
	window  int

	mu      sync.Mutex
	history map[string][]float32
}

func NewPolicyStrategy(model policy.Policy, symbols []string, window int) (*PolicyStrategy, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("policy strategy needs at least one symbol")
	}
	if window < 1 {
		return nil, fmt.Errorf("price window must be at least 1, got %d", window)
	}
	ordered := append([]string(nil), symbols...)
	sort.Strings(ordered)
	return &PolicyStrategy{
		model:   model,
		symbols: ordered,
		window:  window,
		history: make(map[string][]float32, len(ordered)),
	}, nil
}

// ObservationLen is the vector length the exported model must accept.
func (p *PolicyStrategy) ObservationLen() int {
	return 1 + len(p.symbols)*(2+p.window)
}

func (p *PolicyStrategy) Name() string { return "policy" }

func (p *PolicyStrategy) Decide(ctx context.Context, acct ledger.Account, quotes map[string]market.Quote) ([]Decision, error) {
	p.mu.Lock()
	obs := p.observeLocked(acct, quotes)
	p.mu.Unlock()

	indices, err := p.model.Decide(obs)
	if err != nil {
		return nil, fmt.Errorf("policy decide: %w", err)
	}
	if len(indices) != len(p.symbols) {
		return nil, fmt.Errorf("policy returned %d actions for %d symbols", len(indices), len(p.symbols))
	}

	decisions := make([]Decision, 0, len(p.symbols))
	for i, sym := range p.symbols {
		if _, quoted := quotes[sym]; !quoted {
			// no price this cycle, the symbol sits out
			continue
		}
		intent, err := DecodeAction(indices[i], acct.Position(sym))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sym, err)
		}
		decisions = append(decisions, Decision{
			Symbol: sym,
			Intent: intent,
			Reason: fmt.Sprintf("policy action %d", indices[i]),
		})
	}
	return decisions, nil
}

func (p *PolicyStrategy) observeLocked(acct ledger.Account, quotes map[string]market.Quote) []float32 {
	cash, _ := acct.Cash.Float64()
	obs := make([]float32, 0, p.ObservationLen())
	obs = append(obs, float32(cash))

	for _, sym := range p.symbols {
		if q, ok := quotes[sym]; ok {
			px, _ := q.Price.Float64()
			p.push(sym, float32(px))
		}

		pos := acct.Position(sym)
		obs = append(obs, float32(pos.LongShares), float32(pos.ShortShares))

		hist := p.history[sym]
		for i := p.window; i > 0; i-- {
			if len(hist) >= i {
				obs = append(obs, hist[len(hist)-i])
			} else if len(hist) > 0 {
				obs = append(obs, hist[0])
			} else {
				obs = append(obs, 0)
			}
		}
	}
	return obs
}

func (p *PolicyStrategy) push(sym string, px float32) {
	hist := append(p.history[sym], px)
	if len(hist) > p.window {
		hist = hist[len(hist)-p.window:]
	}
	p.history[sym] = hist
}
