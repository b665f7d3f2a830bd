// Package permit is the authorization checkpoint between decision and
// execution. Every order passes through one Gate before it may reach a
// broker, whatever strategy produced it.
package permit

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rustyeddy/investor/broker"
)

// ErrPermissionDenied rejects an order whose kind is not authorized.
var ErrPermissionDenied = errors.New("permission denied")

// Set maps each order kind to whether it is allowed.
type Set map[broker.OrderKind]bool

// AllowAll permits every order kind.
func AllowAll() Set {
	s := make(Set, len(broker.Kinds()))
	for _, k := range broker.Kinds() {
		s[k] = true
	}
	return s
}

// Gate checks orders against a configured permission set, narrowed by
// broker-reported account capabilities. A live account that cannot short
// force-denies ShortSell and BuyToCover regardless of configuration.
type Gate struct {
	mu      sync.RWMutex
	allowed Set
	noShort bool
}

func NewGate(allowed Set) *Gate {
	if allowed == nil {
		allowed = AllowAll()
	}
	return &Gate{allowed: allowed}
}

// RestrictShorting force-denies short-side kinds. Called when a live broker
// reports the account is not permitted to short.
func (g *Gate) RestrictShorting() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.noShort {
		slog.Warn("account cannot short, disabling short-side orders")
	}
	g.noShort = true
}

// Allowed reports whether the kind would currently pass the gate.
func (g *Gate) Allowed(kind broker.OrderKind) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.noShort && (kind == broker.ShortSell || kind == broker.BuyToCover) {
		return false
	}
	return g.allowed[kind]
}

// Check authorizes the order or fails with ErrPermissionDenied. It never
// mutates anything; a denied order leaves no trace beyond the caller's log.
func (g *Gate) Check(o broker.Order) error {
	if g.Allowed(o.Kind) {
		return nil
	}
	return fmt.Errorf("%s %s: %w", o.Kind, o.Symbol, ErrPermissionDenied)
}
