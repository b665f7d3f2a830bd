// Package gateway implements the live brokerage session over a JSON
// websocket connection to a local trading gateway. It satisfies
// live.Session; the connector above it owns execution gating, timeouts and
// retry policy.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/investor/broker"
	"github.com/rustyeddy/investor/broker/live"
	"github.com/rustyeddy/investor/ledger"
	"github.com/rustyeddy/investor/market"
)

// Config locates the gateway process.
type Config struct {
	Host     string
	Port     int
	ClientID int

	// DialTimeout bounds the initial connection attempt.
	DialTimeout time.Duration
}

func (c Config) url() string {
	return fmt.Sprintf("ws://%s:%d/session", c.Host, c.Port)
}

// request/response frames. Every request carries a fresh ID; the gateway
// echoes it back so one in-flight call at a time is all we need.
type request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Session is a live.Session over one websocket connection. Calls are
// serialized: the gateway protocol is strict request/response.
type Session struct {
	cfg Config

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID atomic.Uint64
	up     atomic.Bool
}

func Dial(cfg Config) (*Session, error) {
	return DialURL(cfg.url(), cfg)
}

// DialURL connects to an explicit websocket URL. Dial derives the URL from
// host and port; tests point this at a local server.
func DialURL(url string, cfg Config) (*Session, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 15 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway %s: %w", url, err)
	}

	s := &Session{cfg: cfg, conn: conn}
	s.up.Store(true)

	if err := s.call(context.Background(), "hello", helloParams{ClientID: cfg.ClientID}, nil); err != nil {
		conn.Close()
		s.up.Store(false)
		return nil, fmt.Errorf("gateway handshake: %w", err)
	}
	slog.Info("gateway session established", "host", cfg.Host, "port", cfg.Port, "client_id", cfg.ClientID)
	return s, nil
}

type helloParams struct {
	ClientID int `json:"clientId"`
}

func (s *Session) Connected() bool { return s.up.Load() }

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.up.Store(false)
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// call sends one request and decodes the matching response into out. A
// transport error marks the session down; subsequent calls fail with
// broker.ErrBrokerDisconnected until a new session is dialed.
func (s *Session) call(ctx context.Context, method string, params any, out any) error {
	if !s.up.Load() {
		return broker.ErrBrokerDisconnected
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}
	req := request{ID: s.nextID.Add(1), Method: method, Params: raw}

	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Now().Add(30 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		s.markDown(err)
		return fmt.Errorf("%s: %w", method, broker.ErrBrokerDisconnected)
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		s.markDown(err)
		return fmt.Errorf("%s: %w", method, broker.ErrBrokerDisconnected)
	}

	if err := s.conn.WriteJSON(req); err != nil {
		s.markDown(err)
		return fmt.Errorf("%s: %w", method, broker.ErrBrokerDisconnected)
	}

	for {
		var resp response
		if err := s.conn.ReadJSON(&resp); err != nil {
			s.markDown(err)
			return fmt.Errorf("%s: %w", method, broker.ErrBrokerDisconnected)
		}
		if resp.ID != req.ID {
			// stale frame from an earlier timed-out call
			continue
		}
		if resp.Error != "" {
			return fmt.Errorf("%s: gateway: %s", method, resp.Error)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}
}

func (s *Session) markDown(cause error) {
	if s.up.CompareAndSwap(true, false) {
		slog.Error("gateway session lost", "error", cause)
		s.conn.Close()
	}
}

type capabilitiesResult struct {
	Shortable bool `json:"shortable"`
}

func (s *Session) Capabilities(ctx context.Context) (live.Capabilities, error) {
	var res capabilitiesResult
	if err := s.call(ctx, "capabilities", struct{}{}, &res); err != nil {
		return live.Capabilities{}, err
	}
	return live.Capabilities{Shortable: res.Shortable}, nil
}

type quoteResult struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Time   time.Time       `json:"time"`
}

func (s *Session) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	var res quoteResult
	err := s.call(ctx, "quote", map[string]string{"symbol": symbol}, &res)
	if err != nil {
		return market.Quote{}, err
	}
	if !res.Price.IsPositive() {
		return market.Quote{}, fmt.Errorf("%s: %w", symbol, market.ErrQuoteUnavailable)
	}
	return market.Quote{Symbol: res.Symbol, Price: res.Price, Time: res.Time}, nil
}

type accountResult struct {
	Cash      decimal.Decimal `json:"cash"`
	Positions []struct {
		Symbol       string          `json:"symbol"`
		LongShares   int64           `json:"longShares"`
		LongAvgCost  decimal.Decimal `json:"longAvgCost"`
		ShortShares  int64           `json:"shortShares"`
		ShortAvgCost decimal.Decimal `json:"shortAvgCost"`
	} `json:"positions"`
}

func (s *Session) Account(ctx context.Context) (ledger.Account, error) {
	var res accountResult
	if err := s.call(ctx, "account", struct{}{}, &res); err != nil {
		return ledger.Account{}, err
	}

	acct := ledger.Account{
		Cash:      res.Cash,
		Positions: make(map[string]ledger.Position, len(res.Positions)),
	}
	for _, p := range res.Positions {
		acct.Positions[p.Symbol] = ledger.Position{
			LongShares:   p.LongShares,
			LongAvgCost:  p.LongAvgCost,
			ShortShares:  p.ShortShares,
			ShortAvgCost: p.ShortAvgCost,
		}
	}
	return acct, nil
}

type placeParams struct {
	Symbol string          `json:"symbol"`
	Kind   string          `json:"kind"`
	Shares int64           `json:"shares"`
	Price  decimal.Decimal `json:"price"`
}

type placeResult struct {
	Shares     int64            `json:"shares"`
	Price      decimal.Decimal  `json:"price"`
	RealizedPL *decimal.Decimal `json:"realizedPnL,omitempty"`
	Time       time.Time        `json:"time"`
}

func (s *Session) Place(ctx context.Context, o broker.Order) (live.Fill, error) {
	params := placeParams{
		Symbol: o.Symbol,
		Kind:   o.Kind.String(),
		Shares: o.Shares,
		Price:  o.Price,
	}
	var res placeResult
	if err := s.call(ctx, "place", params, &res); err != nil {
		return live.Fill{}, err
	}
	return live.Fill{
		Shares:     res.Shares,
		Price:      res.Price,
		RealizedPL: res.RealizedPL,
		Time:       res.Time,
	}, nil
}
