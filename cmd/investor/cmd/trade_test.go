package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/investor/store"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type gwFrame struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// quoteGateway answers the session handshake and serves one canned quote.
func quoteGateway(t *testing.T, symbol, price string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var req gwFrame
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := gwFrame{ID: req.ID}
			switch req.Method {
			case "hello":
				resp.Result = json.RawMessage(`{}`)
			case "quote":
				resp.Result = json.RawMessage(fmt.Sprintf(
					`{"symbol": %q, "price": %s, "time": "2026-03-02T14:30:00Z"}`, symbol, price))
			default:
				resp.Error = "unknown method " + req.Method
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
}

func writeTestConfig(t *testing.T, dir string, srv *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	path := filepath.Join(dir, "investor.yaml")
	body := fmt.Sprintf(`account:
  state_path: %s
  journal_path: ""
live:
  host: %s
  port: %d
`, filepath.Join(dir, "account.json"), u.Hostname(), port)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// A manual buy without --price must fill at the gateway's current quote.
func TestBuyWithoutPriceFillsAtGatewayQuote(t *testing.T) {
	srv := quoteGateway(t, "AAPL", "151.5")
	defer srv.Close()

	dir := t.TempDir()
	cfgFile := writeTestConfig(t, dir, srv)

	rootCmd.SetArgs([]string{"init", "--balance", "100000", "-c", cfgFile})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"buy", "--symbol", "AAPL", "--shares", "2", "-c", cfgFile})
	require.NoError(t, rootCmd.Execute())

	st, err := store.New(filepath.Join(dir, "account.json")).Load()
	require.NoError(t, err)
	assert.True(t, st.Cash.Equal(decimal.RequireFromString("99697")), "cash = %s", st.Cash)
	assert.Equal(t, int64(2), st.Positions["AAPL"].LongShares)
	require.Len(t, st.TradeHistory, 1)
	assert.True(t, st.TradeHistory[0].Order.Price.Equal(decimal.RequireFromString("151.5")))
}
