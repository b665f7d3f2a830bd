package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/investor/broker"
	"github.com/rustyeddy/investor/ledger"
)

func sampleState(t *testing.T) *State {
	t.Helper()

	acct := ledger.New(decimal.RequireFromString("100000"))
	require.NoError(t, acct.ApplyBuy("AAPL", 10, decimal.RequireFromString("150.25")))
	require.NoError(t, acct.ApplyShortSell("TSLA", 5, decimal.RequireFromString("200")))

	pnl := decimal.RequireFromString("40")
	return &State{
		Account: *acct,
		TradeHistory: []broker.TradeRecord{
			{
				ID: "01K0000000000000000000TEST",
				Order: broker.Order{
					Symbol: "AAPL",
					Kind:   broker.Buy,
					Shares: 10,
					Price:  decimal.RequireFromString("150.25"),
					Time:   time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC),
				},
				ResultingCash: acct.Cash,
				Source:        broker.SourcePaper,
			},
			{
				ID:            "01K0000000000000000000TES2",
				Order:         broker.Order{Symbol: "AAPL", Kind: broker.Sell, Shares: 4, Price: decimal.RequireFromString("160")},
				ResultingCash: acct.Cash,
				RealizedPL:    &pnl,
				Source:        broker.SourcePaper,
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "account.json")
	s := New(path)
	st := sampleState(t)

	require.NoError(t, s.Save(st))
	loaded, err := s.Load()
	require.NoError(t, err)

	// save(load(save(x))) == save(x)
	require.NoError(t, s.Save(loaded))
	again, err := s.Load()
	require.NoError(t, err)

	assert.True(t, again.Cash.Equal(st.Cash))
	assert.True(t, again.Realized.Equal(st.Realized))
	assert.Equal(t, len(st.Positions), len(again.Positions))
	for sym, want := range st.Positions {
		got := again.Positions[sym]
		assert.Equal(t, want.LongShares, got.LongShares, sym)
		assert.Equal(t, want.ShortShares, got.ShortShares, sym)
		assert.True(t, want.LongAvgCost.Equal(got.LongAvgCost), sym)
		assert.True(t, want.ShortAvgCost.Equal(got.ShortAvgCost), sym)
	}
	require.Len(t, again.TradeHistory, 2)
	assert.Equal(t, st.TradeHistory[0].ID, again.TradeHistory[0].ID)
	require.NotNil(t, again.TradeHistory[1].RealizedPL)
	assert.True(t, again.TradeHistory[1].RealizedPL.Equal(pnlOf(st)))
}

func pnlOf(st *State) decimal.Decimal {
	return *st.TradeHistory[1].RealizedPL
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "nope.json"))
	_, err := s.Load()
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, s.Exists())
}

func TestLoadCorrupted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"truncated_json", `{"cash": 100`},
		{"negative_cash", `{"cash": -5, "positions": {}, "tradeHistory": []}`},
		{"negative_shares", `{"cash": 10, "positions": {"AAPL": {"longShares": -1, "longAvgCost": 0, "shortShares": 0, "shortAvgCost": 0}}}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "account.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			_, err := New(path).Load()
			require.ErrorIs(t, err, ErrCorrupted)
		})
	}
}

func TestSaveRefusesAfterFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(filepath.Join(dir, "sub", "account.json")) // parent dir missing
	err := s.Save(sampleState(t))
	require.Error(t, err)

	// the store stays disabled and keeps surfacing the original failure
	err2 := s.Save(sampleState(t))
	require.Error(t, err2)
	assert.Contains(t, err2.Error(), "store disabled")
}

func TestAtomicReplaceKeepsOldStateOnDisk(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "account.json")
	s := New(path)
	require.NoError(t, s.Save(sampleState(t)))

	// no temp droppings next to the state file
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "account.json", entries[0].Name())
}
