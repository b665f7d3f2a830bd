package strategies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/investor/ledger"
	"github.com/rustyeddy/investor/market"
)

// fixedPolicy returns the same action indices every cycle and remembers the
// observations it was shown.
type fixedPolicy struct {
	actions []int
	seen    [][]float32
}

func (f *fixedPolicy) Decide(obs []float32) ([]int, error) {
	f.seen = append(f.seen, append([]float32(nil), obs...))
	return f.actions, nil
}

func (f *fixedPolicy) Close() error { return nil }

func TestPolicyStrategyDecodesPerSymbol(t *testing.T) {
	t.Parallel()

	// symbols are sorted: AAPL gets action 2 (buy), TSLA gets 4 (short)
	model := &fixedPolicy{actions: []int{2, 4}}
	ps, err := NewPolicyStrategy(model, []string{"TSLA", "AAPL"}, 3)
	require.NoError(t, err)

	acct := ledger.New(d("10000"))
	quotes := map[string]market.Quote{
		"AAPL": {Symbol: "AAPL", Price: d("150")},
		"TSLA": {Symbol: "TSLA", Price: d("200")},
	}

	ds, err := ps.Decide(context.Background(), *acct, quotes)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "AAPL", ds[0].Symbol)
	assert.Equal(t, BuyLong, ds[0].Intent)
	assert.Equal(t, "TSLA", ds[1].Symbol)
	assert.Equal(t, ShortSell, ds[1].Intent)
}

func TestPolicyStrategyObservationShape(t *testing.T) {
	t.Parallel()

	model := &fixedPolicy{actions: []int{1, 1}}
	ps, err := NewPolicyStrategy(model, []string{"AAPL", "TSLA"}, 4)
	require.NoError(t, err)

	// 1 cash + 2 symbols * (2 position + 4 window)
	assert.Equal(t, 13, ps.ObservationLen())

	acct := ledger.New(d("10000"))
	quotes := map[string]market.Quote{
		"AAPL": {Symbol: "AAPL", Price: d("150")},
		"TSLA": {Symbol: "TSLA", Price: d("200")},
	}
	_, err = ps.Decide(context.Background(), *acct, quotes)
	require.NoError(t, err)

	require.Len(t, model.seen, 1)
	assert.Len(t, model.seen[0], ps.ObservationLen(), "observation length is fixed")
	assert.Equal(t, float32(10000), model.seen[0][0], "cash leads the vector")
}

func TestPolicyStrategySkipsUnquotedSymbols(t *testing.T) {
	t.Parallel()

	model := &fixedPolicy{actions: []int{2, 2}}
	ps, err := NewPolicyStrategy(model, []string{"AAPL", "TSLA"}, 2)
	require.NoError(t, err)

	acct := ledger.New(d("10000"))
	quotes := map[string]market.Quote{
		"AAPL": {Symbol: "AAPL", Price: d("150")},
	}

	ds, err := ps.Decide(context.Background(), *acct, quotes)
	require.NoError(t, err)
	require.Len(t, ds, 1, "unquoted symbol sits the cycle out")
	assert.Equal(t, "AAPL", ds[0].Symbol)
}

func TestPolicyStrategyRejectsBadIndex(t *testing.T) {
	t.Parallel()

	model := &fixedPolicy{actions: []int{7}}
	ps, err := NewPolicyStrategy(model, []string{"AAPL"}, 2)
	require.NoError(t, err)

	acct := ledger.New(d("10000"))
	_, err = ps.Decide(context.Background(), *acct, map[string]market.Quote{
		"AAPL": {Symbol: "AAPL", Price: d("150")},
	})
	require.ErrorIs(t, err, ErrInvalidAction)
}
