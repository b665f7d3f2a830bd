// Package store persists account state durably as a JSON file. Writes are
// atomic (temp file + rename) so no reader ever observes a partial file,
// and the file round-trips exactly: load → save → load yields an identical
// account.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/investor/broker"
	"github.com/rustyeddy/investor/ledger"
)

// ErrCorrupted means the state file exists but cannot be trusted. Fatal at
// startup: the operator must decide before a fresh account is fabricated.
var ErrCorrupted = errors.New("persisted state corrupted")

func init() {
	// Cash, prices and P&L serialize as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// State is everything the account file holds: the ledger plus the
// append-only trade history.
type State struct {
	ledger.Account
	TradeHistory []broker.TradeRecord `json:"tradeHistory"`
}

// Store reads and writes one account file. After a failed write the store
// refuses further saves and keeps surfacing the original error; the ledger
// in memory stays authoritative but must not silently diverge from disk.
type Store struct {
	mu       sync.Mutex
	path     string
	writeErr error
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Exists reports whether the account file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads and validates the account file. A missing file is returned as
// os.ErrNotExist; anything unreadable or inconsistent is ErrCorrupted.
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	st := &State{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", s.path, err, ErrCorrupted)
	}
	if err := validate(st); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", s.path, err, ErrCorrupted)
	}
	if st.Positions == nil {
		st.Positions = make(map[string]ledger.Position)
	}
	return st, nil
}

func validate(st *State) error {
	if st.Cash.IsNegative() {
		return fmt.Errorf("negative cash %s", st.Cash)
	}
	for sym, p := range st.Positions {
		if sym == "" {
			return errors.New("empty position symbol")
		}
		if p.LongShares < 0 || p.ShortShares < 0 {
			return fmt.Errorf("%s: negative share count", sym)
		}
		if p.LongAvgCost.IsNegative() || p.ShortAvgCost.IsNegative() {
			return fmt.Errorf("%s: negative average cost", sym)
		}
	}
	return nil
}

// Save atomically replaces the account file with the given state.
func (s *Store) Save(st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return fmt.Errorf("store disabled after earlier failure: %w", s.writeErr)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := s.writeAtomic(data); err != nil {
		s.writeErr = err
		return err
	}
	return nil
}

func (s *Store) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	if werr == nil {
		werr = tmp.Sync()
	}
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		if werr == nil {
			werr = cerr
		}
		return fmt.Errorf("write temp state file: %w", werr)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
