package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/investor/broker"
)

// SQLite stores journal rows in a local database file. Prices and cash are
// stored as TEXT so decimal values survive exactly.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t broker.TradeRecord) error {
	var pl any
	if t.RealizedPL != nil {
		pl = t.RealizedPL.String()
	}
	_, err := j.db.Exec(`
		INSERT INTO trades (id, symbol, kind, shares, price, resulting_cash, realized_pl, source, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Order.Symbol, t.Order.Kind.String(), t.Order.Shares,
		t.Order.Price.String(), t.ResultingCash.String(), pl, string(t.Source), t.Order.Time,
	)
	return err
}

func (j *SQLite) RecordSkip(s Skip) error {
	_, err := j.db.Exec(`
		INSERT INTO skips (time, symbol, kind, reason)
		VALUES (?, ?, ?, ?)`,
		s.Time, s.Symbol, s.Kind, s.Reason,
	)
	return err
}

// RecentTrades returns up to limit trades, newest first.
func (j *SQLite) RecentTrades(limit int) ([]broker.TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, symbol, kind, shares, price, resulting_cash, realized_pl, source, time
		FROM trades
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []broker.TradeRecord
	for rows.Next() {
		var (
			rec          broker.TradeRecord
			kind, price  string
			cash, source string
			pl           sql.NullString
			ts           time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.Order.Symbol, &kind, &rec.Order.Shares,
			&price, &cash, &pl, &source, &ts); err != nil {
			return nil, err
		}
		if rec.Order.Kind, err = parseKind(kind); err != nil {
			return nil, err
		}
		if rec.Order.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("trade %s: bad price %q: %w", rec.ID, price, err)
		}
		if rec.ResultingCash, err = decimal.NewFromString(cash); err != nil {
			return nil, fmt.Errorf("trade %s: bad cash %q: %w", rec.ID, cash, err)
		}
		if pl.Valid {
			v, err := decimal.NewFromString(pl.String)
			if err != nil {
				return nil, fmt.Errorf("trade %s: bad realized_pl %q: %w", rec.ID, pl.String, err)
			}
			rec.RealizedPL = &v
		}
		rec.Order.Time = ts
		rec.Source = broker.Source(source)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func parseKind(s string) (broker.OrderKind, error) {
	for _, k := range broker.Kinds() {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown order kind %q", s)
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
