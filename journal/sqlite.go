package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema in %s: %w", path, err)
	}

	return &SQLite{db: db}, nil
}

// RecordRun inserts or replaces the run row and its metrics.
func (j *SQLite) RecordRun(r RunRecord) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO runs
		(run_id, created, strategy, symbols, dataset, config, start_time, end_time, initial_capital, final_equity, fills, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Strategy, r.Symbols, r.Dataset, r.Config,
		r.Start, r.End, r.InitialCapital, r.FinalEquity, r.Fills, r.Error,
	)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM metrics WHERE run_id = ?`, r.RunID); err != nil {
		return err
	}
	for name, v := range r.Metrics {
		if _, err := tx.Exec(`INSERT INTO metrics (run_id, name, value) VALUES (?, ?, ?)`, r.RunID, name, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (j *SQLite) RecordFill(f FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(run_id, fill_id, order_id, symbol, time, side, quantity, requested, price, ref_price, commission)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.RunID, f.FillID, f.OrderID, f.Symbol, f.Time, f.Side,
		f.Quantity, f.Requested, f.Price, f.RefPrice, f.Commission,
	)
	return err
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(run_id, symbol, side, quantity, open_time, close_time, realized_pl)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Symbol, t.Side, t.Quantity, t.OpenTime, t.CloseTime, t.RealizedPL,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquityRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (run_id, time, equity, cash)
		VALUES (?, ?, ?, ?)`,
		e.RunID, e.Time, e.Equity, e.Cash,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
