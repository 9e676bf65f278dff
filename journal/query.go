package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrRunNotFound = errors.New("run not found")

// GetRun returns a run summary with its metrics.
func (j *SQLite) GetRun(runID string) (RunRecord, error) {
	var r RunRecord
	var start, end sql.NullTime

	row := j.db.QueryRow(`
		SELECT run_id, created, strategy, symbols, dataset, config, start_time, end_time, initial_capital, final_equity, fills, error
		FROM runs
		WHERE run_id = ?`, runID)

	err := row.Scan(
		&r.RunID,
		&r.Created,
		&r.Strategy,
		&r.Symbols,
		&r.Dataset,
		&r.Config,
		&start,
		&end,
		&r.InitialCapital,
		&r.FinalEquity,
		&r.Fills,
		&r.Error,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, fmt.Errorf("%w: %q", ErrRunNotFound, runID)
		}
		return RunRecord{}, err
	}
	r.Start, r.End = start.Time, end.Time

	rows, err := j.db.Query(`SELECT name, value FROM metrics WHERE run_id = ?`, runID)
	if err != nil {
		return RunRecord{}, err
	}
	defer rows.Close()

	r.Metrics = make(map[string]float64)
	for rows.Next() {
		var name string
		var v float64
		if err := rows.Scan(&name, &v); err != nil {
			return RunRecord{}, err
		}
		r.Metrics[name] = v
	}
	return r, rows.Err()
}

// ListFills returns a run's fills in time order.
func (j *SQLite) ListFills(runID string) ([]FillRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, fill_id, order_id, symbol, time, side, quantity, requested, price, ref_price, commission
		FROM fills
		WHERE run_id = ?
		ORDER BY time ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var f FillRecord
		if err := rows.Scan(
			&f.RunID,
			&f.FillID,
			&f.OrderID,
			&f.Symbol,
			&f.Time,
			&f.Side,
			&f.Quantity,
			&f.Requested,
			&f.Price,
			&f.RefPrice,
			&f.Commission,
		); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTradesClosedBetween returns a run's trades whose close_time is
// within [start, end).
func (j *SQLite) ListTradesClosedBetween(runID string, start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, symbol, side, quantity, open_time, close_time, realized_pl
		FROM trades
		WHERE run_id = ? AND close_time >= ? AND close_time < ?
		ORDER BY close_time ASC, rowid ASC`, runID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

// ListTrades returns all of a run's trades in close order.
func (j *SQLite) ListTrades(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, symbol, side, quantity, open_time, close_time, realized_pl
		FROM trades
		WHERE run_id = ?
		ORDER BY close_time ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]TradeRecord, error) {
	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(
			&t.RunID,
			&t.Symbol,
			&t.Side,
			&t.Quantity,
			&t.OpenTime,
			&t.CloseTime,
			&t.RealizedPL,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquity returns a run's equity curve in time order.
func (j *SQLite) ListEquity(runID string) ([]EquityRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, equity, cash
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityRecord
	for rows.Next() {
		var e EquityRecord
		if err := rows.Scan(&e.RunID, &e.Time, &e.Equity, &e.Cash); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportRunOrg loads a run and its trades and renders the Org summary.
func (j *SQLite) ExportRunOrg(runID string) (string, error) {
	r, err := j.GetRun(runID)
	if err != nil {
		return "", err
	}
	trades, err := j.ListTrades(runID)
	if err != nil {
		return "", err
	}
	return FormatRunOrg(r, trades)
}
