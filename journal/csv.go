package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CSV writes runs.csv, fills.csv, trades.csv and equity.csv into a
// directory. Rows carry the run id so several runs can share a directory.
type CSV struct {
	files  []*os.File
	runs   *csv.Writer
	fills  *csv.Writer
	trades *csv.Writer
	equity *csv.Writer
}

var (
	runsHeader   = []string{"run_id", "created", "strategy", "symbols", "dataset", "start", "end", "initial_capital", "final_equity", "fills", "error", "metrics"}
	fillsHeader  = []string{"run_id", "fill_id", "order_id", "symbol", "time", "side", "quantity", "requested", "price", "ref_price", "commission"}
	tradesHeader = []string{"run_id", "symbol", "side", "quantity", "open_time", "close_time", "realized_pl"}
	equityHeader = []string{"run_id", "time", "equity", "cash"}
)

func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	j := &CSV{}
	open := func(name string, header []string) (*csv.Writer, error) {
		path := filepath.Join(dir, name)
		_, statErr := os.Stat(path)
		fresh := errors.Is(statErr, os.ErrNotExist)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)

		w := csv.NewWriter(f)
		if fresh {
			if err := w.Write(header); err != nil {
				return nil, err
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return nil, err
			}
		}
		return w, nil
	}

	var err error
	if j.runs, err = open("runs.csv", runsHeader); err != nil {
		j.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}
	if j.fills, err = open("fills.csv", fillsHeader); err != nil {
		j.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}
	if j.trades, err = open("trades.csv", tradesHeader); err != nil {
		j.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}
	if j.equity, err = open("equity.csv", equityHeader); err != nil {
		j.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}
	return j, nil
}

func (j *CSV) RecordRun(r RunRecord) error {
	names := make([]string, 0, len(r.Metrics))
	for n := range r.Metrics {
		names = append(names, n)
	}
	sort.Strings(names)
	pairs := make([]string, len(names))
	for i, n := range names {
		pairs[i] = n + "=" + f(r.Metrics[n])
	}

	return write(j.runs, []string{
		r.RunID,
		ts(r.Created),
		r.Strategy,
		r.Symbols,
		r.Dataset,
		ts(r.Start),
		ts(r.End),
		f(r.InitialCapital),
		f(r.FinalEquity),
		strconv.Itoa(r.Fills),
		r.Error,
		strings.Join(pairs, ";"),
	})
}

func (j *CSV) RecordFill(x FillRecord) error {
	return write(j.fills, []string{
		x.RunID,
		x.FillID,
		x.OrderID,
		x.Symbol,
		ts(x.Time),
		x.Side,
		f(x.Quantity),
		f(x.Requested),
		f(x.Price),
		f(x.RefPrice),
		f(x.Commission),
	})
}

func (j *CSV) RecordTrade(t TradeRecord) error {
	return write(j.trades, []string{
		t.RunID,
		t.Symbol,
		t.Side,
		f(t.Quantity),
		ts(t.OpenTime),
		ts(t.CloseTime),
		f(t.RealizedPL),
	})
}

func (j *CSV) RecordEquity(e EquityRecord) error {
	return write(j.equity, []string{
		e.RunID,
		ts(e.Time),
		f(e.Equity),
		f(e.Cash),
	})
}

func (j *CSV) Close() error {
	var errs []error
	for _, w := range []*csv.Writer{j.runs, j.fills, j.trades, j.equity} {
		if w != nil {
			w.Flush()
			errs = append(errs, w.Error())
		}
	}
	for _, file := range j.files {
		errs = append(errs, file.Close())
	}
	return errors.Join(errs...)
}

func write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
