package backtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/backtester/journal"
)

// RunRecord summarises the report for a journal. runErr is the error Run
// returned, if any.
func (r *Report) RunRecord(created time.Time, dataset string, config []byte, runErr error) journal.RunRecord {
	rec := journal.RunRecord{
		RunID:          r.RunID,
		Created:        created,
		Strategy:       r.Strategy,
		Symbols:        strings.Join(r.Symbols, ","),
		Dataset:        dataset,
		Config:         config,
		Start:          r.Start,
		End:            r.End,
		InitialCapital: r.InitialCapital.InexactFloat64(),
		FinalEquity:    r.FinalEquity.InexactFloat64(),
		Fills:          len(r.Fills),
		Metrics:        r.Metrics.Map(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}

// TradeRecords converts the report's completed round trips.
func (r *Report) TradeRecords() []journal.TradeRecord {
	out := make([]journal.TradeRecord, len(r.Trades))
	for i, t := range r.Trades {
		side := "short"
		if t.Long {
			side = "long"
		}
		out[i] = journal.TradeRecord{
			RunID:      r.RunID,
			Symbol:     t.Symbol,
			Side:       side,
			Quantity:   t.Quantity.InexactFloat64(),
			OpenTime:   t.Opened,
			CloseTime:  t.Closed,
			RealizedPL: t.PnL.InexactFloat64(),
		}
	}
	return out
}

// WriteJournal records the run summary, every fill, every completed trade
// and the equity curve.
func (r *Report) WriteJournal(j journal.Journal, run journal.RunRecord) error {
	if err := j.RecordRun(run); err != nil {
		return fmt.Errorf("journal run %s: %w", r.RunID, err)
	}
	for _, f := range r.Fills {
		err := j.RecordFill(journal.FillRecord{
			RunID:      r.RunID,
			FillID:     f.ID,
			OrderID:    f.OrderID,
			Symbol:     f.Symbol,
			Time:       f.Time,
			Side:       strings.ToLower(f.Side.String()),
			Quantity:   f.Quantity.InexactFloat64(),
			Requested:  f.Requested.InexactFloat64(),
			Price:      f.Price.InexactFloat64(),
			RefPrice:   f.RefPrice.InexactFloat64(),
			Commission: f.Commission.InexactFloat64(),
		})
		if err != nil {
			return fmt.Errorf("journal fill %s: %w", f.ID, err)
		}
	}
	for _, t := range r.TradeRecords() {
		if err := j.RecordTrade(t); err != nil {
			return fmt.Errorf("journal trade %s: %w", t.Symbol, err)
		}
	}
	for _, p := range r.EquityCurve {
		err := j.RecordEquity(journal.EquityRecord{
			RunID:  r.RunID,
			Time:   p.Time,
			Equity: p.Equity.InexactFloat64(),
			Cash:   p.Cash.InexactFloat64(),
		})
		if err != nil {
			return fmt.Errorf("journal equity %s: %w", p.Time.Format(time.RFC3339), err)
		}
	}
	return nil
}
