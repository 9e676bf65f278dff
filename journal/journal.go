// Package journal persists backtest results: run summaries, fills,
// completed trades and the equity curve.
package journal

import "time"

// RunRecord summarises one backtest run.
type RunRecord struct {
	RunID    string
	Created  time.Time
	Strategy string
	Symbols  string // comma separated
	Dataset  string
	Config   []byte

	Start time.Time
	End   time.Time

	InitialCapital float64
	FinalEquity    float64
	Fills          int
	Error          string // set when the run aborted

	Metrics map[string]float64
}

// NetPL is final equity minus initial capital.
func (r RunRecord) NetPL() float64 { return r.FinalEquity - r.InitialCapital }

type FillRecord struct {
	RunID      string
	FillID     string
	OrderID    string
	Symbol     string
	Time       time.Time
	Side       string
	Quantity   float64
	Requested  float64
	Price      float64
	RefPrice   float64
	Commission float64
}

// TradeRecord is a completed round trip.
type TradeRecord struct {
	RunID      string
	Symbol     string
	Side       string // long or short
	Quantity   float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
}

type EquityRecord struct {
	RunID  string
	Time   time.Time
	Equity float64
	Cash   float64
}

type Journal interface {
	RecordRun(RunRecord) error
	RecordFill(FillRecord) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquityRecord) error
	Close() error
}
