// Package stats derives return, risk and trade statistics from a run's
// equity curve and fill history.
package stats

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/backtester/event"
	"github.com/shopspring/decimal"
)

const DefaultPeriodsPerYear = 252

var ErrInvalidConfig = errors.New("invalid analyzer config")

type Config struct {
	RiskFreeRate   float64 `json:"risk_free_rate" yaml:"risk_free_rate" toml:"risk_free_rate"`
	PeriodsPerYear int     `json:"periods_per_year,omitempty" yaml:"periods_per_year,omitempty" toml:"periods_per_year,omitempty"`
}

func (c Config) Validate() error {
	if c.PeriodsPerYear < 0 {
		return fmt.Errorf("%w: periods_per_year must be >= 0", ErrInvalidConfig)
	}
	if math.IsNaN(c.RiskFreeRate) || math.IsInf(c.RiskFreeRate, 0) {
		return fmt.Errorf("%w: risk_free_rate must be finite", ErrInvalidConfig)
	}
	return nil
}

// EquityPoint is one sample of the equity curve, taken after a bar's
// events have all been processed.
type EquityPoint struct {
	Time   time.Time       `json:"timestamp"`
	Equity decimal.Decimal `json:"equity"`
	Cash   decimal.Decimal `json:"cash"`
}

// Analyzer accumulates the equity curve and fills of one run. Compute may
// be called at any time and always recomputes from the full history.
type Analyzer struct {
	rf  float64
	ppy int

	curve []EquityPoint
	fills []event.Fill
}

func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PeriodsPerYear == 0 {
		cfg.PeriodsPerYear = DefaultPeriodsPerYear
	}
	return &Analyzer{rf: cfg.RiskFreeRate, ppy: cfg.PeriodsPerYear}, nil
}

func (a *Analyzer) RecordEquity(p EquityPoint) { a.curve = append(a.curve, p) }

func (a *Analyzer) RecordFill(f event.Fill) { a.fills = append(a.fills, f) }

// EquityCurve returns a copy of the recorded curve.
func (a *Analyzer) EquityCurve() []EquityPoint {
	return append([]EquityPoint(nil), a.curve...)
}

// Fills returns a copy of the recorded fills.
func (a *Analyzer) Fills() []event.Fill {
	return append([]event.Fill(nil), a.fills...)
}

func (a *Analyzer) Compute() Metrics {
	var m Metrics

	equity := make([]float64, len(a.curve))
	for i, p := range a.curve {
		equity[i] = p.Equity.InexactFloat64()
	}

	if n := len(equity); n >= 2 && equity[0] > 0 {
		m.TotalReturn = equity[n-1]/equity[0] - 1
		periods := float64(n - 1)
		if growth := 1 + m.TotalReturn; growth > 0 {
			m.AnnualReturn = math.Pow(growth, float64(a.ppy)/periods) - 1
		} else {
			m.AnnualReturn = -1
		}
	}

	rets := returns(equity)
	ppy := float64(a.ppy)
	rfPeriod := a.rf / ppy

	excess := make([]float64, len(rets))
	var downside []float64
	for i, r := range rets {
		excess[i] = r - rfPeriod
		if r < 0 {
			downside = append(downside, r)
		}
	}
	std := sampleStd(rets)
	m.Volatility = std * math.Sqrt(ppy)
	if std > 0 {
		m.SharpeRatio = mean(excess) * ppy / m.Volatility
	}
	if dstd := sampleStd(downside); dstd > 0 {
		m.SortinoRatio = mean(excess) * ppy / (dstd * math.Sqrt(ppy))
	}

	m.MaxDrawdown, m.MaxDrawdownDuration = Drawdown(equity)
	if m.MaxDrawdown < 0 {
		m.CalmarRatio = math.Abs(m.TotalReturn) / math.Abs(m.MaxDrawdown)
	}

	ts := summarizeTrips(RoundTrips(a.fills))
	m.TotalTrades = ts.total
	m.WinningTrades = ts.wins
	m.LosingTrades = ts.losses
	m.WinRate = ts.winRate
	m.ProfitFactor = ts.profitFactor
	m.AverageWin = ts.avgWin
	m.AverageLoss = ts.avgLoss
	m.LargestWin = ts.largestWin
	m.LargestLoss = ts.largestLoss

	m.AnnualReturn = finite(m.AnnualReturn)
	m.SharpeRatio = finite(m.SharpeRatio)
	m.SortinoRatio = finite(m.SortinoRatio)
	m.CalmarRatio = finite(m.CalmarRatio)
	return m
}
