package backtest

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/backtester/event"
	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/portfolio"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/stats"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time { return day0.AddDate(0, 0, i) }

// series builds flat bars (open = high = low = close) starting at day first.
func series(symbol string, first int, closes ...float64) market.Series {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.NewBar(day(first+i), c, c, c, c, 100)
	}
	return market.Series{Symbol: symbol, Bars: bars}
}

type funcStrategy func(symbol string, recent []market.Bar) ([]event.Signal, error)

func (funcStrategy) Name() string { return "func" }

func (f funcStrategy) GenerateSignals(symbol string, recent []market.Bar) ([]event.Signal, error) {
	return f(symbol, recent)
}

// onBar signals dir for every symbol on the n-th bar it sees (1-based).
func onBar(plan map[int]event.Direction) funcStrategy {
	return func(symbol string, recent []market.Bar) ([]event.Signal, error) {
		dir, ok := plan[len(recent)]
		if !ok {
			return nil, nil
		}
		return []event.Signal{{Symbol: symbol, Direction: dir}}, nil
	}
}

type rig struct {
	capital float64
	policy  portfolio.CapitalPolicy
	sizer   risk.Sizer
	sim     sim.Config
	opts    Options
}

func (r rig) engine(t *testing.T, src market.Source, strat strategies.Strategy) *Engine {
	t.Helper()
	if r.capital == 0 {
		r.capital = 10000
	}
	if r.sizer == nil {
		r.sizer = risk.FixedQuantity{Quantity: decimal.NewFromInt(10)}
	}

	ids := id.NewGenerator(r.sim.Seed)
	s, err := sim.New(r.sim, ids)
	require.NoError(t, err)
	l, err := portfolio.NewLedger(portfolio.Config{InitialCapital: r.capital, CapitalPolicy: r.policy}, r.sizer, s, ids)
	require.NoError(t, err)
	a, err := stats.NewAnalyzer(stats.Config{})
	require.NoError(t, err)

	e, err := NewEngine(src, strat, l, s, a, r.opts)
	require.NoError(t, err)
	return e
}

func assertEquityIdentity(t *testing.T, r *Report) {
	t.Helper()
	sum := r.FinalCash
	for _, p := range r.OpenPositions {
		sum = sum.Add(p.Quantity.Mul(p.CurrentPrice))
	}
	assert.True(t, r.FinalEquity.Equal(sum), "equity %s != cash+positions %s", r.FinalEquity, sum)
	if n := len(r.EquityCurve); n > 0 {
		assert.True(t, r.EquityCurve[n-1].Equity.Equal(r.FinalEquity))
		assert.True(t, r.EquityCurve[n-1].Cash.Equal(r.FinalCash))
	}
}

func TestNewEngineValidation(t *testing.T) {
	t.Parallel()

	s, err := sim.New(sim.Config{}, nil)
	require.NoError(t, err)
	l, err := portfolio.NewLedger(portfolio.Config{InitialCapital: 1}, risk.FixedQuantity{}, s, nil)
	require.NoError(t, err)
	a, err := stats.NewAnalyzer(stats.Config{})
	require.NoError(t, err)
	src := market.NewSliceSource()
	strat := strategies.NoopStrategy{}

	tests := []struct {
		name string
		fn   func() (*Engine, error)
	}{
		{"no source", func() (*Engine, error) { return NewEngine(nil, strat, l, s, a, Options{}) }},
		{"no strategy", func() (*Engine, error) { return NewEngine(src, nil, l, s, a, Options{}) }},
		{"no ledger", func() (*Engine, error) { return NewEngine(src, strat, nil, s, a, Options{}) }},
		{"no simulator", func() (*Engine, error) { return NewEngine(src, strat, l, nil, a, Options{}) }},
		{"no analyzer", func() (*Engine, error) { return NewEngine(src, strat, l, s, nil, Options{}) }},
		{"negative lookback", func() (*Engine, error) { return NewEngine(src, strat, l, s, a, Options{Lookback: -1}) }},
		{"inverted range", func() (*Engine, error) {
			return NewEngine(src, strat, l, s, a, Options{Start: day(5), End: day(1)})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			assert.True(t, errors.Is(err, ErrInvalidEngine), "%v", err)
		})
	}
}

func TestEngineBuyAndHold(t *testing.T) {
	t.Parallel()

	src := market.NewSliceSource(series("AAA", 0, 100, 110, 120), series("BBB", 0, 50, 40, 45))
	e := rig{}.engine(t, src, strategies.NewBuyHold())

	r, err := e.Run()
	require.NoError(t, err)

	require.Len(t, r.Fills, 2)
	assert.Equal(t, "AAA", r.Fills[0].Symbol, "symbols are processed in source order")
	assert.Equal(t, "BBB", r.Fills[1].Symbol)
	require.Len(t, r.EquityCurve, 3)

	// 10 AAA at 100 and 10 BBB at 50, marked at 120 and 45
	assert.True(t, r.FinalEquity.Equal(decimal.NewFromInt(10000-1000-500+1200+450)))
	assert.True(t, r.FinalCash.Equal(decimal.NewFromInt(8500)))
	assertEquityIdentity(t, r)

	s := r.Stats
	assert.Equal(t, 6, s.MarketEvents)
	assert.Equal(t, 2, s.Signals)
	assert.Equal(t, 2, s.Orders)
	assert.Equal(t, 2, s.Fills)
	assert.Equal(t, 12, s.Events)
	assert.Equal(t, 0, s.SkippedBars)
	assert.Equal(t, day(0), r.Start)
	assert.Equal(t, day(2), r.End)

	_, err = e.Run()
	assert.True(t, errors.Is(err, ErrAlreadyRun))
}

func TestEngineEventOrderIsFIFO(t *testing.T) {
	t.Parallel()

	var seen []string
	strat := funcStrategy(func(symbol string, recent []market.Bar) ([]event.Signal, error) {
		seen = append(seen, symbol)
		return []event.Signal{{Direction: event.Long}}, nil
	})

	src := market.NewSliceSource(series("AAA", 0, 10), series("BBB", 0, 20), series("CCC", 0, 30))
	r, err := rig{}.engine(t, src, strat).Run()
	require.NoError(t, err)

	// all markets before any signal, all signals before any order
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, seen)
	require.Len(t, r.Fills, 3)
	for i, sym := range []string{"AAA", "BBB", "CCC"} {
		assert.Equal(t, sym, r.Fills[i].Symbol)
		assert.Equal(t, day(0), r.Fills[i].Time, "signal time defaults to the bar time")
	}
}

func TestEngineSkipsMalformedBars(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		market.NewBar(day(0), 10, 11, 9, 10, 1),
		market.NewBar(day(1), 10, 9, 11, 10, 1), // high < low
		market.NewBar(day(2), 10, 11, 9, 10, 1),
		market.NewBar(day(2), 10, 11, 9, 10, 1), // repeated timestamp
		market.NewBar(day(3), 0, 0, 0, 0, 0),    // zero prices
		market.NewBar(day(4), 12, 13, 11, 12, 1),
	}
	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	src := market.NewSliceSource(market.Series{Symbol: "AAA", Bars: bars})
	r, err := rig{opts: Options{Logger: &logger}}.engine(t, src, strategies.NoopStrategy{}).Run()
	require.NoError(t, err)

	assert.Equal(t, 3, r.Stats.SkippedBars)
	assert.Equal(t, 3, r.Stats.MarketEvents)
	require.Len(t, r.EquityCurve, 3)
	assert.Equal(t, []time.Time{day(0), day(2), day(4)},
		[]time.Time{r.EquityCurve[0].Time, r.EquityCurve[1].Time, r.EquityCurve[2].Time})
	assert.Contains(t, logs.String(), "skipping bar")
	assert.Contains(t, logs.String(), "skipping out-of-order bar")
}

func TestEngineRecoversStrategyFaults(t *testing.T) {
	t.Parallel()

	strat := funcStrategy(func(symbol string, recent []market.Bar) ([]event.Signal, error) {
		switch len(recent) {
		case 2:
			panic("boom")
		case 3:
			return []event.Signal{{Direction: event.Long}}, errors.New("indicator exploded")
		case 4:
			return []event.Signal{{Direction: event.Long}}, nil
		}
		return nil, nil
	})

	src := market.NewSliceSource(series("AAA", 0, 10, 11, 12, 13, 14))
	r, err := rig{}.engine(t, src, strat).Run()
	require.NoError(t, err)

	assert.Equal(t, 2, r.Stats.StrategyErrors)
	assert.Equal(t, 1, r.Stats.Signals, "signals returned alongside an error are dropped")
	require.Len(t, r.Fills, 1)
	assert.Equal(t, day(3), r.Fills[0].Time)
	assert.Len(t, r.EquityCurve, 5)
}

func TestEngineUnalignedStreams(t *testing.T) {
	t.Parallel()

	src := market.NewSliceSource(
		market.Series{Symbol: "AAA", Bars: series("AAA", 0, 10, 11, 12).Bars},
		market.Series{Symbol: "BBB", Bars: []market.Bar{
			market.NewBar(day(1), 20, 20, 20, 20, 1),
			market.NewBar(day(3), 22, 22, 22, 22, 1),
		}},
	)

	var calls []string
	strat := funcStrategy(func(symbol string, recent []market.Bar) ([]event.Signal, error) {
		calls = append(calls, symbol+recent[len(recent)-1].Time.Format("02"))
		return nil, nil
	})

	r, err := rig{}.engine(t, src, strat).Run()
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA02", "AAA03", "BBB03", "AAA04", "BBB05"}, calls)
	require.Len(t, r.EquityCurve, 4)
	assert.Equal(t, day(3), r.EquityCurve[3].Time)
}

func TestEngineReplayBounds(t *testing.T) {
	t.Parallel()

	src := market.NewSliceSource(series("AAA", 0, 10, 11, 12, 13, 14))
	r, err := rig{opts: Options{Start: day(1), End: day(4)}}.engine(t, src, strategies.NewBuyHold()).Run()
	require.NoError(t, err)

	require.Len(t, r.EquityCurve, 3)
	assert.Equal(t, day(1), r.Start)
	assert.Equal(t, day(3), r.End)
	require.Len(t, r.Fills, 1)
	assert.True(t, r.Fills[0].Price.Equal(decimal.NewFromInt(11)))
	assert.Zero(t, r.Stats.SkippedBars)
}

func TestEngineLookback(t *testing.T) {
	t.Parallel()

	longest := 0
	strat := funcStrategy(func(symbol string, recent []market.Bar) ([]event.Signal, error) {
		if len(recent) > longest {
			longest = len(recent)
		}
		recent[0] = market.Bar{} // must not leak into the engine's window
		return nil, nil
	})

	src := market.NewSliceSource(series("AAA", 0, 1, 2, 3, 4, 5, 6, 7, 8))
	r, err := rig{opts: Options{Lookback: 3}}.engine(t, src, strat).Run()
	require.NoError(t, err)
	assert.Equal(t, 3, longest)
	assert.Zero(t, r.Stats.SkippedBars)
}

func TestEngineSameBarRace(t *testing.T) {
	t.Parallel()

	src := market.NewSliceSource(series("AAA", 0, 100, 100), series("BBB", 0, 100, 100))
	rg := rig{sizer: risk.PercentOfEquity{Percent: decimal.RequireFromString("0.6")}}
	r, err := rg.engine(t, src, strategies.NewBuyHold()).Run()
	require.NoError(t, err)

	require.Len(t, r.Fills, 2)
	assert.True(t, r.Fills[0].Quantity.Equal(decimal.NewFromInt(60)))
	assert.True(t, r.Fills[1].Quantity.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, 1, r.Stats.TruncatedOrders)
	assert.True(t, r.FinalCash.IsZero())
	for _, p := range r.EquityCurve {
		assert.False(t, p.Cash.IsNegative())
	}
	assertEquityIdentity(t, r)
}

func TestEngineRejectPolicyCountsRejections(t *testing.T) {
	t.Parallel()

	src := market.NewSliceSource(series("AAA", 0, 100), series("BBB", 0, 100))
	rg := rig{
		policy: portfolio.Reject,
		sizer:  risk.PercentOfEquity{Percent: decimal.RequireFromString("0.6")},
	}
	r, err := rg.engine(t, src, strategies.NewBuyHold()).Run()
	require.NoError(t, err)

	assert.Len(t, r.Fills, 1)
	assert.Equal(t, 1, r.Stats.RejectedSignals)
}

func TestEngineInvariantAbortReturnsPartialReport(t *testing.T) {
	t.Parallel()

	// short 100 at 100, then the cover at 1000 costs far more than the cash held
	src := market.NewSliceSource(series("AAA", 0, 100, 500, 1000, 1100))
	strat := onBar(map[int]event.Direction{1: event.Short, 3: event.Exit})
	rg := rig{sizer: risk.FixedQuantity{Quantity: decimal.NewFromInt(100)}}

	r, err := rg.engine(t, src, strat).Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, portfolio.ErrInvariant))

	var inv *portfolio.InvariantError
	require.True(t, errors.As(err, &inv))
	assert.True(t, inv.Snapshot.Cash.Equal(decimal.NewFromInt(20000)))
	assert.LessOrEqual(t, inv.Snapshot.Reserved.Cmp(inv.Snapshot.Cash), 0)

	require.NotNil(t, r)
	assert.Len(t, r.EquityCurve, 2)
	assert.Len(t, r.Fills, 1)
	assert.Equal(t, day(1), r.End)
	require.Len(t, r.OpenPositions, 1)
	assert.True(t, r.OpenPositions[0].Quantity.Equal(decimal.NewFromInt(-100)))
}

func TestEngineShortRoundTrip(t *testing.T) {
	t.Parallel()

	src := market.NewSliceSource(series("AAA", 0, 150, 145, 140))
	strat := onBar(map[int]event.Direction{1: event.Short, 3: event.Exit})
	rg := rig{sizer: risk.FixedQuantity{Quantity: decimal.NewFromInt(100)}}

	r, err := rg.engine(t, src, strat).Run()
	require.NoError(t, err)

	assert.True(t, r.RealizedPL.Equal(decimal.NewFromInt(1000)))
	assert.True(t, r.FinalCash.Equal(decimal.NewFromInt(11000)))
	assert.Empty(t, r.OpenPositions)
	require.Len(t, r.Trades, 1)
	assert.False(t, r.Trades[0].Long)
	assert.Equal(t, 1, r.Metrics.WinningTrades)
	assert.InDelta(t, 1000, r.Metrics.LargestWin, 1e-9)
}

func trendingSeries(symbol string, n int, phase float64) market.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 20*math.Sin(float64(i)/6+phase) + float64(i)/10
	}
	return series(symbol, 0, closes...)
}

func TestEngineDeterminism(t *testing.T) {
	t.Parallel()

	run := func() *Report {
		src := market.NewSliceSource(trendingSeries("AAA", 120, 0), trendingSeries("BBB", 120, 1.5))
		strat, err := strategies.NewMACross(strategies.Config{FastPeriod: 3, SlowPeriod: 8, AllowShort: true}, strategies.EMA)
		require.NoError(t, err)

		rg := rig{
			capital: 50000,
			sizer:   risk.PercentOfEquity{Percent: decimal.RequireFromString("0.4")},
			sim: sim.Config{
				CommissionRate:                 0.001,
				SlippageBps:                    5,
				MarketImpactBpsPerUnitNotional: 0.0001,
				PartialFillProbability:         0.5,
				Seed:                           42,
			},
		}
		r, err := rg.engine(t, src, strat).Run()
		require.NoError(t, err)
		return r
	}

	a, b := run(), run()
	require.NotEmpty(t, a.Fills)
	assert.Equal(t, a.EquityCurve, b.EquityCurve)
	assert.Equal(t, a.Fills, b.Fills)
	assert.Equal(t, a.Metrics, b.Metrics)

	a.Stats.Elapsed, b.Stats.Elapsed = 0, 0
	assert.Equal(t, a.Stats, b.Stats)
	assert.Positive(t, a.Stats.PartialFills+a.Stats.DroppedOrders)
	assert.True(t, a.Stats.TotalCommission.IsPositive())

	for _, p := range a.EquityCurve {
		assert.False(t, p.Cash.IsNegative())
	}
	assertEquityIdentity(t, a)
}

func TestPrintReport(t *testing.T) {
	t.Parallel()

	src := market.NewSliceSource(series("AAA", 0, 100, 110, 120))
	r, err := rig{opts: Options{RunID: "run-1"}}.engine(t, src, strategies.NewBuyHold()).Run()
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintReport(&buf, r)
	out := buf.String()
	assert.Contains(t, out, "Backtest Result")
	assert.Contains(t, out, "Run ID:        run-1")
	assert.Contains(t, out, "Strategy:      buy-hold")
	assert.Contains(t, out, "Net P/L:       200.00")
	assert.Contains(t, out, "Open Positions")
}

func TestReportWriteJournal(t *testing.T) {
	t.Parallel()

	src := market.NewSliceSource(series("AAA", 0, 150, 145, 140, 141))
	strat := onBar(map[int]event.Direction{1: event.Short, 3: event.Exit})
	rg := rig{sizer: risk.FixedQuantity{Quantity: decimal.NewFromInt(100)}, opts: Options{RunID: "run-j"}}
	r, err := rg.engine(t, src, strat).Run()
	require.NoError(t, err)

	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, r.WriteJournal(j, r.RunRecord(day0, "inline", nil, nil)))

	run, err := j.GetRun("run-j")
	require.NoError(t, err)
	assert.Equal(t, "func", run.Strategy)
	assert.Equal(t, "AAA", run.Symbols)
	assert.Equal(t, 2, run.Fills)
	assert.InDelta(t, 11000, run.FinalEquity, 1e-9)
	assert.Len(t, run.Metrics, len(stats.MetricKeys))

	fills, err := j.ListFills("run-j")
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, "sell", fills[0].Side)

	trades, err := j.ListTrades("run-j")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "short", trades[0].Side)
	assert.InDelta(t, 1000, trades[0].RealizedPL, 1e-9)

	eq, err := j.ListEquity("run-j")
	require.NoError(t, err)
	assert.Len(t, eq, 4)
}
