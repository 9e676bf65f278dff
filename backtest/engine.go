// Package backtest drives a deterministic, single-goroutine event loop:
// bars from a market.Source become Market events, strategies turn them
// into Signals, the ledger sizes Signals into Orders, the simulator fills
// Orders and the ledger books the Fills.
package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/backtester/event"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/portfolio"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/stats"
	"github.com/rustyeddy/backtester/strategies"
)

const DefaultLookback = 200

var (
	ErrInvalidEngine = errors.New("invalid engine setup")
	ErrAlreadyRun    = errors.New("engine already run")
)

// Options controls the replay window and the engine's ambient behaviour.
type Options struct {
	// RunID labels the run in reports and journals.
	RunID string

	// Start and End bound replay to [Start, End). A zero bound is open.
	Start time.Time
	End   time.Time

	// Lookback caps the number of recent bars handed to the strategy.
	Lookback int

	// Logger receives run diagnostics. Nil discards them.
	Logger *zerolog.Logger
}

// Engine runs one backtest. It is not reusable: Run may be called once.
type Engine struct {
	source   market.Source
	strategy strategies.Strategy
	ledger   *portfolio.Ledger
	sim      *sim.Simulator
	analyzer *stats.Analyzer

	opts Options
	log  zerolog.Logger

	queue   event.Queue
	recent  map[string][]market.Bar
	lastBar map[string]time.Time
	stats   ExecutionStats
	ran     bool
}

// NewEngine checks every collaborator up front so configuration faults
// surface before any bar is replayed.
func NewEngine(src market.Source, strat strategies.Strategy, ledger *portfolio.Ledger,
	simulator *sim.Simulator, analyzer *stats.Analyzer, opts Options) (*Engine, error) {

	switch {
	case src == nil:
		return nil, fmt.Errorf("%w: market source is required", ErrInvalidEngine)
	case strat == nil:
		return nil, fmt.Errorf("%w: strategy is required", ErrInvalidEngine)
	case ledger == nil:
		return nil, fmt.Errorf("%w: ledger is required", ErrInvalidEngine)
	case simulator == nil:
		return nil, fmt.Errorf("%w: execution simulator is required", ErrInvalidEngine)
	case analyzer == nil:
		return nil, fmt.Errorf("%w: analyzer is required", ErrInvalidEngine)
	case opts.Lookback < 0:
		return nil, fmt.Errorf("%w: lookback must be >= 0", ErrInvalidEngine)
	case !opts.Start.IsZero() && !opts.End.IsZero() && !opts.Start.Before(opts.End):
		return nil, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidEngine,
			opts.Start.Format(time.RFC3339), opts.End.Format(time.RFC3339))
	}
	if opts.Lookback == 0 {
		opts.Lookback = DefaultLookback
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	if opts.RunID != "" {
		log = log.With().Str("run", opts.RunID).Logger()
	}

	return &Engine{
		source:   src,
		strategy: strat,
		ledger:   ledger,
		sim:      simulator,
		analyzer: analyzer,
		opts:     opts,
		log:      log,
		recent:   make(map[string][]market.Bar),
		lastBar:  make(map[string]time.Time),
	}, nil
}

// Run replays the source to exhaustion. A ledger invariant violation stops
// the run; the report built from everything recorded so far is returned
// together with the error.
func (e *Engine) Run() (*Report, error) {
	if e.ran {
		return nil, ErrAlreadyRun
	}
	e.ran = true

	started := time.Now()
	e.log.Info().
		Str("strategy", e.strategy.Name()).
		Strs("symbols", e.source.Symbols()).
		Str("initial_capital", e.ledger.InitialCapital().String()).
		Msg("backtest starting")

	for e.source.HasMore() {
		clock, ok := e.nextClock()
		if !ok {
			e.log.Warn().Msg("source reports more data but no symbol has a next bar; stopping")
			break
		}

		n := e.advance(clock)
		if n == 0 {
			continue
		}

		if err := e.drain(); err != nil {
			e.stats.Elapsed = time.Since(started)
			e.log.Error().Err(err).Time("clock", clock).Msg("backtest aborted")
			return e.report(), err
		}

		if left := e.ledger.ClearReservedCash(); !left.IsZero() {
			e.log.Debug().Time("clock", clock).Str("amount", left.String()).Msg("cleared unconsumed reservation")
		}
		e.analyzer.RecordEquity(stats.EquityPoint{
			Time:   clock,
			Equity: e.ledger.Equity(),
			Cash:   e.ledger.Cash(),
		})
	}

	e.stats.Elapsed = time.Since(started)
	r := e.report()
	e.log.Info().
		Int("bars", e.stats.MarketEvents).
		Int("fills", e.stats.Fills).
		Str("final_equity", r.FinalEquity.StringFixed(2)).
		Dur("elapsed", e.stats.Elapsed).
		Msg("backtest finished")
	return r, nil
}

// nextClock is the earliest next bar time across all symbols.
func (e *Engine) nextClock() (time.Time, bool) {
	var clock time.Time
	found := false
	for _, sym := range e.source.Symbols() {
		b, ok := e.source.Peek(sym)
		if !ok {
			continue
		}
		if !found || b.Time.Before(clock) {
			clock = b.Time
			found = true
		}
	}
	return clock, found
}

// advance consumes every symbol's bar stamped at clock and queues a Market
// event for each usable one. It returns the number of events queued.
func (e *Engine) advance(clock time.Time) int {
	queued := 0
	for _, sym := range e.source.Symbols() {
		b, ok := e.source.Peek(sym)
		if !ok || !b.Time.Equal(clock) {
			continue
		}
		b, _ = e.source.Next(sym)

		if err := b.Validate(); err != nil {
			e.stats.SkippedBars++
			e.log.Warn().Err(err).Str("symbol", sym).Time("time", b.Time).Msg("skipping bar")
			continue
		}
		if last, seen := e.lastBar[sym]; seen && !b.Time.After(last) {
			e.stats.SkippedBars++
			e.log.Warn().Str("symbol", sym).Time("time", b.Time).Time("previous", last).
				Msg("skipping out-of-order bar")
			continue
		}
		if !market.InRange(b.Time, e.opts.Start, e.opts.End) {
			continue
		}

		e.lastBar[sym] = b.Time
		e.queue.Push(event.NewMarket(sym, b))
		queued++
	}
	return queued
}

// drain processes the queue strictly FIFO until it is empty.
func (e *Engine) drain() error {
	for {
		ev, ok := e.queue.Pop()
		if !ok {
			return nil
		}
		e.stats.Events++

		switch ev.Kind {
		case event.MarketKind:
			e.onMarket(*ev.Market)
		case event.SignalKind:
			e.onSignal(*ev.Signal)
		case event.OrderKind:
			e.onOrder(*ev.Order)
		case event.FillKind:
			if err := e.onFill(*ev.Fill); err != nil {
				e.queue.Reset()
				return err
			}
		default:
			e.log.Warn().Stringer("kind", ev.Kind).Msg("dropping event of unknown kind")
		}
	}
}

func (e *Engine) onMarket(m event.Market) {
	e.stats.MarketEvents++
	e.ledger.Mark(m.Symbol, m.Bar.Close, m.Bar.Time)

	window := append(e.recent[m.Symbol], m.Bar)
	if len(window) > e.opts.Lookback {
		window = window[len(window)-e.opts.Lookback:]
	}
	e.recent[m.Symbol] = window

	sigs, err := e.generate(m.Symbol, window)
	if err != nil {
		e.stats.StrategyErrors++
		e.log.Warn().Err(err).Str("symbol", m.Symbol).Time("time", m.Bar.Time).
			Msg("strategy failed; treating as no signals")
		return
	}
	for _, s := range sigs {
		if s.Symbol == "" {
			s.Symbol = m.Symbol
		}
		if s.Time.IsZero() {
			s.Time = m.Bar.Time
		}
		e.queue.Push(event.NewSignal(s))
	}
}

// generate calls the strategy with a copy of the window and converts a
// panic into an error.
func (e *Engine) generate(symbol string, window []market.Bar) (sigs []event.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			sigs, err = nil, fmt.Errorf("strategy %s panicked: %v", e.strategy.Name(), r)
		}
	}()
	recent := append([]market.Bar(nil), window...)
	return e.strategy.GenerateSignals(symbol, recent)
}

func (e *Engine) onSignal(s event.Signal) {
	e.stats.Signals++

	o, err := e.ledger.OnSignal(s)
	if err != nil {
		e.stats.RejectedSignals++
		l := e.log.Warn()
		if errors.Is(err, portfolio.ErrInsufficientCapital) {
			l = e.log.Debug()
		}
		l.Err(err).Str("symbol", s.Symbol).Stringer("direction", s.Direction).Msg("signal rejected")
		return
	}
	if o == nil {
		return
	}

	e.stats.Orders++
	if o.Truncated {
		e.stats.TruncatedOrders++
	}
	e.queue.Push(event.NewOrder(*o))
}

func (e *Engine) onOrder(o event.Order) {
	f, ok := e.sim.Execute(o)
	if !ok {
		e.stats.DroppedOrders++
		e.log.Debug().Str("order", o.ID).Str("symbol", o.Symbol).Msg("partial fill rounded to zero; order dropped")
		return
	}
	if f.Quantity.LessThan(f.Requested) {
		e.stats.PartialFills++
	}
	e.queue.Push(event.NewFill(f))
}

func (e *Engine) onFill(f event.Fill) error {
	if err := e.ledger.ApplyFill(f); err != nil {
		return fmt.Errorf("backtest: applying fill %s for order %s: %w", f.ID, f.OrderID, err)
	}
	e.stats.Fills++
	e.stats.TotalCommission = e.stats.TotalCommission.Add(f.Commission)
	e.analyzer.RecordFill(f)

	e.log.Debug().
		Str("symbol", f.Symbol).
		Stringer("side", f.Side).
		Str("qty", f.Quantity.String()).
		Str("price", f.Price.String()).
		Str("commission", f.Commission.String()).
		Msg("fill")
	return nil
}
