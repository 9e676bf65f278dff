package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/backtester/event"
	"github.com/rustyeddy/backtester/portfolio"
	"github.com/rustyeddy/backtester/stats"
	"github.com/shopspring/decimal"
)

// ExecutionStats counts what the event loop did.
type ExecutionStats struct {
	Events          int
	MarketEvents    int
	Signals         int
	Orders          int
	Fills           int
	RejectedSignals int
	TruncatedOrders int
	DroppedOrders   int
	PartialFills    int
	SkippedBars     int
	StrategyErrors  int
	TotalCommission decimal.Decimal
	Elapsed         time.Duration
}

// Report is the outcome of a run, or of the part of it that completed
// before a fatal error.
type Report struct {
	RunID    string
	Strategy string
	Symbols  []string

	Start time.Time
	End   time.Time

	InitialCapital decimal.Decimal
	FinalEquity    decimal.Decimal
	FinalCash      decimal.Decimal
	RealizedPL     decimal.Decimal
	OpenPositions  []portfolio.Position

	Metrics     stats.Metrics
	EquityCurve []stats.EquityPoint
	Fills       []event.Fill
	Trades      []stats.RoundTrip
	Stats       ExecutionStats
}

func (e *Engine) report() *Report {
	snap := e.ledger.Snapshot()
	curve := e.analyzer.EquityCurve()
	fills := e.analyzer.Fills()

	r := &Report{
		RunID:          e.opts.RunID,
		Strategy:       e.strategy.Name(),
		Symbols:        e.source.Symbols(),
		InitialCapital: e.ledger.InitialCapital(),
		FinalEquity:    snap.Equity,
		FinalCash:      snap.Cash,
		RealizedPL:     snap.RealizedPL,
		OpenPositions:  snap.Positions,
		Metrics:        e.analyzer.Compute(),
		EquityCurve:    curve,
		Fills:          fills,
		Trades:         stats.RoundTrips(fills),
		Stats:          e.stats,
	}
	if len(curve) > 0 {
		r.Start = curve[0].Time
		r.End = curve[len(curve)-1].Time
	}
	return r
}

// NetPL is final equity minus initial capital.
func (r *Report) NetPL() decimal.Decimal {
	return r.FinalEquity.Sub(r.InitialCapital)
}

func PrintReport(w io.Writer, r *Report) {
	m := r.Metrics

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")
	if r.RunID != "" {
		fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	}
	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	fmt.Fprintf(w, "Symbols:       %v\n", r.Symbols)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	if r.Start.IsZero() {
		fmt.Fprintln(w, "(no bars replayed)")
	} else {
		fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
		fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Points:        %d\n", len(r.EquityCurve))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Equity:  %s\n", r.InitialCapital.StringFixed(2))
	fmt.Fprintf(w, "End Equity:    %s\n", r.FinalEquity.StringFixed(2))
	fmt.Fprintf(w, "End Cash:      %s\n", r.FinalCash.StringFixed(2))
	fmt.Fprintf(w, "Net P/L:       %s\n", r.NetPL().StringFixed(2))
	fmt.Fprintf(w, "Return:        %.2f%%\n", m.TotalReturn*100)
	fmt.Fprintf(w, "Annual Return: %.2f%%\n", m.AnnualReturn*100)
	fmt.Fprintf(w, "Volatility:    %.2f%%\n", m.Volatility*100)
	fmt.Fprintf(w, "Sharpe:        %.3f\n", m.SharpeRatio)
	fmt.Fprintf(w, "Sortino:       %.3f\n", m.SortinoRatio)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%% (%d bars)\n", m.MaxDrawdown*100, m.MaxDrawdownDuration)
	fmt.Fprintf(w, "Calmar:        %.3f\n", m.CalmarRatio)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", m.TotalTrades)
	fmt.Fprintf(w, "Wins:          %d\n", m.WinningTrades)
	fmt.Fprintf(w, "Losses:        %d\n", m.LosingTrades)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", m.WinRate*100)
	if m.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", m.ProfitFactor)
	}
	fmt.Fprintf(w, "Avg Win/Loss:  %.2f / %.2f\n", m.AverageWin, m.AverageLoss)
	fmt.Fprintf(w, "Largest W/L:   %.2f / %.2f\n", m.LargestWin, m.LargestLoss)

	if len(r.OpenPositions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Open Positions")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, p := range r.OpenPositions {
			fmt.Fprintf(w, "- %s qty=%s avg=%s mark=%s upl=%s\n",
				p.Symbol, p.Quantity, p.AvgPrice.StringFixed(4), p.CurrentPrice.StringFixed(4), p.UnrealizedPL().StringFixed(2))
		}
	}

	s := r.Stats
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Execution")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Events:        %d (market %d, signals %d, orders %d, fills %d)\n",
		s.Events, s.MarketEvents, s.Signals, s.Orders, s.Fills)
	fmt.Fprintf(w, "Rejected:      %d signals, %d dropped orders\n", s.RejectedSignals, s.DroppedOrders)
	fmt.Fprintf(w, "Truncated:     %d orders, %d partial fills\n", s.TruncatedOrders, s.PartialFills)
	fmt.Fprintf(w, "Skipped Bars:  %d\n", s.SkippedBars)
	fmt.Fprintf(w, "Strategy Errs: %d\n", s.StrategyErrors)
	fmt.Fprintf(w, "Commission:    %s\n", s.TotalCommission.StringFixed(2))
	fmt.Fprintf(w, "Elapsed:       %s\n", s.Elapsed.Round(time.Microsecond))
	fmt.Fprintln(w)
}
