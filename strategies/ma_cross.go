package strategies

import (
	"fmt"
	"sort"

	"github.com/rustyeddy/backtester/event"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

// MAKind picks the moving average a MACross is built on.
type MAKind int

const (
	EMA MAKind = iota
	SMA
)

// MACross trades a fast/slow moving average crossover per symbol.
//   - bull cross (fast goes above slow): LONG
//   - bear cross: SHORT when AllowShort, otherwise EXIT
//
// It only signals on a cross, never while the averages stay apart.
type MACross struct {
	cfg  Config
	kind MAKind

	state map[string]*crossState
}

type crossState struct {
	fast, slow   indicators.Indicator
	last         market.Bar
	lastDiff     float64
	haveLastDiff bool
}

func NewMACross(cfg Config, kind MAKind) (*MACross, error) {
	if cfg.FastPeriod == 0 {
		cfg.FastPeriod = 10
	}
	if cfg.SlowPeriod == 0 {
		cfg.SlowPeriod = 30
	}
	if cfg.FastPeriod < 1 || cfg.SlowPeriod <= cfg.FastPeriod {
		return nil, fmt.Errorf("ma-cross: need 0 < fast_period < slow_period, got %d/%d", cfg.FastPeriod, cfg.SlowPeriod)
	}
	return &MACross{cfg: cfg, kind: kind, state: make(map[string]*crossState)}, nil
}

func (s *MACross) Name() string {
	if s.kind == SMA {
		return fmt.Sprintf("sma-cross(%d,%d)", s.cfg.FastPeriod, s.cfg.SlowPeriod)
	}
	return fmt.Sprintf("ema-cross(%d,%d)", s.cfg.FastPeriod, s.cfg.SlowPeriod)
}

func (s *MACross) newIndicator(period int) indicators.Indicator {
	if s.kind == SMA {
		return indicators.NewMA(period)
	}
	return indicators.NewEMA(period)
}

func (s *MACross) GenerateSignals(symbol string, recent []market.Bar) ([]event.Signal, error) {
	if len(recent) == 0 {
		return nil, nil
	}
	st, ok := s.state[symbol]
	if !ok {
		st = &crossState{
			fast: s.newIndicator(s.cfg.FastPeriod),
			slow: s.newIndicator(s.cfg.SlowPeriod),
		}
		s.state[symbol] = st
	}

	bar := recent[len(recent)-1]
	if !st.last.Time.IsZero() && !bar.Time.After(st.last.Time) {
		return nil, nil
	}
	st.last = bar
	st.fast.Update(bar)
	st.slow.Update(bar)

	if !st.fast.Ready() || !st.slow.Ready() {
		return nil, nil
	}

	diff := st.fast.Value() - st.slow.Value()
	if !st.haveLastDiff {
		st.lastDiff = diff
		st.haveLastDiff = true
		return nil, nil
	}

	bullCross := diff > 0 && st.lastDiff <= 0
	bearCross := diff < 0 && st.lastDiff >= 0
	st.lastDiff = diff

	sig := event.Signal{Symbol: symbol, Time: bar.Time, Confidence: 1}
	switch {
	case bullCross:
		sig.Direction = event.Long
		sig.Reason = "BullCross"
	case bearCross && s.cfg.AllowShort:
		sig.Direction = event.Short
		sig.Reason = "BearCross"
	case bearCross:
		sig.Direction = event.Exit
		sig.Reason = "ExitOnBearCross"
	default:
		return nil, nil
	}
	return []event.Signal{sig}, nil
}

func sortedStrings(s []string) []string {
	sort.Strings(s)
	return s
}
