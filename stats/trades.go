package stats

import (
	"time"

	"github.com/rustyeddy/backtester/event"
	"github.com/rustyeddy/backtester/portfolio"
	"github.com/shopspring/decimal"
)

// RoundTrip is one completed trade: a position opened from flat and
// carried back to flat, or through a flip to the other side.
type RoundTrip struct {
	Symbol   string
	Long     bool
	Opened   time.Time
	Closed   time.Time
	Quantity decimal.Decimal // largest absolute size held during the trip
	PnL      decimal.Decimal // realized, gross of commission
}

type openTrip struct {
	lot  portfolio.Lot
	trip RoundTrip
}

// RoundTrips replays fills per symbol with the ledger's averaging and flip
// rules and returns every completed trip in completion order. Positions
// still open after the last fill produce nothing.
func RoundTrips(fills []event.Fill) []RoundTrip {
	open := make(map[string]*openTrip)
	var out []RoundTrip

	for _, f := range fills {
		qty := f.SignedQuantity()
		if qty.IsZero() {
			continue
		}

		ot, ok := open[f.Symbol]
		if !ok {
			ot = &openTrip{}
			open[f.Symbol] = ot
		}
		if ot.lot.Quantity.IsZero() {
			ot.trip = RoundTrip{Symbol: f.Symbol, Long: qty.IsPositive(), Opened: f.Time}
		}

		prev := ot.lot.Quantity
		next, realized := ot.lot.Apply(qty, f.Price)
		ot.lot = next
		ot.trip.PnL = ot.trip.PnL.Add(realized)
		if prev.IsZero() || prev.Sign() == next.Quantity.Sign() {
			ot.trip.Quantity = decimal.Max(ot.trip.Quantity, next.Quantity.Abs())
		}

		flipped := !prev.IsZero() && !next.Quantity.IsZero() && prev.Sign() != next.Quantity.Sign()
		if next.Quantity.IsZero() || flipped {
			ot.trip.Closed = f.Time
			out = append(out, ot.trip)
			ot.trip = RoundTrip{}
		}
		if flipped {
			ot.trip = RoundTrip{
				Symbol:   f.Symbol,
				Long:     next.Quantity.IsPositive(),
				Opened:   f.Time,
				Quantity: next.Quantity.Abs(),
			}
		}
	}
	return out
}

type tradeStats struct {
	total, wins, losses   int
	winRate, profitFactor float64
	avgWin, avgLoss       float64
	largestWin            float64
	largestLoss           float64
}

func summarizeTrips(trips []RoundTrip) tradeStats {
	var s tradeStats
	var gross, grossLoss float64
	for _, t := range trips {
		pnl := t.PnL.InexactFloat64()
		s.total++
		switch {
		case pnl > 0:
			s.wins++
			gross += pnl
			if pnl > s.largestWin {
				s.largestWin = pnl
			}
		case pnl < 0:
			s.losses++
			grossLoss += pnl
			if pnl < s.largestLoss {
				s.largestLoss = pnl
			}
		}
	}
	if s.total > 0 {
		s.winRate = float64(s.wins) / float64(s.total)
	}
	if s.wins > 0 {
		s.avgWin = gross / float64(s.wins)
	}
	if s.losses > 0 {
		s.avgLoss = grossLoss / float64(s.losses)
		s.profitFactor = gross / -grossLoss
	}
	return s
}
