package strategies

import (
	"github.com/rustyeddy/backtester/event"
	"github.com/rustyeddy/backtester/market"
)

// BuyHold emits a single LONG per symbol on the first bar it sees and
// then holds.
type BuyHold struct {
	opened map[string]bool
}

func NewBuyHold() *BuyHold {
	return &BuyHold{opened: make(map[string]bool)}
}

func (s *BuyHold) Name() string { return "buy-hold" }

func (s *BuyHold) GenerateSignals(symbol string, recent []market.Bar) ([]event.Signal, error) {
	if len(recent) == 0 || s.opened[symbol] {
		return nil, nil
	}
	s.opened[symbol] = true

	last := recent[len(recent)-1]
	return []event.Signal{{
		Symbol:     symbol,
		Time:       last.Time,
		Direction:  event.Long,
		Confidence: 1,
		Reason:     "BuyAndHold",
	}}, nil
}
