package strategies

import (
	"github.com/rustyeddy/backtester/event"
	"github.com/rustyeddy/backtester/market"
)

// NoopStrategy does nothing.
type NoopStrategy struct{}

func (NoopStrategy) Name() string { return "noop" }

func (NoopStrategy) GenerateSignals(string, []market.Bar) ([]event.Signal, error) {
	return nil, nil
}
