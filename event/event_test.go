package event

import (
	"testing"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	var q Queue
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	q.Push(NewMarket("AAA", market.NewBar(ts, 1, 1, 1, 1, 0)))
	q.Push(NewSignal(Signal{Symbol: "AAA", Direction: Long}))
	assert.Equal(t, 2, q.Len())

	e, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, MarketKind, e.Kind)

	// pushed while draining: goes behind the queued signal
	q.Push(NewOrder(Order{ID: "o1"}))

	e, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, SignalKind, e.Kind)

	e, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, OrderKind, e.Kind)
	assert.Equal(t, "o1", e.Order.ID)

	_, ok = q.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestEventPayloads(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	e := NewFill(Fill{ID: "f1", Time: ts, Side: Sell, Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(5)})
	assert.Equal(t, FillKind, e.Kind)
	assert.Nil(t, e.Market)
	assert.Nil(t, e.Signal)
	assert.Nil(t, e.Order)
	assert.True(t, e.Time().Equal(ts))

	assert.Equal(t, "-10", e.Fill.SignedQuantity().String())
	assert.Equal(t, "50", e.Fill.Notional().String())
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "LONG", Long.String())
	assert.Equal(t, "EXIT", Exit.String())
	assert.Equal(t, "BUY", Buy.String())
	assert.Equal(t, "SELL", Sell.String())
	assert.Equal(t, "FILL", FillKind.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
