// Package event defines the closed set of events the backtest engine
// queues: Market, Signal, Order and Fill.
package event

import (
	"fmt"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/shopspring/decimal"
)

type Kind uint8

const (
	MarketKind Kind = iota + 1
	SignalKind
	OrderKind
	FillKind
)

func (k Kind) String() string {
	switch k {
	case MarketKind:
		return "MARKET"
	case SignalKind:
		return "SIGNAL"
	case OrderKind:
		return "ORDER"
	case FillKind:
		return "FILL"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Direction is the intent carried by a Signal.
type Direction uint8

const (
	Long Direction = iota + 1
	Short
	Exit
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	case Exit:
		return "EXIT"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// Side is the taker side of an Order or Fill.
type Side int8

const (
	Buy  Side = +1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("Side(%d)", int8(s))
	}
}

// Sign is +1 for Buy and -1 for Sell.
func (s Side) Sign() decimal.Decimal {
	return decimal.NewFromInt(int64(s))
}

// Market announces a new bar for one symbol.
type Market struct {
	Symbol string
	Bar    market.Bar
}

// Signal is a directional intent produced by a strategy.
type Signal struct {
	Symbol     string
	Time       time.Time
	Direction  Direction
	Confidence float64
	Reason     string
}

// Order is a sized, capital-checked instruction. Quantity is always
// positive; Side carries the direction.
type Order struct {
	ID       string
	Symbol   string
	Time     time.Time
	Side     Side
	Quantity decimal.Decimal
	RefPrice decimal.Decimal

	// Reserved is the cash earmarked for this order when it was admitted.
	Reserved  decimal.Decimal
	Exit      bool
	Truncated bool
	Reason    string
}

// Fill is the simulated execution of an Order. Quantity is positive and
// may be less than Requested when the order was partially filled.
type Fill struct {
	ID         string
	OrderID    string
	Symbol     string
	Time       time.Time
	Side       Side
	Quantity   decimal.Decimal
	Requested  decimal.Decimal
	Price      decimal.Decimal
	RefPrice   decimal.Decimal
	Commission decimal.Decimal
}

// SignedQuantity is positive for buys and negative for sells.
func (f Fill) SignedQuantity() decimal.Decimal {
	return f.Quantity.Mul(f.Side.Sign())
}

// Notional is |price × quantity|.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(f.Quantity).Abs()
}

// Event is a tagged union: exactly one payload matches Kind.
type Event struct {
	Kind   Kind
	Market *Market
	Signal *Signal
	Order  *Order
	Fill   *Fill
}

func NewMarket(symbol string, bar market.Bar) Event {
	return Event{Kind: MarketKind, Market: &Market{Symbol: symbol, Bar: bar}}
}

func NewSignal(s Signal) Event { return Event{Kind: SignalKind, Signal: &s} }

func NewOrder(o Order) Event { return Event{Kind: OrderKind, Order: &o} }

func NewFill(f Fill) Event { return Event{Kind: FillKind, Fill: &f} }

// Time returns the timestamp of whichever payload is set.
func (e Event) Time() time.Time {
	switch e.Kind {
	case MarketKind:
		return e.Market.Bar.Time
	case SignalKind:
		return e.Signal.Time
	case OrderKind:
		return e.Order.Time
	case FillKind:
		return e.Fill.Time
	}
	return time.Time{}
}
