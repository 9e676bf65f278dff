// Package portfolio is the cash and position ledger. It sizes signals
// into capital-bounded orders, reserves cash for admitted buys so that
// several signals in one bar cannot spend the same money twice, and books
// fills with exact decimal accounting.
package portfolio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/backtester/event"
	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/risk"
	"github.com/shopspring/decimal"
)

// CapitalPolicy decides what happens to a buy that costs more than the
// available cash.
type CapitalPolicy string

const (
	Truncate CapitalPolicy = "truncate"
	Reject   CapitalPolicy = "reject"
)

type Config struct {
	InitialCapital float64       `json:"initial_capital" yaml:"initial_capital" toml:"initial_capital"`
	CapitalPolicy  CapitalPolicy `json:"capital_policy,omitempty" yaml:"capital_policy,omitempty" toml:"capital_policy,omitempty"`
}

func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial_capital must be positive", ErrInvalidConfig)
	}
	switch c.CapitalPolicy {
	case "", Truncate, Reject:
	default:
		return fmt.Errorf("%w: capital_policy must be %q or %q", ErrInvalidConfig, Truncate, Reject)
	}
	return nil
}

// CostEstimator prices the cash a buy of qty at ref will consume.
// sim.Simulator implements it.
type CostEstimator interface {
	EstimateCost(qty, ref decimal.Decimal) decimal.Decimal
}

type notionalOnly struct{}

func (notionalOnly) EstimateCost(qty, ref decimal.Decimal) decimal.Decimal {
	return qty.Abs().Mul(ref)
}

type reservation struct {
	symbol string
	qty    decimal.Decimal // signed, counts toward the symbol's pending exposure
	amount decimal.Decimal
}

type mark struct {
	price decimal.Decimal
	time  time.Time
}

// Ledger owns cash, reserved cash and positions. Every method takes the
// ledger lock, so callers may share one Ledger across goroutines.
type Ledger struct {
	mu sync.Mutex

	initial     decimal.Decimal
	cash        decimal.Decimal
	reserved    decimal.Decimal
	realized    decimal.Decimal
	commissions decimal.Decimal

	positions    map[string]*Position
	marks        map[string]mark
	pending      map[string]decimal.Decimal
	reservations map[string]reservation

	sizer  risk.Sizer
	cost   CostEstimator
	policy CapitalPolicy
	ids    *id.Generator
}

// NewLedger validates cfg and returns a ledger holding only cash.
// cost may be nil, in which case buys are priced at plain notional.
func NewLedger(cfg Config, sizer risk.Sizer, cost CostEstimator, ids *id.Generator) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sizer == nil {
		return nil, fmt.Errorf("%w: position sizer is required", ErrInvalidConfig)
	}
	if cost == nil {
		cost = notionalOnly{}
	}
	if ids == nil {
		ids = id.NewGenerator(0)
	}
	policy := cfg.CapitalPolicy
	if policy == "" {
		policy = Truncate
	}

	capital := decimal.NewFromFloat(cfg.InitialCapital)
	return &Ledger{
		initial:      capital,
		cash:         capital,
		positions:    make(map[string]*Position),
		marks:        make(map[string]mark),
		pending:      make(map[string]decimal.Decimal),
		reservations: make(map[string]reservation),
		sizer:        sizer,
		cost:         cost,
		policy:       policy,
		ids:          ids,
	}, nil
}

// Mark records the latest known price for symbol and revalues its position.
func (l *Ledger) Mark(symbol string, price decimal.Decimal, t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.marks[symbol] = mark{price: price, time: t}
	if p, ok := l.positions[symbol]; ok {
		p.CurrentPrice = price
	}
}

// OnSignal converts a signal into an order, or returns nil when no order
// is needed. Capital shortfalls under the reject policy, or when nothing
// at all is affordable, return ErrInsufficientCapital; they are never fatal.
func (l *Ledger) OnSignal(sig event.Signal) (*event.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.marks[sig.Symbol]
	if !ok || !m.price.IsPositive() {
		return nil, fmt.Errorf("%w for %s", ErrNoPrice, sig.Symbol)
	}

	switch sig.Direction {
	case event.Exit:
		return l.exitLocked(sig, m), nil
	case event.Long, event.Short:
		return l.targetLocked(sig, m)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDirection, sig.Direction)
	}
}

// exitLocked closes the held position exactly, bypassing the sizer and
// the capital check.
func (l *Ledger) exitLocked(sig event.Signal, m mark) *event.Order {
	p, ok := l.positions[sig.Symbol]
	if !ok || p.Quantity.IsZero() {
		return nil
	}

	o := l.newOrderLocked(sig, m)
	o.Exit = true
	o.Quantity = p.Quantity.Abs()
	o.Side = event.Sell
	if p.Quantity.IsNegative() {
		o.Side = event.Buy
		// a cover is never throttled; its earmark is capped so reserved <= cash
		amount := decimal.Min(l.cost.EstimateCost(o.Quantity, m.price), l.availableLocked())
		l.reserveLocked(o, amount)
	} else {
		l.reserveLocked(o, decimal.Zero)
	}
	return o
}

func (l *Ledger) targetLocked(sig event.Signal, m mark) (*event.Order, error) {
	target := l.sizer.Size(sig, l.equityLocked(), m.price)
	if target.IsNegative() {
		target = decimal.Zero
	}
	if sig.Direction == event.Short {
		target = target.Neg()
	}

	current := l.pending[sig.Symbol]
	if p, ok := l.positions[sig.Symbol]; ok {
		current = current.Add(p.Quantity)
	}

	delta := target.Sub(current)
	if delta.IsZero() {
		return nil, nil
	}

	o := l.newOrderLocked(sig, m)
	o.Quantity = delta.Abs()
	if delta.IsNegative() {
		o.Side = event.Sell
		l.reserveLocked(o, decimal.Zero)
		return o, nil
	}

	o.Side = event.Buy
	available := l.availableLocked()
	cost := l.cost.EstimateCost(o.Quantity, m.price)
	if cost.GreaterThan(available) {
		if l.policy == Reject {
			return nil, fmt.Errorf("%w: %s buy %s @ %s needs %s, available %s",
				ErrInsufficientCapital, sig.Symbol, o.Quantity, m.price, cost.StringFixed(2), available.StringFixed(2))
		}
		qty := l.affordableLocked(o.Quantity, m.price, available)
		if !qty.IsPositive() {
			return nil, fmt.Errorf("%w: %s cannot afford a single unit @ %s, available %s",
				ErrInsufficientCapital, sig.Symbol, m.price, available.StringFixed(2))
		}
		o.Quantity = qty
		o.Truncated = true
		cost = l.cost.EstimateCost(qty, m.price)
	}
	l.reserveLocked(o, cost)
	return o, nil
}

// affordableLocked finds the largest whole quantity <= want whose cost fits
// in available. Cost is monotonic in quantity, so a binary search suffices.
func (l *Ledger) affordableLocked(want, price, available decimal.Decimal) decimal.Decimal {
	lo, hi := int64(0), want.Floor().IntPart()
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if l.cost.EstimateCost(decimal.NewFromInt(mid), price).LessThanOrEqual(available) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return decimal.NewFromInt(lo)
}

func (l *Ledger) newOrderLocked(sig event.Signal, m mark) *event.Order {
	return &event.Order{
		ID:       l.ids.New(m.time),
		Symbol:   sig.Symbol,
		Time:     m.time,
		RefPrice: m.price,
		Reason:   sig.Reason,
	}
}

func (l *Ledger) reserveLocked(o *event.Order, amount decimal.Decimal) {
	o.Reserved = amount
	l.reserved = l.reserved.Add(amount)
	l.reservations[o.ID] = reservation{
		symbol: o.Symbol,
		qty:    o.Quantity.Mul(o.Side.Sign()),
		amount: amount,
	}
	l.pending[o.Symbol] = l.pending[o.Symbol].Add(o.Quantity.Mul(o.Side.Sign()))
}

func (l *Ledger) releaseLocked(orderID string) {
	r, ok := l.reservations[orderID]
	if !ok {
		return
	}
	delete(l.reservations, orderID)
	l.reserved = l.reserved.Sub(r.amount)
	if l.reserved.IsNegative() {
		l.reserved = decimal.Zero
	}
	rest := l.pending[r.symbol].Sub(r.qty)
	if rest.IsZero() {
		delete(l.pending, r.symbol)
	} else {
		l.pending[r.symbol] = rest
	}
}

// ApplyFill books a fill. A fill that would leave cash negative, or that
// is itself malformed, returns an *InvariantError and changes nothing.
func (l *Ledger) ApplyFill(f event.Fill) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !f.Quantity.IsPositive() || !f.Price.IsPositive() || f.Commission.IsNegative() {
		return l.invariantLocked("apply fill", "fill quantity and price must be positive", f)
	}
	if f.Side != event.Buy && f.Side != event.Sell {
		return l.invariantLocked("apply fill", fmt.Sprintf("unresolvable side %s", f.Side), f)
	}

	signed := f.SignedQuantity()
	cash := l.cash.Sub(signed.Mul(f.Price)).Sub(f.Commission)
	if cash.IsNegative() {
		return l.invariantLocked("apply fill", fmt.Sprintf("cash would become %s", cash), f)
	}

	var lot Lot
	p, held := l.positions[f.Symbol]
	if held {
		lot = p.lot()
	}
	next, realized := lot.Apply(signed, f.Price)

	l.releaseLocked(f.OrderID)
	l.cash = cash
	l.commissions = l.commissions.Add(f.Commission)
	l.realized = l.realized.Add(realized)

	if next.Quantity.IsZero() {
		delete(l.positions, f.Symbol)
	} else {
		if !held {
			p = &Position{Symbol: f.Symbol}
			l.positions[f.Symbol] = p
		}
		p.Quantity = next.Quantity
		p.AvgPrice = next.AvgPrice
		p.RealizedPL = p.RealizedPL.Add(realized)
		p.CurrentPrice = f.Price
		if m, ok := l.marks[f.Symbol]; ok {
			p.CurrentPrice = m.price
		}
	}

	// Reservations are estimates; an under-reserved cover can leave the
	// remaining earmarks above the cash that is actually left.
	if l.reserved.GreaterThan(l.cash) {
		l.reserved = l.cash
	}
	return nil
}

// ClearReservedCash drops every outstanding reservation and pending
// quantity, whether or not its fill arrived, and returns the amount that
// was still reserved. The engine calls it once per bar.
func (l *Ledger) ClearReservedCash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	leftover := l.reserved
	l.reserved = decimal.Zero
	l.reservations = make(map[string]reservation)
	l.pending = make(map[string]decimal.Decimal)
	return leftover
}

func (l *Ledger) availableLocked() decimal.Decimal {
	a := l.cash.Sub(l.reserved)
	if a.IsNegative() {
		return decimal.Zero
	}
	return a
}

func (l *Ledger) equityLocked() decimal.Decimal {
	eq := l.cash
	for _, p := range l.positions {
		eq = eq.Add(p.MarketValue())
	}
	return eq
}

func (l *Ledger) invariantLocked(op, reason string, f event.Fill) error {
	return &InvariantError{Op: op, Reason: reason, Fill: &f, Snapshot: l.snapshotLocked()}
}

// Equity is cash plus the marked value of every position.
func (l *Ledger) Equity() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.equityLocked()
}

func (l *Ledger) Cash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

func (l *Ledger) ReservedCash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserved
}

// Available is cash not yet earmarked by an admitted order.
func (l *Ledger) Available() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.availableLocked()
}

func (l *Ledger) RealizedPL() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realized
}

func (l *Ledger) Commissions() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commissions
}

func (l *Ledger) InitialCapital() decimal.Decimal { return l.initial }

// Position returns a copy of the position in symbol.
func (l *Ledger) Position(symbol string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of all open positions sorted by symbol.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positionsLocked()
}

func (l *Ledger) positionsLocked() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Snapshot is a point-in-time copy of the ledger.
type Snapshot struct {
	Cash        decimal.Decimal
	Reserved    decimal.Decimal
	Equity      decimal.Decimal
	RealizedPL  decimal.Decimal
	Commissions decimal.Decimal
	Positions   []Position
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() Snapshot {
	return Snapshot{
		Cash:        l.cash,
		Reserved:    l.reserved,
		Equity:      l.equityLocked(),
		RealizedPL:  l.realized,
		Commissions: l.commissions,
		Positions:   l.positionsLocked(),
	}
}
