package portfolio

import (
	"github.com/shopspring/decimal"
)

// Lot is a signed quantity at a volume-weighted average price.
type Lot struct {
	Quantity decimal.Decimal
	AvgPrice decimal.Decimal
}

// Apply books a signed fill against the lot and returns the new lot and
// the P&L realized by it.
//
//   - flat: opens at the fill price
//   - same direction: size-weighted average price
//   - opposite, |fill| <= |lot|: realizes -fillQty*(price-avg), avg unchanged
//   - opposite, |fill| > |lot|: realizes the whole lot, then opens the
//     remainder at the fill price
func (l Lot) Apply(fillQty, price decimal.Decimal) (Lot, decimal.Decimal) {
	if fillQty.IsZero() {
		return l, decimal.Zero
	}
	if l.Quantity.IsZero() {
		return Lot{Quantity: fillQty, AvgPrice: price}, decimal.Zero
	}

	if l.Quantity.Sign() == fillQty.Sign() {
		total := l.Quantity.Add(fillQty)
		cost := l.Quantity.Abs().Mul(l.AvgPrice).Add(fillQty.Abs().Mul(price))
		return Lot{Quantity: total, AvgPrice: cost.Div(total.Abs())}, decimal.Zero
	}

	if fillQty.Abs().LessThanOrEqual(l.Quantity.Abs()) {
		realized := fillQty.Neg().Mul(price.Sub(l.AvgPrice))
		rest := l.Quantity.Add(fillQty)
		if rest.IsZero() {
			return Lot{}, realized
		}
		return Lot{Quantity: rest, AvgPrice: l.AvgPrice}, realized
	}

	// flip
	realized := l.Quantity.Mul(price.Sub(l.AvgPrice))
	return Lot{Quantity: l.Quantity.Add(fillQty), AvgPrice: price}, realized
}

// Position is the ledger's holding in one symbol. Quantity is positive
// for long and negative for short; a flat symbol has no Position.
type Position struct {
	Symbol       string
	Quantity     decimal.Decimal
	AvgPrice     decimal.Decimal
	CurrentPrice decimal.Decimal
	RealizedPL   decimal.Decimal
}

// MarketValue is quantity × current price; negative for shorts.
func (p Position) MarketValue() decimal.Decimal {
	return p.Quantity.Mul(p.CurrentPrice)
}

// UnrealizedPL is quantity × (current - average).
func (p Position) UnrealizedPL() decimal.Decimal {
	return p.Quantity.Mul(p.CurrentPrice.Sub(p.AvgPrice))
}

func (p Position) lot() Lot { return Lot{Quantity: p.Quantity, AvgPrice: p.AvgPrice} }
