package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedBar is wrapped by every Bar validation failure.
var ErrMalformedBar = errors.New("malformed bar")

// Bar is one OHLCV sample. The symbol it belongs to always travels next
// to it (Source.Next, event.Market), never inside it.
type Bar struct {
	Time time.Time

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	Volume decimal.Decimal
}

// Validate checks the OHLCV invariants of a single bar.
func (b Bar) Validate() error {
	if b.Time.IsZero() {
		return fmt.Errorf("%w: zero timestamp", ErrMalformedBar)
	}
	prices := []struct {
		name string
		px   decimal.Decimal
	}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}}
	for _, p := range prices {
		if !p.px.IsPositive() {
			return fmt.Errorf("%w: %s %s is not positive", ErrMalformedBar, p.name, p.px)
		}
	}
	if b.High.LessThan(decimal.Max(b.Open, b.Close, b.Low)) {
		return fmt.Errorf("%w: high %s below open/close/low", ErrMalformedBar, b.High)
	}
	if b.Low.GreaterThan(decimal.Min(b.Open, b.Close, b.High)) {
		return fmt.Errorf("%w: low %s above open/close/high", ErrMalformedBar, b.Low)
	}
	if b.Volume.IsNegative() {
		return fmt.Errorf("%w: negative volume %s", ErrMalformedBar, b.Volume)
	}
	return nil
}

// NewBar is a float convenience constructor used by tests and the
// in-memory source.
func NewBar(t time.Time, open, high, low, close, volume float64) Bar {
	return Bar{
		Time:   t,
		Open:   decimal.NewFromFloat(open),
		High:   decimal.NewFromFloat(high),
		Low:    decimal.NewFromFloat(low),
		Close:  decimal.NewFromFloat(close),
		Volume: decimal.NewFromFloat(volume),
	}
}
