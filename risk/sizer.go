package risk

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/backtester/event"
	"github.com/shopspring/decimal"
)

var ErrInvalidSizer = errors.New("invalid position sizer")

// Sizer turns a LONG or SHORT signal into a target position magnitude.
// The ledger applies the sign and never consults the sizer for EXIT.
type Sizer interface {
	Size(sig event.Signal, equity, refPrice decimal.Decimal) decimal.Decimal
}

// FixedNotional targets the same cash amount on every signal.
type FixedNotional struct {
	Notional decimal.Decimal
}

func (s FixedNotional) Size(_ event.Signal, _, refPrice decimal.Decimal) decimal.Decimal {
	return wholeUnits(s.Notional, refPrice)
}

// PercentOfEquity targets Percent (0..1] of current equity.
type PercentOfEquity struct {
	Percent decimal.Decimal
}

func (s PercentOfEquity) Size(_ event.Signal, equity, refPrice decimal.Decimal) decimal.Decimal {
	if !equity.IsPositive() {
		return decimal.Zero
	}
	return wholeUnits(equity.Mul(s.Percent), refPrice)
}

// FixedQuantity always targets Quantity units regardless of price.
type FixedQuantity struct {
	Quantity decimal.Decimal
}

func (s FixedQuantity) Size(_ event.Signal, _, _ decimal.Decimal) decimal.Decimal {
	if s.Quantity.IsNegative() {
		return decimal.Zero
	}
	return s.Quantity.Floor()
}

func wholeUnits(notional, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !notional.IsPositive() {
		return decimal.Zero
	}
	return notional.Div(price).Floor()
}

// Config selects and parameterises one of the built-in sizers.
type Config struct {
	Type     string  `json:"type" yaml:"type" toml:"type"` // fixed_notional, percent_of_equity, fixed_quantity
	Notional float64 `json:"notional,omitempty" yaml:"notional,omitempty" toml:"notional,omitempty"`
	Percent  float64 `json:"percent,omitempty" yaml:"percent,omitempty" toml:"percent,omitempty"`
	Quantity float64 `json:"quantity,omitempty" yaml:"quantity,omitempty" toml:"quantity,omitempty"`
}

// New builds the sizer described by cfg.
func New(cfg Config) (Sizer, error) {
	switch cfg.Type {
	case "fixed_notional":
		if cfg.Notional <= 0 {
			return nil, fmt.Errorf("%w: fixed_notional needs notional > 0", ErrInvalidSizer)
		}
		return FixedNotional{Notional: decimal.NewFromFloat(cfg.Notional)}, nil
	case "percent_of_equity":
		if cfg.Percent <= 0 || cfg.Percent > 1 {
			return nil, fmt.Errorf("%w: percent_of_equity needs 0 < percent <= 1", ErrInvalidSizer)
		}
		return PercentOfEquity{Percent: decimal.NewFromFloat(cfg.Percent)}, nil
	case "fixed_quantity":
		if cfg.Quantity < 0 {
			return nil, fmt.Errorf("%w: fixed_quantity needs quantity >= 0", ErrInvalidSizer)
		}
		return FixedQuantity{Quantity: decimal.NewFromFloat(cfg.Quantity)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q (supported: fixed_notional, percent_of_equity, fixed_quantity)", ErrInvalidSizer, cfg.Type)
	}
}
