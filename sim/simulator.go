// Package sim simulates order execution against the bar close with
// slippage, size-dependent market impact, commission and optional
// partial fills.
package sim

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/rustyeddy/backtester/event"
	"github.com/rustyeddy/backtester/internal/id"
	"github.com/shopspring/decimal"
)

var ErrInvalidConfig = errors.New("invalid execution config")

const defaultMinPrice = 0.0001

var tenThousand = decimal.NewFromInt(10_000)

type Config struct {
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate" toml:"commission_rate"`
	SlippageBps    float64 `json:"slippage_bps" yaml:"slippage_bps" toml:"slippage_bps"`

	// MarketImpactBpsPerUnitNotional adds this many basis points of adverse
	// price movement per unit of order notional.
	MarketImpactBpsPerUnitNotional float64 `json:"market_impact_bps_per_unit_notional" yaml:"market_impact_bps_per_unit_notional" toml:"market_impact_bps_per_unit_notional"`

	// PartialFillProbability is the chance that an order only fills a
	// random fraction of its quantity. The remainder is dropped.
	PartialFillProbability float64 `json:"partial_fill_probability" yaml:"partial_fill_probability" toml:"partial_fill_probability"`

	// MinPrice is the strictly positive floor for fill prices.
	MinPrice float64 `json:"min_price,omitempty" yaml:"min_price,omitempty" toml:"min_price,omitempty"`

	Seed int64 `json:"seed" yaml:"seed" toml:"seed"`
}

func (c Config) Validate() error {
	switch {
	case c.CommissionRate < 0 || c.CommissionRate >= 1:
		return fmt.Errorf("%w: commission_rate must be in [0, 1)", ErrInvalidConfig)
	case c.SlippageBps < 0:
		return fmt.Errorf("%w: slippage_bps must be >= 0", ErrInvalidConfig)
	case c.MarketImpactBpsPerUnitNotional < 0:
		return fmt.Errorf("%w: market_impact_bps_per_unit_notional must be >= 0", ErrInvalidConfig)
	case c.PartialFillProbability < 0 || c.PartialFillProbability > 1:
		return fmt.Errorf("%w: partial_fill_probability must be in [0, 1]", ErrInvalidConfig)
	case c.MinPrice < 0:
		return fmt.Errorf("%w: min_price must be >= 0 (0 selects the default floor)", ErrInvalidConfig)
	}
	return nil
}

// Simulator fills orders. It is deterministic for a given Config.Seed and
// order sequence.
type Simulator struct {
	commission decimal.Decimal
	slippage   decimal.Decimal
	impact     decimal.Decimal
	minPrice   decimal.Decimal
	partial    float64

	rng *rand.Rand
	ids *id.Generator
}

// New validates cfg and returns a Simulator. ids may be nil, in which case
// fill ids are drawn from a generator seeded with cfg.Seed.
func New(cfg Config, ids *id.Generator) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MinPrice == 0 {
		cfg.MinPrice = defaultMinPrice
	}
	if ids == nil {
		ids = id.NewGenerator(cfg.Seed)
	}
	return &Simulator{
		commission: decimal.NewFromFloat(cfg.CommissionRate),
		slippage:   decimal.NewFromFloat(cfg.SlippageBps),
		impact:     decimal.NewFromFloat(cfg.MarketImpactBpsPerUnitNotional),
		minPrice:   decimal.NewFromFloat(cfg.MinPrice),
		partial:    cfg.PartialFillProbability,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		ids:        ids,
	}, nil
}

// Quote returns the fill price and commission for qty units on side at
// reference price ref. Slippage and impact always move the price against
// the taker: up for buys, down for sells.
func (s *Simulator) Quote(side event.Side, qty, ref decimal.Decimal) (price, commission decimal.Decimal) {
	qty = qty.Abs()
	notional := qty.Mul(ref)
	bps := s.slippage.Add(s.impact.Mul(notional))
	adj := ref.Mul(bps).Div(tenThousand)

	price = ref.Add(adj.Mul(side.Sign()))
	if price.LessThan(s.minPrice) {
		price = s.minPrice
	}
	commission = price.Mul(qty).Abs().Mul(s.commission)
	return price, commission
}

// EstimateCost is the cash a buy of qty at ref would consume, commission
// included. A full fill of that order consumes exactly this amount.
func (s *Simulator) EstimateCost(qty, ref decimal.Decimal) decimal.Decimal {
	price, commission := s.Quote(event.Buy, qty, ref)
	return price.Mul(qty.Abs()).Add(commission)
}

// Execute fills o. ok is false when a partial fill rounds down to nothing;
// the order is then dropped.
func (s *Simulator) Execute(o event.Order) (f event.Fill, ok bool) {
	qty := o.Quantity.Abs()
	if s.partial > 0 && s.rng.Float64() < s.partial {
		frac := decimal.NewFromFloat(s.rng.Float64())
		qty = qty.Mul(frac).Floor()
	}
	if !qty.IsPositive() {
		return event.Fill{}, false
	}

	price, commission := s.Quote(o.Side, qty, o.RefPrice)
	return event.Fill{
		ID:         s.ids.New(o.Time),
		OrderID:    o.ID,
		Symbol:     o.Symbol,
		Time:       o.Time,
		Side:       o.Side,
		Quantity:   qty,
		Requested:  o.Quantity.Abs(),
		Price:      price,
		RefPrice:   o.RefPrice,
		Commission: commission,
	}, true
}
