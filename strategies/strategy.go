// Package strategies holds the Strategy contract and a few reference
// strategies used to drive the engine end to end.
package strategies

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rustyeddy/backtester/event"
	"github.com/rustyeddy/backtester/market"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy turns the recent bars of one symbol into signals. recent is
// oldest first and ends with the bar being processed. A strategy may keep
// internal state but never touches the ledger.
type Strategy interface {
	Name() string
	GenerateSignals(symbol string, recent []market.Bar) ([]event.Signal, error)
}

// Config selects and parameterises one of the built-in strategies.
type Config struct {
	Name       string `json:"name" yaml:"name" toml:"name"`
	FastPeriod int    `json:"fast_period,omitempty" yaml:"fast_period,omitempty" toml:"fast_period,omitempty"`
	SlowPeriod int    `json:"slow_period,omitempty" yaml:"slow_period,omitempty" toml:"slow_period,omitempty"`

	// AllowShort makes the cross strategies reverse into a short on a bear
	// cross instead of only exiting.
	AllowShort bool `json:"allow_short,omitempty" yaml:"allow_short,omitempty" toml:"allow_short,omitempty"`
}

// Factory builds a fresh strategy from cfg.
type Factory func(cfg Config) (Strategy, error)

var registry = map[string]Factory{
	"noop":      func(Config) (Strategy, error) { return NoopStrategy{}, nil },
	"buy-hold":  func(Config) (Strategy, error) { return NewBuyHold(), nil },
	"ema-cross": func(cfg Config) (Strategy, error) { return NewMACross(cfg, EMA) },
	"sma-cross": func(cfg Config) (Strategy, error) { return NewMACross(cfg, SMA) },
}

var aliases = map[string]string{
	"none":      "noop",
	"open-once": "buy-hold",
	"buyhold":   "buy-hold",
	"emacross":  "ema-cross",
	"smacross":  "sma-cross",
}

// Register adds or replaces a named factory.
func Register(name string, f Factory) {
	registry[normalize(name)] = f
}

// Names lists the registered strategy names.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	return sortedStrings(out)
}

// ByName builds the strategy named by cfg.Name.
func ByName(cfg Config) (Strategy, error) {
	name := normalize(cfg.Name)
	if a, ok := aliases[name]; ok {
		name = a
	}
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownStrategy, cfg.Name, strings.Join(Names(), ", "))
	}
	return f(cfg)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
