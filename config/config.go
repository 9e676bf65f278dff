// Package config loads, validates and saves a backtest run configuration.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rustyeddy/backtester/portfolio"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/stats"
	"github.com/rustyeddy/backtester/strategies"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

// Config represents a complete backtest run.
type Config struct {
	Portfolio portfolio.Config  `json:"portfolio" yaml:"portfolio" toml:"portfolio"`
	Execution sim.Config        `json:"execution" yaml:"execution" toml:"execution"`
	Stats     stats.Config      `json:"stats" yaml:"stats" toml:"stats"`
	Sizer     risk.Config       `json:"sizer" yaml:"sizer" toml:"sizer"`
	Strategy  strategies.Config `json:"strategy" yaml:"strategy" toml:"strategy"`
	Replay    ReplayConfig      `json:"replay" yaml:"replay" toml:"replay"`
	Data      DataConfig        `json:"data" yaml:"data" toml:"data"`
	Journal   JournalConfig     `json:"journal" yaml:"journal" toml:"journal"`
	Log       LogConfig         `json:"log" yaml:"log" toml:"log"`
}

// ReplayConfig bounds the replay to [Start, End). Dates are RFC3339 or
// YYYY-MM-DD; empty means unbounded.
type ReplayConfig struct {
	Start    string `json:"start,omitempty" yaml:"start,omitempty" toml:"start,omitempty"`
	End      string `json:"end,omitempty" yaml:"end,omitempty" toml:"end,omitempty"`
	Lookback int    `json:"lookback,omitempty" yaml:"lookback,omitempty" toml:"lookback,omitempty"`
}

// DataConfig locates one CSV file per symbol. Files overrides the
// default path Dir/<symbol>.csv for individual symbols.
type DataConfig struct {
	Dir     string            `json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty"`
	Symbols []string          `json:"symbols" yaml:"symbols" toml:"symbols"`
	Files   map[string]string `json:"files,omitempty" yaml:"files,omitempty" toml:"files,omitempty"`
}

// Path returns the CSV file for symbol.
func (d DataConfig) Path(symbol string) string {
	if p, ok := d.Files[symbol]; ok && p != "" {
		return p
	}
	return filepath.Join(d.Dir, symbol+".csv")
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type    string `json:"type" yaml:"type" toml:"type"` // "none", "csv" or "sqlite"
	Dir     string `json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty"`
	DBPath  string `json:"db_path,omitempty" yaml:"db_path,omitempty" toml:"db_path,omitempty"`
	OrgPath string `json:"org_path,omitempty" yaml:"org_path,omitempty" toml:"org_path,omitempty"`
}

type LogConfig struct {
	Level string `json:"level,omitempty" yaml:"level,omitempty" toml:"level,omitempty"`
}

// LoadFromFile loads a configuration. .toml files are decoded as TOML;
// anything else is tried as YAML and then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config (toml): %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = &Config{}
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML, TOML or JSON based on
// the file extension.
func (c *Config) SaveToFile(path string) error {
	data, err := c.Marshal(path)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Marshal encodes c in the format implied by path's extension.
func (c *Config) Marshal(path string) ([]byte, error) {
	switch {
	case isYAML(path):
		return yaml.Marshal(c)
	case isTOML(path):
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return json.MarshalIndent(c, "", "  ")
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func isTOML(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".toml"
}

// Validate checks every section so that a bad run fails before any data
// is loaded.
func (c *Config) Validate() error {
	if err := c.Portfolio.Validate(); err != nil {
		return err
	}
	if err := c.Execution.Validate(); err != nil {
		return err
	}
	if err := c.Stats.Validate(); err != nil {
		return err
	}
	if _, err := risk.New(c.Sizer); err != nil {
		return err
	}
	if _, err := strategies.ByName(c.Strategy); err != nil {
		return err
	}
	if _, _, err := c.Range(); err != nil {
		return err
	}
	if c.Replay.Lookback < 0 {
		return fmt.Errorf("%w: replay.lookback must be >= 0", ErrInvalid)
	}
	if len(c.Data.Symbols) == 0 {
		return fmt.Errorf("%w: data.symbols is required", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Data.Symbols))
	for _, s := range c.Data.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: data.symbols contains an empty symbol", ErrInvalid)
		}
		if seen[s] {
			return fmt.Errorf("%w: data.symbols lists %q twice", ErrInvalid, s)
		}
		seen[s] = true
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.Dir == "" {
			return fmt.Errorf("%w: journal dir required for CSV type", ErrInvalid)
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("%w: journal db_path required for SQLite type", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: journal.type must be 'none', 'csv' or 'sqlite'", ErrInvalid)
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("%w: unknown log.level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}

// Range parses the replay bounds.
func (c *Config) Range() (start, end time.Time, err error) {
	if start, err = parseDate(c.Replay.Start); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: replay.start: %v", ErrInvalid, err)
	}
	if end, err = parseDate(c.Replay.End); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: replay.end: %v", ErrInvalid, err)
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: replay.start must be before replay.end", ErrInvalid)
	}
	return start, end, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Portfolio: portfolio.Config{
			InitialCapital: 100000,
			CapitalPolicy:  portfolio.Truncate,
		},
		Execution: sim.Config{
			CommissionRate: 0.0005,
			SlippageBps:    2,
			Seed:           1,
		},
		Stats: stats.Config{
			RiskFreeRate:   0.02,
			PeriodsPerYear: stats.DefaultPeriodsPerYear,
		},
		Sizer: risk.Config{
			Type:    "percent_of_equity",
			Percent: 0.25,
		},
		Strategy: strategies.Config{
			Name:       "ema-cross",
			FastPeriod: 10,
			SlowPeriod: 30,
		},
		Replay: ReplayConfig{Lookback: 200},
		Data: DataConfig{
			Dir:     "./data",
			Symbols: []string{"SPY"},
		},
		Journal: JournalConfig{Type: "none"},
		Log:     LogConfig{Level: "info"},
	}
}
