package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/backtester/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBars(t *testing.T, dir, symbol string, closes ...float64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("time,open,high,low,close,volume\n")
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		ts := start.AddDate(0, 0, i).Format(time.RFC3339)
		fmt.Fprintf(&b, "%s,%g,%g,%g,%g,1000\n", ts, c, c+1, c-1, c)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, symbol+".csv"), []byte(b.String()), 0o644))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	writeBars(t, dir, "AAA", 100, 101, 102, 103, 104)
	writeBars(t, dir, "BBB", 50, 49, 48, 47, 46)

	cfg := config.Default()
	cfg.Strategy.Name = "buy-hold"
	cfg.Data = config.DataConfig{Dir: dir, Symbols: []string{"AAA", "BBB"}}
	cfg.Log.Level = "disabled"
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunBacktest(t *testing.T) {
	cfg := testConfig(t)

	r, err := runBacktest(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, "buy-hold", r.Strategy)
	assert.Equal(t, []string{"AAA", "BBB"}, r.Symbols)
	assert.Len(t, r.Fills, 2)
	assert.Len(t, r.EquityCurve, 5)
	assert.Len(t, r.OpenPositions, 2)
	assert.True(t, r.FinalCash.IsPositive())
}

func TestRunBacktestMissingData(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.Symbols = append(cfg.Data.Symbols, "ZZZ")

	r, err := runBacktest(cfg, zerolog.Nop())
	assert.Nil(t, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZZZ")
}

func TestRunBacktestReplayWindow(t *testing.T) {
	cfg := testConfig(t)
	cfg.Replay.Start = "2024-01-03"
	cfg.Replay.End = "2024-01-05"

	r, err := runBacktest(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, r.EquityCurve, 2)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), r.Start)
}

func TestRunCommandJournals(t *testing.T) {
	cfg := testConfig(t)
	out := t.TempDir()
	cfg.Journal = config.JournalConfig{
		Type:    "sqlite",
		DBPath:  filepath.Join(out, "runs.sqlite"),
		OrgPath: filepath.Join(out, "run.org"),
	}
	path := filepath.Join(out, "backtest.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"run", "-f", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, stdout.String(), "Backtest Result")
	assert.Contains(t, stdout.String(), "buy-hold")
	assert.FileExists(t, cfg.Journal.DBPath)

	org, err := os.ReadFile(cfg.Journal.OrgPath)
	require.NoError(t, err)
	assert.Contains(t, string(org), "buy-hold")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backtest.toml")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"config", "init", "-o", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, stdout.String(), path)

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestDayBounds(t *testing.T) {
	start, end, err := dayBounds(time.UTC, "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	_, _, err = dayBounds(time.UTC, "15/01/2024")
	assert.Error(t, err)
}
