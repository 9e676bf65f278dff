package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "An event-driven backtester for bar data",
	Long: `Backtester replays historical OHLCV bars through a trading strategy.

It provides tools for:
  - Running deterministic, seeded backtests from a config file
  - Simulating commission, slippage, market impact and partial fills
  - Cash-constrained position sizing
  - Performance statistics (Sharpe, Sortino, drawdown, trade stats)
  - Journaling runs to CSV or SQLite and exporting Org summaries`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
