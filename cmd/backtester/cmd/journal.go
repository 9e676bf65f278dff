package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/backtester/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query a SQLite run journal",
	Long: `Query and display run records from a SQLite journal.

Subcommands:
  run     - Print the Org summary of a run
  trades  - List a run's completed trades

Examples:
  backtester journal run <run-id>
  backtester journal trades <run-id>
  backtester journal trades <run-id> --day 2024-01-15`,
}

var journalRunCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Print the Org summary of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalRun,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "List completed trades of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var (
	journalDBPath string
	journalDay    string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunCmd)
	journalCmd.AddCommand(journalTradesCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./backtest.sqlite", "path to SQLite journal DB")
	journalTradesCmd.Flags().StringVar(&journalDay, "day", "", "only trades closed on this day (YYYY-MM-DD, UTC)")
}

func runJournalRun(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	doc, err := j.ExportRunOrg(args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), doc)
	return nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	var recs []journal.TradeRecord
	if journalDay != "" {
		start, end, err := dayBounds(time.UTC, journalDay)
		if err != nil {
			return fmt.Errorf("date: %w", err)
		}
		recs, err = j.ListTradesClosedBetween(args[0], start, end)
		if err != nil {
			return fmt.Errorf("query trades: %w", err)
		}
	} else {
		recs, err = j.ListTrades(args[0])
		if err != nil {
			return fmt.Errorf("query trades: %w", err)
		}
	}

	printTrades(cmd.OutOrStdout(), recs)
	return nil
}

func printTrades(w io.Writer, recs []journal.TradeRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "(no trades)")
		return
	}
	fmt.Fprintf(w, "%-8s %-5s %12s %-20s %-20s %12s\n", "SYMBOL", "SIDE", "QTY", "OPENED", "CLOSED", "P/L")
	for _, t := range recs {
		fmt.Fprintf(w, "%-8s %-5s %12.4f %-20s %-20s %12.2f\n",
			t.Symbol, t.Side, t.Quantity,
			t.OpenTime.UTC().Format(time.RFC3339), t.CloseTime.UTC().Format(time.RFC3339), t.RealizedPL)
	}
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.Add(24 * time.Hour), nil
}
