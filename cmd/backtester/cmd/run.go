package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/internal/logger"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/portfolio"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/stats"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest from a config file",
	Long: `Run a backtest using settings from a configuration file.

Bars are read from one CSV file per symbol (time,open,high,low,close[,volume]).
The report is printed to stdout; the run is journaled when the config
names a journal.

Example:
  backtester run -f backtest.yaml
  backtester run -f backtest.yaml --strategy sma-cross --seed 7`,
	RunE: runRun,
}

var (
	runConfigPath string
	runStrategy   string
	runSeed       int64
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "file", "f", "", "path to config file (YAML, TOML or JSON) (required)")
	runCmd.Flags().StringVarP(&runStrategy, "strategy", "s", "", "override strategy.name")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "override execution.seed")
	runCmd.MarkFlagRequired("file")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("strategy") {
		cfg.Strategy.Name = runStrategy
	}
	if cmd.Flags().Changed("seed") {
		cfg.Execution.Seed = runSeed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(cmd.ErrOrStderr(), cfg.Log.Level)
	if err != nil {
		return err
	}

	raw, err := cfg.Marshal(".yaml")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	report, runErr := runBacktest(cfg, log)
	if report == nil {
		return runErr
	}
	backtest.PrintReport(cmd.OutOrStdout(), report)

	if err := persist(cfg, report, raw, runErr, cmd.OutOrStdout()); err != nil {
		log.Error().Err(err).Msg("journal")
		if runErr == nil {
			return err
		}
	}
	return runErr
}

// runBacktest wires every component from cfg and runs the engine once.
// A non-nil report may accompany an error when the run aborts midway.
func runBacktest(cfg *config.Config, log zerolog.Logger) (*backtest.Report, error) {
	start, end, err := cfg.Range()
	if err != nil {
		return nil, err
	}

	ids := id.NewGenerator(cfg.Execution.Seed)
	simulator, err := sim.New(cfg.Execution, ids)
	if err != nil {
		return nil, err
	}
	sizer, err := risk.New(cfg.Sizer)
	if err != nil {
		return nil, err
	}
	ledger, err := portfolio.NewLedger(cfg.Portfolio, sizer, simulator, ids)
	if err != nil {
		return nil, err
	}
	analyzer, err := stats.NewAnalyzer(cfg.Stats)
	if err != nil {
		return nil, err
	}
	strat, err := strategies.ByName(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	series := make([]market.Series, 0, len(cfg.Data.Symbols))
	for _, sym := range cfg.Data.Symbols {
		path := cfg.Data.Path(sym)
		ser, skipped, err := market.LoadCSV(sym, path, start, end)
		if err != nil {
			return nil, fmt.Errorf("data %s: %w", sym, err)
		}
		if skipped > 0 {
			log.Warn().Str("symbol", sym).Str("file", path).Int("rows", skipped).Msg("skipped rows with unreadable time")
		}
		log.Debug().Str("symbol", sym).Int("bars", len(ser.Bars)).Msg("loaded bars")
		series = append(series, ser)
	}

	runID := ids.New(time.Now().UTC())
	engine, err := backtest.NewEngine(market.NewSliceSource(series...), strat, ledger, simulator, analyzer,
		backtest.Options{
			RunID:    runID,
			Start:    start,
			End:      end,
			Lookback: cfg.Replay.Lookback,
			Logger:   &log,
		})
	if err != nil {
		return nil, err
	}

	return engine.Run()
}

func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "csv":
		return journal.NewCSV(cfg.Dir)
	case "sqlite":
		return journal.NewSQLite(cfg.DBPath)
	default:
		return nil, nil
	}
}

func persist(cfg *config.Config, r *backtest.Report, raw []byte, runErr error, out io.Writer) error {
	rec := r.RunRecord(time.Now().UTC(), cfg.Data.Dir, raw, runErr)

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	if j != nil {
		defer j.Close()
		if err := r.WriteJournal(j, rec); err != nil {
			return err
		}
		switch cfg.Journal.Type {
		case "csv":
			fmt.Fprintf(out, "\nResults saved to: %s\n", cfg.Journal.Dir)
		case "sqlite":
			fmt.Fprintf(out, "\nResults saved to: %s\n", cfg.Journal.DBPath)
		}
	}

	if cfg.Journal.OrgPath != "" {
		if err := journal.WriteRunOrg(cfg.Journal.OrgPath, rec, r.TradeRecords()); err != nil {
			return fmt.Errorf("org export: %w", err)
		}
		fmt.Fprintf(out, "Org summary: %s\n", cfg.Journal.OrgPath)
	}
	return nil
}
