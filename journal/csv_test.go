package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, [][]string{runsHeader}, readCSV(t, filepath.Join(dir, "runs.csv")))
	assert.Equal(t, [][]string{fillsHeader}, readCSV(t, filepath.Join(dir, "fills.csv")))
	assert.Equal(t, [][]string{tradesHeader}, readCSV(t, filepath.Join(dir, "trades.csv")))
	assert.Equal(t, [][]string{equityHeader}, readCSV(t, filepath.Join(dir, "equity.csv")))
}

func TestCSVJournalRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)

	require.NoError(t, j.RecordRun(sampleRun()))
	require.NoError(t, j.RecordFill(FillRecord{
		RunID: "01HRUN", FillID: "f1", OrderID: "o1", Symbol: "AAA", Time: t0,
		Side: "buy", Quantity: 10, Requested: 12, Price: 100.5, RefPrice: 100, Commission: 0.25,
	}))
	require.NoError(t, j.RecordTrade(TradeRecord{
		RunID: "01HRUN", Symbol: "AAA", Side: "long", Quantity: 10, OpenTime: t0, CloseTime: t0, RealizedPL: -2.5,
	}))
	require.NoError(t, j.RecordEquity(EquityRecord{RunID: "01HRUN", Time: t0, Equity: 10000, Cash: 8995}))
	require.NoError(t, j.Close())

	runs := readCSV(t, filepath.Join(dir, "runs.csv"))
	require.Len(t, runs, 2)
	assert.Equal(t, "01HRUN", runs[1][0])
	assert.Equal(t, "total_return=0.05;total_trades=2;win_rate=0.5", runs[1][11])

	fills := readCSV(t, filepath.Join(dir, "fills.csv"))
	require.Len(t, fills, 2)
	assert.Equal(t, []string{"01HRUN", "f1", "o1", "AAA", "2024-01-02T03:04:05Z", "buy", "10", "12", "100.5", "100", "0.25"}, fills[1])

	trades := readCSV(t, filepath.Join(dir, "trades.csv"))
	assert.Equal(t, "-2.5", trades[1][6])

	equity := readCSV(t, filepath.Join(dir, "equity.csv"))
	assert.Equal(t, []string{"01HRUN", "2024-01-02T03:04:05Z", "10000", "8995"}, equity[1])
}

func TestCSVJournalAppends(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		j, err := NewCSV(dir)
		require.NoError(t, err)
		require.NoError(t, j.RecordEquity(EquityRecord{RunID: "r", Time: t0, Equity: 1, Cash: 1}))
		require.NoError(t, j.Close())
	}

	rows := readCSV(t, filepath.Join(dir, "equity.csv"))
	assert.Len(t, rows, 3, "one header and two rows")
}
