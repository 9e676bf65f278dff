package stats

// Metrics is the terminal performance summary of a run. Ratios and returns
// are fractions (0.05 is 5%); money values are in account currency.
type Metrics struct {
	TotalReturn         float64 `json:"total_return"`
	AnnualReturn        float64 `json:"annual_return"`
	SharpeRatio         float64 `json:"sharpe_ratio"`
	SortinoRatio        float64 `json:"sortino_ratio"`
	MaxDrawdown         float64 `json:"max_drawdown"`
	MaxDrawdownDuration int     `json:"max_drawdown_duration"`
	CalmarRatio         float64 `json:"calmar_ratio"`
	Volatility          float64 `json:"volatility"`

	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"`
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	LargestWin    float64 `json:"largest_win"`
	LargestLoss   float64 `json:"largest_loss"`
}

// MetricKeys lists the keys of Map in report order.
var MetricKeys = []string{
	"total_return", "annual_return", "sharpe_ratio", "sortino_ratio",
	"max_drawdown", "max_drawdown_duration", "calmar_ratio", "volatility",
	"win_rate", "profit_factor", "total_trades", "winning_trades",
	"losing_trades", "average_win", "average_loss", "largest_win", "largest_loss",
}

// Map renders m as the flat metrics map of the run report.
func (m Metrics) Map() map[string]float64 {
	return map[string]float64{
		"total_return":          m.TotalReturn,
		"annual_return":         m.AnnualReturn,
		"sharpe_ratio":          m.SharpeRatio,
		"sortino_ratio":         m.SortinoRatio,
		"max_drawdown":          m.MaxDrawdown,
		"max_drawdown_duration": float64(m.MaxDrawdownDuration),
		"calmar_ratio":          m.CalmarRatio,
		"volatility":            m.Volatility,
		"win_rate":              m.WinRate,
		"profit_factor":         m.ProfitFactor,
		"total_trades":          float64(m.TotalTrades),
		"winning_trades":        float64(m.WinningTrades),
		"losing_trades":         float64(m.LosingTrades),
		"average_win":           m.AverageWin,
		"average_loss":          m.AverageLoss,
		"largest_win":           m.LargestWin,
		"largest_loss":          m.LargestLoss,
	}
}
