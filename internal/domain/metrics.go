package domain

import "math"

// Metric names as they appear in reports. The order of MetricRows is the
// fixed display row order for every metrics table.
const (
	MetricScore        = "Strategy Score"
	MetricTotalReturn  = "Total Return"
	MetricAnnualReturn = "Annual Return"
	MetricVolatility   = "Volatility"
	MetricSharpe       = "Sharpe Ratio"
	MetricSortino      = "Sortino Ratio"
	MetricMaxDrawdown  = "Max Drawdown"
	MetricCalmar       = "Calmar Ratio"
	MetricWinRate      = "Win Rate"
)

// MetricRows is the fixed display row order for metrics tables.
var MetricRows = []string{
	MetricScore,
	MetricTotalReturn,
	MetricAnnualReturn,
	MetricVolatility,
	MetricSharpe,
	MetricSortino,
	MetricMaxDrawdown,
	MetricCalmar,
	MetricWinRate,
}

// MetricsRecord holds the full set of risk/performance metrics for one
// strategy or benchmark. NaN is the "not available" sentinel; no metric is
// ever +/-Inf.
type MetricsRecord struct {
	TotalReturn  float64 `json:"total_return"`
	AnnualReturn float64 `json:"annual_return"`
	Volatility   float64 `json:"volatility"`
	Sharpe       float64 `json:"sharpe_ratio"`
	Sortino      float64 `json:"sortino_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	Calmar       float64 `json:"calmar_ratio"`
	WinRate      float64 `json:"win_rate"`
	Score        float64 `json:"strategy_score"`
}

// UnavailableMetrics returns a record with every metric set to NaN. Used as
// the fail-soft degradation when a calculation faults.
func UnavailableMetrics() MetricsRecord {
	nan := math.NaN()
	return MetricsRecord{
		TotalReturn:  nan,
		AnnualReturn: nan,
		Volatility:   nan,
		Sharpe:       nan,
		Sortino:      nan,
		MaxDrawdown:  nan,
		Calmar:       nan,
		WinRate:      nan,
		Score:        nan,
	}
}

// Get returns a metric by display name, NaN for unknown names.
func (m MetricsRecord) Get(name string) float64 {
	switch name {
	case MetricScore:
		return m.Score
	case MetricTotalReturn:
		return m.TotalReturn
	case MetricAnnualReturn:
		return m.AnnualReturn
	case MetricVolatility:
		return m.Volatility
	case MetricSharpe:
		return m.Sharpe
	case MetricSortino:
		return m.Sortino
	case MetricMaxDrawdown:
		return m.MaxDrawdown
	case MetricCalmar:
		return m.Calmar
	case MetricWinRate:
		return m.WinRate
	}
	return math.NaN()
}

// ReportEntry is one column of a metrics table.
type ReportEntry struct {
	Key     ReportKey     `json:"key"`
	Metrics MetricsRecord `json:"metrics"`
}

// CorrelationMatrix is a symmetric correlation table over assets and
// benchmarks. Names defines the row/column order; diagonal cells are 1.0 and
// cells with insufficient overlapping observations are NaN.
type CorrelationMatrix struct {
	Names  []string    `json:"names"`
	Values [][]float64 `json:"values"`
}

// RollingCorrelations holds, per benchmark, a per-asset time series of
// rolling-window Pearson correlations aligned to the return date index
// (NaN until a full window is available).
type RollingCorrelations struct {
	Window int                             `json:"window"`
	Dates  []string                        `json:"dates"`
	Series map[string]map[string][]float64 `json:"series"` // benchmark -> asset -> values
}

// RiskContribution is the percentage-of-risk breakdown per asset. Whenever
// portfolio volatility is nonzero the Percent values sum to ~1 (1e-4).
type RiskContribution struct {
	Tickers             []string  `json:"tickers"`
	Percent             []float64 `json:"percent"`
	PortfolioVolatility float64   `json:"portfolio_volatility"`
}

// Report is the full output of one analysis run.
type Report struct {
	Scope            Scope                    `json:"scope"`
	Entries          []ReportEntry            `json:"entries"` // fixed order: portfolios by frequency, then benchmarks
	AssetMetrics     map[string]MetricsRecord `json:"asset_metrics,omitempty"`
	Correlation      CorrelationMatrix        `json:"correlation"`
	Rolling          RollingCorrelations      `json:"rolling_correlations"`
	Contribution     RiskContribution         `json:"risk_contribution"`
	Returns          ReturnsTable             `json:"returns"`                     // per-asset daily returns
	BenchmarkReturns ReturnsTable             `json:"benchmark_returns"`           // per-benchmark daily returns
	PortfolioReturns map[Frequency][]float64  `json:"portfolio_returns,omitempty"` // simulated daily returns per cadence
	Warnings         []string                 `json:"warnings,omitempty"`
}
