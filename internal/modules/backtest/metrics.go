package backtest

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/mkarlis/rebalancer/internal/domain"
	"github.com/mkarlis/rebalancer/pkg/formulas"
)

// MetricsCalculator turns a sanitized return series into the standard set of
// risk/performance metrics. NaN marks any metric that cannot be computed for
// the given series; no metric is ever reported as infinite.
type MetricsCalculator struct {
	cfg domain.AnalysisConfig
	log zerolog.Logger
}

// NewMetricsCalculator creates a metrics calculator with the given
// configuration (risk-free rate, annualization factor).
func NewMetricsCalculator(cfg domain.AnalysisConfig, log zerolog.Logger) *MetricsCalculator {
	return &MetricsCalculator{
		cfg: cfg,
		log: log.With().Str("service", "metrics").Logger(),
	}
}

// Calculate computes the full metrics record for a return series. The whole
// calculation is a fail-soft boundary: an unexpected numeric fault degrades
// the result to an all-NaN record instead of aborting the report.
func (c *MetricsCalculator) Calculate(returns []float64) (record domain.MetricsRecord) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn().Interface("fault", r).Msg("Metrics calculation faulted, degrading to unavailable")
			record = domain.UnavailableMetrics()
		}
	}()

	record = domain.UnavailableMetrics()
	n := len(returns)
	if n == 0 {
		return record
	}

	days := float64(c.cfg.TradingDays)
	dailyRiskFree := c.cfg.RiskFreeRate / days

	totalReturn := 1.0
	for _, r := range returns {
		totalReturn *= 1 + r
	}
	totalReturn -= 1
	record.TotalReturn = formulas.Sanitize(totalReturn)

	record.AnnualReturn = formulas.Sanitize(math.Pow(1+totalReturn, days/float64(n)) - 1)

	volatility := formulas.AnnualizedVolatility(returns, c.cfg.TradingDays)
	record.Volatility = formulas.Sanitize(volatility)

	meanExcess := formulas.Mean(returns) - dailyRiskFree
	if !math.IsNaN(record.Volatility) && record.Volatility > 0 {
		record.Sharpe = formulas.Sanitize(meanExcess * math.Sqrt(days) / record.Volatility)
	}

	downside := downsideDeviation(returns) * math.Sqrt(days)
	if !math.IsNaN(downside) && downside > 0 {
		record.Sortino = formulas.Sanitize(meanExcess * math.Sqrt(days) / downside)
	}

	record.MaxDrawdown = formulas.Sanitize(formulas.MaxDrawdown(formulas.CumulativeValue(returns)))

	if record.MaxDrawdown < 0 && !math.IsInf(record.MaxDrawdown, 0) {
		record.Calmar = formulas.Sanitize(record.AnnualReturn / math.Abs(record.MaxDrawdown))
	}

	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	record.WinRate = float64(wins) / float64(n)

	return record
}

// downsideDeviation is the sample standard deviation of the strictly
// negative returns. NaN when there are fewer than two negative observations.
func downsideDeviation(returns []float64) float64 {
	var negative []float64
	for _, r := range returns {
		if r < 0 {
			negative = append(negative, r)
		}
	}
	if len(negative) < 2 {
		return math.NaN()
	}
	return formulas.StdDev(negative)
}
