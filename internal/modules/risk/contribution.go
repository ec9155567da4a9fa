package risk

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/mkarlis/rebalancer/internal/domain"
)

// ContributionAnalyzer decomposes portfolio volatility into per-asset
// percentage risk contributions.
type ContributionAnalyzer struct {
	tradingDays float64
	log         zerolog.Logger
}

// NewContributionAnalyzer creates a risk-contribution analyzer using the
// configured annualization factor.
func NewContributionAnalyzer(cfg domain.AnalysisConfig, log zerolog.Logger) *ContributionAnalyzer {
	return &ContributionAnalyzer{
		tradingDays: float64(cfg.TradingDays),
		log:         log.With().Str("service", "contribution").Logger(),
	}
}

// Analyze computes the annualized covariance matrix of the asset returns,
// the portfolio volatility under the given weights, and each asset's
// fractional contribution to that volatility. The contribution vector sums
// to one when the portfolio volatility is strictly positive; when it is
// zero or not finite every contribution is NaN.
//
// Rows with a non-finite value in any asset column are dropped before the
// covariance is estimated, so one asset's missing data does not poison the
// matrix.
func (a *ContributionAnalyzer) Analyze(returns domain.ReturnsTable, weights domain.Weights) domain.RiskContribution {
	tickers := weights.Tickers()
	out := domain.RiskContribution{
		Tickers:             tickers,
		Percent:             make([]float64, len(tickers)),
		PortfolioVolatility: math.NaN(),
	}

	rows := completeRows(returns, tickers)
	if len(rows) < 2 {
		a.log.Warn().Int("rows", len(rows)).Msg("Too few complete rows for covariance estimate")
		fillNaN(out.Percent)
		return out
	}

	k := len(tickers)
	sigma := mat.NewSymDense(k, nil)
	cols := make([][]float64, k)
	for i, ticker := range tickers {
		cols[i] = gather(returns.Data[ticker], rows)
	}
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			cov := stat.Covariance(cols[i], cols[j], nil) * a.tradingDays
			sigma.SetSym(i, j, cov)
		}
	}

	w := mat.NewVecDense(k, nil)
	for i, ticker := range tickers {
		w.SetVec(i, weights[ticker])
	}

	var sigmaW mat.VecDense
	sigmaW.MulVec(sigma, w)
	variance := mat.Dot(w, &sigmaW)
	if variance < 0 {
		variance = 0
	}
	vol := math.Sqrt(variance)
	out.PortfolioVolatility = vol

	if !(vol > 0) || math.IsInf(vol, 0) {
		fillNaN(out.Percent)
		return out
	}

	// Marginal contribution of asset i is (Σw)_i / σp; weighting by w_i
	// and dividing by σp again gives fractions that sum to one.
	for i := range tickers {
		out.Percent[i] = w.AtVec(i) * sigmaW.AtVec(i) / vol / vol
	}

	a.log.Debug().Float64("portfolio_vol", vol).Msg("Computed risk contributions")
	return out
}

// completeRows returns the row indexes where every listed ticker has a
// finite return.
func completeRows(returns domain.ReturnsTable, tickers []string) []int {
	rows := make([]int, 0, len(returns.Dates))
	for i := range returns.Dates {
		ok := true
		for _, ticker := range tickers {
			col := returns.Data[ticker]
			if i >= len(col) || !isFinite(col[i]) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}

func gather(col []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = col[r]
	}
	return out
}

func fillNaN(v []float64) {
	for i := range v {
		v[i] = math.NaN()
	}
}
