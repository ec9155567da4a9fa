// Package risk implements the correlation and risk-contribution analytics
// over asset return tables.
package risk

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/mkarlis/rebalancer/internal/domain"
)

// CorrelationAnalyzer computes the pairwise correlation structure of assets
// and benchmarks, plus rolling per-benchmark correlation series.
type CorrelationAnalyzer struct {
	window int
	log    zerolog.Logger
}

// NewCorrelationAnalyzer creates a correlation analyzer using the configured
// rolling window length.
func NewCorrelationAnalyzer(cfg domain.AnalysisConfig, log zerolog.Logger) *CorrelationAnalyzer {
	return &CorrelationAnalyzer{
		window: cfg.RollingWindow,
		log:    log.With().Str("service", "correlation").Logger(),
	}
}

// Analyze computes the full pairwise Pearson correlation matrix over the
// concatenated asset and benchmark columns, and per-benchmark rolling
// correlation series for every asset. With no benchmark columns the matrix
// covers assets only and the rolling map is empty.
//
// Correlations use pairwise complete observations: each coefficient is
// computed over the rows where both series are finite, and is NaN when fewer
// than two such rows overlap. Benchmark columns are reindexed onto the asset
// date index by date key first, so observations pair by trading day even when
// the two tables cover different calendars.
func (a *CorrelationAnalyzer) Analyze(assets, benchmarks domain.ReturnsTable) (domain.CorrelationMatrix, domain.RollingCorrelations) {
	benchmarks = benchmarks.ReindexTo(assets.Dates)

	names := make([]string, 0, len(assets.Tickers)+len(benchmarks.Tickers))
	columns := make(map[string][]float64, len(names))

	for _, ticker := range assets.Tickers {
		names = append(names, ticker)
		columns[ticker] = assets.Data[ticker]
	}
	for _, name := range benchmarks.Tickers {
		names = append(names, name)
		columns[name] = benchmarks.Data[name]
	}

	matrix := domain.CorrelationMatrix{
		Names:  names,
		Values: make([][]float64, len(names)),
	}
	for i := range names {
		matrix.Values[i] = make([]float64, len(names))
		for j := range names {
			switch {
			case i == j:
				matrix.Values[i][j] = 1.0
			case j < i:
				matrix.Values[i][j] = matrix.Values[j][i]
			default:
				matrix.Values[i][j] = pairwiseCorrelation(columns[names[i]], columns[names[j]])
			}
		}
	}

	rolling := domain.RollingCorrelations{
		Window: a.window,
		Dates:  assets.Dates,
		Series: make(map[string]map[string][]float64),
	}
	for _, bench := range benchmarks.Tickers {
		perAsset := make(map[string][]float64, len(assets.Tickers))
		for _, ticker := range assets.Tickers {
			perAsset[ticker] = a.rolling(columns[ticker], columns[bench])
		}
		rolling.Series[bench] = perAsset
	}

	a.log.Debug().
		Int("assets", len(assets.Tickers)).
		Int("benchmarks", len(benchmarks.Tickers)).
		Msg("Computed correlation structure")

	return matrix, rolling
}

// rolling computes a rolling-window Pearson correlation series aligned to
// the input index, NaN until a full window is available.
func (a *CorrelationAnalyzer) rolling(x, y []float64) []float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	out := make([]float64, n)
	for i := range out {
		if i < a.window-1 {
			out[i] = math.NaN()
			continue
		}
		start := i - a.window + 1
		out[i] = pairwiseCorrelation(x[start:i+1], y[start:i+1])
	}
	return out
}

// pairwiseCorrelation computes Pearson correlation over the rows where both
// series are finite. NaN when fewer than two rows overlap or either series
// is constant over the overlap.
func pairwiseCorrelation(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}

	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if isFinite(x[i]) && isFinite(y[i]) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	if len(xs) < 2 {
		return math.NaN()
	}

	return stat.Correlation(xs, ys, nil)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
