package risk

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlis/rebalancer/internal/domain"
)

func testConfig(window int) domain.AnalysisConfig {
	cfg := domain.DefaultAnalysisConfig()
	cfg.RollingWindow = window
	return cfg
}

func returnsFixture(n int) domain.ReturnsTable {
	dates := make([]string, n)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = day.Format("2006-01-02")
		day = day.AddDate(0, 0, 1)
	}

	up := make([]float64, n)
	down := make([]float64, n)
	for i := range up {
		v := 0.01 * math.Sin(float64(i))
		up[i] = v
		down[i] = -v
	}
	return domain.ReturnsTable{
		Dates:   dates,
		Tickers: []string{"UP", "DOWN"},
		Data:    map[string][]float64{"UP": up, "DOWN": down},
	}
}

func TestAnalyze_MatrixStructure(t *testing.T) {
	analyzer := NewCorrelationAnalyzer(testConfig(5), zerolog.Nop())
	assets := returnsFixture(30)
	benchmarks := domain.ReturnsTable{
		Dates:   assets.Dates,
		Tickers: []string{"SPY"},
		Data:    map[string][]float64{"SPY": assets.Data["UP"]},
	}

	matrix, rolling := analyzer.Analyze(assets, benchmarks)

	require.Equal(t, []string{"UP", "DOWN", "SPY"}, matrix.Names)
	for i := range matrix.Names {
		assert.Equal(t, 1.0, matrix.Values[i][i])
		for j := range matrix.Names {
			assert.Equal(t, matrix.Values[i][j], matrix.Values[j][i], "matrix must be symmetric")
		}
	}

	// UP and DOWN are exact mirrors; SPY duplicates UP.
	assert.InDelta(t, -1.0, matrix.Values[0][1], 1e-9)
	assert.InDelta(t, 1.0, matrix.Values[0][2], 1e-9)

	require.Contains(t, rolling.Series, "SPY")
	series := rolling.Series["SPY"]["UP"]
	require.Len(t, series, 30)
	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(series[i]), "no value before a full window at index %d", i)
	}
	for i := 4; i < 30; i++ {
		assert.InDelta(t, 1.0, series[i], 1e-9, "index %d", i)
	}
	assert.Equal(t, 5, rolling.Window)
	assert.Equal(t, assets.Dates, rolling.Dates)
}

func TestAnalyze_PairwiseCompleteObservations(t *testing.T) {
	analyzer := NewCorrelationAnalyzer(testConfig(5), zerolog.Nop())
	assets := returnsFixture(30)
	// Punch holes in one series; the coefficient should come from the
	// remaining overlapping rows, not collapse to NaN.
	for i := 0; i < 30; i += 7 {
		assets.Data["UP"][i] = math.NaN()
	}

	matrix, _ := analyzer.Analyze(assets, domain.ReturnsTable{})
	assert.InDelta(t, -1.0, matrix.Values[0][1], 1e-9)
}

func TestAnalyze_InsufficientOverlapIsNaN(t *testing.T) {
	analyzer := NewCorrelationAnalyzer(testConfig(5), zerolog.Nop())
	assets := returnsFixture(30)
	// Leave a single overlapping row.
	for i := 1; i < 30; i++ {
		assets.Data["UP"][i] = math.NaN()
	}

	matrix, _ := analyzer.Analyze(assets, domain.ReturnsTable{})
	assert.True(t, math.IsNaN(matrix.Values[0][1]))
	assert.Equal(t, 1.0, matrix.Values[0][0], "diagonal stays 1 regardless of data quality")
}

func TestAnalyze_NoBenchmarks(t *testing.T) {
	analyzer := NewCorrelationAnalyzer(testConfig(5), zerolog.Nop())
	matrix, rolling := analyzer.Analyze(returnsFixture(30), domain.ReturnsTable{})

	assert.Equal(t, []string{"UP", "DOWN"}, matrix.Names)
	assert.Empty(t, rolling.Series)
}

func TestAnalyze_BenchmarkExtraTradingDay(t *testing.T) {
	analyzer := NewCorrelationAnalyzer(testConfig(5), zerolog.Nop())
	assets := returnsFixture(30)

	// The benchmark calendar has one extra day before the asset history
	// starts but moves identically on every shared date. Observations must
	// pair by date, not by row position.
	benchDates := append([]string{"2024-01-01"}, assets.Dates...)
	benchValues := append([]float64{0}, assets.Data["UP"]...)
	benchmarks := domain.ReturnsTable{
		Dates:   benchDates,
		Tickers: []string{"SPY"},
		Data:    map[string][]float64{"SPY": benchValues},
	}

	matrix, rolling := analyzer.Analyze(assets, benchmarks)
	assert.InDelta(t, 1.0, matrix.Values[0][2], 1e-9)

	series := rolling.Series["SPY"]["UP"]
	require.Len(t, series, 30)
	for i := 4; i < 30; i++ {
		assert.InDelta(t, 1.0, series[i], 1e-9, "index %d", i)
	}
}

func TestAnalyze_BenchmarkCalendarGap(t *testing.T) {
	analyzer := NewCorrelationAnalyzer(testConfig(5), zerolog.Nop())
	assets := returnsFixture(30)

	// Benchmark market was closed on a day the assets traded; remaining
	// dates must still line up and the closed day drops out pairwise.
	benchDates := append(append([]string{}, assets.Dates[:10]...), assets.Dates[11:]...)
	benchValues := append(append([]float64{}, assets.Data["UP"][:10]...), assets.Data["UP"][11:]...)
	benchmarks := domain.ReturnsTable{
		Dates:   benchDates,
		Tickers: []string{"SPY"},
		Data:    map[string][]float64{"SPY": benchValues},
	}

	matrix, _ := analyzer.Analyze(assets, benchmarks)
	assert.InDelta(t, 1.0, matrix.Values[0][2], 1e-9)
}

func TestAnalyze_ShortBenchmarkHistory(t *testing.T) {
	analyzer := NewCorrelationAnalyzer(testConfig(5), zerolog.Nop())
	assets := returnsFixture(30)
	benchmarks := domain.ReturnsTable{
		Dates:   assets.Dates[:10],
		Tickers: []string{"SPY"},
		Data:    map[string][]float64{"SPY": assets.Data["UP"][:10]},
	}

	matrix, rolling := analyzer.Analyze(assets, benchmarks)
	assert.InDelta(t, 1.0, matrix.Values[0][2], 1e-9, "correlation over the overlapping prefix")
	assert.InDelta(t, -1.0, matrix.Values[1][2], 1e-9, "DOWN mirrors UP over the prefix")
	require.Len(t, rolling.Series["SPY"]["UP"], 30)
	assert.True(t, math.IsNaN(rolling.Series["SPY"]["UP"][29]), "window past the benchmark history has no data")
}
