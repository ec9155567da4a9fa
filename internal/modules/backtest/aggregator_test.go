package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlis/rebalancer/internal/domain"
)

func makeDates(n int) []string {
	dates := make([]string, n)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = day.Format("2006-01-02")
		day = day.AddDate(0, 0, 1)
	}
	return dates
}

func wavyPrices(n int, base, drift, amplitude float64) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = base + drift*float64(i) + amplitude*math.Sin(float64(i))
	}
	return prices
}

func aggregatorFixture(n int) (domain.Weights, domain.PriceTable, domain.PriceTable) {
	dates := makeDates(n)
	pa := wavyPrices(n, 100, 0.5, 3)
	pb := wavyPrices(n, 50, -0.1, 2)
	assets := domain.PriceTable{
		Dates:   dates,
		Tickers: []string{"AAA", "BBB"},
		Data:    map[string][]float64{"AAA": pa, "BBB": pb},
	}
	benchmarks := domain.PriceTable{
		Dates:   dates,
		Tickers: []string{"SPY"},
		Data:    map[string][]float64{"SPY": wavyPrices(n, 400, 0.8, 5)},
	}
	return domain.Weights{"AAA": 0.6, "BBB": 0.4}, assets, benchmarks
}

func TestRun_FullReport(t *testing.T) {
	agg := NewAggregator(domain.DefaultAnalysisConfig(), zerolog.Nop())
	weights, assets, benchmarks := aggregatorFixture(60)

	report, err := agg.Run(weights, assets, benchmarks, domain.MutualRange)
	require.NoError(t, err)

	// Three portfolio entries (one per frequency) then one benchmark entry.
	require.Len(t, report.Entries, 4)
	for i, freq := range domain.Frequencies {
		assert.Equal(t, domain.KindPortfolio, report.Entries[i].Key.Kind)
		assert.Equal(t, freq, report.Entries[i].Key.Frequency)
		assert.False(t, math.IsNaN(report.Entries[i].Metrics.TotalReturn))
	}
	bench := report.Entries[3]
	assert.Equal(t, domain.KindBenchmark, bench.Key.Kind)
	assert.Equal(t, "SPY", bench.Key.Benchmark)

	// Correlation covers assets plus benchmarks, diagonal exactly 1.
	require.Equal(t, []string{"AAA", "BBB", "SPY"}, report.Correlation.Names)
	for i := range report.Correlation.Names {
		assert.Equal(t, 1.0, report.Correlation.Values[i][i])
	}

	// Risk contributions sum to one when portfolio volatility is nonzero.
	require.Greater(t, report.Contribution.PortfolioVolatility, 0.0)
	sum := 0.0
	for _, p := range report.Contribution.Percent {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-4)

	// The simulated return series back the performance/drawdown charts.
	require.Len(t, report.PortfolioReturns, 3)
	assert.Len(t, report.PortfolioReturns[domain.Monthly], len(report.Returns.Dates))

	assert.Nil(t, report.AssetMetrics, "per-asset metrics are a max-range feature")
	assert.Empty(t, report.Warnings)
}

func TestRun_MaxRangeIncludesAssetMetrics(t *testing.T) {
	agg := NewAggregator(domain.DefaultAnalysisConfig(), zerolog.Nop())
	weights, assets, benchmarks := aggregatorFixture(60)

	report, err := agg.Run(weights, assets, benchmarks, domain.MaxRange)
	require.NoError(t, err)

	require.Len(t, report.AssetMetrics, 2)
	for _, ticker := range []string{"AAA", "BBB"} {
		record, ok := report.AssetMetrics[ticker]
		require.True(t, ok, ticker)
		assert.False(t, math.IsNaN(record.TotalReturn), ticker)
	}
}

func TestRun_MutualRangeTruncatesToLateStarter(t *testing.T) {
	agg := NewAggregator(domain.DefaultAnalysisConfig(), zerolog.Nop())
	weights, assets, benchmarks := aggregatorFixture(80)

	// BBB only starts trading on day 30.
	for i := 0; i < 30; i++ {
		assets.Data["BBB"][i] = math.NaN()
	}

	report, err := agg.Run(weights, assets, benchmarks, domain.MutualRange)
	require.NoError(t, err)

	// The returns index starts one row after the truncated window.
	require.NotEmpty(t, report.Returns.Dates)
	assert.Equal(t, assets.Dates[31], report.Returns.Dates[0])
	for _, r := range report.Returns.Data["BBB"] {
		assert.False(t, math.IsNaN(r), "no gaps remain inside the mutual range")
	}
}

func TestRun_SparseAssetExcludedWithWarning(t *testing.T) {
	agg := NewAggregator(domain.DefaultAnalysisConfig(), zerolog.Nop())
	weights, assets, benchmarks := aggregatorFixture(60)

	// Leave BBB with only 10 valid observations, below the minimum of 20.
	for i := 0; i < 50; i++ {
		assets.Data["BBB"][i] = math.NaN()
	}

	report, err := agg.Run(weights, assets, benchmarks, domain.MaxRange)
	require.NoError(t, err)

	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "BBB")
	assert.NotContains(t, report.Correlation.Names, "BBB")
	require.Len(t, report.Contribution.Tickers, 1)
	assert.Equal(t, "AAA", report.Contribution.Tickers[0])
	// The surviving asset absorbs the full weight.
	assert.InDelta(t, 1.0, report.Contribution.Percent[0], 1e-9)
}

func TestRun_InvalidWeights(t *testing.T) {
	agg := NewAggregator(domain.DefaultAnalysisConfig(), zerolog.Nop())
	_, assets, benchmarks := aggregatorFixture(60)

	_, err := agg.Run(domain.Weights{"AAA": 0.6, "BBB": 0.3}, assets, benchmarks, domain.MutualRange)
	assert.Error(t, err)

	_, err = agg.Run(domain.Weights{}, assets, benchmarks, domain.MutualRange)
	assert.Error(t, err)
}

func TestRun_EmptyTable(t *testing.T) {
	agg := NewAggregator(domain.DefaultAnalysisConfig(), zerolog.Nop())
	_, err := agg.Run(domain.Weights{"AAA": 1.0}, domain.PriceTable{}, domain.PriceTable{}, domain.MutualRange)
	assert.Error(t, err)
}

func TestRun_BenchmarkOwnCalendar(t *testing.T) {
	agg := NewAggregator(domain.DefaultAnalysisConfig(), zerolog.Nop())
	weights, assets, _ := aggregatorFixture(60)

	// The benchmark trades one extra day before the assets but tracks AAA
	// exactly on every shared date. Its returns must land on the asset date
	// index by date, so the correlation stays 1 despite the calendar offset.
	pa := assets.Data["AAA"]
	benchmarks := domain.PriceTable{
		Dates:   append([]string{"2024-01-01"}, assets.Dates...),
		Tickers: []string{"SPY"},
		Data:    map[string][]float64{"SPY": append([]float64{pa[0]}, pa...)},
	}

	report, err := agg.Run(weights, assets, benchmarks, domain.MaxRange)
	require.NoError(t, err)

	assert.Equal(t, report.Returns.Dates, report.BenchmarkReturns.Dates)

	require.Equal(t, []string{"AAA", "BBB", "SPY"}, report.Correlation.Names)
	assert.InDelta(t, 1.0, report.Correlation.Values[0][2], 1e-9)
}

func TestRun_NoBenchmarks(t *testing.T) {
	agg := NewAggregator(domain.DefaultAnalysisConfig(), zerolog.Nop())
	weights, assets, _ := aggregatorFixture(60)

	report, err := agg.Run(weights, assets, domain.PriceTable{}, domain.MutualRange)
	require.NoError(t, err)

	assert.Len(t, report.Entries, 3)
	assert.Equal(t, []string{"AAA", "BBB"}, report.Correlation.Names)
	assert.Empty(t, report.Rolling.Series)
}
