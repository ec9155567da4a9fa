package backtest

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/mkarlis/rebalancer/internal/domain"
	"github.com/mkarlis/rebalancer/internal/modules/risk"
	"github.com/mkarlis/rebalancer/pkg/formulas"
)

// Aggregator runs the full analysis pipeline: scope the price table, simulate
// the portfolio at every rebalancing frequency, compute metrics and scores
// for portfolios and benchmarks, and attach the correlation and
// risk-contribution analytics.
type Aggregator struct {
	cfg          domain.AnalysisConfig
	simulator    *Simulator
	metrics      *MetricsCalculator
	scorer       *Scorer
	correlation  *risk.CorrelationAnalyzer
	contribution *risk.ContributionAnalyzer
	log          zerolog.Logger
}

// NewAggregator wires the pipeline components together.
func NewAggregator(cfg domain.AnalysisConfig, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		cfg:          cfg,
		simulator:    NewSimulator(log),
		metrics:      NewMetricsCalculator(cfg, log),
		scorer:       NewScorer(cfg, log),
		correlation:  risk.NewCorrelationAnalyzer(cfg, log),
		contribution: risk.NewContributionAnalyzer(cfg, log),
		log:          log.With().Str("service", "aggregator").Logger(),
	}
}

// Run executes one analysis over the given price tables. The asset table
// carries the weighted portfolio assets; the benchmark table may be empty.
// Weight validation is the only fail-fast precondition; every downstream
// fault degrades to NaN metrics rather than aborting the run.
func (a *Aggregator) Run(weights domain.Weights, assets, benchmarks domain.PriceTable, scope domain.Scope) (*domain.Report, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if assets.Empty() {
		return nil, fmt.Errorf("analysis: price table is empty")
	}

	report := &domain.Report{
		Scope:            scope,
		PortfolioReturns: make(map[domain.Frequency][]float64, len(domain.Frequencies)),
	}

	weights, assets = a.excludeSparse(weights, assets, report)
	if len(weights) == 0 {
		return nil, fmt.Errorf("analysis: no asset has %d valid observations", a.cfg.MinObservations)
	}

	if scope == domain.MutualRange {
		assets = a.mutualRange(assets)
		benchmarks = alignBenchmarks(benchmarks, assets)
	}

	for _, freq := range domain.Frequencies {
		values, err := a.simulator.Simulate(weights, assets, freq)
		if err != nil {
			a.log.Warn().Err(err).Str("frequency", string(freq)).Msg("Simulation failed, reporting unavailable metrics")
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s simulation: %v", freq, err))
			report.Entries = append(report.Entries, domain.ReportEntry{
				Key:     domain.ReportKey{Kind: domain.KindPortfolio, Frequency: freq},
				Metrics: domain.UnavailableMetrics(),
			})
			continue
		}
		returns := formulas.Returns(values)
		report.PortfolioReturns[freq] = returns
		record := a.metrics.Calculate(returns)
		record.Score = a.scorer.Score(record)
		report.Entries = append(report.Entries, domain.ReportEntry{
			Key:     domain.ReportKey{Kind: domain.KindPortfolio, Frequency: freq},
			Metrics: record,
		})
	}

	for _, name := range benchmarks.Tickers {
		returns := benchmarkReturns(benchmarks, name)
		if len(returns) == 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("benchmark %s: no usable price history", name))
			continue
		}
		record := a.metrics.Calculate(returns)
		record.Score = a.scorer.Score(record)
		report.Entries = append(report.Entries, domain.ReportEntry{
			Key:     domain.ReportKey{Kind: domain.KindBenchmark, Benchmark: name},
			Metrics: record,
		})
	}

	assetReturns := returnsTable(assets)
	// Benchmarks carry their own union-date index (a US benchmark and an ASX
	// asset trade on different calendars), so their return columns are
	// reindexed onto the asset date index before any row-wise comparison.
	benchReturns := returnsTable(benchmarks).ReindexTo(assetReturns.Dates)

	report.Returns = assetReturns
	report.BenchmarkReturns = benchReturns
	report.Correlation, report.Rolling = a.correlation.Analyze(assetReturns, benchReturns)
	report.Contribution = a.contribution.Analyze(assetReturns, weights)

	if scope == domain.MaxRange {
		report.AssetMetrics = a.perAssetMetrics(assets)
	}

	a.log.Info().
		Str("scope", string(scope)).
		Int("assets", len(assets.Tickers)).
		Int("entries", len(report.Entries)).
		Int("warnings", len(report.Warnings)).
		Msg("Analysis complete")

	return report, nil
}

// excludeSparse drops assets with fewer than the configured minimum of valid
// observations, recording each exclusion as a warning. Remaining weights are
// renormalized so the simulation stays fully invested.
func (a *Aggregator) excludeSparse(weights domain.Weights, table domain.PriceTable, report *domain.Report) (domain.Weights, domain.PriceTable) {
	kept := make(domain.Weights, len(weights))
	sum := 0.0
	for _, ticker := range weights.Tickers() {
		count := table.ValidCount(ticker)
		if count < a.cfg.MinObservations {
			err := &domain.InsufficientDataError{Ticker: ticker, Observed: count, Required: a.cfg.MinObservations}
			a.log.Warn().Str("ticker", ticker).Int("observations", count).Msg("Excluding asset with insufficient history")
			report.Warnings = append(report.Warnings, err.Error())
			continue
		}
		kept[ticker] = weights[ticker]
		sum += weights[ticker]
	}
	if len(kept) == len(weights) || sum <= 0 {
		return kept, table
	}
	for ticker := range kept {
		kept[ticker] /= sum
	}

	out := domain.PriceTable{
		Dates:   table.Dates,
		Tickers: make([]string, 0, len(kept)),
		Data:    make(map[string][]float64, len(kept)),
	}
	for _, ticker := range table.Tickers {
		if _, ok := kept[ticker]; ok {
			out.Tickers = append(out.Tickers, ticker)
			out.Data[ticker] = table.Data[ticker]
		}
	}
	return kept, out
}

// mutualRange truncates the table to the window where every asset has data,
// starting at the latest first-valid index across assets.
func (a *Aggregator) mutualRange(table domain.PriceTable) domain.PriceTable {
	latest := 0
	for _, ticker := range table.Tickers {
		first := table.FirstValidIndex(ticker)
		if first < 0 {
			continue
		}
		if first > latest {
			latest = first
		}
	}
	return table.Truncate(latest)
}

// perAssetMetrics computes standalone metrics for each asset over its own
// full history, so assets with different listing dates are each judged on
// what they actually traded.
func (a *Aggregator) perAssetMetrics(table domain.PriceTable) map[string]domain.MetricsRecord {
	out := make(map[string]domain.MetricsRecord, len(table.Tickers))
	for _, ticker := range table.Tickers {
		first := table.FirstValidIndex(ticker)
		if first < 0 {
			out[ticker] = domain.UnavailableMetrics()
			continue
		}
		prices := compact(table.Data[ticker][first:])
		record := a.metrics.Calculate(formulas.Returns(prices))
		record.Score = a.scorer.Score(record)
		out[ticker] = record
	}
	return out
}

// alignBenchmarks trims benchmark history to the asset table's date window so
// row indexes line up for correlation work.
func alignBenchmarks(benchmarks, assets domain.PriceTable) domain.PriceTable {
	if benchmarks.Empty() || assets.Empty() {
		return benchmarks
	}
	from := 0
	for i, date := range benchmarks.Dates {
		if date >= assets.Dates[0] {
			from = i
			break
		}
	}
	return benchmarks.Truncate(from)
}

// benchmarkReturns derives a benchmark's simple return series from its valid
// prices only.
func benchmarkReturns(table domain.PriceTable, name string) []float64 {
	prices := compact(table.Data[name])
	if len(prices) < 2 {
		return nil
	}
	return formulas.Returns(prices)
}

// returnsTable converts a price table into its per-column simple return
// table. Return cells where either endpoint price is missing are NaN so
// downstream pairwise logic can skip them.
func returnsTable(table domain.PriceTable) domain.ReturnsTable {
	out := domain.ReturnsTable{
		Tickers: table.Tickers,
		Data:    make(map[string][]float64, len(table.Tickers)),
	}
	if len(table.Dates) < 2 {
		return out
	}
	out.Dates = table.Dates[1:]
	for _, ticker := range table.Tickers {
		prices := table.Data[ticker]
		col := make([]float64, len(out.Dates))
		for i := range col {
			prev, cur := prices[i], prices[i+1]
			if math.IsNaN(prev) || math.IsNaN(cur) || prev == 0 {
				col[i] = math.NaN()
				continue
			}
			col[i] = cur/prev - 1
		}
		out.Data[ticker] = col
	}
	return out
}

// compact returns the finite values of a series, preserving order.
func compact(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
