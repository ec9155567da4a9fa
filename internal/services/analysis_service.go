// Package services wires the analysis pipeline to storage and caching.
package services

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mkarlis/rebalancer/internal/config"
	"github.com/mkarlis/rebalancer/internal/domain"
	"github.com/mkarlis/rebalancer/internal/modules/backtest"
	"github.com/mkarlis/rebalancer/internal/modules/calculations"
	"github.com/mkarlis/rebalancer/internal/modules/charts"
	"github.com/mkarlis/rebalancer/internal/modules/universe"
)

// AnalysisService runs full portfolio analyses on demand, serving cached
// reports when the configured portfolio has a fresh one.
type AnalysisService struct {
	cfg        *config.Config
	history    *universe.HistoryDB
	cache      *calculations.ReportCache
	aggregator *backtest.Aggregator
	charts     *charts.Service
	log        zerolog.Logger
}

// NewAnalysisService creates the analysis orchestration service.
func NewAnalysisService(
	cfg *config.Config,
	history *universe.HistoryDB,
	cache *calculations.ReportCache,
	aggregator *backtest.Aggregator,
	chartsSvc *charts.Service,
	log zerolog.Logger,
) *AnalysisService {
	return &AnalysisService{
		cfg:        cfg,
		history:    history,
		cache:      cache,
		aggregator: aggregator,
		charts:     chartsSvc,
		log:        log.With().Str("service", "analysis").Logger(),
	}
}

// GetReport returns the analysis report for the configured portfolio under
// the given scope, computing and caching it on a miss.
func (s *AnalysisService) GetReport(scope domain.Scope) (*domain.Report, error) {
	key := calculations.Key(s.cfg.Weights, s.cfg.Benchmarks, scope)
	if report, ok := s.cache.Get(key); ok {
		s.log.Debug().Str("scope", string(scope)).Msg("Serving cached report")
		return report, nil
	}

	report, err := s.Compute(scope)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(key, report); err != nil {
		// Cache failures degrade to recomputation, never to request failure.
		s.log.Warn().Err(err).Msg("Failed to cache report")
	}

	return report, nil
}

// Compute runs the pipeline against current price history, bypassing the
// cache.
func (s *AnalysisService) Compute(scope domain.Scope) (*domain.Report, error) {
	assets, err := s.history.LoadPriceTable(s.cfg.Weights.Tickers())
	if err != nil {
		return nil, fmt.Errorf("failed to load asset prices: %w", err)
	}

	benchmarks, err := s.history.LoadPriceTable(s.cfg.Benchmarks)
	if err != nil {
		return nil, fmt.Errorf("failed to load benchmark prices: %w", err)
	}

	return s.aggregator.Run(s.cfg.Weights, assets, benchmarks, scope)
}

// Refresh recomputes and re-caches reports for every scope and prunes stale
// cache entries. Used by the scheduled refresh job.
func (s *AnalysisService) Refresh() error {
	if _, err := s.cache.Prune(); err != nil {
		s.log.Warn().Err(err).Msg("Cache prune failed")
	}

	for _, scope := range []domain.Scope{domain.MutualRange, domain.MaxRange} {
		report, err := s.Compute(scope)
		if err != nil {
			return fmt.Errorf("refresh %s analysis: %w", scope, err)
		}
		key := calculations.Key(s.cfg.Weights, s.cfg.Benchmarks, scope)
		if err := s.cache.Put(key, report); err != nil {
			return fmt.Errorf("cache %s analysis: %w", scope, err)
		}
	}

	s.log.Info().Msg("Refreshed analysis reports")
	return nil
}

// PerformanceChart renders the cumulative performance of the simulated
// portfolio at every cadence alongside the benchmarks.
func (s *AnalysisService) PerformanceChart(scope domain.Scope) ([]byte, error) {
	report, err := s.GetReport(scope)
	if err != nil {
		return nil, err
	}
	return s.charts.RenderPerformance(report.Returns.Dates, chartSeries(report))
}

// DrawdownChart renders running drawdowns for the same series set.
func (s *AnalysisService) DrawdownChart(scope domain.Scope) ([]byte, error) {
	report, err := s.GetReport(scope)
	if err != nil {
		return nil, err
	}
	return s.charts.RenderDrawdown(report.Returns.Dates, chartSeries(report))
}

func chartSeries(report *domain.Report) []charts.Series {
	series := make([]charts.Series, 0, len(domain.Frequencies)+len(report.BenchmarkReturns.Tickers))
	for _, freq := range domain.Frequencies {
		if returns, ok := report.PortfolioReturns[freq]; ok {
			series = append(series, charts.Series{
				Name:    fmt.Sprintf("Portfolio (%s)", freq),
				Returns: returns,
			})
		}
	}
	for _, name := range report.BenchmarkReturns.Tickers {
		series = append(series, charts.Series{
			Name:    name,
			Returns: fitLength(report.BenchmarkReturns.Data[name], len(report.Returns.Dates)),
		})
	}
	return series
}

// fitLength trims or zero-pads a benchmark series so every rendered line
// spans the same date axis.
func fitLength(returns []float64, n int) []float64 {
	if len(returns) == n {
		return returns
	}
	out := make([]float64, n)
	copy(out, returns)
	return out
}
