package server

import (
	"fmt"
	"math"
	"strings"

	"github.com/mkarlis/rebalancer/internal/domain"
)

// The analytics core uses NaN as the "not available" sentinel, which
// encoding/json cannot emit. The presenters below convert reports to
// JSON-safe DTOs where unavailable values are null.

type metricValue struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
}

type entryDTO struct {
	Label   string        `json:"label"`
	Kind    string        `json:"kind"`
	Metrics []metricValue `json:"metrics"`
}

type correlationDTO struct {
	Names  []string     `json:"names"`
	Values [][]*float64 `json:"values"`
}

type rollingDTO struct {
	Window int                              `json:"window"`
	Dates  []string                         `json:"dates"`
	Series map[string]map[string][]*float64 `json:"series"`
}

type contributionDTO struct {
	Tickers             []string   `json:"tickers"`
	Percent             []*float64 `json:"percent"`
	PortfolioVolatility *float64   `json:"portfolio_volatility"`
}

type reportDTO struct {
	Scope        string                   `json:"scope"`
	Entries      []entryDTO               `json:"entries"`
	AssetMetrics map[string][]metricValue `json:"asset_metrics,omitempty"`
	Correlation  correlationDTO           `json:"correlation"`
	Rolling      rollingDTO               `json:"rolling_correlations"`
	Contribution contributionDTO          `json:"risk_contribution"`
	Warnings     []string                 `json:"warnings,omitempty"`
}

// entryLabel formats the display label for a report column.
func entryLabel(key domain.ReportKey) string {
	if key.Kind == domain.KindBenchmark {
		return key.Benchmark
	}
	freq := string(key.Frequency)
	if freq == "" {
		return "Portfolio"
	}
	return fmt.Sprintf("Portfolio (%s Rebalancing)", strings.ToUpper(freq[:1])+freq[1:])
}

func presentReport(report *domain.Report) reportDTO {
	dto := reportDTO{
		Scope:        string(report.Scope),
		Entries:      make([]entryDTO, 0, len(report.Entries)),
		Correlation:  presentCorrelation(report.Correlation),
		Rolling:      presentRolling(report.Rolling),
		Contribution: presentContribution(report.Contribution),
		Warnings:     report.Warnings,
	}

	for _, entry := range report.Entries {
		dto.Entries = append(dto.Entries, entryDTO{
			Label:   entryLabel(entry.Key),
			Kind:    string(entry.Key.Kind),
			Metrics: presentMetrics(entry.Metrics),
		})
	}

	if len(report.AssetMetrics) > 0 {
		dto.AssetMetrics = make(map[string][]metricValue, len(report.AssetMetrics))
		for ticker, record := range report.AssetMetrics {
			dto.AssetMetrics[ticker] = presentMetrics(record)
		}
	}

	return dto
}

// presentMetrics emits metrics in the fixed display row order.
func presentMetrics(record domain.MetricsRecord) []metricValue {
	out := make([]metricValue, 0, len(domain.MetricRows))
	for _, name := range domain.MetricRows {
		out = append(out, metricValue{Name: name, Value: jsonFloat(record.Get(name))})
	}
	return out
}

func presentCorrelation(matrix domain.CorrelationMatrix) correlationDTO {
	dto := correlationDTO{
		Names:  matrix.Names,
		Values: make([][]*float64, len(matrix.Values)),
	}
	for i, row := range matrix.Values {
		dto.Values[i] = jsonFloats(row)
	}
	return dto
}

func presentRolling(rolling domain.RollingCorrelations) rollingDTO {
	dto := rollingDTO{
		Window: rolling.Window,
		Dates:  rolling.Dates,
		Series: make(map[string]map[string][]*float64, len(rolling.Series)),
	}
	for bench, perAsset := range rolling.Series {
		converted := make(map[string][]*float64, len(perAsset))
		for asset, values := range perAsset {
			converted[asset] = jsonFloats(values)
		}
		dto.Series[bench] = converted
	}
	return dto
}

func presentContribution(contribution domain.RiskContribution) contributionDTO {
	return contributionDTO{
		Tickers:             contribution.Tickers,
		Percent:             jsonFloats(contribution.Percent),
		PortfolioVolatility: jsonFloat(contribution.PortfolioVolatility),
	}
}

// jsonFloat maps NaN and infinities to nil (JSON null).
func jsonFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func jsonFloats(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		out[i] = jsonFloat(v)
	}
	return out
}
