// Package charts renders analysis results as PNG line charts.
package charts

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/vicanso/go-charts/v2"

	"github.com/mkarlis/rebalancer/pkg/formulas"
)

// Series is one named line on a chart.
type Series struct {
	Name    string
	Returns []float64 // simple daily returns
}

// Service renders portfolio analysis charts
type Service struct {
	log zerolog.Logger
}

// NewService creates a new charts service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "charts").Logger(),
	}
}

// RenderPerformance renders cumulative growth-of-1 value paths for the given
// series as a PNG.
func (s *Service) RenderPerformance(dates []string, series []Series) ([]byte, error) {
	values := make([][]float64, 0, len(series))
	names := make([]string, 0, len(series))
	for _, sr := range series {
		if len(sr.Returns) == 0 {
			continue
		}
		values = append(values, formulas.CumulativeValue(sanitizeSeries(sr.Returns)))
		names = append(names, sr.Name)
	}
	return s.render("Cumulative Performance", dates, names, values)
}

// RenderDrawdown renders each series' running drawdown (fraction below the
// running peak, always <= 0) as a PNG.
func (s *Service) RenderDrawdown(dates []string, series []Series) ([]byte, error) {
	values := make([][]float64, 0, len(series))
	names := make([]string, 0, len(series))
	for _, sr := range series {
		if len(sr.Returns) == 0 {
			continue
		}
		values = append(values, drawdownPath(formulas.CumulativeValue(sanitizeSeries(sr.Returns))))
		names = append(names, sr.Name)
	}
	return s.render("Drawdown", dates, names, values)
}

func (s *Service) render(title string, dates, names []string, values [][]float64) ([]byte, error) {
	if len(values) == 0 {
		return nil, errors.New("no series to render")
	}
	for i := range values {
		if len(values[i]) != len(dates) {
			return nil, fmt.Errorf("series %s has %d points for %d dates", names[i], len(values[i]), len(dates))
		}
	}

	painter, err := charts.LineRender(values,
		charts.TitleTextOptionFunc(title),
		charts.XAxisDataOptionFunc(dates),
		charts.LegendLabelsOptionFunc(names),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1200),
		charts.HeightOptionFunc(500),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s chart: %w", title, err)
	}

	img, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s chart: %w", title, err)
	}

	s.log.Debug().Str("chart", title).Int("series", len(names)).Int("bytes", len(img)).Msg("Rendered chart")
	return img, nil
}

// drawdownPath converts a value path into its running-drawdown path.
func drawdownPath(values []float64) []float64 {
	out := make([]float64, len(values))
	peak := math.Inf(-1)
	for i, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			out[i] = v/peak - 1
		}
	}
	return out
}

// sanitizeSeries replaces non-finite returns with 0 so one bad cell cannot
// blank an entire rendered line.
func sanitizeSeries(returns []float64) []float64 {
	out := make([]float64, len(returns))
	for i, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		out[i] = r
	}
	return out
}
