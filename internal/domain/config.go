package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// WeightSumTolerance is the acceptable deviation of the portfolio weight sum
// from 1.0.
const WeightSumTolerance = 1e-6

// ErrWeightSum is returned when the configured weights do not sum to 1.0
// within WeightSumTolerance.
var ErrWeightSum = errors.New("portfolio weights must sum to 1.0")

// ScoreWeights are the composite-score coefficients. They are applied
// literally, exactly as the product owner configured them; they deliberately
// sum to 105 and are not renormalized.
type ScoreWeights struct {
	AnnualReturn float64
	Sharpe       float64
	Sortino      float64
	MaxDrawdown  float64
	WinRate      float64
	Volatility   float64
}

// AnalysisConfig carries every tunable of the pipeline as an immutable value.
// Components receive it explicitly instead of reading process-wide state, so
// analyses can run in parallel without shared-state hazards.
type AnalysisConfig struct {
	RiskFreeRate    float64 // annual, e.g. 0.02
	TradingDays     int     // annualization factor, 252
	RollingWindow   int     // rolling correlation window, trading days
	MinObservations int     // per-asset minimum valid observations
	Scores          ScoreWeights
}

// DefaultAnalysisConfig returns the standard pipeline configuration.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		RiskFreeRate:    0.02,
		TradingDays:     252,
		RollingWindow:   126,
		MinObservations: 20,
		Scores: ScoreWeights{
			AnnualReturn: 25,
			Sharpe:       20,
			Sortino:      20,
			MaxDrawdown:  15,
			WinRate:      15,
			Volatility:   10,
		},
	}
}

// Weights maps ticker -> target fraction of the portfolio.
type Weights map[string]float64

// Validate enforces the weight-sum invariant. It is the single fail-fast
// precondition of the pipeline and runs once at configuration time.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("portfolio weights: no assets configured")
	}
	sum := 0.0
	for ticker, weight := range w {
		if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
			return fmt.Errorf("portfolio weights: invalid weight %v for %s", weight, ticker)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) >= WeightSumTolerance {
		return fmt.Errorf("%w: sum is %.6f", ErrWeightSum, sum)
	}
	return nil
}

// Tickers returns the weighted tickers in deterministic (sorted) order.
func (w Weights) Tickers() []string {
	tickers := make([]string, 0, len(w))
	for ticker := range w {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// InsufficientDataError marks an asset excluded from a run because it has too
// few valid observations. It is non-fatal: the run continues without the
// asset and the exclusion is recorded as a warning.
type InsufficientDataError struct {
	Ticker   string
	Observed int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: %d valid observations, need at least %d", e.Ticker, e.Observed, e.Required)
}
