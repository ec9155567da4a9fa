package backtest

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/mkarlis/rebalancer/internal/domain"
)

// Scorer collapses a metrics record into a single composite strategy score
// in [0, 100]. The score is a normalized heuristic for ranking strategies,
// not a predictive signal.
type Scorer struct {
	weights domain.ScoreWeights
	log     zerolog.Logger
}

// NewScorer creates a composite scorer with the given coefficient set.
func NewScorer(cfg domain.AnalysisConfig, log zerolog.Logger) *Scorer {
	return &Scorer{
		weights: cfg.Scores,
		log:     log.With().Str("service", "scorer").Logger(),
	}
}

// Score computes the composite score. If any weighted input is NaN or
// infinite the score is NaN; there is no partial scoring. The coefficients
// are applied literally, without renormalization, and the result is clipped
// to [0, 100].
func (s *Scorer) Score(m domain.MetricsRecord) float64 {
	inputs := []float64{m.AnnualReturn, m.Sharpe, m.Sortino, m.MaxDrawdown, m.WinRate, m.Volatility}
	for _, v := range inputs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return math.NaN()
		}
	}

	score := m.AnnualReturn*s.weights.AnnualReturn +
		clip(m.Sharpe, -10, 10)*s.weights.Sharpe +
		clip(m.Sortino, -10, 10)*s.weights.Sortino +
		clip(1+m.MaxDrawdown, 0, 1)*s.weights.MaxDrawdown +
		m.WinRate*s.weights.WinRate +
		clip(1-m.Volatility, 0, 1)*s.weights.Volatility

	return clip(score, 0, 100)
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
