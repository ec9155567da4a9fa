package backtest

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/mkarlis/rebalancer/internal/domain"
)

func newTestScorer() *Scorer {
	return NewScorer(domain.DefaultAnalysisConfig(), zerolog.Nop())
}

func healthyRecord() domain.MetricsRecord {
	return domain.MetricsRecord{
		TotalReturn:  0.25,
		AnnualReturn: 0.10,
		Volatility:   0.18,
		Sharpe:       1.2,
		Sortino:      1.5,
		MaxDrawdown:  -0.20,
		Calmar:       0.5,
		WinRate:      0.55,
	}
}

func TestScore_KnownInputs(t *testing.T) {
	score := newTestScorer().Score(healthyRecord())

	// 0.10*25 + 1.2*20 + 1.5*20 + (1-0.20)*15 + 0.55*15 + (1-0.18)*10
	expected := 2.5 + 24.0 + 30.0 + 12.0 + 8.25 + 8.2
	assert.InDelta(t, expected, score, 1e-9)
}

func TestScore_NaNInputPropagates(t *testing.T) {
	scorer := newTestScorer()
	mutations := []func(*domain.MetricsRecord){
		func(m *domain.MetricsRecord) { m.AnnualReturn = math.NaN() },
		func(m *domain.MetricsRecord) { m.Sharpe = math.NaN() },
		func(m *domain.MetricsRecord) { m.Sortino = math.NaN() },
		func(m *domain.MetricsRecord) { m.MaxDrawdown = math.NaN() },
		func(m *domain.MetricsRecord) { m.WinRate = math.NaN() },
		func(m *domain.MetricsRecord) { m.Volatility = math.Inf(1) },
	}
	for i, mutate := range mutations {
		record := healthyRecord()
		mutate(&record)
		assert.True(t, math.IsNaN(scorer.Score(record)), "mutation %d should yield NaN, not a partial score", i)
	}

	// Calmar and TotalReturn are not score inputs; NaN there is fine.
	record := healthyRecord()
	record.Calmar = math.NaN()
	record.TotalReturn = math.NaN()
	assert.False(t, math.IsNaN(scorer.Score(record)))
}

func TestScore_ClippedToRange(t *testing.T) {
	scorer := newTestScorer()

	great := domain.MetricsRecord{
		AnnualReturn: 5.0, Sharpe: 50, Sortino: 50,
		MaxDrawdown: 0, WinRate: 1.0, Volatility: 0,
	}
	assert.Equal(t, 100.0, scorer.Score(great))

	awful := domain.MetricsRecord{
		AnnualReturn: -0.9, Sharpe: -50, Sortino: -50,
		MaxDrawdown: -0.95, WinRate: 0.05, Volatility: 2.0,
	}
	assert.Equal(t, 0.0, scorer.Score(awful))
}

func TestScore_ExtremeRatiosAreClippedBeforeWeighting(t *testing.T) {
	scorer := newTestScorer()
	a := healthyRecord()
	a.Sharpe = 10
	b := healthyRecord()
	b.Sharpe = 1000
	assert.Equal(t, scorer.Score(a), scorer.Score(b), "Sharpe contribution saturates at the clip bound")
}
