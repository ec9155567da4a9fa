// Package backtest implements the rebalancing simulation and metrics
// pipeline: price table in, value paths, risk metrics and composite scores
// out. Every service here is a pure function over immutable inputs.
package backtest

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/mkarlis/rebalancer/internal/domain"
)

// Simulator replays periodic rebalancing of target weights against a
// historical price table and produces the portfolio value path.
type Simulator struct {
	log zerolog.Logger
}

// NewSimulator creates a new rebalancing simulator.
func NewSimulator(log zerolog.Logger) *Simulator {
	return &Simulator{
		log: log.With().Str("service", "simulator").Logger(),
	}
}

// Simulate runs one pass over the table and returns the portfolio value path
// (growth of 1.0 unit of capital) over the table's full date index.
//
// Positions are opened on the first date with 1.0*weight/price per ticker; a
// ticker with no valid price on day 0 starts flat and is only picked up at
// the next rebalance. Each day the portfolio is marked to market over the
// tickers with valid prices. On each rebalance date positions are reset to
// value*weight/price; tickers missing a price that day keep their prior
// position.
func (s *Simulator) Simulate(weights domain.Weights, table domain.PriceTable, freq domain.Frequency) ([]float64, error) {
	if table.Empty() {
		return nil, fmt.Errorf("simulate: empty price table")
	}

	rebalance := rebalanceIndexes(table.Dates, freq)

	positions := make(map[string]float64, len(weights))
	for ticker, weight := range weights {
		price := priceAt(table, ticker, 0)
		if price > 0 {
			positions[ticker] = weight / price
		} else {
			// No valid day-0 price: the ticker stays flat until the first
			// rebalance after it starts trading. Accepted data-quality
			// limitation, not corrected retroactively.
			positions[ticker] = 0
		}
	}

	path := make([]float64, len(table.Dates))
	for i := range table.Dates {
		value := 0.0
		for ticker, units := range positions {
			price := priceAt(table, ticker, i)
			if price > 0 {
				value += units * price
			}
		}
		path[i] = value

		if rebalance[i] {
			for ticker, weight := range weights {
				price := priceAt(table, ticker, i)
				if price > 0 {
					positions[ticker] = value * weight / price
				}
				// Missing or zero price: retain the prior position; the
				// ticker is not re-weighted this cycle.
			}
		}
	}

	s.log.Debug().
		Str("frequency", string(freq)).
		Int("days", len(path)).
		Int("assets", len(weights)).
		Msg("Simulated rebalancing path")

	return path, nil
}

// rebalanceIndexes marks the last trading date of each month/quarter/year
// present in the index. The first date is never a rebalance date.
func rebalanceIndexes(dates []string, freq domain.Frequency) []bool {
	marks := make([]bool, len(dates))
	for i := range dates {
		last := i == len(dates)-1 || freq.PeriodKey(dates[i]) != freq.PeriodKey(dates[i+1])
		if last && i > 0 {
			marks[i] = true
		}
	}
	return marks
}

// priceAt returns the price for ticker at row i, or NaN when the ticker is
// not in the table. NaN cells pass through unchanged.
func priceAt(table domain.PriceTable, ticker string, i int) float64 {
	prices, ok := table.Data[ticker]
	if !ok || i >= len(prices) {
		return math.NaN()
	}
	return prices[i]
}
