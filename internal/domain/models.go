// Package domain holds the core data model for the backtest and risk
// analytics pipeline. The types here are pure values with no infrastructure
// dependencies; every analytical component consumes and produces them.
package domain

import (
	"fmt"
	"math"
)

// Frequency is the cadence at which target weights are reasserted.
type Frequency string

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

// Frequencies is the full set of supported rebalancing cadences, in the
// order reports present them.
var Frequencies = []Frequency{Monthly, Quarterly, Yearly}

// ParseFrequency converts a configuration string to a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case Monthly, Quarterly, Yearly:
		return Frequency(s), nil
	}
	return "", fmt.Errorf("unknown rebalance frequency %q", s)
}

// PeriodKey buckets an ISO date (YYYY-MM-DD) into the rebalancing period it
// belongs to. The last trading date within each bucket is a rebalance date.
func (f Frequency) PeriodKey(date string) string {
	if len(date) < 7 {
		return date
	}
	year, month := date[:4], date[5:7]
	switch f {
	case Monthly:
		return year + "-" + month
	case Quarterly:
		q := (int(month[0]-'0')*10 + int(month[1]-'0') - 1) / 3
		return fmt.Sprintf("%s-Q%d", year, q+1)
	case Yearly:
		return year
	}
	return date
}

// Scope selects how the analysis window is derived from the price table.
type Scope string

const (
	// MaxRange keeps every asset's full history; gaps are tolerated per the
	// simulator's missing-data rules.
	MaxRange Scope = "max"
	// MutualRange truncates the table so every asset has data for the whole
	// analyzed window. Cross-asset comparisons (scoring, correlation, risk
	// contribution) are only meaningful under this scope.
	MutualRange Scope = "mutual"
)

// ParseScope converts a request/config string to a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case MaxRange, MutualRange:
		return Scope(s), nil
	}
	return "", fmt.Errorf("unknown analysis scope %q", s)
}

// EntryKind distinguishes simulated portfolio entries from benchmark entries
// in a report.
type EntryKind string

const (
	KindPortfolio EntryKind = "portfolio"
	KindBenchmark EntryKind = "benchmark"
)

// ReportKey identifies one column of a metrics table. Presentation layers
// format display labels ("Portfolio (Monthly Rebalancing)") from the
// structured key; the core never builds label strings.
type ReportKey struct {
	Kind      EntryKind `json:"kind"`
	Frequency Frequency `json:"frequency,omitempty"` // set for portfolio entries
	Benchmark string    `json:"benchmark,omitempty"` // set for benchmark entries
}

// PriceTable is a date-indexed table of adjusted close prices. Missing cells
// are NaN; assets may start trading at different dates. The table is treated
// as immutable once materialized.
type PriceTable struct {
	Dates   []string             `json:"dates"`   // sorted ascending, YYYY-MM-DD
	Tickers []string             `json:"tickers"` // column order
	Data    map[string][]float64 `json:"data"`    // ticker -> len(Dates) prices
}

// Empty reports whether the table has no observations.
func (t PriceTable) Empty() bool {
	return len(t.Dates) == 0 || len(t.Tickers) == 0
}

// ValidCount returns the number of non-NaN observations for a ticker.
func (t PriceTable) ValidCount(ticker string) int {
	count := 0
	for _, p := range t.Data[ticker] {
		if !math.IsNaN(p) {
			count++
		}
	}
	return count
}

// FirstValidIndex returns the index of the first non-NaN observation for a
// ticker, or -1 if the column is entirely missing.
func (t PriceTable) FirstValidIndex(ticker string) int {
	for i, p := range t.Data[ticker] {
		if !math.IsNaN(p) {
			return i
		}
	}
	return -1
}

// Truncate returns a view of the table starting at index from. Column slices
// are shared with the receiver; callers must treat both as read-only.
func (t PriceTable) Truncate(from int) PriceTable {
	if from <= 0 || t.Empty() {
		return t
	}
	if from >= len(t.Dates) {
		from = len(t.Dates)
	}
	out := PriceTable{
		Dates:   t.Dates[from:],
		Tickers: t.Tickers,
		Data:    make(map[string][]float64, len(t.Data)),
	}
	for ticker, prices := range t.Data {
		out.Data[ticker] = prices[from:]
	}
	return out
}

// ReturnsTable is a date-indexed table of simple percentage returns, one row
// shorter than the price table it was derived from.
type ReturnsTable struct {
	Dates   []string             `json:"dates"`
	Tickers []string             `json:"tickers"`
	Data    map[string][]float64 `json:"data"`
}

// ReindexTo projects the table onto a new date index, matching observations
// by date rather than by row position. Dates without an observation in the
// source become NaN; source dates absent from the new index are dropped.
// This is how series from different trading calendars (an ASX asset against
// a US benchmark) are lined up before any pairwise computation.
func (t ReturnsTable) ReindexTo(dates []string) ReturnsTable {
	out := ReturnsTable{
		Dates:   dates,
		Tickers: t.Tickers,
		Data:    make(map[string][]float64, len(t.Tickers)),
	}
	rowByDate := make(map[string]int, len(t.Dates))
	for i, date := range t.Dates {
		rowByDate[date] = i
	}
	for _, ticker := range t.Tickers {
		src := t.Data[ticker]
		col := make([]float64, len(dates))
		for i, date := range dates {
			if row, ok := rowByDate[date]; ok && row < len(src) {
				col[i] = src[row]
			} else {
				col[i] = math.NaN()
			}
		}
		out.Data[ticker] = col
	}
	return out
}
