package formulas

import "math"

// Returns converts a value or price series to simple percentage returns.
// Returns[i] = (v[i] - v[i-1]) / v[i-1]. Steps that would divide by zero or
// involve a missing (NaN) observation produce 0.0 ("no return") so that a
// single bad cell cannot poison downstream statistics.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev, cur := values[i-1], values[i]
		if prev == 0 || math.IsNaN(prev) || math.IsNaN(cur) {
			continue
		}
		r := (cur - prev) / prev
		if math.IsInf(r, 0) || math.IsNaN(r) {
			continue
		}
		returns[i-1] = r
	}

	return returns
}

// CumulativeValue compounds a return series into a growth-of-1 value path.
// Result[i] = product over j<=i of (1 + r[j]).
func CumulativeValue(returns []float64) []float64 {
	values := make([]float64, len(returns))
	acc := 1.0
	for i, r := range returns {
		acc *= 1 + r
		values[i] = acc
	}
	return values
}

// MaxDrawdown calculates the worst peak-to-trough decline of a value series,
// expressed as a negative fraction (-0.25 = 25% below the running peak).
// Returns NaN for an empty series.
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	worst := 0.0
	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := v/peak - 1
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// Sanitize replaces +/-Inf with NaN so no metric is ever reported as infinite.
func Sanitize(v float64) float64 {
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
