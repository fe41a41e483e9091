// ABOUTME: Aggregation of per-clue distances into one device score
// ABOUTME: Harmonic mean ranks devices; arithmetic mean is kept for comparison and benchmarks
package core

import "math"

// HarmonicMean returns n / Σ(1/d). Inputs are expected to be epsilon-floored;
// a non-positive input drives the mean to 0. An empty input returns +Inf.
func HarmonicMean(distances []float64) float64 {
	if len(distances) == 0 {
		return math.Inf(1)
	}
	var reciprocal float64
	for _, d := range distances {
		if d <= 0 {
			return 0
		}
		reciprocal += 1 / d
	}
	return float64(len(distances)) / reciprocal
}

// ArithmeticMean returns Σd / n, or +Inf for an empty input.
func ArithmeticMean(distances []float64) float64 {
	if len(distances) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for _, d := range distances {
		sum += d
	}
	return sum / float64(len(distances))
}

// round4 rounds to four decimal places
func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
