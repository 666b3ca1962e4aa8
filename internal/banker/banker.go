// Package banker computes the offer presented between rounds.
package banker

import (
	"math"

	"dealroom/internal/rules"
)

// baseModifiers index by round-1, clamped: early offers lowball the average,
// later rounds approach and slightly exceed it.
var baseModifiers = [...]float64{0.70, 0.80, 0.90, 0.95, 1.00, 1.05}

// Offer returns the banker's offer for the given remaining values and round.
// The result is the mean of the remaining values scaled by the round modifier
// and a uniform random factor in [0.90, 1.10), rounded to the nearest 10.
// An empty remaining set yields 0.
func Offer(remaining []float64, round int, rng *rules.RNG) float64 {
	if len(remaining) == 0 {
		return 0
	}
	var sum float64
	for _, v := range remaining {
		sum += v
	}
	avg := sum / float64(len(remaining))

	idx := round - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(baseModifiers) {
		idx = len(baseModifiers) - 1
	}

	raw := avg * baseModifiers[idx] * rng.Float64Between(0.90, 1.10)
	return math.Round(raw/10) * 10
}
