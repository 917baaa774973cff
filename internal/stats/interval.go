package stats

import "math"

// WilsonInterval calculates the Wilson score confidence interval
// for a binomial proportion. It's more accurate for small samples
// than the normal approximation.
//
// successes is bounded to [0, trials].
func WilsonInterval(successes, trials int, confidence float64) (lower, upper float64) {
	if trials <= 0 {
		return 0, 0
	}
	successes = max(0, min(successes, trials))

	z := ZScore(confidence)
	p := float64(successes) / float64(trials)
	n := float64(trials)

	denominator := 1 + z*z/n
	center := (p + z*z/(2*n)) / denominator
	spread := (z / denominator) * math.Sqrt(p*(1-p)/n+z*z/(4*n*n))

	return clamp01(center - spread), clamp01(center + spread)
}

// NormalInterval returns mean ± z·sd clamped to [0, 1].
func NormalInterval(mean, variance, confidence float64) (lower, upper float64) {
	sd := math.Sqrt(variance)
	z := ZScore(confidence)
	return clamp01(mean - z*sd), clamp01(mean + z*sd)
}

// Tabulated two-sided z-scores. Levels are checked highest first.
var zTable = []struct {
	confidence float64
	z          float64
}{
	{0.99, 2.576},
	{0.95, 1.96},
	{0.90, 1.645},
	{0.85, 1.44},
	{0.80, 1.28},
}

// ZScore returns the two-sided z-score for a confidence level. Common
// levels use the conventional rounded values (0.95 -> 1.96); anything
// below 0.80 is computed from the inverse error function.
func ZScore(confidence float64) float64 {
	for _, row := range zTable {
		if confidence >= row.confidence {
			return row.z
		}
	}
	if confidence <= 0 {
		return 0
	}
	return math.Sqrt2 * math.Erfinv(confidence)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
