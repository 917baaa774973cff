package stats

import "math"

// SignificanceTest performs a two-proportion z-test.
// Returns confidence level (0-1) that variant A beats variant B.
func SignificanceTest(aConv, aViews, bConv, bViews int) float64 {
	if aViews == 0 || bViews == 0 {
		return 0.5
	}

	pA := float64(aConv) / float64(aViews)
	pB := float64(bConv) / float64(bViews)

	// Pooled proportion under the null hypothesis pA = pB.
	pooled := float64(aConv+bConv) / float64(aViews+bViews)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(aViews) + 1/float64(bViews)))

	if se == 0 {
		switch {
		case pA > pB:
			return 1.0
		case pA < pB:
			return 0.0
		default:
			return 0.5
		}
	}

	return normalCDF((pA - pB) / se)
}

func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// VariantCounts are the raw exposure/conversion counts of one experiment arm.
type VariantCounts struct {
	Variant     string
	Exposures   int
	Conversions int
}

// VariantComparison is one arm measured against the control arm.
type VariantComparison struct {
	Variant     string  `json:"variant"`
	Exposures   int     `json:"exposures"`
	Conversions int     `json:"conversions"`
	Rate        float64 `json:"rate"`
	CILower     float64 `json:"ciLower"`
	CIUpper     float64 `json:"ciUpper"`
	// Confidence that this arm beats the control; 0.5 for the control itself.
	Confidence float64 `json:"confidence"`
	Confident  bool    `json:"confident"`
}

// CompareVariants measures every arm against the first one (the control).
//
// Conversions are counted per event and exposures per exposure event, so
// an arm can report more conversions than exposures. Rates and tests use
// conversions bounded by exposures; the raw count is reported as is.
func CompareVariants(arms []VariantCounts) []VariantComparison {
	out := make([]VariantComparison, len(arms))
	for i, a := range arms {
		conv := boundedConversions(a)
		rate := 0.0
		if a.Exposures > 0 {
			rate = float64(conv) / float64(a.Exposures)
		}
		lower, upper := WilsonInterval(conv, a.Exposures, 0.95)

		confidence := 0.5
		if i > 0 {
			confidence = SignificanceTest(conv, a.Exposures, boundedConversions(arms[0]), arms[0].Exposures)
		}

		out[i] = VariantComparison{
			Variant:     a.Variant,
			Exposures:   a.Exposures,
			Conversions: a.Conversions,
			Rate:        rate,
			CILower:     lower,
			CIUpper:     upper,
			Confidence:  confidence,
			Confident:   confidence >= 0.95,
		}
	}
	return out
}

func boundedConversions(a VariantCounts) int {
	return max(0, min(a.Conversions, a.Exposures))
}
