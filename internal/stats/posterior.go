package stats

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidCounts = errors.New("invalid posterior counts")

// Global prior: roughly a 10% baseline conversion rate.
const (
	GlobalPriorAlpha = 1.0
	GlobalPriorBeta  = 9.0

	// DefaultKappa is the concentration of the empirical prior derived
	// from a global mean.
	DefaultKappa = 30.0

	// PosteriorConfidence is the level of the reported interval.
	PosteriorConfidence = 0.95
)

// Posterior is a Beta posterior over a conversion rate.
type Posterior struct {
	BlockID   string  `json:"regimeId,omitempty"`
	Alpha     float64 `json:"alpha"`
	Beta      float64 `json:"beta"`
	Mean      float64 `json:"mean"`
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
	Exposures int     `json:"exposures"`
	Submits   int     `json:"submits"`
}

// SourcePosterior is a posterior whose prior was derived from a global mean.
type SourcePosterior struct {
	Posterior
	AlphaPrior float64 `json:"alphaPrior"`
	BetaPrior  float64 `json:"betaPrior"`
}

// ComputePosterior updates a Beta(priorAlpha, priorBeta) prior with the
// observed counts. With zero exposures the result is the prior itself.
// The counts must satisfy 0 <= submits <= exposures.
func ComputePosterior(exposures, submits int, priorAlpha, priorBeta float64) (Posterior, error) {
	if exposures < 0 || submits < 0 || submits > exposures {
		return Posterior{}, fmt.Errorf("%w: submits=%d exposures=%d", ErrInvalidCounts, submits, exposures)
	}
	if !(priorAlpha > 0) || !(priorBeta > 0) || math.IsInf(priorAlpha, 0) || math.IsInf(priorBeta, 0) {
		return Posterior{}, fmt.Errorf("%w: prior (%v, %v)", ErrInvalidCounts, priorAlpha, priorBeta)
	}

	alpha := priorAlpha + float64(submits)
	beta := priorBeta + float64(exposures-submits)
	sum := alpha + beta
	mean := alpha / sum
	variance := (alpha * beta) / (sum * sum * (sum + 1))
	lower, upper := NormalInterval(mean, variance, PosteriorConfidence)

	return Posterior{
		Alpha:     alpha,
		Beta:      beta,
		Mean:      mean,
		Lower:     lower,
		Upper:     upper,
		Exposures: exposures,
		Submits:   submits,
	}, nil
}

// GlobalPosterior applies the fixed global prior.
func GlobalPosterior(submits, exposures int) (Posterior, error) {
	return ComputePosterior(exposures, submits, GlobalPriorAlpha, GlobalPriorBeta)
}

// SourcePosteriorFromGlobal shrinks a traffic-source segment toward the
// global mean: the prior carries kappa pseudo-observations at globalMean.
func SourcePosteriorFromGlobal(submits, exposures int, globalMean, kappa float64, blockID string) (SourcePosterior, error) {
	if math.IsNaN(globalMean) || globalMean <= 0 || globalMean >= 1 {
		return SourcePosterior{}, fmt.Errorf("%w: global mean %v", ErrInvalidCounts, globalMean)
	}
	alphaPrior := globalMean * kappa
	betaPrior := (1 - globalMean) * kappa

	p, err := ComputePosterior(exposures, submits, alphaPrior, betaPrior)
	if err != nil {
		return SourcePosterior{}, err
	}
	p.BlockID = blockID
	return SourcePosterior{Posterior: p, AlphaPrior: alphaPrior, BetaPrior: betaPrior}, nil
}
