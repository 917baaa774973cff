// Package finance implements the discounted cash-flow kernel shared by the
// report surfaces.
package finance

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidCashFlow = errors.New("invalid cash flow")

const (
	DefaultGuess = 0.1

	maxIterations = 1000
	tolerance     = 1e-7
	// Newton is abandoned once the rate approaches -100%.
	rateFloor = -0.9999

	scanLow      = -0.9
	scanHigh     = 1.5
	scanStep     = 0.01
	scanMaxError = 1e-3
)

// PresentValue discounts flows[t] by (1+rate)^t and sums them.
// An empty series is worth 0.
func PresentValue(rate float64, flows []float64) float64 {
	npv := 0.0
	for t, cf := range flows {
		npv += cf / math.Pow(1+rate, float64(t))
	}
	return npv
}

// InternalRate finds a rate at which PresentValue is zero. It runs
// Newton-Raphson from guess and falls back to a coarse scan over
// [-0.9, 1.5]. ok is false when neither finds a root, which is the
// expected answer for series without a sign change.
func InternalRate(flows []float64, guess float64) (rate float64, ok bool) {
	if len(flows) == 0 {
		return 0, false
	}
	rate = guess

	for i := 0; i < maxIterations; i++ {
		npv, derivative := 0.0, 0.0
		for t, cf := range flows {
			ft := float64(t)
			npv += cf / math.Pow(1+rate, ft)
			derivative -= ft * cf / math.Pow(1+rate, ft+1)
		}

		if math.Abs(derivative) < tolerance {
			break
		}

		next := rate - npv/derivative
		if math.IsNaN(next) || math.IsInf(next, 0) || next <= rateFloor {
			break
		}
		if math.Abs(next-rate) < tolerance {
			return next, true
		}
		rate = next
	}

	steps := int(math.Round((scanHigh - scanLow) / scanStep))
	for i := 0; i <= steps; i++ {
		candidate := scanLow + float64(i)*scanStep
		if math.Abs(PresentValue(candidate, flows)) < scanMaxError {
			return candidate, true
		}
	}

	return 0, false
}

// ValidateRate rejects rates for which discounting is undefined.
func ValidateRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate == -1 {
		return fmt.Errorf("%w: rate %v", ErrInvalidCashFlow, rate)
	}
	return nil
}

// ValidateFlows rejects non-finite entries.
func ValidateFlows(flows []float64) error {
	for i, cf := range flows {
		if math.IsNaN(cf) || math.IsInf(cf, 0) {
			return fmt.Errorf("%w: entry %d is %v", ErrInvalidCashFlow, i, cf)
		}
	}
	return nil
}

// ParseCashFlows parses textual cash flows, accepting comma-separated
// values inside each argument.
func ParseCashFlows(args []string) ([]float64, error) {
	var flows []float64
	for _, arg := range args {
		for _, field := range strings.Split(arg, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidCashFlow, field)
			}
			flows = append(flows, v)
		}
	}
	if err := ValidateFlows(flows); err != nil {
		return nil, err
	}
	return flows, nil
}
