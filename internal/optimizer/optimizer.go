// Package optimizer computes the server-side batch views of block
// performance: a scalar weight per block and the hierarchical posteriors.
package optimizer

import (
	"math"

	"github.com/headline-goat/intent-goat/internal/events"
	"github.com/headline-goat/intent-goat/internal/stats"
)

// Regime weight coefficients.
const (
	MinExposures  = 10
	DefaultWeight = 0.5
	WeightCap     = 2.0
	DwellNormMs   = 6000.0

	SubmitCoef = 1.8
	IntentCoef = 1.4
	CTACoef    = 1.0
	DwellCoef  = 0.6
)

// Performance is the batch tally of one block.
type Performance struct {
	RegimeID           string  `json:"regimeId"`
	Exposures          int     `json:"exposures"`
	AvgDwellMs         float64 `json:"avgDwellMs"`
	CTAClicks          int     `json:"ctaClicks"`
	Submits            int     `json:"submits"`
	HighIntentSessions int     `json:"highIntentSessions"`
}

// Weight is the output row of the weight recompute.
type Weight struct {
	RegimeID string  `json:"regimeId"`
	Weight   float64 `json:"weight"`
}

// RegimeWeight scores a block. Blocks with fewer than MinExposures get
// DefaultWeight.
func RegimeWeight(p Performance) float64 {
	if p.Exposures < MinExposures {
		return DefaultWeight
	}

	n := float64(p.Exposures)
	dwellNorm := math.Min(p.AvgDwellMs/DwellNormMs, 1)
	ctaRate := float64(p.CTAClicks) / n
	submitRate := float64(p.Submits) / n
	intentRate := float64(p.HighIntentSessions) / n

	raw := SubmitCoef*submitRate + IntentCoef*intentRate + CTACoef*ctaRate + DwellCoef*dwellNorm
	return math.Min(raw, WeightCap)
}

// Performances tallies envelopes per block, in first-seen block order.
// Envelopes without a block id are ignored.
func Performances(evs []events.Envelope) []Performance {
	type acc struct {
		Performance
		dwellTotal int64
		dwellCount int
	}
	index := make(map[string]int)
	var accs []*acc

	for _, e := range evs {
		if e.RegimeID == "" {
			continue
		}
		i, ok := index[e.RegimeID]
		if !ok {
			i = len(accs)
			index[e.RegimeID] = i
			accs = append(accs, &acc{Performance: Performance{RegimeID: e.RegimeID}})
		}
		r := accs[i]

		switch {
		case e.Type == events.TypeRegimeEnter:
			r.Exposures++
		case e.Type == events.TypeCTAClick:
			r.CTAClicks++
		case e.Type == events.TypeLeadFormSubmit:
			r.Submits++
		case e.Type == events.TypeRegimeExit:
			r.dwellTotal += e.DwellTimeMs
			r.dwellCount++
		case e.IsHighIntent():
			r.HighIntentSessions++
		}
	}

	out := make([]Performance, len(accs))
	for i, r := range accs {
		p := r.Performance
		if r.dwellCount > 0 {
			p.AvgDwellMs = float64(r.dwellTotal) / float64(r.dwellCount)
		}
		out[i] = p
	}
	return out
}

// Weights computes RegimeWeight for every block in the batch.
func Weights(evs []events.Envelope) []Weight {
	perf := Performances(evs)
	out := make([]Weight, len(perf))
	for i, p := range perf {
		out[i] = Weight{RegimeID: p.RegimeID, Weight: RegimeWeight(p)}
	}
	return out
}

// Posteriors composes the global and per-source posteriors of every block
// in the batch. Any envelope naming a block registers its traffic source.
func Posteriors(evs []events.Envelope, kappa float64) (map[string]stats.BlockPosteriors, error) {
	tally := stats.NewTally()
	for _, e := range evs {
		if e.RegimeID == "" {
			continue
		}
		src := e.Source()
		tally.Touch(e.RegimeID, src)
		switch e.Type {
		case events.TypeRegimeEnter:
			tally.AddExposure(e.RegimeID, src)
		case events.TypeLeadFormSubmit:
			tally.AddSubmit(e.RegimeID, src)
		}
	}
	return tally.Compose(kappa)
}
