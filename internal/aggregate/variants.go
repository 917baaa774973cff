package aggregate

import (
	"sort"

	"github.com/headline-goat/intent-goat/internal/events"
)

// VariantSummary compares the arms of one experiment.
type VariantSummary struct {
	Variant               string  `json:"variant"`
	Exposures             int     `json:"exposures"`
	CTAs                  int     `json:"ctas"`
	Submits               int     `json:"submits"`
	Sessions              int     `json:"sessions"`
	CTARate               float64 `json:"ctaRate"`
	SubmitRate            float64 `json:"submitRate"`
	AvgDwellSecPerSession float64 `json:"avgDwellSecPerSession"`
}

// VariantSummaries groups an experiment's events by variant. Events that
// carry the experiment id but no variant count toward A.
func VariantSummaries(evs []events.Event, experimentID string) []VariantSummary {
	type acc struct {
		VariantSummary
		dwellMs  int64
		sessions map[string]struct{}
	}
	by := make(map[string]*acc)

	for _, e := range evs {
		if e.ExperimentID != experimentID {
			continue
		}
		v := string(e.Variant)
		if v == "" {
			v = string(events.VariantA)
		}
		r, ok := by[v]
		if !ok {
			r = &acc{VariantSummary: VariantSummary{Variant: v}, sessions: make(map[string]struct{})}
			by[v] = r
		}
		if e.SessionID != "" {
			r.sessions[e.SessionID] = struct{}{}
		}
		switch e.Type {
		case events.TypeExperimentExposure:
			r.Exposures++
		case events.TypeCTAClick:
			r.CTAs++
		case events.TypeLeadFormSubmit:
			r.Submits++
		case events.TypeRegimeExit:
			r.dwellMs += e.DwellTimeMs
		}
	}

	out := make([]VariantSummary, 0, len(by))
	for _, r := range by {
		s := r.VariantSummary
		s.Sessions = len(r.sessions)
		if s.Exposures > 0 {
			s.CTARate = float64(s.CTAs) / float64(s.Exposures)
			s.SubmitRate = float64(s.Submits) / float64(s.Exposures)
		}
		if s.Sessions > 0 {
			s.AvgDwellSecPerSession = float64(r.dwellMs) / 1000 / float64(s.Sessions)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Variant < out[j].Variant })
	return out
}
