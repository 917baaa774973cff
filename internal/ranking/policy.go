// Package ranking reorders the unseen content blocks of a page from the
// visitor's intent tier and per-block conversion posteriors.
package ranking

import (
	"fmt"
	"sort"

	"github.com/headline-goat/intent-goat/internal/events"
	"github.com/headline-goat/intent-goat/internal/stats"
)

// MinSourceExposures is the sample size from which a source-segmented
// posterior is trusted over the block's global mean.
const MinSourceExposures = 20

// Estimates are the posteriors the source-aware sort reads.
type Estimates struct {
	// Source holds the posteriors segmented to the visitor's traffic source.
	Source map[string]stats.SourcePosterior
	Global map[string]stats.Posterior
}

// Weight is the sort key of one block: the source posterior's upper bound
// when it has at least minExposures, otherwise the global mean, otherwise 0.
func (e Estimates) Weight(block string, minExposures int) float64 {
	if sp, ok := e.Source[block]; ok && sp.Exposures >= minExposures {
		return sp.Upper
	}
	if g, ok := e.Global[block]; ok {
		return g.Mean
	}
	return 0
}

// OrderByIntent arranges blocks along seq. Blocks missing from seq keep
// their relative order after the sequenced ones.
func OrderByIntent(blocks, seq []string) []string {
	present := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		present[b] = true
	}

	out := make([]string, 0, len(blocks))
	placed := make(map[string]bool, len(blocks))
	for _, b := range seq {
		if present[b] && !placed[b] {
			out = append(out, b)
			placed[b] = true
		}
	}
	for _, b := range blocks {
		if !placed[b] {
			out = append(out, b)
			placed[b] = true
		}
	}
	return out
}

// OrderBySource sorts blocks by descending Weight. Ties keep their order.
func OrderBySource(blocks []string, est Estimates, minExposures int) []string {
	out := append([]string(nil), blocks...)
	sort.SliceStable(out, func(i, j int) bool {
		return est.Weight(out[i], minExposures) > est.Weight(out[j], minExposures)
	})
	return out
}

// Rerank pins the seen blocks to the front in their current order and
// reorders the rest by intent sequence, then by source-aware weight.
func Rerank(current, seen, seq []string, est Estimates) []string {
	isSeen := make(map[string]bool, len(seen))
	for _, b := range seen {
		isSeen[b] = true
	}

	var pinned, unseen []string
	for _, b := range current {
		if isSeen[b] {
			pinned = append(pinned, b)
		} else {
			unseen = append(unseen, b)
		}
	}

	ordered := OrderBySource(OrderByIntent(unseen, seq), est, MinSourceExposures)
	return append(pinned, ordered...)
}

// Estimate recomputes the posteriors from an event log. Exposures are
// block entries and conversions are lead form submits attributed to a
// block. Every block in the log gets a source posterior, with zero counts
// when the source never reached it.
func Estimate(evs []events.Event, source string) (Estimates, error) {
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

	composed, err := tally.Compose(stats.DefaultKappa)
	if err != nil {
		return Estimates{}, fmt.Errorf("failed to compose posteriors: %w", err)
	}

	est := Estimates{
		Source: make(map[string]stats.SourcePosterior, len(composed)),
		Global: make(map[string]stats.Posterior, len(composed)),
	}
	for block, bp := range composed {
		est.Global[block] = bp.Global
		if sp, ok := bp.Sources[source]; ok {
			est.Source[block] = sp
			continue
		}
		sp, err := stats.SourcePosteriorFromGlobal(0, 0, bp.Global.Mean, stats.DefaultKappa, block)
		if err != nil {
			return Estimates{}, err
		}
		est.Source[block] = sp
	}
	return est, nil
}
