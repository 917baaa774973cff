package ranking

import (
	"github.com/headline-goat/intent-goat/internal/aggregate"
	"github.com/headline-goat/intent-goat/internal/events"
	"github.com/headline-goat/intent-goat/internal/intent"
)

// DefaultCooldownMs is the minimum time between two reorders.
const DefaultCooldownMs = 3000

// View is what the narrator sees of a page when it is asked to act.
type View struct {
	Order     []string
	Seen      []string
	Session   aggregate.Session
	Intent    intent.State
	Estimates Estimates
}

// Reorder is an accepted ordering change.
type Reorder struct {
	Order  []string
	Intent intent.State
	At     int64
}

// Event is the audit record of the reorder.
func (r Reorder) Event(sessionID, trafficSource string) events.Event {
	return events.Event{
		Type:          events.TypeNarrativeReorder,
		Timestamp:     r.At,
		SessionID:     sessionID,
		TrafficSource: trafficSource,
		Intent:        string(r.Intent),
	}
}

// Narrator decides when a page is reordered. A reorder happens only when
// the intent tier changed, the cooldown has elapsed, and the visitor has
// not touched the lead form. A suppressed change is dropped, not deferred.
//
// A Narrator tracks one page and is not safe for concurrent use.
type Narrator struct {
	Sequences  Sequences
	CooldownMs int64

	lastIntent    intent.State
	lastReorderAt int64
}

func NewNarrator(seqs Sequences) *Narrator {
	if seqs == nil {
		seqs = DefaultSequences
	}
	return &Narrator{
		Sequences:  seqs,
		CooldownMs: DefaultCooldownMs,
		lastIntent: intent.StateLow,
	}
}

// Evaluate returns the new order when the view warrants one.
func (n *Narrator) Evaluate(now int64, v View) (Reorder, bool) {
	if v.Intent == n.lastIntent {
		return Reorder{}, false
	}
	if now-n.lastReorderAt < n.CooldownMs {
		return Reorder{}, false
	}
	if v.Session.FormEngaged() {
		return Reorder{}, false
	}

	order := Rerank(v.Order, v.Seen, n.Sequences.For(v.Intent), v.Estimates)
	n.lastIntent = v.Intent
	n.lastReorderAt = now
	return Reorder{Order: order, Intent: v.Intent, At: now}, true
}

// LastIntent is the tier of the most recent reorder.
func (n *Narrator) LastIntent() intent.State { return n.lastIntent }
