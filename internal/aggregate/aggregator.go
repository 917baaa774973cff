package aggregate

import (
	"sort"

	"github.com/headline-goat/intent-goat/internal/events"
)

// Aggregator folds interaction events into per-session accumulators and
// window projections (block stats, totals, timeline) over a capped log.
//
// Session accumulators are live and only grow. The window projections
// describe exactly the retained events: an eviction marks them stale and
// the next read (Block, Summary) rebuilds them from the log. Restore
// rebuilds both from a persisted log.
//
// An Aggregator is not safe for concurrent use.
type Aggregator struct {
	log *Log

	sessions     map[string]*Session
	sessionOrder []string
	seen         map[string][]string

	window window
	stale  bool
}

type window struct {
	blocks     map[string]*BlockStats
	blockOrder []string
	buckets    map[int64]*Bucket

	maxDepth    float64
	ctaClicks   int
	formViews   int
	formSubmits int
	reorders    int
}

func newWindow() window {
	return window{
		blocks:  make(map[string]*BlockStats),
		buckets: make(map[int64]*Bucket),
	}
}

func New(logCap int) *Aggregator {
	return &Aggregator{
		log:      NewLog(logCap),
		sessions: make(map[string]*Session),
		seen:     make(map[string][]string),
		window:   newWindow(),
	}
}

// Apply folds one event. Events of a session must arrive in emission order.
func (a *Aggregator) Apply(e events.Event) {
	a.applySession(e)
	if a.log.Append(e) {
		a.stale = true
	}
	if !a.stale {
		a.window.apply(e)
	}
}

// Restore discards all state and replays a persisted log.
func (a *Aggregator) Restore(evs []events.Event) {
	a.sessions = make(map[string]*Session)
	a.sessionOrder = nil
	a.seen = make(map[string][]string)
	a.log.Reset(evs)
	for _, e := range a.log.Events() {
		a.applySession(e)
	}
	a.rebuildWindow()
}

func (a *Aggregator) rebuildWindow() {
	a.window = newWindow()
	for _, e := range a.log.events {
		a.window.apply(e)
	}
	a.stale = false
}

func (a *Aggregator) refresh() {
	if a.stale {
		a.rebuildWindow()
	}
}

func (a *Aggregator) applySession(e events.Event) {
	if e.SessionID == "" {
		return
	}
	s, ok := a.sessions[e.SessionID]
	if !ok {
		s = &Session{SessionID: e.SessionID}
		a.sessions[e.SessionID] = s
		a.sessionOrder = append(a.sessionOrder, e.SessionID)
	}

	switch e.Type {
	case events.TypeScrollDepth:
		if e.DepthPercent > s.MaxScrollDepth {
			s.MaxScrollDepth = e.DepthPercent
		}
	case events.TypeRegimeEnter:
		if a.markSeen(e.SessionID, e.RegimeID) {
			s.RegimeCount++
		}
	case events.TypeRegimeExit:
		s.TotalDwellMs += e.DwellTimeMs
	case events.TypeCTAClick:
		s.TotalCTAClicks++
	case events.TypeLeadFormView:
		s.TotalFormViews++
	case events.TypeLeadFormSubmit:
		s.TotalFormSubmits++
	case events.TypeKPIReveal:
		s.KPIReveals++
	}
}

// markSeen records a block as entered and reports whether it was new.
func (a *Aggregator) markSeen(sessionID, blockID string) bool {
	for _, id := range a.seen[sessionID] {
		if id == blockID {
			return false
		}
	}
	a.seen[sessionID] = append(a.seen[sessionID], blockID)
	return true
}

func (w *window) block(id string) *BlockStats {
	b, ok := w.blocks[id]
	if !ok {
		b = &BlockStats{RegimeID: id}
		w.blocks[id] = b
		w.blockOrder = append(w.blockOrder, id)
	}
	return b
}

func (w *window) apply(e events.Event) {
	key := (e.Timestamp / BucketWidthMs) * BucketWidthMs
	b, ok := w.buckets[key]
	if !ok {
		b = &Bucket{T: key}
		w.buckets[key] = b
	}

	switch e.Type {
	case events.TypeScrollDepth:
		if e.DepthPercent > w.maxDepth {
			w.maxDepth = e.DepthPercent
		}
		if e.DepthPercent > b.MaxDepth {
			b.MaxDepth = e.DepthPercent
		}
	case events.TypeCTAClick:
		w.ctaClicks++
		b.CTAClicks++
		if e.RegimeID != "" {
			w.block(e.RegimeID).CTAClicks++
		}
	case events.TypeLeadFormView:
		w.formViews++
		if e.RegimeID != "" {
			w.block(e.RegimeID).FormViews++
		}
	case events.TypeLeadFormSubmit:
		w.formSubmits++
		b.FormSubmits++
		if e.RegimeID != "" {
			w.block(e.RegimeID).FormSubmits++
		}
	case events.TypeKPIReveal:
		if e.RegimeID != "" {
			w.block(e.RegimeID).KPIReveals++
		}
	case events.TypeRegimeEnter:
		w.block(e.RegimeID).Enters++
	case events.TypeRegimeExit:
		blk := w.block(e.RegimeID)
		blk.Exits++
		blk.DwellMs += e.DwellTimeMs
	case events.TypeNarrativeReorder:
		w.reorders++
	}
}

// Session returns a copy of one session's accumulator.
func (a *Aggregator) Session(id string) (Session, bool) {
	s, ok := a.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Sessions returns every session in first-seen order.
func (a *Aggregator) Sessions() []Session {
	out := make([]Session, 0, len(a.sessionOrder))
	for _, id := range a.sessionOrder {
		out = append(out, *a.sessions[id])
	}
	return out
}

// Seen returns the blocks a session has entered, in first-entry order.
func (a *Aggregator) Seen(sessionID string) []string {
	return append([]string(nil), a.seen[sessionID]...)
}

// Events returns the retained log, oldest first.
func (a *Aggregator) Events() []events.Event {
	return a.log.Events()
}

// Block returns the stats of one block in the retained window.
func (a *Aggregator) Block(id string) (BlockStats, bool) {
	a.refresh()
	b, ok := a.window.blocks[id]
	if !ok {
		return BlockStats{}, false
	}
	out := *b
	out.derive()
	return out, true
}

// Summary projects the retained window for the executive dashboard.
// Blocks are ordered by engagement score, highest first.
func (a *Aggregator) Summary() Summary {
	a.refresh()
	w := &a.window

	blocks := make([]BlockStats, 0, len(w.blockOrder))
	totalAvg := 0.0
	for _, id := range w.blockOrder {
		b := *w.blocks[id]
		b.derive()
		totalAvg += b.AvgDwellMs
		blocks = append(blocks, b)
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].EngagementScore > blocks[j].EngagementScore
	})

	avg := 0.0
	if len(blocks) > 0 {
		avg = totalAvg / float64(len(blocks))
	}

	timeline := make([]Bucket, 0, len(w.buckets))
	for _, b := range w.buckets {
		timeline = append(timeline, *b)
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].T < timeline[j].T })

	return Summary{
		TotalEvents:          a.log.Len(),
		UniqueRegimes:        len(blocks),
		MaxScrollDepth:       w.maxDepth,
		TotalCTAClicks:       w.ctaClicks,
		TotalFormViews:       w.formViews,
		TotalFormSubmits:     w.formSubmits,
		TotalReorders:        w.reorders,
		AvgDwellMsAllRegimes: avg,
		Regimes:              blocks,
		Timeline:             timeline,
	}
}

// Summarize folds a batch of events into a fresh summary.
func Summarize(evs []events.Event) Summary {
	a := New(len(evs))
	a.Restore(evs)
	return a.Summary()
}
