package alerts

import (
	"context"
	"time"

	"github.com/headline-goat/intent-goat/internal/aggregate"
	"github.com/headline-goat/intent-goat/internal/events"
	"github.com/headline-goat/intent-goat/internal/intent"
)

// Notification is the payload relayed to the sales webhook.
type Notification struct {
	Type           Type     `json:"type"`
	SessionID      string   `json:"sessionId"`
	Probability    float64  `json:"probability,omitempty"`
	MaxScrollDepth float64  `json:"maxScrollDepth"`
	TotalDwellMs   int64    `json:"totalDwellMs"`
	RegimesSeen    []string `json:"regimesSeen,omitempty"`
	CTAClicks      int      `json:"ctaClicks"`
	Timestamp      int64    `json:"timestamp"`
}

// Notifier delivers notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Composer watches session state for the two alert triggers:
//   - high intent: once per session when the conversion probability reaches
//     HighIntentThreshold before the lead form was submitted
//   - form submit: on every lead_form_submit, deduplicated by the store
//
// The high-intent flag lives in memory only and is not re-armed.
type Composer struct {
	store     *Store
	notifier  Notifier
	model     intent.Model
	threshold float64
	now       func() time.Time

	notified map[string]bool
}

func NewComposer(store *Store, notifier Notifier) *Composer {
	return &Composer{
		store:     store,
		notifier:  notifier,
		model:     intent.DefaultModel,
		threshold: HighIntentThreshold,
		now:       time.Now,
		notified:  make(map[string]bool),
	}
}

// Observe evaluates the triggers after an event was folded into s and
// returns the alerts it newly stored.
func (c *Composer) Observe(ctx context.Context, e events.Event, s aggregate.Session, seen []string) []Alert {
	if s.SessionID == "" {
		return nil
	}
	var fired []Alert

	if e.Type == events.TypeLeadFormSubmit {
		depth, dwell := s.MaxScrollDepth, s.TotalDwellMs
		a := Alert{
			ID:             ID(s.SessionID, TypeFormSubmit),
			Type:           TypeFormSubmit,
			SessionID:      s.SessionID,
			MaxScrollDepth: &depth,
			TotalDwellMs:   &dwell,
			CreatedAt:      c.now().UnixMilli(),
		}
		if c.store.Upsert(ctx, a) {
			fired = append(fired, a)
			c.notify(a, s, seen, 0)
		}
	}

	if s.TotalFormSubmits > 0 || c.notified[s.SessionID] {
		return fired
	}
	score := c.model.Score(s.Signals())
	if score.Probability < c.threshold {
		return fired
	}
	c.notified[s.SessionID] = true

	p, depth, dwell := score.Probability, s.MaxScrollDepth, s.TotalDwellMs
	a := Alert{
		ID:             ID(s.SessionID, TypeHighIntent),
		Type:           TypeHighIntent,
		SessionID:      s.SessionID,
		Probability:    &p,
		MaxScrollDepth: &depth,
		TotalDwellMs:   &dwell,
		CreatedAt:      c.now().UnixMilli(),
	}
	c.notify(a, s, seen, p)
	if c.store.Upsert(ctx, a) {
		fired = append(fired, a)
	}
	return fired
}

func (c *Composer) notify(a Alert, s aggregate.Session, seen []string, probability float64) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(Notification{
		Type:           a.Type,
		SessionID:      a.SessionID,
		Probability:    probability,
		MaxScrollDepth: s.MaxScrollDepth,
		TotalDwellMs:   s.TotalDwellMs,
		RegimesSeen:    append([]string(nil), seen...),
		CTAClicks:      s.TotalCTAClicks,
		Timestamp:      a.CreatedAt,
	})
}
