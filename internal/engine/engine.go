// Package engine runs the closed intent loop of one visitor page: events
// are folded into session state, scored, used to reorder the page and to
// raise sales alerts.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/headline-goat/intent-goat/internal/aggregate"
	"github.com/headline-goat/intent-goat/internal/alerts"
	"github.com/headline-goat/intent-goat/internal/bus"
	"github.com/headline-goat/intent-goat/internal/events"
	"github.com/headline-goat/intent-goat/internal/experiment"
	"github.com/headline-goat/intent-goat/internal/intent"
	"github.com/headline-goat/intent-goat/internal/logger"
	"github.com/headline-goat/intent-goat/internal/ranking"
)

// Local state keys.
const (
	EventLogKey  = "exec_analytics_events_v1"
	SessionIDKey = "exec_session_id"
)

const stateTimeout = 2 * time.Second

// Forwarder ships events to remote ingestion. It must not block.
type Forwarder interface {
	Forward(e events.Event) bool
}

// Options configures an Engine. Everything but Blocks is optional.
type Options struct {
	SessionID   string
	Attribution events.Attribution
	Experiment  experiment.Config
	// Blocks is the page's own block order, used when the assigned arm
	// defines none.
	Blocks    []string
	Sequences ranking.Sequences
	LogCap    int

	State alerts.Backend
	// PersistInterval, when positive, writes the event log to State at most
	// once per interval; Flush writes what is pending. Zero writes through.
	PersistInterval time.Duration

	Notifier  alerts.Notifier
	Forwarder Forwarder
	Logger    *logger.Logger
	Now       func() time.Time
}

// Engine owns the event log, the aggregator, the narrator and the alert
// composer of one page. All consumers subscribe to one bus, so each sees
// the same event order.
//
// Emit is safe to call from several goroutines; events are delivered one
// at a time in bus order.
type Engine struct {
	bus      *bus.Bus
	agg      *aggregate.Aggregator
	narrator *ranking.Narrator
	composer *alerts.Composer
	alerts   *alerts.Store

	state     alerts.Backend
	forwarder Forwarder
	log       *logger.Logger
	now       func() time.Time

	sessionID   string
	attribution events.Attribution
	experiment  experiment.Config
	variant     events.Variant

	mu    sync.Mutex
	order []string

	persistInterval time.Duration
	lastPersist     time.Time
	pending         bool
}

// New builds an engine and restores its persisted state. Unreadable state
// is logged and replaced by defaults.
func New(ctx context.Context, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Experiment.ID == "" {
		opts.Experiment = experiment.Home
	}
	if opts.Attribution.TrafficSource == "" {
		opts.Attribution.TrafficSource = events.SourceDirect
	}

	e := &Engine{
		bus:         bus.New(),
		agg:         aggregate.New(opts.LogCap),
		narrator:    ranking.NewNarrator(ranking.DefaultSequences.Merge(opts.Sequences)),
		state:       opts.State,
		forwarder:   opts.Forwarder,
		log:         opts.Logger,
		now:         opts.Now,
		attribution: opts.Attribution,

		persistInterval: opts.PersistInterval,
	}

	e.sessionID = opts.SessionID
	if e.sessionID == "" {
		e.sessionID = e.loadSessionID(ctx)
	}
	e.log = opts.Logger.With("session_id", e.sessionID)

	var override experiment.Override
	if e.load(ctx, experiment.OverrideKey, &override) {
		opts.Experiment = opts.Experiment.Merge(override)
	}
	e.experiment = opts.Experiment
	e.variant = e.experiment.VariantFor(e.sessionID)

	blocks := opts.Blocks
	if len(blocks) == 0 {
		blocks = ranking.DefaultSequences.For(intent.StateLow)
	}
	e.order = e.experiment.OrderFor(e.variant, blocks)

	var persisted []events.Event
	if e.load(ctx, EventLogKey, &persisted) {
		e.agg.Restore(persisted)
	}

	e.alerts = alerts.NewStore(ctx, opts.State, e.log)
	e.composer = alerts.NewComposer(e.alerts, opts.Notifier)

	e.bus.Subscribe(e.record)
	e.bus.Subscribe(e.forward)
	e.bus.Subscribe(e.observe)
	e.bus.Subscribe(e.narrate)

	return e
}

// Emit stamps an event with the session, attribution, experiment arm,
// timestamp and content id, and publishes it. Malformed events are
// rejected before they reach any consumer.
func (e *Engine) Emit(ev events.Event) (events.Event, error) {
	if ev.SessionID == "" {
		ev.SessionID = e.sessionID
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = e.now().UnixMilli()
	}
	if ev.ExperimentID == "" {
		ev.ExperimentID = e.experiment.ID
	}
	if ev.Variant == "" {
		ev.Variant = e.variant
	}
	ev = e.attribution.Apply(ev)

	if err := ev.Validate(); err != nil {
		return events.Event{}, err
	}
	ev.EventID = ""
	stamped, err := events.WithID(ev)
	if err != nil {
		return events.Event{}, fmt.Errorf("failed to stamp event: %w", err)
	}

	e.bus.Publish(stamped)
	return stamped, nil
}

// Expose records the visitor's exposure to the experiment arm.
func (e *Engine) Expose() (events.Event, error) {
	return e.Emit(events.Event{Type: events.TypeExperimentExposure})
}

// Subscribe adds a consumer after the built-in ones.
func (e *Engine) Subscribe(h bus.Handler) (unsubscribe func()) {
	return e.bus.Subscribe(h)
}

// Order returns the current visible block order.
func (e *Engine) Order() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

func (e *Engine) SessionID() string       { return e.sessionID }
func (e *Engine) Variant() events.Variant { return e.variant }
func (e *Engine) TrafficSource() string   { return e.attribution.TrafficSource }
func (e *Engine) Alerts() *alerts.Store   { return e.alerts }

// Session returns the visitor's accumulator.
func (e *Engine) Session() aggregate.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.agg.Session(e.sessionID)
	if !ok {
		return aggregate.Session{SessionID: e.sessionID}
	}
	return s
}

// Score evaluates the conversion model on the visitor's session.
func (e *Engine) Score() intent.Score {
	return intent.ComputeScore(e.Session().Signals())
}

func (e *Engine) Summary() aggregate.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agg.Summary()
}

// Events returns the retained event log.
func (e *Engine) Events() []events.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agg.Events()
}

func (e *Engine) record(ev events.Event) {
	e.mu.Lock()
	e.agg.Apply(ev)
	e.pending = true
	var log []events.Event
	due := e.state != nil && (e.persistInterval <= 0 || e.now().Sub(e.lastPersist) >= e.persistInterval)
	if due {
		log = e.takePending()
	}
	e.mu.Unlock()

	if !due {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stateTimeout)
	defer cancel()
	if err := e.state.Save(ctx, EventLogKey, log); err != nil {
		e.log.Warn("failed to persist event log", "error", err)
	}
}

// takePending snapshots the log for a write. e.mu must be held.
func (e *Engine) takePending() []events.Event {
	e.pending = false
	e.lastPersist = e.now()
	return e.agg.Events()
}

// Flush writes the event log if events arrived since the last write.
func (e *Engine) Flush(ctx context.Context) error {
	if e.state == nil {
		return nil
	}
	e.mu.Lock()
	if !e.pending {
		e.mu.Unlock()
		return nil
	}
	log := e.takePending()
	e.mu.Unlock()

	if err := e.state.Save(ctx, EventLogKey, log); err != nil {
		return fmt.Errorf("failed to persist event log: %w", err)
	}
	return nil
}

func (e *Engine) forward(ev events.Event) {
	if e.forwarder == nil {
		return
	}
	if !e.forwarder.Forward(ev) {
		e.log.Debug("event not forwarded", "event_id", ev.EventID)
	}
}

func (e *Engine) observe(ev events.Event) {
	if ev.SessionID != e.sessionID {
		return
	}
	e.mu.Lock()
	s, _ := e.agg.Session(e.sessionID)
	seen := e.agg.Seen(e.sessionID)
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stateTimeout)
	defer cancel()
	for _, a := range e.composer.Observe(ctx, ev, s, seen) {
		e.log.Info("sales alert raised", "alert", a.ID, "type", a.Type)
	}
}

func (e *Engine) narrate(ev events.Event) {
	if ev.Type == events.TypeNarrativeReorder || ev.SessionID != e.sessionID {
		return
	}

	e.mu.Lock()
	s, _ := e.agg.Session(e.sessionID)
	est, err := ranking.Estimate(e.agg.Events(), e.attribution.TrafficSource)
	if err != nil {
		e.mu.Unlock()
		e.log.Warn("failed to estimate posteriors", "error", err)
		return
	}
	view := ranking.View{
		Order:     append([]string(nil), e.order...),
		Seen:      e.agg.Seen(e.sessionID),
		Session:   s,
		Intent:    intent.Classify(intent.ComputeScore(s.Signals()).Probability),
		Estimates: est,
	}
	r, ok := e.narrator.Evaluate(ev.Timestamp, view)
	if ok {
		e.order = r.Order
	}
	e.mu.Unlock()

	if !ok {
		return
	}
	e.log.Debug("narrative reordered", "intent", r.Intent, "order", r.Order)
	if _, err := e.Emit(r.Event(e.sessionID, e.attribution.TrafficSource)); err != nil {
		e.log.Warn("failed to emit reorder event", "error", err)
	}
}

func (e *Engine) load(ctx context.Context, key string, dst any) bool {
	if e.state == nil {
		return false
	}
	ok, err := e.state.Load(ctx, key, dst)
	if err != nil {
		e.log.Warn("failed to load local state", "key", key, "error", err)
		return false
	}
	return ok
}

func (e *Engine) loadSessionID(ctx context.Context) string {
	var id string
	if e.load(ctx, SessionIDKey, &id) && id != "" {
		return id
	}
	id = uuid.NewString()
	if e.state != nil {
		if err := e.state.Save(ctx, SessionIDKey, id); err != nil {
			e.log.Warn("failed to persist session id", "error", err)
		}
	}
	return id
}
