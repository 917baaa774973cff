package engine_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/headline-goat/intent-goat/internal/alerts"
	"github.com/headline-goat/intent-goat/internal/engine"
	"github.com/headline-goat/intent-goat/internal/events"
	"github.com/headline-goat/intent-goat/internal/experiment"
	"github.com/headline-goat/intent-goat/internal/ranking"
	"github.com/headline-goat/intent-goat/internal/store"
	"github.com/headline-goat/intent-goat/internal/testutil"
)

const t0 = int64(1_700_000_000_000)

var idPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

func fixedNow() time.Time { return time.UnixMilli(t0) }

type capture struct {
	mu  sync.Mutex
	got []alerts.Notification
}

func (c *capture) Notify(n alerts.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
}

type forwarder struct {
	accept bool
	got    []events.Event
}

func (f *forwarder) Forward(e events.Event) bool {
	f.got = append(f.got, e)
	return f.accept
}

func newEngine(t *testing.T, opts engine.Options) *engine.Engine {
	t.Helper()
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	return engine.New(context.Background(), opts)
}

func TestEmit_Stamps(t *testing.T) {
	e := newEngine(t, engine.Options{
		SessionID:   "session-1",
		Attribution: events.Attribute("google", "cpc", "", ""),
	})

	got, err := e.Emit(events.Event{Type: events.TypeCTAClick})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !idPattern.MatchString(got.EventID) {
		t.Errorf("event id %q is not 32 hex chars", got.EventID)
	}
	if got.SessionID != "session-1" || got.TrafficSource != "google:cpc" || got.Timestamp != t0 {
		t.Errorf("unexpected stamping %+v", got)
	}
	if got.ExperimentID != "home_narrative_v1" || got.Variant != events.VariantA {
		t.Errorf("unexpected experiment stamping %+v", got)
	}

	want, _ := events.ID(got)
	if got.EventID != want {
		t.Errorf("event id %s does not match content hash %s", got.EventID, want)
	}
}

func TestEmit_RejectsMalformed(t *testing.T) {
	e := newEngine(t, engine.Options{SessionID: "s"})

	_, err := e.Emit(events.Event{Type: events.TypeScrollDepth, DepthPercent: 140})
	if !errors.Is(err, events.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if len(e.Events()) != 0 {
		t.Error("rejected event reached the log")
	}
}

func mustEmit(t *testing.T, e *engine.Engine, ev events.Event) {
	t.Helper()
	if _, err := e.Emit(ev); err != nil {
		t.Fatalf("Emit(%s): %v", ev.Type, err)
	}
}

func TestEngine_ClosedLoop(t *testing.T) {
	notes := &capture{}
	fwd := &forwarder{}
	e := newEngine(t, engine.Options{SessionID: "session-1", Notifier: notes, Forwarder: fwd})

	if diff := cmp.Diff(experiment.Home.RegimeOrder[events.VariantA], e.Order()); diff != "" {
		t.Fatalf("initial order should come from the arm (-want +got):\n%s", diff)
	}

	mustEmit(t, e, events.Event{Type: events.TypeScrollDepth, Timestamp: t0, DepthPercent: 100})
	// low -> emerging
	mustEmit(t, e, events.Event{Type: events.TypeRegimeEnter, Timestamp: t0 + 100, RegimeID: ranking.BlockAIGovernance})

	wantEmerging := []string{
		ranking.BlockAIGovernance,
		ranking.BlockMultiProjectOptimization,
		ranking.BlockStructuralFabrication,
		ranking.BlockMachineCalibration,
		ranking.BlockARExecution,
		ranking.BlockFleetGrip,
	}
	if diff := cmp.Diff(wantEmerging, e.Order()); diff != "" {
		t.Errorf("emerging order mismatch (-want +got):\n%s", diff)
	}

	mustEmit(t, e, events.Event{Type: events.TypeRegimeEnter, Timestamp: t0 + 200, RegimeID: ranking.BlockFleetGrip})
	// emerging -> high, 4900 ms after the first reorder
	mustEmit(t, e, events.Event{Type: events.TypeRegimeExit, Timestamp: t0 + 5000, RegimeID: ranking.BlockAIGovernance, DwellTimeMs: 8000})

	wantHigh := []string{
		ranking.BlockAIGovernance,
		ranking.BlockFleetGrip,
		ranking.BlockStructuralFabrication,
		ranking.BlockMachineCalibration,
		ranking.BlockMultiProjectOptimization,
		ranking.BlockARExecution,
	}
	if diff := cmp.Diff(wantHigh, e.Order()); diff != "" {
		t.Errorf("high order mismatch (-want +got):\n%s", diff)
	}

	mustEmit(t, e, events.Event{Type: events.TypeLeadFormView, Timestamp: t0 + 9000})
	mustEmit(t, e, events.Event{Type: events.TypeLeadFormSubmit, Timestamp: t0 + 12000, RegimeID: ranking.BlockFleetGrip})

	log := e.Events()
	if len(log) != 8 {
		t.Fatalf("log holds %d events, want 8", len(log))
	}
	if log[2].Type != events.TypeNarrativeReorder || log[2].Intent != "emerging" {
		t.Errorf("reorder audit should follow its cause, got %+v", log[2])
	}
	if e.Summary().TotalReorders != 2 {
		t.Errorf("reorders = %d, want 2", e.Summary().TotalReorders)
	}

	all := e.Alerts().All()
	if len(all) != 2 || all[0].Type != alerts.TypeFormSubmit || all[1].Type != alerts.TypeHighIntent {
		t.Errorf("unexpected alerts %+v", all)
	}
	if len(notes.got) != 2 {
		t.Errorf("notifications = %d, want 2", len(notes.got))
	}
	if len(fwd.got) != 8 {
		t.Errorf("forwarded %d events, want 8", len(fwd.got))
	}
	if s := e.Session(); s.RegimeCount != 2 || s.TotalFormSubmits != 1 {
		t.Errorf("unexpected session %+v", s)
	}
}

func localState(t *testing.T) *store.LocalState {
	t.Helper()
	return store.NewLocalState(testutil.SetupTestStore(t), nil)
}

func TestEngine_RestoresFromLocalState(t *testing.T) {
	state := localState(t)

	first := newEngine(t, engine.Options{State: state})
	mustEmit(t, first, events.Event{Type: events.TypeScrollDepth, Timestamp: t0, DepthPercent: 55})
	mustEmit(t, first, events.Event{Type: events.TypeLeadFormSubmit, Timestamp: t0 + 1})

	second := newEngine(t, engine.Options{State: state})
	if second.SessionID() != first.SessionID() {
		t.Errorf("session id not persisted: %s vs %s", first.SessionID(), second.SessionID())
	}
	if diff := cmp.Diff(first.Session(), second.Session()); diff != "" {
		t.Errorf("restored session mismatch (-first +second):\n%s", diff)
	}
	if len(second.Alerts().All()) != 1 {
		t.Errorf("alerts not restored: %+v", second.Alerts().All())
	}
}

func TestEngine_ExperimentOverride(t *testing.T) {
	state := localState(t)
	off := false
	if err := state.Save(context.Background(), experiment.OverrideKey, experiment.Override{IsEnabled: &off}); err != nil {
		t.Fatalf("save override: %v", err)
	}

	// "abc" lands in B with the default split.
	e := newEngine(t, engine.Options{SessionID: "abc", State: state})
	if e.Variant() != events.VariantA {
		t.Errorf("disabled experiment should serve A, got %s", e.Variant())
	}
	if newEngine(t, engine.Options{SessionID: "abc"}).Variant() != events.VariantB {
		t.Error("without the override abc is assigned B")
	}
}

func TestEngine_ForwardFailureDoesNotBlockState(t *testing.T) {
	e := newEngine(t, engine.Options{SessionID: "s", Forwarder: &forwarder{accept: false}})
	mustEmit(t, e, events.Event{Type: events.TypeCTAClick, Timestamp: t0})

	if e.Session().TotalCTAClicks != 1 {
		t.Error("local state must update regardless of forwarding")
	}
}

func TestEngine_SubscribersSeeOneOrder(t *testing.T) {
	e := newEngine(t, engine.Options{SessionID: "session-1"})
	var seen []events.Type
	e.Subscribe(func(ev events.Event) { seen = append(seen, ev.Type) })

	mustEmit(t, e, events.Event{Type: events.TypeScrollDepth, Timestamp: t0, DepthPercent: 100})
	mustEmit(t, e, events.Event{Type: events.TypeRegimeEnter, Timestamp: t0 + 100, RegimeID: ranking.BlockAIGovernance})

	var logged []events.Type
	for _, ev := range e.Events() {
		logged = append(logged, ev.Type)
	}
	if diff := cmp.Diff(logged, seen); diff != "" {
		t.Errorf("subscriber order differs from the log (-log +subscriber):\n%s", diff)
	}
}

type countingState struct {
	*store.LocalState
	mu    sync.Mutex
	saves int
}

func (c *countingState) Save(ctx context.Context, key string, v any) error {
	if key == engine.EventLogKey {
		c.mu.Lock()
		c.saves++
		c.mu.Unlock()
	}
	return c.LocalState.Save(ctx, key, v)
}

func TestEngine_PersistIntervalBatchesWrites(t *testing.T) {
	state := &countingState{LocalState: localState(t)}
	clock := time.UnixMilli(t0)
	now := func() time.Time { return clock }

	// Events of another session skip the narrator, so the log holds only
	// what the test emits.
	e := newEngine(t, engine.Options{SessionID: "s", State: state, PersistInterval: time.Second, Now: now})
	for i := int64(0); i < 3; i++ {
		mustEmit(t, e, events.Event{Type: events.TypeCTAClick, SessionID: "other", Timestamp: t0 + i})
	}
	if state.saves != 1 {
		t.Fatalf("saves = %d, want 1 within one interval", state.saves)
	}

	clock = clock.Add(time.Second)
	mustEmit(t, e, events.Event{Type: events.TypeCTAClick, SessionID: "other", Timestamp: t0 + 3})
	if state.saves != 2 {
		t.Fatalf("saves = %d, want 2 after the interval elapsed", state.saves)
	}

	mustEmit(t, e, events.Event{Type: events.TypeCTAClick, SessionID: "other", Timestamp: t0 + 4})
	if restored := newEngine(t, engine.Options{SessionID: "s", State: state}); len(restored.Events()) != 4 {
		t.Errorf("restored %d events before flush, want 4", len(restored.Events()))
	}

	if err := e.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := e.Flush(context.Background()); err != nil || state.saves != 3 {
		t.Errorf("second flush must be a no-op, saves = %d err = %v", state.saves, err)
	}
	if restored := newEngine(t, engine.Options{SessionID: "s", State: state}); len(restored.Events()) != 5 {
		t.Errorf("restored %d events after flush, want 5", len(restored.Events()))
	}
}
