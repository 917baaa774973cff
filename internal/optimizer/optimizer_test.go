package optimizer_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/headline-goat/intent-goat/internal/events"
	"github.com/headline-goat/intent-goat/internal/optimizer"
)

func TestRegimeWeight(t *testing.T) {
	tests := []struct {
		name string
		p    optimizer.Performance
		want float64
	}{
		{"low sample", optimizer.Performance{Exposures: 9, Submits: 9}, 0.5},
		{"zero", optimizer.Performance{Exposures: 10}, 0},
		// 1.8*0.1 + 1.4*0.05 + 1.0*0.2 + 0.6*0.5
		{"mixed", optimizer.Performance{Exposures: 20, AvgDwellMs: 3000, CTAClicks: 4, Submits: 2, HighIntentSessions: 1}, 0.75},
		{"capped", optimizer.Performance{Exposures: 10, AvgDwellMs: 9000, CTAClicks: 10, Submits: 10, HighIntentSessions: 10}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := optimizer.RegimeWeight(tt.p); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("RegimeWeight = %v, want %v", got, tt.want)
			}
		})
	}
}

func env(typ events.Type, regime string, mutate func(*events.Envelope)) events.Envelope {
	e := events.Envelope{Event: events.Event{Type: typ, RegimeID: regime, Timestamp: 1}}
	if mutate != nil {
		mutate(&e)
	}
	return e
}

func TestPerformances(t *testing.T) {
	evs := []events.Envelope{
		env(events.TypeRegimeEnter, "b", nil),
		env(events.TypeRegimeEnter, "a", nil),
		env(events.TypeRegimeExit, "a", func(e *events.Envelope) { e.DwellTimeMs = 1000 }),
		env(events.TypeRegimeExit, "a", func(e *events.Envelope) { e.DwellTimeMs = 3000 }),
		env(events.TypeCTAClick, "a", nil),
		env(events.TypeLeadFormSubmit, "a", nil),
		env(events.TypeHighIntent, "a", nil),
		env(events.TypeSalesNotification, "a", func(e *events.Envelope) { e.NotificationType = "high_intent" }),
		env(events.TypeSalesNotification, "a", func(e *events.Envelope) { e.NotificationType = "form_submit" }),
		env(events.TypeCTAClick, "", nil),
	}

	want := []optimizer.Performance{
		{RegimeID: "b", Exposures: 1},
		{RegimeID: "a", Exposures: 1, AvgDwellMs: 2000, CTAClicks: 1, Submits: 1, HighIntentSessions: 2},
	}
	if diff := cmp.Diff(want, optimizer.Performances(evs)); diff != "" {
		t.Errorf("performances mismatch (-want +got):\n%s", diff)
	}

	weights := optimizer.Weights(evs)
	if len(weights) != 2 || weights[0].Weight != optimizer.DefaultWeight {
		t.Errorf("unexpected weights %+v", weights)
	}
}

func TestPosteriors(t *testing.T) {
	var evs []events.Envelope
	for i := 0; i < 20; i++ {
		evs = append(evs, env(events.TypeRegimeEnter, "a", func(e *events.Envelope) { e.TrafficSource = "google:cpc" }))
	}
	evs = append(evs,
		env(events.TypeLeadFormSubmit, "a", func(e *events.Envelope) { e.TrafficSource = "google:cpc" }),
		env(events.TypeCTAClick, "a", nil),
	)

	got, err := optimizer.Posteriors(evs, 30)
	if err != nil {
		t.Fatalf("Posteriors: %v", err)
	}
	a := got["a"]
	if a.Exposures != 20 || a.Submits != 1 {
		t.Errorf("totals = %d/%d", a.Submits, a.Exposures)
	}
	// Beta(2, 28)
	if math.Abs(a.Global.Mean-2.0/30) > 1e-12 {
		t.Errorf("global mean = %v", a.Global.Mean)
	}
	if _, ok := a.Sources["unknown"]; !ok {
		t.Error("a block-bearing event registers its source even without counts")
	}
	if a.Sources["google:cpc"].Exposures != 20 {
		t.Errorf("unexpected source posterior %+v", a.Sources["google:cpc"])
	}
}
