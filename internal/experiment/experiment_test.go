package experiment_test

import (
	"math"
	"testing"

	"github.com/headline-goat/intent-goat/internal/events"
	"github.com/headline-goat/intent-goat/internal/experiment"
)

func TestHashUnit(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0.136261},
		{"abc", 0.920331},
		{"session-1", 0.347597},
		{"Ω-visitor", 0.573339},
	}
	for _, tt := range tests {
		if got := experiment.HashUnit(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("HashUnit(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAssign(t *testing.T) {
	half := experiment.Traffic{events.VariantA: 0.5, events.VariantB: 0.5}
	tests := []struct {
		session string
		traffic experiment.Traffic
		want    events.Variant
	}{
		{"session-1", half, events.VariantA},
		{"abc", half, events.VariantB},
		{"abc", experiment.Traffic{events.VariantA: 0.5, events.VariantB: 0.3}, events.VariantC},
		{"abc", experiment.Traffic{}, events.VariantC},
	}
	for _, tt := range tests {
		if got := experiment.Assign(tt.session, tt.traffic); got != tt.want {
			t.Errorf("Assign(%q, %v) = %s, want %s", tt.session, tt.traffic, got, tt.want)
		}
	}
}

func TestAssign_Stable(t *testing.T) {
	for i := 0; i < 100; i++ {
		if experiment.Assign("visitor-42", experiment.Home.Traffic) != experiment.Assign("visitor-42", experiment.Home.Traffic) {
			t.Fatal("assignment must be a pure function of the session id")
		}
	}
}

func TestMerge(t *testing.T) {
	off := false
	cfg := experiment.Home.Merge(experiment.Override{
		IsEnabled: &off,
		Traffic:   experiment.Traffic{events.VariantC: 0.2},
	})

	if cfg.IsEnabled {
		t.Error("override should disable the experiment")
	}
	if cfg.Traffic[events.VariantA] != 0.5 || cfg.Traffic[events.VariantC] != 0.2 {
		t.Errorf("partial traffic should merge per arm, got %v", cfg.Traffic)
	}
	if experiment.Home.Traffic[events.VariantC] != 0 {
		t.Error("merge must not mutate the base config")
	}
	if cfg.VariantFor("abc") != events.VariantA {
		t.Error("disabled experiment serves A")
	}
}

func TestOrderFor(t *testing.T) {
	fallback := []string{"x"}
	if got := experiment.Home.OrderFor(events.VariantB, fallback); got[0] != "ai-governance" {
		t.Errorf("B order starts with %s", got[0])
	}
	if got := experiment.Home.OrderFor(events.VariantC, fallback); len(got) != 1 || got[0] != "x" {
		t.Errorf("C should fall back, got %v", got)
	}
}
