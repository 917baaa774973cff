package intent_test

import (
	"math"
	"testing"

	"github.com/headline-goat/intent-goat/internal/intent"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		p    float64
		want intent.State
	}{
		{1.0, intent.StateHigh},
		{0.8, intent.StateHigh},
		{0.71, intent.StateHigh},
		{0.7, intent.StateEmerging},
		{0.5, intent.StateEmerging},
		{0.41, intent.StateEmerging},
		{0.4, intent.StateLow},
		{0.3, intent.StateLow},
		{0.0, intent.StateLow},
	}

	for _, tt := range tests {
		if got := intent.Classify(tt.p); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.p, got, tt.want)
		}
	}
}

func TestComputeScore_ZeroEngagement(t *testing.T) {
	s := intent.ComputeScore(intent.Signals{})
	if s.Probability >= 0.5 {
		t.Errorf("expected probability < 0.5, got %v", s.Probability)
	}
	want := 1 / (1 + math.Exp(2.5))
	if math.Abs(s.Probability-want) > 1e-12 {
		t.Errorf("probability = %v, want sigmoid(-2.5) = %v", s.Probability, want)
	}
	if s.ScorePercent >= 50 {
		t.Errorf("score percent = %d", s.ScorePercent)
	}
}

func TestComputeScore_HighEngagement(t *testing.T) {
	s := intent.ComputeScore(intent.Signals{
		MaxScrollDepth: 100,
		TotalDwellMs:   10000,
		RegimeCount:    4,
		CTAClicks:      3,
		KPIReveals:     6,
	})
	if s.Probability <= 0.9 {
		t.Errorf("expected probability > 0.9, got %v", s.Probability)
	}
	// Every signal saturates: z = 2.4+1.8+1.2+2.6+1.0-2.5 = 6.5
	want := 1 / (1 + math.Exp(-6.5))
	if math.Abs(s.Probability-want) > 1e-12 {
		t.Errorf("probability = %v, want %v", s.Probability, want)
	}
	if s.ScorePercent <= 90 {
		t.Errorf("score percent = %d", s.ScorePercent)
	}
}

func TestComputeScore_CTAOutweighsDwell(t *testing.T) {
	cta := intent.ComputeScore(intent.Signals{CTAClicks: 2})
	dwell := intent.ComputeScore(intent.Signals{TotalDwellMs: 8000})
	if cta.Probability <= dwell.Probability {
		t.Errorf("cta %v should beat dwell %v", cta.Probability, dwell.Probability)
	}
}

func TestComputeScore_Components(t *testing.T) {
	s := intent.ComputeScore(intent.Signals{MaxScrollDepth: 50, TotalDwellMs: 4000})
	if s.Components.DepthNorm != 0.5 || s.Components.DwellNorm != 0.5 || s.Components.RegimeNorm != 0 {
		t.Errorf("unexpected components %+v", s.Components)
	}
}

func TestDefaultModel_PinnedConstants(t *testing.T) {
	m := intent.DefaultModel
	want := intent.Model{
		Caps:    intent.Caps{DwellMs: 8000, ScrollDepth: 100, Regimes: 3, CTAClicks: 2, KPIReveals: 5},
		Weights: intent.Weights{Dwell: 2.4, Depth: 1.8, Regime: 1.2, CTA: 2.6, KPI: 1.0},
		Bias:    2.5,
	}
	if m != want {
		t.Errorf("DefaultModel drifted: %+v", m)
	}
}
