package stats_test

import (
	"math"
	"testing"

	"github.com/headline-goat/intent-goat/internal/stats"
)

func TestSignificanceTest_ClearWinner(t *testing.T) {
	// 10% vs 5% on 1000 exposures each.
	confidence := stats.SignificanceTest(100, 1000, 50, 1000)
	if confidence < 0.95 {
		t.Errorf("expected high confidence (>0.95), got %f", confidence)
	}
}

func TestSignificanceTest_NoSignificance(t *testing.T) {
	confidence := stats.SignificanceTest(50, 1000, 50, 1000)
	if confidence > 0.60 {
		t.Errorf("expected low confidence (<0.60) for equal rates, got %f", confidence)
	}
}

func TestSignificanceTest_SmallSample(t *testing.T) {
	confidence := stats.SignificanceTest(5, 20, 2, 20)
	if confidence > 0.95 {
		t.Errorf("expected lower confidence for small sample, got %f", confidence)
	}
}

func TestSignificanceTest_ZeroViews(t *testing.T) {
	if c := stats.SignificanceTest(0, 0, 0, 0); c != 0.5 {
		t.Errorf("expected 0.5 for zero views, got %f", c)
	}
	if c := stats.SignificanceTest(10, 100, 0, 0); c != 0.5 {
		t.Errorf("expected 0.5 when one side has no data, got %f", c)
	}
}

func TestSignificanceTest_ZeroVariance(t *testing.T) {
	if c := stats.SignificanceTest(0, 100, 0, 100); c != 0.5 {
		t.Errorf("expected 0.5 for identical zero rates, got %f", c)
	}
}

func TestCompareVariants(t *testing.T) {
	out := stats.CompareVariants([]stats.VariantCounts{
		{Variant: "A", Exposures: 1000, Conversions: 50},
		{Variant: "B", Exposures: 1000, Conversions: 100},
	})

	if len(out) != 2 {
		t.Fatalf("expected 2 comparisons, got %d", len(out))
	}
	if out[0].Confidence != 0.5 || out[0].Confident {
		t.Errorf("control should compare neutrally, got %+v", out[0])
	}
	if !out[1].Confident || out[1].Rate != 0.1 {
		t.Errorf("expected B confidently ahead at 10%%, got %+v", out[1])
	}
	if out[1].CILower >= out[1].Rate || out[1].CIUpper <= out[1].Rate {
		t.Errorf("rate should sit inside its interval, got %+v", out[1])
	}
}

func TestCompareVariants_MoreConversionsThanExposures(t *testing.T) {
	// A double submit on one exposure.
	out := stats.CompareVariants([]stats.VariantCounts{
		{Variant: "A", Exposures: 1, Conversions: 0},
		{Variant: "B", Exposures: 1, Conversions: 2},
	})

	b := out[1]
	if b.Rate != 1 {
		t.Errorf("rate = %v, want 1", b.Rate)
	}
	if math.IsNaN(b.CILower) || math.IsNaN(b.CIUpper) || b.CILower < 0 || b.CIUpper > 1 || b.CILower > b.CIUpper {
		t.Errorf("interval out of range: [%v, %v]", b.CILower, b.CIUpper)
	}
	if b.Confident {
		t.Errorf("one exposure per arm must not be confident, got %+v", b)
	}
	if b.Conversions != 2 {
		t.Errorf("raw conversions = %d, want 2", b.Conversions)
	}
}
