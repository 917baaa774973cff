package stats_test

import (
	"math"
	"testing"

	"github.com/headline-goat/intent-goat/internal/stats"
)

func TestTally_Compose(t *testing.T) {
	tally := stats.NewTally()
	for i := 0; i < 30; i++ {
		tally.AddExposure("fleet-grip", "direct")
	}
	for i := 0; i < 10; i++ {
		tally.AddExposure("fleet-grip", "linkedin:cpc")
	}
	tally.AddSubmit("fleet-grip", "linkedin:cpc")
	tally.AddSubmit("fleet-grip", "linkedin:cpc")

	out, err := tally.Compose(stats.DefaultKappa)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, ok := out["fleet-grip"]
	if !ok {
		t.Fatal("missing block")
	}
	if b.Exposures != 40 || b.Submits != 2 {
		t.Errorf("totals = (%d, %d), want (40, 2)", b.Exposures, b.Submits)
	}

	wantGlobal := 3.0 / 50.0
	if math.Abs(b.Global.Mean-wantGlobal) > 1e-12 {
		t.Errorf("global mean = %v, want %v", b.Global.Mean, wantGlobal)
	}

	src := b.Sources["linkedin:cpc"]
	wantSrc := (wantGlobal*30 + 2) / (30 + 10)
	if math.Abs(src.Mean-wantSrc) > 1e-12 {
		t.Errorf("source mean = %v, want %v", src.Mean, wantSrc)
	}
	if src.Exposures != 10 || src.Submits != 2 {
		t.Errorf("source counts = (%d, %d)", src.Exposures, src.Submits)
	}
}

func TestTally_ComposeBoundsEvictedExposures(t *testing.T) {
	tally := stats.NewTally()
	tally.AddSubmit("hero", "direct")

	out, err := tally.Compose(stats.DefaultKappa)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["hero"].Submits != 0 || out["hero"].Global.Mean != 0.1 {
		t.Errorf("expected submit bounded away, got %+v", out["hero"])
	}
}

func TestTally_Totals(t *testing.T) {
	tally := stats.NewTally()
	tally.AddExposure("a", "x")
	tally.AddExposure("a", "y")
	tally.Touch("b", "x")

	if got := tally.Totals("a"); got.Exposures != 2 {
		t.Errorf("totals = %+v", got)
	}
	if got := tally.Cell("b", "x"); got != (stats.Cell{}) {
		t.Errorf("touched cell should be zero, got %+v", got)
	}
	if got := tally.Blocks(); len(got) != 2 || got[0] != "a" {
		t.Errorf("blocks = %v", got)
	}
}
