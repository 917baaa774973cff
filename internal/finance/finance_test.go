package finance_test

import (
	"errors"
	"math"
	"testing"

	"github.com/headline-goat/intent-goat/internal/finance"
)

func TestPresentValue_ZeroRateIsSum(t *testing.T) {
	flows := []float64{-1000, 500, 500, 500}
	if got := finance.PresentValue(0, flows); got != 500 {
		t.Errorf("PresentValue(0) = %v, want 500", got)
	}
}

func TestPresentValue_Discounts(t *testing.T) {
	if got := finance.PresentValue(0.1, []float64{-1000, 1100}); math.Abs(got) > 1e-9 {
		t.Errorf("PresentValue(0.1) = %v, want 0", got)
	}
}

func TestPresentValue_Empty(t *testing.T) {
	for _, r := range []float64{-0.5, 0, 0.1, 3} {
		if got := finance.PresentValue(r, nil); got != 0 {
			t.Errorf("PresentValue(%v, []) = %v, want 0", r, got)
		}
	}
}

func TestPresentValue_NegativeRate(t *testing.T) {
	if got := finance.PresentValue(-0.05, []float64{-1000, 500, 600}); got <= 100 {
		t.Errorf("expected > 100 at a negative rate, got %v", got)
	}
}

func TestInternalRate_Simple(t *testing.T) {
	irr, ok := finance.InternalRate([]float64{-1000, 1100}, finance.DefaultGuess)
	if !ok {
		t.Fatal("expected a root")
	}
	if math.Abs(irr-0.1) > 1e-3 {
		t.Errorf("irr = %v, want 0.1", irr)
	}
}

func TestInternalRate_MultiPeriod(t *testing.T) {
	irr, ok := finance.InternalRate([]float64{-1000, 400, 400, 400}, finance.DefaultGuess)
	if !ok {
		t.Fatal("expected a root")
	}
	if irr <= 0 || irr >= 0.15 {
		t.Errorf("irr = %v, want in (0, 0.15)", irr)
	}
	if npv := finance.PresentValue(irr, []float64{-1000, 400, 400, 400}); math.Abs(npv) > 1e-3 {
		t.Errorf("npv at irr = %v", npv)
	}
}

func TestInternalRate_NoRoot(t *testing.T) {
	if irr, ok := finance.InternalRate([]float64{-1000, -500, -200}, finance.DefaultGuess); ok {
		t.Errorf("expected no root, got %v", irr)
	}
}

func TestInternalRate_Empty(t *testing.T) {
	if _, ok := finance.InternalRate(nil, finance.DefaultGuess); ok {
		t.Error("expected no root for an empty series")
	}
}

func TestParseCashFlows(t *testing.T) {
	flows, err := finance.ParseCashFlows([]string{"-1000,400", " 400 ", "400"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flows) != 4 || flows[0] != -1000 || flows[3] != 400 {
		t.Errorf("unexpected flows %v", flows)
	}

	for _, bad := range [][]string{{"abc"}, {"1", "NaN"}, {"Inf"}} {
		if _, err := finance.ParseCashFlows(bad); !errors.Is(err, finance.ErrInvalidCashFlow) {
			t.Errorf("%v: expected ErrInvalidCashFlow, got %v", bad, err)
		}
	}
}

func TestValidateRate(t *testing.T) {
	if err := finance.ValidateRate(-1); !errors.Is(err, finance.ErrInvalidCashFlow) {
		t.Errorf("expected rejection of -1, got %v", err)
	}
	if err := finance.ValidateRate(-0.5); err != nil {
		t.Errorf("negative rates are allowed, got %v", err)
	}
}
