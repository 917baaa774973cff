package intent

import (
	"math"
)

// State is the discrete intent tier of a session.
type State string

const (
	StateLow      State = "low"
	StateEmerging State = "emerging"
	StateHigh     State = "high"
)

// Tier thresholds; both are exclusive.
const (
	HighThreshold     = 0.7
	EmergingThreshold = 0.4
)

// Classify maps a conversion probability to an intent tier.
func Classify(probability float64) State {
	switch {
	case probability > HighThreshold:
		return StateHigh
	case probability > EmergingThreshold:
		return StateEmerging
	default:
		return StateLow
	}
}

// Signals are the raw engagement counters a score is computed from.
type Signals struct {
	TotalDwellMs   int64
	MaxScrollDepth float64
	RegimeCount    int
	CTAClicks      int
	KPIReveals     int
}

// Caps are the saturation points of each signal.
type Caps struct {
	DwellMs     float64
	ScrollDepth float64
	Regimes     float64
	CTAClicks   float64
	KPIReveals  float64
}

// Weights are the logistic coefficients of each normalized signal.
type Weights struct {
	Dwell  float64
	Depth  float64
	Regime float64
	CTA    float64
	KPI    float64
}

// Model is a hand-tuned logistic conversion model.
type Model struct {
	Caps    Caps
	Weights Weights
	Bias    float64
}

// DefaultModel holds the product-tuned constants.
var DefaultModel = Model{
	Caps: Caps{
		DwellMs:     8000,
		ScrollDepth: 100,
		Regimes:     3,
		CTAClicks:   2,
		KPIReveals:  5,
	},
	Weights: Weights{
		Dwell:  2.4,
		Depth:  1.8,
		Regime: 1.2,
		CTA:    2.6,
		KPI:    1.0,
	},
	Bias: 2.5,
}

// Components are the normalized signals, each in [0, 1].
type Components struct {
	DwellNorm  float64 `json:"dwellNorm"`
	DepthNorm  float64 `json:"depthNorm"`
	RegimeNorm float64 `json:"regimeNorm"`
	CTANorm    float64 `json:"ctaNorm"`
	KPINorm    float64 `json:"kpiNorm"`
}

// Score is the output of the conversion model.
type Score struct {
	Probability  float64    `json:"probability"`
	ScorePercent int        `json:"scorePercent"`
	Components   Components `json:"components"`
}

// Score evaluates the model for one session.
func (m Model) Score(s Signals) Score {
	c := Components{
		DwellNorm:  saturate(float64(s.TotalDwellMs), m.Caps.DwellMs),
		DepthNorm:  saturate(s.MaxScrollDepth, m.Caps.ScrollDepth),
		RegimeNorm: saturate(float64(s.RegimeCount), m.Caps.Regimes),
		CTANorm:    saturate(float64(s.CTAClicks), m.Caps.CTAClicks),
		KPINorm:    saturate(float64(s.KPIReveals), m.Caps.KPIReveals),
	}

	w := m.Weights
	z := w.Dwell*c.DwellNorm + w.Depth*c.DepthNorm + w.Regime*c.RegimeNorm +
		w.CTA*c.CTANorm + w.KPI*c.KPINorm - m.Bias
	p := sigmoid(z)

	return Score{
		Probability:  p,
		ScorePercent: int(math.Round(p * 100)),
		Components:   c,
	}
}

// ComputeScore evaluates DefaultModel.
func ComputeScore(s Signals) Score {
	return DefaultModel.Score(s)
}

func saturate(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return math.Max(0, math.Min(v/limit, 1))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
