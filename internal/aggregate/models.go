package aggregate

import (
	"math"

	"github.com/headline-goat/intent-goat/internal/intent"
)

// Session accumulates one visitor session. Every field only grows.
type Session struct {
	SessionID        string  `json:"sessionId"`
	MaxScrollDepth   float64 `json:"maxScrollDepth"`
	TotalDwellMs     int64   `json:"totalDwellMs"`
	RegimeCount      int     `json:"regimeCount"`
	TotalCTAClicks   int     `json:"totalCtaClicks"`
	TotalFormViews   int     `json:"totalFormViews"`
	TotalFormSubmits int     `json:"totalFormSubmits"`
	KPIReveals       int     `json:"kpiReveals"`
}

// Signals projects the session onto the conversion model inputs.
func (s Session) Signals() intent.Signals {
	return intent.Signals{
		TotalDwellMs:   s.TotalDwellMs,
		MaxScrollDepth: s.MaxScrollDepth,
		RegimeCount:    s.RegimeCount,
		CTAClicks:      s.TotalCTAClicks,
		KPIReveals:     s.KPIReveals,
	}
}

// FormEngaged reports whether the visitor has opened or submitted the lead form.
func (s Session) FormEngaged() bool {
	return s.TotalFormViews > 0 || s.TotalFormSubmits > 0
}

// Engagement score weights and saturation points for content blocks.
const (
	EngagementDwellCapMs   = 6000.0
	EngagementSubmitCap    = 1.0
	EngagementCTACap       = 3.0
	EngagementDwellWeight  = 0.6
	EngagementSubmitWeight = 0.3
	EngagementCTAWeight    = 0.1
)

// BlockStats aggregates engagement with one content block ("regime").
type BlockStats struct {
	RegimeID        string  `json:"regimeId"`
	Enters          int     `json:"enters"`
	Exits           int     `json:"exits"`
	DwellMs         int64   `json:"dwellMs"`
	AvgDwellMs      float64 `json:"avgDwellMs"`
	CTAClicks       int     `json:"ctaClicks"`
	FormViews       int     `json:"formViews"`
	FormSubmits     int     `json:"formSubmits"`
	KPIReveals      int     `json:"kpiReveals"`
	EngagementScore float64 `json:"engagementScore"`
}

// derive fills AvgDwellMs and EngagementScore from the raw counters.
func (b *BlockStats) derive() {
	b.AvgDwellMs = 0
	if b.Exits > 0 {
		b.AvgDwellMs = float64(b.DwellMs) / float64(b.Exits)
	}
	b.EngagementScore = clamp01(
		EngagementDwellWeight*clamp01(b.AvgDwellMs/EngagementDwellCapMs) +
			EngagementSubmitWeight*clamp01(float64(b.FormSubmits)/EngagementSubmitCap) +
			EngagementCTAWeight*clamp01(float64(b.CTAClicks)/EngagementCTACap),
	)
}

// BucketWidthMs is the width of a timeline bucket.
const BucketWidthMs = 60_000

// Bucket is one minute of the activity timeline.
type Bucket struct {
	T           int64   `json:"t"`
	MaxDepth    float64 `json:"maxDepth"`
	CTAClicks   int     `json:"ctaClicks"`
	FormSubmits int     `json:"formSubmits"`
}

// Summary is the dashboard projection of the retained event window.
type Summary struct {
	TotalEvents          int          `json:"totalEvents"`
	UniqueRegimes        int          `json:"uniqueRegimes"`
	MaxScrollDepth       float64      `json:"maxScrollDepth"`
	TotalCTAClicks       int          `json:"totalCtaClicks"`
	TotalFormViews       int          `json:"totalFormViews"`
	TotalFormSubmits     int          `json:"totalFormSubmits"`
	TotalReorders        int          `json:"totalReorders"`
	AvgDwellMsAllRegimes float64      `json:"avgDwellMsAllRegimes"`
	Regimes              []BlockStats `json:"regimes"`
	Timeline             []Bucket     `json:"timeline"`
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
