package experiment

import (
	"github.com/headline-goat/intent-goat/internal/events"
)

// OverrideKey is the local state key holding the operator override.
const OverrideKey = "exp_home_narrative_v1_override"

// Config describes one experiment.
type Config struct {
	ID        string  `json:"id" yaml:"id"`
	IsEnabled bool    `json:"isEnabled" yaml:"enabled"`
	Traffic   Traffic `json:"traffic" yaml:"traffic"`
	// RegimeOrder is the initial block order per arm. An empty order
	// leaves the page's own order in place.
	RegimeOrder map[events.Variant][]string `json:"regimeOrder,omitempty" yaml:"regime_order"`
}

// Home is the narrative experiment of the landing page.
var Home = Config{
	ID:        "home_narrative_v1",
	IsEnabled: true,
	Traffic: Traffic{
		events.VariantA: 0.5,
		events.VariantB: 0.5,
		events.VariantC: 0,
	},
	RegimeOrder: map[events.Variant][]string{
		events.VariantA: {
			"structural-fabrication",
			"multi-project-optimization",
			"machine-calibration",
			"fleet-grip",
			"ar-execution",
			"ai-governance",
		},
		events.VariantB: {
			"ai-governance",
			"structural-fabrication",
			"machine-calibration",
			"multi-project-optimization",
			"ar-execution",
			"fleet-grip",
		},
	},
}

// Override is the persisted operator switchboard. Unset fields keep the
// configured value and traffic merges per arm.
type Override struct {
	IsEnabled *bool   `json:"isEnabled,omitempty"`
	Traffic   Traffic `json:"traffic,omitempty"`
}

// Merge applies an override on top of c.
func (c Config) Merge(o Override) Config {
	out := c
	if o.IsEnabled != nil {
		out.IsEnabled = *o.IsEnabled
	}
	if len(o.Traffic) > 0 {
		out.Traffic = make(Traffic, len(c.Traffic)+len(o.Traffic))
		for v, share := range c.Traffic {
			out.Traffic[v] = share
		}
		for v, share := range o.Traffic {
			out.Traffic[v] = share
		}
	}
	return out
}

// VariantFor assigns a session. A disabled experiment serves A to everyone.
func (c Config) VariantFor(sessionID string) events.Variant {
	if !c.IsEnabled {
		return events.VariantA
	}
	return Assign(sessionID, c.Traffic)
}

// OrderFor returns the initial block order of an arm, or fallback when the
// arm has none.
func (c Config) OrderFor(v events.Variant, fallback []string) []string {
	if order := c.RegimeOrder[v]; len(order) > 0 {
		return append([]string(nil), order...)
	}
	return append([]string(nil), fallback...)
}
