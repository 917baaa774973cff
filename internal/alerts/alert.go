// Package alerts raises deduplicated sales alerts from session activity
// and keeps them in a capped, acknowledgeable store.
package alerts

import "fmt"

// Type names the trigger that raised an alert.
type Type string

const (
	TypeHighIntent Type = "high_intent"
	TypeFormSubmit Type = "form_submit"
)

const (
	// StoreCap is the number of alerts retained, newest first.
	StoreCap = 200
	// ActiveLimit is the size of the active view.
	ActiveLimit = 5
	// HighIntentThreshold is the conversion probability that raises a
	// high-intent alert.
	HighIntentThreshold = 0.75
)

// Alert is one sales alert. Acknowledged is its only mutable field.
type Alert struct {
	ID             string   `json:"id"`
	Type           Type     `json:"type"`
	SessionID      string   `json:"sessionId"`
	Probability    *float64 `json:"probability,omitempty"`
	MaxScrollDepth *float64 `json:"maxScrollDepth,omitempty"`
	TotalDwellMs   *int64   `json:"totalDwellMs,omitempty"`
	CreatedAt      int64    `json:"createdAt"`
	Acknowledged   bool     `json:"acknowledged,omitempty"`
}

// ID is the dedup key of an alert.
func ID(sessionID string, t Type) string {
	return fmt.Sprintf("%s_%s", sessionID, t)
}
