package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var ErrInvalidEvent = errors.New("invalid event")

// Type discriminates the variants of Event.
type Type string

const (
	TypeRegimeEnter        Type = "regime_enter"
	TypeRegimeExit         Type = "regime_exit"
	TypeScrollDepth        Type = "scroll_depth"
	TypeCTAClick           Type = "cta_click"
	TypeLeadFormView       Type = "lead_form_view"
	TypeLeadFormSubmit     Type = "lead_form_submit"
	TypeKPIReveal          Type = "kpi_reveal"
	TypeExperimentExposure Type = "experiment_exposure"
	TypeNarrativeReorder   Type = "narrative_reorder"
)

// Types lists every known event type in declaration order.
var Types = []Type{
	TypeRegimeEnter, TypeRegimeExit, TypeScrollDepth, TypeCTAClick,
	TypeLeadFormView, TypeLeadFormSubmit, TypeKPIReveal,
	TypeExperimentExposure, TypeNarrativeReorder,
}

func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Variant is an experiment arm.
type Variant string

const (
	VariantA Variant = "A"
	VariantB Variant = "B"
	VariantC Variant = "C"
)

func (v Variant) Valid() bool {
	return v == VariantA || v == VariantB || v == VariantC
}

// Event is a single visitor interaction. Type decides which of the
// variant-specific fields carry meaning; the rest stay zero.
// Events are values and are never mutated after emission.
type Event struct {
	EventID   string `json:"eventId,omitempty"`
	Type      Type   `json:"type"`
	Timestamp int64  `json:"timestamp"`

	SessionID     string  `json:"sessionId,omitempty"`
	ExperimentID  string  `json:"experimentId,omitempty"`
	Variant       Variant `json:"variant,omitempty"`
	TrafficSource string  `json:"trafficSource,omitempty"`
	UTMSource     string  `json:"utmSource,omitempty"`
	UTMMedium     string  `json:"utmMedium,omitempty"`
	UTMCampaign   string  `json:"utmCampaign,omitempty"`
	ReferrerHost  string  `json:"referrerHost,omitempty"`

	RegimeID     string   `json:"regimeId,omitempty"`
	Stage        string   `json:"stage,omitempty"`
	DwellTimeMs  int64    `json:"dwellTimeMs,omitempty"`
	DepthPercent float64  `json:"depthPercent,omitempty"`
	KPIIndex     *int     `json:"kpiIndex,omitempty"`
	Value        *float64 `json:"value,omitempty"`
	Intent       string   `json:"intent,omitempty"`
}

// Source returns the traffic source, defaulting to "unknown".
func (e Event) Source() string {
	if e.TrafficSource == "" {
		return "unknown"
	}
	return e.TrafficSource
}

// Validate checks the fields required by the event's variant.
func (e Event) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if e.Timestamp <= 0 {
		return fmt.Errorf("%w: %s missing timestamp", ErrInvalidEvent, e.Type)
	}
	if e.Variant != "" && !e.Variant.Valid() {
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidEvent, e.Variant)
	}

	switch e.Type {
	case TypeRegimeEnter:
		if e.RegimeID == "" {
			return fmt.Errorf("%w: regime_enter requires regimeId", ErrInvalidEvent)
		}
	case TypeRegimeExit:
		if e.RegimeID == "" {
			return fmt.Errorf("%w: regime_exit requires regimeId", ErrInvalidEvent)
		}
		if e.DwellTimeMs < 0 {
			return fmt.Errorf("%w: negative dwellTimeMs %d", ErrInvalidEvent, e.DwellTimeMs)
		}
	case TypeScrollDepth:
		if math.IsNaN(e.DepthPercent) || e.DepthPercent < 0 || e.DepthPercent > 100 {
			return fmt.Errorf("%w: depthPercent %v out of range", ErrInvalidEvent, e.DepthPercent)
		}
	case TypeKPIReveal:
		if e.Value != nil && (math.IsNaN(*e.Value) || math.IsInf(*e.Value, 0)) {
			return fmt.Errorf("%w: non-finite kpi value", ErrInvalidEvent)
		}
	}
	return nil
}

// Decode parses and validates one JSON event.
func Decode(data []byte) (Event, error) {
	var e Event
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// DecodeAll parses a JSON array of events, rejecting the whole batch on
// the first malformed entry.
func DecodeAll(data []byte) ([]Event, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	out := make([]Event, 0, len(raws))
	for i, raw := range raws {
		e, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}
