package events

import (
	"encoding/json"
	"fmt"
)

// Operational envelope types. They travel through ingestion alongside the
// interaction events but never reach the in-process bus.
const (
	TypeHighIntent        Type = "high_intent"
	TypeSalesNotification Type = "sales_notification"
)

// Envelope is the loosely typed record accepted by ingestion and the batch
// endpoints. Only eventId, type and timestamp are mandatory; an envelope
// whose type is an interaction type must also be a valid Event.
type Envelope struct {
	Event
	NotificationType string `json:"notificationType,omitempty"`
}

// IsHighIntent reports whether the envelope records a high-intent session.
func (e Envelope) IsHighIntent() bool {
	return e.Type == TypeHighIntent ||
		(e.Type == TypeSalesNotification && e.NotificationType == string(TypeHighIntent))
}

// Validate checks an envelope that must carry its own id.
func (e Envelope) Validate() error {
	if e.EventID == "" || e.Type == "" || e.Timestamp <= 0 {
		return fmt.Errorf("%w: eventId, type and timestamp are required", ErrInvalidEvent)
	}
	return e.validateShape()
}

func (e Envelope) validateShape() error {
	if e.Type.Valid() {
		return e.Event.Validate()
	}
	return nil
}

// DecodeEnvelope parses one ingestion payload.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// DecodeBatch parses a batch of envelopes that need not carry ids, as sent
// to the recompute endpoints. Entries that are not JSON objects or whose
// interaction fields are malformed are skipped and counted.
func DecodeBatch(raws []json.RawMessage) (out []Envelope, skipped int) {
	out = make([]Envelope, 0, len(raws))
	for _, raw := range raws {
		var e Envelope
		if err := json.Unmarshal(raw, &e); err != nil {
			skipped++
			continue
		}
		if e.Type == "" || e.validateShape() != nil {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, skipped
}
