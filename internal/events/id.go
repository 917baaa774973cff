package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// idLength is the number of hex characters kept from the digest.
const idLength = 32

// ID derives the deduplication id of an event: the truncated SHA-256 of its
// RFC 8785 canonical JSON form, computed without the eventId field itself.
// Retried deliveries of the same payload always produce the same id.
func ID(e Event) (string, error) {
	e.EventID = ""
	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}
	return HashPayload(raw)
}

// HashPayload canonicalizes an arbitrary JSON document and hashes it.
func HashPayload(raw []byte) (string, error) {
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:idLength], nil
}

// WithID returns a copy of e carrying its derived id.
func WithID(e Event) (Event, error) {
	id, err := ID(e)
	if err != nil {
		return e, err
	}
	e.EventID = id
	return e, nil
}
