// Package experiment assigns sessions to experiment arms.
package experiment

import (
	"unicode/utf16"

	"github.com/headline-goat/intent-goat/internal/events"
)

const (
	fnvOffset32 = 2166136261
	fnvPrime32  = 16777619

	unitBuckets = 1_000_000
)

// Traffic is the share of sessions routed to each arm.
type Traffic map[events.Variant]float64

// HashUnit maps a string to [0, 1) with 32-bit FNV-1a over its UTF-16
// code units, so ids hash identically to browser-side assignment.
func HashUnit(s string) float64 {
	h := uint32(fnvOffset32)
	for _, u := range utf16.Encode([]rune(s)) {
		h ^= uint32(u)
		h *= fnvPrime32
	}
	return float64(h%unitBuckets) / unitBuckets
}

// Assign picks the arm of a session: A below the A share, B below the
// cumulative A+B share, C otherwise.
func Assign(sessionID string, traffic Traffic) events.Variant {
	r := HashUnit(sessionID)
	a := traffic[events.VariantA]
	b := traffic[events.VariantB]
	switch {
	case r < a:
		return events.VariantA
	case r < a+b:
		return events.VariantB
	default:
		return events.VariantC
	}
}
