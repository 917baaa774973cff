package aggregate

import "github.com/headline-goat/intent-goat/internal/events"

// DefaultLogCap is how many raw events the session log retains.
const DefaultLogCap = 5000

// Log is an append-only event log that keeps the most recent cap entries.
type Log struct {
	cap    int
	events []events.Event
}

func NewLog(cap int) *Log {
	if cap <= 0 {
		cap = DefaultLogCap
	}
	return &Log{cap: cap}
}

// Append adds e and reports whether an older entry was evicted.
func (l *Log) Append(e events.Event) (evicted bool) {
	l.events = append(l.events, e)
	if len(l.events) <= l.cap {
		return false
	}
	// append reallocates once every cap evictions, copying only retained entries.
	l.events[0] = events.Event{}
	l.events = l.events[1:]
	return true
}

// Reset replaces the contents, keeping only the newest cap entries.
func (l *Log) Reset(evs []events.Event) {
	if len(evs) > l.cap {
		evs = evs[len(evs)-l.cap:]
	}
	l.events = append([]events.Event(nil), evs...)
}

// Events returns a copy of the retained events, oldest first.
func (l *Log) Events() []events.Event {
	return append([]events.Event(nil), l.events...)
}

func (l *Log) Len() int { return len(l.events) }

func (l *Log) Cap() int { return l.cap }
