package store

import "time"

// Event is an ingested event envelope as stored in the server event log.
type Event struct {
	ID            int64
	EventID       string
	Type          string
	SessionID     string
	RegimeID      string
	TrafficSource string
	ExperimentID  string
	Variant       string
	Timestamp     int64  // client epoch ms
	Payload       []byte // raw JSON envelope
	ReceivedAt    time.Time
}

// EventFilter narrows ListEvents. Zero fields match everything.
type EventFilter struct {
	Type         string
	ExperimentID string
	Since        int64 // client epoch ms, inclusive
	Limit        int
}

// Snapshot is a serialized batch computation.
type Snapshot struct {
	Kind      string
	Payload   []byte
	CreatedAt time.Time
}

const SnapshotPosteriors = "posteriors"
