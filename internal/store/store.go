package store

import "context"

// Store defines the interface for server-side persistence
type Store interface {
	// Local state operations
	GetState(ctx context.Context, key string) ([]byte, error)
	PutState(ctx context.Context, key string, value []byte) error
	DeleteState(ctx context.Context, key string) error

	// Event operations
	RecordEvent(ctx context.Context, e *Event) (bool, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]*Event, error)
	CountEvents(ctx context.Context) (int, error)

	// Snapshot operations
	SaveSnapshot(ctx context.Context, kind string, payload []byte) error
	LatestSnapshot(ctx context.Context, kind string) (*Snapshot, error)

	// Lifecycle
	Close() error
}

// Deduper remembers ingested event ids. MarkSeen reports true the first
// time an id is offered; Unmark forgets an id whose event was not stored.
type Deduper interface {
	MarkSeen(ctx context.Context, eventID string) (bool, error)
	Unmark(ctx context.Context, eventID string) error
}
