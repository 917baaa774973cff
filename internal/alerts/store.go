package alerts

import (
	"context"
	"sync"

	"github.com/headline-goat/intent-goat/internal/logger"
)

// StateKey is the local state key the alert list is persisted under.
const StateKey = "exec_sales_notifications_v1"

// Backend persists JSON documents by key. Load reports false for a
// missing or unreadable document.
type Backend interface {
	Load(ctx context.Context, key string, dst any) (bool, error)
	Save(ctx context.Context, key string, v any) error
}

// Store holds alerts newest first and writes through to its backend.
// Persistence failures are logged; the in-memory list stays authoritative.
type Store struct {
	mu      sync.Mutex
	alerts  []Alert
	backend Backend
	log     *logger.Logger
}

// NewStore loads the persisted alerts. backend may be nil for a
// memory-only store.
func NewStore(ctx context.Context, backend Backend, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	s := &Store{backend: backend, log: log}
	if backend == nil {
		return s
	}

	var loaded []Alert
	ok, err := backend.Load(ctx, StateKey, &loaded)
	if err != nil {
		log.Warn("failed to load alerts", "error", err)
	}
	if ok && err == nil {
		if len(loaded) > StoreCap {
			loaded = loaded[:StoreCap]
		}
		s.alerts = loaded
	}
	return s
}

// Upsert stores a new alert at the front. When an alert with the same id
// already exists it is left untouched and Upsert reports false.
func (s *Store) Upsert(ctx context.Context, a Alert) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.alerts {
		if existing.ID == a.ID {
			return false
		}
	}

	next := make([]Alert, 0, len(s.alerts)+1)
	next = append(next, a)
	next = append(next, s.alerts...)
	if len(next) > StoreCap {
		next = next[:StoreCap]
	}
	s.alerts = next
	s.persist(ctx)
	return true
}

// Acknowledge marks an alert as handled. It reports whether the id exists.
func (s *Store) Acknowledge(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			if !s.alerts[i].Acknowledged {
				s.alerts[i].Acknowledged = true
				s.persist(ctx)
			}
			return true
		}
	}
	return false
}

// Active returns the most recent unacknowledged alerts.
func (s *Store) Active() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Alert, 0, ActiveLimit)
	for _, a := range s.alerts {
		if a.Acknowledged {
			continue
		}
		out = append(out, a)
		if len(out) == ActiveLimit {
			break
		}
	}
	return out
}

// All returns every retained alert, newest first.
func (s *Store) All() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Alert(nil), s.alerts...)
}

// Get returns one alert by id.
func (s *Store) Get(id string) (Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID == id {
			return a, true
		}
	}
	return Alert{}, false
}

func (s *Store) persist(ctx context.Context) {
	if s.backend == nil {
		return
	}
	if err := s.backend.Save(ctx, StateKey, s.alerts); err != nil {
		s.log.Warn("failed to persist alerts", "error", err)
	}
}
