package alerts_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/headline-goat/intent-goat/internal/alerts"
)

// memBackend round-trips through JSON like the SQLite local state does.
type memBackend struct {
	docs    map[string][]byte
	failing bool
}

func newMemBackend() *memBackend { return &memBackend{docs: make(map[string][]byte)} }

func (m *memBackend) Load(_ context.Context, key string, dst any) (bool, error) {
	raw, ok := m.docs[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *memBackend) Save(_ context.Context, key string, v any) error {
	if m.failing {
		return errors.New("disk full")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.docs[key] = raw
	return nil
}

func alert(i int) alerts.Alert {
	return alerts.Alert{
		ID:        alerts.ID(fmt.Sprintf("s%d", i), alerts.TypeFormSubmit),
		Type:      alerts.TypeFormSubmit,
		SessionID: fmt.Sprintf("s%d", i),
		CreatedAt: int64(i),
	}
}

func TestStore_UpsertExistingIsNoop(t *testing.T) {
	ctx := context.Background()
	s := alerts.NewStore(ctx, nil, nil)

	if !s.Upsert(ctx, alert(1)) {
		t.Fatal("first upsert should store")
	}
	dup := alert(1)
	dup.CreatedAt = 99
	if s.Upsert(ctx, dup) {
		t.Error("second upsert with the same id should be a no-op")
	}
	all := s.All()
	if len(all) != 1 || all[0].CreatedAt != 1 {
		t.Errorf("unexpected alerts %+v", all)
	}
}

func TestStore_CapNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := alerts.NewStore(ctx, nil, nil)
	for i := 0; i < alerts.StoreCap+10; i++ {
		s.Upsert(ctx, alert(i))
	}

	all := s.All()
	if len(all) != alerts.StoreCap {
		t.Fatalf("len = %d, want %d", len(all), alerts.StoreCap)
	}
	if all[0].CreatedAt != int64(alerts.StoreCap+9) {
		t.Errorf("newest alert should be first, got %d", all[0].CreatedAt)
	}
	if all[len(all)-1].CreatedAt != 10 {
		t.Errorf("oldest retained = %d, want 10", all[len(all)-1].CreatedAt)
	}
}

func TestStore_ActiveExcludesAcknowledged(t *testing.T) {
	ctx := context.Background()
	s := alerts.NewStore(ctx, nil, nil)
	for i := 0; i < 8; i++ {
		s.Upsert(ctx, alert(i))
	}

	if !s.Acknowledge(ctx, alert(7).ID) {
		t.Fatal("acknowledge existing alert")
	}
	if s.Acknowledge(ctx, "missing") {
		t.Error("acknowledge of unknown id should report false")
	}

	active := s.Active()
	if len(active) != alerts.ActiveLimit {
		t.Fatalf("active = %d, want %d", len(active), alerts.ActiveLimit)
	}
	if active[0].ID != alert(6).ID {
		t.Errorf("first active = %s, want %s", active[0].ID, alert(6).ID)
	}
	for _, a := range active {
		if a.Acknowledged {
			t.Errorf("acknowledged alert %s in active view", a.ID)
		}
	}
	if got, _ := s.Get(alert(7).ID); !got.Acknowledged {
		t.Error("acknowledged alert must be retained")
	}
}

func TestStore_Persistence(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()

	s := alerts.NewStore(ctx, backend, nil)
	s.Upsert(ctx, alert(1))
	s.Upsert(ctx, alert(2))
	s.Acknowledge(ctx, alert(1).ID)

	reloaded := alerts.NewStore(ctx, backend, nil)
	all := reloaded.All()
	if len(all) != 2 || all[0].ID != alert(2).ID || !all[1].Acknowledged {
		t.Errorf("unexpected reloaded alerts %+v", all)
	}
}

func TestStore_CorruptStateIsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	backend.docs[alerts.StateKey] = []byte("{not json")

	s := alerts.NewStore(ctx, backend, nil)
	if len(s.All()) != 0 {
		t.Error("corrupt state should load as empty")
	}
}

func TestStore_SaveFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	backend.failing = true

	s := alerts.NewStore(ctx, backend, nil)
	if !s.Upsert(ctx, alert(1)) || len(s.All()) != 1 {
		t.Error("write failure must not lose the in-memory alert")
	}
}
