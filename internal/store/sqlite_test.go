package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-goat/intent-goat/internal/store"
	"github.com/headline-goat/intent-goat/internal/testutil"
)

func envelope(id, typ string, ts int64) *store.Event {
	return &store.Event{
		EventID:   id,
		Type:      typ,
		Timestamp: ts,
		Payload:   []byte(fmt.Sprintf(`{"eventId":%q,"type":%q,"timestamp":%d}`, id, typ, ts)),
	}
}

func TestState_RoundTrip(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	_, err := s.GetState(ctx, "k")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.PutState(ctx, "k", []byte(`[1]`)))
	require.NoError(t, s.PutState(ctx, "k", []byte(`[1,2]`)))

	got, err := s.GetState(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(got))

	require.NoError(t, s.DeleteState(ctx, "k"))
	assert.ErrorIs(t, s.DeleteState(ctx, "k"), store.ErrNotFound)
}

func TestRecordEvent_Dedup(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	e := envelope("abc", "cta_click", 10)
	e.SessionID = "s1"
	inserted, err := s.RecordEvent(ctx, e)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, e.ID)

	inserted, err = s.RecordEvent(ctx, envelope("abc", "cta_click", 10))
	require.NoError(t, err)
	assert.False(t, inserted, "duplicate event id must be ignored")

	n, err := s.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListEvents_Filters(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	for i, typ := range []string{"regime_enter", "cta_click", "regime_enter", "high_intent"} {
		e := envelope(fmt.Sprintf("e%d", i), typ, int64(100+i))
		if i%2 == 0 {
			e.ExperimentID, e.Variant = "home_narrative_v1", "B"
		}
		_, err := s.RecordEvent(ctx, e)
		require.NoError(t, err)
	}

	all, err := s.ListEvents(ctx, store.EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "e0", all[0].EventID, "events are returned in ingestion order")
	assert.Contains(t, string(all[3].Payload), `"high_intent"`)

	enters, err := s.ListEvents(ctx, store.EventFilter{Type: "regime_enter"})
	require.NoError(t, err)
	assert.Len(t, enters, 2)
	assert.Equal(t, "B", enters[0].Variant)

	recent, err := s.ListEvents(ctx, store.EventFilter{Since: 102, Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "e2", recent[0].EventID)

	exp, err := s.ListEvents(ctx, store.EventFilter{ExperimentID: "home_narrative_v1"})
	require.NoError(t, err)
	assert.Len(t, exp, 2)
}

func TestMarkSeen(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	first, err := s.MarkSeen(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.MarkSeen(ctx, "id-1")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, s.Unmark(ctx, "id-1"))
	retry, err := s.MarkSeen(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, retry, "an unmarked id is fresh again")

	require.NoError(t, s.Unmark(ctx, "never-seen"))
}

func TestSnapshots(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	_, err := s.LatestSnapshot(ctx, store.SnapshotPosteriors)
	assert.ErrorIs(t, err, store.ErrNotFound)

	for i := 0; i < 30; i++ {
		require.NoError(t, s.SaveSnapshot(ctx, store.SnapshotPosteriors, []byte(fmt.Sprintf(`{"n":%d}`, i))))
	}

	snap, err := s.LatestSnapshot(ctx, store.SnapshotPosteriors)
	require.NoError(t, err)
	assert.Equal(t, `{"n":29}`, string(snap.Payload))

	var kept int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&kept))
	assert.Equal(t, 24, kept)
}
