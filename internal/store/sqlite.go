package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS local_state (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id TEXT NOT NULL,
    type TEXT NOT NULL,
    session_id TEXT,
    regime_id TEXT,
    traffic_source TEXT,
    experiment_id TEXT,
    variant TEXT,
    timestamp INTEGER NOT NULL,
    payload BLOB NOT NULL,
    received_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_events_event_id ON events(event_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
CREATE INDEX IF NOT EXISTS idx_events_experiment ON events(experiment_id, variant);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);

CREATE TABLE IF NOT EXISTS seen_events (
    event_id TEXT PRIMARY KEY,
    seen_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    payload BLOB NOT NULL,
    created_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_snapshots_kind ON snapshots(kind, id);
`

// maxSnapshotsPerKind bounds the snapshot history.
const maxSnapshotsPerKind = 24

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetState(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) PutState(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO local_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to put state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM local_state WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// RecordEvent appends an envelope to the event log. It reports false
// without error when the event id is already stored.
func (s *SQLiteStore) RecordEvent(ctx context.Context, e *Event) (bool, error) {
	now := time.Now().Unix()

	// Use INSERT OR IGNORE for deduplication via unique index
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events
		 (event_id, type, session_id, regime_id, traffic_source, experiment_id, variant, timestamp, payload, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.Type, nullable(e.SessionID), nullable(e.RegimeID), nullable(e.TrafficSource),
		nullable(e.ExperimentID), nullable(e.Variant), e.Timestamp, e.Payload, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	e.ReceivedAt = time.Unix(now, 0)
	return true, nil
}

// ListEvents returns stored envelopes in ingestion order.
func (s *SQLiteStore) ListEvents(ctx context.Context, filter EventFilter) ([]*Event, error) {
	var where []string
	var args []any
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.ExperimentID != "" {
		where = append(where, "experiment_id = ?")
		args = append(args, filter.ExperimentID)
	}
	if filter.Since > 0 {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.Since)
	}

	query := `SELECT id, event_id, type, session_id, regime_id, traffic_source, experiment_id, variant, timestamp, payload, received_at
		 FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var sessionID, regimeID, source, experimentID, variant sql.NullString
		var receivedAt int64
		if err := rows.Scan(&e.ID, &e.EventID, &e.Type, &sessionID, &regimeID, &source, &experimentID, &variant, &e.Timestamp, &e.Payload, &receivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.SessionID = sessionID.String
		e.RegimeID = regimeID.String
		e.TrafficSource = source.String
		e.ExperimentID = experimentID.String
		e.Variant = variant.String
		e.ReceivedAt = time.Unix(receivedAt, 0)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

func (s *SQLiteStore) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// MarkSeen implements Deduper on the seen_events table.
func (s *SQLiteStore) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_events (event_id, seen_at) VALUES (?, ?)`,
		eventID, time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark event seen: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

func (s *SQLiteStore) Unmark(ctx context.Context, eventID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM seen_events WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("failed to unmark event: %w", err)
	}
	return nil
}

// SaveSnapshot stores a payload and prunes the kind's history.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, kind string, payload []byte) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (kind, payload, created_at) VALUES (?, ?, ?)`,
		kind, payload, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE kind = ? AND id NOT IN
		 (SELECT id FROM snapshots WHERE kind = ? ORDER BY id DESC LIMIT ?)`,
		kind, kind, maxSnapshotsPerKind,
	); err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, kind string) (*Snapshot, error) {
	var snap Snapshot
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, payload, created_at FROM snapshots WHERE kind = ? ORDER BY id DESC LIMIT 1`, kind,
	).Scan(&snap.Kind, &snap.Payload, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	snap.CreatedAt = time.Unix(createdAt, 0)
	return &snap, nil
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func nullable(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
