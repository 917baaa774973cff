package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/headline-goat/intent-goat/internal/logger"
)

// LocalState stores JSON documents by key. Missing or corrupt documents
// load as absent so callers fall back to their defaults.
type LocalState struct {
	store Store
	log   *logger.Logger
}

func NewLocalState(s Store, log *logger.Logger) *LocalState {
	if log == nil {
		log = logger.Nop()
	}
	return &LocalState{store: s, log: log}
}

// Load decodes the document under key into dst and reports whether one
// was found. An undecodable document is logged and reported as absent.
func (l *LocalState) Load(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := l.store.GetState(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		l.log.Warn("discarding corrupt local state", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (l *LocalState) Save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return l.store.PutState(ctx, key, raw)
}
