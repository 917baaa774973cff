// Package report derives the reporting views of the server event log.
package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/headline-goat/intent-goat/internal/aggregate"
	"github.com/headline-goat/intent-goat/internal/events"
	"github.com/headline-goat/intent-goat/internal/optimizer"
	"github.com/headline-goat/intent-goat/internal/stats"
	"github.com/headline-goat/intent-goat/internal/store"
)

// Envelopes decodes the stored payloads matching filter, in ingestion
// order. Rows whose payload no longer decodes are skipped and counted.
func Envelopes(ctx context.Context, s store.Store, filter store.EventFilter) ([]events.Envelope, int, error) {
	rows, err := s.ListEvents(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	out := make([]events.Envelope, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		var env events.Envelope
		if err := json.Unmarshal(row.Payload, &env); err != nil {
			skipped++
			continue
		}
		out = append(out, env)
	}
	return out, skipped, nil
}

// Interactions keeps the envelopes that are interaction events.
func Interactions(envs []events.Envelope) []events.Event {
	out := make([]events.Event, 0, len(envs))
	for _, env := range envs {
		if env.Type.Valid() {
			out = append(out, env.Event)
		}
	}
	return out
}

// Dashboard is the executive view of the whole log: the engagement
// summary plus each session's scroll trace.
type Dashboard struct {
	aggregate.Summary
	SessionPaths []aggregate.SessionPath `json:"sessionPaths"`
}

func Overview(ctx context.Context, s store.Store) (Dashboard, error) {
	envs, _, err := Envelopes(ctx, s, store.EventFilter{})
	if err != nil {
		return Dashboard{}, err
	}
	evs := Interactions(envs)
	return Dashboard{
		Summary:      aggregate.Summarize(evs),
		SessionPaths: aggregate.SessionPaths(evs),
	}, nil
}

// Variants is one experiment's arms with their significance against A.
type Variants struct {
	ExperimentID string                     `json:"experimentId"`
	Arms         []aggregate.VariantSummary `json:"arms"`
	Comparisons  []stats.VariantComparison  `json:"comparisons"`
}

// CompareVariants measures submit rate per exposure of every arm against
// the control. The control is A when present, else the first arm.
func CompareVariants(ctx context.Context, s store.Store, experimentID string) (Variants, error) {
	envs, _, err := Envelopes(ctx, s, store.EventFilter{ExperimentID: experimentID})
	if err != nil {
		return Variants{}, err
	}
	arms := aggregate.VariantSummaries(Interactions(envs), experimentID)

	counts := make([]stats.VariantCounts, len(arms))
	for i, a := range arms {
		counts[i] = stats.VariantCounts{Variant: a.Variant, Exposures: a.Exposures, Conversions: a.Submits}
	}
	return Variants{
		ExperimentID: experimentID,
		Arms:         arms,
		Comparisons:  stats.CompareVariants(counts),
	}, nil
}

// Posteriors composes the hierarchical posteriors over the whole log.
func Posteriors(ctx context.Context, s store.Store, kappa float64) (map[string]stats.BlockPosteriors, error) {
	envs, _, err := Envelopes(ctx, s, store.EventFilter{})
	if err != nil {
		return nil, err
	}
	return optimizer.Posteriors(envs, kappa)
}

// Snapshot computes Posteriors and stores them as the latest snapshot.
// It returns the number of blocks in the snapshot.
func Snapshot(ctx context.Context, s store.Store, kappa float64) (int, error) {
	posteriors, err := Posteriors(ctx, s, kappa)
	if err != nil {
		return 0, fmt.Errorf("failed to compute posteriors: %w", err)
	}
	payload, err := json.Marshal(posteriors)
	if err != nil {
		return 0, fmt.Errorf("failed to encode posteriors: %w", err)
	}
	if err := s.SaveSnapshot(ctx, store.SnapshotPosteriors, payload); err != nil {
		return 0, err
	}
	return len(posteriors), nil
}
