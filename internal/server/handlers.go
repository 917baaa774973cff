package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/headline-goat/intent-goat/internal/events"
	"github.com/headline-goat/intent-goat/internal/finance"
	"github.com/headline-goat/intent-goat/internal/notify"
	"github.com/headline-goat/intent-goat/internal/optimizer"
	"github.com/headline-goat/intent-goat/internal/stats"
	"github.com/headline-goat/intent-goat/internal/store"
)

const maxBodyBytes = 1 << 20

type HealthResponse struct {
	Status        string `json:"status"`
	EventsCount   int    `json:"events_count"`
	DBSizeBytes   int64  `json:"db_size_bytes"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	count, err := s.store.CountEvents(r.Context())
	if err != nil {
		s.log.Error("health check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	var dbSize int64
	row := s.store.DB().QueryRowContext(r.Context(), "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
	if err := row.Scan(&dbSize); err != nil {
		s.log.Debug("failed to read database size", "error", err)
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		EventsCount:   count,
		DBSizeBytes:   dbSize,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	})
}

type statusResponse struct {
	Status string `json:"status"`
}

// handleIngest accepts one event envelope. Replays of a known event id
// answer "duplicate" without touching the event log.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	env, err := events.DecodeEnvelope(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	ctx := r.Context()
	fresh, err := s.dedup.MarkSeen(ctx, env.EventID)
	if err != nil {
		s.log.Error("failed to check event id", "event_id", env.EventID, "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !fresh {
		s.writeJSON(w, http.StatusOK, statusResponse{Status: "duplicate"})
		return
	}

	inserted, err := s.store.RecordEvent(ctx, storedEvent(env, body))
	if err != nil {
		s.log.Error("failed to record event", "event_id", env.EventID, "error", err)
		// A retry must be able to store the event.
		if uerr := s.dedup.Unmark(context.WithoutCancel(ctx), env.EventID); uerr != nil {
			s.log.Error("failed to unmark event", "event_id", env.EventID, "error", uerr)
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !inserted {
		// Seen set expired or was switched, the log already has it.
		s.writeJSON(w, http.StatusOK, statusResponse{Status: "duplicate"})
		return
	}

	s.writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func storedEvent(env events.Envelope, raw []byte) *store.Event {
	return &store.Event{
		EventID:       env.EventID,
		Type:          string(env.Type),
		SessionID:     env.SessionID,
		RegimeID:      env.RegimeID,
		TrafficSource: env.TrafficSource,
		ExperimentID:  env.ExperimentID,
		Variant:       string(env.Variant),
		Timestamp:     env.Timestamp,
		Payload:       raw,
	}
}

// BatchRequest is the body of the recompute endpoints.
type BatchRequest struct {
	Events []json.RawMessage `json:"events"`
}

type WeightsResponse struct {
	Status  string             `json:"status"`
	Weights []optimizer.Weight `json:"weights"`
}

type PosteriorsResponse struct {
	Status     string                           `json:"status"`
	Posteriors map[string]stats.BlockPosteriors `json:"posteriors"`
	CreatedAt  int64                            `json:"createdAt,omitempty"`
}

func (s *Server) decodeBatch(w http.ResponseWriter, r *http.Request) ([]events.Envelope, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return nil, false
	}
	var req BatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return nil, false
	}
	evs, skipped := events.DecodeBatch(req.Events)
	if skipped > 0 {
		s.log.Debug("skipped malformed batch entries", "skipped", skipped)
	}
	return evs, true
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	evs, ok := s.decodeBatch(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, WeightsResponse{Status: "ok", Weights: optimizer.Weights(evs)})
}

func (s *Server) handleRecomputeHier(w http.ResponseWriter, r *http.Request) {
	evs, ok := s.decodeBatch(w, r)
	if !ok {
		return
	}
	posteriors, err := optimizer.Posteriors(evs, s.kappa)
	if err != nil {
		s.log.Error("failed to compose posteriors", "error", err)
		writeError(w, http.StatusInternalServerError, "failed")
		return
	}
	s.writeJSON(w, http.StatusOK, PosteriorsResponse{Status: "ok", Posteriors: posteriors})
}

// handlePosteriors serves the latest scheduled snapshot.
func (s *Server) handlePosteriors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	snap, err := s.store.LatestSnapshot(r.Context(), store.SnapshotPosteriors)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no_snapshot")
		return
	}
	if err != nil {
		s.log.Error("failed to load snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	var posteriors map[string]stats.BlockPosteriors
	if err := json.Unmarshal(snap.Payload, &posteriors); err != nil {
		s.log.Error("corrupt posterior snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.writeJSON(w, http.StatusOK, PosteriorsResponse{
		Status:     "ok",
		Posteriors: posteriors,
		CreatedAt:  snap.CreatedAt.UnixMilli(),
	})
}

// handleSalesNotify relays the body to the sales webhook unchanged.
func (s *Server) handleSalesNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	if s.relay == nil {
		writeError(w, http.StatusInternalServerError, "missing_webhook")
		return
	}

	err = s.relay.Send(r.Context(), json.RawMessage(body))
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, statusResponse{Status: "sent"})
	case errors.Is(err, notify.ErrNoWebhook):
		writeError(w, http.StatusInternalServerError, "missing_webhook")
	case errors.Is(err, notify.ErrThrottled):
		writeError(w, http.StatusTooManyRequests, "throttled")
	default:
		s.log.Warn("sales webhook failed", "error", err)
		writeError(w, http.StatusBadGateway, "upstream_failed")
	}
}

// FinanceRequest values a cash-flow series.
type FinanceRequest struct {
	Rate      float64   `json:"rate"`
	CashFlows []float64 `json:"cashFlows"`
	Guess     *float64  `json:"guess,omitempty"`
}

type FinanceResponse struct {
	NPV float64  `json:"npv"`
	IRR *float64 `json:"irr"`
}

func (s *Server) handleFinance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	var req FinanceRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	if finance.ValidateRate(req.Rate) != nil || finance.ValidateFlows(req.CashFlows) != nil {
		writeError(w, http.StatusBadRequest, "invalid_cash_flow")
		return
	}

	guess := finance.DefaultGuess
	if req.Guess != nil {
		guess = *req.Guess
	}
	resp := FinanceResponse{NPV: finance.PresentValue(req.Rate, req.CashFlows)}
	if irr, ok := finance.InternalRate(req.CashFlows, guess); ok {
		resp.IRR = &irr
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func setCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// writeJSON answers 500 when v cannot be encoded.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"server_error"}` + "\n"))
		return err
	}
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
