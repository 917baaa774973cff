package server

import (
	"net/http"

	"github.com/headline-goat/intent-goat/internal/experiment"
	"github.com/headline-goat/intent-goat/internal/report"
)

func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	sum, err := report.Overview(r.Context(), s.store)
	if err != nil {
		s.log.Error("failed to build summary", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.writeJSON(w, http.StatusOK, sum)
}

// handleDashboardVariants compares the arms of ?experiment=, defaulting
// to the configured experiment.
func (s *Server) handleDashboardVariants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	id := r.URL.Query().Get("experiment")
	if id == "" {
		id = s.experimentID
	}
	if id == "" {
		id = experiment.Home.ID
	}

	v, err := report.CompareVariants(r.Context(), s.store, id)
	if err != nil {
		s.log.Error("failed to compare variants", "experiment", id, "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}
