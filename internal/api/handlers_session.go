package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ignite/listbridge/internal/metrics"
)

// handleSessionSync runs the per-page-load membership maintenance for a
// logged-in user: legacy migration, then either the one-time deferred group
// refresh or backend reconciliation.
func (s *Server) handleSessionSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed payload")
		return
	}
	if req.UserID == 0 {
		respondJSON(w, http.StatusOK, map[string]string{"status": "anonymous"})
		return
	}

	jar := newRequestJar(w, r)
	if err := s.refresher.PageSync(r.Context(), req.UserID, jar); err != nil {
		s.log.Error().Err(err).Int64("user_id", req.UserID).Msg("session sync failed")
		respondError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	metrics.Reconciliations.Inc()
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGroupsRefresh is the loopback target of the deferred group refresh.
// It does the slow provider reads off the interactive path.
func (s *Server) handleGroupsRefresh(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
	if err != nil || userID == 0 {
		respondError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}

	// The requesting page's browser is not on this connection; cookies
	// catch up via reconciliation on the next page load.
	if err := s.refresher.Refresh(r.Context(), userID, nil); err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("group refresh failed")
		respondError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}
