package api

import (
	"net/http"

	"github.com/ignite/listbridge/internal/membership"
	"github.com/ignite/listbridge/internal/metrics"
)

// handleWebhook receives provider webhooks. Only the unsubscribe event is
// acted on; everything else is acknowledged and dropped. The provider posts
// an urlencoded form with bracketed keys.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "malformed form")
		return
	}

	if r.PostForm.Get("type") != "unsubscribe" {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	email := r.PostForm.Get("data[email]")
	listID := r.PostForm.Get("data[list_id]")
	if email == "" || listID == "" {
		respondError(w, http.StatusBadRequest, "missing data[email] or data[list_id]")
		return
	}

	ctx := r.Context()
	userID, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		s.log.Error().Err(err).Msg("webhook user lookup failed")
		respondError(w, http.StatusInternalServerError, "user lookup failed")
		return
	}
	if userID == 0 {
		// Nothing to update for addresses we never saw; the provider
		// already removed the member on its side.
		respondJSON(w, http.StatusOK, map[string]string{"status": "unknown address"})
		return
	}

	// No browser is attached to a webhook; only the durable backend moves.
	// Cookies catch up through reconciliation on the user's next visit.
	if err := s.store.RemoveList(ctx, nil, membership.Subscribed, listID, userID); err != nil {
		s.log.Error().Err(err).Msg("webhook: clear subscribe record failed")
		respondError(w, http.StatusInternalServerError, "update failed")
		return
	}
	if err := s.store.Track(ctx, nil, membership.Unsubscribed, listID, email, nil, userID); err != nil {
		s.log.Error().Err(err).Msg("webhook: track unsubscribe failed")
		respondError(w, http.StatusInternalServerError, "update failed")
		return
	}

	metrics.Unsubscribes.WithLabelValues("webhook").Inc()
	s.log.Info().Str("list", listID).Int64("user_id", userID).Msg("webhook unsubscribe recorded")
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhookVerify answers the provider's endpoint validation probe.
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
