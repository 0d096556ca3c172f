package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handlePing validates the configured API key against the provider.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	account, err := s.pinger.Ping(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("provider ping failed")
		respondError(w, http.StatusBadGateway, "provider unreachable or key invalid")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"account": account.AccountName,
	})
}

// handleLists returns the account's mailing lists from the catalog cache.
func (s *Server) handleLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.catalog.Lists(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list catalog fetch failed")
		respondError(w, http.StatusBadGateway, "catalog fetch failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"lists": lists})
}

type groupEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Value    string `json:"value"`
	Label    string `json:"label"`
}

// handleGroups returns a list's interests flattened for selection menus.
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "listID")
	groups, err := s.catalog.Groups(r.Context(), listID)
	if err != nil {
		s.log.Error().Err(err).Str("list", listID).Msg("group catalog fetch failed")
		respondError(w, http.StatusBadGateway, "catalog fetch failed")
		return
	}

	entries := make([]groupEntry, 0, len(groups))
	for _, g := range groups {
		entries = append(entries, groupEntry{
			ID:       g.ID,
			Name:     g.Name,
			Category: g.Category,
			Value:    g.Value(),
			Label:    g.Label(),
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"groups": entries})
}
