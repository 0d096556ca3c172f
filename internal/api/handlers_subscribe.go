package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ignite/listbridge/internal/config"
	"github.com/ignite/listbridge/internal/subscription"
)

// formResponse is the tri-state reply of the standalone subscription forms.
// Result is "success", "already" or "error"; Message carries the configured
// label for that state.
type formResponse struct {
	Result  string `json:"result"`
	Message string `json:"message"`
}

func (s *Server) handleSubscribeWidget(w http.ResponseWriter, r *http.Request) {
	s.handleFormSubscribe(w, r, s.cfg.Widget, "widget")
}

func (s *Server) handleSubscribeShortcode(w http.ResponseWriter, r *http.Request) {
	s.handleFormSubscribe(w, r, s.cfg.Shortcode, "shortcode")
}

func (s *Server) handleFormSubscribe(w http.ResponseWriter, r *http.Request, form config.FormConfig, channel string) {
	if !s.cfg.MailChimp.Enabled || !form.Enabled {
		respondError(w, http.StatusNotFound, "form is not enabled")
		return
	}
	if err := r.ParseForm(); err != nil {
		respondJSON(w, http.StatusOK, formResponse{Result: "error", Message: form.Labels.Error})
		return
	}

	email := strings.TrimSpace(r.PostForm.Get("email"))
	if email == "" || !strings.Contains(email, "@") {
		respondJSON(w, http.StatusOK, formResponse{Result: "error", Message: form.Labels.Error})
		return
	}

	userID, _ := strconv.ParseInt(r.PostForm.Get("user_id"), 10, 64)

	groups := selectedGroups(form.Groups, formValues(r.PostForm, "groups"))

	fields := s.orch.ResolveFields(r.Context(), form.Fields, nil, userID)
	for _, m := range form.Fields {
		if v := strings.TrimSpace(r.PostForm.Get("fields[" + m.Tag + "]")); v != "" {
			fields[m.Tag] = v
		}
	}

	jar := newRequestJar(w, r)
	outcome, err := s.orch.Subscribe(r.Context(), jar, form.List, email, groups, fields, userID, channel)
	if err != nil {
		s.log.Error().Err(err).Str("channel", channel).Msg("form subscribe failed")
		respondJSON(w, http.StatusOK, formResponse{Result: "error", Message: form.Labels.Error})
		return
	}

	switch outcome {
	case subscription.OutcomeAlreadySubscribed:
		respondJSON(w, http.StatusOK, formResponse{Result: "already", Message: form.Labels.AlreadySubscribed})
	default:
		respondJSON(w, http.StatusOK, formResponse{Result: "success", Message: form.Labels.Success})
	}
}

// formValues reads a multi-valued form field posted either as "name" or the
// bracketed "name[]" convention.
func formValues(form map[string][]string, name string) []string {
	if vs, ok := form[name+"[]"]; ok {
		return vs
	}
	return form[name]
}

// selectedGroups keeps the posted interest ids that are configured for the
// form. Posted values may be bare ids or "id:name" pairs.
func selectedGroups(configured, posted []string) []string {
	allowed := map[string]bool{}
	for _, g := range configured {
		id, _, _ := strings.Cut(g, ":")
		allowed[id] = true
	}
	var out []string
	for _, p := range posted {
		id, _, _ := strings.Cut(p, ":")
		if allowed[id] {
			out = append(out, id)
		}
	}
	return out
}
