package api

import (
	"net/http"
	"strconv"
)

// handleDashboard handles GET /api/dashboard. An optional limit overrides
// the configured reconnect list length.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.dashboard"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			s.fail(w, r, NewKind(op, ErrBadRequest))
			return
		}
		limit = min(limit, s.maxListLimit)
	}
	view, err := s.deps.Dashboard(r.Context(), uid, limit)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	view.Reconnect = orEmpty(view.Reconnect)
	writeJSON(w, http.StatusOK, view)
}
