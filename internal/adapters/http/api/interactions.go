package api

import (
	"net/http"
	"strings"
)

// handleLogInteraction handles POST /api/interactions. A repeated
// Idempotency-Key answers 200 with the first interaction's ID and
// duplicate=true.
func (s *Server) handleLogInteraction(w http.ResponseWriter, r *http.Request) {
	const op = "api.log_interaction"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req interactionRequest
	if err := s.decode(op, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if len(req.ContactIDs) == 0 {
		s.fail(w, r, WrapKind(op, ErrBadRequest, errNoContacts))
		return
	}
	in, err := req.input(uid)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	it, duplicate, err := s.deps.LogInteraction(r.Context(), key, in)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	status := http.StatusCreated
	if duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, interactionResponse{Interaction: it, Duplicate: duplicate})
}

func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_interactions"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := interactionFilter(uid, r.URL.Query())
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	out, err := s.deps.ListInteractions(r.Context(), f)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(out))
}
