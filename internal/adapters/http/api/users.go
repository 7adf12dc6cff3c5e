package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleRegisterUser handles POST /api/users. Registering an existing email
// returns that user.
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	const op = "api.register_user"
	var req userRequest
	if err := s.decode(op, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.deps.RegisterUser(r.Context(), req.Email, req.Name)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_user"
	u, err := s.deps.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, u)
}
