package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_contacts"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	f, err := contactFilter(uid, q)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	reconnect, err := boolParam(q, "reconnect")
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	limit, err := limitParam(q, s.maxListLimit)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	views, err := s.deps.ListContacts(r.Context(), f, reconnect, limit)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(views))
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_contact"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req contactRequest
	if err := s.decode(op, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	in, err := req.input(uid)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	view, err := s.deps.CreateContact(r.Context(), in)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_contact"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.deps.GetContact(r.Context(), uid, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_contact"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req contactPatchRequest
	if err := s.decode(op, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := req.patch()
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	view, err := s.deps.UpdateContact(r.Context(), uid, mux.Vars(r)["id"], p)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_contact"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.DeleteContact(r.Context(), uid, mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
