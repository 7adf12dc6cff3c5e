package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/circle/internal/adapters/repository"
)

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_groups"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	groups, err := s.deps.ListGroups(r.Context(), uid)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(groups))
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_group"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req groupRequest
	if err := s.decode(op, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	g, err := s.deps.CreateGroup(r.Context(), repository.GroupInput{UserID: uid, Name: req.Name, Color: req.Color})
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_group"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	g, err := s.deps.GetGroup(r.Context(), uid, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_group"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req groupPatchRequest
	if err := s.decode(op, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	g, err := s.deps.UpdateGroup(r.Context(), uid, mux.Vars(r)["id"], repository.GroupPatch{Name: req.Name, Color: req.Color})
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_group"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.DeleteGroup(r.Context(), uid, mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_activities"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	activities, err := s.deps.ListActivities(r.Context(), uid)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(activities))
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_activity"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req activityRequest
	if err := s.decode(op, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	a, err := s.deps.CreateActivity(r.Context(), repository.ActivityInput{UserID: uid, Name: req.Name, Emoji: req.Emoji})
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_activity"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	a, err := s.deps.GetActivity(r.Context(), uid, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleUpdateActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_activity"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req activityPatchRequest
	if err := s.decode(op, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	a, err := s.deps.UpdateActivity(r.Context(), uid, mux.Vars(r)["id"], repository.ActivityPatch{Name: req.Name, Emoji: req.Emoji})
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_activity"
	uid, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.DeleteActivity(r.Context(), uid, mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
