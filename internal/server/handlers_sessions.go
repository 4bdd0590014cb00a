package server

import (
	"net/http"

	"github.com/jonathan/lead-engine/internal/db"
	"github.com/jonathan/lead-engine/internal/types"
)

const maxListLimit = 500

// handleListSessions returns recent sessions, newest first.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseQueryInt(r, "limit", db.DefaultListLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if limit < 1 || limit > maxListLimit {
		s.writeError(w, r, &ErrValidation{Field: "limit", Message: "must be between 1 and 500"})
		return
	}

	sessions, err := s.store.ListSessions(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []types.Session{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleGetSession returns a session with its leads.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	detail, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if detail.Leads == nil {
		detail.Leads = []types.Lead{}
	}
	s.jsonResponse(w, http.StatusOK, detail)
}

// handleDeleteSession removes a session and its leads.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
