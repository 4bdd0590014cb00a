package server

import (
	"net/http"

	"github.com/jonathan/lead-engine/internal/schemas"
)

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	lead, err := s.leads.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, lead)
}

// handleSendLead emails the lead's draft. The body is optional.
func (s *Server) handleSendLead(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req SendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.leads.Send(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleSkipLead(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	lead, err := s.leads.Skip(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, lead)
}

func (s *Server) handleRepliedLead(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	lead, err := s.leads.MarkReplied(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, lead)
}

// handleUpdateDraft stores a human edit of the draft. The body must match the draft schema.
func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := schemas.Validate(schemas.Draft, body); err != nil {
		s.writeError(w, r, err)
		return
	}
	var req DraftRequest
	if err := unmarshalBody(body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	lead, err := s.leads.UpdateDraft(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, lead)
}

// handleRewriteDraft asks the LLM for a revised draft.
func (s *Server) handleRewriteDraft(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req RewriteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.leads.RewriteDraft(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}
