package http

import (
	"net/http"

	"bilancio/internal/core"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.ledger.ListTemplates(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if templates == nil {
		templates = []core.RecurringTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tmpl core.RecurringTemplate
	if err := decodeJSON(r, &tmpl); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tmpl.Description = sanitizeInput(tmpl.Description)
	tmpl.Category = sanitizeInput(tmpl.Category)
	if err := tmpl.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.ledger.CreateTemplate(r.Context(), tmpl)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var tmpl core.RecurringTemplate
	if err := decodeJSON(r, &tmpl); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tmpl.ID = r.PathValue("id")
	tmpl.Description = sanitizeInput(tmpl.Description)
	tmpl.Category = sanitizeInput(tmpl.Category)
	if err := tmpl.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.ledger.UpdateTemplate(r.Context(), tmpl); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tmpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTemplate(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type toggleRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleToggleTemplate(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.ledger.SetTemplateActive(r.Context(), r.PathValue("id"), req.Active)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
