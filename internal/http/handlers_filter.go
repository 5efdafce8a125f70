package http

import (
	"net/http"

	"financas/internal/filters"
)

type filterSaveRequest struct {
	Name     string           `json:"name"`
	Criteria filters.Criteria `json:"criteria"`
}

type filterUpdateRequest struct {
	Name     *string           `json:"name,omitempty"`
	Criteria *filters.Criteria `json:"criteria,omitempty"`
}

func (s *Server) handleSaveFilter(w http.ResponseWriter, r *http.Request) {
	var req filterSaveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := s.filters.Save(req.Name, req.Criteria)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleListFilters(w http.ResponseWriter, r *http.Request) {
	list, err := s.filters.List()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUpdateFilter(w http.ResponseWriter, r *http.Request) {
	var req filterUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.filters.Update(r.PathValue("id"), filters.Patch{
		Name:     req.Name,
		Criteria: req.Criteria,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteFilter(w http.ResponseWriter, r *http.Request) {
	removed, err := s.filters.Delete(r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, filters.ErrFilterNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApplyFilter records a usage of the filter and returns it with
// refreshed usage bookkeeping. The client runs the actual query via the
// transaction list endpoint.
func (s *Server) handleApplyFilter(w http.ResponseWriter, r *http.Request) {
	applied, err := s.filters.ApplyFilterUsage(r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, applied)
}
