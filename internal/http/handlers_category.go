package http

import (
	"net/http"

	"financas/internal/core"
	"financas/internal/services"
)

type categoryCreateRequest struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Kind        core.TransactionKind `json:"kind"`
	Color       string               `json:"color"`
	Icon        string               `json:"icon,omitempty"`
	Budget      core.CategoryBudget  `json:"budget"`
}

type categoryUpdateRequest struct {
	Name        *string              `json:"name,omitempty"`
	Description *string              `json:"description,omitempty"`
	Color       *string              `json:"color,omitempty"`
	Icon        *string              `json:"icon,omitempty"`
	Budget      *core.CategoryBudget `json:"budget,omitempty"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category, err := s.categories.Create(r.Context(), core.Category{
		Name:        req.Name,
		Description: req.Description,
		Kind:        req.Kind,
		Color:       req.Color,
		Icon:        req.Icon,
		UserID:      userID(r),
		Budget:      req.Budget,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

// handleCreateDefaultCategories provisions the standard category set,
// skipping names the user already has.
func (s *Server) handleCreateDefaultCategories(w http.ResponseWriter, r *http.Request) {
	created, err := s.categories.CreateDefaults(r.Context(), userID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := s.categories.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := s.categories.List(r.Context(), userID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category, err := s.categories.Update(r.Context(), userID(r), r.PathValue("id"), services.CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
		Budget:      req.Budget,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.categories.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecomputeCategory(w http.ResponseWriter, r *http.Request) {
	category, err := s.categories.RecomputeStats(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}
