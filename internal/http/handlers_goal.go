package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/core"
	"financas/internal/services"
)

type goalCreateRequest struct {
	Title        string               `json:"title"`
	Description  string               `json:"description,omitempty"`
	Kind         core.GoalKind        `json:"kind"`
	TargetAmount decimal.Decimal      `json:"target_amount"`
	TargetDate   time.Time            `json:"target_date"`
	CategoryID   string               `json:"category_id,omitempty"`
	Priority     core.Priority        `json:"priority,omitempty"`
	Recurring    *core.GoalRecurrence `json:"recurring,omitempty"`
	Milestones   []core.Milestone     `json:"milestones,omitempty"`
	Tags         []string             `json:"tags,omitempty"`
}

type goalUpdateRequest struct {
	Title        *string          `json:"title,omitempty"`
	Description  *string          `json:"description,omitempty"`
	TargetAmount *decimal.Decimal `json:"target_amount,omitempty"`
	TargetDate   *time.Time       `json:"target_date,omitempty"`
	Status       *core.GoalStatus `json:"status,omitempty"`
	Priority     *core.Priority   `json:"priority,omitempty"`
	Tags         *[]string        `json:"tags,omitempty"`
}

type contributionRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	goal, err := s.goals.Create(r.Context(), core.Goal{
		Title:        req.Title,
		Description:  req.Description,
		Kind:         req.Kind,
		TargetAmount: req.TargetAmount,
		TargetDate:   req.TargetDate,
		UserID:       userID(r),
		CategoryID:   req.CategoryID,
		Priority:     req.Priority,
		Recurring:    req.Recurring,
		Milestones:   req.Milestones,
		Tags:         req.Tags,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := s.goals.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	list, err := s.goals.List(r.Context(), userID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	goal, err := s.goals.Update(r.Context(), userID(r), r.PathValue("id"), services.GoalPatch{
		Title:        req.Title,
		Description:  req.Description,
		TargetAmount: req.TargetAmount,
		TargetDate:   req.TargetDate,
		Status:       req.Status,
		Priority:     req.Priority,
		Tags:         req.Tags,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.goals.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddContribution(w http.ResponseWriter, r *http.Request) {
	var req contributionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	goal, err := s.goals.AddContribution(r.Context(), userID(r), r.PathValue("id"), core.Contribution{
		Amount:        req.Amount,
		Date:          req.Date,
		Description:   req.Description,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}
