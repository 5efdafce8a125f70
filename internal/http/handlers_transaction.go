package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/memories"
	"financas/internal/services"
	"financas/internal/storage"
)

type transactionCreateRequest struct {
	Description  string                 `json:"description"`
	Amount       decimal.Decimal        `json:"amount"`
	Kind         core.TransactionKind   `json:"kind"`
	CategoryID   string                 `json:"category_id"`
	Date         time.Time              `json:"date"`
	Recurrence   *core.Recurrence       `json:"recurrence,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	Status       core.TransactionStatus `json:"status,omitempty"`
	Installments core.Installments      `json:"installments"`
}

// transactionUpdateRequest distinguishes absent fields from explicit
// nulls for recurrence, so a client can stop a schedule by sending
// "recurrence": null.
type transactionUpdateRequest struct {
	Description *string                 `json:"description,omitempty"`
	Amount      *decimal.Decimal        `json:"amount,omitempty"`
	CategoryID  *string                 `json:"category_id,omitempty"`
	Date        *time.Time              `json:"date,omitempty"`
	Tags        *[]string               `json:"tags,omitempty"`
	Status      *core.TransactionStatus `json:"status,omitempty"`
	Recurrence  json.RawMessage         `json:"recurrence,omitempty"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := s.transactions.Create(r.Context(), core.Transaction{
		Description:  req.Description,
		Amount:       req.Amount,
		Kind:         req.Kind,
		CategoryID:   req.CategoryID,
		UserID:       userID(r),
		Date:         req.Date,
		Recurrence:   req.Recurrence,
		Tags:         req.Tags,
		Status:       req.Status,
		Installments: req.Installments,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.recordMemoryEntry(r, tx)
	writeJSON(w, http.StatusCreated, tx)
}

// recordMemoryEntry feeds the local analytics store. Failures are
// logged and never surface to the client.
func (s *Server) recordMemoryEntry(r *http.Request, tx *core.Transaction) {
	categoryName := ""
	if cat, err := s.categories.Get(r.Context(), tx.UserID, tx.CategoryID); err == nil {
		categoryName = cat.Name
	}
	err := s.memories.RecordEntry(tx.Kind, memories.RawEntry{
		Description: tx.Description,
		Amount:      tx.Amount,
		Category:    categoryName,
		Date:        tx.Date,
		Recurring:   tx.Recurrence != nil,
	})
	if err != nil {
		s.logger.WarnContext(r.Context(), "Failed to record analytics entry",
			log.FieldTxnID, tx.ID, log.FieldError, err)
	}
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.transactions.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := storage.TransactionQuery{
		UserID:     userID(r),
		CategoryID: r.URL.Query().Get("category_id"),
		Kind:       core.TransactionKind(r.URL.Query().Get("kind")),
		Status:     core.TransactionStatus(r.URL.Query().Get("status")),
		From:       from,
		To:         to,
	}

	list, err := s.transactions.List(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patch := services.TransactionPatch{
		Description: req.Description,
		Amount:      req.Amount,
		CategoryID:  req.CategoryID,
		Date:        req.Date,
		Tags:        req.Tags,
		Status:      req.Status,
	}
	if len(req.Recurrence) > 0 {
		var rec *core.Recurrence
		if err := json.Unmarshal(req.Recurrence, &rec); err != nil {
			writeError(w, http.StatusBadRequest, "invalid recurrence")
			return
		}
		patch.Recurrence = &rec
	}

	tx, err := s.transactions.Update(r.Context(), userID(r), r.PathValue("id"), patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.transactions.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransactionSummary(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.transactions.Summarize(r.Context(), userID(r), from, to)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
