package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"financas/internal/amqp"
	"financas/internal/cache"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"
)

const summaryCachePrefix = "transactions.summary"

// NotificationPublisher is the outbound event hook. A nil publisher
// disables notifications without changing service behavior.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, msg *amqp.NotificationMessage) error
}

// Summary aggregates a user's transactions over an optional date range.
type Summary struct {
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	Balance      decimal.Decimal `json:"balance"`
	IncomeCount  int             `json:"income_count"`
	ExpenseCount int             `json:"expense_count"`
}

// TransactionPatch enumerates the fields Update may change. Nil fields
// are left untouched.
type TransactionPatch struct {
	Description *string
	Amount      *decimal.Decimal
	CategoryID  *string
	Date        *time.Time
	Tags        *[]string
	Status      *core.TransactionStatus
	Recurrence  **core.Recurrence
}

// TransactionService owns transaction writes and keeps the referencing
// category's denormalized stats in step with every mutation.
type TransactionService struct {
	store     storage.Store
	cache     *cache.MemoCache[Summary]
	publisher NotificationPublisher
	logger    *log.Logger
	now       func() time.Time
}

func NewTransactionService(store storage.Store, memo *cache.MemoCache[Summary], publisher NotificationPublisher, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentTransaction})
	}
	return &TransactionService{
		store:     store,
		cache:     memo,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentTransaction),
		now:       time.Now,
	}
}

// Create validates and persists a new transaction, derives the recurrence
// pointer for recurring templates, and recomputes the category's stats.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (*core.Transaction, error) {
	now := s.now()
	tx.ID = uuid.NewString()
	if tx.Status == "" {
		tx.Status = core.StatusConfirmed
	}
	if tx.Source == "" {
		tx.Source = core.SourceManual
	}
	tx.Amount = core.Round2(tx.Amount)
	tx.CreatedAt = now
	tx.UpdatedAt = now

	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, &tx); err != nil {
		return nil, err
	}

	// The forward pointer is always derived from the schedule, never
	// trusted from input.
	if tx.Recurrence != nil {
		next, err := NextOccurrence(tx.Date, tx.Recurrence.Frequency, tx.Recurrence.Interval)
		if err != nil {
			return nil, err
		}
		tx.Recurrence.NextOccurrence = &next
	}

	if err := s.store.SaveTransaction(ctx, &tx); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	s.afterMutation(ctx, tx.UserID, tx.CategoryID)

	s.logger.InfoContext(ctx, "Transaction created",
		log.FieldTxnID, tx.ID,
		log.FieldUserID, tx.UserID,
		log.FieldCategoryID, tx.CategoryID,
		"recurring", tx.IsRecurring())
	return &tx, nil
}

// Get returns one transaction scoped to its owner.
func (s *TransactionService) Get(ctx context.Context, userID, id string) (*core.Transaction, error) {
	return s.store.FindTransaction(ctx, userID, id)
}

// List returns the transactions matching the query, newest first.
func (s *TransactionService) List(ctx context.Context, q storage.TransactionQuery) ([]core.Transaction, error) {
	return s.store.FindTransactions(ctx, q)
}

// Update applies a typed patch to an existing transaction, re-validates,
// and recomputes stats for every touched category.
func (s *TransactionService) Update(ctx context.Context, userID, id string, patch TransactionPatch) (*core.Transaction, error) {
	tx, err := s.store.FindTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	previousCategory := tx.CategoryID

	if patch.Description != nil {
		tx.Description = *patch.Description
	}
	if patch.Amount != nil {
		tx.Amount = core.Round2(*patch.Amount)
	}
	if patch.CategoryID != nil {
		tx.CategoryID = *patch.CategoryID
	}
	if patch.Date != nil {
		tx.Date = *patch.Date
	}
	if patch.Tags != nil {
		tx.Tags = *patch.Tags
	}
	if patch.Status != nil {
		tx.Status = *patch.Status
	}
	if patch.Recurrence != nil {
		tx.Recurrence = *patch.Recurrence
	}
	tx.UpdatedAt = s.now()

	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, tx); err != nil {
		return nil, err
	}

	if tx.Recurrence != nil && (patch.Date != nil || patch.Recurrence != nil) {
		next, err := NextOccurrence(tx.Date, tx.Recurrence.Frequency, tx.Recurrence.Interval)
		if err != nil {
			return nil, err
		}
		tx.Recurrence.NextOccurrence = &next
	}

	if err := s.store.SaveTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	s.afterMutation(ctx, userID, tx.CategoryID)
	if previousCategory != tx.CategoryID {
		s.afterMutation(ctx, userID, previousCategory)
	}
	return tx, nil
}

// Delete removes a transaction and recomputes its category's stats.
func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	tx, err := s.store.FindTransaction(ctx, userID, id)
	if err != nil {
		return err
	}

	removed, err := s.store.DeleteTransaction(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if !removed {
		return core.ErrNotFound
	}

	s.afterMutation(ctx, userID, tx.CategoryID)

	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldTxnID, id, log.FieldUserID, userID)
	return nil
}

// Summarize aggregates a user's confirmed transactions, memoized until
// the next mutation.
func (s *TransactionService) Summarize(ctx context.Context, userID string, from, to *time.Time) (*Summary, error) {
	params := map[string]any{"user": userID}
	if from != nil {
		params["from"] = from.Format(time.RFC3339)
	}
	if to != nil {
		params["to"] = to.Format(time.RFC3339)
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(summaryCachePrefix, params); ok {
			return &cached, nil
		}
	}

	txs, err := s.store.FindTransactions(ctx, storage.TransactionQuery{
		UserID: userID,
		Status: core.StatusConfirmed,
		From:   from,
		To:     to,
	})
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}

	var sum Summary
	for _, tx := range txs {
		switch tx.Kind {
		case core.Income:
			sum.Income = sum.Income.Add(tx.Amount)
			sum.IncomeCount++
		case core.Expense:
			sum.Expense = sum.Expense.Add(tx.Amount)
			sum.ExpenseCount++
		}
	}
	sum.Balance = sum.Income.Sub(sum.Expense)

	if s.cache != nil {
		s.cache.Set(summaryCachePrefix, params, sum)
	}
	return &sum, nil
}

// checkCategory enforces ownership and kind agreement between a
// transaction and its category.
func (s *TransactionService) checkCategory(ctx context.Context, tx *core.Transaction) error {
	category, err := s.store.FindCategory(ctx, tx.UserID, tx.CategoryID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.ErrCategoryNotOwned
		}
		return fmt.Errorf("find category: %w", err)
	}
	if category.Kind != tx.Kind {
		return core.ErrCategoryKindMismatch
	}
	return nil
}

// afterMutation recomputes the touched category's stats and drops the
// memoized summaries. Derive-then-persist runs here, in the caller's
// flow, not hidden in a save hook.
func (s *TransactionService) afterMutation(ctx context.Context, userID, categoryID string) {
	if err := RecomputeCategoryStats(ctx, s.store, userID, categoryID, s.now()); err != nil {
		s.logger.ErrorContext(ctx, "Failed to recompute category stats",
			log.FieldCategoryID, categoryID, log.FieldError, err)
	}
	if s.cache != nil {
		s.cache.Invalidate(summaryCachePrefix, nil)
	}
}

// RecomputeCategoryStats re-derives a category's denormalized stats from
// the full set of transactions referencing it and persists the result.
// Zero matches reset every numeric field.
func RecomputeCategoryStats(ctx context.Context, store storage.Store, userID, categoryID string, now time.Time) error {
	category, err := store.FindCategory(ctx, userID, categoryID)
	if err != nil {
		return fmt.Errorf("find category: %w", err)
	}

	txs, err := store.FindTransactions(ctx, storage.TransactionQuery{
		UserID:     userID,
		CategoryID: categoryID,
	})
	if err != nil {
		return fmt.Errorf("find transactions: %w", err)
	}

	stats := core.CategoryStats{}
	for _, tx := range txs {
		stats.TotalTransactions++
		stats.TotalAmount = stats.TotalAmount.Add(tx.Amount)
		if stats.LastTransactionDate == nil || tx.Date.After(*stats.LastTransactionDate) {
			d := tx.Date
			stats.LastTransactionDate = &d
		}
	}
	if stats.TotalTransactions > 0 {
		stats.AverageAmount = stats.TotalAmount.
			Div(decimal.NewFromInt(int64(stats.TotalTransactions))).Round(2)
	}

	category.Stats = stats
	category.UpdatedAt = now
	if err := store.SaveCategory(ctx, category); err != nil {
		return fmt.Errorf("save category: %w", err)
	}
	return nil
}
