package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"
)

// RecurringProcessor materializes due recurring transactions and due
// automatic goal contributions. A failure on one item is logged and
// skipped; the scan never aborts for a single bad record.
type RecurringProcessor struct {
	store     storage.Store
	goals     *GoalService
	publisher NotificationPublisher
	logger    *log.Logger
	now       func() time.Time
}

func NewRecurringProcessor(store storage.Store, goals *GoalService, publisher NotificationPublisher, logger *log.Logger) *RecurringProcessor {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentRecurrence})
	}
	return &RecurringProcessor{
		store:     store,
		goals:     goals,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentRecurrence),
		now:       time.Now,
	}
}

// ProcessDue runs one full pass over both kinds of due recurrences and
// returns how many were materialized.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	processed, err := p.processTransactions(ctx, now)
	if err != nil {
		return processed, err
	}

	goalCount, err := p.processGoalContributions(ctx, now)
	processed += goalCount
	return processed, err
}

// processTransactions materializes every confirmed recurring template
// whose forward pointer has reached today.
func (p *RecurringProcessor) processTransactions(ctx context.Context, now time.Time) (int, error) {
	dueBy := endOfDay(now)
	templates, err := p.store.FindDueRecurringTransactions(ctx, dueBy)
	if err != nil {
		return 0, fmt.Errorf("find due recurring transactions: %w", err)
	}

	p.logger.InfoContext(ctx, "Processing recurring transactions",
		"due", len(templates), "processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, template := range templates {
		materialized, err := p.materializeTransaction(ctx, template, now)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to materialize recurring transaction",
				log.FieldTxnID, template.ID,
				"description", template.Description,
				log.FieldError, err)
			continue
		}
		if materialized {
			processed++
		}
	}

	p.logger.InfoContext(ctx, "Recurring transaction processing complete",
		"processed", processed, "total_checked", len(templates))
	return processed, nil
}

func (p *RecurringProcessor) materializeTransaction(ctx context.Context, template core.Transaction, now time.Time) (bool, error) {
	if template.Recurrence == nil || template.Recurrence.NextOccurrence == nil {
		return false, fmt.Errorf("template has no recurrence pointer")
	}
	due := *template.Recurrence.NextOccurrence

	// A schedule past its end date is left untouched: no child, no
	// pointer advance.
	if template.Recurrence.EndDate != nil && due.After(*template.Recurrence.EndDate) {
		return false, nil
	}

	child := template
	child.ID = uuid.NewString()
	child.Date = due
	child.Recurrence = nil
	child.Source = core.SourceRecurring
	child.Installments = core.Installments{ParentID: template.ID}
	child.CreatedAt = now
	child.UpdatedAt = now

	if err := p.store.SaveTransaction(ctx, &child); err != nil {
		return false, fmt.Errorf("save materialized transaction: %w", err)
	}
	if err := RecomputeCategoryStats(ctx, p.store, child.UserID, child.CategoryID, now); err != nil {
		p.logger.WarnContext(ctx, "Failed to recompute category stats after materialization",
			log.FieldCategoryID, child.CategoryID, log.FieldError, err)
	}

	// Advance the forward pointer from its current value, never from now.
	// A worker catching up after downtime walks every missed period.
	next, err := NextOccurrence(due, template.Recurrence.Frequency, template.Recurrence.Interval)
	if err != nil {
		return false, fmt.Errorf("advance recurrence pointer: %w", err)
	}
	template.Recurrence.NextOccurrence = &next
	template.UpdatedAt = now
	if err := p.store.SaveTransaction(ctx, &template); err != nil {
		return false, fmt.Errorf("save advanced template: %w", err)
	}

	p.publishMaterialized(ctx, &child, now)

	p.logger.InfoContext(ctx, "Materialized recurring transaction",
		log.FieldTxnID, child.ID,
		"parent_id", template.ID,
		log.FieldAmount, child.Amount.String(),
		log.FieldFrequency, string(template.Recurrence.Frequency),
		"next_occurrence", next.Format("2006-01-02"))
	return true, nil
}

// processGoalContributions applies due automatic contributions to active
// goals.
func (p *RecurringProcessor) processGoalContributions(ctx context.Context, now time.Time) (int, error) {
	dueBy := endOfDay(now)
	goals, err := p.store.FindDueRecurringGoals(ctx, dueBy)
	if err != nil {
		return 0, fmt.Errorf("find due recurring goals: %w", err)
	}

	processed := 0
	for _, goal := range goals {
		if err := p.applyGoalContribution(ctx, goal, now); err != nil {
			p.logger.ErrorContext(ctx, "Failed to apply recurring goal contribution",
				log.FieldGoalID, goal.ID, log.FieldError, err)
			continue
		}
		processed++
	}

	if len(goals) > 0 {
		p.logger.InfoContext(ctx, "Recurring goal contribution processing complete",
			"processed", processed, "total_checked", len(goals))
	}
	return processed, nil
}

func (p *RecurringProcessor) applyGoalContribution(ctx context.Context, goal core.Goal, now time.Time) error {
	if goal.Recurring == nil || goal.Recurring.NextContribution == nil {
		return fmt.Errorf("goal has no contribution pointer")
	}
	due := *goal.Recurring.NextContribution

	if _, err := p.goals.AddContribution(ctx, goal.UserID, goal.ID, core.Contribution{
		Amount:      goal.Recurring.Amount,
		Date:        due,
		Description: "Automatic contribution",
	}); err != nil {
		return fmt.Errorf("add contribution: %w", err)
	}

	// Re-read: AddContribution persisted analytics and possibly status.
	updated, err := p.store.FindGoal(ctx, goal.UserID, goal.ID)
	if err != nil {
		return fmt.Errorf("reload goal: %w", err)
	}
	if updated.Recurring == nil {
		return nil
	}

	next, err := NextOccurrence(due, updated.Recurring.Frequency, 1)
	if err != nil {
		return fmt.Errorf("advance contribution pointer: %w", err)
	}
	updated.Recurring.NextContribution = &next
	updated.UpdatedAt = now
	if err := p.store.SaveGoal(ctx, updated); err != nil {
		return fmt.Errorf("save advanced goal: %w", err)
	}
	return nil
}

func (p *RecurringProcessor) publishMaterialized(ctx context.Context, tx *core.Transaction, now time.Time) {
	if p.publisher == nil {
		return
	}
	msg := &amqp.NotificationMessage{
		Event:     amqp.EventRecurrenceMaterialized,
		UserID:    tx.UserID,
		TxnID:     tx.ID,
		Title:     "Recurring transaction posted",
		Body:      fmt.Sprintf("%s (%s) was created automatically.", tx.Description, tx.Amount.String()),
		Amount:    tx.Amount,
		Timestamp: now,
	}
	if err := p.publisher.PublishNotification(ctx, msg); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish materialization notification",
			log.FieldTxnID, tx.ID, log.FieldError, err)
	}
}

// endOfDay widens the due scan to everything scheduled today, regardless
// of the hour stored on the pointer.
func endOfDay(t time.Time) time.Time {
	return core.TruncateToDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
