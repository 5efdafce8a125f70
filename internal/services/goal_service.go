package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"
)

// ErrGoalCompletedImmutable rejects status edits that would revert a
// completed goal. Completion is one-directional.
var ErrGoalCompletedImmutable = errors.New("a completed goal cannot be reactivated")

// GoalPatch enumerates the fields Update may change. CurrentAmount is
// absent on purpose; it only moves through contributions.
type GoalPatch struct {
	Title        *string
	Description  *string
	TargetAmount *decimal.Decimal
	TargetDate   *time.Time
	Status       *core.GoalStatus
	Priority     *core.Priority
	Tags         *[]string
}

// GoalService owns the goal lifecycle: contributions, derived analytics,
// milestone checks, and the one-way completion transition.
type GoalService struct {
	store     storage.Store
	publisher NotificationPublisher
	logger    *log.Logger
	now       func() time.Time
}

func NewGoalService(store storage.Store, publisher NotificationPublisher, logger *log.Logger) *GoalService {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentGoal})
	}
	return &GoalService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentGoal),
		now:       time.Now,
	}
}

// Create validates and persists a new goal, provisioning the standard
// milestone ladder when the caller supplies none.
func (s *GoalService) Create(ctx context.Context, goal core.Goal) (*core.Goal, error) {
	now := s.now()
	goal.ID = uuid.NewString()
	if goal.Status == "" {
		goal.Status = core.GoalActive
	}
	if goal.Priority == "" {
		goal.Priority = core.PriorityMedium
	}
	goal.TargetAmount = core.Round2(goal.TargetAmount)
	goal.CurrentAmount = core.Round2(goal.CurrentAmount)
	goal.CreatedAt = now
	goal.UpdatedAt = now

	if err := goal.Validate(now); err != nil {
		return nil, err
	}

	if len(goal.Milestones) == 0 {
		goal.Milestones = core.DefaultMilestones(goal.TargetAmount)
	}
	if goal.Recurring != nil && goal.Recurring.NextContribution == nil {
		next, err := NextOccurrence(now, goal.Recurring.Frequency, 1)
		if err != nil {
			return nil, err
		}
		goal.Recurring.NextContribution = &next
	}

	s.recomputeDerived(&goal, now)
	if err := s.store.SaveGoal(ctx, &goal); err != nil {
		return nil, fmt.Errorf("save goal: %w", err)
	}

	s.logger.InfoContext(ctx, "Goal created",
		log.FieldGoalID, goal.ID, log.FieldUserID, goal.UserID, "kind", goal.Kind)
	return &goal, nil
}

// Get returns one goal scoped to its owner.
func (s *GoalService) Get(ctx context.Context, userID, id string) (*core.Goal, error) {
	return s.store.FindGoal(ctx, userID, id)
}

// List returns all of a user's goals.
func (s *GoalService) List(ctx context.Context, userID string) ([]core.Goal, error) {
	return s.store.FindGoals(ctx, userID)
}

// Update applies a typed patch and re-runs the derive-then-persist
// pipeline. Reverting a completed goal to any other status is rejected.
func (s *GoalService) Update(ctx context.Context, userID, id string, patch GoalPatch) (*core.Goal, error) {
	goal, err := s.store.FindGoal(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil && goal.Status == core.GoalCompleted && *patch.Status != core.GoalCompleted {
		return nil, ErrGoalCompletedImmutable
	}

	if patch.Title != nil {
		goal.Title = *patch.Title
	}
	if patch.Description != nil {
		goal.Description = *patch.Description
	}
	if patch.TargetAmount != nil {
		goal.TargetAmount = core.Round2(*patch.TargetAmount)
	}
	if patch.TargetDate != nil {
		goal.TargetDate = *patch.TargetDate
	}
	if patch.Status != nil {
		goal.Status = *patch.Status
	}
	if patch.Priority != nil {
		goal.Priority = *patch.Priority
	}
	if patch.Tags != nil {
		goal.Tags = *patch.Tags
	}

	now := s.now()
	goal.UpdatedAt = now

	if !goal.TargetAmount.IsPositive() {
		return nil, fieldError("target_amount", "must be greater than zero")
	}
	if goal.Status != "" && !goal.Status.Valid() {
		return nil, fieldError("status", "must be active, paused, completed or cancelled")
	}

	if err := s.finalize(ctx, goal, now); err != nil {
		return nil, err
	}
	return goal, nil
}

// Delete removes a goal.
func (s *GoalService) Delete(ctx context.Context, userID, id string) error {
	removed, err := s.store.DeleteGoal(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if !removed {
		return core.ErrNotFound
	}
	s.logger.InfoContext(ctx, "Goal deleted", log.FieldGoalID, id, log.FieldUserID, userID)
	return nil
}

// AddContribution appends a contribution, advances the current amount,
// and runs the milestone and completion checks before persisting.
func (s *GoalService) AddContribution(ctx context.Context, userID, id string, contribution core.Contribution) (*core.Goal, error) {
	if !contribution.Amount.IsPositive() {
		return nil, fieldError("amount", "must be greater than zero")
	}

	goal, err := s.store.FindGoal(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if contribution.Date.IsZero() {
		contribution.Date = now
	}
	contribution.Amount = core.Round2(contribution.Amount)

	goal.Contributions = append(goal.Contributions, contribution)
	goal.CurrentAmount = goal.CurrentAmount.Add(contribution.Amount)
	goal.UpdatedAt = now

	if err := s.finalize(ctx, goal, now); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Contribution added",
		log.FieldGoalID, goal.ID,
		log.FieldUserID, userID,
		log.FieldAmount, contribution.Amount.String(),
		"progress", goal.ProgressPercentage())
	return goal, nil
}

// finalize is the derive-then-persist pipeline shared by every goal
// mutation: analytics, milestones, the completion transition, and only
// then the save. Notifications go out after a successful persist.
func (s *GoalService) finalize(ctx context.Context, goal *core.Goal, now time.Time) error {
	newlyAchieved := s.checkMilestones(goal, now)

	completed := false
	if goal.Status == core.GoalActive && goal.IsCompleted() {
		goal.Status = core.GoalCompleted
		completed = true
	}

	s.recomputeDerived(goal, now)
	if err := s.store.SaveGoal(ctx, goal); err != nil {
		return fmt.Errorf("save goal: %w", err)
	}

	for _, m := range newlyAchieved {
		s.publish(ctx, &amqp.NotificationMessage{
			Event:     amqp.EventGoalMilestone,
			UserID:    goal.UserID,
			GoalID:    goal.ID,
			Title:     fmt.Sprintf("Milestone reached: %d%%", m.Percentage),
			Body:      fmt.Sprintf("%s reached %d%% of its target. %s", goal.Title, m.Percentage, m.Reward),
			Amount:    m.Amount,
			Timestamp: now,
		})
	}
	if completed {
		s.publish(ctx, &amqp.NotificationMessage{
			Event:     amqp.EventGoalCompleted,
			UserID:    goal.UserID,
			GoalID:    goal.ID,
			Title:     "Goal completed",
			Body:      fmt.Sprintf("%s reached its target of %s.", goal.Title, goal.TargetAmount.String()),
			Amount:    goal.TargetAmount,
			Timestamp: now,
		})
	}
	return nil
}

// checkMilestones marks reached milestones and returns the ones that
// flipped in this pass.
func (s *GoalService) checkMilestones(goal *core.Goal, now time.Time) []core.Milestone {
	before := make(map[int]bool, len(goal.Milestones))
	for _, m := range goal.Milestones {
		before[m.Percentage] = m.AchievedAt != nil
	}

	goal.CheckMilestones(now)

	var newly []core.Milestone
	for _, m := range goal.Milestones {
		if m.AchievedAt != nil && !before[m.Percentage] {
			newly = append(newly, m)
		}
	}
	return newly
}

// recomputeDerived refreshes the persisted analytics block. Average
// monthly contribution divides by at least one month so young goals do
// not explode the projection.
func (s *GoalService) recomputeDerived(goal *core.Goal, now time.Time) {
	goal.Analytics.TotalContributions = len(goal.Contributions)
	goal.Analytics.DaysToTarget = goal.DaysRemaining(now)
	goal.Analytics.AverageMonthlyContribution = decimal.Zero
	goal.Analytics.ProjectedCompletionDate = nil

	if len(goal.Contributions) == 0 {
		return
	}

	first := goal.Contributions[0].Date
	var total decimal.Decimal
	for _, c := range goal.Contributions {
		total = total.Add(c.Amount)
		if c.Date.Before(first) {
			first = c.Date
		}
	}

	months := monthsBetween(first, now)
	if months < 1 {
		months = 1
	}
	goal.Analytics.AverageMonthlyContribution = total.
		Div(decimal.NewFromInt(int64(months))).Round(2)

	remaining := goal.RemainingAmount()
	if goal.Analytics.AverageMonthlyContribution.IsPositive() && remaining.IsPositive() {
		monthsToGo := remaining.Div(goal.Analytics.AverageMonthlyContribution).
			RoundCeil(0).IntPart()
		projected := core.AddMonthsClamped(now, int(monthsToGo))
		goal.Analytics.ProjectedCompletionDate = &projected
	}
}

func (s *GoalService) publish(ctx context.Context, msg *amqp.NotificationMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishNotification(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish notification",
			"event", msg.Event, log.FieldGoalID, msg.GoalID, log.FieldError, err)
	}
}

func fieldError(field, message string) error {
	return &core.ValidationError{Fields: []core.FieldError{{Field: field, Message: message}}}
}

// monthsBetween counts whole calendar months from a to b, floored at zero.
func monthsBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
