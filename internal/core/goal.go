package core

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	GoalSavings          GoalKind = "savings"
	GoalIncomeIncrease   GoalKind = "income-increase"
	GoalExpenseReduction GoalKind = "expense-reduction"
	GoalInvestment       GoalKind = "investment"
	GoalEmergencyFund    GoalKind = "emergency-fund"
)

const (
	GoalActive    GoalStatus = "active"
	GoalPaused    GoalStatus = "paused"
	GoalCompleted GoalStatus = "completed"
	GoalCancelled GoalStatus = "cancelled"
)

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type (
	GoalKind   string
	GoalStatus string
	Priority   string

	// Milestone is a percentage checkpoint. Once AchievedAt is set it is
	// never cleared, even if the current amount later drops.
	Milestone struct {
		Percentage int             `json:"percentage"`
		Amount     decimal.Decimal `json:"amount"`
		AchievedAt *time.Time      `json:"achieved_at,omitempty"`
		Reward     string          `json:"reward,omitempty"`
	}

	Contribution struct {
		Amount        decimal.Decimal `json:"amount"`
		Date          time.Time       `json:"date"`
		Description   string          `json:"description,omitempty"`
		TransactionID string          `json:"transaction_id,omitempty"`
	}

	// GoalRecurrence schedules automatic contributions.
	GoalRecurrence struct {
		Frequency        Frequency       `json:"frequency"`
		Amount           decimal.Decimal `json:"amount"`
		NextContribution *time.Time      `json:"next_contribution,omitempty"`
	}

	// GoalAnalytics is recomputed before every persist of a Goal.
	GoalAnalytics struct {
		TotalContributions         int             `json:"total_contributions"`
		AverageMonthlyContribution decimal.Decimal `json:"average_monthly_contribution"`
		ProjectedCompletionDate    *time.Time      `json:"projected_completion_date,omitempty"`
		DaysToTarget               int             `json:"days_to_target"`
	}

	Goal struct {
		ID            string          `json:"id"`
		Title         string          `json:"title"`
		Description   string          `json:"description,omitempty"`
		Kind          GoalKind        `json:"kind"`
		TargetAmount  decimal.Decimal `json:"target_amount"`
		CurrentAmount decimal.Decimal `json:"current_amount"`
		TargetDate    time.Time       `json:"target_date"`
		UserID        string          `json:"user_id"`
		CategoryID    string          `json:"category_id,omitempty"`
		Status        GoalStatus      `json:"status"`
		Priority      Priority        `json:"priority"`
		Recurring     *GoalRecurrence `json:"recurring,omitempty"`
		Milestones    []Milestone     `json:"milestones"`
		Contributions []Contribution  `json:"contributions"`
		Tags          []string        `json:"tags,omitempty"`
		Analytics     GoalAnalytics   `json:"analytics"`
		CreatedAt     time.Time       `json:"created_at"`
		UpdatedAt     time.Time       `json:"updated_at"`
	}
)

func (k GoalKind) Valid() bool {
	switch k {
	case GoalSavings, GoalIncomeIncrease, GoalExpenseReduction, GoalInvestment, GoalEmergencyFund:
		return true
	}
	return false
}

func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalPaused, GoalCompleted, GoalCancelled:
		return true
	}
	return false
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Validate checks a goal at creation time; now is injected so the
// strictly-future target date rule stays testable.
func (g Goal) Validate(now time.Time) error {
	ve := &ValidationError{}

	title := strings.TrimSpace(g.Title)
	if title == "" {
		ve.add("title", "is required")
	}
	if len(title) > 100 {
		ve.add("title", "must have at most 100 characters")
	}
	if len(g.Description) > 500 {
		ve.add("description", "must have at most 500 characters")
	}
	if !g.Kind.Valid() {
		ve.add("kind", "must be savings, income-increase, expense-reduction, investment or emergency-fund")
	}
	if !g.TargetAmount.IsPositive() {
		ve.add("target_amount", "must be greater than zero")
	}
	if g.CurrentAmount.IsNegative() {
		ve.add("current_amount", "cannot be negative")
	}
	if !g.TargetDate.After(now) {
		ve.add("target_date", "must be in the future")
	}
	if g.UserID == "" {
		ve.add("user_id", "is required")
	}
	if g.Status != "" && !g.Status.Valid() {
		ve.add("status", "must be active, paused, completed or cancelled")
	}
	if g.Priority != "" && !g.Priority.Valid() {
		ve.add("priority", "must be low, medium or high")
	}
	if g.Recurring != nil {
		if !g.Recurring.Frequency.Valid() {
			ve.add("recurring.frequency", "must be daily, weekly, monthly or yearly")
		}
		if !g.Recurring.Amount.IsPositive() {
			ve.add("recurring.amount", "must be greater than zero")
		}
	}

	return ve.orNil()
}

// ProgressPercentage returns min(100, round(current/target*100)).
func (g Goal) ProgressPercentage() int {
	if g.TargetAmount.IsZero() {
		return 0
	}
	pct := g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if pct > 100 {
		pct = 100
	}
	return int(pct)
}

// RemainingAmount returns max(target-current, 0).
func (g Goal) RemainingAmount() decimal.Decimal {
	rem := g.TargetAmount.Sub(g.CurrentAmount)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// IsCompleted reports whether the current amount has reached the target.
func (g Goal) IsCompleted() bool {
	return g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount)
}

// DaysRemaining returns the number of days until the target date; negative
// when the date has passed.
func (g Goal) DaysRemaining(now time.Time) int {
	return int(math.Ceil(g.TargetDate.Sub(now).Hours() / 24))
}

// RequiredMonthlyContribution estimates the monthly amount needed to reach
// the target by the target date, using 30-day months.
func (g Goal) RequiredMonthlyContribution(now time.Time) decimal.Decimal {
	months := float64(g.DaysRemaining(now)) / 30
	if months < 1 {
		months = 1
	}
	return g.RemainingAmount().Div(decimal.NewFromFloat(months)).RoundCeil(2)
}

// CheckMilestones marks every milestone whose threshold is reached and not
// yet achieved. Achievement is permanent.
func (g *Goal) CheckMilestones(now time.Time) {
	progress := g.ProgressPercentage()
	for i := range g.Milestones {
		m := &g.Milestones[i]
		if progress >= m.Percentage && m.AchievedAt == nil {
			at := now
			m.AchievedAt = &at
		}
	}
}

// DefaultMilestones builds the standard 25/50/75/100 checkpoints for a
// target amount.
func DefaultMilestones(target decimal.Decimal) []Milestone {
	quarter := func(pct int64) decimal.Decimal {
		return target.Mul(decimal.New(pct, -2)).Round(2)
	}
	return []Milestone{
		{Percentage: 25, Amount: quarter(25), Reward: "First milestone reached!"},
		{Percentage: 50, Amount: quarter(50), Reward: "Halfway there!"},
		{Percentage: 75, Amount: quarter(75), Reward: "Almost done!"},
		{Percentage: 100, Amount: target, Reward: "Goal completed!"},
	}
}
