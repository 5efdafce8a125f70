package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// CategoryStats is a denormalized cache of an aggregate query over the
	// transactions referencing the category. It is always recomputed in
	// full, never hand-mutated.
	CategoryStats struct {
		TotalTransactions   int             `json:"total_transactions"`
		TotalAmount         decimal.Decimal `json:"total_amount"`
		AverageAmount       decimal.Decimal `json:"average_amount"`
		LastTransactionDate *time.Time      `json:"last_transaction_date,omitempty"`
	}

	CategoryBudget struct {
		Monthly decimal.Decimal `json:"monthly"`
		Yearly  decimal.Decimal `json:"yearly"`
	}

	Category struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Kind        TransactionKind `json:"kind"`
		Color       string          `json:"color"`
		Icon        string          `json:"icon,omitempty"`
		UserID      string          `json:"user_id"`
		IsDefault   bool            `json:"is_default"`
		Budget      CategoryBudget  `json:"budget"`
		Stats       CategoryStats   `json:"stats"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at"`
	}
)

func (c Category) Validate() error {
	ve := &ValidationError{}

	name := strings.TrimSpace(c.Name)
	if name == "" {
		ve.add("name", "is required")
	}
	if len(name) > 50 {
		ve.add("name", "must have at most 50 characters")
	}
	if len(c.Description) > 200 {
		ve.add("description", "must have at most 200 characters")
	}
	if !c.Kind.Valid() {
		ve.add("kind", "must be income or expense")
	}
	if !hexColorRe.MatchString(c.Color) {
		ve.add("color", "must be a hex color code like #22c55e")
	}
	if c.UserID == "" {
		ve.add("user_id", "is required")
	}
	if c.Budget.Monthly.IsNegative() {
		ve.add("budget.monthly", "cannot be negative")
	}
	if c.Budget.Yearly.IsNegative() {
		ve.add("budget.yearly", "cannot be negative")
	}

	return ve.orNil()
}

// IsOnBudget reports whether accumulated spending fits the monthly ceiling.
// Categories without a ceiling are always on budget.
func (c Category) IsOnBudget() bool {
	if c.Budget.Monthly.IsZero() {
		return true
	}
	return c.Stats.TotalAmount.LessThanOrEqual(c.Budget.Monthly)
}

// BudgetUsagePercentage returns how much of the monthly ceiling is used,
// rounded to the nearest whole percent. Zero when no ceiling is set.
func (c Category) BudgetUsagePercentage() int {
	if c.Budget.Monthly.IsZero() {
		return 0
	}
	pct := c.Stats.TotalAmount.Div(c.Budget.Monthly).Mul(decimal.NewFromInt(100))
	return int(pct.Round(0).IntPart())
}

// DefaultCategories returns the fixed category set created for every new
// account.
func DefaultCategories(userID string) []Category {
	mk := func(name, desc string, kind TransactionKind, color, icon string) Category {
		return Category{
			Name:        name,
			Description: desc,
			Kind:        kind,
			Color:       color,
			Icon:        icon,
			UserID:      userID,
			IsDefault:   true,
		}
	}
	return []Category{
		mk("Salary", "Primary work income", Income, "#22c55e", "dollar-sign"),
		mk("Freelance", "Side projects and extra work", Income, "#3b82f6", "briefcase"),
		mk("Investments", "Investment returns", Income, "#8b5cf6", "trending-up"),
		mk("Housing", "Rent, mortgage, utilities", Expense, "#ef4444", "home"),
		mk("Food", "Groceries and restaurants", Expense, "#f59e0b", "utensils"),
		mk("Transport", "Fuel and public transport", Expense, "#06b6d4", "car"),
		mk("Health", "Insurance and medicine", Expense, "#10b981", "heart"),
		mk("Leisure", "Entertainment and travel", Expense, "#ec4899", "gamepad-2"),
	}
}
