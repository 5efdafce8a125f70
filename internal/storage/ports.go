// Package storage defines the persistence contract the services depend on
// and its SQLite implementation. Records are stored as JSON documents with
// a few extracted columns for indexing; nothing outside this package knows
// which store technology backs the contract.
package storage

import (
	"context"
	"time"

	"financas/internal/core"
)

// TransactionQuery narrows a transaction scan. Zero-valued fields are
// ignored.
type TransactionQuery struct {
	UserID     string
	CategoryID string
	Kind       core.TransactionKind
	Status     core.TransactionStatus
	From       *time.Time
	To         *time.Time
}

type TransactionStore interface {
	FindTransactions(ctx context.Context, q TransactionQuery) ([]core.Transaction, error)
	FindTransaction(ctx context.Context, userID, id string) (*core.Transaction, error)
	SaveTransaction(ctx context.Context, tx *core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) (bool, error)
	DeleteTransactionsByCategory(ctx context.Context, categoryID string) (int64, error)
	// FindDueRecurringTransactions returns confirmed recurring templates
	// whose next occurrence falls on or before dueBy.
	FindDueRecurringTransactions(ctx context.Context, dueBy time.Time) ([]core.Transaction, error)
}

type CategoryStore interface {
	FindCategories(ctx context.Context, userID string) ([]core.Category, error)
	FindCategory(ctx context.Context, userID, id string) (*core.Category, error)
	// FindCategoryByName matches case-insensitively.
	FindCategoryByName(ctx context.Context, userID, name string) (*core.Category, error)
	SaveCategory(ctx context.Context, c *core.Category) error
	DeleteCategory(ctx context.Context, userID, id string) (bool, error)
}

type GoalStore interface {
	FindGoals(ctx context.Context, userID string) ([]core.Goal, error)
	FindGoal(ctx context.Context, userID, id string) (*core.Goal, error)
	SaveGoal(ctx context.Context, g *core.Goal) error
	DeleteGoal(ctx context.Context, userID, id string) (bool, error)
	// FindDueRecurringGoals returns active goals with a recurring
	// contribution scheduled on or before dueBy.
	FindDueRecurringGoals(ctx context.Context, dueBy time.Time) ([]core.Goal, error)
}

type UserStore interface {
	FindUser(ctx context.Context, id string) (*core.User, error)
	FindUserByEmail(ctx context.Context, email string) (*core.User, error)
	SaveUser(ctx context.Context, u *core.User) error
}

// Store is the full persistence surface a backend must provide.
type Store interface {
	TransactionStore
	CategoryStore
	GoalStore
	UserStore
	Close() error
}
