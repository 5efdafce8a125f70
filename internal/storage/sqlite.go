package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"financas/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = time.RFC3339

// SQLiteRepository implements Store over a single SQLite database. Each
// record is a JSON document; columns mirror just the fields queries filter
// or sort on.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- transactions ---

func (r *SQLiteRepository) SaveTransaction(ctx context.Context, tx *core.Transaction) error {
	doc, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	var next sql.NullString
	if tx.Recurrence != nil && tx.Recurrence.NextOccurrence != nil {
		next = sql.NullString{String: tx.Recurrence.NextOccurrence.Format(dateLayout), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, category_id, kind, status, tx_date, next_occurrence, doc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			category_id = excluded.category_id,
			kind = excluded.kind,
			status = excluded.status,
			tx_date = excluded.tx_date,
			next_occurrence = excluded.next_occurrence,
			doc = excluded.doc`,
		tx.ID, tx.UserID, tx.CategoryID, string(tx.Kind), string(tx.Status),
		tx.Date.Format(dateLayout), next, string(doc))
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved", "id", tx.ID, "kind", tx.Kind)
	return nil
}

func (r *SQLiteRepository) FindTransaction(ctx context.Context, userID, id string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT doc FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	return scanDoc[core.Transaction](row)
}

func (r *SQLiteRepository) FindTransactions(ctx context.Context, q TransactionQuery) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if q.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, q.UserID)
	}
	if q.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, q.CategoryID)
	}
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(q.Kind))
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.From != nil {
		where = append(where, "tx_date >= ?")
		args = append(args, q.From.Format(dateLayout))
	}
	if q.To != nil {
		where = append(where, "tx_date <= ?")
		args = append(args, q.To.Format(dateLayout))
	}

	query := "SELECT doc FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY tx_date DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	defer rows.Close()
	return scanDocs[core.Transaction](rows)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete transaction: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *SQLiteRepository) DeleteTransactionsByCategory(ctx context.Context, categoryID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE category_id = ?`, categoryID)
	if err != nil {
		return 0, fmt.Errorf("delete transactions by category: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *SQLiteRepository) FindDueRecurringTransactions(ctx context.Context, dueBy time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT doc FROM transactions
		WHERE next_occurrence IS NOT NULL AND next_occurrence <= ? AND status = ?
		ORDER BY next_occurrence`,
		dueBy.Format(dateLayout), string(core.StatusConfirmed))
	if err != nil {
		return nil, fmt.Errorf("find due recurring transactions: %w", err)
	}
	defer rows.Close()
	return scanDocs[core.Transaction](rows)
}

// --- categories ---

func (r *SQLiteRepository) SaveCategory(ctx context.Context, c *core.Category) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal category: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name_lower, kind, doc)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name_lower = excluded.name_lower,
			kind = excluded.kind,
			doc = excluded.doc`,
		c.ID, c.UserID, strings.ToLower(strings.TrimSpace(c.Name)), string(c.Kind), string(doc))
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrDuplicateCategory
		}
		return fmt.Errorf("save category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindCategory(ctx context.Context, userID, id string) (*core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT doc FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	return scanDoc[core.Category](row)
}

func (r *SQLiteRepository) FindCategoryByName(ctx context.Context, userID, name string) (*core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT doc FROM categories WHERE user_id = ? AND name_lower = ?`,
		userID, strings.ToLower(strings.TrimSpace(name)))
	return scanDoc[core.Category](row)
}

func (r *SQLiteRepository) FindCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT doc FROM categories WHERE user_id = ? ORDER BY name_lower`, userID)
	if err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}
	defer rows.Close()
	return scanDocs[core.Category](rows)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// --- goals ---

func (r *SQLiteRepository) SaveGoal(ctx context.Context, g *core.Goal) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal goal: %w", err)
	}

	var next sql.NullString
	if g.Recurring != nil && g.Recurring.NextContribution != nil {
		next = sql.NullString{String: g.Recurring.NextContribution.Format(dateLayout), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO goals (id, user_id, status, next_contribution, doc)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			next_contribution = excluded.next_contribution,
			doc = excluded.doc`,
		g.ID, g.UserID, string(g.Status), next, string(doc))
	if err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindGoal(ctx context.Context, userID, id string) (*core.Goal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT doc FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	return scanDoc[core.Goal](row)
}

func (r *SQLiteRepository) FindGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT doc FROM goals WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("find goals: %w", err)
	}
	defer rows.Close()
	return scanDocs[core.Goal](rows)
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete goal: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *SQLiteRepository) FindDueRecurringGoals(ctx context.Context, dueBy time.Time) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT doc FROM goals
		WHERE next_contribution IS NOT NULL AND next_contribution <= ? AND status = ?
		ORDER BY next_contribution`,
		dueBy.Format(dateLayout), string(core.GoalActive))
	if err != nil {
		return nil, fmt.Errorf("find due recurring goals: %w", err)
	}
	defer rows.Close()
	return scanDocs[core.Goal](rows)
}

// --- users ---

func (r *SQLiteRepository) SaveUser(ctx context.Context, u *core.User) error {
	doc, err := json.Marshal(userDoc{User: u, PasswordHash: u.PasswordHash})
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, doc) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email, doc = excluded.doc`,
		u.ID, core.NormalizeEmail(u.Email), string(doc))
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrDuplicateEmail
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindUser(ctx context.Context, id string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT doc FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *SQLiteRepository) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT doc FROM users WHERE email = ?`, core.NormalizeEmail(email))
	return scanUser(row)
}

// userDoc re-attaches the password hash, which core.User hides from JSON.
type userDoc struct {
	*core.User
	PasswordHash string `json:"password_hash"`
}

func scanUser(row *sql.Row) (*core.User, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	var d userDoc
	d.User = &core.User{}
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	d.User.PasswordHash = d.PasswordHash
	return d.User, nil
}

// --- helpers ---

func scanDoc[T any](row *sql.Row) (*T, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &v, nil
}

func scanDocs[T any](rows *sql.Rows) ([]T, error) {
	var out []T
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("unmarshal document: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
