// Package memory provides an in-memory Store used by tests and by the
// memory backend. Records are deep-copied on the way in and out so callers
// cannot mutate stored state through shared pointers.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"financas/internal/core"
	"financas/internal/storage"
)

type Store struct {
	mu           sync.RWMutex
	transactions map[string]*core.Transaction
	categories   map[string]*core.Category
	goals        map[string]*core.Goal
	users        map[string]*core.User
}

func NewStore() *Store {
	return &Store{
		transactions: make(map[string]*core.Transaction),
		categories:   make(map[string]*core.Category),
		goals:        make(map[string]*core.Goal),
		users:        make(map[string]*core.User),
	}
}

func (s *Store) Close() error { return nil }

// clone round-trips through JSON, which is slow but keeps the copy rules
// identical to the SQLite document encoding.
func clone[T any](v *T) *T {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		panic(err)
	}
	return out
}

// --- transactions ---

func (s *Store) SaveTransaction(ctx context.Context, tx *core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.ID] = clone(tx)
	return nil
}

func (s *Store) FindTransaction(ctx context.Context, userID, id string) (*core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok || tx.UserID != userID {
		return nil, core.ErrNotFound
	}
	return clone(tx), nil
}

func (s *Store) FindTransactions(ctx context.Context, q storage.TransactionQuery) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, tx := range s.transactions {
		if q.UserID != "" && tx.UserID != q.UserID {
			continue
		}
		if q.CategoryID != "" && tx.CategoryID != q.CategoryID {
			continue
		}
		if q.Kind != "" && tx.Kind != q.Kind {
			continue
		}
		if q.Status != "" && tx.Status != q.Status {
			continue
		}
		if q.From != nil && tx.Date.Before(*q.From) {
			continue
		}
		if q.To != nil && tx.Date.After(*q.To) {
			continue
		}
		out = append(out, *clone(tx))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok || tx.UserID != userID {
		return false, nil
	}
	delete(s.transactions, id)
	return true, nil
}

func (s *Store) DeleteTransactionsByCategory(ctx context.Context, categoryID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, tx := range s.transactions {
		if tx.CategoryID == categoryID {
			delete(s.transactions, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) FindDueRecurringTransactions(ctx context.Context, dueBy time.Time) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, tx := range s.transactions {
		if tx.Status != core.StatusConfirmed || tx.Recurrence == nil || tx.Recurrence.NextOccurrence == nil {
			continue
		}
		if tx.Recurrence.NextOccurrence.After(dueBy) {
			continue
		}
		out = append(out, *clone(tx))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Recurrence.NextOccurrence.Before(*out[j].Recurrence.NextOccurrence)
	})
	return out, nil
}

// --- categories ---

func (s *Store) SaveCategory(ctx context.Context, c *core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := strings.ToLower(strings.TrimSpace(c.Name))
	for _, other := range s.categories {
		if other.ID == c.ID {
			continue
		}
		if other.UserID == c.UserID && strings.ToLower(strings.TrimSpace(other.Name)) == name {
			return core.ErrDuplicateCategory
		}
	}
	s.categories[c.ID] = clone(c)
	return nil
}

func (s *Store) FindCategory(ctx context.Context, userID, id string) (*core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return nil, core.ErrNotFound
	}
	return clone(c), nil
}

func (s *Store) FindCategoryByName(ctx context.Context, userID, name string) (*core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := strings.ToLower(strings.TrimSpace(name))
	for _, c := range s.categories {
		if c.UserID == userID && strings.ToLower(strings.TrimSpace(c.Name)) == want {
			return clone(c), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) FindCategories(ctx context.Context, userID string) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, *clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *Store) DeleteCategory(ctx context.Context, userID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(s.categories, id)
	return true, nil
}

// --- goals ---

func (s *Store) SaveGoal(ctx context.Context, g *core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.ID] = clone(g)
	return nil
}

func (s *Store) FindGoal(ctx context.Context, userID, id string) (*core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return nil, core.ErrNotFound
	}
	return clone(g), nil
}

func (s *Store) FindGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Goal
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, *clone(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteGoal(ctx context.Context, userID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return false, nil
	}
	delete(s.goals, id)
	return true, nil
}

func (s *Store) FindDueRecurringGoals(ctx context.Context, dueBy time.Time) ([]core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Goal
	for _, g := range s.goals {
		if g.Status != core.GoalActive || g.Recurring == nil || g.Recurring.NextContribution == nil {
			continue
		}
		if g.Recurring.NextContribution.After(dueBy) {
			continue
		}
		out = append(out, *clone(g))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Recurring.NextContribution.Before(*out[j].Recurring.NextContribution)
	})
	return out, nil
}

// --- users ---

func (s *Store) SaveUser(ctx context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := core.NormalizeEmail(u.Email)
	for _, other := range s.users {
		if other.ID != u.ID && core.NormalizeEmail(other.Email) == email {
			return core.ErrDuplicateEmail
		}
	}
	c := clone(u)
	c.PasswordHash = u.PasswordHash
	s.users[u.ID] = c
	return nil
}

func (s *Store) FindUser(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	c := clone(u)
	c.PasswordHash = u.PasswordHash
	return c, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := core.NormalizeEmail(email)
	for _, u := range s.users {
		if core.NormalizeEmail(u.Email) == want {
			c := clone(u)
			c.PasswordHash = u.PasswordHash
			return c, nil
		}
	}
	return nil, core.ErrNotFound
}
