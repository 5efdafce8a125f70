// Package filters persists named, reusable query filters as a flat list
// under a single key-value entry. Usage tracking (usage count, last used)
// is updated only through ApplyFilterUsage, never through Update.
package filters

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/core"
	"financas/internal/kv"
	"financas/internal/log"
)

const storageKey = "saved_filters"

// ErrFilterNotFound is returned by Update and ApplyFilterUsage for an
// unknown identifier.
var ErrFilterNotFound = errors.New("saved filter not found")

// Criteria is the query specification a filter captures.
type Criteria struct {
	From        *time.Time             `json:"from,omitempty"`
	To          *time.Time             `json:"to,omitempty"`
	MinAmount   *decimal.Decimal       `json:"min_amount,omitempty"`
	MaxAmount   *decimal.Decimal       `json:"max_amount,omitempty"`
	CategoryIDs []string               `json:"category_ids,omitempty"`
	Kinds       []core.TransactionKind `json:"kinds,omitempty"`
	Recurring   *bool                  `json:"recurring,omitempty"`
	Search      string                 `json:"search,omitempty"`
}

// SavedFilter is a named Criteria plus bookkeeping timestamps.
type SavedFilter struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Criteria     Criteria   `json:"criteria"`
	CreatedAt    time.Time  `json:"created_at"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	LastUsed     time.Time  `json:"last_used"`
	UsageCount   int        `json:"usage_count"`
}

// Patch enumerates the fields Update may change. Nil fields are left
// untouched.
type Patch struct {
	Name     *string
	Criteria *Criteria
}

// Store is the saved-filter CRUD layer over a key-value store.
type Store struct {
	mu     sync.Mutex
	kv     kv.Store
	logger *log.Logger
	now    func() time.Time
}

func NewStore(kvStore kv.Store, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentFilters})
	}
	return &Store{
		kv:     kvStore,
		logger: logger.WithComponent(log.ComponentFilters),
		now:    time.Now,
	}
}

// load reads the stored list. An unreadable blob is treated as absent and
// replaced by an empty list on the next write.
func (s *Store) load() []SavedFilter {
	raw, err := s.kv.GetItem(storageKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn("Failed to read saved filters, starting empty", log.FieldError, err)
		}
		return nil
	}
	var list []SavedFilter
	if err := json.Unmarshal(raw, &list); err != nil {
		s.logger.Warn("Corrupt saved filters blob, starting empty", log.FieldError, err)
		return nil
	}
	return list
}

func (s *Store) persist(list []SavedFilter) error {
	if list == nil {
		list = []SavedFilter{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal saved filters: %w", err)
	}
	if err := s.kv.SetItem(storageKey, raw); err != nil {
		return fmt.Errorf("persist saved filters: %w", err)
	}
	return nil
}

// List returns all saved filters.
func (s *Store) List() ([]SavedFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

// Save appends a new filter, assigning a timestamp-derived identifier and
// zeroed usage tracking.
func (s *Store) Save(name string, criteria Criteria) (*SavedFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	filter := SavedFilter{
		ID:         fmt.Sprintf("%d", now.UnixNano()),
		Name:       name,
		Criteria:   criteria,
		CreatedAt:  now,
		LastUsed:   now,
		UsageCount: 0,
	}

	list := append(s.load(), filter)
	if err := s.persist(list); err != nil {
		return nil, err
	}

	s.logger.Debug("Saved filter created", log.FieldFilterID, filter.ID, "name", name)
	return &filter, nil
}

// Update applies the patch to the filter with the given id and stamps
// LastModified. Usage tracking is deliberately out of reach here.
func (s *Store) Update(id string, patch Patch) (*SavedFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.load()
	for i := range list {
		if list[i].ID != id {
			continue
		}
		if patch.Name != nil {
			list[i].Name = *patch.Name
		}
		if patch.Criteria != nil {
			list[i].Criteria = *patch.Criteria
		}
		modified := s.now()
		list[i].LastModified = &modified

		if err := s.persist(list); err != nil {
			return nil, err
		}
		out := list[i]
		return &out, nil
	}
	return nil, ErrFilterNotFound
}

// Delete removes the filter with the given id, reporting whether a
// removal occurred. Deleting an unknown id leaves the list unchanged.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.load()
	for i := range list {
		if list[i].ID == id {
			list = append(list[:i], list[i+1:]...)
			if err := s.persist(list); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// ApplyFilterUsage increments the usage count and refreshes LastUsed.
// Using a filter is tracked independently from editing it.
func (s *Store) ApplyFilterUsage(id string) (*SavedFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.load()
	for i := range list {
		if list[i].ID != id {
			continue
		}
		list[i].UsageCount++
		list[i].LastUsed = s.now()

		if err := s.persist(list); err != nil {
			return nil, err
		}
		out := list[i]
		return &out, nil
	}
	return nil, ErrFilterNotFound
}
