package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"financas/internal/cache"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"
)

// CategoryPatch enumerates the fields Update may change. Stats are
// deliberately absent; they are only ever derived.
type CategoryPatch struct {
	Name        *string
	Description *string
	Color       *string
	Icon        *string
	Budget      *core.CategoryBudget
}

// CategoryService owns the category lifecycle, including the cascade
// delete of referencing transactions.
type CategoryService struct {
	store  storage.Store
	cache  *cache.MemoCache[Summary]
	logger *log.Logger
	now    func() time.Time
}

func NewCategoryService(store storage.Store, memo *cache.MemoCache[Summary], logger *log.Logger) *CategoryService {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentCategory})
	}
	return &CategoryService{
		store:  store,
		cache:  memo,
		logger: logger.WithComponent(log.ComponentCategory),
		now:    time.Now,
	}
}

// Create validates and persists a new category. Names are unique per
// owner, case-insensitively.
func (s *CategoryService) Create(ctx context.Context, category core.Category) (*core.Category, error) {
	now := s.now()
	category.ID = uuid.NewString()
	category.Stats = core.CategoryStats{}
	category.CreatedAt = now
	category.UpdatedAt = now

	if err := category.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.FindCategoryByName(ctx, category.UserID, category.Name); err == nil {
		return nil, core.ErrDuplicateCategory
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("check category name: %w", err)
	}

	if err := s.store.SaveCategory(ctx, &category); err != nil {
		return nil, fmt.Errorf("save category: %w", err)
	}

	s.logger.InfoContext(ctx, "Category created",
		log.FieldCategoryID, category.ID, log.FieldUserID, category.UserID, "name", category.Name)
	return &category, nil
}

// CreateDefaults provisions the fixed default category set for a new
// account. Individual collisions are skipped, not fatal.
func (s *CategoryService) CreateDefaults(ctx context.Context, userID string) ([]core.Category, error) {
	now := s.now()
	var created []core.Category
	for _, category := range core.DefaultCategories(userID) {
		category.ID = uuid.NewString()
		category.CreatedAt = now
		category.UpdatedAt = now

		if err := s.store.SaveCategory(ctx, &category); err != nil {
			if errors.Is(err, core.ErrDuplicateCategory) {
				continue
			}
			return created, fmt.Errorf("save default category %q: %w", category.Name, err)
		}
		created = append(created, category)
	}

	s.logger.InfoContext(ctx, "Default categories created",
		log.FieldUserID, userID, "count", len(created))
	return created, nil
}

// Get returns one category scoped to its owner.
func (s *CategoryService) Get(ctx context.Context, userID, id string) (*core.Category, error) {
	return s.store.FindCategory(ctx, userID, id)
}

// List returns all of a user's categories ordered by name.
func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	return s.store.FindCategories(ctx, userID)
}

// Update applies a typed patch. Kind is immutable after creation; the
// transactions referencing the category already agreed with it.
func (s *CategoryService) Update(ctx context.Context, userID, id string, patch CategoryPatch) (*core.Category, error) {
	category, err := s.store.FindCategory(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		category.Name = *patch.Name
	}
	if patch.Description != nil {
		category.Description = *patch.Description
	}
	if patch.Color != nil {
		category.Color = *patch.Color
	}
	if patch.Icon != nil {
		category.Icon = *patch.Icon
	}
	if patch.Budget != nil {
		category.Budget = *patch.Budget
	}
	category.UpdatedAt = s.now()

	if err := category.Validate(); err != nil {
		return nil, err
	}

	if patch.Name != nil {
		existing, err := s.store.FindCategoryByName(ctx, userID, category.Name)
		if err == nil && existing.ID != id {
			return nil, core.ErrDuplicateCategory
		} else if err != nil && !errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("check category name: %w", err)
		}
	}

	if err := s.store.SaveCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("save category: %w", err)
	}
	return category, nil
}

// Delete removes a category and cascades to every transaction that
// references it. A category never outlives orphaned references.
func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.store.FindCategory(ctx, userID, id); err != nil {
		return err
	}

	deleted, err := s.store.DeleteTransactionsByCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("cascade delete transactions: %w", err)
	}

	removed, err := s.store.DeleteCategory(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if !removed {
		return core.ErrNotFound
	}

	if s.cache != nil {
		s.cache.Invalidate(summaryCachePrefix, nil)
	}

	s.logger.InfoContext(ctx, "Category deleted",
		log.FieldCategoryID, id, log.FieldUserID, userID, "cascaded_transactions", deleted)
	return nil
}

// RecomputeStats re-derives and persists the denormalized stats of one
// category on demand.
func (s *CategoryService) RecomputeStats(ctx context.Context, userID, id string) (*core.Category, error) {
	if err := RecomputeCategoryStats(ctx, s.store, userID, id, s.now()); err != nil {
		return nil, err
	}
	return s.store.FindCategory(ctx, userID, id)
}
