package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"financas/internal/auth"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"
)

// UserService handles registration and credential checks. New accounts
// get the default category set.
type UserService struct {
	store      storage.Store
	categories *CategoryService
	logger     *log.Logger
	now        func() time.Time
}

func NewUserService(store storage.Store, categories *CategoryService, logger *log.Logger) *UserService {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentAuth})
	}
	return &UserService{
		store:      store,
		categories: categories,
		logger:     logger.WithComponent(log.ComponentAuth),
		now:        time.Now,
	}
}

// Register creates an account and provisions its default categories.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*core.User, error) {
	now := s.now()
	user := core.User{
		ID:          uuid.NewString(),
		Name:        name,
		Email:       core.NormalizeEmail(email),
		Preferences: core.DefaultPreferences(),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := user.ValidateRegistration(password); err != nil {
		return nil, err
	}

	if _, err := s.store.FindUserByEmail(ctx, user.Email); err == nil {
		return nil, core.ErrDuplicateEmail
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := s.store.SaveUser(ctx, &user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}

	if _, err := s.categories.CreateDefaults(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to provision default categories",
			log.FieldUserID, user.ID, log.FieldError, err)
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, user.ID)
	return &user, nil
}

// Authenticate checks credentials and returns the account. The same
// error covers unknown email and wrong password.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*core.User, error) {
	user, err := s.store.FindUserByEmail(ctx, core.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, core.ErrInvalidCredentials
	}
	return user, nil
}

// Get returns an account by id.
func (s *UserService) Get(ctx context.Context, id string) (*core.User, error) {
	return s.store.FindUser(ctx, id)
}
