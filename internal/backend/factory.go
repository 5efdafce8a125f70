package backend

import (
	"context"
	"fmt"

	"financas/internal/log"
	"financas/internal/storage"
	"financas/internal/storage/memory"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory.
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentBackend})
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &Result{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*Result, error) {
	store := memory.NewStore()

	f.logger.Info("Initialized memory backend")

	return &Result{
		Store:   store,
		Cleanup: nil,
	}, nil
}
