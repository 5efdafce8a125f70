package kv

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

var keyRe = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// FileStore persists each key as a JSON file under a base directory.
// Writes go through a temp file and rename so a crash never leaves a
// half-written value behind.
type FileStore struct {
	mu   sync.Mutex
	base string
}

func NewFileStore(base string) (*FileStore, error) {
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("create kv directory: %w", err)
	}
	return &FileStore{base: base}, nil
}

func (s *FileStore) path(key string) (string, error) {
	if !keyRe.MatchString(key) {
		return "", fmt.Errorf("invalid kv key %q", key)
	}
	return filepath.Join(s.base, key+".json"), nil
}

func (s *FileStore) GetItem(key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read kv key %q: %w", key, err)
	}
	return data, nil
}

func (s *FileStore) SetItem(key string, value []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, value, 0644); err != nil {
		return fmt.Errorf("write kv key %q: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("commit kv key %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) RemoveItem(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove kv key %q: %w", key, err)
	}
	return nil
}
