// Package memory is a process-local key-value store. It backs the "memory"
// backend and doubles as the fake in tests.
package memory

import (
	"context"
	"sync"
)

type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

func New() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Update runs fn under the write lock. Nothing is written if fn fails.
func (s *Store) Update(_ context.Context, key string, fn func(old string, ok bool) (string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.data[key]
	next, err := fn(old, ok)
	if err != nil {
		return err
	}
	s.data[key] = next
	return nil
}
