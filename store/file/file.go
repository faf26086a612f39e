// Package file persists keys as a single JSON object on disk, the way a
// browser profile keeps its local storage between sessions.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Store keeps every key in memory and rewrites the whole file on each Set.
type Store struct {
	mu       sync.RWMutex
	filePath string
	data     map[string]string
}

// Open loads the store from filePath, or starts empty if the file does not
// exist. Returns an error only on unexpected I/O failures or a corrupt file.
func Open(filePath string) (*Store, error) {
	s := &Store{filePath: filePath, data: map[string]string{}}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filePath, err)
	}
	if s.data == nil {
		s.data = map[string]string{}
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.filePath }

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(key, value)
}

// Update runs fn and persists its result under one lock.
func (s *Store) Update(_ context.Context, key string, fn func(old string, ok bool) (string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.data[key]
	next, err := fn(old, ok)
	if err != nil {
		return err
	}
	return s.put(key, next)
}

// put writes the file first and only then updates memory. Caller holds s.mu.
func (s *Store) put(key, value string) error {
	next := make(map[string]string, len(s.data)+1)
	for k, v := range s.data {
		next[k] = v
	}
	next[key] = value
	if err := s.writeAtomic(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

// writeAtomic writes to a temp file then renames it over filePath.
func (s *Store) writeAtomic(data map[string]string) error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.filePath + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
