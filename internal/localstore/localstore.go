// Package localstore is a small persistent key-value store holding the
// client's string-encoded local state: remembered credentials, the
// message cache and the read-message set.
package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists string keys and values in a single JSON file. Writes
// go to disk immediately. A missing or malformed backing file is
// treated as an empty store rather than an error, so a corrupted state
// file degrades to a cold cache instead of breaking the client.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		values: map[string]string{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	if err := json.Unmarshal(data, &s.values); err != nil {
		// Corrupted state starts over empty.
		s.values = map[string]string{}
	}

	return s, nil
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	return v, ok
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.flush()
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flush()
}

func (s *Store) flush() error {
	data, err := json.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("ensure state dir: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}
