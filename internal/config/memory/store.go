// Package memory provides an in-memory ConfigStore implementation.
package memory

import (
	"context"
	"maps"
	"sync"

	"mapsources/internal/config"
)

// Store is an in-memory ConfigStore implementation.
// Intended for testing. Configuration is not persisted across restarts.
type Store struct {
	mu       sync.RWMutex
	settings map[string]string
}

var _ config.Store = (*Store)(nil)

// NewStore creates a new in-memory ConfigStore.
func NewStore() *Store {
	return &Store{settings: make(map[string]string)}
}

// Load returns the stored configuration.
// Returns nil if no setting has been saved.
func (s *Store) Load(ctx context.Context) (*config.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.settings) == 0 {
		return nil, nil
	}
	return &config.Config{Settings: maps.Clone(s.settings)}, nil
}

// GetSetting returns the value for key, or nil if absent.
func (s *Store) GetSetting(ctx context.Context, key string) (*string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.settings[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// ListSettings returns a copy of all settings.
func (s *Store) ListSettings(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.settings), nil
}

// PutSetting stores the value in memory.
func (s *Store) PutSetting(ctx context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

// DeleteSetting removes key.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.settings, key)
	return nil
}
