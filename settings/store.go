// Package settings persists application and per-user configuration values.
package settings

import (
	"context"
	"sync"
)

// Store is the raw key/value persistence of settings.
type Store interface {
	AppValue(ctx context.Context, key string) (value string, ok bool, err error)
	SetAppValue(ctx context.Context, key, value string) error
	UserValue(ctx context.Context, userID, key string) (value string, ok bool, err error)
	SetUserValue(ctx context.Context, userID, key, value string) error
	DeleteUserValue(ctx context.Context, userID, key string) error
}

// MemoryStore keeps settings in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	app  map[string]string
	user map[string]map[string]string
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		app:  make(map[string]string),
		user: make(map[string]map[string]string),
	}
}

func (s *MemoryStore) AppValue(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.app[key]
	return v, ok, nil
}

func (s *MemoryStore) SetAppValue(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.app[key] = value
	return nil
}

func (s *MemoryStore) UserValue(_ context.Context, userID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.user[userID][key]
	return v, ok, nil
}

func (s *MemoryStore) SetUserValue(_ context.Context, userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user[userID] == nil {
		s.user[userID] = make(map[string]string)
	}
	s.user[userID][key] = value
	return nil
}

func (s *MemoryStore) DeleteUserValue(_ context.Context, userID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.user[userID], key)
	return nil
}
