package settings

import (
	"context"
	"fmt"
	"sync"
)

type memoryStore struct {
	items map[string]Settings
	mutex sync.RWMutex
}

// NewMemory builds an in-memory settings store. Contents are lost on restart.
func NewMemory() Store {
	return &memoryStore{items: make(map[string]Settings)}
}

func (s *memoryStore) Get(_ context.Context, clientID string) (Settings, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	v, ok := s.items[clientID]
	if !ok {
		return Settings{}, ErrNotFound
	}
	return v, nil
}

func (s *memoryStore) Save(_ context.Context, clientID string, v Settings) error {
	if clientID == "" {
		return fmt.Errorf("client id required")
	}
	s.mutex.Lock()
	s.items[clientID] = v
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, clientID string) error {
	s.mutex.Lock()
	delete(s.items, clientID)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Stats(context.Context) (map[string]any, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return map[string]any{
		"type":  DriverMemory,
		"total": len(s.items),
	}, nil
}

func (s *memoryStore) Close(context.Context) error { return nil }
