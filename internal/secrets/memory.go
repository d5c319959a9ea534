package secrets

import (
	"context"
	"sync"
)

// MemoryStore keeps secrets in process memory, for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

func (m *MemoryStore) Create(ctx context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secrets[name]; ok {
		return ErrAlreadyExists
	}
	m.secrets[name] = value
	return nil
}

func (m *MemoryStore) Put(ctx context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secrets[name]; !ok {
		return ErrNotFound
	}
	m.secrets[name] = value
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.secrets[name]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}
