package credstore

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials in a map. Data is lost when the process exits.
type MemoryStore struct {
	namespace string
	items     map[string]string
	mu        sync.RWMutex
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(namespace string) *MemoryStore {
	return &MemoryStore{
		namespace: namespace,
		items:     make(map[string]string),
	}
}

// Read returns the value stored under key.
func (m *MemoryStore) Read(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrClosed
	}

	value, ok := m.items[namespacedKey(m.namespace, key)]
	return value, ok, nil
}

// Write stores value under key.
func (m *MemoryStore) Write(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.items[namespacedKey(m.namespace, key)] = value
	return nil
}

// Delete removes key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	delete(m.items, namespacedKey(m.namespace, key))
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close marks the store closed and drops its contents.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.closed = true
	m.items = nil
	return nil
}
