package store

import (
	"bytes"
	"context"
	"sync"
)

// MemStore is an in-memory KVStore. It backs tests and the "memory" store
// backend, where durability is explicitly not wanted.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string][]byte),
	}
}

// Get returns a copy of the value stored under key.
func (m *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}

	return bytes.Clone(v), nil
}

// Set stores a copy of value under key.
func (m *MemStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = bytes.Clone(value)

	return nil
}

// Delete removes key.
func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)

	return nil
}

// Close is a no-op.
func (m *MemStore) Close() error {
	return nil
}

var _ KVStore = (*MemStore)(nil)
