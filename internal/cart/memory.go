package cart

import (
	"context"
	"sync"
)

// MemoryStorage holds the cart payload in memory, for tests and local runs.
type MemoryStorage struct {
	mu      sync.Mutex
	payload []byte
	exists  bool
}

// NewMemoryStorage creates an empty in-memory storage key.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Read(_ context.Context) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists {
		return nil, false, nil
	}
	out := make([]byte, len(m.payload))
	copy(out, m.payload)
	return out, true, nil
}

func (m *MemoryStorage) Write(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = make([]byte, len(payload))
	copy(m.payload, payload)
	m.exists = true
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = nil
	m.exists = false
	return nil
}

// Seed overwrites the stored payload directly, for corruption tests.
func (m *MemoryStorage) Seed(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = payload
	m.exists = true
}
