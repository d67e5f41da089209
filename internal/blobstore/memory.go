package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStore is an in-process blob store for tests.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Upload(_ context.Context, path string, r io.Reader, size int64, _ string, progress ProgressFunc) (string, error) {
	var buf bytes.Buffer
	if err := copyWithProgress(&buf, r, size, progress); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.blobs[path] = buf.Bytes()
	s.mu.Unlock()

	return fmt.Sprintf("memory://%s", path), nil
}

// Blob returns a stored payload, for assertions in tests.
func (s *MemoryStore) Blob(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[path]
	return b, ok
}
