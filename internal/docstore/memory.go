package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local runs. It
// preserves insertion order within a collection, matching the fetch-order
// guarantee the catalog relies on for "featured" sorting.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]memoryDoc

	// FailOrdered makes ordered queries fail with ErrNeedsIndex, simulating
	// a backend without the required composite index.
	FailOrdered bool
}

type memoryDoc struct {
	id     string
	fields map[string]any
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]memoryDoc)}
}

func (s *MemoryStore) Query(_ context.Context, collection string, filters []Filter, orderBy *OrderBy) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if orderBy != nil && s.FailOrdered {
		return nil, fmt.Errorf("%w: collection %s, field %s", ErrNeedsIndex, collection, orderBy.Field)
	}

	var docs []Document
	for _, d := range s.collections[collection] {
		if matchesAll(d.fields, filters) {
			docs = append(docs, Document{ID: d.id, Fields: copyFields(d.fields)})
		}
	}

	if orderBy != nil {
		sort.SliceStable(docs, func(i, j int) bool {
			less := compareValues(docs[i].Fields[orderBy.Field], docs[j].Fields[orderBy.Field])
			if orderBy.Desc {
				return less > 0
			}
			return less < 0
		})
	}
	return docs, nil
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.collections[collection] {
		if d.id == id {
			return Document{ID: d.id, Fields: copyFields(d.fields)}, nil
		}
	}
	return Document{}, ErrNotFound
}

func (s *MemoryStore) Create(_ context.Context, collection string, fields map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.collections[collection] = append(s.collections[collection], memoryDoc{
		id:     id,
		fields: resolveTimestamps(copyFields(fields)),
	})
	return id, nil
}

func (s *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	for i := range docs {
		if docs[i].id == id {
			for k, v := range resolveTimestamps(copyFields(fields)) {
				docs[i].fields[k] = v
			}
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) Merge(_ context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	for i := range docs {
		if docs[i].id == id {
			for k, v := range resolveTimestamps(copyFields(fields)) {
				docs[i].fields[k] = v
			}
			return nil
		}
	}
	s.collections[collection] = append(docs, memoryDoc{
		id:     id,
		fields: resolveTimestamps(copyFields(fields)),
	})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	for i := range docs {
		if docs[i].id == id {
			s.collections[collection] = append(docs[:i:i], docs[i+1:]...)
			return nil
		}
	}
	return nil
}

// Seed inserts a document with a fixed ID, for tests.
func (s *MemoryStore) Seed(collection, id string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], memoryDoc{
		id:     id,
		fields: resolveTimestamps(copyFields(fields)),
	})
}

func matchesAll(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if fields[f.Field] != f.Value {
			return false
		}
	}
	return true
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func resolveTimestamps(fields map[string]any) map[string]any {
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			fields[k] = time.Now()
		}
	}
	return fields
}

// compareValues orders two field values: negative when a < b. Mixed or
// unknown types compare equal.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0
		}
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
		return 0
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	default:
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if !aok || !bok {
			return 0
		}
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
