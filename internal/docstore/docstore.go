// Package docstore abstracts the remote document database behind the small
// surface the storefront actually uses: equality queries with an optional
// order, point reads, and create/update/merge/delete writes.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Update when the document is missing.
var ErrNotFound = errors.New("docstore: document not found")

// ErrNeedsIndex is returned by Query when the backend rejects an ordered
// query for lack of a composite index. Callers degrade to client-side sort.
var ErrNeedsIndex = errors.New("docstore: ordered query requires a composite index")

// ServerTimestamp is a sentinel field value replaced with the backend's
// server time on write.
var ServerTimestamp = serverTimestamp{}

type serverTimestamp struct{}

// Filter is a field == value condition. Only equality is supported.
type Filter struct {
	Field string
	Value any
}

// OrderBy asks the backend to sort the result set.
type OrderBy struct {
	Field string
	Desc  bool
}

// Document is a raw document with its ID and loosely typed fields.
type Document struct {
	ID     string
	Fields map[string]any
}

// Store is the document database contract consumed by the storefront.
type Store interface {
	// Query returns all documents of a collection matching every filter.
	// orderBy may be nil; when it is set and the backend cannot serve the
	// ordered query, Query fails with ErrNeedsIndex.
	Query(ctx context.Context, collection string, filters []Filter, orderBy *OrderBy) ([]Document, error)

	// Get fetches one document; ErrNotFound if missing.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Create adds a document with a generated ID and returns the ID.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Update overwrites the given fields of an existing document;
	// ErrNotFound if the document does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Merge upserts the given fields, leaving unspecified fields of an
	// existing document untouched.
	Merge(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
}
