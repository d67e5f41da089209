// Package blobstore abstracts the hosted file storage used for product
// images: chunked uploads with progress reporting and a retrievable URL.
package blobstore

import (
	"context"
	"io"
)

// ProgressFunc receives the number of bytes written so far and the total
// size (-1 when unknown).
type ProgressFunc func(written, total int64)

// Store is the blob storage contract.
type Store interface {
	// Upload streams r to path and returns a publicly retrievable URL.
	// progress may be nil.
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string, progress ProgressFunc) (string, error)
}
