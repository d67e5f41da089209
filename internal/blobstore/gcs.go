package blobstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
)

// uploadChunkSize is the granularity of progress callbacks.
const uploadChunkSize = 256 * 1024

// GCSStore implements Store on the Firebase app's default storage bucket.
type GCSStore struct {
	bucket     *storage.BucketHandle
	bucketName string
}

// NewGCSStore creates a blob store bound to the app's configured bucket.
func NewGCSStore(ctx context.Context, app *firebase.App, bucketName string) (*GCSStore, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", bucketName, err)
	}
	return &GCSStore{bucket: bucket, bucketName: bucketName}, nil
}

func (s *GCSStore) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string, progress ProgressFunc) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.ChunkSize = uploadChunkSize

	if err := copyWithProgress(w, r, size, progress); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload to %s failed: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload to %s failed: %w", path, err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, path), nil
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) error {
	buf := make([]byte, uploadChunkSize)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
