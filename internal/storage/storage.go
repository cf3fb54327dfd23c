// Package storage provides object-store access for the billing pipeline.
// It defines the ObjectStore interface, a MinIO-backed implementation, an
// in-memory implementation suitable for testing and development, and the
// typed storage-reference normalization used to resolve heterogeneous
// document references down to bucket-relative keys.
package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrObjectNotFound is returned by Download when no object exists at
	// the given key.
	ErrObjectNotFound = errors.New("object not found")
)

// NotFound wraps ErrObjectNotFound with the offending key so pipeline
// errors can name the exact missing reference.
func NotFound(bucket, key string) error {
	return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
}

// ObjectStore defines the object-store operations the pipeline consumes.
type ObjectStore interface {
	// Download fetches the full object at key. Returns ErrObjectNotFound
	// (wrapped) when the object does not exist.
	Download(ctx context.Context, bucket, key string) ([]byte, error)

	// Upload stores data at key. With upsert set, an existing object at
	// the same key is overwritten; generation paths are recomputed
	// deterministically so retried runs overwrite prior attempts.
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string, upsert bool) error

	// Exists reports whether an object is actually present at key.
	// Implementations fail closed: any read error counts as absent.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// List returns the keys under prefix.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}
