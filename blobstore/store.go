// Package blobstore abstracts storage for raw biometric sample images.
//
// On successful registration the engine can archive the original upload so
// operators can audit or re-extract later. Backends: in-memory (tests),
// local directory, MinIO, and S3.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations must return an error satisfying errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("blob not found")

// BlobStore stores immutable sample blobs by name.
type BlobStore interface {
	// Put writes a blob atomically. Existing blobs with the same name are
	// replaced.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the blob contents or ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
