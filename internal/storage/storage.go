// Package storage defines the persistence interfaces for uploaded files and key-value slots.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/apuntes/internal/models"
)

// ErrNotFound is returned by KVStore.Get when a key has never been set or was deleted.
var ErrNotFound = errors.New("not found")

// Error reports a failed storage operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// BlobStore holds uploaded files in two independent collections, one per kind.
type BlobStore interface {
	// Add stores f under kind and returns the assigned id.
	Add(ctx context.Context, kind models.Kind, f *models.UploadedFile) (int64, error)
	// List returns every file of kind in insertion order.
	List(ctx context.Context, kind models.Kind) ([]*models.UploadedFile, error)
	// Clear removes every file of kind.
	Clear(ctx context.Context, kind models.Kind) error
	Count(ctx context.Context, kind models.Kind) (int64, error)

	Close() error
}

// KVStore holds string-keyed values: extracted batches, the user API key and quizzes.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}
