// Package library manages the uploaded files of each kind and the batches derived from them.
package library

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/apuntes/internal/models"
	"github.com/hyperjump/apuntes/internal/storage"
)

// ErrUnsupportedFile is returned when a file name does not carry the kind's extension.
var ErrUnsupportedFile = errors.New("unsupported file type")

// KindRemover drops the search entries of one kind.
type KindRemover interface {
	RemoveKind(kind models.Kind) error
}

// Library stores uploads in a BlobStore and owns the batch slot of each kind in a KVStore.
type Library struct {
	blobs  storage.BlobStore
	kv     storage.KVStore
	index  KindRemover
	logger *zap.Logger
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(lib *Library) { lib.logger = l }
}

// WithIndex sets a search index whose entries are dropped with each cleared kind.
func WithIndex(idx KindRemover) Option {
	return func(lib *Library) { lib.index = idx }
}

// New returns a Library over the given stores.
func New(blobs storage.BlobStore, kv storage.KVStore, opts ...Option) *Library {
	lib := &Library{blobs: blobs, kv: kv, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(lib)
	}
	return lib
}

// Add stores data as an upload of kind. Size is taken from the data; an empty mimeType is
// derived from the name.
func (l *Library) Add(ctx context.Context, kind models.Kind, name string, data []byte, mimeType string) (*models.UploadedFile, error) {
	name = filepath.Base(name)
	if !strings.EqualFold(filepath.Ext(name), kind.Extension()) {
		return nil, fmt.Errorf("%w: %s is not a %s file", ErrUnsupportedFile, name, kind.Extension())
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = detectType(name, kind)
	}
	f := &models.UploadedFile{
		Name: name,
		Size: int64(len(data)),
		Type: mimeType,
		Data: data,
	}
	if _, err := l.blobs.Add(ctx, kind, f); err != nil {
		return nil, err
	}
	l.logger.Info("stored upload", zap.String("kind", string(kind)), zap.String("name", name), zap.Int64("size", f.Size), zap.Int64("id", f.ID))
	return f, nil
}

// AddFile reads path from disk and stores it under the kind matching its extension.
func (l *Library) AddFile(ctx context.Context, path string) (*models.UploadedFile, error) {
	kind, ok := models.KindForFile(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return l.Add(ctx, kind, path, data, "")
}

// List returns the uploads of kind in insertion order.
func (l *Library) List(ctx context.Context, kind models.Kind) ([]*models.UploadedFile, error) {
	return l.blobs.List(ctx, kind)
}

// Count returns the number of uploads of kind.
func (l *Library) Count(ctx context.Context, kind models.Kind) (int64, error) {
	return l.blobs.Count(ctx, kind)
}

// Contains reports whether an upload of kind with the same name and size is already stored.
func (l *Library) Contains(ctx context.Context, kind models.Kind, name string, size int64) (bool, error) {
	files, err := l.blobs.List(ctx, kind)
	if err != nil {
		return false, err
	}
	name = filepath.Base(name)
	for _, f := range files {
		if f.Name == name && f.Size == size {
			return true, nil
		}
	}
	return false, nil
}

// Clear removes every upload of kind, its batch slot and its search entries.
func (l *Library) Clear(ctx context.Context, kind models.Kind) error {
	if err := l.blobs.Clear(ctx, kind); err != nil {
		return err
	}
	if err := l.kv.Delete(ctx, kind.Slot()); err != nil {
		return err
	}
	if l.index != nil {
		if err := l.index.RemoveKind(kind); err != nil {
			l.logger.Warn("failed to drop search entries", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
	l.logger.Info("cleared uploads", zap.String("kind", string(kind)))
	return nil
}

func detectType(name string, kind models.Kind) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return kind.MIMEType()
}
