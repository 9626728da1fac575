package watcher

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/apuntes/internal/models"
)

// Uploader stores files picked up from an inbox.
type Uploader interface {
	Contains(ctx context.Context, kind models.Kind, name string, size int64) (bool, error)
	AddFile(ctx context.Context, path string) (*models.UploadedFile, error)
}

// InboxExtensions are the file types accepted from inbox directories.
var InboxExtensions = []string{".pptx", ".pdf"}

// ImportFunc returns a callback that uploads a file unless one with the same name and size
// is already stored. Failures are logged; the file stays in the inbox.
func ImportFunc(ctx context.Context, up Uploader, logger *zap.Logger) func(path string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(path string) {
		kind, ok := models.KindForFile(path)
		if !ok {
			return
		}
		info, err := os.Stat(path)
		if err != nil {
			logger.Warn("inbox file vanished", zap.String("path", path), zap.Error(err))
			return
		}
		exists, err := up.Contains(ctx, kind, filepath.Base(path), info.Size())
		if err != nil {
			logger.Error("inbox lookup failed", zap.String("path", path), zap.Error(err))
			return
		}
		if exists {
			logger.Debug("inbox file already stored", zap.String("path", path))
			return
		}
		f, err := up.AddFile(ctx, path)
		if err != nil {
			logger.Error("inbox upload failed", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Info("inbox file stored", zap.String("kind", string(f.Kind)), zap.String("name", f.Name), zap.Int64("id", f.ID))
	}
}
