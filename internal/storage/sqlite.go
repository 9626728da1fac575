package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/apuntes/internal/models"
)

// SQLiteBlobStore implements BlobStore using SQLite.
type SQLiteBlobStore struct {
	db *sql.DB
}

// NewSQLiteBlobStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteBlobStore(dbPath string) (*SQLiteBlobStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteBlobStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		size INTEGER NOT NULL,
		mime_type TEXT,
		data BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_uploads_kind ON uploads(kind, id);
	`
	_, err := db.Exec(schema)
	return err
}

// Add inserts an upload and sets f.ID, f.Kind and f.CreatedAt.
func (s *SQLiteBlobStore) Add(ctx context.Context, kind models.Kind, f *models.UploadedFile) (int64, error) {
	f.Kind = kind
	f.CreatedAt = time.Now().UTC()
	data := f.Data
	if data == nil {
		data = []byte{}
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (kind, name, size, mime_type, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(kind), f.Name, f.Size, f.Type, data, f.CreatedAt,
	)
	if err != nil {
		return 0, wrap("add", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, wrap("add", err)
	}
	f.ID = id
	return id, nil
}

// List returns the uploads of kind ordered by id.
func (s *SQLiteBlobStore) List(ctx context.Context, kind models.Kind) ([]*models.UploadedFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, name, size, mime_type, data, created_at
		 FROM uploads WHERE kind = ? ORDER BY id`,
		string(kind),
	)
	if err != nil {
		return nil, wrap("list", err)
	}
	defer rows.Close()

	files := make([]*models.UploadedFile, 0)
	for rows.Next() {
		var f models.UploadedFile
		var k string
		var mimeType sql.NullString
		if err := rows.Scan(&f.ID, &k, &f.Name, &f.Size, &mimeType, &f.Data, &f.CreatedAt); err != nil {
			return nil, wrap("list", err)
		}
		f.Kind = models.Kind(k)
		f.Type = mimeType.String
		files = append(files, &f)
	}
	return files, wrap("list", rows.Err())
}

// Clear removes every upload of kind.
func (s *SQLiteBlobStore) Clear(ctx context.Context, kind models.Kind) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE kind = ?`, string(kind))
	return wrap("clear", err)
}

// Count returns the number of uploads of kind.
func (s *SQLiteBlobStore) Count(ctx context.Context, kind models.Kind) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads WHERE kind = ?`, string(kind)).Scan(&count)
	return count, wrap("count", err)
}

// Close closes the database connection.
func (s *SQLiteBlobStore) Close() error {
	return s.db.Close()
}
