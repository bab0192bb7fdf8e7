package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5000

// Store wraps the SQLite handle behind the media index. Chat messages are
// never written here; the index only describes blobs that already live on
// disk, so it survives restarts alongside them.
type Store struct {
	db *sql.DB
}

// MediaRecord is one indexed blob: the stored file, its final mime type and
// size after any transcoding, and where it is served from.
type MediaRecord struct {
	ID           int64     `json:"id"`
	StoredName   string    `json:"storedName"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	Kind         string    `json:"kind"`
	URL          string    `json:"url"`
	Transcoded   bool      `json:"transcoded"`
	Uploader     string    `json:"uploader"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewStore initializes the SQLite database at the provided path. Call Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "mediachat.db"
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS media_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stored_name TEXT NOT NULL,
		original_name TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		kind TEXT NOT NULL,
		url TEXT NOT NULL,
		transcoded INTEGER NOT NULL DEFAULT 0,
		uploader TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`)
	return err
}

// RecordMedia inserts one index entry for a stored blob.
func (s *Store) RecordMedia(ctx context.Context, record MediaRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO media_files(stored_name, original_name, mime_type, size_bytes, kind, url, transcoded, uploader)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		record.StoredName, record.OriginalName, record.MimeType, record.SizeBytes,
		record.Kind, record.URL, record.Transcoded, record.Uploader)
	return err
}

// ListMedia returns the most recent index entries, newest first.
func (s *Store) ListMedia(ctx context.Context, limit int) ([]MediaRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stored_name, original_name, mime_type, size_bytes, kind, url, transcoded, uploader, created_at
		 FROM media_files ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]MediaRecord, 0, limit)
	for rows.Next() {
		var record MediaRecord
		if err := rows.Scan(&record.ID, &record.StoredName, &record.OriginalName,
			&record.MimeType, &record.SizeBytes, &record.Kind, &record.URL,
			&record.Transcoded, &record.Uploader, &record.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetMediaByStoredName looks up one entry by its on-disk name.
func (s *Store) GetMediaByStoredName(ctx context.Context, storedName string) (*MediaRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, stored_name, original_name, mime_type, size_bytes, kind, url, transcoded, uploader, created_at
		 FROM media_files WHERE stored_name = ?`, storedName)
	var record MediaRecord
	err := row.Scan(&record.ID, &record.StoredName, &record.OriginalName,
		&record.MimeType, &record.SizeBytes, &record.Kind, &record.URL,
		&record.Transcoded, &record.Uploader, &record.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
