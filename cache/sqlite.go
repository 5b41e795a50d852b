package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore keeps entries in a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and prepares the schema.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// a single connection serialises writers and keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			valid_until INTEGER NOT NULL,
			fetched_at INTEGER NOT NULL,
			body BLOB
		)`,
		`CREATE INDEX IF NOT EXISTS valid_until_idx ON cache (valid_until)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("prepare sqlite schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	var validUntil, fetchedAt int64
	var body []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT valid_until, fetched_at, body FROM cache WHERE key = ?", key,
	).Scan(&validUntil, &fetchedAt, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Entry{
		Key:        key,
		Body:       body,
		ValidUntil: time.UnixMilli(validUntil).UTC(),
		FetchedAt:  time.UnixMilli(fetchedAt).UTC(),
	}, nil
}

func (s *SQLiteStore) Has(ctx context.Context, key string) bool {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM cache WHERE key = ?", key).Scan(&n)
	return err == nil && n > 0
}

func (s *SQLiteStore) Put(ctx context.Context, key string, entry *Entry) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO cache (key, valid_until, fetched_at, body) VALUES (?, ?, ?, ?)",
		key, entry.ValidUntil.UnixMilli(), entry.FetchedAt.UnixMilli(), entry.Body,
	)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
