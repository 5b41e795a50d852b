package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps entries in the evelib_cache table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing pool. Call EnsureSchema once before use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the cache table if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS evelib_cache (
			key TEXT PRIMARY KEY,
			body BYTEA,
			valid_until TIMESTAMPTZ NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create evelib_cache: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) (*Entry, error) {
	entry := Entry{Key: key}
	err := p.pool.QueryRow(ctx,
		`SELECT body, valid_until, fetched_at FROM evelib_cache WHERE key = $1`, key,
	).Scan(&entry.Body, &entry.ValidUntil, &entry.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (p *PostgresStore) Has(ctx context.Context, key string) bool {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM evelib_cache WHERE key = $1)`, key,
	).Scan(&exists)
	return err == nil && exists
}

func (p *PostgresStore) Put(ctx context.Context, key string, entry *Entry) error {
	fetchedAt := entry.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO evelib_cache (key, body, valid_until, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET body = EXCLUDED.body, valid_until = EXCLUDED.valid_until, fetched_at = EXCLUDED.fetched_at`,
		key, entry.Body, entry.ValidUntil, fetchedAt,
	)
	return err
}
