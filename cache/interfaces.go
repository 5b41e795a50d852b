// Package cache provides persistent storage for API responses keyed by their
// fully resolved request URI, together with the server-declared instant after
// which each stored response must no longer be reused.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no readable entry exists for a key.
	// Corrupt or partially written entries are reported as ErrNotFound too.
	ErrNotFound = errors.New("cache: entry not found")
)

// Entry represents a stored response with its validity window
type Entry struct {
	Key        string    `json:"key"`
	Body       []byte    `json:"body"`
	ValidUntil time.Time `json:"valid_until"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Valid reports whether the entry may still be served at now.
// The window is closed-open: an entry is stale at exactly ValidUntil.
func (e *Entry) Valid(now time.Time) bool {
	return now.Before(e.ValidUntil)
}

// clone returns a deep copy so callers never share a body slice with a store.
func (e *Entry) clone() *Entry {
	c := *e
	c.Body = append([]byte(nil), e.Body...)
	return &c
}

// Reader defines the interface for reading cache entries
type Reader interface {
	// Get returns the entry stored under key, or ErrNotFound.
	// Expired entries are still returned; staleness is the caller's decision.
	Get(ctx context.Context, key string) (*Entry, error)

	// Has reports whether an entry exists for key, regardless of expiry.
	Has(ctx context.Context, key string) bool
}

// Writer defines the interface for writing cache entries
type Writer interface {
	// Put stores entry under key, replacing any previous entry.
	Put(ctx context.Context, key string, entry *Entry) error
}

// Store is the persistent key/value contract the request pipeline depends on.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use by multiple
//     pipelines. Concurrent Puts to one key are last-writer-wins and never
//     leave a torn entry behind.
//   - Errors: Get returns ErrNotFound on a miss; any other error is a store
//     failure the pipeline treats as non-fatal.
type Store interface {
	Reader
	Writer
}
