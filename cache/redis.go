package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces keys written by RedisStore.
const DefaultRedisPrefix = "evelib:"

// staleGrace keeps an expired entry around long enough to be overwritten
// rather than vanishing the instant it goes stale.
const staleGrace = 24 * time.Hour

// RedisStore keeps entries in Redis as JSON documents.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client. An empty prefix selects DefaultRedisPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (r *RedisStore) Has(ctx context.Context, key string) bool {
	n, err := r.client.Exists(ctx, r.prefix+key).Result()
	return err == nil && n > 0
}

func (r *RedisStore) Put(ctx context.Context, key string, entry *Entry) error {
	stored := *entry
	stored.Key = key
	data, err := json.Marshal(&stored)
	if err != nil {
		return err
	}

	ttl := time.Until(entry.ValidUntil)
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.prefix+key, data, ttl+staleGrace).Err()
}
