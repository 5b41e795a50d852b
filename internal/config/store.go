package config

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/briangreenhill/evelib/cache"
)

// OpenStore builds the configured cache store. The returned close function
// releases its connections and is never nil. The "none" backend yields a nil
// store.
func OpenStore(ctx context.Context, cfg Config) (cache.Store, func() error, error) {
	nop := func() error { return nil }

	switch cfg.CacheBackend {
	case BackendNone:
		return nil, nop, nil

	case BackendMemory:
		return cache.NewMemoryStore(), nop, nil

	case BackendFile:
		var (
			fs  *cache.FileStore
			err error
		)
		if cfg.CacheDir != "" {
			fs, err = cache.NewFileStoreAt(cfg.CacheDir)
		} else {
			fs, err = cache.NewFileStore("")
		}
		if err != nil {
			return nil, nop, err
		}
		return fs, nop, nil

	case BackendSQLite:
		s, err := cache.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nop, err
		}
		return s, s.Close, nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nop, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		return cache.NewRedisStore(client, ""), client.Close, nil

	case BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nop, fmt.Errorf("db error: %w", err)
		}
		s := cache.NewPostgresStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nop, err
		}
		return s, func() error { pool.Close(); return nil }, nil
	}
	return nil, nop, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
}
