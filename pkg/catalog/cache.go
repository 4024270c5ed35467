package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheKey is the Redis key holding the last good snapshot.
const DefaultCacheKey = "shopassist:catalog:snapshot"

// ErrCacheMiss is returned by Load when no snapshot is cached.
var ErrCacheMiss = errors.New("catalog: cache miss")

// RedisCache stores the last successfully fetched snapshot in Redis.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache connects to url and verifies the connection.
func NewRedisCache(url string, ttl time.Duration, log *slog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "catalog.cache")
	log.Info("connected to redis", "addr", opts.Addr)

	return &RedisCache{client: client, key: DefaultCacheKey, ttl: ttl, logger: log}, nil
}

// Save stores snap under the cache key.
func (c *RedisCache) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.client.Set(ctx, c.key, data, c.ttl).Err()
}

// Load returns the cached snapshot or ErrCacheMiss.
func (c *RedisCache) Load(ctx context.Context) (*Snapshot, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cached snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	if snap.Products == nil {
		snap.Products = map[int64]Product{}
	}
	if snap.Barcodes == nil {
		snap.Barcodes = map[string]int64{}
	}
	return &snap, nil
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// SnapshotStore persists snapshots between runs.
type SnapshotStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// CachingSource writes every successful fetch through to a store.
// Store failures are logged and never fail the fetch.
type CachingSource struct {
	next   Source
	store  SnapshotStore
	logger *slog.Logger
}

// NewCachingSource wraps next.
func NewCachingSource(next Source, store SnapshotStore, log *slog.Logger) *CachingSource {
	if log == nil {
		log = slog.Default()
	}
	return &CachingSource{next: next, store: store, logger: log.With("component", "catalog.cache")}
}

// Fetch fetches from next and saves the result.
func (s *CachingSource) Fetch(ctx context.Context) (*Snapshot, error) {
	snap, err := s.next.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, snap); err != nil {
		s.logger.Warn("failed to cache catalog snapshot", "error", err)
	}
	return snap, nil
}

// Warm restores c from store if c is still empty. It reports whether a
// snapshot was installed.
func Warm(ctx context.Context, c *Catalog, store SnapshotStore) (bool, error) {
	snap, err := store.Load(ctx)
	if err != nil {
		return false, err
	}
	return c.Restore(snap), nil
}
