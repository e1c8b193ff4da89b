package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned by Get for absent or stale units.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned when a stored value does not decode.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// scanBatch is the COUNT hint used when walking a document's keys.
const scanBatch = 100

// Manager stores extracted unit text in Redis. Entries carry their own expiry
// and Redis evicts them at the same time.
type Manager struct {
	rdb redis.UniversalClient
}

// NewManager creates a manager on rdb. It panics on a nil client.
func NewManager(rdb redis.UniversalClient) *Manager {
	if rdb == nil {
		panic("cache: nil redis client")
	}
	return &Manager{rdb: rdb}
}

// Get returns the entry for key, or ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	raw, err := m.rdb.Get(ctx, key.String()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	case err != nil:
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	entry := new(CacheEntry)
	if err := json.Unmarshal(raw, entry); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, key, err)
	}
	if entry.IsExpired() {
		// Redis TTL and Expires can drift by clock skew between hosts.
		_ = m.Delete(ctx, key)
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	cacheHits.WithLabelValues("redis").Inc()
	cacheBytes.WithLabelValues("read").Add(float64(len(raw)))
	return entry, nil
}

// Set stores entry until entry.Expires. Already expired entries are ignored.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return errors.New("cache: nil entry")
	}
	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := m.rdb.Set(ctx, key.String(), raw, ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	cacheBytes.WithLabelValues("write").Add(float64(len(raw)))
	return nil
}

// Delete removes one unit.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.rdb.Del(ctx, key.String()).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Touch moves the expiry of an existing entry to expires.
func (m *Manager) Touch(ctx context.Context, key CacheKey, expires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	entry.Expires = expires
	return m.Set(ctx, key, entry)
}

// DeleteDocument removes every cached unit of document and returns how many
// keys were deleted.
func (m *Manager) DeleteDocument(ctx context.Context, document string) (int, error) {
	pattern := DocumentPattern(document)
	deleted := 0

	iter := m.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == scanBatch {
			n, err := m.del(ctx, keys)
			deleted += n
			if err != nil {
				return deleted, err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		cacheErrors.WithLabelValues("scan").Inc()
		return deleted, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	n, err := m.del(ctx, keys)
	return deleted + n, err
}

func (m *Manager) del(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := m.rdb.Del(ctx, keys...).Result()
	if err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return int(n), fmt.Errorf("redis del: %w", err)
	}
	return int(n), nil
}
