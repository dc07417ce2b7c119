// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taibuivan/happypanda/internal/platform/constants"
	redisstore "github.com/taibuivan/happypanda/internal/platform/redis"
)

// DefaultCacheTTL is how long a fetched record is reused.
const DefaultCacheTTL = 24 * time.Hour

// Cache stores records by gallery URL.
type Cache interface {
	Get(ctx context.Context, url string) (Record, bool, error)
	Set(ctx context.Context, url string, record Record) error
}

// # Memory

type memoryEntry struct {
	record  Record
	expires time.Time
}

// MemoryCache is a process-local [Cache].
type MemoryCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryCache returns an empty cache. A zero ttl uses [DefaultCacheTTL].
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, url string) (Record, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[url]
	if !ok {
		return Record{}, false, nil
	}
	if c.now().After(entry.expires) {
		delete(c.entries, url)
		return Record{}, false, nil
	}
	return entry.record, true, nil
}

func (c *MemoryCache) Set(_ context.Context, url string, record Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = memoryEntry{record: record, expires: c.now().Add(c.ttl)}
	return nil
}

// # Redis

// RedisCache shares records between processes through Redis.
type RedisCache struct {
	store *redisstore.Store
	ttl   time.Duration
}

// NewRedisCache wraps store. A zero ttl uses [DefaultCacheTTL].
func NewRedisCache(store *redisstore.Store, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{store: store, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, url string) (Record, bool, error) {
	var record Record
	found, err := c.store.GetJSON(ctx, c.store.Key(constants.RedisNamespaceMetadata, url), &record)
	if err != nil {
		return Record{}, false, fmt.Errorf("fetch: cache get: %w", err)
	}
	return record, found, nil
}

func (c *RedisCache) Set(ctx context.Context, url string, record Record) error {
	if err := c.store.SetJSON(ctx, c.store.Key(constants.RedisNamespaceMetadata, url), record, c.ttl); err != nil {
		return fmt.Errorf("fetch: cache set: %w", err)
	}
	return nil
}
