// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis is the optional shared cache of the engine.

Fetched gallery metadata is kept here so several engine instances, or one
instance across restarts, do not ask the rate-limited sites for the same
gallery twice.

Core Responsibilities:

  - Namespacing: Every key lives under one prefix (see [Store.Key]).
  - Encoding: Values are stored as JSON with a per-write TTL.
  - Health: [Store.Ping] backs the readiness check of the local API.
*/
package redis

import (
	stdctx "context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second
)

// Store is a prefixed JSON view over one Redis connection pool.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore parses a Redis URL, checks the server answers and returns a store
// whose keys all start with prefix.
//
// # Parameters
//   - context: Context for the initial ping.
//   - redisURL: Redis connection URL (redis://host:port/db).
//   - prefix: Key namespace, for example "happypanda".
//   - logger: Structured logger for connection events.
func NewStore(context stdctx.Context, redisURL, prefix string, logger *slog.Logger) (*Store, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	// A desktop engine needs only a handful of connections.
	options.PoolSize = 4
	options.MinIdleConns = 1
	options.MaxIdleConns = 2
	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout

	store := &Store{client: redis.NewClient(options), prefix: strings.TrimSuffix(prefix, ":")}
	if err := store.Ping(context); err != nil {
		_ = store.client.Close()
		return nil, err
	}

	logger.Info("redis_store_connected",
		slog.String("addr", options.Addr),
		slog.String("prefix", store.prefix),
	)
	return store, nil
}

// Key joins parts under the store prefix: Key("metadata", url) is
// "prefix:metadata:url".
func (s *Store) Key(parts ...string) string {
	return strings.Join(append([]string{s.prefix}, parts...), ":")
}

// GetJSON decodes the value at key into target. It reports false when the key
// is absent or expired.
func (s *Store) GetJSON(context stdctx.Context, key string, target any) (bool, error) {
	data, err := s.client.Get(context, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores value at key for ttl. A zero ttl keeps it forever.
func (s *Store) SetJSON(context stdctx.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", key, err)
	}
	if err := s.client.Set(context, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Ping verifies that the server answers within a short timeout.
func (s *Store) Ping(context stdctx.Context) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := s.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
