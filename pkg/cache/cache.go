// Package cache implements a read-through JSON cache backed by Redis,
// built on the same client construction as internal/platform/redis.go
// and the cache-aside-with-degrade-to-miss shape used elsewhere for
// Redis-backed lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wisbric/orderenrich/internal/telemetry"
)

// ErrMiss is returned by Get when the key is absent, including the
// degraded case where a deserialization failure is treated as a miss.
var ErrMiss = errors.New("cache: miss")

// Cache is a read-through, JSON-encoded key/value store with per-entry
// TTL. Connectivity failures never propagate as hard errors to callers —
// Get degrades to ErrMiss and Set/Delete/Expire are best-effort.
type Cache struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// New creates a Cache over an existing Redis client.
func New(rdb *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{rdb: rdb, logger: logger}
}

// Get looks up key and decodes it into v. Returns ErrMiss on absence,
// decode failure, or any Redis connectivity error.
func (c *Cache) Get(ctx context.Context, key string, v interface{}) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed, degrading to miss", "key", key, "error", err)
		}
		telemetry.CacheHitsTotal.WithLabelValues(resourceOf(key), "miss").Inc()
		return ErrMiss
	}

	if err := json.Unmarshal(raw, v); err != nil {
		c.logger.Warn("cache value failed to deserialize, degrading to miss", "key", key, "error", err)
		telemetry.CacheHitsTotal.WithLabelValues(resourceOf(key), "miss").Inc()
		return ErrMiss
	}
	telemetry.CacheHitsTotal.WithLabelValues(resourceOf(key), "hit").Inc()
	return nil
}

// resourceOf extracts the "product"/"customer" label from a cache key of
// the form "{resource}:{id}".
func resourceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return "unknown"
}

// Set JSON-encodes v and stores it under key with the given TTL.
// Fire-and-forget: failures are logged, never returned to the caller as
// fatal.
func (c *Cache) Set(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache value failed to serialize", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Delete removes key. Best-effort.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("cache delete failed", "key", key, "error", err)
	}
}

// Exists reports whether key is present. Degrades to false on error.
func (c *Cache) Exists(ctx context.Context, key string) bool {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		c.logger.Warn("cache exists check failed", "key", key, "error", err)
		return false
	}
	return n > 0
}

// Expire resets the TTL on an existing key. Best-effort.
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) {
	if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		c.logger.Warn("cache expire failed", "key", key, "error", err)
	}
}
