// Package digestcache keeps catalog file digests in Redis so unchanged files
// are not re-hashed on every photo search.
package digestcache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "dinobot:digest:"

// DefaultTTL bounds how long an entry survives without being refreshed.
const DefaultTTL = 24 * time.Hour

// Cache is a Redis-backed digest cache. Keys already encode file size and
// modification time, so a changed file simply misses.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to redisURL and verifies the connection.
func New(ctx context.Context, redisURL string, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}, nil
}

// Get returns the cached digest for key. Redis errors count as misses.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	d, err := c.rdb.Get(ctx, redisKey(key)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("digest cache get failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return d, true
}

// Set stores digest under key.
func (c *Cache) Set(ctx context.Context, key, digest string) {
	if err := c.rdb.Set(ctx, redisKey(key), digest, c.ttl).Err(); err != nil {
		c.logger.Debug("digest cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Close shuts down the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// redisKey keeps keys short and free of path separators.
func redisKey(key string) string {
	sum := sha1.Sum([]byte(key))
	return keyPrefix + hex.EncodeToString(sum[:])
}
