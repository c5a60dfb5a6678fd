// Package rediscache shares fingerprint results between processes through Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "dossier:fingerprint:"

// Cache implements fingerprint.Cache on a Redis client. Redis errors are
// logged and reported as misses so encoding never fails on cache trouble.
type Cache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL expires entries after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithPrefix namespaces keys.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Cache.
func New(client redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		prefix: defaultPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get implements fingerprint.Cache.
func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("fingerprint cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		c.logger.Warn("fingerprint cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return vec, true
}

// Set implements fingerprint.Cache.
func (c *Cache) Set(ctx context.Context, key string, vec []float32) {
	raw, err := json.Marshal(vec)
	if err != nil {
		c.logger.Warn("fingerprint cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("fingerprint cache write failed", "key", key, "error", err)
	}
}
