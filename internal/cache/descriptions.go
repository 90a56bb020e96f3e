// Package cache decorates the reference store's description lookup with a
// two-tier cache: an in-process expirable LRU for hot codes and an optional
// Redis tier shared across instances. Reference data is immutable for the
// process lifetime, so entries only ever expire, never invalidate.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cie10-predict-server/internal/domain"
)

const redisKeyPrefix = "cie10:desc:"

// DescriptionCache implements domain.DescriptionLookup by caching in front
// of another lookup.
type DescriptionCache struct {
	next     domain.DescriptionLookup
	memory   *expirable.LRU[string, string]
	redis    *redis.Client
	redisTTL time.Duration
	log      *logrus.Logger
}

// NewDescriptionCache builds the cache chain. The Redis tier is enabled
// only when cfg.RedisURL is set; a Redis that is down at startup disables
// the tier with a warning rather than failing the process.
func NewDescriptionCache(next domain.DescriptionLookup, cfg *domain.CacheConfig, logger *logrus.Logger) *DescriptionCache {
	c := &DescriptionCache{
		next:     next,
		memory:   expirable.NewLRU[string, string](cfg.MemorySize, nil, cfg.MemoryTTL),
		redisTTL: cfg.RedisTTL,
		log:      logger,
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Invalid Redis URL, distributed description cache disabled")
			return c
		}
		opts.PoolSize = cfg.PoolSize
		opts.PoolTimeout = cfg.PoolTimeout
		opts.MaxRetries = cfg.MaxRetries

		client := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, distributed description cache disabled")
			client.Close()
		} else {
			c.redis = client
			logger.Info("Distributed description cache enabled")
		}
	}

	return c
}

// Descriptions resolves codes through the cache tiers, falling through to
// the underlying lookup only for codes missing from both. Cache-tier
// failures degrade to the next tier, never to an error.
func (c *DescriptionCache) Descriptions(ctx context.Context, codes []string) (map[string]string, error) {
	out := make(map[string]string, len(codes))

	var misses []string
	for _, code := range codes {
		if desc, ok := c.memory.Get(code); ok {
			out[code] = desc
		} else {
			misses = append(misses, code)
		}
	}

	misses = c.fromRedis(ctx, misses, out)
	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := c.next.Descriptions(ctx, misses)
	if err != nil {
		return nil, err
	}
	for code, desc := range fetched {
		out[code] = desc
		c.memory.Add(code, desc)
	}
	c.toRedis(ctx, fetched)

	return out, nil
}

// fromRedis moves Redis hits into out and returns the remaining misses.
func (c *DescriptionCache) fromRedis(ctx context.Context, codes []string, out map[string]string) []string {
	if c.redis == nil || len(codes) == 0 {
		return codes
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = redisKeyPrefix + code
	}
	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.log.WithError(err).Warn("Redis description read failed")
		return codes
	}

	var misses []string
	for i, v := range values {
		desc, ok := v.(string)
		if !ok || desc == "" {
			misses = append(misses, codes[i])
			continue
		}
		out[codes[i]] = desc
		c.memory.Add(codes[i], desc)
	}
	return misses
}

func (c *DescriptionCache) toRedis(ctx context.Context, fetched map[string]string) {
	if c.redis == nil || len(fetched) == 0 {
		return
	}

	pipe := c.redis.Pipeline()
	for code, desc := range fetched {
		pipe.Set(ctx, redisKeyPrefix+code, desc, c.redisTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.WithError(err).Warn("Redis description write failed")
	}
}

// Close releases the Redis client if the distributed tier is enabled.
func (c *DescriptionCache) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
