package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bidhouse/metrics"
)

// maxCacheValueSize caps serialized cache entries to prevent a single
// oversized value from exhausting Redis memory.
const maxCacheValueSize = 1 * 1024 * 1024 // 1MB

// RedisCache provides a Redis-backed cache shared by the chain clock and
// the rate limiter. Values are JSON-encoded.
type RedisCache struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewRedisCache creates a new Redis cache instance.
func NewRedisCache(addr, password string, db, poolSize int, logger *zap.SugaredLogger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	return &RedisCache{
		client: client,
		logger: logger,
	}
}

// Ping tests the Redis connection.
func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Set stores a value with the given expiration.
func (rc *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		rc.logger.Errorf("Failed to marshal cache value for key %s: %v", key, err)
		metrics.CacheErrors.WithLabelValues("redis", "marshal").Inc()
		return err
	}

	if len(data) > maxCacheValueSize {
		metrics.CacheErrors.WithLabelValues("redis", "size_limit").Inc()
		return fmt.Errorf("cache value size %d bytes exceeds maximum allowed size %d bytes", len(data), maxCacheValueSize)
	}

	err = rc.client.Set(ctx, key, data, expiration).Err()
	if err != nil {
		metrics.CacheErrors.WithLabelValues("redis", "set").Inc()
	}
	return err
}

// Get retrieves a value into dest. Returns (false, nil) when the key does
// not exist.
func (rc *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := rc.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			metrics.CacheMisses.WithLabelValues("redis").Inc()
			return false, nil
		}
		rc.logger.Errorf("Failed to get cache value for key %s: %v", key, err)
		metrics.CacheErrors.WithLabelValues("redis", "get").Inc()
		return false, err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		rc.logger.Errorf("Failed to unmarshal cache value for key %s: %v", key, err)
		metrics.CacheErrors.WithLabelValues("redis", "unmarshal").Inc()
		return false, err
	}

	metrics.CacheHits.WithLabelValues("redis").Inc()
	return true, nil
}

// Delete removes a key.
func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, key).Err()
}

// Exists checks if a key exists.
func (rc *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := rc.client.Exists(ctx, key).Result()
	return count > 0, err
}

// SetNX sets a value only if the key does not exist.
func (rc *RedisCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	return rc.client.SetNX(ctx, key, data, expiration).Result()
}

// Incr atomically increments a counter key and returns the new value,
// setting the expiration on first increment. Used by fixed-window rate
// limiting.
func (rc *RedisCache) Incr(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	pipe := rc.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, expiration)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// GetTTL returns the remaining TTL for a key.
func (rc *RedisCache) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	return rc.client.TTL(ctx, key).Result()
}

// Cache key prefixes.
const (
	CacheKeyChainTimePrefix = "chaintime:"
	CacheKeyRatePrefix      = "rate:"
	CacheKeyAuctionPrefix   = "auction:"
)

// ChainTimeCacheKey generates the cache key for a chain time reading.
func ChainTimeCacheKey(endpoint string) string {
	return CacheKeyChainTimePrefix + endpoint
}

// RateCacheKey generates the cache key for a rate-limit window.
func RateCacheKey(tier, clientIP string) string {
	return CacheKeyRatePrefix + tier + ":" + clientIP
}

// AuctionCacheKey generates the cache key for auction snapshots.
func AuctionCacheKey(id string) string {
	return CacheKeyAuctionPrefix + id
}
