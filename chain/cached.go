package chain

import (
	"context"
	"time"

	"bidhouse/core"
	"bidhouse/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// DefaultCacheTTL is tuned to the mainnet block interval: serving a header
// for longer than one block risks stale countdowns, shorter just adds RPC
// load.
const DefaultCacheTTL = 6 * time.Second

const headerCacheName = "chain_header"

// CachedSource wraps a HeaderSource with a short-lived in-process cache so
// countdown polling and the websocket broadcaster do not hammer the RPC
// node. When a Redis cache is attached the header is shared across
// replicas; the in-process LRU still fronts Redis to keep hot reads off the
// network.
type CachedSource struct {
	inner    HeaderSource
	local    *expirable.LRU[string, Header]
	redis    *core.RedisCache
	redisKey string
	ttl      time.Duration
	logger   *zap.SugaredLogger
}

// CachedSourceOption configures a CachedSource.
type CachedSourceOption func(*CachedSource)

// WithRedis shares cached headers through Redis, keyed by endpoint.
func WithRedis(cache *core.RedisCache, endpoint string) CachedSourceOption {
	return func(s *CachedSource) {
		s.redis = cache
		s.redisKey = core.ChainTimeCacheKey(endpoint)
	}
}

// WithTTL overrides the cache lifetime.
func WithTTL(ttl time.Duration) CachedSourceOption {
	return func(s *CachedSource) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewCachedSource wraps inner with caching.
func NewCachedSource(inner HeaderSource, logger *zap.SugaredLogger, opts ...CachedSourceOption) *CachedSource {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &CachedSource{
		inner:  inner,
		ttl:    DefaultCacheTTL,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Single-key cache; the LRU exists for its TTL eviction, not capacity.
	s.local = expirable.NewLRU[string, Header](4, nil, s.ttl)
	return s
}

// LatestHeader serves from cache when fresh, otherwise queries the wrapped
// source and repopulates. Errors from the wrapped source propagate so the
// Clock can apply its local fallback.
func (s *CachedSource) LatestHeader(ctx context.Context) (*Header, error) {
	if header, ok := s.local.Get(headerCacheName); ok {
		metrics.CacheHits.WithLabelValues(headerCacheName).Inc()
		return &header, nil
	}

	if s.redis != nil {
		var header Header
		found, err := s.redis.Get(ctx, s.redisKey, &header)
		if err != nil {
			metrics.CacheErrors.WithLabelValues(headerCacheName, "get").Inc()
			s.logger.Warnw("Redis header cache read failed", "error", err)
		} else if found {
			metrics.CacheHits.WithLabelValues(headerCacheName).Inc()
			s.local.Add(headerCacheName, header)
			return &header, nil
		}
	}

	metrics.CacheMisses.WithLabelValues(headerCacheName).Inc()

	header, err := s.inner.LatestHeader(ctx)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, nil
	}

	s.local.Add(headerCacheName, *header)
	if s.redis != nil {
		if err := s.redis.Set(ctx, s.redisKey, *header, s.ttl); err != nil {
			metrics.CacheErrors.WithLabelValues(headerCacheName, "set").Inc()
			s.logger.Warnw("Redis header cache write failed", "error", err)
		}
	}
	return header, nil
}

var _ HeaderSource = (*CachedSource)(nil)
