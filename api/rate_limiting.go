package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bidhouse/config"
	"bidhouse/core"
	"bidhouse/metrics"
)

// Rate limit tier names. Global applies to every request, api to everything
// under /api/v1, and login/bid add stricter budgets on the abuse-prone
// routes.
const (
	tierGlobal = "global"
	tierAPI    = "api"
	tierLogin  = "login"
	tierBid    = "bid"
)

// limiterEntry is one client's token bucket plus its last use, so idle
// buckets can be swept.
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// tierLimiter enforces one tier's budget per client IP. With Redis wired it
// counts in a shared fixed window so every replica sees the same totals;
// Redis errors fall back to the in-memory token buckets rather than letting
// traffic through uncounted.
type tierLimiter struct {
	name   string
	cfg    config.RateTier
	redis  *core.RedisCache
	logger *zap.SugaredLogger

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

func newTierLimiter(name string, cfg config.RateTier, redis *core.RedisCache, logger *zap.SugaredLogger) *tierLimiter {
	return &tierLimiter{
		name:    name,
		cfg:     cfg,
		redis:   redis,
		logger:  logger,
		entries: make(map[string]*limiterEntry),
	}
}

// Allow reports whether clientIP may proceed under this tier. A tier with a
// non-positive limit is disabled.
func (t *tierLimiter) Allow(ctx context.Context, clientIP string) bool {
	if t.cfg.Limit <= 0 {
		return true
	}

	if t.redis != nil {
		allowed, err := t.allowRedis(ctx, clientIP)
		if err == nil {
			return allowed
		}
		t.logger.Warnw("Rate limit Redis check failed, using in-memory limiter",
			"tier", t.name, "error", err)
	}

	return t.memoryLimiter(clientIP).Allow()
}

func (t *tierLimiter) allowRedis(ctx context.Context, clientIP string) (bool, error) {
	count, err := t.redis.Incr(ctx, core.RateCacheKey(t.name, clientIP), t.window())
	if err != nil {
		return false, err
	}
	return count <= int64(t.cfg.Limit), nil
}

// memoryLimiter returns the client's token bucket, creating it on first
// sight. The bucket refills at limit-per-window with burst capacity.
func (t *tierLimiter) memoryLimiter(clientIP string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[clientIP]
	if !ok {
		burst := t.cfg.Burst
		if burst <= 0 {
			burst = t.cfg.Limit
		}
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(t.cfg.Limit)/t.window().Seconds()), burst),
		}
		t.entries[clientIP] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (t *tierLimiter) window() time.Duration {
	if t.cfg.Window <= 0 {
		return time.Minute
	}
	return t.cfg.Window
}

// sweep drops buckets idle longer than maxIdle.
func (t *tierLimiter) sweep(maxIdle time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for ip, entry := range t.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(t.entries, ip)
		}
	}
}

// Limiters bundles the four tiers with the exemption list and the cleanup
// goroutine that keeps per-IP state from growing without bound.
type Limiters struct {
	cfg    config.RateLimitConfig
	tiers  map[string]*tierLimiter
	exempt map[string]struct{}
	logger *zap.SugaredLogger

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newLimiters(cfg config.RateLimitConfig, redis *core.RedisCache, logger *zap.SugaredLogger) *Limiters {
	l := &Limiters{
		cfg: cfg,
		tiers: map[string]*tierLimiter{
			tierGlobal: newTierLimiter(tierGlobal, cfg.Global, redis, logger),
			tierAPI:    newTierLimiter(tierAPI, cfg.API, redis, logger),
			tierLogin:  newTierLimiter(tierLogin, cfg.Login, redis, logger),
			tierBid:    newTierLimiter(tierBid, cfg.Bid, redis, logger),
		},
		exempt: make(map[string]struct{}, len(cfg.ExemptIPs)),
		logger: logger,
		stopCh: make(chan struct{}),
	}
	for _, ip := range cfg.ExemptIPs {
		l.exempt[ip] = struct{}{}
	}

	l.wg.Add(1)
	go l.cleanupLoop()

	return l
}

// AllowTier checks one tier for one client. Disabled limiting and exempt
// clients always pass.
func (l *Limiters) AllowTier(ctx context.Context, tier, clientIP string) bool {
	if !l.cfg.Enabled {
		return true
	}
	if _, ok := l.exempt[clientIP]; ok {
		return true
	}
	t, ok := l.tiers[tier]
	if !ok {
		return true
	}
	return t.Allow(ctx, clientIP)
}

// TierConfig returns the configured budget for a tier, for response headers.
func (l *Limiters) TierConfig(tier string) config.RateTier {
	if t, ok := l.tiers[tier]; ok {
		return t.cfg
	}
	return config.RateTier{}
}

func (l *Limiters) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			for _, t := range l.tiers {
				t.sweep(time.Hour)
			}
		}
	}
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (l *Limiters) Close() {
	l.closeOnce.Do(func() {
		close(l.stopCh)
	})
	l.wg.Wait()
}

// globalRateLimitMiddleware applies the coarse per-IP budget to every
// request, including health and metrics scrapes.
func (a *API) globalRateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiters.AllowTier(r.Context(), tierGlobal, a.clientIP(r)) {
			a.writeRateLimited(w, r, tierGlobal)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiRateLimitMiddleware applies the api tier to everything under /api/v1.
func (a *API) apiRateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiters.AllowTier(r.Context(), tierAPI, a.clientIP(r)) {
			a.writeRateLimited(w, r, tierAPI)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loginRateLimit wraps the login handler with its own tier so credential
// stuffing is throttled well before the api tier would notice.
func (a *API) loginRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return a.tierRateLimit(tierLogin, next)
}

// bidRateLimit wraps bid placement with its own tier.
func (a *API) bidRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return a.tierRateLimit(tierBid, next)
}

func (a *API) tierRateLimit(tier string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.limiters.AllowTier(r.Context(), tier, a.clientIP(r)) {
			a.writeRateLimited(w, r, tier)
			return
		}
		next(w, r)
	}
}

// writeRateLimited sends the 429 with standard headers, counts it, and
// records a security event naming the tier.
func (a *API) writeRateLimited(w http.ResponseWriter, r *http.Request, tier string) {
	metrics.RateLimitExceeded.WithLabelValues(tier).Inc()
	a.recordSecurityEvent(r, core.EventRateLimitExceeded, core.SeverityMedium, map[string]string{
		"tier": tier,
	})

	cfg := a.limiters.TierConfig(tier)
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}

	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.Limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(window).Unix()))
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))

	a.respondJSON(w, map[string]string{
		"error": "Too many requests",
		"tier":  tier,
	}, http.StatusTooManyRequests)
}
