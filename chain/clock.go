package chain

import (
	"context"
	"time"

	"bidhouse/metrics"

	"go.uber.org/zap"
)

// Header is the subset of a block header the auction service needs.
type Header struct {
	Number uint64
	Time   uint64
}

// HeaderSource fetches the latest block header from a chain endpoint.
// Implementations must be safe for concurrent use.
type HeaderSource interface {
	LatestHeader(ctx context.Context) (*Header, error)
}

// HeaderSourceFunc adapts a function to the HeaderSource interface.
type HeaderSourceFunc func(ctx context.Context) (*Header, error)

// LatestHeader calls f.
func (f HeaderSourceFunc) LatestHeader(ctx context.Context) (*Header, error) {
	return f(ctx)
}

// Clock resolves the current time, preferring chain time over the local
// clock. A nil source is valid and means chain queries are disabled.
type Clock struct {
	source HeaderSource
	now    func() time.Time
	logger *zap.SugaredLogger
}

// ClockOption configures a Clock.
type ClockOption func(*Clock)

// WithLocalClock overrides the local time source. Used by tests.
func WithLocalClock(now func() time.Time) ClockOption {
	return func(c *Clock) {
		c.now = now
	}
}

// NewClock creates a clock backed by source. source may be nil, in which
// case every resolution degrades to the local clock.
func NewClock(source HeaderSource, logger *zap.SugaredLogger, opts ...ClockOption) *Clock {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c := &Clock{
		source: source,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Accurate reports whether the clock has a chain source configured. This is
// a static capability check, not a liveness probe.
func (c *Clock) Accurate() bool {
	return c.source != nil
}

// Now resolves the current time. Failures of any kind (no source, network
// error, malformed header) are logged and degrade to the local clock; Now
// never returns an error.
func (c *Clock) Now(ctx context.Context) Reading {
	if c.source == nil {
		metrics.ChainTimeRequests.WithLabelValues("none", "fallback").Inc()
		metrics.ChainTimeFallbacks.Inc()
		return localReading(c.now)
	}

	header, err := c.source.LatestHeader(ctx)
	if err != nil {
		c.logger.Warnw("Chain time query failed, falling back to local clock",
			"error", err)
		metrics.ChainTimeRequests.WithLabelValues("chain", "error").Inc()
		metrics.ChainTimeFallbacks.Inc()
		return localReading(c.now)
	}
	if header == nil || header.Time == 0 {
		c.logger.Warnw("Chain returned empty header, falling back to local clock")
		metrics.ChainTimeRequests.WithLabelValues("chain", "empty").Inc()
		metrics.ChainTimeFallbacks.Inc()
		return localReading(c.now)
	}

	reading := Reading{
		Timestamp:   int64(header.Time),
		BlockNumber: header.Number,
		Accurate:    true,
	}

	metrics.ChainTimeRequests.WithLabelValues("chain", "success").Inc()
	metrics.ChainClockDrift.Set(float64(c.now().Unix() - reading.Timestamp))

	c.logger.Debugw("Resolved chain time",
		"timestamp", reading.Timestamp,
		"block_number", reading.BlockNumber)
	return reading
}
