package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bidhouse/metrics"
)

// Security event reasons emitted by the request-protection layers.
const (
	EventCSRFMissingCookie     = "missing_cookie"
	EventCSRFInvalidSignature  = "invalid_cookie_signature"
	EventCSRFMissingToken      = "missing_token"
	EventCSRFTokenMismatch     = "token_mismatch"
	EventAuthLoginFailed       = "login_failed"
	EventAuthLockout           = "account_lockout"
	EventAuthMFAFailed         = "mfa_verification_failed"
	EventRateLimitExceeded     = "rate_limit_exceeded"
	EventPanicRecovered        = "handler_panic_recovered"
	EventProbeRejected         = "time_probe_rejected"
)

// SecurityEvent is a single security-relevant occurrence (failed CSRF
// validation, login failure, rate limit hit). Events are immutable once
// recorded and flow through SecuritySink implementations rather than any
// process-global state.
type SecurityEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Reason    string            `json:"reason"`
	Severity  Severity          `json:"severity"`
	SourceIP  string            `json:"source_ip,omitempty"`
	Method    string            `json:"method,omitempty"`
	Path      string            `json:"path,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewSecurityEvent builds an event with a fresh ID and timestamp.
func NewSecurityEvent(reason string, severity Severity) SecurityEvent {
	return SecurityEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Reason:    reason,
		Severity:  severity,
	}
}

// SecuritySink receives security events from producers (CSRF validation,
// auth, rate limiting, panic recovery). Implementations must be safe for
// concurrent use and must not block the request path; slow destinations
// buffer internally.
type SecuritySink interface {
	Record(ctx context.Context, event SecurityEvent)
}

// LogSink writes security events to the structured log. Severity maps to
// log level so high/critical events stand out in console output.
type LogSink struct {
	logger *zap.SugaredLogger
}

// NewLogSink creates a sink backed by the given logger.
func NewLogSink(logger *zap.SugaredLogger) *LogSink {
	return &LogSink{logger: logger}
}

// Record implements SecuritySink.
func (s *LogSink) Record(_ context.Context, event SecurityEvent) {
	fields := []interface{}{
		"event_id", event.ID,
		"reason", event.Reason,
		"severity", event.Severity.String(),
		"source_ip", event.SourceIP,
		"method", event.Method,
		"path", event.Path,
		"request_id", event.RequestID,
	}
	for k, v := range event.Details {
		fields = append(fields, "detail_"+k, v)
	}

	switch {
	case event.Severity.AtLeast(SeverityHigh):
		s.logger.Warnw("AUDIT: security event", fields...)
	default:
		s.logger.Infow("AUDIT: security event", fields...)
	}
}

// MetricsSink counts security events by reason and severity.
type MetricsSink struct{}

// Record implements SecuritySink.
func (MetricsSink) Record(_ context.Context, event SecurityEvent) {
	metrics.SecurityEvents.WithLabelValues(event.Reason, event.Severity.String()).Inc()
}

// MultiSink fans an event out to each child sink in order.
type MultiSink struct {
	sinks []SecuritySink
}

// NewMultiSink composes sinks; nil children are skipped.
func NewMultiSink(sinks ...SecuritySink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Record implements SecuritySink.
func (m *MultiSink) Record(ctx context.Context, event SecurityEvent) {
	for _, s := range m.sinks {
		s.Record(ctx, event)
	}
}

// NopSink discards events. Used where a sink is required but auditing is
// disabled (tests, CLI one-shots).
type NopSink struct{}

// Record implements SecuritySink.
func (NopSink) Record(context.Context, SecurityEvent) {}
