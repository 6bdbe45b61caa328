package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bidhouse/config"
	"bidhouse/core"
)

// webhookCapture records every request a channel under test delivers and
// controls the response status.
type webhookCapture struct {
	mu       sync.Mutex
	status   int
	requests []capturedRequest
}

type capturedRequest struct {
	header http.Header
	body   map[string]interface{}
}

func (c *webhookCapture) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(payload, &body)

		c.mu.Lock()
		c.requests = append(c.requests, capturedRequest{header: r.Header.Clone(), body: body})
		status := c.status
		c.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
		}
	}
}

func (c *webhookCapture) setStatus(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = code
}

func (c *webhookCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *webhookCapture) request(t *testing.T, i int) capturedRequest {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Less(t, i, len(c.requests))
	return c.requests[i]
}

func newCaptureServer(t *testing.T) (*httptest.Server, *webhookCapture) {
	t.Helper()
	capture := &webhookCapture{}
	srv := httptest.NewServer(capture.handler())
	t.Cleanup(srv.Close)
	return srv, capture
}

func webhookConfig(url string) config.NotifyConfig {
	return config.NotifyConfig{
		Enabled:     true,
		MinSeverity: "medium",
		Webhook: config.WebhookChannelConfig{
			Enabled: true,
			URL:     url,
			Headers: map[string]string{"X-Auth-Token": "hook-secret"},
			Timeout: 2,
		},
		CircuitBreaker: config.NotifyBreakerConfig{
			FailureThreshold: 3,
			Cooldown:         time.Minute,
			HalfOpenProbes:   1,
		},
	}
}

func newTestNotifier(t *testing.T, cfg config.NotifyConfig) *Notifier {
	t.Helper()
	n := NewNotifier(cfg, zap.NewNop().Sugar())
	t.Cleanup(n.Stop)
	return n
}

func highSeverityEvent() core.SecurityEvent {
	event := core.NewSecurityEvent(core.EventCSRFTokenMismatch, core.SeverityHigh)
	event.SourceIP = "203.0.113.9"
	event.Method = http.MethodPost
	event.Path = "/api/v1/auctions"
	event.RequestID = "req-1"
	return event
}

func TestNotifySecurityEventPostsWebhook(t *testing.T) {
	srv, capture := newCaptureServer(t)
	n := newTestNotifier(t, webhookConfig(srv.URL))

	n.NotifySecurityEvent(context.Background(), highSeverityEvent())

	require.Equal(t, 1, capture.count())
	req := capture.request(t, 0)
	assert.Equal(t, "application/json", req.header.Get("Content-Type"))
	assert.Equal(t, "bidhouse/1.0", req.header.Get("User-Agent"))
	assert.Equal(t, "hook-secret", req.header.Get("X-Auth-Token"))

	assert.Equal(t, "security_event", req.body["type"])
	assert.Equal(t, core.EventCSRFTokenMismatch, req.body["reason"])
	assert.Equal(t, "high", req.body["severity"])
	assert.Equal(t, "203.0.113.9", req.body["source_ip"])
	assert.Equal(t, "/api/v1/auctions", req.body["path"])
}

func TestNotifySecurityEventBelowThresholdSkipped(t *testing.T) {
	srv, capture := newCaptureServer(t)
	n := newTestNotifier(t, webhookConfig(srv.URL))

	event := core.NewSecurityEvent(core.EventCSRFMissingToken, core.SeverityLow)
	n.NotifySecurityEvent(context.Background(), event)

	assert.Zero(t, capture.count())
}

func TestNotifyDisabledSendsNothing(t *testing.T) {
	srv, capture := newCaptureServer(t)
	cfg := webhookConfig(srv.URL)
	cfg.Enabled = false
	n := newTestNotifier(t, cfg)

	n.NotifySecurityEvent(context.Background(), highSeverityEvent())
	n.NotifySystemAlert(context.Background(), "down", "storage unreachable", core.SeverityCritical)

	assert.Zero(t, capture.count())
}

func TestNotifySystemAlert(t *testing.T) {
	srv, capture := newCaptureServer(t)
	n := newTestNotifier(t, webhookConfig(srv.URL))

	n.NotifySystemAlert(context.Background(), "chain clock degraded",
		"all RPC endpoints are falling back to the local clock", core.SeverityHigh)

	require.Equal(t, 1, capture.count())
	body := capture.request(t, 0).body
	assert.Equal(t, "system_alert", body["type"])
	assert.Equal(t, "chain clock degraded", body["title"])
	assert.Equal(t, "all RPC endpoints are falling back to the local clock", body["message"])
	assert.Equal(t, "high", body["severity"])
	assert.Equal(t, "bidhouse", body["system"])
}

func TestSlackMessageFormat(t *testing.T) {
	srv, capture := newCaptureServer(t)
	cfg := config.NotifyConfig{
		Enabled:     true,
		MinSeverity: "medium",
		Slack: config.SlackChannelConfig{
			Enabled:    true,
			WebhookURL: srv.URL,
			Channel:    "#security",
			Username:   "bidhouse-bot",
		},
		CircuitBreaker: config.NotifyBreakerConfig{
			FailureThreshold: 3,
			Cooldown:         time.Minute,
			HalfOpenProbes:   1,
		},
	}
	n := newTestNotifier(t, cfg)

	n.NotifySecurityEvent(context.Background(), highSeverityEvent())

	require.Equal(t, 1, capture.count())
	body := capture.request(t, 0).body
	assert.Equal(t, "#security", body["channel"])
	assert.Equal(t, "bidhouse-bot", body["username"])
	assert.Contains(t, body["text"], "security event")

	attachments, ok := body["attachments"].([]interface{})
	require.True(t, ok)
	require.Len(t, attachments, 1)

	attachment, ok := attachments[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "#f44336", attachment["color"])

	fields, ok := attachment["fields"].([]interface{})
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(fields), 2)
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	srv, capture := newCaptureServer(t)
	capture.setStatus(http.StatusInternalServerError)

	cfg := webhookConfig(srv.URL)
	cfg.CircuitBreaker.FailureThreshold = 2
	n := newTestNotifier(t, cfg)

	ctx := context.Background()
	n.NotifySecurityEvent(ctx, highSeverityEvent())
	n.NotifySecurityEvent(ctx, highSeverityEvent())
	require.Equal(t, 2, capture.count())
	require.Equal(t, core.BreakerOpen, n.ChannelState(channelWebhook))

	// Open circuit: nothing reaches the endpoint.
	n.NotifySecurityEvent(ctx, highSeverityEvent())
	assert.Equal(t, 2, capture.count())
}

func TestCircuitBreakerRecoversAfterCooldown(t *testing.T) {
	srv, capture := newCaptureServer(t)
	capture.setStatus(http.StatusInternalServerError)

	cfg := webhookConfig(srv.URL)
	cfg.CircuitBreaker.FailureThreshold = 1
	cfg.CircuitBreaker.Cooldown = 20 * time.Millisecond
	n := newTestNotifier(t, cfg)

	ctx := context.Background()
	n.NotifySecurityEvent(ctx, highSeverityEvent())
	require.Equal(t, core.BreakerOpen, n.ChannelState(channelWebhook))

	capture.setStatus(http.StatusOK)
	time.Sleep(50 * time.Millisecond)

	n.NotifySecurityEvent(ctx, highSeverityEvent())
	assert.Equal(t, 2, capture.count())
	assert.Equal(t, core.BreakerClosed, n.ChannelState(channelWebhook))
}

func TestSinkDeliversOffRequestPath(t *testing.T) {
	srv, capture := newCaptureServer(t)
	n := newTestNotifier(t, webhookConfig(srv.URL))

	n.Sink().Record(context.Background(), highSeverityEvent())

	require.Eventually(t, func() bool { return capture.count() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestSinkFiltersBeforeQueueing(t *testing.T) {
	srv, capture := newCaptureServer(t)
	n := newTestNotifier(t, webhookConfig(srv.URL))

	n.Sink().Record(context.Background(), core.NewSecurityEvent(core.EventCSRFMissingToken, core.SeverityLow))
	n.Stop()

	assert.Zero(t, capture.count())
}

func TestStopDrainsQueuedEvents(t *testing.T) {
	srv, capture := newCaptureServer(t)
	n := newTestNotifier(t, webhookConfig(srv.URL))

	for i := 0; i < 3; i++ {
		n.Sink().Record(context.Background(), highSeverityEvent())
	}
	n.Stop()

	assert.Equal(t, 3, capture.count())
}

func TestStopIsIdempotent(t *testing.T) {
	n := NewNotifier(config.NotifyConfig{}, zap.NewNop().Sugar())
	n.Stop()
	n.Stop()
}

func TestBreakerConfigDefaults(t *testing.T) {
	got := breakerConfig(config.NotifyBreakerConfig{})
	assert.Equal(t, core.DefaultBreakerConfig(), got)

	got = breakerConfig(config.NotifyBreakerConfig{
		FailureThreshold: 2,
		Cooldown:         5 * time.Second,
		HalfOpenProbes:   3,
	})
	assert.Equal(t, core.BreakerConfig{
		FailureThreshold: 2,
		Cooldown:         5 * time.Second,
		HalfOpenProbes:   3,
	}, got)
}
