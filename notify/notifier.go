// Package notify pushes security events and system alerts to external
// channels (generic JSON webhook, Slack). Every channel sits behind its own
// circuit breaker so a dead endpoint stops costing timeouts, and the
// SecuritySink adapter queues events off the request path.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"bidhouse/config"
	"bidhouse/core"
	"bidhouse/metrics"
)

// Channel names used for breaker keys and metric labels.
const (
	channelWebhook = "webhook"
	channelSlack   = "slack"
)

const (
	// sinkQueueSize bounds the SecuritySink adapter's buffer. Events past
	// this are dropped rather than stalling a request.
	sinkQueueSize = 256

	// deliveryTimeout bounds one queued event's delivery across all
	// channels.
	deliveryTimeout = 30 * time.Second

	userAgent = "bidhouse/1.0"
)

// Notifier fans security events and system alerts out to the configured
// channels. Safe for concurrent use.
type Notifier struct {
	cfg         config.NotifyConfig
	minSeverity core.Severity
	breakerCfg  core.BreakerConfig
	client      *http.Client
	logger      *zap.SugaredLogger

	mu       sync.Mutex
	breakers map[string]*core.Breaker

	queue    chan core.SecurityEvent
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewNotifier builds a notifier from cfg and starts its delivery worker.
// Call Stop during shutdown to drain queued events.
func NewNotifier(cfg config.NotifyConfig, logger *zap.SugaredLogger) *Notifier {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	minSeverity := core.Severity(cfg.MinSeverity)
	if !minSeverity.IsValid() {
		minSeverity = core.SeverityHigh
	}

	timeout := time.Duration(cfg.Webhook.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	n := &Notifier{
		cfg:         cfg,
		minSeverity: minSeverity,
		breakerCfg:  breakerConfig(cfg.CircuitBreaker),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		logger:   logger,
		breakers: make(map[string]*core.Breaker),
		queue:    make(chan core.SecurityEvent, sinkQueueSize),
		done:     make(chan struct{}),
	}

	n.wg.Add(1)
	go n.run()

	return n
}

// breakerConfig maps the config section onto a breaker config, falling back
// to defaults for unset fields.
func breakerConfig(cfg config.NotifyBreakerConfig) core.BreakerConfig {
	out := core.DefaultBreakerConfig()
	if cfg.FailureThreshold > 0 {
		out.FailureThreshold = uint32(cfg.FailureThreshold)
	}
	if cfg.Cooldown > 0 {
		out.Cooldown = cfg.Cooldown
	}
	if cfg.HalfOpenProbes > 0 {
		out.HalfOpenProbes = uint32(cfg.HalfOpenProbes)
	}
	return out
}

// Stop drains queued events and waits for the delivery worker to exit. Safe
// to call more than once.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		close(n.done)
	})
	n.wg.Wait()
}

// Sink returns a core.SecuritySink that queues events for delivery off the
// request path. The recording context is not used for delivery; it is
// request-scoped and gone by the time the worker posts.
func (n *Notifier) Sink() core.SecuritySink {
	return sink{n}
}

type sink struct {
	n *Notifier
}

// Record implements core.SecuritySink.
func (s sink) Record(_ context.Context, event core.SecurityEvent) {
	s.n.enqueue(event)
}

func (n *Notifier) enqueue(event core.SecurityEvent) {
	if !n.cfg.Enabled || !event.Severity.AtLeast(n.minSeverity) {
		return
	}
	select {
	case n.queue <- event:
	case <-n.done:
	default:
		metrics.NotificationsSent.WithLabelValues("queue", "dropped").Inc()
		n.logger.Warnw("Notification dropped, queue full", "reason", event.Reason)
	}
}

func (n *Notifier) run() {
	defer n.wg.Done()

	for {
		select {
		case <-n.done:
			// Drain whatever was queued before the shutdown.
			for {
				select {
				case event := <-n.queue:
					n.deliverQueued(event)
				default:
					return
				}
			}
		case event := <-n.queue:
			n.deliverQueued(event)
		}
	}
}

func (n *Notifier) deliverQueued(event core.SecurityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	n.NotifySecurityEvent(ctx, event)
}

// NotifySecurityEvent pushes one security event to every enabled channel.
// Events below the configured severity threshold are skipped.
func (n *Notifier) NotifySecurityEvent(ctx context.Context, event core.SecurityEvent) {
	if !n.cfg.Enabled || !event.Severity.AtLeast(n.minSeverity) {
		return
	}

	payload := map[string]interface{}{
		"type":       "security_event",
		"event_id":   event.ID,
		"reason":     event.Reason,
		"severity":   event.Severity.String(),
		"source_ip":  event.SourceIP,
		"method":     event.Method,
		"path":       event.Path,
		"request_id": event.RequestID,
		"details":    event.Details,
		"timestamp":  event.Timestamp.Format(time.RFC3339),
	}

	n.dispatch(ctx, payload, n.slackEventMessage(event))
}

// NotifySystemAlert pushes an operational alert (degraded chain clock,
// storage failures) through the same channels and severity filter.
func (n *Notifier) NotifySystemAlert(ctx context.Context, title, message string, severity core.Severity) {
	if !n.cfg.Enabled || !severity.AtLeast(n.minSeverity) {
		return
	}

	payload := map[string]interface{}{
		"type":      "system_alert",
		"title":     title,
		"message":   message,
		"severity":  severity.String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"system":    "bidhouse",
	}

	n.dispatch(ctx, payload, n.slackAlertMessage(title, message, severity))
}

// dispatch sends the channel-specific payloads behind each channel's
// breaker.
func (n *Notifier) dispatch(ctx context.Context, webhookPayload, slackPayload map[string]interface{}) {
	if n.cfg.Webhook.Enabled && n.cfg.Webhook.URL != "" {
		n.deliver(channelWebhook, func() error {
			return n.postJSON(ctx, n.cfg.Webhook.URL, webhookPayload, n.cfg.Webhook.Headers)
		})
	}
	if n.cfg.Slack.Enabled && n.cfg.Slack.WebhookURL != "" {
		n.deliver(channelSlack, func() error {
			return n.postJSON(ctx, n.cfg.Slack.WebhookURL, slackPayload, nil)
		})
	}
}

// deliver runs one channel send under its breaker and records the outcome.
func (n *Notifier) deliver(channel string, send func() error) {
	br := n.breaker(channel)
	if err := br.Allow(); err != nil {
		metrics.NotificationsSent.WithLabelValues(channel, "suppressed").Inc()
		n.logger.Warnw("Notification suppressed, circuit open", "channel", channel, "error", err)
		return
	}

	if err := send(); err != nil {
		br.Failure()
		metrics.NotificationsSent.WithLabelValues(channel, "failure").Inc()
		n.logger.Errorw("Notification failed", "channel", channel, "error", err)
		return
	}

	br.Success()
	metrics.NotificationsSent.WithLabelValues(channel, "success").Inc()
}

// breaker returns the channel's circuit breaker, creating it on first use.
func (n *Notifier) breaker(channel string) *core.Breaker {
	n.mu.Lock()
	defer n.mu.Unlock()

	br, ok := n.breakers[channel]
	if !ok {
		br = core.MustNewBreaker(n.breakerCfg)
		n.breakers[channel] = br
	}
	return br
}

// ChannelState reports a channel's breaker state, for health reporting and
// tests. Channels that have never sent are closed.
func (n *Notifier) ChannelState(channel string) core.BreakerState {
	return n.breaker(channel).State()
}

// postJSON sends payload to url with the standard and any extra headers.
// Non-2xx responses are failures.
func (n *Notifier) postJSON(ctx context.Context, url string, payload map[string]interface{}, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			n.logger.Debugw("Failed to close notification response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// severityColor maps severities to Slack attachment colors.
var severityColor = map[core.Severity]string{
	core.SeverityCritical: "#d32f2f",
	core.SeverityHigh:     "#f44336",
	core.SeverityMedium:   "#ff9800",
	core.SeverityLow:      "#2196f3",
}

// slackEventMessage formats a security event as a Slack attachment.
func (n *Notifier) slackEventMessage(event core.SecurityEvent) map[string]interface{} {
	color := severityColor[event.Severity]
	if color == "" {
		color = "#757575"
	}

	fields := []map[string]interface{}{
		{"title": "Reason", "value": event.Reason, "short": true},
		{"title": "Severity", "value": event.Severity.String(), "short": true},
	}
	if event.SourceIP != "" {
		fields = append(fields, map[string]interface{}{
			"title": "Source IP", "value": fmt.Sprintf("`%s`", event.SourceIP), "short": true,
		})
	}
	if event.Path != "" {
		fields = append(fields, map[string]interface{}{
			"title": "Path", "value": fmt.Sprintf("%s %s", event.Method, event.Path), "short": true,
		})
	}
	if event.RequestID != "" {
		fields = append(fields, map[string]interface{}{
			"title": "Request ID", "value": fmt.Sprintf("`%s`", event.RequestID), "short": true,
		})
	}

	return n.slackMessage(
		fmt.Sprintf(":rotating_light: *%s severity security event*", event.Severity),
		map[string]interface{}{
			"color":  color,
			"fields": fields,
			"footer": "bidhouse",
			"ts":     event.Timestamp.Unix(),
		})
}

// slackAlertMessage formats a system alert as a Slack attachment.
func (n *Notifier) slackAlertMessage(title, message string, severity core.Severity) map[string]interface{} {
	color := severityColor[severity]
	if color == "" {
		color = "#757575"
	}

	return n.slackMessage(
		fmt.Sprintf(":warning: *System alert: %s*", title),
		map[string]interface{}{
			"color":  color,
			"text":   message,
			"footer": "bidhouse",
			"ts":     time.Now().Unix(),
		})
}

// slackMessage assembles the webhook body, applying the configured channel
// and username overrides.
func (n *Notifier) slackMessage(text string, attachment map[string]interface{}) map[string]interface{} {
	msg := map[string]interface{}{
		"text":        text,
		"attachments": []map[string]interface{}{attachment},
	}
	if n.cfg.Slack.Channel != "" {
		msg["channel"] = n.cfg.Slack.Channel
	}
	if n.cfg.Slack.Username != "" {
		msg["username"] = n.cfg.Slack.Username
	}
	return msg
}
