package csrf

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"bidhouse/core"
	"bidhouse/metrics"

	"go.uber.org/zap"
)

// devSecret signs tokens when no secret is configured outside production.
// Construction fails in production instead of falling back to it.
const devSecret = "bidhouse-insecure-dev-secret"

// maxBodyPeekSize caps how much of a JSON body is buffered while looking
// for the echoed token. Matches the API's request body limit.
const maxBodyPeekSize = 1 << 20 // 1 MB

// Protection mints and validates double-submit CSRF tokens.
type Protection struct {
	cfg      Config
	secret   []byte
	sink     core.SecuritySink
	logger   *zap.SugaredLogger
	sourceIP func(*http.Request) string
}

// Option configures a Protection.
type Option func(*Protection)

// WithSourceIP overrides how the client IP is derived for security events.
// The API layer injects its proxy-aware resolver here.
func WithSourceIP(resolve func(*http.Request) string) Option {
	return func(p *Protection) {
		if resolve != nil {
			p.sourceIP = resolve
		}
	}
}

// New builds a Protection from cfg. In production an empty secret is a
// construction error; elsewhere it falls back to an insecure development
// secret with a warning.
func New(cfg Config, sink core.SecuritySink, logger *zap.SugaredLogger, opts ...Option) (*Protection, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cfg.normalize()

	if cfg.Secret == "" {
		if cfg.Production {
			return nil, errors.New("csrf secret is required in production")
		}
		cfg.Secret = devSecret
		logger.Warnw("CSRF secret not configured, using insecure development secret")
	}
	if sink == nil {
		sink = core.NopSink{}
	}

	p := &Protection{
		cfg:      cfg,
		secret:   []byte(cfg.Secret),
		sink:     sink,
		logger:   logger,
		sourceIP: remoteIP,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// CookieName returns the configured cookie name.
func (p *Protection) CookieName() string { return p.cfg.CookieName }

// HeaderName returns the configured header name.
func (p *Protection) HeaderName() string { return p.cfg.HeaderName }

// Issue mints a fresh token, sets the signed cookie on w, and returns the
// raw token so callers can embed it in a response body.
func (p *Protection) Issue(w http.ResponseWriter, r *http.Request) (string, error) {
	token, err := generateToken(p.cfg.TokenLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     p.cfg.CookieName,
		Value:    token + "." + p.sign(token),
		Path:     "/",
		MaxAge:   p.cfg.MaxAge,
		SameSite: p.cfg.SameSite,
		Secure:   p.cfg.Secure,
		HttpOnly: p.cfg.HttpOnly,
	})
	metrics.CSRFTokensIssued.Inc()

	p.logger.Debugw("Issued CSRF token",
		"token_prefix", tokenPrefix(token),
		"path", r.URL.Path)
	return token, nil
}

// Validate checks the double-submit pair on mutating requests. Safe methods
// pass unconditionally. Each failure emits a security event naming the
// rejection reason; malformed cookies are rejected, never a panic.
func (p *Protection) Validate(r *http.Request) bool {
	if !isMutating(r.Method) {
		return true
	}

	ctx := r.Context()

	cookie, err := r.Cookie(p.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		p.reject(ctx, r, core.EventCSRFMissingCookie, core.SeverityMedium, nil)
		return false
	}

	token, signature, ok := splitSignedToken(cookie.Value)
	if !ok || !constantTimeEquals(p.sign(token), signature) {
		p.reject(ctx, r, core.EventCSRFInvalidSignature, core.SeverityHigh, nil)
		return false
	}

	echoed := p.requestToken(r)
	if echoed == "" {
		p.reject(ctx, r, core.EventCSRFMissingToken, core.SeverityMedium, nil)
		return false
	}

	if !constantTimeEquals(token, echoed) {
		p.reject(ctx, r, core.EventCSRFTokenMismatch, core.SeverityHigh, map[string]string{
			"cookie_token_prefix":  tokenPrefix(token),
			"request_token_prefix": tokenPrefix(echoed),
		})
		return false
	}

	metrics.CSRFValidations.WithLabelValues("success", "none").Inc()
	p.logger.Debugw("CSRF validation successful",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", core.GetRequestIDOrDefault(ctx))
	return true
}

// sign computes the hex HMAC-SHA256 signature of token.
func (p *Protection) sign(token string) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// requestToken extracts the echoed token: header first, then the body
// fields. Form bodies go through FormValue; JSON bodies are buffered and
// restored so handlers can decode them again.
func (p *Protection) requestToken(r *http.Request) string {
	if token := r.Header.Get(p.cfg.HeaderName); token != "" {
		return token
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"),
		strings.HasPrefix(contentType, "multipart/form-data"):
		if token := r.FormValue(bodyFieldSnake); token != "" {
			return token
		}
		return r.FormValue(bodyFieldCamel)
	case strings.HasPrefix(contentType, "application/json"):
		return peekJSONToken(r)
	}
	return ""
}

// peekJSONToken reads the token fields out of a JSON body and puts the body
// back for the handler.
func peekJSONToken(r *http.Request) string {
	if r.Body == nil {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyPeekSize))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var fields struct {
		Snake string `json:"_csrf_token"`
		Camel string `json:"csrfToken"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	if fields.Snake != "" {
		return fields.Snake
	}
	return fields.Camel
}

func (p *Protection) reject(ctx context.Context, r *http.Request, reason string, severity core.Severity, details map[string]string) {
	metrics.CSRFValidations.WithLabelValues("failure", reason).Inc()

	event := core.NewSecurityEvent(reason, severity)
	event.SourceIP = p.sourceIP(r)
	event.Method = r.Method
	event.Path = r.URL.Path
	event.Details = details
	if id, ok := core.GetRequestID(ctx); ok {
		event.RequestID = id
	}
	p.sink.Record(ctx, event)
}

// isMutating reports whether the method requires CSRF validation.
func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// splitSignedToken splits a cookie value into token and signature on the
// LAST dot, so tokens containing dots stay intact. Missing or empty parts
// report ok=false.
func splitSignedToken(value string) (token, signature string, ok bool) {
	idx := strings.LastIndex(value, ".")
	if idx <= 0 || idx == len(value)-1 {
		return "", "", false
	}
	return value[:idx], value[idx+1:], true
}

// constantTimeEquals compares two strings without leaking where they
// diverge. A length mismatch returns immediately; lengths are not secret.
func constantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// generateToken returns length crypto-random bytes hex encoded.
func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// tokenPrefix returns at most the first 8 characters of a token, enough to
// correlate log entries without disclosing it.
func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}

// remoteIP is the default source IP resolver: the connection peer, ignoring
// forwarding headers.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
