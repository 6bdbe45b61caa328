package api

import (
	"net"
	"net/http"
	"regexp"
	"runtime"
	"strings"

	"bidhouse/core"
	"bidhouse/metrics"
)

// panicRecoveryMiddleware converts handler panics into 500 responses. The
// stack is logged and the panic is counted and recorded as a security event;
// the client only ever sees a generic message.
func (a *API) panicRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)

				a.logger.Errorw("Panic recovered in HTTP handler",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"client_ip", a.clientIP(r),
					"request_id", core.GetRequestIDOrDefault(r.Context()),
					"stack", string(buf[:n]))
				metrics.APIPanicsRecovered.WithLabelValues(r.Method, sanitizePath(r.URL.Path)).Inc()

				a.recordSecurityEvent(r, core.EventPanicRecovered, core.SeverityHigh, nil)

				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware sets the standard response hardening headers.
// HSTS is only meaningful over TLS, so it is gated on the connection.
func (a *API) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware applies the configured origin allowlist. Only exact origin
// matches (or a literal "*" entry) are reflected back; OPTIONS preflights
// are answered here and never reach a handler.
func (a *API) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			for _, allowed := range a.config.API.AllowedOrigins {
				if allowed == origin || allowed == "*" {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Add("Vary", "Origin")
					break
				}
			}
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers",
				"Content-Type, Authorization, X-Request-ID, "+a.protect.HeaderName())
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the request's client IP under the configured proxy
// trust settings.
func (a *API) clientIP(r *http.Request) string {
	return ClientIP(r, a.config.API.TrustProxy, a.config.API.TrustedProxyNetworks)
}

// ClientIP returns the client address for a request. Forwarding headers are
// only honored when proxy trust is enabled and the direct peer is inside
// one of the trusted networks (an empty list trusts every peer). The first
// parseable X-Forwarded-For entry wins, then X-Real-IP, then the peer.
//
// Exported so other packages can resolve IPs with the same policy without
// importing the full API.
func ClientIP(r *http.Request, trustProxy bool, trustedNetworks []string) string {
	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	if !trustProxy {
		return remoteIP
	}
	if len(trustedNetworks) > 0 && !isTrustedProxy(remoteIP, trustedNetworks) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			candidate := strings.TrimSpace(part)
			if net.ParseIP(candidate) != nil {
				return candidate
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		if net.ParseIP(realIP) != nil {
			return realIP
		}
	}
	return remoteIP
}

// isTrustedProxy reports whether ip falls inside any of the given networks.
// Entries may be CIDR blocks or bare addresses.
func isTrustedProxy(ip string, networks []string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range networks {
		if strings.Contains(network, "/") {
			_, cidr, err := net.ParseCIDR(network)
			if err == nil && cidr.Contains(parsed) {
				return true
			}
			continue
		}
		if network == ip {
			return true
		}
	}
	return false
}

// recordSecurityEvent fills the request-scoped fields and forwards to the
// configured sink.
func (a *API) recordSecurityEvent(r *http.Request, reason string, severity core.Severity, details map[string]string) {
	event := core.NewSecurityEvent(reason, severity)
	event.SourceIP = a.clientIP(r)
	event.Method = r.Method
	event.Path = r.URL.Path
	event.Details = details
	if id, ok := core.GetRequestID(r.Context()); ok {
		event.RequestID = id
	}
	a.sink.Record(r.Context(), event)
}

var (
	uuidPathPattern    = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	numericPathPattern = regexp.MustCompile(`/\d+`)
)

// sanitizePath collapses path parameters so metric label cardinality stays
// bounded.
func sanitizePath(path string) string {
	sanitized := uuidPathPattern.ReplaceAllString(path, "{uuid}")
	sanitized = numericPathPattern.ReplaceAllString(sanitized, "/{id}")
	if len(sanitized) > 100 {
		sanitized = sanitized[:100]
	}
	return sanitized
}
