package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"bidhouse/core"
	"bidhouse/metrics"
)

// requestIDMiddleware assigns every request an ID, propagates it through the
// context and the X-Request-ID response header, and logs request start and
// completion with timing. Inbound IDs are reused when well formed so traces
// can span services.
func (a *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := sanitizeRequestID(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(core.WithRequestID(r.Context(), requestID))

		a.logger.Debugw("request_started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", a.clientIP(r))

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(wrapper, r)
		duration := time.Since(start)

		path := sanitizePath(r.URL.Path)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapper.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration.Seconds())

		a.logger.Infow("request_completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.statusCode,
			"duration_ms", duration.Milliseconds())
	})
}

// sanitizeRequestID accepts inbound IDs of at most 64 characters drawn from
// [a-zA-Z0-9_-]. Anything else returns empty so a fresh ID is generated.
func sanitizeRequestID(id string) string {
	if id == "" || len(id) > 64 {
		return ""
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return ""
		}
	}
	return id
}

// responseWriterWrapper captures the status code for logging and metrics.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriterWrapper) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriterWrapper) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer so http.ResponseController can find
// Hijack and Flush through the wrapper. Websocket upgrades fail without it.
func (rw *responseWriterWrapper) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
