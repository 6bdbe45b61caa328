package core

import "context"

// contextKey is a private type to prevent context key collisions across
// packages.
type contextKey string

// ContextKeyRequestID stores the unique request identifier (string).
// It lives in core rather than the api package because security event
// producers outside the transport layer correlate their events with it.
const ContextKeyRequestID contextKey = "request_id"

// WithRequestID creates a new context with the request ID value.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GetRequestID extracts the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok
}

// GetRequestIDOrDefault extracts the request ID from the context or returns
// "unknown". Convenience for logging where a default is acceptable.
func GetRequestIDOrDefault(ctx context.Context) string {
	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		return requestID
	}
	return "unknown"
}
