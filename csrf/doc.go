// Package csrf implements stateless double-submit CSRF protection.
//
// A random token is minted per browser session and stored in a cookie
// alongside an HMAC-SHA256 signature, so the server keeps no token state.
// Mutating requests must echo the token back in a header or body field;
// validation verifies the cookie signature, then compares the echoed token
// against the cookie token. The cookie is intentionally readable by client
// script (HttpOnly false), which is what lets the page echo it.
//
// Every validation failure is reported through a core.SecuritySink with a
// machine-readable reason, severity-classified so downstream alerting can
// separate browser quirks (missing cookie) from active forgery attempts
// (signature or token mismatch).
package csrf
