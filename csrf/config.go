package csrf

import "net/http"

// Defaults for Config fields left at their zero value.
const (
	DefaultCookieName  = "_csrf_token"
	DefaultHeaderName  = "x-csrf-token"
	DefaultTokenLength = 32
	DefaultMaxAge      = 86400
)

// Body fields consulted for the echoed token when the header is absent.
const (
	bodyFieldSnake = "_csrf_token"
	bodyFieldCamel = "csrfToken"
)

// Config controls token minting and cookie attributes.
type Config struct {
	// Secret keys the HMAC signature. Required in production; in other
	// environments an insecure development secret is substituted when empty.
	Secret string

	// CookieName holds the signed token, HeaderName the echoed raw token.
	CookieName string
	HeaderName string

	// TokenLength is the number of random bytes per token before hex
	// encoding.
	TokenLength int

	SameSite http.SameSite
	Secure   bool
	HttpOnly bool

	// MaxAge is the cookie lifetime in seconds.
	MaxAge int

	// Production tightens construction: an empty Secret becomes an error
	// instead of the development fallback.
	Production bool
}

// DefaultConfig returns the standard configuration for the given
// environment. Secure follows production: the cookie is HTTPS-only there
// and relaxed for local development.
func DefaultConfig(production bool) Config {
	return Config{
		CookieName:  DefaultCookieName,
		HeaderName:  DefaultHeaderName,
		TokenLength: DefaultTokenLength,
		SameSite:    http.SameSiteStrictMode,
		Secure:      production,
		HttpOnly:    false,
		MaxAge:      DefaultMaxAge,
		Production:  production,
	}
}

// normalize fills unset fields with defaults. Boolean fields are taken as
// given; their zero values are meaningful.
func (c *Config) normalize() {
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.HeaderName == "" {
		c.HeaderName = DefaultHeaderName
	}
	if c.TokenLength <= 0 {
		c.TokenLength = DefaultTokenLength
	}
	if c.SameSite == 0 {
		c.SameSite = http.SameSiteStrictMode
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
}
