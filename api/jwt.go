package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// authCookieName carries the JWT for browser clients that cannot set an
// Authorization header.
const authCookieName = "auth_token"

// Claims is the JWT payload: the authenticated username plus its roles.
type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// generateJWT signs a token for the user with a unique ID so it can be
// revoked individually on logout.
func (a *API) generateJWT(username string, roles []string) (string, error) {
	jtiBytes := make([]byte, 32)
	if _, err := rand.Read(jtiBytes); err != nil {
		return "", fmt.Errorf("failed to generate token ID: %w", err)
	}
	jti := hex.EncodeToString(jtiBytes)

	expiry := a.config.Auth.JWTExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	now := time.Now()
	claims := &Claims{
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   username,
			Issuer:    "bidhouse",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.config.Auth.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// jwtKeyfunc pins the signing method to HMAC before releasing the secret.
func (a *API) jwtKeyfunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return []byte(a.config.Auth.JWTSecret), nil
}

// validateJWT parses and verifies a token, rejecting revoked IDs.
func (a *API) validateJWT(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, a.jwtKeyfunc)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.ID != "" && a.isTokenRevoked(claims.ID) {
		return nil, errors.New("token has been revoked")
	}
	return claims, nil
}

// parseJWTAllowExpired verifies the signature but skips claim validation.
// Logout uses it so an expired token can still be blacklisted.
func (a *API) parseJWTAllowExpired(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, a.jwtKeyfunc, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// revokeToken blacklists a token ID until its natural expiry.
func (a *API) revokeToken(jti string, expiry time.Time) {
	if jti == "" {
		return
	}
	a.tokenBlacklist.Store(jti, expiry)
}

// isTokenRevoked reports whether the ID is blacklisted. Entries past their
// expiry are dropped on sight; the token they guarded is dead anyway.
func (a *API) isTokenRevoked(jti string) bool {
	value, ok := a.tokenBlacklist.Load(jti)
	if !ok {
		return false
	}
	expiry, ok := value.(time.Time)
	if !ok || time.Now().After(expiry) {
		a.tokenBlacklist.Delete(jti)
		return false
	}
	return true
}

// cleanupTokenBlacklist sweeps expired revocations hourly until Stop.
func (a *API) cleanupTokenBlacklist() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			a.tokenBlacklist.Range(func(key, value interface{}) bool {
				if expiry, ok := value.(time.Time); ok && now.After(expiry) {
					a.tokenBlacklist.Delete(key)
				}
				return true
			})
		}
	}
}
