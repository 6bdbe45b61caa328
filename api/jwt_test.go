package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidhouse/storage"
)

func TestJWTRoundTrip(t *testing.T) {
	e := newTestAPI(t)

	token, err := e.api.generateJWT("alice", []string{storage.RoleBidder, storage.RoleSeller})
	require.NoError(t, err)

	claims, err := e.api.validateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, []string{storage.RoleBidder, storage.RoleSeller}, claims.Roles)
	assert.Equal(t, "bidhouse", claims.Issuer)
	assert.Equal(t, "alice", claims.Subject)
	assert.Len(t, claims.ID, 64, "token ID should be 32 random bytes hex encoded")
}

func TestJWTRevocation(t *testing.T) {
	e := newTestAPI(t)

	token, err := e.api.generateJWT("alice", []string{storage.RoleBidder})
	require.NoError(t, err)

	claims, err := e.api.validateJWT(token)
	require.NoError(t, err)

	e.api.revokeToken(claims.ID, time.Now().Add(time.Hour))

	_, err = e.api.validateJWT(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revoked")
}

func TestJWTRevocationEntryExpires(t *testing.T) {
	e := newTestAPI(t)

	e.api.revokeToken("stale-id", time.Now().Add(-time.Minute))
	assert.False(t, e.api.isTokenRevoked("stale-id"),
		"revocations past the token's own expiry are dropped")
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	e := newTestAPI(t)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := forged.SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	_, err = e.api.validateJWT(signed)
	assert.Error(t, err)
}

func TestJWTRejectsUnsignedToken(t *testing.T) {
	e := newTestAPI(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = e.api.validateJWT(signed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected signing method")
}

func TestJWTExpiredTokenFailsValidation(t *testing.T) {
	e := newTestAPI(t)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "expired-token-id",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte(e.cfg.Auth.JWTSecret))
	require.NoError(t, err)

	_, err = e.api.validateJWT(signed)
	require.Error(t, err)

	// Logout still needs the claims so the dead token can be blacklisted.
	claims, err := e.api.parseJWTAllowExpired(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "expired-token-id", claims.ID)
}
