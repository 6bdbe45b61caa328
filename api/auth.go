package api

import (
	"context"
	"net/http"
	"strings"

	"bidhouse/storage"
)

type contextKey string

const (
	usernameContextKey contextKey = "username"
	rolesContextKey    contextKey = "roles"
)

// withUser stores the authenticated identity on the context.
func withUser(ctx context.Context, username string, roles []string) context.Context {
	ctx = context.WithValue(ctx, usernameContextKey, username)
	return context.WithValue(ctx, rolesContextKey, roles)
}

// usernameFromContext returns the authenticated username, if any.
func usernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameContextKey).(string)
	return username, ok && username != ""
}

// rolesFromContext returns the authenticated user's roles, if any.
func rolesFromContext(ctx context.Context) ([]string, bool) {
	roles, ok := ctx.Value(rolesContextKey).([]string)
	return roles, ok
}

func hasRole(roles []string, want string) bool {
	for _, role := range roles {
		if role == want {
			return true
		}
	}
	return false
}

// extractToken pulls the JWT from the Authorization header, falling back to
// the auth cookie for browser clients.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, found := strings.CutPrefix(header, "Bearer "); found {
			return token
		}
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// requireAuth validates the JWT and attaches the identity to the context.
// With authentication disabled the request proceeds as an anonymous user
// holding every role, which keeps single-operator deployments simple.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.config.Auth.Enabled {
			ctx := withUser(r.Context(), "anonymous",
				[]string{storage.RoleAdmin, storage.RoleSeller, storage.RoleBidder})
			next(w, r.WithContext(ctx))
			return
		}

		tokenString := extractToken(r)
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil, a.logger)
			return
		}

		claims, err := a.validateJWT(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", err, a.logger)
			return
		}

		next(w, r.WithContext(withUser(r.Context(), claims.Username, claims.Roles)))
	}
}

// requireRole gates a handler on a role already resolved by requireAuth.
func (a *API) requireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roles, ok := rolesFromContext(r.Context())
		if !ok || !hasRole(roles, role) {
			writeError(w, http.StatusForbidden, "Insufficient permissions", nil, a.logger)
			return
		}
		next(w, r)
	}
}

// requireAdmin is requireAuth plus the admin role.
func (a *API) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.requireAuth(a.requireRole(storage.RoleAdmin, next))
}
