package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"bidhouse/core"
)

// loginRequest is the body of POST /api/v1/auth/login. CSRFToken is consumed
// by the CSRF middleware before the handler runs; it is declared here only
// so strict decoding tolerates clients that double-submit in the body.
type loginRequest struct {
	Username  string `json:"username" validate:"required,min=1,max=100"`
	Password  string `json:"password" validate:"required,min=1,max=1024"`
	TOTPCode  string `json:"totp_code" validate:"omitempty,len=6"`
	CSRFToken string `json:"_csrf_token"`
}

// loginHandler authenticates a user and issues the JWT cookie.
//
// Failures are deliberately indistinguishable: unknown username, wrong
// password, and disabled account all return the same 401 so the endpoint
// cannot be used to enumerate accounts. Lockout is the one exception (423)
// since the account owner needs to know.
//
//	@Summary		Log in
//	@Description	Authenticates a user, sets the JWT cookie, and rotates the CSRF token
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			credentials	body		loginRequest	true	"Credentials (totp_code required when MFA is enabled)"
//	@Success		200			{object}	map[string]interface{}	"token, username, roles, expires_at, csrf_token"
//	@Failure		400			{string}	string	"Invalid login request"
//	@Failure		401			{string}	string	"Invalid username or password"
//	@Failure		423			{string}	string	"Account is temporarily locked"
//	@Router			/api/v1/auth/login [post]
func (a *API) loginHandler(w http.ResponseWriter, r *http.Request) {
	if !a.config.Auth.Enabled {
		writeError(w, http.StatusBadRequest, "Authentication is disabled", nil, a.logger)
		return
	}

	var req loginRequest
	if !a.decodeJSON(w, r, &req, a.config.API.LoginBodyLimit) {
		return
	}
	if err := validator.New().Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid login request", err, a.logger)
		return
	}

	ctx := r.Context()
	now := time.Now()

	user, err := a.users.GetUserByUsername(ctx, req.Username)
	if err != nil {
		a.recordSecurityEvent(r, core.EventAuthLoginFailed, core.SeverityMedium, map[string]string{
			"username": req.Username,
			"cause":    "unknown_user",
		})
		a.logger.Warnw("AUDIT: login failed",
			"username", req.Username, "cause", "unknown_user", "client_ip", a.clientIP(r))
		writeError(w, http.StatusUnauthorized, "Invalid username or password", nil, a.logger)
		return
	}

	if user.IsLocked(now) {
		a.recordSecurityEvent(r, core.EventAuthLoginFailed, core.SeverityMedium, map[string]string{
			"username": user.Username,
			"cause":    "locked",
		})
		writeError(w, http.StatusLocked, "Account is temporarily locked", nil, a.logger)
		return
	}
	if user.LockedUntil != nil && !now.Before(*user.LockedUntil) {
		// Lockout expired; clean up before counting this attempt.
		if err := a.users.SetLockedUntil(ctx, user.Username, nil); err != nil {
			a.logger.Warnw("Failed to clear expired lockout", "username", user.Username, "error", err)
		}
		if err := a.users.ResetFailedLogins(ctx, user.Username); err != nil {
			a.logger.Warnw("Failed to reset login counter", "username", user.Username, "error", err)
		}
	}

	if !user.Active {
		a.recordSecurityEvent(r, core.EventAuthLoginFailed, core.SeverityMedium, map[string]string{
			"username": user.Username,
			"cause":    "inactive",
		})
		a.logger.Warnw("AUDIT: login failed",
			"username", user.Username, "cause", "inactive", "client_ip", a.clientIP(r))
		writeError(w, http.StatusUnauthorized, "Invalid username or password", nil, a.logger)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		a.handleFailedLogin(r, user.Username)
		a.recordSecurityEvent(r, core.EventAuthLoginFailed, core.SeverityMedium, map[string]string{
			"username": user.Username,
			"cause":    "bad_password",
		})
		a.logger.Warnw("AUDIT: login failed",
			"username", user.Username, "cause", "bad_password", "client_ip", a.clientIP(r))
		writeError(w, http.StatusUnauthorized, "Invalid username or password", nil, a.logger)
		return
	}

	if user.MFAEnabled {
		if req.TOTPCode == "" {
			a.respondJSON(w, map[string]interface{}{
				"mfa_required": true,
				"message":      "MFA code required",
			}, http.StatusUnauthorized)
			return
		}
		if !validTOTPCode(req.TOTPCode, user.TOTPSecret) {
			a.handleFailedLogin(r, user.Username)
			a.recordSecurityEvent(r, core.EventAuthMFAFailed, core.SeverityHigh, map[string]string{
				"username": user.Username,
			})
			a.logger.Warnw("AUDIT: login failed",
				"username", user.Username, "cause", "bad_mfa_code", "client_ip", a.clientIP(r))
			writeError(w, http.StatusUnauthorized, "Invalid MFA code", nil, a.logger)
			return
		}
	}

	if err := a.users.ResetFailedLogins(ctx, user.Username); err != nil {
		a.logger.Warnw("Failed to reset login counter", "username", user.Username, "error", err)
	}

	token, err := a.generateJWT(user.Username, user.Roles)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session", err, a.logger)
		return
	}

	expiry := a.config.Auth.JWTExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(expiry.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   r.TLS != nil,
	})

	// Rotate the CSRF token on privilege change.
	csrfToken, err := a.protect.Issue(w, r)
	if err != nil {
		a.logger.Warnw("Failed to rotate CSRF token on login", "error", err)
	}

	a.logger.Infow("AUDIT: login successful",
		"username", user.Username,
		"roles", user.Roles,
		"client_ip", a.clientIP(r),
		"request_id", core.GetRequestIDOrDefault(ctx))

	resp := map[string]interface{}{
		"message":    "Login successful",
		"token":      token,
		"username":   user.Username,
		"roles":      user.Roles,
		"expires_at": time.Now().Add(expiry).UTC().Format(time.RFC3339),
		"csrf_token": csrfToken,
	}
	if user.MustChangePassword {
		resp["must_change_password"] = true
	}
	a.respondJSON(w, resp, http.StatusOK)
}

// handleFailedLogin bumps the account's failure counter and locks it when
// the threshold is crossed.
func (a *API) handleFailedLogin(r *http.Request, username string) {
	ctx := r.Context()

	count, err := a.users.IncrementFailedLogins(ctx, username)
	if err != nil {
		a.logger.Errorw("Failed to record failed login", "username", username, "error", err)
		return
	}

	threshold := a.config.Auth.LockoutThreshold
	if threshold <= 0 || count < threshold {
		return
	}

	duration := a.config.Auth.LockoutDuration
	if duration <= 0 {
		duration = 15 * time.Minute
	}
	until := time.Now().Add(duration)
	if err := a.users.SetLockedUntil(ctx, username, &until); err != nil {
		a.logger.Errorw("Failed to lock account", "username", username, "error", err)
		return
	}

	a.recordSecurityEvent(r, core.EventAuthLockout, core.SeverityHigh, map[string]string{
		"username":        username,
		"failed_attempts": strconv.Itoa(count),
	})
	a.logger.Warnw("AUDIT: account locked",
		"username", username,
		"failed_attempts", count,
		"locked_until", until.UTC().Format(time.RFC3339))
}

// logoutHandler revokes the current token and clears the auth cookie. The
// token is parsed without claim validation so even an expired session can be
// explicitly revoked.
//
//	@Summary		Log out
//	@Description	Revokes the current token and clears the auth cookie
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Security		BearerAuth
//	@Router			/api/v1/auth/logout [post]
func (a *API) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if tokenString := extractToken(r); tokenString != "" {
		if claims, err := a.parseJWTAllowExpired(tokenString); err == nil && claims.ID != "" {
			expiry := time.Now().Add(24 * time.Hour)
			if claims.ExpiresAt != nil {
				expiry = claims.ExpiresAt.Time
			}
			a.revokeToken(claims.ID, expiry)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   r.TLS != nil,
	})

	if username, ok := usernameFromContext(r.Context()); ok {
		a.logger.Infow("AUDIT: logout", "username", username, "client_ip", a.clientIP(r))
	}
	a.respondJSON(w, map[string]string{"message": "Logged out"}, http.StatusOK)
}

// authStatusHandler reports whether the caller is authenticated without
// requiring that they are.
//
//	@Summary		Get authentication status
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}	"auth_enabled, authenticated, username, roles"
//	@Router			/api/v1/auth/status [get]
func (a *API) authStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !a.config.Auth.Enabled {
		a.respondJSON(w, map[string]interface{}{
			"auth_enabled":  false,
			"authenticated": true,
			"username":      "anonymous",
		}, http.StatusOK)
		return
	}

	tokenString := extractToken(r)
	if tokenString == "" {
		a.respondJSON(w, map[string]interface{}{
			"auth_enabled":  true,
			"authenticated": false,
		}, http.StatusOK)
		return
	}

	claims, err := a.validateJWT(tokenString)
	if err != nil {
		a.respondJSON(w, map[string]interface{}{
			"auth_enabled":  true,
			"authenticated": false,
		}, http.StatusOK)
		return
	}

	resp := map[string]interface{}{
		"auth_enabled":  true,
		"authenticated": true,
		"username":      claims.Username,
		"roles":         claims.Roles,
	}
	if claims.ExpiresAt != nil {
		resp["expires_at"] = claims.ExpiresAt.UTC().Format(time.RFC3339)
	}
	a.respondJSON(w, resp, http.StatusOK)
}

// csrfTokenHandler mints a token explicitly for clients that want one
// before their first mutating request.
//
//	@Summary		Issue a CSRF token
//	@Description	Sets the CSRF cookie and returns the matching token and the header to submit it in
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	map[string]string	"token, header"
//	@Router			/api/v1/auth/csrf [get]
func (a *API) csrfTokenHandler(w http.ResponseWriter, r *http.Request) {
	token, err := a.protect.Issue(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue CSRF token", err, a.logger)
		return
	}
	a.respondJSON(w, map[string]string{
		"token":  token,
		"header": a.protect.HeaderName(),
	}, http.StatusOK)
}
