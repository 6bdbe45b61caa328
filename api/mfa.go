package api

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"net/http"
	"regexp"

	"github.com/pquerna/otp/totp"

	"bidhouse/core"
)

var totpCodePattern = regexp.MustCompile(`^\d{6}$`)

// validTOTPCode checks the code shape before handing it to the TOTP
// library, so garbage input never reaches the crypto path.
func validTOTPCode(code, secret string) bool {
	if secret == "" || !totpCodePattern.MatchString(code) {
		return false
	}
	return totp.Validate(code, secret)
}

// mfaCodeRequest carries the six digit code for verify and disable.
type mfaCodeRequest struct {
	Code      string `json:"code" validate:"required,len=6"`
	CSRFToken string `json:"_csrf_token"`
}

// enableMFAHandler starts TOTP enrollment: it generates and stores a secret
// without enabling it, then returns the provisioning URL and QR image. MFA
// only becomes active once verifyMFAHandler sees a valid code, proving the
// authenticator actually holds the secret.
//
//	@Summary		Start MFA enrollment
//	@Description	Generates a TOTP secret and returns the provisioning URL and QR code; MFA activates only after verification
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	map[string]string	"secret, url, qr_code"
//	@Failure		401	{string}	string	"Authentication required"
//	@Failure		409	{string}	string	"MFA is already enabled"
//	@Security		BearerAuth
//	@Router			/api/v1/auth/mfa/enable [post]
func (a *API) enableMFAHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := usernameFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil, a.logger)
		return
	}

	user, err := a.users.GetUserByUsername(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load user", err, a.logger)
		return
	}
	if user.MFAEnabled {
		writeError(w, http.StatusConflict, "MFA is already enabled", nil, a.logger)
		return
	}

	issuer := a.config.Auth.MFAIssuer
	if issuer == "" {
		issuer = "bidhouse"
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: username,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate MFA secret", err, a.logger)
		return
	}

	if err := a.users.SetTOTPSecret(r.Context(), username, key.Secret(), false); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store MFA secret", err, a.logger)
		return
	}

	img, err := key.Image(200, 200)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render QR code", err, a.logger)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render QR code", err, a.logger)
		return
	}

	a.logger.Infow("AUDIT: MFA enrollment started", "username", username)
	a.respondJSON(w, map[string]string{
		"secret":  key.Secret(),
		"url":     key.URL(),
		"qr_code": "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		"message": "Scan the QR code and verify with a generated code to enable MFA",
	}, http.StatusOK)
}

// verifyMFAHandler completes enrollment by validating a code against the
// stored secret and flipping MFA on.
//
//	@Summary		Verify MFA enrollment
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			code	body		mfaCodeRequest	true	"Six digit TOTP code"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{string}	string	"MFA enrollment has not been started"
//	@Failure		401		{string}	string	"Invalid MFA code"
//	@Failure		409		{string}	string	"MFA is already enabled"
//	@Security		BearerAuth
//	@Router			/api/v1/auth/mfa/verify [post]
func (a *API) verifyMFAHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := usernameFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil, a.logger)
		return
	}

	var req mfaCodeRequest
	if !a.decodeJSON(w, r, &req, a.config.API.JSONBodyLimit) {
		return
	}

	user, err := a.users.GetUserByUsername(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load user", err, a.logger)
		return
	}
	if user.MFAEnabled {
		writeError(w, http.StatusConflict, "MFA is already enabled", nil, a.logger)
		return
	}
	if user.TOTPSecret == "" {
		writeError(w, http.StatusBadRequest, "MFA enrollment has not been started", nil, a.logger)
		return
	}

	if !validTOTPCode(req.Code, user.TOTPSecret) {
		a.recordSecurityEvent(r, core.EventAuthMFAFailed, core.SeverityMedium, map[string]string{
			"username": username,
			"stage":    "verify",
		})
		writeError(w, http.StatusUnauthorized, "Invalid MFA code", nil, a.logger)
		return
	}

	if err := a.users.SetTOTPSecret(r.Context(), username, user.TOTPSecret, true); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to enable MFA", err, a.logger)
		return
	}

	a.logger.Infow("AUDIT: MFA enabled", "username", username)
	a.respondJSON(w, map[string]string{"message": "MFA enabled"}, http.StatusOK)
}

// disableMFAHandler turns MFA off after proving possession of the current
// authenticator.
//
//	@Summary		Disable MFA
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			code	body		mfaCodeRequest	true	"Six digit TOTP code"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{string}	string	"MFA is not enabled"
//	@Failure		401		{string}	string	"Invalid MFA code"
//	@Security		BearerAuth
//	@Router			/api/v1/auth/mfa/disable [post]
func (a *API) disableMFAHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := usernameFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil, a.logger)
		return
	}

	var req mfaCodeRequest
	if !a.decodeJSON(w, r, &req, a.config.API.JSONBodyLimit) {
		return
	}

	user, err := a.users.GetUserByUsername(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load user", err, a.logger)
		return
	}
	if !user.MFAEnabled {
		writeError(w, http.StatusBadRequest, "MFA is not enabled", nil, a.logger)
		return
	}

	if !validTOTPCode(req.Code, user.TOTPSecret) {
		a.recordSecurityEvent(r, core.EventAuthMFAFailed, core.SeverityMedium, map[string]string{
			"username": username,
			"stage":    "disable",
		})
		writeError(w, http.StatusUnauthorized, "Invalid MFA code", nil, a.logger)
		return
	}

	if err := a.users.SetTOTPSecret(r.Context(), username, "", false); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to disable MFA", err, a.logger)
		return
	}

	a.logger.Infow("AUDIT: MFA disabled", "username", username)
	a.respondJSON(w, map[string]string{"message": "MFA disabled"}, http.StatusOK)
}
