package csrf

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the body returned for rejected mutating requests.
// Clients match on code, not the message text.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Middleware enforces CSRF validation on mutating requests and keeps safe
// requests supplied with a token cookie. Rejected requests get a 403 and
// the wrapped handler is never invoked.
func (p *Protection) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isMutating(r.Method) {
			if !p.Validate(r) {
				p.writeForbidden(w)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		// Mint a token for browsers that do not have one yet so their
		// first mutating request can pass validation.
		if _, err := r.Cookie(p.cfg.CookieName); err != nil {
			if _, err := p.Issue(w, r); err != nil {
				p.logger.Errorw("Failed to mint CSRF token", "error", err)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Protection) writeForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	if err := json.NewEncoder(w).Encode(errorResponse{
		Error:   "Forbidden",
		Message: "CSRF token validation failed",
		Code:    "CSRF_INVALID",
	}); err != nil {
		p.logger.Errorw("Failed to encode CSRF error response", "error", err)
	}
}
