package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRejectsMutatingRequestWithoutToken(t *testing.T) {
	p, _ := newTestProtection(t)

	handlerCalled := false
	handler := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(method, "/api/v1/auctions", nil))

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t,
				`{"error":"Forbidden","message":"CSRF token validation failed","code":"CSRF_INVALID"}`,
				rec.Body.String())
		})
	}

	assert.False(t, handlerCalled, "handler must not run on rejected requests")
}

func TestMiddlewareAcceptsValidDoubleSubmit(t *testing.T) {
	p, _ := newTestProtection(t)
	token, cookie := issueToken(t, p)

	handler := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/auctions", nil)
	r.AddCookie(cookie)
	r.Header.Set("x-csrf-token", token)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestMiddlewareMintsTokenOnSafeRequest(t *testing.T) {
	p, _ := newTestProtection(t)

	handler := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auctions", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "_csrf_token", cookies[0].Name)

	token, signature, ok := splitSignedToken(cookies[0].Value)
	require.True(t, ok)
	assert.Equal(t, p.sign(token), signature)
}

func TestMiddlewareDoesNotReplaceExistingCookie(t *testing.T) {
	p, _ := newTestProtection(t)
	_, cookie := issueToken(t, p)

	handler := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/auctions", nil)
	r.AddCookie(cookie)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Empty(t, rec.Result().Cookies(), "existing cookie should not be reissued")
}

func TestMiddlewareFullRoundTrip(t *testing.T) {
	p, _ := newTestProtection(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auctions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(p.Middleware(mux))
	defer srv.Close()

	// First GET receives the token cookie.
	resp, err := http.Get(srv.URL + "/api/v1/auctions")
	require.NoError(t, err)
	resp.Body.Close()

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	token, _, ok := splitSignedToken(cookies[0].Value)
	require.True(t, ok)

	// Echoing the token lets the mutating request through.
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/auctions", nil)
	require.NoError(t, err)
	req.AddCookie(cookies[0])
	req.Header.Set("x-csrf-token", token)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Replaying with a foreign token is rejected.
	req, err = http.NewRequest(http.MethodPost, srv.URL+"/api/v1/auctions", nil)
	require.NoError(t, err)
	req.AddCookie(cookies[0])
	req.Header.Set("x-csrf-token", "attacker-supplied-token")

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
