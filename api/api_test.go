package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bidhouse/auction"
	"bidhouse/chain"
	"bidhouse/config"
	"bidhouse/core"
	"bidhouse/csrf"
	"bidhouse/service"
	"bidhouse/storage"
)

// stubClock satisfies TimeSource with a settable reading so tests can move
// chain time without a node.
type stubClock struct {
	mu      sync.Mutex
	reading chain.Reading
}

var _ TimeSource = (*stubClock)(nil)

func (s *stubClock) Now(context.Context) chain.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reading
}

func (s *stubClock) set(r chain.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = r
}

// memoryArchive is an in-memory EventArchive. It doubles as the security
// sink in tests so recorded events can be queried back through the API.
type memoryArchive struct {
	mu       sync.Mutex
	events   []core.SecurityEvent
	attempts []storage.BidAttempt
}

var _ storage.EventArchive = (*memoryArchive)(nil)

func (m *memoryArchive) Record(_ context.Context, event core.SecurityEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *memoryArchive) RecordBidAttempt(attempt *storage.BidAttempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, *attempt)
}

func (m *memoryArchive) QueryEvents(_ context.Context, filters storage.SecurityEventFilters) ([]core.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []core.SecurityEvent
	for _, event := range m.events {
		if filters.Severity != "" && event.Severity != filters.Severity {
			continue
		}
		if filters.Reason != "" && event.Reason != filters.Reason {
			continue
		}
		if !filters.Since.IsZero() && event.Timestamp.Before(filters.Since) {
			continue
		}
		if !filters.Until.IsZero() && event.Timestamp.After(filters.Until) {
			continue
		}
		matched = append(matched, event)
	}
	if filters.Offset > 0 {
		if filters.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filters.Offset:]
	}
	if filters.Limit > 0 && len(matched) > filters.Limit {
		matched = matched[:filters.Limit]
	}
	return matched, nil
}

func (m *memoryArchive) CountEventsBySeverity(_ context.Context, since time.Time) (map[core.Severity]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[core.Severity]int64)
	for _, event := range m.events {
		if event.Timestamp.Before(since) {
			continue
		}
		counts[event.Severity]++
	}
	return counts, nil
}

func (m *memoryArchive) QueryBidAttempts(_ context.Context, auctionID string, limit, offset int) ([]storage.BidAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []storage.BidAttempt
	for _, attempt := range m.attempts {
		if attempt.AuctionID == auctionID {
			matched = append(matched, attempt)
		}
	}
	if offset > 0 {
		if offset >= len(matched) {
			return nil, nil
		}
		matched = matched[offset:]
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// testEnv bundles the API under test with the pieces tests poke at
// directly.
type testEnv struct {
	api     *API
	cfg     *config.Config
	clock   *stubClock
	archive *memoryArchive
	users   *storage.SQLiteUserStorage
	svc     *service.AuctionService
	hub     *Hub
}

func testConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{
			Host:           "127.0.0.1",
			AllowedOrigins: []string{"http://localhost:3000"},
			JSONBodyLimit:  1 << 20,
			LoginBodyLimit: 4096,
		},
		Auth: config.AuthConfig{
			JWTSecret:        "test-jwt-secret",
			JWTExpiry:        time.Hour,
			LockoutThreshold: 3,
			LockoutDuration:  time.Minute,
		},
		Chain: config.ChainConfig{
			RequestTimeout: 2 * time.Second,
		},
	}
}

// newTestAPI builds a fully wired API over a temp-dir SQLite database. Auth
// and rate limiting are off unless an option turns them on; the chain clock
// starts at timestamp 1000 and accurate.
func newTestAPI(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := zap.NewNop().Sugar()

	db, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := &stubClock{reading: chain.Reading{Timestamp: 1000, BlockNumber: 42, Accurate: true}}
	archive := &memoryArchive{}

	protect, err := csrf.New(csrf.Config{Secret: "test-csrf-secret"}, archive, logger)
	require.NoError(t, err)

	hub := NewHub(logger)
	hub.Start(context.Background())
	t.Cleanup(hub.Stop)

	auctions := storage.NewSQLiteAuctionStorage(db, logger)
	bids := storage.NewSQLiteBidStorage(db, logger)
	users := storage.NewSQLiteUserStorage(db, logger)

	svc := service.NewAuctionService(auctions, bids, archive, clock, hub, logger, service.DefaultOptions())

	a := NewAPI(cfg, svc, users, archive, clock, protect, hub, archive, nil, logger)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	return &testEnv{
		api:     a,
		cfg:     cfg,
		clock:   clock,
		archive: archive,
		users:   users,
		svc:     svc,
		hub:     hub,
	}
}

// doRequest runs one request through the full middleware chain.
func (e *testEnv) doRequest(t *testing.T, method, target string, body interface{}, modify ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range modify {
		m(req)
	}

	rec := httptest.NewRecorder()
	e.api.router.ServeHTTP(rec, req)
	return rec
}

// csrfPair fetches a fresh token and its signed cookie. The handler rotates
// the cookie the subrouter middleware may have minted first, so the token
// must be paired with the last cookie in the response.
func (e *testEnv) csrfPair(t *testing.T) (string, *http.Cookie) {
	t.Helper()

	rec := e.doRequest(t, http.MethodGet, "/api/v1/auth/csrf", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Token  string `json:"token"`
		Header string `json:"header"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == e.api.protect.CookieName() {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "CSRF cookie missing from response")
	require.True(t, strings.HasPrefix(cookie.Value, body.Token+"."),
		"cookie must carry the signed form of the returned token")
	return body.Token, cookie
}

// withCSRF attaches the double-submit pair to a request.
func (e *testEnv) withCSRF(token string, cookie *http.Cookie) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set(e.api.protect.HeaderName(), token)
		r.AddCookie(cookie)
	}
}

// createAuction makes an auction through the API and returns the created
// record.
func (e *testEnv) createAuction(t *testing.T, input service.CreateAuctionInput) auction.Auction {
	t.Helper()

	token, cookie := e.csrfPair(t)
	rec := e.doRequest(t, http.MethodPost, "/api/v1/auctions", input, e.withCSRF(token, cookie))
	require.Equal(t, http.StatusCreated, rec.Code, "create auction failed: %s", rec.Body.String())

	var created auction.Auction
	decodeBody(t, rec, &created)
	return created
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), "body: %s", rec.Body.String())
}

// eventFilter is shorthand for a reason-only archive query.
func eventFilter(reason string) storage.SecurityEventFilters {
	return storage.SecurityEventFilters{Reason: reason}
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestAPI(t)

	rec := e.doRequest(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string `json:"status"`
		Chain  struct {
			Timestamp   int64  `json:"timestamp"`
			BlockNumber uint64 `json:"block_number"`
			Accurate    bool   `json:"is_accurate"`
		} `json:"chain"`
		WebsocketClients int `json:"websocket_clients"`
	}
	decodeBody(t, rec, &body)

	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, int64(1000), body.Chain.Timestamp)
	assert.Equal(t, uint64(42), body.Chain.BlockNumber)
	assert.True(t, body.Chain.Accurate)
	assert.Equal(t, 0, body.WebsocketClients)
}

func TestChainTimeEndpoint(t *testing.T) {
	e := newTestAPI(t)

	rec := e.doRequest(t, http.MethodGet, "/api/v1/time", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var reading chain.Reading
	decodeBody(t, rec, &reading)
	assert.Equal(t, int64(1000), reading.Timestamp)
	assert.True(t, reading.Accurate)

	// Degraded clock is reported, not hidden.
	e.clock.set(chain.Reading{Timestamp: 2000, Accurate: false})
	rec = e.doRequest(t, http.MethodGet, "/api/v1/time", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	decodeBody(t, rec, &reading)
	assert.Equal(t, int64(2000), reading.Timestamp)
	assert.False(t, reading.Accurate)
}

func TestCSRFTokenEndpoint(t *testing.T) {
	e := newTestAPI(t)

	token, cookie := e.csrfPair(t)
	assert.NotEmpty(t, token)
	assert.Equal(t, e.api.protect.CookieName(), cookie.Name)
	assert.True(t, cookie.HttpOnly)
}

func TestMutatingRequestWithoutCSRFTokenRejected(t *testing.T) {
	e := newTestAPI(t)

	rec := e.doRequest(t, http.MethodPost, "/api/v1/auctions",
		service.CreateAuctionInput{Title: "Lot 1", DurationHours: 1})
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Code string `json:"code"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "CSRF_INVALID", body.Code)
}

func TestMutatingRequestWithMismatchedCSRFTokenRejected(t *testing.T) {
	e := newTestAPI(t)

	_, cookie := e.csrfPair(t)
	rec := e.doRequest(t, http.MethodPost, "/api/v1/auctions",
		service.CreateAuctionInput{Title: "Lot 1", DurationHours: 1},
		func(r *http.Request) {
			r.Header.Set(e.api.protect.HeaderName(), "0000000000000000")
			r.AddCookie(cookie)
		})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSafeMethodMintsCSRFCookie(t *testing.T) {
	e := newTestAPI(t)

	rec := e.doRequest(t, http.MethodGet, "/api/v1/time", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var minted bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == e.api.protect.CookieName() && c.Value != "" {
			minted = true
		}
	}
	assert.True(t, minted, "first safe request should mint a CSRF cookie")
}

func TestAuthStatusWithAuthDisabled(t *testing.T) {
	e := newTestAPI(t)

	rec := e.doRequest(t, http.MethodGet, "/api/v1/auth/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AuthEnabled   bool   `json:"auth_enabled"`
		Authenticated bool   `json:"authenticated"`
		Username      string `json:"username"`
	}
	decodeBody(t, rec, &body)
	assert.False(t, body.AuthEnabled)
	assert.True(t, body.Authenticated)
	assert.Equal(t, "anonymous", body.Username)
}

func TestUnknownRouteReturns404(t *testing.T) {
	e := newTestAPI(t)

	rec := e.doRequest(t, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopIsIdempotent(t *testing.T) {
	e := newTestAPI(t)

	require.NoError(t, e.api.Stop(context.Background()))
	require.NoError(t, e.api.Stop(context.Background()))
}
