package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidhouse/config"
	"bidhouse/core"
)

func TestDecodeJSONBodyWithLimit(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
	}

	tests := []struct {
		name       string
		body       string
		limit      int
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "syntax error reports position",
			body:       `{"title" "x"}`,
			limit:      1024,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "badly-formed JSON (at position",
		},
		{
			name:       "truncated body",
			body:       `{"title":`,
			limit:      1024,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "badly-formed JSON",
		},
		{
			name:       "wrong field type names the field",
			body:       `{"title": 42}`,
			limit:      1024,
			wantStatus: http.StatusBadRequest,
			wantMsg:    `invalid value for the "title" field`,
		},
		{
			name:       "unknown field rejected",
			body:       `{"bogus": true}`,
			limit:      1024,
			wantStatus: http.StatusBadRequest,
			wantMsg:    `unknown field "bogus"`,
		},
		{
			name:       "empty body",
			body:       "",
			limit:      1024,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "must not be empty",
		},
		{
			name:       "trailing second object",
			body:       `{"title":"a"}{"title":"b"}`,
			limit:      1024,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "single JSON object",
		},
		{
			name:       "oversized body",
			body:       `{"title":"` + strings.Repeat("a", 100) + `"}`,
			limit:      10,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantMsg:    "must not exceed 10 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var dst payload
			err := decodeJSONBodyWithLimit(w, req, &dst, tt.limit)
			require.Error(t, err)

			var mr *malformedRequest
			require.ErrorAs(t, err, &mr)
			assert.Equal(t, tt.wantStatus, mr.status)
			assert.Contains(t, mr.msg, tt.wantMsg)
		})
	}
}

func TestDecodeJSONBodyWithLimitAcceptsValidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"Lot 1"}`))
	w := httptest.NewRecorder()

	var dst struct {
		Title string `json:"title"`
	}
	require.NoError(t, decodeJSONBodyWithLimit(w, req, &dst, 1024))
	assert.Equal(t, "Lot 1", dst.Title)
}

func TestProbeTimeDisabledByDefault(t *testing.T) {
	e := newTestAPI(t)

	token, cookie := e.csrfPair(t)
	rec := e.doRequest(t, http.MethodPost, "/api/v1/time/probe",
		map[string]string{"rpc_url": "https://rpc.example"}, e.withCSRF(token, cookie))

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Time probe is disabled")

	events, err := e.archive.QueryEvents(context.Background(), eventFilter(core.EventProbeRejected))
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "probe_disabled", events[0].Details["cause"])
}

func withProbeEnabled(cfg *config.Config) {
	cfg.Chain.ProbeEnabled = true
}

func TestProbeTimeRejectsInvalidURL(t *testing.T) {
	e := newTestAPI(t, withProbeEnabled)

	for _, rpcURL := range []string{"ftp://rpc.example", "rpc.example", ""} {
		t.Run(rpcURL, func(t *testing.T) {
			token, cookie := e.csrfPair(t)
			rec := e.doRequest(t, http.MethodPost, "/api/v1/time/probe",
				map[string]string{"rpc_url": rpcURL}, e.withCSRF(token, cookie))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "rpc_url must be an absolute http or https URL")
		})
	}
}

func TestProbeTimeFetchesBlockTime(t *testing.T) {
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"number":"0x10","timestamp":"0x5f5e100"}}`))
	}))
	defer node.Close()

	e := newTestAPI(t, withProbeEnabled)

	token, cookie := e.csrfPair(t)
	rec := e.doRequest(t, http.MethodPost, "/api/v1/time/probe",
		map[string]string{"rpc_url": node.URL}, e.withCSRF(token, cookie))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Endpoint    string `json:"endpoint"`
		Timestamp   int64  `json:"timestamp"`
		BlockNumber uint64 `json:"block_number"`
		Accurate    bool   `json:"is_accurate"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, node.URL, body.Endpoint)
	assert.Equal(t, int64(100000000), body.Timestamp)
	assert.Equal(t, uint64(16), body.BlockNumber)
	assert.True(t, body.Accurate)
}

func TestProbeTimeReportsInaccurateWhenEndpointDown(t *testing.T) {
	e := newTestAPI(t, withProbeEnabled)

	token, cookie := e.csrfPair(t)
	rec := e.doRequest(t, http.MethodPost, "/api/v1/time/probe",
		map[string]string{"rpc_url": "http://127.0.0.1:1"}, e.withCSRF(token, cookie))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Timestamp int64 `json:"timestamp"`
		Accurate  bool  `json:"is_accurate"`
	}
	decodeBody(t, rec, &body)
	assert.False(t, body.Accurate, "unreachable endpoint should degrade to the local clock")
	assert.InDelta(t, time.Now().Unix(), body.Timestamp, 5)
}
