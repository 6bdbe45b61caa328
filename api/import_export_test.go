package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"bidhouse/auction"
	"bidhouse/service"
)

func TestExportAuctionsJSON(t *testing.T) {
	e := newTestAPI(t)
	e.createAuction(t, service.CreateAuctionInput{Title: "Lot 1", DurationHours: 1})
	e.createAuction(t, service.CreateAuctionInput{Title: "Lot 2", DurationHours: 2})

	rec := e.doRequest(t, http.MethodGet, "/api/v1/auctions/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="auctions.json"`)

	var envelope struct {
		ExportedAt string            `json:"exported_at"`
		Count      int               `json:"count"`
		Auctions   []auction.Auction `json:"auctions"`
	}
	decodeBody(t, rec, &envelope)
	assert.NotEmpty(t, envelope.ExportedAt)
	assert.Equal(t, 2, envelope.Count)
	require.Len(t, envelope.Auctions, 2)
}

func TestExportAuctionsYAML(t *testing.T) {
	e := newTestAPI(t)
	e.createAuction(t, service.CreateAuctionInput{Title: "Lot 1", DurationHours: 1})

	rec := e.doRequest(t, http.MethodGet, "/api/v1/auctions/export?format=yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="auctions.yaml"`)

	var doc struct {
		Count    int                      `yaml:"count"`
		Auctions []map[string]interface{} `yaml:"auctions"`
	}
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, 1, doc.Count)
	require.Len(t, doc.Auctions, 1)
	assert.Equal(t, "Lot 1", doc.Auctions[0]["title"])
}

func TestExportAuctionsRejectsUnknownFormat(t *testing.T) {
	e := newTestAPI(t)

	rec := e.doRequest(t, http.MethodGet, "/api/v1/auctions/export?format=xml", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported export format")
}

func TestImportAuctions(t *testing.T) {
	e := newTestAPI(t)

	token, cookie := e.csrfPair(t)
	doc := map[string]interface{}{
		"auctions": []map[string]interface{}{
			{"title": "Imported 1", "duration_hours": 1},
			{"title": "Imported 2", "duration_hours": 2, "min_increment": 5},
		},
	}
	rec := e.doRequest(t, http.MethodPost, "/api/v1/auctions/import", doc, e.withCSRF(token, cookie))
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Imported int             `json:"imported"`
		Failed   []importFailure `json:"failed"`
	}
	decodeBody(t, rec, &result)
	assert.Equal(t, 2, result.Imported)
	assert.Empty(t, result.Failed)

	rec = e.doRequest(t, http.MethodGet, "/api/v1/auctions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Total int64 `json:"total"`
	}
	decodeBody(t, rec, &list)
	assert.Equal(t, int64(2), list.Total)
}

func TestImportAuctionsSchemaValidation(t *testing.T) {
	e := newTestAPI(t)

	token, cookie := e.csrfPair(t)
	doc := map[string]interface{}{
		"auctions": []map[string]interface{}{
			{"duration_hours": 1},
		},
	}
	rec := e.doRequest(t, http.MethodPost, "/api/v1/auctions/import", doc, e.withCSRF(token, cookie))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "Import validation failed", body.Error)
	assert.NotEmpty(t, body.Details)
}

func TestImportAuctionsRejectsNonJSONDocument(t *testing.T) {
	e := newTestAPI(t)

	token, cookie := e.csrfPair(t)
	rec := e.doRequest(t, http.MethodPost, "/api/v1/auctions/import", "not an object", e.withCSRF(token, cookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportAuctionsReportsPerItemFailures(t *testing.T) {
	e := newTestAPI(t)

	token, cookie := e.csrfPair(t)
	doc := map[string]interface{}{
		"auctions": []map[string]interface{}{
			{"title": "Good", "duration_hours": 1},
			{"title": "Too long", "duration_hours": 10000},
		},
	}
	rec := e.doRequest(t, http.MethodPost, "/api/v1/auctions/import", doc, e.withCSRF(token, cookie))
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Imported int             `json:"imported"`
		Failed   []importFailure `json:"failed"`
	}
	decodeBody(t, rec, &result)
	assert.Equal(t, 1, result.Imported)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 1, result.Failed[0].Index)
	assert.NotEmpty(t, result.Failed[0].Error)
}

func TestExportImportRoundTrip(t *testing.T) {
	source := newTestAPI(t)
	source.createAuction(t, service.CreateAuctionInput{Title: "Lot 1", DurationHours: 1})
	source.createAuction(t, service.CreateAuctionInput{Title: "Lot 2", DurationHours: 3, MinIncrement: 2})

	rec := source.doRequest(t, http.MethodGet, "/api/v1/auctions/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	exported := rec.Body.Bytes()

	target := newTestAPI(t)
	token, cookie := target.csrfPair(t)
	rec = target.doRequest(t, http.MethodPost, "/api/v1/auctions/import", json.RawMessage(exported), target.withCSRF(token, cookie))
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Imported int             `json:"imported"`
		Failed   []importFailure `json:"failed"`
	}
	decodeBody(t, rec, &result)
	assert.Equal(t, 2, result.Imported)
	assert.Empty(t, result.Failed)
}
