package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"bidhouse/auction"
	"bidhouse/service"
	"bidhouse/storage"
	"bidhouse/util"
)

// exportEnvelope is the document written by export and accepted by import.
type exportEnvelope struct {
	ExportedAt time.Time         `json:"exported_at"`
	Count      int               `json:"count"`
	Auctions   []auction.Auction `json:"auctions"`
}

// exportPageSize is how many auctions each storage round-trip fetches
// during an export.
const exportPageSize = 500

// exportAuctionsHandler streams every auction as a single JSON or YAML
// document. Pagination is internal; the client gets the full set.
//
//	@Summary		Export auctions
//	@Tags			auctions
//	@Produce		json
//	@Param			format	query		string	false	"Export format: json (default) or yaml"
//	@Success		200		{object}	exportEnvelope
//	@Failure		400		{string}	string	"Unsupported export format"
//	@Router			/api/v1/auctions/export [get]
func (a *API) exportAuctionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var all []auction.Auction
	offset := 0
	for {
		page, total, err := a.service.ListAuctions(ctx, storage.AuctionFilters{
			Limit:  exportPageSize,
			Offset: offset,
		})
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		all = append(all, page...)
		offset += len(page)
		if len(page) == 0 || int64(offset) >= total {
			break
		}
	}

	envelope := exportEnvelope{
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Auctions:   all,
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		w.Header().Set("Content-Disposition", `attachment; filename="auctions.json"`)
		a.respondJSON(w, envelope, http.StatusOK)
	case "yaml", "yml":
		// Round-trip through JSON so the YAML keys match the JSON tags
		// instead of lowercased Go field names.
		raw, err := json.Marshal(envelope)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to encode export", err, a.logger)
			return
		}
		var generic interface{}
		if err := json.Unmarshal(raw, &generic); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to encode export", err, a.logger)
			return
		}
		data, err := yaml.Marshal(generic)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to encode export", err, a.logger)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		w.Header().Set("Content-Disposition", `attachment; filename="auctions.yaml"`)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			a.logger.Errorw("Failed to write YAML export", "error", err)
		}
	default:
		writeError(w, http.StatusBadRequest, "Unsupported export format", nil, a.logger)
	}
}

// importFailure reports one auction that could not be created.
type importFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// importAuctionsHandler bulk-creates auctions from an export-shaped
// document. Each auction is recreated through the normal create path, so
// end times and status are derived fresh rather than trusted from the
// document. Items fail independently; the response names each failure.
//
//	@Summary		Import auctions
//	@Description	Bulk-creates auctions from an export-shaped JSON document; each item is validated and created independently
//	@Tags			auctions
//	@Accept			json
//	@Produce		json
//	@Param			document	body		object{auctions=[]service.CreateAuctionInput}	true	"Import document"
//	@Success		200			{object}	map[string]interface{}	"imported, failed"
//	@Failure		400			{object}	map[string]interface{}	"Import validation failed: details"
//	@Failure		413			{string}	string	"Import document too large"
//	@Security		BearerAuth
//	@Router			/api/v1/auctions/import [post]
func (a *API) importAuctionsHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(a.config.API.JSONBodyLimit)))
	if err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "Import document too large", err, a.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read import document", err, a.logger)
		return
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(auction.ImportSchema),
		gojsonschema.NewBytesLoader(body),
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Import document is not valid JSON", err, a.logger)
		return
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, issue := range result.Errors() {
			details = append(details, issue.String())
		}
		a.respondJSON(w, map[string]interface{}{
			"error":   "Import validation failed",
			"details": details,
		}, http.StatusBadRequest)
		return
	}

	var doc struct {
		Auctions []service.CreateAuctionInput `json:"auctions"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse import document", err, a.logger)
		return
	}

	username, _ := usernameFromContext(r.Context())

	imported := 0
	failed := make([]importFailure, 0)
	for i, input := range doc.Auctions {
		if input.CreatedBy == "" {
			input.CreatedBy = username
		}
		if _, err := a.service.CreateAuction(r.Context(), input); err != nil {
			failed = append(failed, importFailure{Index: i, Error: util.SanitizeError(err)})
			continue
		}
		imported++
	}

	a.logger.Infow("AUDIT: auctions imported",
		"imported", imported,
		"failed", len(failed),
		"username", username)
	a.respondJSON(w, map[string]interface{}{
		"imported": imported,
		"failed":   failed,
	}, http.StatusOK)
}
