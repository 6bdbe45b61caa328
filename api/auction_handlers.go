package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"bidhouse/auction"
	"bidhouse/core"
	"bidhouse/service"
	"bidhouse/storage"
)

// writeServiceError maps service and storage errors onto HTTP statuses. Bid
// rejections get a structured body because clients act on the reason; other
// failures reduce to a sanitized message.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var rejected *service.BidRejectedError
	switch {
	case errors.As(err, &rejected):
		resp := map[string]interface{}{
			"error":          "Bid rejected",
			"reason":         rejected.Reason,
			"time_remaining": rejected.TimeRemaining,
		}
		if rejected.MinimumBid > 0 {
			resp["minimum_bid"] = rejected.MinimumBid
		}
		a.respondJSON(w, resp, http.StatusConflict)
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error(), err, a.logger)
	case errors.Is(err, storage.ErrAuctionNotFound):
		writeError(w, http.StatusNotFound, "Auction not found", err, a.logger)
	case errors.Is(err, service.ErrAuctionTerminal):
		writeError(w, http.StatusConflict, "Auction is already ended or cancelled", err, a.logger)
	case errors.Is(err, service.ErrAuctionStarted):
		writeError(w, http.StatusConflict, "Auction has already started", err, a.logger)
	case errors.Is(err, storage.ErrArchiveDisabled):
		writeError(w, http.StatusServiceUnavailable, "Event archive is not configured", err, a.logger)
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error", err, a.logger)
	}
}

// queryInt parses an integer query parameter, falling back to def on
// anything unparseable. Range clamping happens in the service.
func queryInt(q url.Values, key string, def int) int {
	raw := q.Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// listAuctionsHandler godoc
//
//	@Summary		List auctions
//	@Description	Returns auctions matching the given filters, newest first
//	@Tags			auctions
//	@Produce		json
//	@Param			status		query		string	false	"Filter by status (scheduled, active, ended, cancelled)"
//	@Param			created_by	query		string	false	"Filter by creator"
//	@Param			limit		query		int		false	"Items per page (default 50, max 500)"
//	@Param			offset		query		int		false	"Items to skip"
//	@Success		200			{object}	map[string]interface{}	"auctions, count, total"
//	@Failure		400			{string}	string	"Invalid status filter"
//	@Router			/api/v1/auctions [get]
func (a *API) listAuctionsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := storage.AuctionFilters{
		CreatedBy: q.Get("created_by"),
		Limit:     queryInt(q, "limit", 0),
		Offset:    queryInt(q, "offset", 0),
	}
	if raw := q.Get("status"); raw != "" {
		status := auction.Status(raw)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, "Invalid status filter", nil, a.logger)
			return
		}
		filters.Status = status
	}

	auctions, total, err := a.service.ListAuctions(r.Context(), filters)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	a.respondJSON(w, map[string]interface{}{
		"auctions": auctions,
		"count":    len(auctions),
		"total":    total,
	}, http.StatusOK)
}

// createAuctionHandler godoc
//
//	@Summary		Create an auction
//	@Description	Creates an auction and derives its bidder deadline and settlement deadline from the chain clock
//	@Tags			auctions
//	@Accept			json
//	@Produce		json
//	@Param			auction	body		service.CreateAuctionInput	true	"Auction details"
//	@Success		201		{object}	auction.Auction
//	@Failure		400		{string}	string	"Validation failure"
//	@Failure		403		{string}	string	"Forbidden"
//	@Security		BearerAuth
//	@Router			/api/v1/auctions [post]
func (a *API) createAuctionHandler(w http.ResponseWriter, r *http.Request) {
	var input service.CreateAuctionInput
	if !a.decodeJSON(w, r, &input, a.config.API.JSONBodyLimit) {
		return
	}
	if input.CreatedBy == "" {
		if username, ok := usernameFromContext(r.Context()); ok {
			input.CreatedBy = username
		}
	}

	created, err := a.service.CreateAuction(r.Context(), input)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.respondJSON(w, created, http.StatusCreated)
}

// getAuctionHandler godoc
//
//	@Summary		Get auction details
//	@Tags			auctions
//	@Produce		json
//	@Param			id	path		string	true	"Auction ID"
//	@Success		200	{object}	auction.Auction
//	@Failure		404	{string}	string	"Auction not found"
//	@Router			/api/v1/auctions/{id} [get]
func (a *API) getAuctionHandler(w http.ResponseWriter, r *http.Request) {
	found, err := a.service.GetAuction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.respondJSON(w, found, http.StatusOK)
}

// updateAuctionHandler godoc
//
//	@Summary		Update an auction
//	@Description	Updates mutable fields; timing changes are rejected once the auction has started
//	@Tags			auctions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string	true	"Auction ID"
//	@Param			auction	body		service.UpdateAuctionInput	true	"Fields to update"
//	@Success		200		{object}	auction.Auction
//	@Failure		400		{string}	string	"Validation failure"
//	@Failure		404		{string}	string	"Auction not found"
//	@Failure		409		{string}	string	"Auction has already started"
//	@Security		BearerAuth
//	@Router			/api/v1/auctions/{id} [put]
func (a *API) updateAuctionHandler(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateAuctionInput
	if !a.decodeJSON(w, r, &input, a.config.API.JSONBodyLimit) {
		return
	}

	updated, err := a.service.UpdateAuction(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.respondJSON(w, updated, http.StatusOK)
}

// cancelAuctionHandler cancels rather than deletes: the row and its bids
// stay for dispute handling, and the gate rejects everything from here on.
//
//	@Summary		Cancel an auction
//	@Description	Marks the auction cancelled; the record and its bids are kept for dispute handling
//	@Tags			auctions
//	@Produce		json
//	@Param			id	path		string	true	"Auction ID"
//	@Success		200	{object}	map[string]string
//	@Failure		404	{string}	string	"Auction not found"
//	@Failure		409	{string}	string	"Auction is already ended or cancelled"
//	@Security		BearerAuth
//	@Router			/api/v1/auctions/{id} [delete]
func (a *API) cancelAuctionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.service.CancelAuction(r.Context(), id); err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.respondJSON(w, map[string]string{
		"message":    "Auction cancelled",
		"auction_id": id,
	}, http.StatusOK)
}

// auctionStatusHandler godoc
//
//	@Summary		Get auction status
//	@Description	Returns the derived status report: countdown, bid gate decision, high bid, and the chain reading it was computed from
//	@Tags			auctions
//	@Produce		json
//	@Param			id	path		string	true	"Auction ID"
//	@Success		200	{object}	service.StatusReport
//	@Failure		404	{string}	string	"Auction not found"
//	@Router			/api/v1/auctions/{id}/status [get]
func (a *API) auctionStatusHandler(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.AuctionStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.respondJSON(w, report, http.StatusOK)
}

// listBidsHandler godoc
//
//	@Summary		List bids
//	@Description	Returns accepted bids for an auction, highest first
//	@Tags			bids
//	@Produce		json
//	@Param			id		path		string	true	"Auction ID"
//	@Param			limit	query		int		false	"Items per page (default 50, max 500)"
//	@Param			offset	query		int		false	"Items to skip"
//	@Success		200		{object}	map[string]interface{}	"bids, count"
//	@Failure		404		{string}	string	"Auction not found"
//	@Router			/api/v1/auctions/{id}/bids [get]
func (a *API) listBidsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bids, err := a.service.ListBids(r.Context(), mux.Vars(r)["id"],
		queryInt(q, "limit", 0), queryInt(q, "offset", 0))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.respondJSON(w, map[string]interface{}{
		"bids":  bids,
		"count": len(bids),
	}, http.StatusOK)
}

// placeBidHandler godoc
//
//	@Summary		Place a bid
//	@Description	Gates the bid on the chain clock and the auction window; rejections return the reason and remaining time
//	@Tags			bids
//	@Accept			json
//	@Produce		json
//	@Param			id	path		string					true	"Auction ID"
//	@Param			bid	body		service.PlaceBidInput	true	"Bid details"
//	@Success		201	{object}	auction.Bid
//	@Failure		400	{string}	string	"Validation failure"
//	@Failure		404	{string}	string	"Auction not found"
//	@Failure		409	{object}	map[string]interface{}	"Bid rejected: reason, time_remaining, minimum_bid"
//	@Security		BearerAuth
//	@Router			/api/v1/auctions/{id}/bids [post]
func (a *API) placeBidHandler(w http.ResponseWriter, r *http.Request) {
	var input service.PlaceBidInput
	if !a.decodeJSON(w, r, &input, a.config.API.JSONBodyLimit) {
		return
	}

	// The path names the auction; a conflicting body value is ignored.
	input.AuctionID = mux.Vars(r)["id"]

	// With auth on, the bidder is whoever holds the token. The body field
	// only matters in open deployments.
	if a.config.Auth.Enabled {
		if username, ok := usernameFromContext(r.Context()); ok {
			input.Bidder = username
		}
	}
	input.SourceIP = a.clientIP(r)
	input.RequestID = core.GetRequestIDOrDefault(r.Context())

	bid, err := a.service.PlaceBid(r.Context(), input)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.respondJSON(w, bid, http.StatusCreated)
}

// listBidAttemptsHandler exposes the archive's attempt log for one auction,
// accepted and rejected alike. Admin-only: attempts carry source IPs.
//
//	@Summary		List bid attempts
//	@Description	Returns the archived attempt log for an auction, rejected attempts included
//	@Tags			bids
//	@Produce		json
//	@Param			id		path		string	true	"Auction ID"
//	@Param			limit	query		int		false	"Items per page (default 100)"
//	@Param			offset	query		int		false	"Items to skip"
//	@Success		200		{object}	map[string]interface{}	"attempts, count"
//	@Failure		403		{string}	string	"Forbidden"
//	@Failure		503		{string}	string	"Event archive is not configured"
//	@Security		BearerAuth
//	@Router			/api/v1/auctions/{id}/attempts [get]
func (a *API) listBidAttemptsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	attempts, err := a.archive.QueryBidAttempts(r.Context(), mux.Vars(r)["id"],
		queryInt(q, "limit", 100), queryInt(q, "offset", 0))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.respondJSON(w, map[string]interface{}{
		"attempts": attempts,
		"count":    len(attempts),
	}, http.StatusOK)
}
