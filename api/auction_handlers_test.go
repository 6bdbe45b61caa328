package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidhouse/auction"
	"bidhouse/chain"
	"bidhouse/service"
)

func TestCreateAuctionDerivesEndTimeWindow(t *testing.T) {
	e := newTestAPI(t)

	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Genesis Plot #42",
		StartTime:     1000,
		DurationHours: 1,
	})

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, int64(4600), created.UserEndTime)
	assert.Equal(t, int64(4780), created.ActualEndTime)
	assert.Equal(t, int64(180), created.BufferSeconds)
	assert.Equal(t, auction.DefaultGraceSeconds, created.GraceSeconds)
	assert.Equal(t, auction.StatusActive, created.Status)
}

func TestCreateAuctionScheduledWhenStartInFuture(t *testing.T) {
	e := newTestAPI(t)

	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Future lot",
		StartTime:     5000,
		DurationHours: 2,
	})

	assert.Equal(t, auction.StatusScheduled, created.Status)
	assert.Equal(t, int64(5000+7200), created.UserEndTime)
}

func TestCreateAuctionDefaultsStartToChainTime(t *testing.T) {
	e := newTestAPI(t)

	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Now lot",
		DurationHours: 1,
	})

	assert.Equal(t, int64(1000), created.StartTime)
	assert.Equal(t, auction.StatusActive, created.Status)
}

func TestCreateAuctionFillsCreatedByFromIdentity(t *testing.T) {
	e := newTestAPI(t)

	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Attributed lot",
		DurationHours: 1,
	})

	assert.Equal(t, "anonymous", created.CreatedBy)
}

func TestCreateAuctionRejectsDurationOutOfBounds(t *testing.T) {
	e := newTestAPI(t)
	token, cookie := e.csrfPair(t)

	rec := e.doRequest(t, http.MethodPost, "/api/v1/auctions",
		service.CreateAuctionInput{Title: "Marathon", DurationHours: 1000},
		e.withCSRF(token, cookie))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "between 1 and 720")
}

func TestCreateAuctionRejectsUnknownField(t *testing.T) {
	e := newTestAPI(t)
	token, cookie := e.csrfPair(t)

	rec := e.doRequest(t, http.MethodPost, "/api/v1/auctions",
		map[string]interface{}{"title": "Lot", "duration_hours": 1, "bogus": true},
		e.withCSRF(token, cookie))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown field")
}

func TestGetAuctionRoundTrip(t *testing.T) {
	e := newTestAPI(t)
	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Roundtrip lot",
		StartTime:     1000,
		DurationHours: 1,
	})

	rec := e.doRequest(t, http.MethodGet, "/api/v1/auctions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched auction.Auction
	decodeBody(t, rec, &fetched)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, created.UserEndTime, fetched.UserEndTime)
}

func TestGetAuctionNotFound(t *testing.T) {
	e := newTestAPI(t)

	rec := e.doRequest(t, http.MethodGet, "/api/v1/auctions/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAuctionsWithStatusFilter(t *testing.T) {
	e := newTestAPI(t)
	e.createAuction(t, service.CreateAuctionInput{Title: "Live", StartTime: 1000, DurationHours: 1})
	e.createAuction(t, service.CreateAuctionInput{Title: "Upcoming", StartTime: 9000, DurationHours: 1})

	rec := e.doRequest(t, http.MethodGet, "/api/v1/auctions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Auctions []auction.Auction `json:"auctions"`
		Count    int               `json:"count"`
		Total    int64             `json:"total"`
	}
	decodeBody(t, rec, &listing)
	assert.Equal(t, 2, listing.Count)
	assert.Equal(t, int64(2), listing.Total)

	rec = e.doRequest(t, http.MethodGet, "/api/v1/auctions?status=active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &listing)
	require.Equal(t, 1, listing.Count)
	assert.Equal(t, "Live", listing.Auctions[0].Title)
}

func TestListAuctionsRejectsInvalidStatus(t *testing.T) {
	e := newTestAPI(t)

	rec := e.doRequest(t, http.MethodGet, "/api/v1/auctions?status=paused", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid status filter")
}

func TestUpdateAuctionRescheduleRecomputesWindow(t *testing.T) {
	e := newTestAPI(t)
	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Reschedulable",
		StartTime:     5000,
		DurationHours: 1,
	})
	require.Equal(t, auction.StatusScheduled, created.Status)

	token, cookie := e.csrfPair(t)
	duration := 2.0
	rec := e.doRequest(t, http.MethodPut, "/api/v1/auctions/"+created.ID,
		service.UpdateAuctionInput{DurationHours: &duration},
		e.withCSRF(token, cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated auction.Auction
	decodeBody(t, rec, &updated)
	assert.Equal(t, int64(5000+7200), updated.UserEndTime)
	assert.Equal(t, int64(5000+7200+180), updated.ActualEndTime)
}

func TestUpdateAuctionRejectsRescheduleAfterStart(t *testing.T) {
	e := newTestAPI(t)
	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Already live",
		StartTime:     1000,
		DurationHours: 1,
	})
	require.Equal(t, auction.StatusActive, created.Status)

	token, cookie := e.csrfPair(t)
	start := int64(2000)
	rec := e.doRequest(t, http.MethodPut, "/api/v1/auctions/"+created.ID,
		service.UpdateAuctionInput{StartTime: &start},
		e.withCSRF(token, cookie))

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already started")
}

func TestCancelAuction(t *testing.T) {
	e := newTestAPI(t)
	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Doomed lot",
		StartTime:     1000,
		DurationHours: 1,
	})

	token, cookie := e.csrfPair(t)
	rec := e.doRequest(t, http.MethodDelete, "/api/v1/auctions/"+created.ID, nil,
		e.withCSRF(token, cookie))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Message   string `json:"message"`
		AuctionID string `json:"auction_id"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "Auction cancelled", body.Message)
	assert.Equal(t, created.ID, body.AuctionID)

	rec = e.doRequest(t, http.MethodGet, "/api/v1/auctions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched auction.Auction
	decodeBody(t, rec, &fetched)
	assert.Equal(t, auction.StatusCancelled, fetched.Status)

	// Terminal auctions cannot be cancelled twice.
	token, cookie = e.csrfPair(t)
	rec = e.doRequest(t, http.MethodDelete, "/api/v1/auctions/"+created.ID, nil,
		e.withCSRF(token, cookie))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// bidRejection is the 409 body returned when the gate turns a bid away.
type bidRejection struct {
	Error         string  `json:"error"`
	Reason        string  `json:"reason"`
	TimeRemaining int64   `json:"time_remaining"`
	MinimumBid    float64 `json:"minimum_bid"`
}

func (e *testEnv) placeBid(t *testing.T, auctionID, bidder string, amount float64) *bidResult {
	t.Helper()

	token, cookie := e.csrfPair(t)
	rec := e.doRequest(t, http.MethodPost,
		fmt.Sprintf("/api/v1/auctions/%s/bids", auctionID),
		map[string]interface{}{"bidder": bidder, "amount": amount},
		e.withCSRF(token, cookie))

	result := &bidResult{code: rec.Code}
	switch rec.Code {
	case http.StatusCreated:
		decodeBody(t, rec, &result.bid)
	case http.StatusConflict:
		decodeBody(t, rec, &result.rejection)
	default:
		result.body = rec.Body.String()
	}
	return result
}

type bidResult struct {
	code      int
	bid       auction.Bid
	rejection bidRejection
	body      string
}

func TestPlaceBidAccepted(t *testing.T) {
	e := newTestAPI(t)
	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Open lot",
		StartTime:     1000,
		DurationHours: 1,
	})

	e.clock.set(chain.Reading{Timestamp: 2000, BlockNumber: 50, Accurate: true})
	result := e.placeBid(t, created.ID, "alice", 100)

	require.Equal(t, http.StatusCreated, result.code, result.body)
	assert.NotEmpty(t, result.bid.ID)
	assert.Equal(t, created.ID, result.bid.AuctionID)
	assert.Equal(t, "alice", result.bid.Bidder)
	assert.Equal(t, int64(2000), result.bid.ChainTimestamp)
	assert.True(t, result.bid.Accurate)
}

func TestPlaceBidBelowMinimumIncrement(t *testing.T) {
	e := newTestAPI(t)
	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Increment lot",
		StartTime:     1000,
		DurationHours: 1,
		MinIncrement:  10,
	})

	first := e.placeBid(t, created.ID, "alice", 100)
	require.Equal(t, http.StatusCreated, first.code)

	second := e.placeBid(t, created.ID, "bob", 105)
	require.Equal(t, http.StatusConflict, second.code)
	assert.Equal(t, "Bid rejected", second.rejection.Error)
	assert.Equal(t, "bid below minimum increment", second.rejection.Reason)
	assert.Equal(t, float64(110), second.rejection.MinimumBid)
}

func TestPlaceBidRejectedAfterChainEnd(t *testing.T) {
	e := newTestAPI(t)
	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Closing lot",
		StartTime:     1000,
		DurationHours: 1,
	})

	// 4780 - 4750 - 30 == 0; a remaining time of exactly zero is closed.
	e.clock.set(chain.Reading{Timestamp: 4750, Accurate: true})
	result := e.placeBid(t, created.ID, "alice", 100)

	require.Equal(t, http.StatusConflict, result.code)
	assert.Equal(t, "ended according to blockchain time", result.rejection.Reason)
	assert.Equal(t, int64(0), result.rejection.TimeRemaining)
}

func TestPlaceBidRejectedWithLocalClockReason(t *testing.T) {
	e := newTestAPI(t)
	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Degraded lot",
		StartTime:     1000,
		DurationHours: 1,
	})

	e.clock.set(chain.Reading{Timestamp: 4750, Accurate: false})
	result := e.placeBid(t, created.ID, "alice", 100)

	require.Equal(t, http.StatusConflict, result.code)
	assert.Equal(t, "ended according to local time (blockchain time unavailable)", result.rejection.Reason)
}

func TestPlaceBidAcceptedInsideGraceBoundary(t *testing.T) {
	e := newTestAPI(t)
	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Last second lot",
		StartTime:     1000,
		DurationHours: 1,
	})

	// One second before the grace cut: 4780 - 4749 - 30 == 1.
	e.clock.set(chain.Reading{Timestamp: 4749, Accurate: true})
	result := e.placeBid(t, created.ID, "alice", 100)

	assert.Equal(t, http.StatusCreated, result.code, result.body)
}

func TestPlaceBidRejectedBeforeStart(t *testing.T) {
	e := newTestAPI(t)
	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Not yet lot",
		StartTime:     5000,
		DurationHours: 1,
	})

	result := e.placeBid(t, created.ID, "alice", 100)

	require.Equal(t, http.StatusConflict, result.code)
	assert.Equal(t, "auction has not started", result.rejection.Reason)
}

func TestPlaceBidRejectedOnCancelledAuction(t *testing.T) {
	e := newTestAPI(t)
	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Withdrawn lot",
		StartTime:     1000,
		DurationHours: 1,
	})

	token, cookie := e.csrfPair(t)
	rec := e.doRequest(t, http.MethodDelete, "/api/v1/auctions/"+created.ID, nil,
		e.withCSRF(token, cookie))
	require.Equal(t, http.StatusOK, rec.Code)

	result := e.placeBid(t, created.ID, "alice", 100)
	require.Equal(t, http.StatusConflict, result.code)
	assert.Equal(t, "auction is cancelled", result.rejection.Reason)
}

func TestAuctionStatusReport(t *testing.T) {
	e := newTestAPI(t)
	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Status lot",
		StartTime:     1000,
		DurationHours: 1,
	})

	e.clock.set(chain.Reading{Timestamp: 2000, Accurate: true})
	first := e.placeBid(t, created.ID, "alice", 100)
	require.Equal(t, http.StatusCreated, first.code)

	rec := e.doRequest(t, http.MethodGet, "/api/v1/auctions/"+created.ID+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report service.StatusReport
	decodeBody(t, rec, &report)

	require.NotNil(t, report.Auction)
	assert.Equal(t, created.ID, report.Auction.ID)
	assert.True(t, report.Decision.CanBid)
	assert.Equal(t, int64(4780-2000-30), report.Decision.TimeRemaining)
	assert.Equal(t, int64(4780-2000), report.Countdown.ActualRemaining)
	assert.True(t, report.Countdown.HasBuffer)
	assert.Equal(t, int64(2000), report.ChainTime.Timestamp)
	require.NotNil(t, report.HighBid)
	assert.Equal(t, float64(100), report.HighBid.Amount)
	assert.Equal(t, int64(1), report.BidCount)
}

func TestListBidsHighestFirst(t *testing.T) {
	e := newTestAPI(t)
	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Bid ladder",
		StartTime:     1000,
		DurationHours: 1,
	})

	require.Equal(t, http.StatusCreated, e.placeBid(t, created.ID, "alice", 100).code)
	require.Equal(t, http.StatusCreated, e.placeBid(t, created.ID, "bob", 120).code)

	rec := e.doRequest(t, http.MethodGet, "/api/v1/auctions/"+created.ID+"/bids", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Bids  []auction.Bid `json:"bids"`
		Count int           `json:"count"`
	}
	decodeBody(t, rec, &listing)
	require.Equal(t, 2, listing.Count)
	assert.Equal(t, float64(120), listing.Bids[0].Amount)
	assert.Equal(t, float64(100), listing.Bids[1].Amount)
}

func TestListBidsUnknownAuction(t *testing.T) {
	e := newTestAPI(t)

	rec := e.doRequest(t, http.MethodGet, "/api/v1/auctions/missing/bids", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBidAttemptsIncludesRejections(t *testing.T) {
	e := newTestAPI(t)
	created := e.createAuction(t, service.CreateAuctionInput{
		Title:         "Audited lot",
		StartTime:     1000,
		DurationHours: 1,
		MinIncrement:  10,
	})

	require.Equal(t, http.StatusCreated, e.placeBid(t, created.ID, "alice", 100).code)
	require.Equal(t, http.StatusConflict, e.placeBid(t, created.ID, "bob", 101).code)

	rec := e.doRequest(t, http.MethodGet, "/api/v1/auctions/"+created.ID+"/attempts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Attempts []struct {
			Bidder   string `json:"bidder"`
			Accepted bool   `json:"accepted"`
			Reason   string `json:"reason"`
		} `json:"attempts"`
		Count int `json:"count"`
	}
	decodeBody(t, rec, &listing)
	require.Equal(t, 2, listing.Count)

	byBidder := map[string]bool{}
	for _, attempt := range listing.Attempts {
		byBidder[attempt.Bidder] = attempt.Accepted
	}
	assert.True(t, byBidder["alice"])
	assert.False(t, byBidder["bob"])
}
