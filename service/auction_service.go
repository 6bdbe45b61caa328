// Package service orchestrates auction lifecycle operations across storage,
// the chain clock, and the bid gating rules. Handlers stay thin: every
// decision about whether a bid stands is made here, and every attempt is
// recorded whether it stands or not.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bidhouse/auction"
	"bidhouse/chain"
	"bidhouse/metrics"
	"bidhouse/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================================================
// Consumer Interfaces
// ============================================================================

// TimeSource yields the timestamp that gates bids. Satisfied by *chain.Clock.
type TimeSource interface {
	Now(ctx context.Context) chain.Reading
}

// AttemptRecorder archives bid attempts, accepted or not. Satisfied by the
// ClickHouse archive; recording must never block the bid path.
type AttemptRecorder interface {
	RecordBidAttempt(attempt *storage.BidAttempt)
}

// Broadcaster fans an event out to connected websocket clients. Satisfied by
// the API hub.
type Broadcaster interface {
	Broadcast(event Event)
}

// Event is one websocket broadcast message.
type Event struct {
	Type      string      `json:"type"`
	AuctionID string      `json:"auction_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Websocket event types emitted by the service layer and the countdown
// broadcaster in the API package.
const (
	EventBidAccepted  = "auction:bid_accepted"
	EventAuctionEnded = "auction:ended"
	EventCountdown    = "auction:countdown"
)

// ============================================================================
// Errors and Close Reasons
// ============================================================================

var (
	// ErrInvalidInput wraps every validation failure so handlers can map the
	// whole family to one status code with errors.Is.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAuctionTerminal is returned when mutating an ended or cancelled auction.
	ErrAuctionTerminal = errors.New("auction is already ended or cancelled")

	// ErrAuctionStarted is returned when rescheduling an auction that has begun.
	ErrAuctionStarted = errors.New("auction has already started")
)

// Rejection reasons produced by the service gate on top of the clock-derived
// reasons from auction.CanAcceptBids. These strings end up in the archive and
// in API responses.
const (
	ReasonNotStarted     = "auction has not started"
	ReasonCancelled      = "auction is cancelled"
	ReasonBelowIncrement = "bid below minimum increment"
)

// BidRejectedError reports a bid the gate or the increment rule turned away.
// Handlers unwrap it with errors.As to build the response body.
type BidRejectedError struct {
	Reason        string
	TimeRemaining int64
	MinimumBid    float64
}

func (e *BidRejectedError) Error() string {
	return "bid rejected: " + e.Reason
}

// ============================================================================
// AuctionService
// ============================================================================

// Options bound auction creation and supply defaults for fields the caller
// left unset. Construct with DefaultOptions and override as needed.
type Options struct {
	MinDurationHours    int64
	MaxDurationHours    int64
	DefaultGraceSeconds int64
}

// DefaultOptions returns the bounds used when no configuration is supplied.
func DefaultOptions() Options {
	return Options{
		MinDurationHours:    1,
		MaxDurationHours:    720,
		DefaultGraceSeconds: auction.DefaultGraceSeconds,
	}
}

// AuctionService coordinates auction storage, bid storage, the chain clock,
// and the attempt archive. All biddability decisions flow through
// auction.CanAcceptBids; nothing here compares timestamps on its own.
type AuctionService struct {
	auctions  storage.AuctionStorage
	bids      storage.BidStorage
	archive   AttemptRecorder
	clock     TimeSource
	broadcast Broadcaster
	validate  *validator.Validate
	logger    *zap.SugaredLogger
	opts      Options
}

// NewAuctionService creates the service.
//
// PANICS on nil auctions, bids, clock, or logger: these are programming
// errors, not runtime conditions. archive and broadcaster may be nil, which
// disables attempt recording and websocket events respectively.
func NewAuctionService(
	auctions storage.AuctionStorage,
	bids storage.BidStorage,
	archive AttemptRecorder,
	clock TimeSource,
	broadcaster Broadcaster,
	logger *zap.SugaredLogger,
	opts Options,
) *AuctionService {
	if auctions == nil {
		panic("NewAuctionService: auctions storage is required")
	}
	if bids == nil {
		panic("NewAuctionService: bids storage is required")
	}
	if clock == nil {
		panic("NewAuctionService: clock is required")
	}
	if logger == nil {
		panic("NewAuctionService: logger is required")
	}
	if opts.MinDurationHours <= 0 {
		opts.MinDurationHours = 1
	}
	if opts.MaxDurationHours < opts.MinDurationHours {
		opts.MaxDurationHours = DefaultOptions().MaxDurationHours
	}

	return &AuctionService{
		auctions:  auctions,
		bids:      bids,
		archive:   archive,
		clock:     clock,
		broadcast: broadcaster,
		validate:  validator.New(),
		logger:    logger,
		opts:      opts,
	}
}

// ============================================================================
// Auction CRUD
// ============================================================================

// CreateAuctionInput carries the caller-supplied fields of a new auction.
// A zero StartTime starts the auction at the current chain time. A nil
// GraceSeconds takes the configured default.
type CreateAuctionInput struct {
	Title         string  `json:"title" validate:"required,min=1,max=200"`
	Description   string  `json:"description" validate:"max=2000"`
	TokenRef      string  `json:"token_ref" validate:"max=200"`
	StartTime     int64   `json:"start_time" validate:"gte=0"`
	DurationHours float64 `json:"duration_hours" validate:"required,gt=0"`
	GraceSeconds  *int64  `json:"grace_seconds" validate:"omitempty,gte=0,lte=3600"`
	MinIncrement  float64 `json:"min_increment" validate:"gte=0"`
	CreatedBy     string  `json:"created_by" validate:"max=200"`
}

// CreateAuction validates the input, derives the end-time window, and
// persists the auction. The settlement buffer is always applied; bidders see
// UserEndTime, the house honors ActualEndTime.
func (s *AuctionService) CreateAuction(ctx context.Context, input CreateAuctionInput) (*auction.Auction, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if input.DurationHours < float64(s.opts.MinDurationHours) || input.DurationHours > float64(s.opts.MaxDurationHours) {
		return nil, fmt.Errorf("%w: duration_hours must be between %d and %d", ErrInvalidInput, s.opts.MinDurationHours, s.opts.MaxDurationHours)
	}

	reading := s.clock.Now(ctx)

	start := input.StartTime
	if start == 0 {
		start = reading.Timestamp
	}

	grace := s.opts.DefaultGraceSeconds
	if input.GraceSeconds != nil {
		grace = *input.GraceSeconds
	}

	window := auction.ComputeEndTimes(start, input.DurationHours, true)

	status := auction.StatusActive
	if start > reading.Timestamp {
		status = auction.StatusScheduled
	}

	a := &auction.Auction{
		ID:            uuid.New().String(),
		Title:         input.Title,
		Description:   input.Description,
		TokenRef:      input.TokenRef,
		StartTime:     start,
		DurationHours: input.DurationHours,
		UserEndTime:   window.UserEndTime,
		ActualEndTime: window.ActualEndTime,
		BufferSeconds: window.BufferSeconds,
		GraceSeconds:  grace,
		MinIncrement:  input.MinIncrement,
		Status:        status,
		CreatedBy:     input.CreatedBy,
	}

	if err := s.auctions.CreateAuction(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	s.logger.Infow("auction created",
		"auction_id", a.ID,
		"status", a.Status,
		"start_time", a.StartTime,
		"user_end_time", a.UserEndTime,
		"actual_end_time", a.ActualEndTime,
		"chain_time_accurate", reading.Accurate)
	return a, nil
}

// GetAuction retrieves a single auction by ID.
func (s *AuctionService) GetAuction(ctx context.Context, id string) (*auction.Auction, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: auction id is required", ErrInvalidInput)
	}
	a, err := s.auctions.GetAuction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction %s: %w", id, err)
	}
	return a, nil
}

// ListAuctions returns a page of auctions plus the total count matching the
// filters. Limit is clamped to 1..500 with a default of 50.
func (s *AuctionService) ListAuctions(ctx context.Context, filters storage.AuctionFilters) ([]auction.Auction, int64, error) {
	if filters.Limit <= 0 {
		filters.Limit = 50
	}
	if filters.Limit > 500 {
		filters.Limit = 500
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	auctions, total, err := s.auctions.ListAuctions(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list auctions: %w", err)
	}
	return auctions, total, nil
}

// UpdateAuctionInput carries partial updates. Nil fields are left unchanged.
type UpdateAuctionInput struct {
	Title         *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Description   *string  `json:"description" validate:"omitempty,max=2000"`
	TokenRef      *string  `json:"token_ref" validate:"omitempty,max=200"`
	StartTime     *int64   `json:"start_time" validate:"omitempty,gt=0"`
	DurationHours *float64 `json:"duration_hours" validate:"omitempty,gt=0"`
	GraceSeconds  *int64   `json:"grace_seconds" validate:"omitempty,gte=0,lte=3600"`
	MinIncrement  *float64 `json:"min_increment" validate:"omitempty,gte=0"`
}

// UpdateAuction applies a partial update.
//
// RULES:
//   - Terminal auctions (ended, cancelled) are immutable: ErrAuctionTerminal.
//   - StartTime and DurationHours may only change while the auction is still
//     scheduled: ErrAuctionStarted otherwise.
//   - Changing either recomputes the end-time window.
func (s *AuctionService) UpdateAuction(ctx context.Context, id string, input UpdateAuctionInput) (*auction.Auction, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: auction id is required", ErrInvalidInput)
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	a, err := s.auctions.GetAuction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction %s: %w", id, err)
	}
	if a.Status.Terminal() {
		return nil, ErrAuctionTerminal
	}

	reschedule := input.StartTime != nil || input.DurationHours != nil
	if reschedule && a.Status != auction.StatusScheduled {
		return nil, ErrAuctionStarted
	}

	if input.Title != nil {
		a.Title = *input.Title
	}
	if input.Description != nil {
		a.Description = *input.Description
	}
	if input.TokenRef != nil {
		a.TokenRef = *input.TokenRef
	}
	if input.StartTime != nil {
		a.StartTime = *input.StartTime
	}
	if input.DurationHours != nil {
		if *input.DurationHours < float64(s.opts.MinDurationHours) || *input.DurationHours > float64(s.opts.MaxDurationHours) {
			return nil, fmt.Errorf("%w: duration_hours must be between %d and %d", ErrInvalidInput, s.opts.MinDurationHours, s.opts.MaxDurationHours)
		}
		a.DurationHours = *input.DurationHours
	}
	if input.GraceSeconds != nil {
		a.GraceSeconds = *input.GraceSeconds
	}
	if input.MinIncrement != nil {
		a.MinIncrement = *input.MinIncrement
	}

	if reschedule {
		window := auction.ComputeEndTimes(a.StartTime, a.DurationHours, true)
		a.UserEndTime = window.UserEndTime
		a.ActualEndTime = window.ActualEndTime
		a.BufferSeconds = window.BufferSeconds
	}

	if err := s.auctions.UpdateAuction(ctx, id, a); err != nil {
		return nil, fmt.Errorf("failed to update auction %s: %w", id, err)
	}

	s.logger.Infow("auction updated", "auction_id", id, "rescheduled", reschedule)
	return a, nil
}

// CancelAuction transitions a scheduled or active auction to cancelled.
// Cancelled auctions reject all bids regardless of the clock.
func (s *AuctionService) CancelAuction(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: auction id is required", ErrInvalidInput)
	}

	a, err := s.auctions.GetAuction(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get auction %s: %w", id, err)
	}
	if a.Status.Terminal() {
		return ErrAuctionTerminal
	}

	if err := s.auctions.UpdateAuctionStatus(ctx, id, auction.StatusCancelled); err != nil {
		return fmt.Errorf("failed to cancel auction %s: %w", id, err)
	}

	s.logger.Infow("auction cancelled", "auction_id", id, "previous_status", a.Status)
	return nil
}

// DeleteAuction permanently removes an auction and its bids.
func (s *AuctionService) DeleteAuction(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: auction id is required", ErrInvalidInput)
	}
	if err := s.auctions.DeleteAuction(ctx, id); err != nil {
		return fmt.Errorf("failed to delete auction %s: %w", id, err)
	}
	s.logger.Warnw("auction deleted", "auction_id", id)
	return nil
}

// ============================================================================
// Bidding
// ============================================================================

// PlaceBidInput carries one bid attempt. SourceIP and RequestID are filled by
// the handler for the archive row; they never come from the client body.
type PlaceBidInput struct {
	AuctionID string  `json:"auction_id" validate:"required"`
	Bidder    string  `json:"bidder" validate:"required,min=1,max=200"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	SourceIP  string  `json:"-"`
	RequestID string  `json:"-"`
}

// PlaceBid runs one bid attempt through the gate.
//
// BUSINESS LOGIC:
//  1. Resolve the current chain reading.
//  2. Gate through auction.CanAcceptBids plus status and start-time checks.
//  3. Enforce MinIncrement over the current high bid.
//  4. Persist accepted bids, broadcast to websocket clients.
//
// Every attempt, accepted or rejected, lands in the archive with the close
// reason and the accuracy of the clock that made the call. Rejections return
// *BidRejectedError so handlers can surface the reason and remaining time.
func (s *AuctionService) PlaceBid(ctx context.Context, input PlaceBidInput) (*auction.Bid, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	a, err := s.auctions.GetAuction(ctx, input.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction %s: %w", input.AuctionID, err)
	}

	reading := s.clock.Now(ctx)
	decision := gateAuction(a, reading)
	if !decision.CanBid {
		s.recordAttempt(input, reading, false, decision.Reason)
		metrics.BidsProcessed.WithLabelValues("rejected").Inc()
		return nil, &BidRejectedError{
			Reason:        decision.Reason,
			TimeRemaining: decision.TimeRemaining,
		}
	}

	high, err := s.bids.HighestBid(ctx, input.AuctionID)
	if err != nil && !errors.Is(err, storage.ErrBidNotFound) {
		return nil, fmt.Errorf("failed to resolve highest bid: %w", err)
	}
	if high != nil {
		minimum := high.Amount + a.MinIncrement
		if input.Amount <= high.Amount || input.Amount < minimum {
			s.recordAttempt(input, reading, false, ReasonBelowIncrement)
			metrics.BidsProcessed.WithLabelValues("rejected").Inc()
			return nil, &BidRejectedError{
				Reason:        ReasonBelowIncrement,
				TimeRemaining: decision.TimeRemaining,
				MinimumBid:    minimum,
			}
		}
	}

	bid := &auction.Bid{
		ID:             uuid.New().String(),
		AuctionID:      input.AuctionID,
		Bidder:         input.Bidder,
		Amount:         input.Amount,
		ChainTimestamp: reading.Timestamp,
		Accurate:       reading.Accurate,
	}
	if err := s.bids.CreateBid(ctx, bid); err != nil {
		return nil, fmt.Errorf("failed to store bid: %w", err)
	}

	// A bid on a scheduled auction whose start time has passed proves the
	// auction is live before the sweeper gets to it.
	if a.Status == auction.StatusScheduled {
		if err := s.auctions.UpdateAuctionStatus(ctx, a.ID, auction.StatusActive); err != nil {
			s.logger.Warnw("failed to activate auction on first bid",
				"auction_id", a.ID, "error", err)
		}
	}

	s.recordAttempt(input, reading, true, "")
	metrics.BidsProcessed.WithLabelValues("accepted").Inc()

	s.emit(Event{
		Type:      EventBidAccepted,
		AuctionID: bid.AuctionID,
		Data: BidAcceptedPayload{
			Bid:           bid,
			TimeRemaining: decision.TimeRemaining,
		},
	})

	s.logger.Infow("bid accepted",
		"auction_id", bid.AuctionID,
		"bid_id", bid.ID,
		"amount", bid.Amount,
		"chain_timestamp", bid.ChainTimestamp,
		"is_accurate", bid.Accurate)
	return bid, nil
}

// BidAcceptedPayload rides an EventBidAccepted broadcast.
type BidAcceptedPayload struct {
	Bid           *auction.Bid `json:"bid"`
	TimeRemaining int64        `json:"time_remaining"`
}

// ListBids returns a page of bids on an auction, highest first. The auction
// must exist; limit is clamped to 1..500 with a default of 50.
func (s *AuctionService) ListBids(ctx context.Context, auctionID string, limit, offset int) ([]auction.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("%w: auction id is required", ErrInvalidInput)
	}
	if _, err := s.auctions.GetAuction(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("failed to get auction %s: %w", auctionID, err)
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	bids, err := s.bids.ListBids(ctx, auctionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return bids, nil
}

// ============================================================================
// Status
// ============================================================================

// StatusReport is the countdown view of one auction at one chain reading.
type StatusReport struct {
	Auction   *auction.Auction  `json:"auction"`
	Countdown auction.Countdown `json:"countdown"`
	Decision  auction.Decision  `json:"decision"`
	HighBid   *auction.Bid      `json:"high_bid,omitempty"`
	BidCount  int64             `json:"bid_count"`
	ChainTime chain.Reading     `json:"chain_time"`
}

// AuctionStatus resolves the current chain reading and reports the countdown,
// the gating decision, and the bid standing for one auction. The high bid and
// bid count are best-effort: a failure there is logged, not returned, so the
// countdown stays available when bid storage is degraded.
func (s *AuctionService) AuctionStatus(ctx context.Context, id string) (*StatusReport, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: auction id is required", ErrInvalidInput)
	}

	a, err := s.auctions.GetAuction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction %s: %w", id, err)
	}

	reading := s.clock.Now(ctx)
	report := &StatusReport{
		Auction:   a,
		Countdown: auction.FormatDuration(a.UserEndTime, a.ActualEndTime, reading.Timestamp),
		Decision:  gateAuction(a, reading),
		ChainTime: reading,
	}

	high, err := s.bids.HighestBid(ctx, id)
	switch {
	case err == nil:
		report.HighBid = high
	case !errors.Is(err, storage.ErrBidNotFound):
		s.logger.Warnw("failed to resolve highest bid for status", "auction_id", id, "error", err)
	}

	count, err := s.bids.CountBids(ctx, id)
	if err != nil {
		s.logger.Warnw("failed to count bids for status", "auction_id", id, "error", err)
	} else {
		report.BidCount = count
	}

	return report, nil
}

// ============================================================================
// Gate
// ============================================================================

// gateAuction applies the full biddability rules for one auction at one
// reading. auction.CanAcceptBids owns the window math; terminal status and a
// future start time short-circuit on top of it.
func gateAuction(a *auction.Auction, t chain.Reading) auction.Decision {
	d := auction.CanAcceptBids(a.ActualEndTime, t, a.GraceSeconds)

	switch {
	case a.Status == auction.StatusCancelled:
		d.CanBid = false
		d.Reason = ReasonCancelled
	case a.Status == auction.StatusEnded:
		d.CanBid = false
		if d.Reason == "" {
			if t.Accurate {
				d.Reason = auction.ReasonEndedChainTime
			} else {
				d.Reason = auction.ReasonEndedLocalTime
			}
		}
	case t.Timestamp < a.StartTime:
		d.CanBid = false
		d.Reason = ReasonNotStarted
	}
	return d
}

// recordAttempt writes one row to the attempt archive. No-op without an
// archive; the insert pipeline is async so this never blocks the bid path.
func (s *AuctionService) recordAttempt(input PlaceBidInput, t chain.Reading, accepted bool, reason string) {
	if s.archive == nil {
		return
	}
	s.archive.RecordBidAttempt(&storage.BidAttempt{
		ID:             uuid.New().String(),
		Timestamp:      time.Now().UTC(),
		AuctionID:      input.AuctionID,
		Bidder:         input.Bidder,
		Amount:         input.Amount,
		Accepted:       accepted,
		Reason:         reason,
		ChainTimestamp: t.Timestamp,
		Accurate:       t.Accurate,
		SourceIP:       input.SourceIP,
		RequestID:      input.RequestID,
	})
}

// emit broadcasts an event when a broadcaster is wired.
func (s *AuctionService) emit(event Event) {
	if s.broadcast == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	s.broadcast.Broadcast(event)
}
