package service

import (
	"context"
	"fmt"
	"time"

	"bidhouse/auction"
	"bidhouse/chain"
	"bidhouse/metrics"
	"bidhouse/storage"

	"go.uber.org/zap"
)

// sweepHorizon bounds how far ahead of the current reading the close phase
// looks for candidates. Grace periods are capped at an hour, so any auction
// whose window can already be closed ends within this horizon.
const sweepHorizon int64 = 3600

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = 30 * time.Second

// Sweeper is the background reconciler for auction statuses. Each pass
// activates scheduled auctions whose start time arrived, then transitions
// active auctions to ended once auction.CanAcceptBids says the window closed.
// Both phases run off a single chain reading so one pass cannot disagree
// with itself about what time it is.
type Sweeper struct {
	auctions  storage.AuctionStorage
	clock     TimeSource
	broadcast Broadcaster
	logger    *zap.SugaredLogger
	interval  time.Duration
}

// AuctionEndedPayload rides an EventAuctionEnded broadcast.
type AuctionEndedPayload struct {
	Reason        string `json:"reason"`
	ActualEndTime int64  `json:"actual_end_time"`
	Accurate      bool   `json:"is_accurate"`
}

// NewSweeper creates the sweeper. Panics on nil auctions, clock, or logger.
// broadcaster may be nil. A non-positive interval takes DefaultSweepInterval.
func NewSweeper(
	auctions storage.AuctionStorage,
	clock TimeSource,
	broadcaster Broadcaster,
	logger *zap.SugaredLogger,
	interval time.Duration,
) *Sweeper {
	if auctions == nil {
		panic("NewSweeper: auctions storage is required")
	}
	if clock == nil {
		panic("NewSweeper: clock is required")
	}
	if logger == nil {
		panic("NewSweeper: logger is required")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		auctions:  auctions,
		clock:     clock,
		broadcast: broadcaster,
		logger:    logger,
		interval:  interval,
	}
}

// Run sweeps once immediately, then on every interval tick until the context
// is cancelled. Callers run it in a goroutine under their shutdown WaitGroup.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Infow("auction sweeper started", "interval", s.interval)

	if _, err := s.SweepOnce(ctx); err != nil {
		s.logger.Errorw("auction sweep failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("auction sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Errorw("auction sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce runs a single reconciliation pass and returns how many auctions
// it closed. Individual update failures are logged and skipped so one bad
// row cannot wedge the sweep; a failed listing aborts the pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	reading := s.clock.Now(ctx)

	if err := s.activateScheduled(ctx, reading); err != nil {
		return 0, err
	}

	candidates, err := s.auctions.ListEndingBefore(ctx, reading.Timestamp+sweepHorizon)
	if err != nil {
		return 0, fmt.Errorf("failed to list ending auctions: %w", err)
	}

	closed := 0
	for i := range candidates {
		a := &candidates[i]

		decision := auction.CanAcceptBids(a.ActualEndTime, reading, a.GraceSeconds)
		if decision.CanBid {
			continue
		}

		if err := s.auctions.UpdateAuctionStatus(ctx, a.ID, auction.StatusEnded); err != nil {
			s.logger.Errorw("failed to close auction", "auction_id", a.ID, "error", err)
			continue
		}
		closed++

		s.emit(Event{
			Type:      EventAuctionEnded,
			AuctionID: a.ID,
			Data: AuctionEndedPayload{
				Reason:        decision.Reason,
				ActualEndTime: a.ActualEndTime,
				Accurate:      reading.Accurate,
			},
		})

		s.logger.Infow("auction closed",
			"auction_id", a.ID,
			"reason", decision.Reason,
			"actual_end_time", a.ActualEndTime,
			"chain_timestamp", reading.Timestamp,
			"is_accurate", reading.Accurate)
	}

	s.reconcileActiveGauge(ctx)
	return closed, nil
}

// activateScheduled flips scheduled auctions whose start time is at or before
// the reading to active. ListEndingBefore only sees active auctions, so this
// phase runs first: an auction whose whole window already passed is activated
// here and closed in the same pass.
func (s *Sweeper) activateScheduled(ctx context.Context, t chain.Reading) error {
	scheduled, _, err := s.auctions.ListAuctions(ctx, storage.AuctionFilters{
		Status: auction.StatusScheduled,
		Limit:  500,
	})
	if err != nil {
		return fmt.Errorf("failed to list scheduled auctions: %w", err)
	}

	for i := range scheduled {
		a := &scheduled[i]
		if a.StartTime > t.Timestamp {
			continue
		}
		if err := s.auctions.UpdateAuctionStatus(ctx, a.ID, auction.StatusActive); err != nil {
			s.logger.Errorw("failed to activate auction", "auction_id", a.ID, "error", err)
			continue
		}
		s.logger.Infow("auction activated", "auction_id", a.ID, "start_time", a.StartTime)
	}
	return nil
}

// reconcileActiveGauge sets the active-auction gauge from a fresh count. The
// sweeper is the only writer, so the gauge cannot drift from missed
// increments elsewhere.
func (s *Sweeper) reconcileActiveGauge(ctx context.Context) {
	_, total, err := s.auctions.ListAuctions(ctx, storage.AuctionFilters{
		Status: auction.StatusActive,
		Limit:  1,
	})
	if err != nil {
		s.logger.Warnw("failed to count active auctions", "error", err)
		return
	}
	metrics.AuctionsActive.Set(float64(total))
}

// emit broadcasts an event when a broadcaster is wired.
func (s *Sweeper) emit(event Event) {
	if s.broadcast == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	s.broadcast.Broadcast(event)
}
