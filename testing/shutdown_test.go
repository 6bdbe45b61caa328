package testing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidhouse/api"
	"bidhouse/auction"
	"bidhouse/service"
)

// These tests verify that the long-running components, the sweeper and the
// websocket hub, start cleanly and exit promptly when the application
// context is cancelled.

// expiredAuction returns an active auction whose whole window, grace
// included, is behind the fixed test clock. The first sweep must close it.
func expiredAuction(id string) auction.Auction {
	return auction.Auction{
		ID:            id,
		Title:         TestAuctionTitle,
		Status:        auction.StatusActive,
		StartTime:     TestChainTimestamp - 7200,
		UserEndTime:   TestChainTimestamp - 100,
		ActualEndTime: TestChainTimestamp - 100,
		GraceSeconds:  0,
	}
}

// TestSweeperStopsOnCancel verifies the sweeper runs its immediate pass and
// then exits as soon as the context is cancelled, well before the next tick.
func TestSweeperStopsOnCancel(t *testing.T) {
	mock := NewMockAuctionStorage(MockConfig{
		Auctions: []auction.Auction{expiredAuction("auction-1")},
	})
	broadcaster := &MockBroadcaster{}
	clock := NewFixedClock(TestChainTimestamp)

	// A long interval means any observed sweep is the immediate one, and
	// exit depends on cancellation rather than tick alignment.
	sweeper := service.NewSweeper(mock, clock, broadcaster, SetupTestLogger(t), TestLongTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	WaitForCondition(t, func() bool {
		return len(broadcaster.EventsOfType(service.EventAuctionEnded)) >= 1
	}, TestMediumTimeout, "immediate sweep to close the expired auction")

	cancel()
	select {
	case <-done:
	case <-time.After(TestMediumTimeout):
		t.Fatal("sweeper did not stop after context cancellation")
	}

	// Run has exited, so the counters are settled.
	assert.GreaterOrEqual(t, mock.ListEndingBeforeCalled, 1)
	assert.Equal(t, 1, mock.UpdateStatusCalled)

	events := broadcaster.EventsOfType(service.EventAuctionEnded)
	require.NotEmpty(t, events)
	assert.Equal(t, "auction-1", events[0].AuctionID)
}

// TestSweeperKeepsTicking verifies the sweeper keeps reconciling on its
// interval rather than sweeping once and going quiet.
func TestSweeperKeepsTicking(t *testing.T) {
	mock := NewMockAuctionStorage(MockConfig{})
	sweeper := service.NewSweeper(mock, NewFixedClock(TestChainTimestamp), nil, SetupTestLogger(t), TestSweepInterval)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * TestSweepInterval)
	cancel()

	select {
	case <-done:
	case <-time.After(TestMediumTimeout):
		t.Fatal("sweeper did not stop after context cancellation")
	}

	assert.GreaterOrEqual(t, mock.ListEndingBeforeCalled, 2,
		"expected the immediate sweep plus at least one tick")
}

// TestHubStartStop verifies the hub lifecycle: Start launches the loop,
// Broadcast never blocks without clients, and Stop waits for the loop.
func TestHubStartStop(t *testing.T) {
	hub := api.NewHub(SetupTestLogger(t))
	hub.Start(context.Background())

	hub.Broadcast(service.Event{Type: service.EventCountdown, AuctionID: "auction-1"})

	stopped := make(chan struct{})
	go func() {
		hub.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(TestMediumTimeout):
		t.Fatal("hub did not stop")
	}
	assert.Equal(t, 0, hub.ClientCount())
}

// TestHubStopWithoutStart verifies Stop is a no-op on a hub that never ran.
func TestHubStopWithoutStart(t *testing.T) {
	hub := api.NewHub(SetupTestLogger(t))
	assert.NotPanics(t, func() { hub.Stop() })
}

// TestHubParentCancellation verifies the loop exits when the parent context
// is cancelled and that a later Stop still returns.
func TestHubParentCancellation(t *testing.T) {
	hub := api.NewHub(SetupTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	hub.Start(ctx)
	cancel()

	stopped := make(chan struct{})
	go func() {
		hub.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(TestMediumTimeout):
		t.Fatal("hub did not stop after parent cancellation")
	}
}

// TestHubBroadcastAfterStop verifies a late broadcast returns instead of
// blocking on the dead loop.
func TestHubBroadcastAfterStop(t *testing.T) {
	hub := api.NewHub(SetupTestLogger(t))
	hub.Start(context.Background())
	hub.Stop()

	start := time.Now()
	hub.Broadcast(service.Event{Type: service.EventBidAccepted, AuctionID: "auction-1"})
	assert.Less(t, time.Since(start), TestMediumTimeout)
}
