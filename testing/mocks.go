package testing

import (
	"context"
	"sync"
	"time"

	"bidhouse/auction"
	"bidhouse/chain"
	"bidhouse/service"
	"bidhouse/storage"
)

// ==============================================================================
// FIXED CLOCK
// ==============================================================================

// FixedClock is a TimeSource that serves a configurable reading instead of
// talking to a chain. Tests move time explicitly, so gate decisions are
// deterministic.
type FixedClock struct {
	mu      sync.Mutex
	reading chain.Reading
}

// NewFixedClock returns a clock frozen at timestamp, reading as accurate.
func NewFixedClock(timestamp int64) *FixedClock {
	return &FixedClock{
		reading: chain.Reading{
			Timestamp:   timestamp,
			BlockNumber: TestBlockNumber,
			Accurate:    true,
		},
	}
}

// Now implements service.TimeSource.
func (c *FixedClock) Now(_ context.Context) chain.Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reading
}

// Set replaces the reading entirely, degraded readings included.
func (c *FixedClock) Set(reading chain.Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reading = reading
}

// Advance moves the clock forward by the given seconds, bumping the block
// number so consecutive readings stay distinguishable.
func (c *FixedClock) Advance(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reading.Timestamp += seconds
	c.reading.BlockNumber++
}

// ==============================================================================
// MOCK CONFIGURATION
// ==============================================================================

// MockConfig configures mock storage behavior for testing failure scenarios.
type MockConfig struct {
	// Error injection
	GetError    error // Error to return for Get operations
	CreateError error // Error to return for Create operations
	UpdateError error // Error to return for Update operations
	DeleteError error // Error to return for Delete operations
	ListError   error // Error to return for List operations

	// Conditional errors: fail after N successful operations, or fail
	// every Nth operation. Zero disables the condition.
	FailAfter int
	FailEvery int

	// Delay is waited before every operation, racing the caller's context.
	// This is how tests prove cancellation reaches the storage layer.
	Delay time.Duration

	// Auctions seeds the mock's data set.
	Auctions []auction.Auction
}

// ==============================================================================
// MOCK AUCTION STORAGE
// ==============================================================================

// MockAuctionStorage is a configurable in-memory AuctionStorage. Every
// operation honors context cancellation during the configured delay, counts
// its calls, and can be made to fail on demand.
type MockAuctionStorage struct {
	config         MockConfig
	operationCount int
	mu             sync.Mutex

	// Track method calls for verification
	GetAuctionCalled       int
	CreateAuctionCalled    int
	ListAuctionsCalled     int
	UpdateAuctionCalled    int
	UpdateStatusCalled     int
	DeleteAuctionCalled    int
	ListEndingBeforeCalled int
}

// NewMockAuctionStorage creates a mock with the given configuration.
func NewMockAuctionStorage(config MockConfig) *MockAuctionStorage {
	if config.Auctions == nil {
		config.Auctions = []auction.Auction{}
	}
	return &MockAuctionStorage{config: config}
}

// wait blocks for the configured delay or until the context is done,
// whichever comes first.
func (m *MockAuctionStorage) wait(ctx context.Context) error {
	if m.config.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.config.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shouldFail applies the FailAfter and FailEvery conditions.
func (m *MockAuctionStorage) shouldFail() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.operationCount++
	if m.config.FailAfter > 0 && m.operationCount > m.config.FailAfter {
		return true
	}
	if m.config.FailEvery > 0 && m.operationCount%m.config.FailEvery == 0 {
		return true
	}
	return false
}

func (m *MockAuctionStorage) CreateAuction(ctx context.Context, a *auction.Auction) error {
	m.mu.Lock()
	m.CreateAuctionCalled++
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.shouldFail() && m.config.CreateError != nil {
		return m.config.CreateError
	}

	m.mu.Lock()
	m.config.Auctions = append(m.config.Auctions, *a)
	m.mu.Unlock()
	return nil
}

func (m *MockAuctionStorage) GetAuction(ctx context.Context, id string) (*auction.Auction, error) {
	m.mu.Lock()
	m.GetAuctionCalled++
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.shouldFail() && m.config.GetError != nil {
		return nil, m.config.GetError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.config.Auctions {
		if m.config.Auctions[i].ID == id {
			found := m.config.Auctions[i]
			return &found, nil
		}
	}
	return nil, storage.ErrAuctionNotFound
}

func (m *MockAuctionStorage) ListAuctions(ctx context.Context, filters storage.AuctionFilters) ([]auction.Auction, int64, error) {
	m.mu.Lock()
	m.ListAuctionsCalled++
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, 0, err
	}
	if m.shouldFail() && m.config.ListError != nil {
		return nil, 0, m.config.ListError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]auction.Auction, 0, len(m.config.Auctions))
	for _, a := range m.config.Auctions {
		if filters.Status != "" && a.Status != filters.Status {
			continue
		}
		if filters.CreatedBy != "" && a.CreatedBy != filters.CreatedBy {
			continue
		}
		matched = append(matched, a)
	}
	return matched, int64(len(matched)), nil
}

func (m *MockAuctionStorage) UpdateAuction(ctx context.Context, id string, a *auction.Auction) error {
	m.mu.Lock()
	m.UpdateAuctionCalled++
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.shouldFail() && m.config.UpdateError != nil {
		return m.config.UpdateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.config.Auctions {
		if m.config.Auctions[i].ID == id {
			m.config.Auctions[i] = *a
			return nil
		}
	}
	return storage.ErrAuctionNotFound
}

func (m *MockAuctionStorage) UpdateAuctionStatus(ctx context.Context, id string, status auction.Status) error {
	m.mu.Lock()
	m.UpdateStatusCalled++
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.shouldFail() && m.config.UpdateError != nil {
		return m.config.UpdateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.config.Auctions {
		if m.config.Auctions[i].ID == id {
			m.config.Auctions[i].Status = status
			return nil
		}
	}
	return storage.ErrAuctionNotFound
}

func (m *MockAuctionStorage) DeleteAuction(ctx context.Context, id string) error {
	m.mu.Lock()
	m.DeleteAuctionCalled++
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.shouldFail() && m.config.DeleteError != nil {
		return m.config.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.config.Auctions {
		if m.config.Auctions[i].ID == id {
			m.config.Auctions = append(m.config.Auctions[:i], m.config.Auctions[i+1:]...)
			return nil
		}
	}
	return storage.ErrAuctionNotFound
}

func (m *MockAuctionStorage) ListEndingBefore(ctx context.Context, cutoff int64) ([]auction.Auction, error) {
	m.mu.Lock()
	m.ListEndingBeforeCalled++
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.shouldFail() && m.config.ListError != nil {
		return nil, m.config.ListError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var ending []auction.Auction
	for _, a := range m.config.Auctions {
		if a.Status == auction.StatusActive && a.ActualEndTime <= cutoff {
			ending = append(ending, a)
		}
	}
	return ending, nil
}

// ==============================================================================
// MOCK BROADCASTER
// ==============================================================================

// MockBroadcaster records broadcast events for assertion.
type MockBroadcaster struct {
	mu     sync.Mutex
	events []service.Event
}

// Broadcast implements service.Broadcaster.
func (b *MockBroadcaster) Broadcast(event service.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

// Events returns a snapshot of everything broadcast so far.
func (b *MockBroadcaster) Events() []service.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]service.Event, len(b.events))
	copy(out, b.events)
	return out
}

// EventsOfType filters the snapshot by event type.
func (b *MockBroadcaster) EventsOfType(eventType string) []service.Event {
	var out []service.Event
	for _, e := range b.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
