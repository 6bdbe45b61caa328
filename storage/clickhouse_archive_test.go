package storage

import (
	"context"
	"testing"
	"time"

	"bidhouse/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestArchive builds an archive over a connectionless ClickHouse handle.
// Inserts become no-ops, which lets the queue/batch/shutdown pipeline run
// without a server.
func newTestArchive(t *testing.T, opts ArchiveOptions) *ClickHouseSecurityEventStorage {
	t.Helper()
	arch := NewClickHouseSecurityEventStorage(context.Background(), &ClickHouse{}, opts, zap.NewNop().Sugar())
	require.NotNil(t, arch)
	return arch
}

func csrfEvent(path string) core.SecurityEvent {
	event := core.NewSecurityEvent(core.EventCSRFTokenMismatch, core.SeverityMedium)
	event.SourceIP = "192.168.1.10"
	event.Method = "POST"
	event.Path = path
	return event
}

// TestNewClickHouseSecurityEventStorage_Defaults tests option defaulting
func TestNewClickHouseSecurityEventStorage_Defaults(t *testing.T) {
	arch := newTestArchive(t, ArchiveOptions{})

	assert.Equal(t, 1000, arch.opts.BatchSize)
	assert.Equal(t, 5*time.Second, arch.opts.FlushInterval)
	assert.Equal(t, 10000, arch.opts.QueueSize)
	assert.Nil(t, arch.dedupCache, "Dedup should stay off unless a window is set")
}

// TestNewClickHouseSecurityEventStorage_DedupWindow tests cache construction
func TestNewClickHouseSecurityEventStorage_DedupWindow(t *testing.T) {
	arch := newTestArchive(t, ArchiveOptions{DedupWindow: time.Minute})
	assert.NotNil(t, arch.dedupCache)
}

// TestArchiveRecord_Enqueues tests that Record places events on the queue
func TestArchiveRecord_Enqueues(t *testing.T) {
	arch := newTestArchive(t, ArchiveOptions{QueueSize: 10})

	arch.Record(context.Background(), csrfEvent("/api/v1/auctions"))
	arch.Record(context.Background(), csrfEvent("/api/v1/auctions/1/bids"))

	assert.Equal(t, 2, len(arch.eventCh))
}

// TestArchiveRecord_Deduplicates tests the window-based collapse of repeats
func TestArchiveRecord_Deduplicates(t *testing.T) {
	arch := newTestArchive(t, ArchiveOptions{QueueSize: 10, DedupWindow: time.Minute})
	ctx := context.Background()

	arch.Record(ctx, csrfEvent("/api/v1/auctions"))
	arch.Record(ctx, csrfEvent("/api/v1/auctions"))
	arch.Record(ctx, csrfEvent("/api/v1/auctions"))
	assert.Equal(t, 1, len(arch.eventCh), "Identical events within the window should collapse")

	// A different path is a different key.
	arch.Record(ctx, csrfEvent("/api/v1/auth/login"))
	assert.Equal(t, 2, len(arch.eventCh))
}

// TestArchiveRecord_DropsWhenFull tests the non-blocking overflow path
func TestArchiveRecord_DropsWhenFull(t *testing.T) {
	arch := newTestArchive(t, ArchiveOptions{QueueSize: 1})
	ctx := context.Background()

	// No worker running, so the queue cannot drain. The second Record must
	// drop instead of blocking the caller.
	arch.Record(ctx, csrfEvent("/one"))
	arch.Record(ctx, csrfEvent("/two"))

	assert.Equal(t, 1, len(arch.eventCh))
}

// TestArchiveRecordBidAttempt_Enqueues tests the bid attempt queue
func TestArchiveRecordBidAttempt_Enqueues(t *testing.T) {
	arch := newTestArchive(t, ArchiveOptions{QueueSize: 10})

	arch.RecordBidAttempt(&BidAttempt{
		ID:        "attempt-1",
		Timestamp: time.Now().UTC(),
		AuctionID: "auction-1",
		Bidder:    "0x71c7656ec7ab88b098defb751b7401b5f6d8976f",
		Amount:    10,
		Accepted:  false,
		Reason:    "ended according to blockchain time",
	})

	assert.Equal(t, 1, len(arch.attemptCh))
}

// TestArchiveRecordBidAttempt_DropsWhenFull tests attempt queue overflow
func TestArchiveRecordBidAttempt_DropsWhenFull(t *testing.T) {
	arch := newTestArchive(t, ArchiveOptions{QueueSize: 1})

	arch.RecordBidAttempt(&BidAttempt{ID: "a1"})
	arch.RecordBidAttempt(&BidAttempt{ID: "a2"})

	assert.Equal(t, 1, len(arch.attemptCh))
}

// TestArchiveWorker_DrainsQueues tests that workers consume both channels
func TestArchiveWorker_DrainsQueues(t *testing.T) {
	arch := newTestArchive(t, ArchiveOptions{QueueSize: 100, BatchSize: 2, FlushInterval: 20 * time.Millisecond})
	arch.Start(1)
	defer func() { _ = arch.Stop() }()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		arch.Record(ctx, csrfEvent("/api/v1/auctions"))
		arch.RecordBidAttempt(&BidAttempt{ID: "a", Timestamp: time.Now().UTC()})
	}

	require.Eventually(t, func() bool {
		return len(arch.eventCh) == 0 && len(arch.attemptCh) == 0
	}, 2*time.Second, 10*time.Millisecond, "Worker should drain both queues")
}

// TestArchiveStop_Clean tests shutdown after the queues have drained
func TestArchiveStop_Clean(t *testing.T) {
	arch := newTestArchive(t, ArchiveOptions{QueueSize: 10, FlushInterval: 20 * time.Millisecond})
	arch.Start(2)

	arch.Record(context.Background(), csrfEvent("/api/v1/auctions"))
	require.Eventually(t, func() bool {
		return len(arch.eventCh) == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.NoError(t, arch.Stop())
}

// TestArchiveStop_WithoutStart tests stopping an archive that never ran
func TestArchiveStop_WithoutStart(t *testing.T) {
	arch := newTestArchive(t, ArchiveOptions{})
	assert.NoError(t, arch.Stop())
}

// TestArchiveStart_DefaultsWorkerCount tests the worker count floor
func TestArchiveStart_DefaultsWorkerCount(t *testing.T) {
	arch := newTestArchive(t, ArchiveOptions{FlushInterval: 20 * time.Millisecond})
	arch.Start(0)

	assert.NoError(t, arch.Stop(), "A zero worker count should still start one worker")
}

// TestDedupKey tests the key composition
func TestDedupKey(t *testing.T) {
	base := csrfEvent("/api/v1/auctions")

	same := csrfEvent("/api/v1/auctions")
	assert.Equal(t, dedupKey(base), dedupKey(same))

	otherPath := csrfEvent("/api/v1/auth/login")
	assert.NotEqual(t, dedupKey(base), dedupKey(otherPath))

	otherIP := csrfEvent("/api/v1/auctions")
	otherIP.SourceIP = "10.0.0.1"
	assert.NotEqual(t, dedupKey(base), dedupKey(otherIP))

	otherReason := csrfEvent("/api/v1/auctions")
	otherReason.Reason = core.EventCSRFMissingToken
	assert.NotEqual(t, dedupKey(base), dedupKey(otherReason))
}

// TestDisabledArchive tests the no-op implementation
func TestDisabledArchive(t *testing.T) {
	var archive EventArchive = DisabledArchive{}
	ctx := context.Background()

	// Writes must be silent no-ops.
	archive.Record(ctx, csrfEvent("/api/v1/auctions"))
	archive.RecordBidAttempt(&BidAttempt{ID: "a1"})

	_, err := archive.QueryEvents(ctx, SecurityEventFilters{})
	assert.ErrorIs(t, err, ErrArchiveDisabled)

	_, err = archive.CountEventsBySeverity(ctx, time.Now())
	assert.ErrorIs(t, err, ErrArchiveDisabled)

	_, err = archive.QueryBidAttempts(ctx, "auction-1", 10, 0)
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

// TestBoolToUint8 tests the ClickHouse UInt8 mapping
func TestBoolToUint8(t *testing.T) {
	assert.Equal(t, uint8(1), boolToUint8(true))
	assert.Equal(t, uint8(0), boolToUint8(false))
}
