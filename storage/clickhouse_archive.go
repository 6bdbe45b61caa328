package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"bidhouse/core"
	"bidhouse/metrics"
	"bidhouse/util/goroutine"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// BidAttempt is one bid submission, accepted or rejected. Every attempt is
// archived, giving an audit trail of rejections that the bids table (accepted
// only) cannot provide.
type BidAttempt struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	AuctionID      string    `json:"auction_id"`
	Bidder         string    `json:"bidder"`
	Amount         float64   `json:"amount"`
	Accepted       bool      `json:"accepted"`
	Reason         string    `json:"reason,omitempty"`
	ChainTimestamp int64     `json:"chain_timestamp"`
	Accurate       bool      `json:"is_accurate"`
	SourceIP       string    `json:"source_ip,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
}

// ArchiveOptions tunes the async insert pipeline.
type ArchiveOptions struct {
	BatchSize     int           // rows per insert, default 1000
	FlushInterval time.Duration // max time a row waits in a batch, default 5s
	QueueSize     int           // channel capacity, default 10000
	DedupWindow   time.Duration // identical security events within this window collapse; 0 disables
}

func (o *ArchiveOptions) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 1000
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 5 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 10000
	}
}

// ClickHouseSecurityEventStorage archives security events and bid attempts.
// Record and RecordBidAttempt enqueue without blocking the request path;
// worker goroutines batch rows and flush on size or interval.
type ClickHouseSecurityEventStorage struct {
	clickhouse *ClickHouse
	opts       ArchiveOptions
	eventCh    chan core.SecurityEvent
	attemptCh  chan BidAttempt
	dedupCache *expirable.LRU[string, struct{}]
	wg         sync.WaitGroup
	logger     *zap.SugaredLogger
	ctx        context.Context
	cancel     context.CancelFunc
}

var _ EventArchive = (*ClickHouseSecurityEventStorage)(nil)

// NewClickHouseSecurityEventStorage creates the archive. Call Start to launch
// the workers and Stop to drain them.
func NewClickHouseSecurityEventStorage(parentCtx context.Context, clickhouse *ClickHouse, opts ArchiveOptions, logger *zap.SugaredLogger) *ClickHouseSecurityEventStorage {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	opts.applyDefaults()

	var dedup *expirable.LRU[string, struct{}]
	if opts.DedupWindow > 0 {
		dedup = expirable.NewLRU[string, struct{}](4096, nil, opts.DedupWindow)
	}

	ctx, cancel := context.WithCancel(parentCtx)
	return &ClickHouseSecurityEventStorage{
		clickhouse: clickhouse,
		opts:       opts,
		eventCh:    make(chan core.SecurityEvent, opts.QueueSize),
		attemptCh:  make(chan BidAttempt, opts.QueueSize),
		dedupCache: dedup,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the archive workers
func (ces *ClickHouseSecurityEventStorage) Start(numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	ces.logger.Infow("starting archive workers", "workers", numWorkers, "batch_size", ces.opts.BatchSize)
	for i := 0; i < numWorkers; i++ {
		ces.wg.Add(1)
		go ces.worker(i)
	}
}

// Record implements core.SecuritySink. A full queue drops the event rather
// than stalling the request that produced it.
func (ces *ClickHouseSecurityEventStorage) Record(_ context.Context, event core.SecurityEvent) {
	if ces.dedupCache != nil {
		key := dedupKey(event)
		if _, seen := ces.dedupCache.Get(key); seen {
			metrics.ArchiveEventsDeduplicated.Inc()
			return
		}
		ces.dedupCache.Add(key, struct{}{})
	}

	select {
	case ces.eventCh <- event:
	default:
		metrics.ArchiveEventsDropped.Inc()
		ces.logger.Debugw("archive queue full, dropping security event", "reason", event.Reason)
	}
}

// RecordBidAttempt enqueues a bid attempt for archival
func (ces *ClickHouseSecurityEventStorage) RecordBidAttempt(attempt *BidAttempt) {
	select {
	case ces.attemptCh <- *attempt:
	default:
		metrics.ArchiveEventsDropped.Inc()
		ces.logger.Debugw("archive queue full, dropping bid attempt", "auction_id", attempt.AuctionID)
	}
}

func dedupKey(event core.SecurityEvent) string {
	return event.Reason + "|" + event.SourceIP + "|" + event.Method + "|" + event.Path
}

func (ces *ClickHouseSecurityEventStorage) worker(workerID int) {
	defer ces.wg.Done()
	defer goroutine.Recover("archive-worker", ces.logger)

	events := make([]core.SecurityEvent, 0, ces.opts.BatchSize)
	attempts := make([]BidAttempt, 0, ces.opts.BatchSize)

	flushTicker := time.NewTicker(ces.opts.FlushInterval)
	defer flushTicker.Stop()

	flushBoth := func(ctx context.Context) {
		if len(events) > 0 {
			if err := ces.insertEvents(ctx, events); err != nil {
				ces.logger.Errorw("failed to flush security events", "error", err, "rows", len(events), "worker", workerID)
			}
			events = events[:0]
		}
		if len(attempts) > 0 {
			if err := ces.insertAttempts(ctx, attempts); err != nil {
				ces.logger.Errorw("failed to flush bid attempts", "error", err, "rows", len(attempts), "worker", workerID)
			}
			attempts = attempts[:0]
		}
	}

	for {
		select {
		case event := <-ces.eventCh:
			events = append(events, event)
			if len(events) >= ces.opts.BatchSize {
				if err := ces.insertEvents(ces.ctx, events); err != nil {
					ces.logger.Errorw("failed to insert security event batch", "error", err, "rows", len(events))
				}
				events = events[:0]
				flushTicker.Reset(ces.opts.FlushInterval)
			}

		case attempt := <-ces.attemptCh:
			attempts = append(attempts, attempt)
			if len(attempts) >= ces.opts.BatchSize {
				if err := ces.insertAttempts(ces.ctx, attempts); err != nil {
					ces.logger.Errorw("failed to insert bid attempt batch", "error", err, "rows", len(attempts))
				}
				attempts = attempts[:0]
				flushTicker.Reset(ces.opts.FlushInterval)
			}

		case <-flushTicker.C:
			flushBoth(ces.ctx)

		case <-ces.ctx.Done():
			// Final flush with its own deadline; the parent context is
			// already cancelled.
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			flushBoth(flushCtx)
			cancel()
			ces.logger.Debugw("archive worker stopped", "worker", workerID)
			return
		}
	}
}

func (ces *ClickHouseSecurityEventStorage) insertEvents(ctx context.Context, batch []core.SecurityEvent) error {
	// Nil connection happens in tests exercising the pipeline alone.
	if ces.clickhouse == nil || ces.clickhouse.Conn == nil {
		ces.logger.Warn("skipping security event batch, ClickHouse connection not available")
		return nil
	}

	start := time.Now()
	prepared, err := ces.clickhouse.Conn.PrepareBatch(ctx, `
		INSERT INTO security_events (
			event_id, timestamp, reason, severity, source_ip, method, path, request_id, details
		)
	`)
	if err != nil {
		metrics.ArchiveInsertFailures.Inc()
		return fmt.Errorf("preparing batch: %w", err)
	}

	for _, event := range batch {
		details := ""
		if len(event.Details) > 0 {
			if data, err := json.Marshal(event.Details); err == nil {
				details = string(data)
			}
		}
		if err := prepared.Append(
			event.ID,
			event.Timestamp,
			event.Reason,
			event.Severity.String(),
			event.SourceIP,
			event.Method,
			event.Path,
			event.RequestID,
			details,
		); err != nil {
			ces.logger.Errorw("failed to append security event", "event_id", event.ID, "error", err)
		}
	}

	if err := prepared.Send(); err != nil {
		metrics.ArchiveInsertFailures.Inc()
		return fmt.Errorf("sending batch: %w", err)
	}

	metrics.ArchiveInsertBatchSize.Observe(float64(len(batch)))
	metrics.ArchiveInsertDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (ces *ClickHouseSecurityEventStorage) insertAttempts(ctx context.Context, batch []BidAttempt) error {
	if ces.clickhouse == nil || ces.clickhouse.Conn == nil {
		ces.logger.Warn("skipping bid attempt batch, ClickHouse connection not available")
		return nil
	}

	start := time.Now()
	prepared, err := ces.clickhouse.Conn.PrepareBatch(ctx, `
		INSERT INTO bid_attempts (
			attempt_id, timestamp, auction_id, bidder, amount, accepted, reason,
			chain_timestamp, is_accurate, source_ip, request_id
		)
	`)
	if err != nil {
		metrics.ArchiveInsertFailures.Inc()
		return fmt.Errorf("preparing batch: %w", err)
	}

	for _, attempt := range batch {
		if err := prepared.Append(
			attempt.ID,
			attempt.Timestamp,
			attempt.AuctionID,
			attempt.Bidder,
			attempt.Amount,
			boolToUint8(attempt.Accepted),
			attempt.Reason,
			attempt.ChainTimestamp,
			boolToUint8(attempt.Accurate),
			attempt.SourceIP,
			attempt.RequestID,
		); err != nil {
			ces.logger.Errorw("failed to append bid attempt", "attempt_id", attempt.ID, "error", err)
		}
	}

	if err := prepared.Send(); err != nil {
		metrics.ArchiveInsertFailures.Inc()
		return fmt.Errorf("sending batch: %w", err)
	}

	metrics.ArchiveInsertBatchSize.Observe(float64(len(batch)))
	metrics.ArchiveInsertDuration.Observe(time.Since(start).Seconds())
	return nil
}

// Stop drains the workers, flushing any buffered rows. Returns an error if
// the workers do not stop within 30 seconds.
func (ces *ClickHouseSecurityEventStorage) Stop() error {
	if ces.cancel != nil {
		ces.cancel()
	}

	done := make(chan struct{})
	go func() {
		defer goroutine.Recover("archive-shutdown-helper", ces.logger)
		ces.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ces.logger.Info("archive workers stopped")
		return nil
	case <-time.After(30 * time.Second):
		ces.logger.Error("archive workers did not stop within 30s")
		return fmt.Errorf("graceful shutdown timeout: archive workers did not stop within 30s")
	}
}

// QueryEvents returns archived security events matching the filters, newest first
func (ces *ClickHouseSecurityEventStorage) QueryEvents(ctx context.Context, filters SecurityEventFilters) ([]core.SecurityEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var conditions []string
	var args []interface{}

	if filters.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, filters.Severity.String())
	}
	if filters.Reason != "" {
		conditions = append(conditions, "reason = ?")
		args = append(args, filters.Reason)
	}
	if !filters.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filters.Since)
	}
	if !filters.Until.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filters.Until)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filters.Limit
	if limit <= 0 || limit > 10000 {
		limit = 100
	}

	query := `
		SELECT event_id, timestamp, reason, severity, source_ip, method, path, request_id, details
		FROM security_events` + where + `
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?`
	args = append(args, limit, filters.Offset)

	rows, err := ces.clickhouse.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying security events: %w", err)
	}
	defer rows.Close()

	events := make([]core.SecurityEvent, 0, limit)
	for rows.Next() {
		var event core.SecurityEvent
		var severity, details string

		if err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&event.Reason,
			&severity,
			&event.SourceIP,
			&event.Method,
			&event.Path,
			&event.RequestID,
			&details,
		); err != nil {
			ces.logger.Errorw("failed to scan security event", "error", err)
			continue
		}

		event.Severity = core.Severity(severity)
		if details != "" {
			var m map[string]string
			if err := json.Unmarshal([]byte(details), &m); err == nil {
				event.Details = m
			}
		}
		events = append(events, event)
	}
	return events, nil
}

// CountEventsBySeverity returns event counts per severity since the given time
func (ces *ClickHouseSecurityEventStorage) CountEventsBySeverity(ctx context.Context, since time.Time) (map[core.Severity]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := ces.clickhouse.Conn.Query(ctx, `
		SELECT severity, count() AS c
		FROM security_events
		WHERE timestamp >= ?
		GROUP BY severity`, since)
	if err != nil {
		return nil, fmt.Errorf("counting security events: %w", err)
	}
	defer rows.Close()

	counts := make(map[core.Severity]int64)
	for rows.Next() {
		var severity string
		var count uint64
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		counts[core.Severity(severity)] = int64(count)
	}
	return counts, nil
}

// QueryBidAttempts returns archived bid attempts for an auction, newest first
func (ces *ClickHouseSecurityEventStorage) QueryBidAttempts(ctx context.Context, auctionID string, limit, offset int) ([]BidAttempt, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if limit <= 0 || limit > 10000 {
		limit = 100
	}

	rows, err := ces.clickhouse.Conn.Query(ctx, `
		SELECT attempt_id, timestamp, auction_id, bidder, amount, accepted, reason,
		       chain_timestamp, is_accurate, source_ip, request_id
		FROM bid_attempts
		WHERE auction_id = ?
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?`, auctionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying bid attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]BidAttempt, 0, limit)
	for rows.Next() {
		var attempt BidAttempt
		var accepted, accurate uint8

		if err := rows.Scan(
			&attempt.ID,
			&attempt.Timestamp,
			&attempt.AuctionID,
			&attempt.Bidder,
			&attempt.Amount,
			&accepted,
			&attempt.Reason,
			&attempt.ChainTimestamp,
			&accurate,
			&attempt.SourceIP,
			&attempt.RequestID,
		); err != nil {
			ces.logger.Errorw("failed to scan bid attempt", "error", err)
			continue
		}

		attempt.Accepted = accepted == 1
		attempt.Accurate = accurate == 1
		attempts = append(attempts, attempt)
	}
	return attempts, nil
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// DisabledArchive satisfies EventArchive when ClickHouse is not configured.
// Writes vanish; queries report the archive as disabled.
type DisabledArchive struct{}

var _ EventArchive = DisabledArchive{}

// Record implements core.SecuritySink.
func (DisabledArchive) Record(context.Context, core.SecurityEvent) {}

// RecordBidAttempt implements EventArchive.
func (DisabledArchive) RecordBidAttempt(*BidAttempt) {}

// QueryEvents implements EventArchive.
func (DisabledArchive) QueryEvents(context.Context, SecurityEventFilters) ([]core.SecurityEvent, error) {
	return nil, ErrArchiveDisabled
}

// CountEventsBySeverity implements EventArchive.
func (DisabledArchive) CountEventsBySeverity(context.Context, time.Time) (map[core.Severity]int64, error) {
	return nil, ErrArchiveDisabled
}

// QueryBidAttempts implements EventArchive.
func (DisabledArchive) QueryBidAttempts(context.Context, string, int, int) ([]BidAttempt, error) {
	return nil, ErrArchiveDisabled
}
