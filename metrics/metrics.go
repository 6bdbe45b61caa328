package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidhouse_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bidhouse_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CSRFValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidhouse_csrf_validations_total",
			Help: "Total number of CSRF validations by result and reason",
		},
		[]string{"result", "reason"},
	)

	CSRFTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bidhouse_csrf_tokens_issued_total",
			Help: "Total number of CSRF tokens minted",
		},
	)

	SecurityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidhouse_security_events_total",
			Help: "Total number of security events recorded",
		},
		[]string{"reason", "severity"},
	)

	ChainTimeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidhouse_chain_time_requests_total",
			Help: "Total number of chain time resolutions by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	ChainTimeFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bidhouse_chain_time_fallbacks_total",
			Help: "Total number of chain time requests that fell back to the local clock",
		},
	)

	ChainClockDrift = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bidhouse_chain_clock_drift_seconds",
			Help: "Last observed difference between the local clock and the chain timestamp",
		},
	)

	BidsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidhouse_bids_total",
			Help: "Total number of bid attempts by outcome",
		},
		[]string{"outcome"},
	)

	AuctionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bidhouse_auctions_active",
			Help: "Number of auctions currently accepting bids",
		},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bidhouse_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)

	APIPanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidhouse_api_panics_recovered_total",
			Help: "Total number of panics recovered in HTTP handlers",
		},
		[]string{"method", "path"},
	)

	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidhouse_rate_limit_exceeded_total",
			Help: "Total number of requests rejected by rate limiting",
		},
		[]string{"tier"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidhouse_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidhouse_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidhouse_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"cache", "operation"},
	)

	ArchiveInsertBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bidhouse_archive_insert_batch_size",
			Help:    "Number of rows per archive insert batch",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
		},
	)

	ArchiveInsertDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bidhouse_archive_insert_duration_seconds",
			Help:    "Time taken to flush an archive insert batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	ArchiveInsertFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bidhouse_archive_insert_failures_total",
			Help: "Total number of failed archive insert batches",
		},
	)

	ArchiveEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bidhouse_archive_events_dropped_total",
			Help: "Total number of archive rows dropped because the queue was full",
		},
	)

	ArchiveEventsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bidhouse_archive_events_deduplicated_total",
			Help: "Total number of archive rows suppressed as duplicates",
		},
	)

	SQLitePoolOpenConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bidhouse_sqlite_pool_open_connections",
			Help: "Open connections per SQLite pool",
		},
		[]string{"pool"},
	)

	SQLitePoolInUse = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bidhouse_sqlite_pool_in_use",
			Help: "Connections currently in use per SQLite pool",
		},
		[]string{"pool"},
	)

	SQLitePoolIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bidhouse_sqlite_pool_idle",
			Help: "Idle connections per SQLite pool",
		},
		[]string{"pool"},
	)

	SQLitePoolWaitCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidhouse_sqlite_pool_wait_total",
			Help: "Total number of times a connection was waited for, per SQLite pool",
		},
		[]string{"pool"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidhouse_notifications_sent_total",
			Help: "Total number of notifications sent by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
)
