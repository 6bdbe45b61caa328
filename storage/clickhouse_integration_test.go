package storage

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"bidhouse/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const (
	clickhouseImage       = "clickhouse/clickhouse-server:latest"
	clickhouseNativePort  = "9000/tcp"
	clickhouseHTTPPort    = "8123/tcp"
	testDatabaseName      = "bidhouse_integration_test"
	containerStartTimeout = 120 * time.Second
)

type clickhouseTestContainer struct {
	container testcontainers.Container
	host      string
	port      string
	cleanup   func()
}

// setupClickHouseTestContainer starts a throwaway ClickHouse server.
func setupClickHouseTestContainer(t *testing.T) *clickhouseTestContainer {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        clickhouseImage,
		ExposedPorts: []string{clickhouseNativePort, clickhouseHTTPPort},
		Env: map[string]string{
			"CLICKHOUSE_DB":       testDatabaseName,
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "testpassword",
		},
		// The HTTP port answers "Ok." once the server is ready, which is more
		// reliable than log matching.
		WaitingFor: wait.ForHTTP("/").
			WithPort(clickhouseHTTPPort).
			WithStartupTimeout(containerStartTimeout).
			WithResponseMatcher(func(body io.Reader) bool {
				buf, _ := io.ReadAll(body)
				return len(buf) > 0
			}),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start ClickHouse container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	return &clickhouseTestContainer{
		container: container,
		host:      host,
		port:      mappedPort.Port(),
		cleanup: func() {
			if err := container.Terminate(ctx); err != nil {
				t.Logf("Warning: failed to terminate ClickHouse container: %v", err)
			}
		},
	}
}

func connectTestClickHouse(t *testing.T, tc *clickhouseTestContainer) *ClickHouse {
	t.Helper()
	ch, err := NewClickHouse(ClickHouseOptions{
		Addr:        fmt.Sprintf("%s:%s", tc.host, tc.port),
		Database:    testDatabaseName,
		Username:    "default",
		Password:    "testpassword",
		MaxPoolSize: 10,
	}, zap.NewNop().Sugar())
	require.NoError(t, err, "Failed to connect to ClickHouse")
	require.NotNil(t, ch)
	return ch
}

// TestClickHouseIntegration_HealthCheckAndVersion tests basic connectivity
func TestClickHouseIntegration_HealthCheckAndVersion(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := setupClickHouseTestContainer(t)
	defer tc.cleanup()

	ch := connectTestClickHouse(t, tc)
	defer ch.Close()

	ctx := context.Background()
	assert.NoError(t, ch.HealthCheck(ctx))

	version, err := ch.Version(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, version)
	t.Logf("ClickHouse version: %s", version)
}

// TestClickHouseIntegration_CreateTablesIfNotExist tests DDL and idempotency
func TestClickHouseIntegration_CreateTablesIfNotExist(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := setupClickHouseTestContainer(t)
	defer tc.cleanup()

	ch := connectTestClickHouse(t, tc)
	defer ch.Close()

	ctx := context.Background()
	require.NoError(t, ch.CreateTablesIfNotExist(ctx))

	for _, table := range []string{"security_events", "bid_attempts"} {
		var count uint64
		err := ch.Conn.QueryRow(ctx, "SELECT count() FROM system.tables WHERE database = ? AND name = ?",
			testDatabaseName, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), count, "Table %s should exist", table)
	}

	assert.NoError(t, ch.CreateTablesIfNotExist(ctx), "Creating tables again should be idempotent")
}

// TestClickHouseIntegration_EnsureDatabase_RejectsInvalidNames tests name validation
func TestClickHouseIntegration_EnsureDatabase_RejectsInvalidNames(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := setupClickHouseTestContainer(t)
	defer tc.cleanup()

	ch := connectTestClickHouse(t, tc)
	defer ch.Close()

	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	injectionAttempts := []string{
		"test; DROP DATABASE test",
		"test' OR '1'='1",
		"test`; DROP DATABASE",
		"../../etc/passwd",
		"test database",
		"test-database",
	}
	for _, dbName := range injectionAttempts {
		err := ensureDatabase(ctx, ch.Conn, dbName, logger)
		require.Error(t, err, "Should reject database name: %s", dbName)
		assert.Contains(t, err.Error(), "invalid database name")
	}
}

// TestClickHouseIntegration_ArchiveRoundTrip tests the full insert/query path
func TestClickHouseIntegration_ArchiveRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := setupClickHouseTestContainer(t)
	defer tc.cleanup()

	ch := connectTestClickHouse(t, tc)
	defer ch.Close()

	ctx := context.Background()
	require.NoError(t, ch.CreateTablesIfNotExist(ctx))

	archive := NewClickHouseSecurityEventStorage(ctx, ch, ArchiveOptions{
		BatchSize:     10,
		FlushInterval: 200 * time.Millisecond,
	}, zap.NewNop().Sugar())
	archive.Start(1)

	event := core.NewSecurityEvent(core.EventCSRFTokenMismatch, core.SeverityHigh)
	event.SourceIP = "203.0.113.7"
	event.Method = "POST"
	event.Path = "/api/v1/auctions/1/bids"
	event.RequestID = "req-42"
	event.Details = map[string]string{"header_token": "present"}
	archive.Record(ctx, event)

	archive.RecordBidAttempt(&BidAttempt{
		ID:             "attempt-1",
		Timestamp:      time.Now().UTC(),
		AuctionID:      "auction-1",
		Bidder:         "0x71c7656ec7ab88b098defb751b7401b5f6d8976f",
		Amount:         10,
		Accepted:       false,
		Reason:         "ended according to blockchain time",
		ChainTimestamp: 4800,
		Accurate:       true,
		SourceIP:       "203.0.113.7",
		RequestID:      "req-42",
	})

	// Let the worker pull both rows off the queues, then Stop flushes the
	// accumulated batches.
	require.Eventually(t, func() bool {
		return len(archive.eventCh) == 0 && len(archive.attemptCh) == 0
	}, 5*time.Second, 20*time.Millisecond)
	require.NoError(t, archive.Stop(), "Stop should flush buffered rows")

	events, err := archive.QueryEvents(ctx, SecurityEventFilters{Severity: core.SeverityHigh})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
	assert.Equal(t, core.EventCSRFTokenMismatch, events[0].Reason)
	assert.Equal(t, core.SeverityHigh, events[0].Severity)
	assert.Equal(t, "203.0.113.7", events[0].SourceIP)
	assert.Equal(t, map[string]string{"header_token": "present"}, events[0].Details)

	counts, err := archive.CountEventsBySeverity(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[core.SeverityHigh])

	attempts, err := archive.QueryBidAttempts(ctx, "auction-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "attempt-1", attempts[0].ID)
	assert.False(t, attempts[0].Accepted)
	assert.True(t, attempts[0].Accurate)
	assert.Equal(t, "ended according to blockchain time", attempts[0].Reason)
}
