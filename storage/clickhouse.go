package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

var validDatabaseNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ClickHouseOptions configures the archive connection.
type ClickHouseOptions struct {
	Addr        string
	Database    string
	Username    string
	Password    string
	TLS         bool
	MaxPoolSize int
}

// ClickHouse holds the archive database connection
type ClickHouse struct {
	Conn   driver.Conn
	Logger *zap.SugaredLogger
}

// NewClickHouse connects to ClickHouse and ensures the database exists
func NewClickHouse(opts ClickHouseOptions, logger *zap.SugaredLogger) (*ClickHouse, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.MaxPoolSize <= 0 {
		opts.MaxPoolSize = 10
	}

	chOpts := &clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 10 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:     opts.MaxPoolSize,
		MaxIdleConns:     opts.MaxPoolSize / 2,
		ConnMaxLifetime:  1 * time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		DialContext: func(ctx context.Context, addr string) (net.Conn, error) {
			// TCP keepalive so broken connections surface instead of hanging
			// a batch flush.
			var d net.Dialer
			d.Timeout = 10 * time.Second
			d.KeepAlive = 30 * time.Second
			return d.DialContext(ctx, "tcp", addr)
		},
	}

	if opts.TLS {
		chOpts.TLS = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	conn, err := clickhouse.Open(chOpts)
	if err != nil {
		return nil, fmt.Errorf("connecting to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging ClickHouse: %w", err)
	}
	logger.Info("connected to ClickHouse")

	if err := ensureDatabase(ctx, conn, opts.Database, logger); err != nil {
		return nil, fmt.Errorf("ensuring database exists: %w", err)
	}

	return &ClickHouse{Conn: conn, Logger: logger}, nil
}

func validateDatabaseName(database string) error {
	if database == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if len(database) > 64 {
		return fmt.Errorf("database name too long (max 64 characters)")
	}
	if !validDatabaseNameRegex.MatchString(database) {
		return fmt.Errorf("database name contains invalid characters")
	}
	return nil
}

func ensureDatabase(ctx context.Context, conn driver.Conn, database string, logger *zap.SugaredLogger) error {
	if err := validateDatabaseName(database); err != nil {
		return fmt.Errorf("invalid database name: %w", err)
	}

	// Name is validated above; backtick quoting is belt and braces.
	query := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", database)
	if err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	logger.Infof("database %q is ready", database)
	return nil
}

// HealthCheck performs a health check on the connection
func (ch *ClickHouse) HealthCheck(ctx context.Context) error {
	return ch.Conn.Ping(ctx)
}

// Close closes the connection
func (ch *ClickHouse) Close() error {
	return ch.Conn.Close()
}

// Version returns the ClickHouse server version
func (ch *ClickHouse) Version(ctx context.Context) (string, error) {
	var version string
	if err := ch.Conn.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("querying version: %w", err)
	}
	return version, nil
}

// CreateTablesIfNotExist creates the security_events and bid_attempts tables
func (ch *ClickHouse) CreateTablesIfNotExist(ctx context.Context) error {
	securityEventsTable := `
	CREATE TABLE IF NOT EXISTS security_events (
		event_id String,
		timestamp DateTime64(3, 'UTC'),
		reason LowCardinality(String),
		severity LowCardinality(String),
		source_ip String,
		method LowCardinality(String),
		path String,
		request_id String,
		details String,
		INDEX idx_reason reason TYPE set(0) GRANULARITY 1,
		INDEX idx_severity severity TYPE set(0) GRANULARITY 1,
		INDEX idx_source_ip source_ip TYPE bloom_filter(0.01) GRANULARITY 1
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, severity, reason)
	TTL toDateTime(timestamp) + INTERVAL 90 DAY
	SETTINGS index_granularity = 8192
	`

	if err := ch.Conn.Exec(ctx, securityEventsTable); err != nil {
		return fmt.Errorf("creating security_events table: %w", err)
	}
	ch.Logger.Info("security_events table created/verified")

	bidAttemptsTable := `
	CREATE TABLE IF NOT EXISTS bid_attempts (
		attempt_id String,
		timestamp DateTime64(3, 'UTC'),
		auction_id String,
		bidder String,
		amount Float64,
		accepted UInt8,
		reason LowCardinality(String),
		chain_timestamp Int64,
		is_accurate UInt8,
		source_ip String,
		request_id String,
		INDEX idx_auction_id auction_id TYPE bloom_filter(0.01) GRANULARITY 1,
		INDEX idx_bidder bidder TYPE bloom_filter(0.01) GRANULARITY 1,
		INDEX idx_accepted accepted TYPE set(0) GRANULARITY 1
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, auction_id)
	TTL toDateTime(timestamp) + INTERVAL 180 DAY
	SETTINGS index_granularity = 8192
	`

	if err := ch.Conn.Exec(ctx, bidAttemptsTable); err != nil {
		return fmt.Errorf("creating bid_attempts table: %w", err)
	}
	ch.Logger.Info("bid_attempts table created/verified")

	return nil
}
