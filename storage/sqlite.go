package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bidhouse/metrics"
	"bidhouse/util/goroutine"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite holds the metadata database. Reads and writes go through separate
// pools: WAL mode allows many concurrent readers but exactly one writer, so
// the write pool is pinned to a single connection while the read pool fans
// out.
type SQLite struct {
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Path    string
	Logger  *zap.SugaredLogger

	// Previous counter values so pool metrics only ever add deltas.
	prevWriteWaitCount int64
	prevReadWaitCount  int64
}

// NewSQLite opens the database at dbPath, configures both pools, and creates
// the schema. Pass ":memory:" for an in-memory database (tests).
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if err := validateDatabasePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Both pools must point at the same in-memory database, which only
	// happens with shared cache. A plain ":memory:" per pool would open two
	// independent empty databases.
	actualPath := dbPath
	if dbPath == ":memory:" {
		actualPath = "file::memory:?cache=shared"
	}

	writeDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		return nil, fmt.Errorf("opening write pool: %w", err)
	}
	if err := configureConnection(writeDB, dbPath); err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("configuring write pool: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)
	writeDB.SetConnMaxLifetime(0)
	writeDB.SetConnMaxIdleTime(10 * time.Minute)

	readDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("opening read pool: %w", err)
	}
	if err := configureConnection(readDB, dbPath); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("configuring read pool: %w", err)
	}

	// Enforce read-only at the SQLite level so a stray write through the
	// read pool fails instead of racing the single writer.
	if _, err := readDB.Exec("PRAGMA query_only=ON"); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("enabling query_only on read pool: %w", err)
	}
	var queryOnly int
	if err := readDB.QueryRow("PRAGMA query_only").Scan(&queryOnly); err != nil || queryOnly != 1 {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("read pool is not query_only (got %d): %v", queryOnly, err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	readDB.SetConnMaxIdleTime(10 * time.Minute)

	s := &SQLite{
		WriteDB: writeDB,
		ReadDB:  readDB,
		Path:    dbPath,
		Logger:  logger,
	}

	if err := s.createTables(); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	logger.Infow("sqlite initialized",
		"path", dbPath,
		"write_conns", 1,
		"read_conns", 10,
	)
	return s, nil
}

// configureConnection applies the pragmas every pool needs and verifies the
// ones SQLite is allowed to silently ignore.
func configureConnection(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}

	// SQLite accepts unknown pragmas without error, so verify.
	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		return fmt.Errorf("verifying foreign keys: %w", err)
	}
	if fkEnabled != 1 {
		return fmt.Errorf("foreign keys not enabled (got %d)", fkEnabled)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("setting busy timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("querying journal mode: %w", err)
	}
	// In-memory databases report "memory", never "wal".
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got %s)", journalMode)
	}
	return nil
}

// WithTransaction runs fn inside a write transaction, rolling back on error
// or panic.
func (s *SQLite) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.WriteDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS auctions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		token_ref TEXT,
		start_time INTEGER NOT NULL,
		duration_hours REAL NOT NULL,
		user_end_time INTEGER NOT NULL,
		actual_end_time INTEGER NOT NULL,
		buffer_seconds INTEGER NOT NULL DEFAULT 0,
		grace_seconds INTEGER NOT NULL DEFAULT 30,
		min_increment REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		created_by TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_auctions_status ON auctions(status);
	CREATE INDEX IF NOT EXISTS idx_auctions_created_at ON auctions(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_auctions_created_by ON auctions(created_by);
	-- The sweeper's hot query: active auctions ordered by end time.
	CREATE INDEX IF NOT EXISTS idx_auctions_status_end ON auctions(status, actual_end_time);

	CREATE TABLE IF NOT EXISTS bids (
		id TEXT PRIMARY KEY,
		auction_id TEXT NOT NULL,
		bidder TEXT NOT NULL,
		amount REAL NOT NULL,
		chain_timestamp INTEGER NOT NULL,
		is_accurate INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (auction_id) REFERENCES auctions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_bids_auction_id ON bids(auction_id);
	CREATE INDEX IF NOT EXISTS idx_bids_auction_amount ON bids(auction_id, amount DESC);
	CREATE INDEX IF NOT EXISTS idx_bids_created_at ON bids(created_at DESC);

	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		roles TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		totp_secret TEXT,
		mfa_enabled INTEGER NOT NULL DEFAULT 0,
		failed_login_attempts INTEGER NOT NULL DEFAULT 0,
		locked_until TEXT,
		password_changed_at TEXT,
		must_change_password INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);
	`

	if _, err := s.WriteDB.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close closes both connection pools and reports the first error.
func (s *SQLite) Close() error {
	var writeErr, readErr error
	if s.WriteDB != nil {
		writeErr = s.WriteDB.Close()
	}
	if s.ReadDB != nil {
		readErr = s.ReadDB.Close()
	}
	if writeErr != nil {
		return fmt.Errorf("closing write pool: %w", writeErr)
	}
	if readErr != nil {
		return fmt.Errorf("closing read pool: %w", readErr)
	}
	return nil
}

// HealthCheck verifies both pools respond.
func (s *SQLite) HealthCheck(ctx context.Context) error {
	if err := s.WriteDB.PingContext(ctx); err != nil {
		return fmt.Errorf("write pool: %w", err)
	}
	if err := s.ReadDB.PingContext(ctx); err != nil {
		return fmt.Errorf("read pool: %w", err)
	}
	return nil
}

// StartMetricsCollection publishes pool gauges on the given interval until
// ctx is cancelled.
func (s *SQLite) StartMetricsCollection(ctx context.Context, interval time.Duration) {
	s.updatePoolMetrics()

	go func() {
		defer goroutine.Recover("sqlite-pool-metrics", s.Logger)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.Logger.Debug("sqlite metrics collection stopped")
				return
			case <-ticker.C:
				s.updatePoolMetrics()
			}
		}
	}()
}

func (s *SQLite) updatePoolMetrics() {
	s.publishPoolStats("write", s.WriteDB.Stats(), &s.prevWriteWaitCount)
	s.publishPoolStats("read", s.ReadDB.Stats(), &s.prevReadWaitCount)
}

func (s *SQLite) publishPoolStats(pool string, stats sql.DBStats, prevWaitCount *int64) {
	metrics.SQLitePoolOpenConnections.WithLabelValues(pool).Set(float64(stats.OpenConnections))
	metrics.SQLitePoolInUse.WithLabelValues(pool).Set(float64(stats.InUse))
	metrics.SQLitePoolIdle.WithLabelValues(pool).Set(float64(stats.Idle))

	// Counters only move forward; publish the delta since the last tick.
	if delta := stats.WaitCount - *prevWaitCount; delta > 0 {
		metrics.SQLitePoolWaitCount.WithLabelValues(pool).Add(float64(delta))
		*prevWaitCount = stats.WaitCount
	}
}

func validateDatabasePath(dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if dbPath == ":memory:" {
		return nil
	}
	if len(dbPath) > 512 {
		return fmt.Errorf("database path exceeds 512 characters")
	}
	if strings.ContainsRune(dbPath, '\x00') {
		return fmt.Errorf("null bytes not allowed in path")
	}
	if strings.Contains(dbPath, "..") {
		return fmt.Errorf("path traversal not allowed: %s", dbPath)
	}
	return nil
}
