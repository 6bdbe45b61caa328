package testing

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"bidhouse/service"
	"bidhouse/storage"
)

// SetupTestDB creates an isolated in-memory SQLite database for testing.
// Each test gets a unique database keyed by test name so parallel tests
// cannot see each other's rows. Cleanup is registered via t.Cleanup().
//
// Example usage:
//
//	db := testing.SetupTestDB(t)
func SetupTestDB(t *testing.T) *storage.SQLite {
	t.Helper()

	// Memory mode with shared cache lets the separate read and write pools
	// reach the same database. Subtest names contain slashes, which would
	// read as a directory in the DSN.
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dbPath := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := storage.NewSQLite(dbPath, SetupTestLogger(t))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	return db
}

// SetupTestLogger returns the logger test components run with. A no-op
// logger keeps test output clean; tests asserting on log output build their
// own observer core.
func SetupTestLogger(t testing.TB) *zap.SugaredLogger {
	t.Helper()
	return zap.NewNop().Sugar()
}

// SetupTestService builds an auction service over an isolated test database
// with a FixedClock, so tests control exactly what time the bid gate sees.
// The returned clock starts at TestChainTimestamp and reads as accurate.
//
// Example usage:
//
//	svc, clock := testing.SetupTestService(t)
//	clock.Advance(3600) // jump the chain an hour forward
func SetupTestService(t *testing.T) (*service.AuctionService, *FixedClock) {
	t.Helper()

	db := SetupTestDB(t)
	clock := NewFixedClock(TestChainTimestamp)

	svc := service.NewAuctionService(
		storage.NewSQLiteAuctionStorage(db, SetupTestLogger(t)),
		storage.NewSQLiteBidStorage(db, SetupTestLogger(t)),
		storage.DisabledArchive{},
		clock,
		nil,
		SetupTestLogger(t),
		service.DefaultOptions(),
	)
	return svc, clock
}

// NewAuctionInput returns a standard create input starting at startTime.
// Callers override fields as each test needs.
func NewAuctionInput(startTime int64) service.CreateAuctionInput {
	grace := TestGraceSeconds
	return service.CreateAuctionInput{
		Title:         TestAuctionTitle,
		TokenRef:      TestTokenRef,
		StartTime:     startTime,
		DurationHours: TestDurationHours,
		GraceSeconds:  &grace,
		MinIncrement:  TestMinIncrement,
		CreatedBy:     TestCreatedBy,
	}
}

// WaitForCondition polls a condition function until it returns true or the
// timeout expires, failing the test on expiry. Polling replaces sleep-based
// timing, which breaks on slow CI machines.
//
// Example usage:
//
//	testing.WaitForCondition(t, func() bool {
//	    return hub.ClientCount() == 0
//	}, testing.TestMediumTimeout, "hub to drain its clients")
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, description string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(TestPollInterval)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		<-ticker.C
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for condition: %s (timeout: %v)", description, timeout)
		}
	}
}
