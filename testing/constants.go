package testing

import "time"

// ==============================================================================
// TEST TIMING CONSTANTS
// ==============================================================================
// Shared timeout tiers so individual tests do not invent their own timing
// assumptions. Polling against these beats sleeping for a guessed duration.

const (
	// TestShortTimeout bounds operations that complete without I/O.
	TestShortTimeout = 100 * time.Millisecond

	// TestMediumTimeout bounds single storage or network round-trips.
	TestMediumTimeout = 1 * time.Second

	// TestLongTimeout bounds multi-step operations on slow CI machines.
	TestLongTimeout = 5 * time.Second

	// TestVeryLongTimeout bounds full integration flows.
	TestVeryLongTimeout = 30 * time.Second

	// TestPollInterval is how often WaitForCondition re-checks.
	TestPollInterval = 10 * time.Millisecond

	// TestSweepInterval keeps sweeper loop tests fast without spinning.
	TestSweepInterval = 10 * time.Millisecond
)

// ==============================================================================
// TEST FIXTURE CONSTANTS
// ==============================================================================
// Standard domain values used across test files. Network addresses come from
// the TEST-NET ranges so a misconfigured test can never reach a real host.

const (
	// TestChainTimestamp is the fixed chain time test clocks start at:
	// 2023-11-14T22:13:20Z. Absolute auction windows are derived from it.
	TestChainTimestamp int64 = 1700000000

	// TestBlockNumber is the block carried by fixed test readings.
	TestBlockNumber uint64 = 18750000

	// TestAuctionTitle names auctions created by test helpers.
	TestAuctionTitle = "Test Auction"

	// TestTokenRef is the token reference used by test auctions.
	TestTokenRef = "0xabc123/42"

	// TestCreatedBy is the creator recorded on test auctions.
	TestCreatedBy = "testuser"

	// TestBidder is the bidder identity used for accepted test bids.
	TestBidder = "0x71c7656ec7ab88b098defb751b7401b5f6d8976f"

	// TestSourceIP is a TEST-NET-1 address for bid attempt records.
	TestSourceIP = "192.0.2.1"

	// TestDurationHours is the window length of helper-created auctions.
	TestDurationHours = 2

	// TestGraceSeconds is the grace period on helper-created auctions.
	TestGraceSeconds int64 = 60

	// TestMinIncrement is the bid increment on helper-created auctions.
	TestMinIncrement = 0.1
)

// ==============================================================================
// TEST SCALE CONSTANTS
// ==============================================================================

const (
	// TestSmallCollectionSize exercises pagination edges.
	TestSmallCollectionSize = 10

	// TestMediumCollectionSize exercises realistic listing loads.
	TestMediumCollectionSize = 100

	// TestConcurrencyLevel is the goroutine count for concurrency tests.
	TestConcurrencyLevel = 10

	// TestHighConcurrencyLevel is used by stress-oriented tests.
	TestHighConcurrencyLevel = 100
)
