//go:build ignore

package examples

// Example of chain clock integration for bid gating.
//
// This example demonstrates how to assemble the chain time stack and route
// bid decisions through it.
//
// PRODUCTION USAGE:
//   1. Load configuration from config.yaml
//   2. Dial the primary RPC endpoint plus fallbacks
//   3. Layer failover and caching under a single Clock
//   4. Hand the Clock to the auction service as its TimeSource
//
// DEGRADED MODE: every layer of the stack fails soft. A dead endpoint fails
// over to the next one; when all endpoints are down the Clock serves the
// local wall clock and flags the reading inaccurate, which widens the bid
// gate instead of closing it.
//
// NOTE: This is example code only - not compiled as part of the main binary

import (
	"context"
	"log"
	"time"

	"bidhouse/chain"
	"bidhouse/config"
	"bidhouse/service"
	"bidhouse/storage"

	"go.uber.org/zap"
)

// BuildChainClock assembles the production clock stack from configuration.
//
// LAYERS (outermost first):
//   - chain.Clock: converts headers to Readings, falls back to local time
//   - chain.CachedSource: absorbs countdown polling between blocks
//   - chain.FailoverSource: tries each endpoint in priority order
//   - chain.EthSource: one per configured RPC endpoint
//
// PARAMETERS:
//   - ctx: used only for the initial endpoint dials
//   - cfg: application configuration loaded from config.yaml
//   - logger: structured logger shared by every layer
//
// RETURNS:
//   - Configured Clock ready to hand to the auction service
//   - Cleanup function closing the dialed connections
func BuildChainClock(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*chain.Clock, func()) {
	urls := append([]string{cfg.Chain.RPCURL}, cfg.Chain.FallbackRPCURLs...)

	var eths []*chain.EthSource
	var sources []chain.HeaderSource
	for _, url := range urls {
		if url == "" {
			continue
		}
		src, err := chain.Dial(ctx, url)
		if err != nil {
			// A dead endpoint at startup is not fatal; the failover layer
			// simply has one fewer source to try.
			logger.Warnw("Skipping unreachable RPC endpoint", "url", url, "error", err)
			continue
		}
		eths = append(eths, src)
		sources = append(sources, src)
	}

	failover := chain.NewFailoverSource(logger, sources...)
	cached := chain.NewCachedSource(failover, logger, chain.WithTTL(cfg.Chain.CacheTTL))
	clock := chain.NewClock(cached, logger)

	cleanup := func() {
		for _, src := range eths {
			src.Close()
		}
	}
	return clock, cleanup
}

// GateBidOnChainTime shows the decision a bid runs through.
//
// DECISION FLOW:
//   1. Resolve the current Reading from the clock
//   2. The service subtracts the grace period from the remaining window
//   3. An inaccurate reading switches the close reason so clients can tell
//      a chain-clock close from a local-clock close
//
// RETURNS:
//   - The accepted bid, or a *service.BidRejectedError naming the reason
func GateBidOnChainTime(ctx context.Context, svc *service.AuctionService, auctionID string) {
	bid, err := svc.PlaceBid(ctx, service.PlaceBidInput{
		AuctionID: auctionID,
		Bidder:    "0x71c7656ec7ab88b098defb751b7401b5f6d8976f",
		Amount:    2.5,
	})
	if err != nil {
		// Rejections carry the reason and the remaining window so the
		// client can retry or give up intelligently.
		log.Printf("bid rejected: %v", err)
		return
	}
	log.Printf("bid %s accepted at chain timestamp %d (accurate=%v)",
		bid.ID, bid.ChainTimestamp, bid.Accurate)
}

// ClockHealthCheck reports the clock state for a monitoring endpoint.
//
// USE CASE: the /health handler includes this so operators see a degraded
// chain clock before bidders complain about close reasons.
func ClockHealthCheck(ctx context.Context, clock *chain.Clock) map[string]interface{} {
	reading := clock.Now(ctx)

	health := map[string]interface{}{
		"timestamp":    reading.Timestamp,
		"block_number": reading.BlockNumber,
		"is_accurate":  reading.Accurate,
	}
	if reading.Accurate {
		health["message"] = "Chain clock healthy"
	} else {
		health["message"] = "Serving local fallback time; bid gating is degraded"
	}
	return health
}

// ExampleChainClockIntegration demonstrates the complete wiring.
//
// This example shows:
//   - Configuration loading
//   - Clock stack assembly with failover and caching
//   - Auction service construction on top of the clock
//   - Health monitoring
func ExampleChainClockIntegration() {
	// Step 1: Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Step 2: Initialize logger
	logger, _ := zap.NewProduction()
	sugar := logger.Sugar()
	defer logger.Sync()

	// Step 3: Build the clock stack
	ctx := context.Background()
	clock, cleanup := BuildChainClock(ctx, cfg, sugar)
	defer cleanup()

	// Step 4: Open storage and construct the service
	sqlite, err := storage.NewSQLite(cfg.GetSQLitePath(), sugar)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer sqlite.Close()

	svc := service.NewAuctionService(
		storage.NewSQLiteAuctionStorage(sqlite),
		storage.NewSQLiteBidStorage(sqlite),
		storage.DisabledArchive{},
		clock,
		nil, // no websocket hub in this example
		sugar,
		service.Options{
			MinDurationHours:    cfg.Auction.MinDurationHours,
			MaxDurationHours:    cfg.Auction.MaxDurationHours,
			DefaultGraceSeconds: cfg.Auction.DefaultGraceSeconds,
		},
	)

	// Step 5: Create an auction closing in two hours
	created, err := svc.CreateAuction(ctx, service.CreateAuctionInput{
		Title:         "Genesis Plot #42",
		TokenRef:      "0xabc123/42",
		StartTime:     time.Now().Unix(),
		DurationHours: 2,
		MinIncrement:  0.1,
		CreatedBy:     "examples",
	})
	if err != nil {
		log.Fatalf("Failed to create auction: %v", err)
	}

	// Step 6: Run a bid through the gate
	GateBidOnChainTime(ctx, svc, created.ID)

	// Step 7: Inspect clock health
	health := ClockHealthCheck(ctx, clock)
	log.Printf("Clock health: %+v", health)
}
