package storage

import (
	"context"
	"time"

	"bidhouse/auction"
	"bidhouse/core"
)

// AuctionFilters narrows ListAuctions results. Zero values mean "no filter".
type AuctionFilters struct {
	Status    auction.Status
	CreatedBy string
	Limit     int
	Offset    int
}

// AuctionStorage defines the interface for auction metadata persistence
type AuctionStorage interface {
	CreateAuction(ctx context.Context, a *auction.Auction) error
	GetAuction(ctx context.Context, id string) (*auction.Auction, error)
	ListAuctions(ctx context.Context, filters AuctionFilters) ([]auction.Auction, int64, error)
	UpdateAuction(ctx context.Context, id string, a *auction.Auction) error
	UpdateAuctionStatus(ctx context.Context, id string, status auction.Status) error
	DeleteAuction(ctx context.Context, id string) error
	// ListEndingBefore returns active auctions whose actual end time is at or
	// before cutoff. The sweeper uses it to find auctions to close.
	ListEndingBefore(ctx context.Context, cutoff int64) ([]auction.Auction, error)
}

// BidStorage defines the interface for bid persistence
type BidStorage interface {
	CreateBid(ctx context.Context, b *auction.Bid) error
	GetBid(ctx context.Context, id string) (*auction.Bid, error)
	ListBids(ctx context.Context, auctionID string, limit, offset int) ([]auction.Bid, error)
	HighestBid(ctx context.Context, auctionID string) (*auction.Bid, error)
	CountBids(ctx context.Context, auctionID string) (int64, error)
}

// UserStorage defines the interface for user account persistence
type UserStorage interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, username string, user *User) error
	UpdatePassword(ctx context.Context, username, newPassword string) error
	IncrementFailedLogins(ctx context.Context, username string) (int, error)
	ResetFailedLogins(ctx context.Context, username string) error
	SetLockedUntil(ctx context.Context, username string, until *time.Time) error
	SetTOTPSecret(ctx context.Context, username, secret string, enabled bool) error
	DeleteUser(ctx context.Context, username string) error
}

// SecurityEventFilters narrows archive queries.
type SecurityEventFilters struct {
	Severity core.Severity
	Reason   string
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

// EventArchive is the query side of the ClickHouse archive. The write side
// is core.SecuritySink plus RecordBidAttempt; both are implemented by
// ClickHouseSecurityEventStorage and stubbed by DisabledArchive when
// ClickHouse is not configured.
type EventArchive interface {
	core.SecuritySink
	RecordBidAttempt(attempt *BidAttempt)
	QueryEvents(ctx context.Context, filters SecurityEventFilters) ([]core.SecurityEvent, error)
	CountEventsBySeverity(ctx context.Context, since time.Time) (map[core.Severity]int64, error)
	QueryBidAttempts(ctx context.Context, auctionID string, limit, offset int) ([]BidAttempt, error)
}
