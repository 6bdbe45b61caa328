package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bidhouse/auction"

	"go.uber.org/zap"
)

// SQLiteBidStorage implements BidStorage using SQLite
type SQLiteBidStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteBidStorage creates a new SQLite-based bid storage
func NewSQLiteBidStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteBidStorage {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SQLiteBidStorage{sqlite: sqlite, logger: logger}
}

const bidColumns = `id, auction_id, bidder, amount, chain_timestamp, is_accurate, created_at`

// CreateBid inserts an accepted bid
func (sbs *SQLiteBidStorage) CreateBid(ctx context.Context, b *auction.Bid) error {
	b.CreatedAt = time.Now().UTC()

	accurate := 0
	if b.Accurate {
		accurate = 1
	}

	query := `INSERT INTO bids (` + bidColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := sbs.sqlite.WriteDB.ExecContext(ctx, query,
		b.ID,
		b.AuctionID,
		b.Bidder,
		b.Amount,
		b.ChainTimestamp,
		accurate,
		b.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateBid
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return ErrAuctionNotFound
		}
		return fmt.Errorf("creating bid: %w", err)
	}

	sbs.logger.Debugw("bid stored", "bid_id", b.ID, "auction_id", b.AuctionID, "amount", b.Amount)
	return nil
}

// GetBid retrieves a bid by ID
func (sbs *SQLiteBidStorage) GetBid(ctx context.Context, id string) (*auction.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = ?`
	b, err := scanBid(sbs.sqlite.ReadDB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting bid: %w", err)
	}
	return b, nil
}

// ListBids returns the bids on an auction, highest first
func (sbs *SQLiteBidStorage) ListBids(ctx context.Context, auctionID string, limit, offset int) ([]auction.Bid, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + bidColumns + ` FROM bids
		WHERE auction_id = ?
		ORDER BY amount DESC, created_at ASC
		LIMIT ? OFFSET ?`

	rows, err := sbs.sqlite.ReadDB.QueryContext(ctx, query, auctionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing bids: %w", err)
	}
	defer rows.Close()

	bids := make([]auction.Bid, 0, limit)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			sbs.logger.Errorw("failed to scan bid row", "error", err)
			continue
		}
		bids = append(bids, *b)
	}
	return bids, rows.Err()
}

// HighestBid returns the current top bid, or ErrBidNotFound when the auction
// has no bids yet.
func (sbs *SQLiteBidStorage) HighestBid(ctx context.Context, auctionID string) (*auction.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids
		WHERE auction_id = ?
		ORDER BY amount DESC, created_at ASC
		LIMIT 1`

	b, err := scanBid(sbs.sqlite.ReadDB.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting highest bid: %w", err)
	}
	return b, nil
}

// CountBids returns the number of bids on an auction
func (sbs *SQLiteBidStorage) CountBids(ctx context.Context, auctionID string) (int64, error) {
	var count int64
	err := sbs.sqlite.ReadDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bids WHERE auction_id = ?`, auctionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting bids: %w", err)
	}
	return count, nil
}

func scanBid(row rowScanner) (*auction.Bid, error) {
	var b auction.Bid
	var accurate int
	var createdAt string

	err := row.Scan(
		&b.ID,
		&b.AuctionID,
		&b.Bidder,
		&b.Amount,
		&b.ChainTimestamp,
		&accurate,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	b.Accurate = accurate == 1
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		b.CreatedAt = t
	}
	return &b, nil
}
