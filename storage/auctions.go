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

// SQLiteAuctionStorage implements AuctionStorage using SQLite
type SQLiteAuctionStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteAuctionStorage creates a new SQLite-based auction storage
func NewSQLiteAuctionStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteAuctionStorage {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SQLiteAuctionStorage{sqlite: sqlite, logger: logger}
}

const auctionColumns = `id, title, description, token_ref, start_time, duration_hours,
	user_end_time, actual_end_time, buffer_seconds, grace_seconds, min_increment,
	status, created_by, created_at, updated_at`

// CreateAuction inserts a new auction
func (sas *SQLiteAuctionStorage) CreateAuction(ctx context.Context, a *auction.Auction) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := sas.sqlite.WriteDB.ExecContext(ctx, query,
		a.ID,
		a.Title,
		a.Description,
		a.TokenRef,
		a.StartTime,
		a.DurationHours,
		a.UserEndTime,
		a.ActualEndTime,
		a.BufferSeconds,
		a.GraceSeconds,
		a.MinIncrement,
		string(a.Status),
		a.CreatedBy,
		a.CreatedAt.Format(time.RFC3339),
		a.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrAuctionExists
		}
		return fmt.Errorf("creating auction: %w", err)
	}

	sas.logger.Infow("auction created", "auction_id", a.ID, "status", a.Status)
	return nil
}

// GetAuction retrieves an auction by ID
func (sas *SQLiteAuctionStorage) GetAuction(ctx context.Context, id string) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`
	row := sas.sqlite.ReadDB.QueryRowContext(ctx, query, id)

	a, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAuctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting auction: %w", err)
	}
	return a, nil
}

// ListAuctions returns a page of auctions matching filters plus the total count
func (sas *SQLiteAuctionStorage) ListAuctions(ctx context.Context, filters AuctionFilters) ([]auction.Auction, int64, error) {
	var conditions []string
	var args []interface{}

	if filters.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filters.Status))
	}
	if filters.CreatedBy != "" {
		conditions = append(conditions, "created_by = ?")
		args = append(args, filters.CreatedBy)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM auctions" + where
	if err := sas.sqlite.ReadDB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting auctions: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + auctionColumns + " FROM auctions" + where +
		" ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filters.Offset)

	rows, err := sas.sqlite.ReadDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing auctions: %w", err)
	}
	defer rows.Close()

	auctions := make([]auction.Auction, 0, limit)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			sas.logger.Errorw("failed to scan auction row", "error", err)
			continue
		}
		auctions = append(auctions, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating auctions: %w", err)
	}

	return auctions, total, nil
}

// UpdateAuction replaces the mutable fields of an auction
func (sas *SQLiteAuctionStorage) UpdateAuction(ctx context.Context, id string, a *auction.Auction) error {
	a.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE auctions
		SET title = ?, description = ?, token_ref = ?, start_time = ?,
		    duration_hours = ?, user_end_time = ?, actual_end_time = ?,
		    buffer_seconds = ?, grace_seconds = ?, min_increment = ?,
		    status = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := sas.sqlite.WriteDB.ExecContext(ctx, query,
		a.Title,
		a.Description,
		a.TokenRef,
		a.StartTime,
		a.DurationHours,
		a.UserEndTime,
		a.ActualEndTime,
		a.BufferSeconds,
		a.GraceSeconds,
		a.MinIncrement,
		string(a.Status),
		a.UpdatedAt.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating auction: %w", err)
	}
	return requireRowAffected(result, ErrAuctionNotFound)
}

// UpdateAuctionStatus transitions an auction's status without touching other fields
func (sas *SQLiteAuctionStorage) UpdateAuctionStatus(ctx context.Context, id string, status auction.Status) error {
	result, err := sas.sqlite.WriteDB.ExecContext(ctx,
		`UPDATE auctions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating auction status: %w", err)
	}
	if err := requireRowAffected(result, ErrAuctionNotFound); err != nil {
		return err
	}
	sas.logger.Infow("auction status updated", "auction_id", id, "status", status)
	return nil
}

// DeleteAuction removes an auction and, via the foreign key cascade, its bids
func (sas *SQLiteAuctionStorage) DeleteAuction(ctx context.Context, id string) error {
	result, err := sas.sqlite.WriteDB.ExecContext(ctx, `DELETE FROM auctions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting auction: %w", err)
	}
	return requireRowAffected(result, ErrAuctionNotFound)
}

// ListEndingBefore returns active auctions whose actual end time is at or before cutoff
func (sas *SQLiteAuctionStorage) ListEndingBefore(ctx context.Context, cutoff int64) ([]auction.Auction, error) {
	query := "SELECT " + auctionColumns + ` FROM auctions
		WHERE status = ? AND actual_end_time <= ?
		ORDER BY actual_end_time ASC`

	rows, err := sas.sqlite.ReadDB.QueryContext(ctx, query, string(auction.StatusActive), cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing ending auctions: %w", err)
	}
	defer rows.Close()

	auctions := make([]auction.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			sas.logger.Errorw("failed to scan auction row", "error", err)
			continue
		}
		auctions = append(auctions, *a)
	}
	return auctions, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var a auction.Auction
	var status, createdAt, updatedAt string
	var description, tokenRef, createdBy sql.NullString

	err := row.Scan(
		&a.ID,
		&a.Title,
		&description,
		&tokenRef,
		&a.StartTime,
		&a.DurationHours,
		&a.UserEndTime,
		&a.ActualEndTime,
		&a.BufferSeconds,
		&a.GraceSeconds,
		&a.MinIncrement,
		&status,
		&createdBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Description = description.String
	a.TokenRef = tokenRef.String
	a.CreatedBy = createdBy.String
	a.Status = auction.Status(status)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		a.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		a.UpdatedAt = t
	}
	return &a, nil
}

func requireRowAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
