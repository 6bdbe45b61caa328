package storage

import "errors"

// Storage error constants
var (
	// ErrAuctionNotFound is returned when an auction is not found
	ErrAuctionNotFound = errors.New("auction not found")

	// ErrBidNotFound is returned when a bid is not found
	ErrBidNotFound = errors.New("bid not found")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when creating a user whose username is taken
	ErrUserExists = errors.New("user already exists")

	// ErrAuctionExists is returned when creating an auction whose ID is taken
	ErrAuctionExists = errors.New("auction already exists")

	// ErrDuplicateBid is returned when a bid with the same ID already exists
	ErrDuplicateBid = errors.New("bid already exists")

	// ErrArchiveDisabled is returned by archive queries when ClickHouse is not configured
	ErrArchiveDisabled = errors.New("event archive is disabled")

	// Generic storage errors

	// ErrNotFound is a generic "not found" error
	ErrNotFound = errors.New("not found")

	// ErrDatabaseClosed is returned when attempting to use a closed database connection
	ErrDatabaseClosed = errors.New("database is closed")

	// ErrConstraintViolation is returned when a database constraint is violated
	ErrConstraintViolation = errors.New("constraint violation")
)
