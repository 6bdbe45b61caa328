package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SQLiteUserStorage implements UserStorage using SQLite
type SQLiteUserStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteUserStorage creates a new SQLite-based user storage
func NewSQLiteUserStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteUserStorage {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SQLiteUserStorage{sqlite: sqlite, logger: logger}
}

// CreateUser creates a new user. user.Password carries the plaintext on the
// way in and is replaced by the bcrypt hash.
func (sus *SQLiteUserStorage) CreateUser(ctx context.Context, user *User) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	user.Password = string(hash)

	rolesJSON, err := json.Marshal(user.Roles)
	if err != nil {
		return fmt.Errorf("marshaling roles: %w", err)
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Active = true
	if user.PasswordChangedAt == nil {
		user.PasswordChangedAt = &now
	}

	query := `
		INSERT INTO users (username, password_hash, roles, active, totp_secret, mfa_enabled,
		                   failed_login_attempts, locked_until, password_changed_at,
		                   must_change_password, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = sus.sqlite.WriteDB.ExecContext(ctx, query,
		user.Username,
		user.Password,
		string(rolesJSON),
		boolToInt(user.Active),
		user.TOTPSecret,
		boolToInt(user.MFAEnabled),
		user.FailedLoginAttempts,
		nullableTime(user.LockedUntil),
		nullableTime(user.PasswordChangedAt),
		boolToInt(user.MustChangePassword),
		user.CreatedAt.Format(time.RFC3339),
		user.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUserExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	sus.logger.Infow("user created", "username", user.Username, "roles", user.Roles)
	return nil
}

// CreateUserWithHash inserts a user whose Password field already carries a
// bcrypt hash. First-run seeding uses this when the admin password was
// hashed at config load and the plaintext discarded.
func (sus *SQLiteUserStorage) CreateUserWithHash(ctx context.Context, user *User) error {
	rolesJSON, err := json.Marshal(user.Roles)
	if err != nil {
		return fmt.Errorf("marshaling roles: %w", err)
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Active = true
	if user.PasswordChangedAt == nil {
		user.PasswordChangedAt = &now
	}

	query := `
		INSERT INTO users (username, password_hash, roles, active, totp_secret, mfa_enabled,
		                   failed_login_attempts, locked_until, password_changed_at,
		                   must_change_password, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = sus.sqlite.WriteDB.ExecContext(ctx, query,
		user.Username,
		user.Password,
		string(rolesJSON),
		boolToInt(user.Active),
		user.TOTPSecret,
		boolToInt(user.MFAEnabled),
		user.FailedLoginAttempts,
		nullableTime(user.LockedUntil),
		nullableTime(user.PasswordChangedAt),
		boolToInt(user.MustChangePassword),
		user.CreatedAt.Format(time.RFC3339),
		user.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUserExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	sus.logger.Infow("user created", "username", user.Username, "roles", user.Roles)
	return nil
}

// GetUserByUsername retrieves a user by username
func (sus *SQLiteUserStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT username, password_hash, roles, active, totp_secret, mfa_enabled,
		       failed_login_attempts, locked_until, password_changed_at,
		       must_change_password, created_at, updated_at
		FROM users
		WHERE username = ?
	`

	var user User
	var rolesJSON, createdAt, updatedAt string
	var active, mfaEnabled, mustChange int
	var totpSecret, lockedUntil, passwordChangedAt sql.NullString

	err := sus.sqlite.ReadDB.QueryRowContext(ctx, query, username).Scan(
		&user.Username,
		&user.Password,
		&rolesJSON,
		&active,
		&totpSecret,
		&mfaEnabled,
		&user.FailedLoginAttempts,
		&lockedUntil,
		&passwordChangedAt,
		&mustChange,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	user.Active = active == 1
	user.MFAEnabled = mfaEnabled == 1
	user.MustChangePassword = mustChange == 1
	user.TOTPSecret = totpSecret.String
	if err := json.Unmarshal([]byte(rolesJSON), &user.Roles); err != nil {
		return nil, fmt.Errorf("unmarshaling roles: %w", err)
	}
	user.LockedUntil = parseNullableTime(lockedUntil)
	user.PasswordChangedAt = parseNullableTime(passwordChangedAt)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		user.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		user.UpdatedAt = t
	}

	return &user, nil
}

// ValidateCredentials checks username/password and returns the user on
// success. Lockout state is the caller's concern; this only compares hashes.
func (sus *SQLiteUserStorage) ValidateCredentials(ctx context.Context, username, password string) (*User, error) {
	user, err := sus.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return user, nil
}

// UpdateUser replaces the mutable profile fields of a user
func (sus *SQLiteUserStorage) UpdateUser(ctx context.Context, username string, user *User) error {
	rolesJSON, err := json.Marshal(user.Roles)
	if err != nil {
		return fmt.Errorf("marshaling roles: %w", err)
	}
	user.UpdatedAt = time.Now().UTC()

	result, err := sus.sqlite.WriteDB.ExecContext(ctx, `
		UPDATE users
		SET roles = ?, active = ?, must_change_password = ?, updated_at = ?
		WHERE username = ?`,
		string(rolesJSON),
		boolToInt(user.Active),
		boolToInt(user.MustChangePassword),
		user.UpdatedAt.Format(time.RFC3339),
		username,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return requireRowAffected(result, ErrUserNotFound)
}

// UpdatePassword hashes and stores a new password and clears the
// must-change flag.
func (sus *SQLiteUserStorage) UpdatePassword(ctx context.Context, username, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := sus.sqlite.WriteDB.ExecContext(ctx, `
		UPDATE users
		SET password_hash = ?, password_changed_at = ?, must_change_password = 0, updated_at = ?
		WHERE username = ?`,
		string(hash), now, now, username,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if err := requireRowAffected(result, ErrUserNotFound); err != nil {
		return err
	}
	sus.logger.Infow("password updated", "username", username)
	return nil
}

// IncrementFailedLogins bumps the failed login counter and returns the new value
func (sus *SQLiteUserStorage) IncrementFailedLogins(ctx context.Context, username string) (int, error) {
	result, err := sus.sqlite.WriteDB.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1, updated_at = ?
		WHERE username = ?`,
		time.Now().UTC().Format(time.RFC3339), username,
	)
	if err != nil {
		return 0, fmt.Errorf("incrementing failed logins: %w", err)
	}
	if err := requireRowAffected(result, ErrUserNotFound); err != nil {
		return 0, err
	}

	var attempts int
	err = sus.sqlite.WriteDB.QueryRowContext(ctx,
		`SELECT failed_login_attempts FROM users WHERE username = ?`, username,
	).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("reading failed logins: %w", err)
	}
	return attempts, nil
}

// ResetFailedLogins zeroes the counter and clears any lockout
func (sus *SQLiteUserStorage) ResetFailedLogins(ctx context.Context, username string) error {
	result, err := sus.sqlite.WriteDB.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, updated_at = ?
		WHERE username = ?`,
		time.Now().UTC().Format(time.RFC3339), username,
	)
	if err != nil {
		return fmt.Errorf("resetting failed logins: %w", err)
	}
	return requireRowAffected(result, ErrUserNotFound)
}

// SetLockedUntil sets or clears (nil) the account lockout expiry
func (sus *SQLiteUserStorage) SetLockedUntil(ctx context.Context, username string, until *time.Time) error {
	result, err := sus.sqlite.WriteDB.ExecContext(ctx, `
		UPDATE users SET locked_until = ?, updated_at = ? WHERE username = ?`,
		nullableTime(until), time.Now().UTC().Format(time.RFC3339), username,
	)
	if err != nil {
		return fmt.Errorf("setting lockout: %w", err)
	}
	if err := requireRowAffected(result, ErrUserNotFound); err != nil {
		return err
	}
	if until != nil {
		sus.logger.Warnw("account locked", "username", username, "until", until.Format(time.RFC3339))
	}
	return nil
}

// SetTOTPSecret stores the TOTP secret and toggles MFA
func (sus *SQLiteUserStorage) SetTOTPSecret(ctx context.Context, username, secret string, enabled bool) error {
	result, err := sus.sqlite.WriteDB.ExecContext(ctx, `
		UPDATE users SET totp_secret = ?, mfa_enabled = ?, updated_at = ? WHERE username = ?`,
		secret, boolToInt(enabled), time.Now().UTC().Format(time.RFC3339), username,
	)
	if err != nil {
		return fmt.Errorf("setting totp secret: %w", err)
	}
	return requireRowAffected(result, ErrUserNotFound)
}

// DeleteUser removes a user
func (sus *SQLiteUserStorage) DeleteUser(ctx context.Context, username string) error {
	result, err := sus.sqlite.WriteDB.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return requireRowAffected(result, ErrUserNotFound)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullableTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
