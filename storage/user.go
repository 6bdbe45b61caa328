package storage

import "time"

// Role names. Roles are stored as a JSON array on the user row; bidhouse has
// no separate roles table.
const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
	RoleBidder = "bidder"
)

// User represents an account in the system
type User struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"` // bcrypt hash, never serialized
	Roles     []string  `json:"roles"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// MFA/TOTP support
	TOTPSecret string `json:"-"`
	MFAEnabled bool   `json:"mfa_enabled,omitempty"`

	// Account lockout and password lifecycle
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	PasswordChangedAt   *time.Time `json:"password_changed_at,omitempty"`
	MustChangePassword  bool       `json:"must_change_password,omitempty"`
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsLocked reports whether the account is locked out at time now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
