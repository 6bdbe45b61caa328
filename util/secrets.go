package util

import (
	"fmt"
	"strings"
	"unicode"
)

// MinSecretLength is the floor for HMAC and JWT signing secrets. Anything
// shorter is brute-forceable offline once a single signed value leaks.
const MinSecretLength = 16

// PasswordPolicy validates user-chosen passwords at registration and
// password-change time.
type PasswordPolicy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPasswordPolicy mirrors the defaults applied by the config layer.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:      12,
		MaxLength:      128,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: false,
	}
}

// commonPasswords is a deliberately small embedded set. It catches the
// passwords that actually show up in credential-stuffing lists against
// bidding sites; a full breach corpus belongs in an external checker, not
// in the binary.
var commonPasswords = map[string]struct{}{
	"password":      {},
	"password1":     {},
	"password123":   {},
	"passw0rd":      {},
	"123456":        {},
	"1234567890":    {},
	"qwerty123":     {},
	"letmein":       {},
	"welcome1":      {},
	"admin123":      {},
	"iloveyou":      {},
	"sunshine1":     {},
	"auction123":    {},
	"bidhouse123":   {},
	"changeme":      {},
	"changeme123":   {},
	"trustno1":      {},
	"monkey123":     {},
	"dragon123":     {},
	"baseball1":     {},
	"football1":     {},
	"superman1":     {},
	"master123":     {},
	"shadow123":     {},
	"michael1":      {},
	"jennifer1":     {},
	"111111":        {},
	"abc123":        {},
	"654321":        {},
	"696969":        {},
	"batman123":     {},
	"access123":     {},
	"flower123":     {},
	"555555":        {},
	"loveme123":     {},
	"hello123":      {},
	"freedom1":      {},
	"whatever1":     {},
	"qazwsx123":     {},
	"starwars1":     {},
	"summer2024":    {},
	"winter2024":    {},
	"spring2024":    {},
	"autumn2024":    {},
	"p@ssword":      {},
	"p@ssw0rd":      {},
	"secret123":     {},
	"default123":    {},
	"temp123456":    {},
	"guest123":      {},
	"test123456":    {},
	"demo123456":    {},
	"root123456":    {},
	"user123456":    {},
	"sample123":     {},
	"example123":    {},
	"fuckyou123":    {},
	"asshole123":    {},
	"biteme123":     {},
	"nothing123":    {},
	"secret":        {},
	"administrator": {},
}

// Validate checks password against the policy. username, when non-empty, is
// rejected as a password substring in either direction so "alice2024!" fails
// for user alice.
func (p PasswordPolicy) Validate(password, username string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters", p.MinLength)
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		return fmt.Errorf("password must be at most %d characters", p.MaxLength)
	}

	for _, r := range password {
		if unicode.IsControl(r) {
			return fmt.Errorf("password must not contain control characters")
		}
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	if p.RequireUpper && !hasUpper {
		return fmt.Errorf("password must contain an uppercase letter")
	}
	if p.RequireLower && !hasLower {
		return fmt.Errorf("password must contain a lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		return fmt.Errorf("password must contain a digit")
	}
	if p.RequireSpecial && !hasSpecial {
		return fmt.Errorf("password must contain a special character")
	}

	lower := strings.ToLower(password)
	if _, found := commonPasswords[lower]; found {
		return fmt.Errorf("password is too common")
	}
	if username != "" {
		lowerUser := strings.ToLower(username)
		if strings.Contains(lower, lowerUser) || strings.Contains(lowerUser, lower) {
			return fmt.Errorf("password must not contain the username")
		}
	}
	return nil
}

// weakSecrets are placeholder values that keep showing up in deployed
// configs. Matched case-insensitively.
var weakSecrets = map[string]struct{}{
	"secret":                       {},
	"changeme":                     {},
	"change-me":                    {},
	"password":                     {},
	"development":                  {},
	"dev-secret":                   {},
	"test-secret":                  {},
	"insecure":                     {},
	"bidhouse-insecure-dev-secret": {},
}

// ValidateSecretStrength vets a signing secret named name, such as the CSRF
// or JWT secret from configuration. It rejects short secrets, known
// placeholder values, and secrets with so few distinct characters that the
// effective keyspace collapses ("aaaaaaaaaaaaaaaa").
func ValidateSecretStrength(name, secret string) error {
	if secret == "" {
		return fmt.Errorf("%s is required", name)
	}
	if len(secret) < MinSecretLength {
		return fmt.Errorf("%s must be at least %d characters, got %d", name, MinSecretLength, len(secret))
	}
	if _, found := weakSecrets[strings.ToLower(secret)]; found {
		return fmt.Errorf("%s uses a well-known placeholder value", name)
	}
	distinct := make(map[rune]struct{}, len(secret))
	for _, r := range secret {
		distinct[r] = struct{}{}
	}
	if len(distinct) < 6 {
		return fmt.Errorf("%s has too little variety to be a safe signing key", name)
	}
	return nil
}
