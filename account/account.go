// Package account holds the account model consumed by tokenauth and the
// repository contract used to load and patch it.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/tokenauth/permission"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrExists is returned by Create when the email is already registered.
	ErrExists = errors.New("account already exists")
)

// Account is a registered user. Zero time values mean "unset".
type Account struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	Role          permission.Role
	Permissions   []string
	IsActive      bool
	EmailVerified bool
	MFAEnabled    bool

	FailedLoginAttempts int
	LockedUntil         time.Time
	LastLoginAt         time.Time

	ResetTokenHash      string
	ResetTokenExpiresAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Patch lists the fields an update changes. Nil fields are left alone; a
// pointer to a zero time or empty string clears the field.
type Patch struct {
	PasswordHash        *string
	FailedLoginAttempts *int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time
	EmailVerified       *bool
	IsActive            *bool
	UpdatedAt           *time.Time
}

// Apply copies the set fields of p onto a.
func (p Patch) Apply(a *Account) {
	if p.PasswordHash != nil {
		a.PasswordHash = *p.PasswordHash
	}
	if p.FailedLoginAttempts != nil {
		a.FailedLoginAttempts = *p.FailedLoginAttempts
	}
	if p.LockedUntil != nil {
		a.LockedUntil = *p.LockedUntil
	}
	if p.LastLoginAt != nil {
		a.LastLoginAt = *p.LastLoginAt
	}
	if p.ResetTokenHash != nil {
		a.ResetTokenHash = *p.ResetTokenHash
	}
	if p.ResetTokenExpiresAt != nil {
		a.ResetTokenExpiresAt = *p.ResetTokenExpiresAt
	}
	if p.EmailVerified != nil {
		a.EmailVerified = *p.EmailVerified
	}
	if p.IsActive != nil {
		a.IsActive = *p.IsActive
	}
	if p.UpdatedAt != nil {
		a.UpdatedAt = *p.UpdatedAt
	}
}

// Repository loads and persists accounts.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (Account, error)
	GetByID(ctx context.Context, id string) (Account, error)
	Create(ctx context.Context, a Account) error
	Update(ctx context.Context, id string, patch Patch) (Account, error)
}

// NormalizeEmail lower-cases and trims an address for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
