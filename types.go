package tokenauth

import (
	"context"
	"time"

	"github.com/MrEthical07/tokenauth/account"
	"github.com/MrEthical07/tokenauth/internal/rate"
	"github.com/MrEthical07/tokenauth/permission"
	"github.com/MrEthical07/tokenauth/refresh"
)

// IdentityClaims is the identity carried inside an access token.
// Permissions is an unordered set.
type IdentityClaims struct {
	UserID      string   `json:"userId"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	SessionID   string   `json:"sessionId"`
	DeviceID    string   `json:"deviceId,omitempty"`
	IPAddress   string   `json:"ipAddress,omitempty"`
	UserAgent   string   `json:"userAgent,omitempty"`
}

// HasPermission reports whether the claims grant perm. Admin claims
// satisfy every permission.
func (c IdentityClaims) HasPermission(perm permission.Permission) bool {
	bit, ok := permission.Bit(perm)
	if !ok {
		return false
	}
	mask := permission.MaskOf(c.Permissions)
	if role, err := permission.ParseRole(c.Role); err == nil && role == permission.RoleAdmin {
		mask = role.Mask()
	}
	return mask.Has(bit)
}

// TokenPair is one issued access/refresh pair. Lifetimes are in seconds.
type TokenPair struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresIn        int64  `json:"expiresIn"`
	RefreshExpiresIn int64  `json:"refreshExpiresIn"`
}

// DeviceInfo is the client snapshot stored with a refresh record.
type DeviceInfo struct {
	DeviceID  string `json:"deviceId,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// UserSummary is the account view returned to a logged-in client.
type UserSummary struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Name          string   `json:"name,omitempty"`
	Role          string   `json:"role"`
	Permissions   []string `json:"permissions"`
	EmailVerified bool     `json:"emailVerified"`
}

// LoginResult is the outcome of a successful credential check. Exactly one
// of Tokens and MFAToken is set.
type LoginResult struct {
	User        UserSummary `json:"user"`
	Tokens      *TokenPair  `json:"tokens,omitempty"`
	RequiresMFA bool        `json:"requiresMFA,omitempty"`
	MFAToken    string      `json:"mfaToken,omitempty"`
}

// CreateAccountRequest describes a new account. A zero Role means customer.
type CreateAccountRequest struct {
	Email         string
	Password      string
	Name          string
	Role          permission.Role
	Permissions   []string
	EmailVerified bool
	MFAEnabled    bool
}

// SessionInfo describes one active refresh record.
type SessionInfo struct {
	TokenID    string    `json:"tokenId"`
	SessionID  string    `json:"sessionId"`
	DeviceID   string    `json:"deviceId,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type (
	// Account is the stored user record.
	Account = account.Account
	// AccountPatch lists the account fields an update changes.
	AccountPatch = account.Patch
	// AccountRepository loads and patches accounts.
	AccountRepository = account.Repository
	// RefreshTokenRecord is the server-side state of one refresh token.
	RefreshTokenRecord = refresh.Record
	// RefreshTokenRepository persists refresh records.
	RefreshTokenRepository = refresh.Repository
	// RateLimitPolicy is a named fixed-window budget.
	RateLimitPolicy = rate.Policy
	// RateLimitDecision is the outcome of one rate-limit check.
	RateLimitDecision = rate.Decision
)

// PasswordHasher derives and checks password digests. Verify returns an
// error only for a malformed digest.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) (bool, error)
}

// RateLimiter consumes one unit of key's budget under policy.
type RateLimiter interface {
	Check(ctx context.Context, key string, policy RateLimitPolicy) (RateLimitDecision, error)
}

// DeviceBindingCheck reports whether device is consistent with the snapshot
// stored on record. Returning false revokes that one record.
type DeviceBindingCheck func(record RefreshTokenRecord, device DeviceInfo) bool

// PasswordResetNotifier delivers a raw reset token to the account owner.
// The engine never returns the token to the requester.
type PasswordResetNotifier interface {
	SendPasswordReset(ctx context.Context, acct Account, token string, expiresAt time.Time) error
}

// PasswordResetNotifierFunc adapts a function to PasswordResetNotifier.
type PasswordResetNotifierFunc func(ctx context.Context, acct Account, token string, expiresAt time.Time) error

func (f PasswordResetNotifierFunc) SendPasswordReset(ctx context.Context, acct Account, token string, expiresAt time.Time) error {
	return f(ctx, acct, token, expiresAt)
}
