package refresh

import (
	"context"
	"errors"
	"sort"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for a token id.
	ErrNotFound = errors.New("refresh record not found")
	// ErrRevoked is returned by Claim for a record that is already revoked.
	// The record is returned alongside so callers can tell a rotated
	// record from one revoked by logout.
	ErrRevoked = errors.New("refresh record revoked")
	// ErrExpired is returned by Claim for a record past its expiry.
	ErrExpired = errors.New("refresh record expired")
	// ErrHashMismatch is returned by Claim when the presented token digest
	// differs from the stored one. The record is left untouched.
	ErrHashMismatch = errors.New("refresh hash mismatch")
)

// Record is the server-side state of one issued refresh token.
type Record struct {
	TokenID     string
	UserID      string
	SessionID   string
	HashedToken string
	ExpiresAt   time.Time
	IsRevoked   bool

	DeviceID  string
	IPAddress string
	UserAgent string

	CreatedAt     time.Time
	LastUsedAt    time.Time
	ParentTokenID string
	// RotatedAt is set when the record was retired by a successful rotation.
	RotatedAt time.Time
}

// Expired reports whether r is past its expiry at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Active reports whether r can still be exchanged at now.
func (r Record) Active(now time.Time) bool {
	return !r.IsRevoked && !r.Expired(now)
}

// Rotated reports whether r was retired by rotation.
func (r Record) Rotated() bool {
	return !r.RotatedAt.IsZero()
}

// ClaimRequest describes one atomic check-and-consume of a record.
type ClaimRequest struct {
	TokenID     string
	HashedToken string
	Now         time.Time
	// Rotate retires the record in the same step. When false, only
	// LastUsedAt is updated.
	Rotate bool
}

// Repository persists refresh records. Implementations must make Claim and
// Revoke atomic with respect to concurrent callers on the same token id.
type Repository interface {
	Get(ctx context.Context, tokenID string) (Record, error)
	Put(ctx context.Context, record Record) error
	Delete(ctx context.Context, tokenID string) error
	ListByUser(ctx context.Context, userID string) ([]Record, error)

	// Claim checks, in order, existence, revocation, expiry and the token
	// digest, then stamps LastUsedAt and, when req.Rotate is set, revokes the
	// record with RotatedAt. Exactly one concurrent Claim with Rotate set
	// can succeed for a token id.
	Claim(ctx context.Context, req ClaimRequest) (Record, error)

	// Revoke flips IsRevoked false to true. It reports whether this call
	// made the change; a missing or already revoked record is not an error.
	Revoke(ctx context.Context, tokenID string) (bool, error)
}

// SortLRU orders records least recently used first, breaking ties by
// creation time.
func SortLRU(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].LastUsedAt.Equal(records[j].LastUsedAt) {
			return records[i].LastUsedAt.Before(records[j].LastUsedAt)
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
