package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/tokenauth/refresh"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const refreshColumns = `token_id, user_id, session_id, hashed_token, expires_at, is_revoked,
	device_id, ip_address, user_agent, created_at, last_used_at, parent_token_id, rotated_at`

// RefreshStore is a [refresh.Repository] on the refresh_tokens table.
type RefreshStore struct {
	db DB
}

var _ refresh.Repository = (*RefreshStore)(nil)

func NewRefreshStore(db DB) *RefreshStore {
	return &RefreshStore{db: db}
}

func (s *RefreshStore) Get(ctx context.Context, tokenID string) (refresh.Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+refreshColumns+` FROM refresh_tokens WHERE token_id = $1`, tokenID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return refresh.Record{}, refresh.ErrNotFound
		}
		return refresh.Record{}, fmt.Errorf("get refresh record: %w", err)
	}
	return rec, nil
}

func (s *RefreshStore) Put(ctx context.Context, r refresh.Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (`+refreshColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (token_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			session_id = EXCLUDED.session_id,
			hashed_token = EXCLUDED.hashed_token,
			expires_at = EXCLUDED.expires_at,
			is_revoked = EXCLUDED.is_revoked,
			device_id = EXCLUDED.device_id,
			ip_address = EXCLUDED.ip_address,
			user_agent = EXCLUDED.user_agent,
			created_at = EXCLUDED.created_at,
			last_used_at = EXCLUDED.last_used_at,
			parent_token_id = EXCLUDED.parent_token_id,
			rotated_at = EXCLUDED.rotated_at`,
		r.TokenID, r.UserID, r.SessionID, r.HashedToken, r.ExpiresAt, r.IsRevoked,
		r.DeviceID, r.IPAddress, r.UserAgent, r.CreatedAt, r.LastUsedAt, r.ParentTokenID, nullTime(r.RotatedAt),
	)
	if err != nil {
		return fmt.Errorf("put refresh record: %w", err)
	}
	return nil
}

func (s *RefreshStore) Delete(ctx context.Context, tokenID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_id = $1`, tokenID); err != nil {
		return fmt.Errorf("delete refresh record: %w", err)
	}
	return nil
}

func (s *RefreshStore) ListByUser(ctx context.Context, userID string) ([]refresh.Record, error) {
	rows, err := s.db.Query(ctx, `SELECT `+refreshColumns+` FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list refresh records: %w", err)
	}
	defer rows.Close()

	var out []refresh.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan refresh record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list refresh records: %w", err)
	}
	return out, nil
}

// Claim consumes the record in one conditional UPDATE. Postgres row locking
// lets exactly one of several concurrent rotating claims match.
func (s *RefreshStore) Claim(ctx context.Context, req refresh.ClaimRequest) (refresh.Record, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE refresh_tokens SET
			last_used_at = $3,
			is_revoked = is_revoked OR $4,
			rotated_at = CASE WHEN $4 THEN $3 ELSE rotated_at END
		WHERE token_id = $1
			AND hashed_token = $2
			AND NOT is_revoked
			AND expires_at > $3
		RETURNING `+refreshColumns,
		req.TokenID, req.HashedToken, req.Now, req.Rotate,
	)
	rec, err := scanRecord(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return refresh.Record{}, fmt.Errorf("claim refresh record: %w", err)
	}

	current, err := s.Get(ctx, req.TokenID)
	if err != nil {
		return refresh.Record{}, err
	}
	switch {
	case current.IsRevoked:
		return current, refresh.ErrRevoked
	case current.Expired(req.Now):
		return refresh.Record{}, refresh.ErrExpired
	case current.HashedToken != req.HashedToken:
		return refresh.Record{}, refresh.ErrHashMismatch
	default:
		// The row changed between the two statements. Reject without blame.
		return current, refresh.ErrRevoked
	}
}

func (s *RefreshStore) Revoke(ctx context.Context, tokenID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE refresh_tokens SET is_revoked = TRUE WHERE token_id = $1 AND NOT is_revoked`, tokenID)
	if err != nil {
		return false, fmt.Errorf("revoke refresh record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanRecord(row pgx.Row) (refresh.Record, error) {
	var (
		r         refresh.Record
		rotatedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&r.TokenID, &r.UserID, &r.SessionID, &r.HashedToken, &r.ExpiresAt, &r.IsRevoked,
		&r.DeviceID, &r.IPAddress, &r.UserAgent, &r.CreatedAt, &r.LastUsedAt, &r.ParentTokenID, &rotatedAt,
	)
	if err != nil {
		return refresh.Record{}, err
	}
	r.RotatedAt = fromNull(rotatedAt)
	return r, nil
}
