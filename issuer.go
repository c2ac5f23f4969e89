package tokenauth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/tokenauth/internal"
	"github.com/MrEthical07/tokenauth/jwt"
	"github.com/MrEthical07/tokenauth/refresh"
	"github.com/google/uuid"
)

// GenerateTokenPair mints an access/refresh pair for claims, persists the
// refresh record and prunes the user's excess and expired records. A
// missing SessionID is generated. Store failures are returned wrapped.
func (e *Engine) GenerateTokenPair(ctx context.Context, claims IdentityClaims) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}
	if claims.UserID == "" {
		return TokenPair{}, &ValidationError{Field: "userId", Reason: "is required"}
	}
	if claims.SessionID == "" {
		claims.SessionID = uuid.NewString()
	}

	pair, _, err := e.issue(ctx, claims, "")
	return pair, err
}

// issue signs both tokens under one fresh jti and stores the refresh record.
// parentID links a rotated successor to its predecessor.
func (e *Engine) issue(ctx context.Context, claims IdentityClaims, parentID string) (TokenPair, RefreshTokenRecord, error) {
	tokenID := uuid.NewString()
	now := e.clock()

	access := jwt.AccessClaims{
		UserID:      claims.UserID,
		Email:       claims.Email,
		Role:        claims.Role,
		Permissions: claims.Permissions,
		SessionID:   claims.SessionID,
		DeviceID:    claims.DeviceID,
		IPAddress:   claims.IPAddress,
		UserAgent:   claims.UserAgent,
	}
	access.ID = tokenID
	accessToken, err := e.accessCodec.SignAccess(access, e.config.Tokens.AccessTTL)
	if err != nil {
		return TokenPair{}, RefreshTokenRecord{}, fmt.Errorf("sign access token: %w", err)
	}

	rc := jwt.RefreshClaims{UserID: claims.UserID, SessionID: claims.SessionID}
	rc.ID = tokenID
	refreshToken, err := e.refreshCodec.SignRefresh(rc, e.config.Tokens.RefreshTTL)
	if err != nil {
		return TokenPair{}, RefreshTokenRecord{}, fmt.Errorf("sign refresh token: %w", err)
	}

	record := RefreshTokenRecord{
		TokenID:       tokenID,
		UserID:        claims.UserID,
		SessionID:     claims.SessionID,
		HashedToken:   internal.HashToken(refreshToken),
		ExpiresAt:     now.Add(e.config.Tokens.RefreshTTL),
		DeviceID:      claims.DeviceID,
		IPAddress:     claims.IPAddress,
		UserAgent:     claims.UserAgent,
		CreatedAt:     now,
		LastUsedAt:    now,
		ParentTokenID: parentID,
	}

	// Make room first so the new record is never the one evicted.
	e.prune(ctx, claims.UserID, "")

	if err := e.refreshTokens.Put(ctx, record); err != nil {
		return TokenPair{}, RefreshTokenRecord{}, fmt.Errorf("store refresh record: %w", err)
	}
	e.metricInc(MetricTokenIssued)

	// A concurrent issue for the same user may have landed between the
	// prune and the Put; trim back to the limit around the new record.
	e.prune(ctx, claims.UserID, tokenID)

	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresIn:        int64(e.config.Tokens.AccessTTL.Seconds()),
		RefreshExpiresIn: int64(e.config.Tokens.RefreshTTL.Seconds()),
	}, record, nil
}

// prune deletes the user's expired records and revokes the least recently
// used active ones. With keep empty it leaves room for one more record under
// MaxRefreshTokens; otherwise it trims to MaxRefreshTokens and never evicts
// keep. Failures are logged and skipped; the next issue retries.
func (e *Engine) prune(ctx context.Context, userID, keep string) {
	records, err := e.refreshTokens.ListByUser(ctx, userID)
	if err != nil {
		e.warn(ctx, "refresh prune: list failed", err, slog.String("user_id", userID))
		return
	}

	now := e.clock()
	active := make([]RefreshTokenRecord, 0, len(records))
	for _, r := range records {
		if r.Expired(now) {
			if err := e.refreshTokens.Delete(ctx, r.TokenID); err != nil {
				e.warn(ctx, "refresh prune: delete expired failed", err, slog.String("token_id", r.TokenID))
			}
			continue
		}
		if !r.IsRevoked {
			active = append(active, r)
		}
	}

	limit := e.config.Tokens.MaxRefreshTokens
	if keep == "" {
		limit--
	}
	if len(active) <= limit {
		return
	}

	refresh.SortLRU(active)
	evicted := 0
	for i := 0; i < len(active) && len(active)-i > limit; i++ {
		if active[i].TokenID == keep {
			limit--
			continue
		}
		changed, err := e.refreshTokens.Revoke(ctx, active[i].TokenID)
		if err != nil {
			e.warn(ctx, "refresh prune: evict failed", err, slog.String("token_id", active[i].TokenID))
			continue
		}
		if changed {
			evicted++
		}
	}
	e.metricAdd(MetricTokenEvicted, evicted)
}
