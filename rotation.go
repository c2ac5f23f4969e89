package tokenauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/tokenauth/account"
	"github.com/MrEthical07/tokenauth/internal"
	"github.com/MrEthical07/tokenauth/refresh"
)

// RefreshAuthTokens exchanges a refresh token for a new pair. It is the
// request-facing form of [Engine.RefreshTokenPair]: empty input is a
// validation error and empty device fields fall back to the request context.
func (e *Engine) RefreshAuthTokens(ctx context.Context, refreshToken string, device DeviceInfo) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, &ValidationError{Field: "refreshToken", Reason: "is required"}
	}
	if device.IPAddress == "" {
		device.IPAddress = clientIPFromContext(ctx)
	}
	if device.UserAgent == "" {
		device.UserAgent = userAgentFromContext(ctx)
	}
	return e.RefreshTokenPair(ctx, refreshToken, &device)
}

// RefreshTokenPair validates presented, detects reuse and, with rotation
// enabled, retires it in favour of a successor pair.
//
// The record is first claimed without retiring it, so a rejection by device
// binding or the account checks leaves it plainly revoked rather than
// rotated. Retirement is a second conditional claim taken only once the
// successor may be issued.
//
// Every rejection returns [ErrTokenInvalid] so callers cannot tell an
// expired token from a revoked or stolen one. Store failures return
// [ErrInternal]. When the presented record was retired but the successor
// could not be stored, the record is left revoked without a rotation mark
// and the caller must log in again.
func (e *Engine) RefreshTokenPair(ctx context.Context, presented string, device *DeviceInfo) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}

	claims, err := e.refreshCodec.ParseRefresh(presented)
	if err != nil {
		return TokenPair{}, e.rejectRefresh(ctx, "", "", ErrTokenInvalid)
	}
	hashed := internal.HashToken(presented)

	record, err := e.claimRefresh(ctx, claims.UserID, claims.ID, hashed, false)
	if err != nil {
		return TokenPair{}, err
	}

	// The jti alone selected the record; a token signed for another user
	// with a colliding id is not this record's owner.
	if record.UserID != claims.UserID {
		return TokenPair{}, e.handleTheft(ctx, record.UserID, record.TokenID, "user_mismatch")
	}

	if device != nil && e.deviceCheck != nil && !e.deviceCheck(record, *device) {
		e.revokeOne(ctx, record.TokenID)
		e.metricInc(MetricDeviceRejected)
		e.emitAudit(ctx, auditEventDeviceBindingRejected, false, record.UserID, record.SessionID, record.TokenID, errDeviceRejected, nil)
		return TokenPair{}, e.rejectRefresh(ctx, record.UserID, record.TokenID, ErrTokenInvalid)
	}

	acct, err := e.accounts.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			e.revokeOne(ctx, record.TokenID)
			return TokenPair{}, e.rejectRefresh(ctx, record.UserID, record.TokenID, ErrTokenInvalid)
		}
		e.metricInc(MetricRefreshFailure)
		return TokenPair{}, e.internalError(ctx, "refresh.account", err, slog.String("user_id", record.UserID))
	}
	if !acct.IsActive {
		e.revokeOne(ctx, record.TokenID)
		return TokenPair{}, e.rejectRefresh(ctx, record.UserID, record.TokenID, ErrAccountDisabled)
	}

	parentID := ""
	if e.config.Tokens.EnableRotation {
		// Exactly one concurrent caller gets past this claim.
		record, err = e.claimRefresh(ctx, claims.UserID, claims.ID, hashed, true)
		if err != nil {
			return TokenPair{}, err
		}
		parentID = record.TokenID
	}
	pair, successor, err := e.issue(ctx, claimsFor(acct, record.SessionID, DeviceInfo{
		DeviceID:  record.DeviceID,
		IPAddress: record.IPAddress,
		UserAgent: record.UserAgent,
	}), parentID)
	if err != nil {
		if parentID != "" {
			e.unmarkRotated(ctx, record)
		}
		e.metricInc(MetricRefreshFailure)
		return TokenPair{}, e.internalError(ctx, "refresh.issue", err,
			slog.String("user_id", record.UserID),
			slog.String("parent_token_id", record.TokenID),
		)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, record.UserID, record.SessionID, successor.TokenID, nil, func() map[string]string {
		return map[string]string{"parent_token_id": record.TokenID}
	})
	return pair, nil
}

// claimRefresh runs one Claim and turns its rejections into the caller's
// result. A rotated record that is presented again, either replayed later or
// raced by a concurrent exchange, is theft.
func (e *Engine) claimRefresh(ctx context.Context, userID, tokenID, hashed string, rotate bool) (RefreshTokenRecord, error) {
	record, err := e.refreshTokens.Claim(ctx, refresh.ClaimRequest{
		TokenID:     tokenID,
		HashedToken: hashed,
		Now:         e.clock(),
		Rotate:      rotate,
	})
	switch {
	case err == nil:
		return record, nil
	case errors.Is(err, refresh.ErrHashMismatch):
		return record, e.handleTheft(ctx, userID, tokenID, "hash_mismatch")
	case errors.Is(err, refresh.ErrRevoked) && record.Rotated():
		return record, e.handleTheft(ctx, record.UserID, tokenID, "rotated_token_replayed")
	case errors.Is(err, refresh.ErrNotFound), errors.Is(err, refresh.ErrRevoked), errors.Is(err, refresh.ErrExpired):
		return record, e.rejectRefresh(ctx, userID, tokenID, ErrTokenInvalid)
	default:
		e.metricInc(MetricRefreshFailure)
		return record, e.internalError(ctx, "refresh.claim", err, slog.String("token_id", tokenID))
	}
}

// unmarkRotated rewrites a retired record whose successor was never stored
// as plainly revoked, so presenting it again is a rejection and not theft.
func (e *Engine) unmarkRotated(ctx context.Context, record RefreshTokenRecord) {
	record.IsRevoked = true
	record.RotatedAt = time.Time{}
	if err := e.refreshTokens.Put(ctx, record); err != nil {
		e.warn(ctx, "clearing rotation mark failed", err, slog.String("token_id", record.TokenID))
	}
}

// rejectRefresh records a failed refresh and returns the opaque rejection.
// cause only feeds the audit event.
func (e *Engine) rejectRefresh(ctx context.Context, userID, tokenID string, cause error) error {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, "", tokenID, cause, nil)
	return ErrTokenInvalid
}

// handleTheft revokes every active record of userID after a replayed or
// forged refresh token was presented.
func (e *Engine) handleTheft(ctx context.Context, userID, tokenID, reason string) error {
	revoked, err := e.revokeAll(ctx, userID)
	if err != nil {
		e.warn(ctx, "theft containment incomplete", err, slog.String("user_id", userID))
	}

	e.metricInc(MetricRefreshReuseDetected)
	e.metricInc(MetricRefreshFailure)
	e.logger.LogAttrs(ctx, slog.LevelError, "refresh token theft detected",
		slog.String("user_id", userID),
		slog.String("token_id", tokenID),
		slog.String("reason", reason),
		slog.Int("revoked", revoked),
	)
	e.emitAudit(ctx, auditEventRefreshReuseDetected, false, userID, "", tokenID, ErrTokenTheftDetected, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ErrTokenInvalid
}
