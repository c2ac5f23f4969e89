package tokenauth

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/MrEthical07/tokenauth/jwt"
	"github.com/MrEthical07/tokenauth/refresh"
)

// RevokeRefreshToken revokes the record tokenID. It reports whether this
// call made the change; unknown and already revoked ids are not errors.
func (e *Engine) RevokeRefreshToken(ctx context.Context, tokenID string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	changed, err := e.refreshTokens.Revoke(ctx, tokenID)
	if err != nil {
		return false, e.internalError(ctx, "revoke", err, slog.String("token_id", tokenID))
	}
	if changed {
		e.metricInc(MetricTokenRevoked)
	}
	return changed, nil
}

// RevokeAllUserTokens revokes every active record of userID and returns how
// many it revoked. Records expired or already revoked are left alone.
func (e *Engine) RevokeAllUserTokens(ctx context.Context, userID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	n, err := e.revokeAll(ctx, userID)
	if err != nil {
		return n, e.internalError(ctx, "revoke_all", err, slog.String("user_id", userID))
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(n)}
	})
	return n, nil
}

// LogoutUser revokes the record named by refreshToken. The token is decoded
// without verification only to read its jti: revoking an id the caller
// could not have used anyway changes nothing.
func (e *Engine) LogoutUser(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return &ValidationError{Field: "refreshToken", Reason: "is required"}
	}

	claims, err := jwt.DecodeUnverified(refreshToken)
	if err != nil {
		return ErrTokenInvalid
	}
	tokenID, _ := claims["jti"].(string)
	if tokenID == "" {
		return ErrTokenInvalid
	}
	userID, _ := claims["userId"].(string)
	sessionID, _ := claims["sessionId"].(string)

	if _, err := e.RevokeRefreshToken(ctx, tokenID); err != nil {
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, userID, sessionID, tokenID, nil, nil)
	return nil
}

// ActiveSessions lists the records of userID that can still be refreshed,
// most recently used first.
func (e *Engine) ActiveSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	records, err := e.refreshTokens.ListByUser(ctx, userID)
	if err != nil {
		return nil, e.internalError(ctx, "sessions.list", err, slog.String("user_id", userID))
	}

	now := e.clock()
	active := records[:0]
	for _, r := range records {
		if r.Active(now) {
			active = append(active, r)
		}
	}
	refresh.SortLRU(active)

	out := make([]SessionInfo, 0, len(active))
	for i := len(active) - 1; i >= 0; i-- {
		r := active[i]
		out = append(out, SessionInfo{
			TokenID:    r.TokenID,
			SessionID:  r.SessionID,
			DeviceID:   r.DeviceID,
			IPAddress:  r.IPAddress,
			UserAgent:  r.UserAgent,
			CreatedAt:  r.CreatedAt,
			LastUsedAt: r.LastUsedAt,
			ExpiresAt:  r.ExpiresAt,
		})
	}
	return out, nil
}

// revokeOne is best effort; the caller is already rejecting the request.
func (e *Engine) revokeOne(ctx context.Context, tokenID string) {
	changed, err := e.refreshTokens.Revoke(ctx, tokenID)
	if err != nil {
		e.warn(ctx, "revoke failed", err, slog.String("token_id", tokenID))
		return
	}
	if changed {
		e.metricInc(MetricTokenRevoked)
	}
}

// revokeAll keeps going past individual failures and returns the first one.
func (e *Engine) revokeAll(ctx context.Context, userID string) (int, error) {
	records, err := e.refreshTokens.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	var (
		revoked  int
		firstErr error
		now      = e.clock()
	)
	for _, r := range records {
		if !r.Active(now) {
			continue
		}
		changed, err := e.refreshTokens.Revoke(ctx, r.TokenID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if changed {
			revoked++
		}
	}
	e.metricAdd(MetricTokenRevoked, revoked)
	return revoked, firstErr
}
