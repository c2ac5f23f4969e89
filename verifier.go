package tokenauth

import (
	"errors"
	"time"

	"github.com/MrEthical07/tokenauth/jwt"
)

// VerifyAccessToken checks token against the access secret, issuer,
// audience, algorithm and expiry. It reports false for any failure,
// including a valid signature over claims without a user or session id.
func (e *Engine) VerifyAccessToken(token string) (IdentityClaims, bool) {
	claims, err := e.ValidateAccessToken(token)
	return claims, err == nil
}

// ValidateAccessToken is VerifyAccessToken with the failure class:
// [ErrTokenExpired] for an otherwise valid token past its expiry and
// [ErrTokenInvalid] for everything else.
func (e *Engine) ValidateAccessToken(token string) (IdentityClaims, error) {
	if e == nil || e.accessCodec == nil {
		return IdentityClaims{}, ErrEngineNotReady
	}

	start := time.Now()
	parsed, err := e.accessCodec.ParseAccess(token)
	if e.metrics != nil {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return IdentityClaims{}, ErrTokenExpired
		}
		return IdentityClaims{}, ErrTokenInvalid
	}

	return IdentityClaims{
		UserID:      parsed.UserID,
		Email:       parsed.Email,
		Role:        parsed.Role,
		Permissions: parsed.Permissions,
		SessionID:   parsed.SessionID,
		DeviceID:    parsed.DeviceID,
		IPAddress:   parsed.IPAddress,
		UserAgent:   parsed.UserAgent,
	}, nil
}

// IsTokenExpired reads the exp claim of token without verifying it. A
// token that cannot be decoded or carries no exp counts as expired.
// The answer is untrusted and must not drive authorization.
func (e *Engine) IsTokenExpired(token string) bool {
	claims, err := jwt.DecodeUnverified(token)
	if err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	now := time.Now()
	if e != nil && e.now != nil {
		now = e.clock()
	}
	return !now.Before(exp.Time)
}

// DecodeWithoutVerification returns the payload of token for logging and
// diagnostics. The claims are untrusted.
func (e *Engine) DecodeWithoutVerification(token string) (map[string]any, error) {
	claims, err := jwt.DecodeUnverified(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	return map[string]any(claims), nil
}
