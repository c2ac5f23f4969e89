package tokenauth

import (
	"errors"

	"github.com/MrEthical07/tokenauth/jwt"
	"github.com/google/uuid"
)

// issueChallenge signs the short-lived token that stands in for a login
// awaiting a second factor. It grants nothing by itself: access-token
// verification rejects it by type.
func (e *Engine) issueChallenge(userID string) (string, error) {
	claims := jwt.ChallengeClaims{UserID: userID}
	claims.ID = uuid.NewString()
	return e.accessCodec.SignChallenge(claims, e.config.MFA.ChallengeTTL)
}

// ParseMFAChallenge verifies a challenge token from a pending-MFA login and
// returns the user it was issued for. Checking the second factor itself is
// left to the caller.
func (e *Engine) ParseMFAChallenge(token string) (string, error) {
	if e == nil || e.accessCodec == nil {
		return "", ErrEngineNotReady
	}
	claims := &jwt.ChallengeClaims{}
	if err := e.accessCodec.Parse(token, claims); err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if claims.Type != jwt.TypeChallenge || claims.UserID == "" {
		return "", ErrTokenInvalid
	}
	return claims.UserID, nil
}
