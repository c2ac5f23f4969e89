package tokenauth

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password. Both cases produce the same error.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountLocked is returned while a lockout window is open. The
	// concrete error is a *LockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrEmailNotVerified is returned when login requires a verified email.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrAccountDisabled is returned for an inactive account.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrTokenInvalid covers malformed, forged, revoked, replayed and
	// incomplete tokens alike.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned by access-token validation past expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenTheftDetected classifies refresh-token reuse. It is never
	// returned to callers; they receive ErrTokenInvalid.
	ErrTokenTheftDetected = errors.New("refresh token theft detected")
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrConfiguration is wrapped by every error from Config.Validate and Build.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrLoginRateLimited is returned when the source IP exhausted its
	// login budget. The concrete error is a *RateLimitedError.
	ErrLoginRateLimited = errors.New("too many login attempts")
	// ErrPasswordResetRateLimited is the reset-request counterpart of
	// ErrLoginRateLimited.
	ErrPasswordResetRateLimited = errors.New("too many password reset requests")
	// ErrPasswordResetInvalid is returned for an unknown, mismatched or
	// expired reset token.
	ErrPasswordResetInvalid = errors.New("invalid or expired password reset token")
	// ErrPasswordReuse is returned when a new password equals the current one.
	ErrPasswordReuse = errors.New("new password must differ from the current password")
	// ErrUserNotFound is returned by administrative lookups. Login never
	// returns it; an unknown email there is ErrInvalidCredentials.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned by CreateAccount for a taken email.
	ErrAccountExists = errors.New("account already exists")
	// ErrInternal hides store and crypto failures from callers. The cause
	// is logged.
	ErrInternal = errors.New("internal error")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockedError reports how long a locked account stays locked.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minutes", e.RemainingMinutes())
}

func (e *LockedError) Unwrap() error {
	return ErrAccountLocked
}

// RemainingMinutes rounds Remaining up to whole minutes.
func (e *LockedError) RemainingMinutes() int {
	return int(math.Ceil(e.Remaining.Minutes()))
}

// RateLimitedError carries the throttle's retry hint.
type RateLimitedError struct {
	RetryAfter time.Duration
	err        error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s, retry after %ds", e.err.Error(), int(math.Ceil(e.RetryAfter.Seconds())))
}

func (e *RateLimitedError) Unwrap() error {
	return e.err
}

// ValidationError names the rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
