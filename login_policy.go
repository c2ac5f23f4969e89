package tokenauth

import (
	"context"
	"time"

	"github.com/MrEthical07/tokenauth/internal/limiters"
)

func lockoutState(acct Account) limiters.LockoutState {
	return limiters.LockoutState{
		FailedAttempts: acct.FailedLoginAttempts,
		LockedUntil:    acct.LockedUntil,
	}
}

// checkLock returns a *LockedError while acct is inside its lockout window.
// It reads nothing but the lockout fields.
func (e *Engine) checkLock(acct Account, now time.Time) error {
	if locked, remaining := e.lockout.Locked(lockoutState(acct), now); locked {
		return &LockedError{Remaining: remaining}
	}
	return nil
}

// recordFailure persists one more failed password check and reports
// whether it locked the account.
func (e *Engine) recordFailure(ctx context.Context, acct Account, now time.Time) (bool, error) {
	next, locked := e.lockout.RecordFailure(lockoutState(acct), now)
	_, err := e.accounts.Update(ctx, acct.ID, AccountPatch{
		FailedLoginAttempts: &next.FailedAttempts,
		LockedUntil:         &next.LockedUntil,
		UpdatedAt:           &now,
	})
	return locked, err
}

// resetLockout clears the counters if they are set.
func (e *Engine) resetLockout(ctx context.Context, acct Account, now time.Time) error {
	if !e.lockout.NeedsReset(lockoutState(acct)) {
		return nil
	}
	zero := 0
	var never time.Time
	_, err := e.accounts.Update(ctx, acct.ID, AccountPatch{
		FailedLoginAttempts: &zero,
		LockedUntil:         &never,
		UpdatedAt:           &now,
	})
	return err
}
