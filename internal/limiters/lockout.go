package limiters

import "time"

// LockoutConfig holds the failed-login lockout thresholds.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Duration  time.Duration
}

// LockoutState is the per-account counter pair persisted on the account.
// A zero LockedUntil means the account is not locked.
type LockoutState struct {
	FailedAttempts int
	LockedUntil    time.Time
}

// Lockout applies lockout rules to account state. It holds no state of its
// own; callers load and persist LockoutState through their account store.
type Lockout struct {
	config LockoutConfig
}

// NewLockout creates a lockout rule set.
func NewLockout(cfg LockoutConfig) *Lockout {
	return &Lockout{config: cfg}
}

// Locked reports whether state blocks a login attempt at now and how long
// the block has left. An expired lock does not block.
func (l *Lockout) Locked(state LockoutState, now time.Time) (bool, time.Duration) {
	if l == nil || !l.config.Enabled || state.LockedUntil.IsZero() {
		return false, 0
	}
	if !now.Before(state.LockedUntil) {
		return false, 0
	}
	return true, state.LockedUntil.Sub(now)
}

// RecordFailure returns the state after one more failed password check.
// locked is true when this failure crossed the threshold.
func (l *Lockout) RecordFailure(state LockoutState, now time.Time) (next LockoutState, locked bool) {
	if l == nil || !l.config.Enabled {
		return state, false
	}

	// A lapsed lock starts a fresh counting window.
	if !state.LockedUntil.IsZero() && !now.Before(state.LockedUntil) {
		state = LockoutState{}
	}

	next = LockoutState{FailedAttempts: state.FailedAttempts + 1, LockedUntil: state.LockedUntil}
	if next.FailedAttempts >= l.config.Threshold {
		next.LockedUntil = now.Add(l.config.Duration)
		return next, true
	}
	return next, false
}

// NeedsReset reports whether a successful login must clear state.
func (l *Lockout) NeedsReset(state LockoutState) bool {
	return state.FailedAttempts > 0 || !state.LockedUntil.IsZero()
}
