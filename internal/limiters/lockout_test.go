package limiters

import (
	"testing"
	"time"
)

func newTestLockout() *Lockout {
	return NewLockout(LockoutConfig{Enabled: true, Threshold: 5, Duration: 30 * time.Minute})
}

func TestLockoutLocksAtThreshold(t *testing.T) {
	l := newTestLockout()
	now := time.Unix(1_700_000_000, 0)

	var state LockoutState
	for i := 1; i <= 4; i++ {
		var locked bool
		state, locked = l.RecordFailure(state, now)
		if locked {
			t.Fatalf("locked after %d failures", i)
		}
		if state.FailedAttempts != i {
			t.Fatalf("expected %d attempts, got %d", i, state.FailedAttempts)
		}
	}

	state, locked := l.RecordFailure(state, now)
	if !locked {
		t.Fatal("expected lock on fifth failure")
	}
	if !state.LockedUntil.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("unexpected lockedUntil %v", state.LockedUntil)
	}

	isLocked, remaining := l.Locked(state, now.Add(10*time.Minute))
	if !isLocked || remaining != 20*time.Minute {
		t.Fatalf("expected 20m remaining, got locked=%v remaining=%v", isLocked, remaining)
	}
	if isLocked, _ := l.Locked(state, now.Add(30*time.Minute)); isLocked {
		t.Fatal("lock must lapse at lockedUntil")
	}
}

func TestLapsedLockRestartsCounting(t *testing.T) {
	l := newTestLockout()
	now := time.Unix(1_700_000_000, 0)
	state := LockoutState{FailedAttempts: 5, LockedUntil: now.Add(-time.Second)}

	next, locked := l.RecordFailure(state, now)
	if locked {
		t.Fatal("first failure after a lapsed lock must not relock")
	}
	if next.FailedAttempts != 1 || !next.LockedUntil.IsZero() {
		t.Fatalf("expected fresh window, got %+v", next)
	}
}

func TestDisabledLockoutIsInert(t *testing.T) {
	l := NewLockout(LockoutConfig{Enabled: false, Threshold: 1, Duration: time.Hour})
	state, locked := l.RecordFailure(LockoutState{}, time.Now())
	if locked || state.FailedAttempts != 0 {
		t.Fatalf("disabled lockout changed state: %+v", state)
	}
	if isLocked, _ := l.Locked(LockoutState{LockedUntil: time.Now().Add(time.Hour)}, time.Now()); isLocked {
		t.Fatal("disabled lockout must not block")
	}
}

func TestNeedsReset(t *testing.T) {
	l := newTestLockout()
	if l.NeedsReset(LockoutState{}) {
		t.Fatal("clean state needs no reset")
	}
	if !l.NeedsReset(LockoutState{FailedAttempts: 2}) {
		t.Fatal("counter must be reset after success")
	}
}
