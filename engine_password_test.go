package tokenauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type captureNotifier struct {
	mu      sync.Mutex
	tokens  map[string]string
	expires time.Time
	err     error
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, acct Account, token string, expiresAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tokens == nil {
		n.tokens = make(map[string]string)
	}
	n.tokens[acct.Email] = token
	n.expires = expiresAt
	return n.err
}

func (n *captureNotifier) token(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens[email]
}

func TestChangePasswordRevokesAllSessions(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	user := env.createAccount(t, "a@x.com", nil)

	pairs := []TokenPair{env.login(t, "a@x.com"), env.login(t, "a@x.com")}

	if err := env.engine.ChangePassword(ctx, user.ID, testPassword, "Fresh2@pass"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if n := env.activeCount(t, user.ID); n != 0 {
		t.Fatalf("expected every session revoked, %d active", n)
	}
	for i, p := range pairs {
		if _, err := env.engine.RefreshAuthTokens(ctx, p.RefreshToken, DeviceInfo{}); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("pair %d: expected ErrTokenInvalid, got %v", i, err)
		}
	}

	if _, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, DeviceInfo{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := env.engine.LoginUser(ctx, "a@x.com", "Fresh2@pass", DeviceInfo{}); err != nil {
		t.Fatalf("new password must work, got %v", err)
	}
}

func TestChangePasswordRejections(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	user := env.createAccount(t, "a@x.com", nil)
	env.login(t, "a@x.com")

	if err := env.engine.ChangePassword(ctx, user.ID, "Wrong1!xx", "Fresh2@pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current: expected ErrInvalidCredentials, got %v", err)
	}
	if err := env.engine.ChangePassword(ctx, user.ID, testPassword, testPassword); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("same password: expected ErrPasswordReuse, got %v", err)
	}
	var ve *ValidationError
	if err := env.engine.ChangePassword(ctx, user.ID, testPassword, "alllowercase"); !errors.As(err, &ve) || ve.Field != "newPassword" {
		t.Fatalf("weak password: expected newPassword *ValidationError, got %v", err)
	}
	if err := env.engine.ChangePassword(ctx, "missing", testPassword, "Fresh2@pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %v", err)
	}

	if n := env.activeCount(t, user.ID); n != 1 {
		t.Fatalf("failed changes must not revoke sessions, %d active", n)
	}
}

func TestChangePasswordWrongCurrentCountsTowardLockout(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	user := env.createAccount(t, "a@x.com", nil)

	if err := env.engine.ChangePassword(ctx, user.ID, "Wrong1!xx", "Fresh2@pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	stored, _ := env.accounts.GetByID(ctx, user.ID)
	if stored.FailedLoginAttempts != 1 {
		t.Fatalf("expected one counted failure, got %d", stored.FailedLoginAttempts)
	}

	for i := 0; i < 4; i++ {
		if err := env.engine.ChangePassword(ctx, user.ID, "Wrong1!xx", "Fresh2@pass"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+2, err)
		}
	}

	var locked *LockedError
	if err := env.engine.ChangePassword(ctx, user.ID, testPassword, "Fresh2@pass"); !errors.As(err, &locked) {
		t.Fatalf("expected *LockedError with the right password while locked, got %v", err)
	}
	if _, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, DeviceInfo{}); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected login to share the lock, got %v", err)
	}

	env.clock.Advance(30*time.Minute + time.Second)
	if err := env.engine.ChangePassword(ctx, user.ID, testPassword, "Fresh2@pass"); err != nil {
		t.Fatalf("ChangePassword after the window failed: %v", err)
	}
	stored, _ = env.accounts.GetByID(ctx, user.ID)
	if stored.FailedLoginAttempts != 0 || !stored.LockedUntil.IsZero() {
		t.Fatalf("expected counters cleared, got attempts=%d lockedUntil=%v", stored.FailedLoginAttempts, stored.LockedUntil)
	}
}

func TestPasswordResetRoundTrip(t *testing.T) {
	notifier := &captureNotifier{}
	env := newTestEnv(t, testConfig(), func(b *Builder) { b.WithPasswordResetNotifier(notifier) })
	ctx := context.Background()
	user := env.createAccount(t, "a@x.com", nil)
	env.login(t, "a@x.com")

	for i := 0; i < 5; i++ {
		_, _ = env.engine.LoginUser(ctx, "a@x.com", "Wrong1!xx", DeviceInfo{})
	}

	if err := env.engine.RequestPasswordReset(ctx, "A@X.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	token := notifier.token("a@x.com")
	if token == "" {
		t.Fatal("expected notifier to receive a token")
	}
	if !notifier.expires.Equal(env.clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %v", notifier.expires)
	}

	stored, _ := env.accounts.GetByID(ctx, user.ID)
	if stored.ResetTokenHash == "" || stored.ResetTokenHash == token {
		t.Fatal("only the digest of the reset token may be stored")
	}

	if err := env.engine.ConfirmPasswordReset(ctx, "a@x.com", token, "Reset3#word"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}
	if n := env.activeCount(t, user.ID); n != 0 {
		t.Fatalf("expected sessions revoked after reset, %d active", n)
	}
	if _, err := env.engine.LoginUser(ctx, "a@x.com", "Reset3#word", DeviceInfo{}); err != nil {
		t.Fatalf("reset must also clear the lockout, got %v", err)
	}

	if err := env.engine.ConfirmPasswordReset(ctx, "a@x.com", token, "Other4$word"); !errors.Is(err, ErrPasswordResetInvalid) {
		t.Fatalf("token must be single use, got %v", err)
	}
}

func TestPasswordResetTokenExpires(t *testing.T) {
	notifier := &captureNotifier{}
	env := newTestEnv(t, testConfig(), func(b *Builder) { b.WithPasswordResetNotifier(notifier) })
	ctx := context.Background()
	env.createAccount(t, "a@x.com", nil)

	if err := env.engine.RequestPasswordReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	env.clock.Advance(time.Hour)

	if err := env.engine.ConfirmPasswordReset(ctx, "a@x.com", notifier.token("a@x.com"), "Reset3#word"); !errors.Is(err, ErrPasswordResetInvalid) {
		t.Fatalf("expected ErrPasswordResetInvalid, got %v", err)
	}
	if err := env.engine.ConfirmPasswordReset(ctx, "a@x.com", "forged", "Reset3#word"); !errors.Is(err, ErrPasswordResetInvalid) {
		t.Fatalf("expected ErrPasswordResetInvalid for forged token, got %v", err)
	}
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	notifier := &captureNotifier{}
	env := newTestEnv(t, testConfig(), func(b *Builder) { b.WithPasswordResetNotifier(notifier) })

	if err := env.engine.RequestPasswordReset(context.Background(), "ghost@x.com"); err != nil {
		t.Fatalf("expected nil for unknown email, got %v", err)
	}
	if notifier.token("ghost@x.com") != "" {
		t.Fatal("no token may be sent for an unknown email")
	}
}

func TestPasswordResetNotifierFailureIsNotSurfaced(t *testing.T) {
	notifier := &captureNotifier{err: errors.New("smtp unavailable")}
	env := newTestEnv(t, testConfig(), func(b *Builder) { b.WithPasswordResetNotifier(notifier) })
	env.createAccount(t, "a@x.com", nil)

	if err := env.engine.RequestPasswordReset(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("expected delivery failure to be logged only, got %v", err)
	}
}

func TestPasswordResetRateLimited(t *testing.T) {
	limiter := &fakeLimiter{budget: 1}
	env := newTestEnv(t, testConfig(), func(b *Builder) { b.WithRateLimiter(limiter) })
	ctx := WithClientIP(context.Background(), "198.51.100.9")

	if err := env.engine.RequestPasswordReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := env.engine.RequestPasswordReset(ctx, "a@x.com"); !errors.Is(err, ErrPasswordResetRateLimited) {
		t.Fatalf("expected ErrPasswordResetRateLimited, got %v", err)
	}
}
