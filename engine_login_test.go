package tokenauth

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/MrEthical07/tokenauth/permission"
)

func TestLoginIssuesRoleScopedTokens(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	user := env.createAccount(t, "Buyer@Example.com", func(r *CreateAccountRequest) {
		r.Role = permission.RoleCustomer
		r.Permissions = []string{string(permission.QuotesWrite)}
	})

	res, err := env.engine.LoginUser(ctx, "  buyer@example.COM ", testPassword, DeviceInfo{DeviceID: "laptop"})
	if err != nil {
		t.Fatalf("LoginUser failed: %v", err)
	}
	if res.RequiresMFA || res.Tokens == nil {
		t.Fatalf("expected tokens, got %+v", res)
	}
	if res.User.ID != user.ID || res.User.Email != "buyer@example.com" || res.User.Role != "customer" {
		t.Fatalf("unexpected user summary: %+v", res.User)
	}

	claims, ok := env.engine.VerifyAccessToken(res.Tokens.AccessToken)
	if !ok {
		t.Fatal("expected access token to verify")
	}
	if claims.Role != "customer" || claims.DeviceID != "laptop" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !slices.Contains(claims.Permissions, string(permission.QuotesWrite)) {
		t.Fatalf("expected per-account grant in claims, got %v", claims.Permissions)
	}
	if !claims.HasPermission(permission.ProductsRead) {
		t.Fatal("customer role should read products")
	}
	if claims.HasPermission(permission.UsersManage) {
		t.Fatal("customer role must not manage users")
	}

	stored, _ := env.accounts.GetByID(ctx, user.ID)
	if stored.LastLoginAt.IsZero() {
		t.Fatal("expected LastLoginAt to be stamped")
	}
}

func TestLoginAdminHoldsEveryPermission(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.createAccount(t, "root@x.com", func(r *CreateAccountRequest) { r.Role = permission.RoleAdmin })

	pair := env.login(t, "root@x.com")
	claims, ok := env.engine.VerifyAccessToken(pair.AccessToken)
	if !ok {
		t.Fatal("expected access token to verify")
	}
	if !claims.HasPermission(permission.SettingsManage) || !claims.HasPermission(permission.UsersManage) {
		t.Fatalf("admin should hold every permission, got %v", claims.Permissions)
	}
}

func TestLoginUnknownEmailMatchesWrongPassword(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.createAccount(t, "a@x.com", nil)

	_, unknown := env.engine.LoginUser(ctx, "nobody@x.com", testPassword, DeviceInfo{})
	_, wrong := env.engine.LoginUser(ctx, "a@x.com", "Wrong1!xx", DeviceInfo{})

	if !errors.Is(unknown, ErrInvalidCredentials) || !errors.Is(wrong, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", unknown, wrong)
	}
	if unknown.Error() != wrong.Error() {
		t.Fatalf("messages must match: %q vs %q", unknown, wrong)
	}
}

func TestLoginValidatesInput(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
		field    string
	}{
		{"empty email", "", testPassword, "email"},
		{"malformed email", "not-an-email", testPassword, "email"},
		{"empty password", "a@x.com", "", "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.LoginUser(ctx, tc.email, tc.password, DeviceInfo{})
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, ve.Field)
			}
		})
	}
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	user := env.createAccount(t, "a@x.com", nil)

	for i := 0; i < 5; i++ {
		_, err := env.engine.LoginUser(ctx, "a@x.com", "Wrong1!xx", DeviceInfo{})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, DeviceInfo{})
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected *LockedError with the correct password, got %v", err)
	}
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatal("LockedError must match ErrAccountLocked")
	}
	if locked.RemainingMinutes() != 30 {
		t.Fatalf("expected 30 minutes remaining, got %d", locked.RemainingMinutes())
	}

	stored, _ := env.accounts.GetByID(ctx, user.ID)
	if stored.FailedLoginAttempts != 5 || stored.LockedUntil.IsZero() {
		t.Fatalf("expected persisted lockout, got attempts=%d until=%v", stored.FailedLoginAttempts, stored.LockedUntil)
	}

	env.clock.Advance(30*time.Minute + time.Second)
	if _, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, DeviceInfo{}); err != nil {
		t.Fatalf("expected login after the window, got %v", err)
	}
	stored, _ = env.accounts.GetByID(ctx, user.ID)
	if stored.FailedLoginAttempts != 0 || !stored.LockedUntil.IsZero() {
		t.Fatalf("expected counters cleared, got attempts=%d until=%v", stored.FailedLoginAttempts, stored.LockedUntil)
	}
}

func TestLoginLapsedLockRestartsCounting(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.createAccount(t, "a@x.com", nil)

	for i := 0; i < 5; i++ {
		_, _ = env.engine.LoginUser(ctx, "a@x.com", "Wrong1!xx", DeviceInfo{})
	}
	env.clock.Advance(31 * time.Minute)

	_, err := env.engine.LoginUser(ctx, "a@x.com", "Wrong1!xx", DeviceInfo{})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials after the window, got %v", err)
	}
	if _, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, DeviceInfo{}); err != nil {
		t.Fatalf("a single failure after the window must not relock, got %v", err)
	}
}

func TestUnlockAccountClearsLock(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	user := env.createAccount(t, "a@x.com", nil)

	for i := 0; i < 5; i++ {
		_, _ = env.engine.LoginUser(ctx, "a@x.com", "Wrong1!xx", DeviceInfo{})
	}
	if err := env.engine.UnlockAccount(ctx, user.ID); err != nil {
		t.Fatalf("UnlockAccount failed: %v", err)
	}
	if _, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, DeviceInfo{}); err != nil {
		t.Fatalf("expected login after unlock, got %v", err)
	}
	if err := env.engine.UnlockAccount(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestLoginRequiresVerifiedEmail(t *testing.T) {
	cfg := testConfig()
	cfg.Login.RequireEmailVerification = true
	env := newTestEnv(t, cfg)
	ctx := context.Background()
	env.createAccount(t, "a@x.com", func(r *CreateAccountRequest) { r.EmailVerified = false })

	if _, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, DeviceInfo{}); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}
	if _, err := env.engine.LoginUser(ctx, "a@x.com", "Wrong1!xx", DeviceInfo{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password must not reveal verification state, got %v", err)
	}

	relaxed := newTestEnv(t, testConfig())
	relaxed.createAccount(t, "b@x.com", func(r *CreateAccountRequest) { r.EmailVerified = false })
	relaxed.login(t, "b@x.com")
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	user := env.createAccount(t, "a@x.com", nil)

	inactive := false
	if _, err := env.accounts.Update(ctx, user.ID, AccountPatch{IsActive: &inactive}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, DeviceInfo{}); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
	if _, err := env.engine.LookupUser(ctx, user.ID); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled from LookupUser, got %v", err)
	}
}

func TestLoginWithMFAReturnsChallenge(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	user := env.createAccount(t, "a@x.com", func(r *CreateAccountRequest) { r.MFAEnabled = true })

	res, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, DeviceInfo{})
	if err != nil {
		t.Fatalf("LoginUser failed: %v", err)
	}
	if !res.RequiresMFA || res.Tokens != nil || res.MFAToken == "" {
		t.Fatalf("expected a pending-MFA result, got %+v", res)
	}
	if env.activeCount(t, user.ID) != 0 {
		t.Fatal("no refresh record may exist before the second factor")
	}
	if _, ok := env.engine.VerifyAccessToken(res.MFAToken); ok {
		t.Fatal("challenge token must not pass as an access token")
	}

	userID, err := env.engine.ParseMFAChallenge(res.MFAToken)
	if err != nil || userID != user.ID {
		t.Fatalf("ParseMFAChallenge: id=%q err=%v", userID, err)
	}

	env.clock.Advance(5*time.Minute + time.Second)
	if _, err := env.engine.ParseMFAChallenge(res.MFAToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestLoginRateLimitedByIP(t *testing.T) {
	limiter := &fakeLimiter{budget: 2}
	env := newTestEnv(t, testConfig(), func(b *Builder) { b.WithRateLimiter(limiter) })
	ctx := context.Background()
	env.createAccount(t, "a@x.com", nil)

	device := DeviceInfo{IPAddress: "198.51.100.4"}
	for i := 0; i < 2; i++ {
		if _, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, device); err != nil {
			t.Fatalf("login %d failed: %v", i+1, err)
		}
	}

	_, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, device)
	var rl *RateLimitedError
	if !errors.As(err, &rl) || !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected rate-limited error, got %v", err)
	}
	if rl.RetryAfter != time.Minute {
		t.Fatalf("expected retry hint, got %v", rl.RetryAfter)
	}

	if _, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, DeviceInfo{IPAddress: "198.51.100.5"}); err != nil {
		t.Fatalf("other IP must keep its own budget, got %v", err)
	}
}

func TestLoginLimiterFailureFailsClosed(t *testing.T) {
	limiter := &fakeLimiter{budget: 10, failErr: errors.New("redis down")}
	env := newTestEnv(t, testConfig(), func(b *Builder) { b.WithRateLimiter(limiter) })
	env.createAccount(t, "a@x.com", nil)

	_, err := env.engine.LoginUser(context.Background(), "a@x.com", testPassword, DeviceInfo{IPAddress: "198.51.100.4"})
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
}

func TestLoginReadsClientFromContext(t *testing.T) {
	env := newTestEnv(t, testConfig())
	user := env.createAccount(t, "a@x.com", nil)

	ctx := WithUserAgent(WithClientIP(context.Background(), "192.0.2.10"), "curl/8")
	res, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, DeviceInfo{})
	if err != nil {
		t.Fatalf("LoginUser failed: %v", err)
	}
	claims, _ := env.engine.VerifyAccessToken(res.Tokens.AccessToken)
	if claims.IPAddress != "192.0.2.10" || claims.UserAgent != "curl/8" {
		t.Fatalf("expected device from context, got %+v", claims)
	}

	sessions, _ := env.engine.ActiveSessions(context.Background(), user.ID)
	if len(sessions) != 1 || sessions[0].IPAddress != "192.0.2.10" {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestLoginThrottleKeysOnContextIP(t *testing.T) {
	limiter := &fakeLimiter{budget: 1}
	env := newTestEnv(t, testConfig(), func(b *Builder) { b.WithRateLimiter(limiter) })
	env.createAccount(t, "a@x.com", nil)

	ctx := WithClientIP(context.Background(), "192.0.2.10")
	if _, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, DeviceInfo{}); err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	if _, err := env.engine.LoginUser(ctx, "a@x.com", testPassword, DeviceInfo{}); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected the context IP to be throttled, got %v", err)
	}
}

func TestCreateAccountRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.createAccount(t, "a@x.com", nil)

	_, err := env.engine.CreateAccount(ctx, CreateAccountRequest{Email: "A@x.com", Password: testPassword})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	_, err = env.engine.CreateAccount(ctx, CreateAccountRequest{Email: "b@x.com", Password: "short"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "password" {
		t.Fatalf("expected password *ValidationError, got %v", err)
	}

	if _, err := ParseRole("overlord"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown role, got %v", err)
	}
}
