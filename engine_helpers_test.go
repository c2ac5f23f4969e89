package tokenauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/tokenauth/account"
	"github.com/MrEthical07/tokenauth/permission"
	"github.com/MrEthical07/tokenauth/refresh"
)

const testPassword = "Correct1!"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testConfig keeps Argon2 at its floor so tests stay fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Tokens.AccessSecret = []byte("access-secret-for-tests-0123456789abcdef")
	cfg.Tokens.RefreshSecret = []byte("refresh-secret-for-tests-0123456789abcdef")
	cfg.Tokens.Issuer = "tokenauth-test"
	cfg.Tokens.Audience = "storefront"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type testEnv struct {
	engine   *Engine
	accounts *account.MemoryStore
	tokens   *refresh.MemoryStore
	clock    *testClock
}

func newTestEnv(t *testing.T, cfg Config, opts ...func(*Builder)) *testEnv {
	t.Helper()

	env := &testEnv{
		accounts: account.NewMemoryStore(),
		tokens:   refresh.NewMemoryStore(),
		clock:    newTestClock(),
	}

	b := New().
		WithConfig(cfg).
		WithAccounts(env.accounts).
		WithRefreshTokens(env.tokens).
		WithClock(env.clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func (env *testEnv) createAccount(t *testing.T, email string, mutate func(*CreateAccountRequest)) UserSummary {
	t.Helper()

	req := CreateAccountRequest{
		Email:         email,
		Password:      testPassword,
		Name:          "Test User",
		Role:          permission.RoleSales,
		EmailVerified: true,
	}
	if mutate != nil {
		mutate(&req)
	}
	user, err := env.engine.CreateAccount(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateAccount(%s) failed: %v", email, err)
	}
	return user
}

func (env *testEnv) login(t *testing.T, email string) TokenPair {
	t.Helper()

	res, err := env.engine.LoginUser(context.Background(), email, testPassword, DeviceInfo{IPAddress: "203.0.113.7"})
	if err != nil {
		t.Fatalf("LoginUser(%s) failed: %v", email, err)
	}
	if res.Tokens == nil {
		t.Fatalf("LoginUser(%s) returned no tokens", email)
	}
	return *res.Tokens
}

func (env *testEnv) activeCount(t *testing.T, userID string) int {
	t.Helper()

	records, err := env.tokens.ListByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	n := 0
	for _, r := range records {
		if r.Active(env.clock.Now()) {
			n++
		}
	}
	return n
}

type fakeLimiter struct {
	mu      sync.Mutex
	budget  int
	used    map[string]int
	failErr error
}

func (l *fakeLimiter) Check(_ context.Context, key string, policy RateLimitPolicy) (RateLimitDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return RateLimitDecision{}, l.failErr
	}
	if l.used == nil {
		l.used = make(map[string]int)
	}
	k := policy.Name + ":" + key
	l.used[k]++
	if l.used[k] > l.budget {
		return RateLimitDecision{Allowed: false, RetryAfter: time.Minute}, nil
	}
	return RateLimitDecision{Allowed: true}, nil
}
