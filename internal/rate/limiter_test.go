package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return New(rdb, "test"), mr
}

func TestCheckDeniesAfterLimitAndRecovers(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()
	policy := Policy{Name: "login", Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		d, err := l.Check(ctx, "10.0.0.1", policy)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}

	d, err := l.Check(ctx, "10.0.0.1", policy)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if d.Allowed {
		t.Fatal("fourth attempt should be denied")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("unexpected retryAfter %v", d.RetryAfter)
	}

	other, err := l.Check(ctx, "10.0.0.2", policy)
	if err != nil || !other.Allowed {
		t.Fatalf("other key must have its own window: %+v %v", other, err)
	}

	mr.FastForward(time.Minute + time.Second)
	d, err = l.Check(ctx, "10.0.0.1", policy)
	if err != nil || !d.Allowed {
		t.Fatalf("window should have reset: %+v %v", d, err)
	}
}

func TestResetClearsWindow(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	policy := Policy{Name: "password_reset", Limit: 1, Window: time.Hour}

	_, _ = l.Check(ctx, "k", policy)
	if d, _ := l.Check(ctx, "k", policy); d.Allowed {
		t.Fatal("expected denial")
	}
	if err := l.Reset(ctx, "k", policy); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if d, _ := l.Check(ctx, "k", policy); !d.Allowed {
		t.Fatal("expected allowance after reset")
	}
}

func TestDisabledPolicyAlwaysAllows(t *testing.T) {
	l, _ := newTestLimiter(t)
	d, err := l.Check(context.Background(), "k", Policy{Name: "off"})
	if err != nil || !d.Allowed {
		t.Fatalf("disabled policy must allow: %+v %v", d, err)
	}
}

func TestRedisFailureIsWrapped(t *testing.T) {
	l, mr := newTestLimiter(t)
	mr.Close()
	_, err := l.Check(context.Background(), "k", Policy{Name: "login", Limit: 1, Window: time.Minute})
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
