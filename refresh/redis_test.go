package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisStore(rdb, "test"), mr, rdb
}

func TestRedisStoreContract(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository {
		s, _, _ := newRedisStoreTest(t)
		return s
	})
}

func TestRedisStoreRecordExpiresWithToken(t *testing.T) {
	s, mr, _ := newRedisStoreTest(t)
	ctx := context.Background()
	now := time.Now()
	rec := testRecord("j1", "u1", now)
	rec.ExpiresAt = now.Add(2 * time.Second)
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	mr.FastForward(3 * time.Second)
	if _, err := s.Get(ctx, "j1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired hash to be gone, got %v", err)
	}

	list, err := s.ListByUser(ctx, "u1")
	if err != nil || len(list) != 0 {
		t.Fatalf("expected stale index entry to be dropped, got %d %v", len(list), err)
	}
	if mr.Exists("test:rtu:u1") {
		members, _ := mr.Members("test:rtu:u1")
		if len(members) != 0 {
			t.Fatalf("expected index set to be pruned, got %v", members)
		}
	}
}

func TestRedisStoreCorruptRecord(t *testing.T) {
	s, mr, _ := newRedisStoreTest(t)
	mr.HSet("test:rt:bad", "token_id", "bad", "user_id", "u1", "expires_at", "not-a-number")
	if _, err := s.Get(context.Background(), "bad"); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	s, mr, _ := newRedisStoreTest(t)
	mr.Close()
	ctx := context.Background()

	if err := s.Put(ctx, testRecord("j1", "u1", time.Now())); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := s.Claim(ctx, ClaimRequest{TokenID: "j1", HashedToken: "x", Now: time.Now()}); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
