package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrCorruptRecord is returned when a stored hash cannot be decoded.
var ErrCorruptRecord = errors.New("refresh record corrupt")

const (
	claimStatusNotFound int64 = 0
	claimStatusExpired  int64 = 1
	claimStatusMismatch int64 = 2
	claimStatusRevoked  int64 = 3
	claimStatusClaimed  int64 = 4
)

const (
	fieldTokenID    = "token_id"
	fieldUserID     = "user_id"
	fieldSessionID  = "session_id"
	fieldHash       = "hash"
	fieldExpiresAt  = "expires_at"
	fieldRevoked    = "revoked"
	fieldDeviceID   = "device_id"
	fieldIP         = "ip"
	fieldUserAgent  = "user_agent"
	fieldCreatedAt  = "created_at"
	fieldLastUsedAt = "last_used_at"
	fieldParentID   = "parent_id"
	fieldRotatedAt  = "rotated_at"
)

// KEYS[1] record key. ARGV[1] presented digest, ARGV[2] now (unix ms),
// ARGV[3] "1" to rotate.
const claimScript = `
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
  return {0}
end

local now = tonumber(ARGV[2])
if redis.call("HGET", key, "revoked") == "1" then
  return {3, redis.call("HGETALL", key)}
end

local expires = tonumber(redis.call("HGET", key, "expires_at") or "0")
if expires <= now then
  return {1}
end

if redis.call("HGET", key, "hash") ~= ARGV[1] then
  return {2}
end

if ARGV[3] == "1" then
  redis.call("HSET", key, "revoked", "1", "rotated_at", ARGV[2], "last_used_at", ARGV[2])
else
  redis.call("HSET", key, "last_used_at", ARGV[2])
end

return {4, redis.call("HGETALL", key)}
`

var claimLua = redis.NewScript(claimScript)

const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "revoked") == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1")
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// RedisStore is a Redis-backed Repository. Each record is a hash that
// expires with the token; a per-user set indexes token ids.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore]. prefix sets the key namespace.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ta"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(tokenID string) string {
	return s.prefix + ":rt:" + tokenID
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":rtu:" + userID
}

// Put writes record and indexes it under its user.
//
//	Performance: one MULTI/EXEC with HSET + PEXPIREAT + SADD.
func (s *RedisStore) Put(ctx context.Context, record Record) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(record.TokenID), encodeRecord(record))
		pipe.PExpireAt(ctx, s.key(record.TokenID), record.ExpiresAt)
		pipe.SAdd(ctx, s.userKey(record.UserID), record.TokenID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, tokenID string) (Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(tokenID)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}
	return decodeRecord(fields)
}

// Delete removes a record and its index entry. Missing records are a no-op.
func (s *RedisStore) Delete(ctx context.Context, tokenID string) error {
	userID, err := s.redis.HGet(ctx, s.key(tokenID), fieldUserID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(tokenID))
		pipe.SRem(ctx, s.userKey(userID), tokenID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ListByUser returns every stored record for userID. Index entries whose
// hash already expired out of Redis are dropped from the set.
//
//	Performance: SMEMBERS + one pipelined HGETALL per member.
func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]Record, 0, len(ids))
	stale := make([]interface{}, 0)
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if len(fields) == 0 {
			stale = append(stale, ids[i])
			continue
		}
		rec, err := decodeRecord(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, s.userKey(userID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return out, nil
}

// Claim runs the check-and-consume script.
//
//	Performance: 1 EVALSHA.
//	Security: the digest comparison and the revoke happen inside one script,
//	so two concurrent rotations of the same token cannot both succeed.
func (s *RedisStore) Claim(ctx context.Context, req ClaimRequest) (Record, error) {
	rotate := "0"
	if req.Rotate {
		rotate = "1"
	}

	res, err := claimLua.Run(ctx, s.redis,
		[]string{s.key(req.TokenID)},
		req.HashedToken,
		req.Now.UnixMilli(),
		rotate,
	).Slice()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) == 0 {
		return Record{}, ErrCorruptRecord
	}
	status, ok := res[0].(int64)
	if !ok {
		return Record{}, ErrCorruptRecord
	}

	switch status {
	case claimStatusNotFound:
		return Record{}, ErrNotFound
	case claimStatusExpired:
		return Record{}, ErrExpired
	case claimStatusMismatch:
		return Record{}, ErrHashMismatch
	case claimStatusRevoked, claimStatusClaimed:
		if len(res) < 2 {
			return Record{}, ErrCorruptRecord
		}
		rec, err := decodeReply(res[1])
		if err != nil {
			return Record{}, err
		}
		if status == claimStatusRevoked {
			return rec, ErrRevoked
		}
		return rec, nil
	default:
		return Record{}, ErrCorruptRecord
	}
}

func (s *RedisStore) Revoke(ctx context.Context, tokenID string) (bool, error) {
	n, err := revokeLua.Run(ctx, s.redis, []string{s.key(tokenID)}).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

func encodeRecord(r Record) map[string]interface{} {
	revoked := "0"
	if r.IsRevoked {
		revoked = "1"
	}
	return map[string]interface{}{
		fieldTokenID:    r.TokenID,
		fieldUserID:     r.UserID,
		fieldSessionID:  r.SessionID,
		fieldHash:       r.HashedToken,
		fieldExpiresAt:  millis(r.ExpiresAt),
		fieldRevoked:    revoked,
		fieldDeviceID:   r.DeviceID,
		fieldIP:         r.IPAddress,
		fieldUserAgent:  r.UserAgent,
		fieldCreatedAt:  millis(r.CreatedAt),
		fieldLastUsedAt: millis(r.LastUsedAt),
		fieldParentID:   r.ParentTokenID,
		fieldRotatedAt:  millis(r.RotatedAt),
	}
}

func decodeReply(v interface{}) (Record, error) {
	flat, ok := v.([]interface{})
	if !ok || len(flat)%2 != 0 {
		return Record{}, ErrCorruptRecord
	}
	fields := make(map[string]string, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		k, kok := flat[i].(string)
		val, vok := flat[i+1].(string)
		if !kok || !vok {
			return Record{}, ErrCorruptRecord
		}
		fields[k] = val
	}
	return decodeRecord(fields)
}

func decodeRecord(f map[string]string) (Record, error) {
	rec := Record{
		TokenID:       f[fieldTokenID],
		UserID:        f[fieldUserID],
		SessionID:     f[fieldSessionID],
		HashedToken:   f[fieldHash],
		IsRevoked:     f[fieldRevoked] == "1",
		DeviceID:      f[fieldDeviceID],
		IPAddress:     f[fieldIP],
		UserAgent:     f[fieldUserAgent],
		ParentTokenID: f[fieldParentID],
	}
	if rec.TokenID == "" || rec.UserID == "" {
		return Record{}, ErrCorruptRecord
	}

	var err error
	if rec.ExpiresAt, err = parseMillis(f[fieldExpiresAt]); err != nil {
		return Record{}, err
	}
	if rec.CreatedAt, err = parseMillis(f[fieldCreatedAt]); err != nil {
		return Record{}, err
	}
	if rec.LastUsedAt, err = parseMillis(f[fieldLastUsedAt]); err != nil {
		return Record{}, err
	}
	if rec.RotatedAt, err = parseMillis(f[fieldRotatedAt]); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Zero times are stored as "0" and read back as the zero time.
func millis(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) (time.Time, error) {
	if s == "" || s == "0" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, ErrCorruptRecord
	}
	return time.UnixMilli(ms), nil
}
