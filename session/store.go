// Package session stores refresh-token sessions in Redis.
//
// Layout: one JSON blob per session under asn:<sid> with a Redis TTL, plus a
// per-account ZSET asa:<accountID> scored by last-used time. The ZSET gives
// cheap "list my sessions", a least-recently-used eviction order when an
// account hits its session cap, and a bulk-revoke target.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable indicates the session backend is unreachable.
	ErrRedisUnavailable = errors.New("session backend unavailable")
	// ErrNotFound is returned when a session id resolves to nothing.
	ErrNotFound = errors.New("session not found")
	// ErrSessionCorrupt marks a stored blob that cannot be decoded.
	ErrSessionCorrupt = errors.New("session record corrupt")
	// ErrFingerprintMismatch is returned by Rotate when the presented
	// refresh token is not the session's current one.
	ErrFingerprintMismatch = errors.New("refresh fingerprint mismatch")
	// ErrExpired is returned by Rotate for a session past its expiry.
	ErrExpired = errors.New("session expired")
)

const (
	blobPrefix  = "asn:"
	indexPrefix = "asa:"
)

const (
	rotateStatusNotFound    int64 = 0
	rotateStatusExpired     int64 = 1
	rotateStatusMismatch    int64 = 2
	rotateStatusRotated     int64 = 3
	rotateStatusInvalidBlob int64 = 4
)

// createScript writes the session blob, indexes it, and evicts the
// least-recently-used sessions above the cap. Returns the evicted ids.
//
// KEYS: blob key, index key. ARGV: sid, blob, ttl_ms, now_ms, cap, blob prefix.
var createScript = redis.NewScript(`
redis.call("SET", KEYS[1], ARGV[2], "PX", tonumber(ARGV[3]))
redis.call("ZADD", KEYS[2], tonumber(ARGV[4]), ARGV[1])

local cap = tonumber(ARGV[5])
local evicted = {}
local n = redis.call("ZCARD", KEYS[2])
if cap > 0 and n > cap then
  local victims = redis.call("ZRANGE", KEYS[2], 0, n - cap - 1)
  for _, sid in ipairs(victims) do
    redis.call("ZREM", KEYS[2], sid)
    redis.call("DEL", ARGV[6] .. sid)
    evicted[#evicted + 1] = sid
  end
end
return evicted
`)

// rotateScript compares the stored fingerprint against the presented one and
// swaps in the new fingerprint only on match. Exactly one concurrent caller
// can win; everyone else observes a mismatch.
//
// KEYS: blob key, index key. ARGV: sid, old fp, new fp, ttl_ms, now_ms.
var rotateScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
  redis.call("ZREM", KEYS[2], ARGV[1])
  return 0
end

local ok, s = pcall(cjson.decode, raw)
if not ok or type(s) ~= "table" or not s.fp then
  return 4
end

local now = tonumber(ARGV[5])
if s.exp and s.exp <= now then
  redis.call("DEL", KEYS[1])
  redis.call("ZREM", KEYS[2], ARGV[1])
  return 1
end

if s.fp ~= ARGV[2] then
  return 2
end

s.fp = ARGV[3]
s.lu = now
s.exp = now + tonumber(ARGV[4])
redis.call("SET", KEYS[1], cjson.encode(s), "PX", tonumber(ARGV[4]))
redis.call("ZADD", KEYS[2], now, ARGV[1])
return 3
`)

// deleteScript removes the blob and its index entry together.
// KEYS: blob key, index key. ARGV: sid.
var deleteScript = redis.NewScript(`
local existed = redis.call("EXISTS", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`)

// Config holds the session store policy.
type Config struct {
	// TTL is the session lifetime, refreshed on each rotation.
	TTL time.Duration
	// MaxPerAccount caps concurrent sessions per account; the oldest by
	// last use is evicted when a login would exceed it. Zero disables the cap.
	MaxPerAccount int
}

// Store persists sessions. Safe for concurrent use.
type Store struct {
	redis  redis.UniversalClient
	config Config
}

// NewStore validates cfg and returns a Store.
func NewStore(redisClient redis.UniversalClient, cfg Config) (*Store, error) {
	if redisClient == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.TTL < time.Second {
		return nil, errors.New("session TTL must be at least one second")
	}
	if cfg.MaxPerAccount < 0 {
		return nil, errors.New("session cap must not be negative")
	}
	return &Store{redis: redisClient, config: cfg}, nil
}

func blobKey(sid string) string        { return blobPrefix + sid }
func indexKey(accountID string) string { return indexPrefix + accountID }

// Create persists a new session and returns the ids of any sessions evicted
// to stay under the per-account cap. Login is never refused for a full
// account; the least recently used session yields instead.
func (s *Store) Create(ctx context.Context, sess Session) ([]string, error) {
	if sess.ID == "" || sess.AccountID == "" || sess.RefreshFingerprint == "" {
		return nil, errors.New("session id, account id, and fingerprint are required")
	}

	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastUsedAt.IsZero() {
		sess.LastUsedAt = sess.CreatedAt
	}
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = now.Add(s.config.TTL)
	}

	raw, err := encodeSession(sess)
	if err != nil {
		return nil, err
	}

	evicted, err := createScript.Run(ctx, s.redis,
		[]string{blobKey(sess.ID), indexKey(sess.AccountID)},
		sess.ID, raw, s.config.TTL.Milliseconds(), sess.LastUsedAt.UnixMilli(),
		s.config.MaxPerAccount, blobPrefix,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return evicted, nil
}

// Get loads one session.
func (s *Store) Get(ctx context.Context, sid string) (Session, error) {
	raw, err := s.redis.Get(ctx, blobKey(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodeSession(raw)
}

// Rotate atomically replaces the session's refresh fingerprint. oldFP must
// match the stored fingerprint; on match the session's expiry slides forward
// by the configured TTL. A mismatch leaves the session untouched and returns
// ErrFingerprintMismatch so the caller can treat it as token reuse. Exactly
// one of two concurrent rotations with the same oldFP succeeds.
func (s *Store) Rotate(ctx context.Context, accountID, sid, oldFP, newFP string) error {
	status, err := rotateScript.Run(ctx, s.redis,
		[]string{blobKey(sid), indexKey(accountID)},
		sid, oldFP, newFP, s.config.TTL.Milliseconds(), time.Now().UnixMilli(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound:
		return ErrNotFound
	case rotateStatusExpired:
		return ErrExpired
	case rotateStatusMismatch:
		return ErrFingerprintMismatch
	case rotateStatusInvalidBlob:
		return ErrSessionCorrupt
	default:
		return fmt.Errorf("%w: unexpected rotate status %d", ErrRedisUnavailable, status)
	}
}

// Touch bumps the session's last-used time in the index. Blob contents are
// left alone; the index score is what session listings and LRU eviction
// order on.
func (s *Store) Touch(ctx context.Context, accountID, sid string) error {
	err := s.redis.ZAdd(ctx, indexKey(accountID), redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: sid,
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Delete revokes one session. Deleting an absent session is not an error;
// revocation is idempotent.
func (s *Store) Delete(ctx context.Context, accountID, sid string) error {
	err := deleteScript.Run(ctx, s.redis,
		[]string{blobKey(sid), indexKey(accountID)}, sid,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAll revokes every session of the account and returns how many live
// sessions were removed.
func (s *Store) DeleteAll(ctx context.Context, accountID string) (int, error) {
	sids, err := s.redis.ZRange(ctx, indexKey(accountID), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(sids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(sids))
	for i, sid := range sids {
		keys[i] = blobKey(sid)
	}

	var removed *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, keys...)
		pipe.Del(ctx, indexKey(accountID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(removed.Val()), nil
}

// List returns the account's live sessions, most recently used first. Index
// entries whose blob has expired are pruned as a side effect.
func (s *Store) List(ctx context.Context, accountID string) ([]Session, error) {
	sids, err := s.redis.ZRevRange(ctx, indexKey(accountID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]Session, 0, len(sids))
	var stale []any
	for _, sid := range sids {
		sess, err := s.Get(ctx, sid)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, sid)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		if err := s.redis.ZRem(ctx, indexKey(accountID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return sessions, nil
}

// Count returns the number of indexed sessions for the account. The count
// may briefly include sessions whose blob just expired.
func (s *Store) Count(ctx context.Context, accountID string) (int, error) {
	n, err := s.redis.ZCard(ctx, indexKey(accountID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}
