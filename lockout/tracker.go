// Package lockout tracks consecutive failed login attempts per account and
// enforces progressive lockouts.
//
// State lives in Redis so every node of a deployment sees the same counters.
// Transitions run inside a Lua script: concurrent failures from different
// nodes serialize on the Redis side, and the lock decision and the counter
// update commit together.
package lockout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTrackerUnavailable indicates the lockout backend is unreachable.
var ErrTrackerUnavailable = errors.New("lockout backend unavailable")

const keyPrefix = "alk:"

// Config holds the lockout policy.
type Config struct {
	// Threshold is the number of consecutive failures that triggers a lock.
	Threshold int
	// LockDuration is the first lock's length. Each consecutive lock cycle
	// doubles it, up to MaxLockDuration.
	LockDuration    time.Duration
	MaxLockDuration time.Duration
	// FailureWindow is how long a partial failure count survives without
	// further failures.
	FailureWindow time.Duration
	// CycleMemory is how long the doubling history survives after a lock
	// elapses. Zero means history resets as soon as a lock record expires.
	CycleMemory time.Duration
}

// DefaultConfig locks for 15 minutes after 5 straight failures, doubling per
// cycle up to 24 hours.
func DefaultConfig() Config {
	return Config{
		Threshold:       5,
		LockDuration:    15 * time.Minute,
		MaxLockDuration: 24 * time.Hour,
		FailureWindow:   30 * time.Minute,
		CycleMemory:     24 * time.Hour,
	}
}

// Status is a point-in-time view of one account's lockout state.
type Status struct {
	// Failures is the count of consecutive failures in the current window.
	// Zero while a lock is active (the counter resets when the lock fires).
	Failures int
	Locked   bool
	// Remaining is the time left on the active lock, zero when unlocked.
	Remaining time.Duration
	// Cycles is how many locks have fired in the current doubling run.
	Cycles int
}

// record is the JSON blob stored under alk:<accountID>. Field names are
// short because the blob is decoded inside Lua as well.
type record struct {
	Failures int   `json:"n"`
	LockedMS int64 `json:"lk"` // unix ms the lock elapses, 0 = unlocked
	Cycles   int   `json:"c"`
}

// failureScript applies one failed attempt. Returns
// {locked 0|1, failures, remaining_ms, cycles}.
//
// ARGV: now_ms, threshold, lock_ms, max_lock_ms, window_ms, memory_ms.
var failureScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])
local lock_ms = tonumber(ARGV[3])
local max_lock_ms = tonumber(ARGV[4])
local window_ms = tonumber(ARGV[5])
local memory_ms = tonumber(ARGV[6])

local st = {n = 0, lk = 0, c = 0}
local raw = redis.call("GET", KEYS[1])
if raw then
  st = cjson.decode(raw)
end

if st.lk > now then
  return {1, st.n, st.lk - now, st.c}
end

st.n = st.n + 1
if st.n < threshold then
  local ttl = window_ms
  if st.c > 0 and memory_ms > ttl then
    ttl = memory_ms
  end
  redis.call("SET", KEYS[1], cjson.encode(st), "PX", ttl)
  return {0, st.n, 0, st.c}
end

st.c = st.c + 1
local dur = lock_ms
for i = 2, st.c do
  dur = dur * 2
  if dur >= max_lock_ms then
    dur = max_lock_ms
    break
  end
end
st.n = 0
st.lk = now + dur
redis.call("SET", KEYS[1], cjson.encode(st), "PX", dur + memory_ms)
return {1, st.n, dur, st.c}
`)

// clearScript resets the record unless a lock is still active. A correct
// credential presented mid-lock must not wipe the failure history.
//
// ARGV: now_ms.
var clearScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if raw then
  local st = cjson.decode(raw)
  if st.lk > tonumber(ARGV[1]) then
    return 0
  end
end
redis.call("DEL", KEYS[1])
return 1
`)

// Tracker enforces the lockout policy for all accounts.
type Tracker struct {
	redis  redis.UniversalClient
	config Config
}

// NewTracker validates cfg and returns a Tracker.
func NewTracker(redisClient redis.UniversalClient, cfg Config) (*Tracker, error) {
	if redisClient == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Threshold < 1 {
		return nil, errors.New("lockout threshold must be >= 1")
	}
	if cfg.LockDuration <= 0 {
		return nil, errors.New("lock duration must be positive")
	}
	if cfg.MaxLockDuration < cfg.LockDuration {
		return nil, errors.New("max lock duration must be >= lock duration")
	}
	if cfg.FailureWindow <= 0 {
		return nil, errors.New("failure window must be positive")
	}
	if cfg.CycleMemory < 0 {
		return nil, errors.New("cycle memory must not be negative")
	}
	return &Tracker{redis: redisClient, config: cfg}, nil
}

func key(accountID string) string { return keyPrefix + accountID }

// RecordFailure registers one failed attempt and returns the resulting
// state. When the attempt crosses the threshold the returned Status already
// reflects the new lock.
func (t *Tracker) RecordFailure(ctx context.Context, accountID string) (Status, error) {
	if accountID == "" {
		return Status{}, errors.New("account id is required")
	}

	res, err := failureScript.Run(ctx, t.redis, []string{key(accountID)},
		time.Now().UnixMilli(),
		t.config.Threshold,
		t.config.LockDuration.Milliseconds(),
		t.config.MaxLockDuration.Milliseconds(),
		t.config.FailureWindow.Milliseconds(),
		t.config.CycleMemory.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
	}
	if len(res) != 4 {
		return Status{}, fmt.Errorf("%w: unexpected script reply", ErrTrackerUnavailable)
	}

	return Status{
		Locked:    res[0] == 1,
		Failures:  int(res[1]),
		Remaining: time.Duration(res[2]) * time.Millisecond,
		Cycles:    int(res[3]),
	}, nil
}

// RecordSuccess clears all failure and lock history for the account. A
// no-op while a lock is active: the lock must elapse on its own.
func (t *Tracker) RecordSuccess(ctx context.Context, accountID string) error {
	if accountID == "" {
		return nil
	}
	err := clearScript.Run(ctx, t.redis, []string{key(accountID)}, time.Now().UnixMilli()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
	}
	return nil
}

// Unlock lifts an active lock without touching the doubling history, so a
// repeat offender unlocked by an admin still escalates on the next cycle.
func (t *Tracker) Unlock(ctx context.Context, accountID string) error {
	if accountID == "" {
		return nil
	}

	raw, err := t.redis.Get(ctx, key(accountID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return t.redis.Del(ctx, key(accountID)).Err()
	}
	rec.LockedMS = 0
	rec.Failures = 0

	ttl := t.config.CycleMemory
	if ttl == 0 {
		return t.redis.Del(ctx, key(accountID)).Err()
	}
	blob, _ := json.Marshal(rec)
	if err := t.redis.Set(ctx, key(accountID), blob, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
	}
	return nil
}

// Status reads the account's current lockout state without mutating it.
func (t *Tracker) Status(ctx context.Context, accountID string) (Status, error) {
	if accountID == "" {
		return Status{}, errors.New("account id is required")
	}

	raw, err := t.redis.Get(ctx, key(accountID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Status{}, fmt.Errorf("%w: corrupt lockout record", ErrTrackerUnavailable)
	}

	st := Status{Failures: rec.Failures, Cycles: rec.Cycles}
	if remaining := time.Until(time.UnixMilli(rec.LockedMS)); remaining > 0 {
		st.Locked = true
		st.Remaining = remaining
	}
	return st, nil
}
