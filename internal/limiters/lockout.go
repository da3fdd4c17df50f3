package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutConfig holds configuration for the automatic lockout limiter.
type LockoutConfig struct {
	Enabled      bool
	Threshold    int
	Window       time.Duration // rolling window for counting failures
	LockDuration time.Duration // 0 = manual unlock only
}

var (
	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// failure counter and lock flag live under separate keys so an expired
// window never clears an active lock.
const (
	failureKeyPrefix = "akf:"
	lockKeyPrefix    = "akl:"
)

// recordFailureScript increments the failure counter, arms the rolling
// window on the first failure, and promotes the counter to a lock when the
// threshold is reached. The counter is deleted at promotion so a later
// unlock starts from a clean slate. Runs atomically server-side.
//
// KEYS[1] = failure counter, KEYS[2] = lock flag
// ARGV[1] = threshold, ARGV[2] = window ms, ARGV[3] = lock ms (0 = no expiry)
var recordFailureScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if count >= tonumber(ARGV[1]) then
  if tonumber(ARGV[3]) > 0 then
    redis.call('SET', KEYS[2], '1', 'PX', ARGV[3])
  else
    redis.call('SET', KEYS[2], '1')
  end
  redis.call('DEL', KEYS[1])
  return {count, 1}
end
return {count, 0}
`)

// Lockout tracks failed credential attempts per principal and locks the
// principal out when the configured threshold is reached within the window.
// All methods are nil-safe.
type Lockout struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

// NewLockout creates a lockout limiter over the given Redis client.
func NewLockout(redisClient redis.UniversalClient, cfg LockoutConfig) *Lockout {
	return &Lockout{redis: redisClient, config: cfg}
}

func failureKey(principalID string) string {
	return failureKeyPrefix + principalID
}

func lockKey(principalID string) string {
	return lockKeyPrefix + principalID
}

// RecordFailure registers one failed attempt. It returns the running
// failure count and whether this attempt tripped the lock.
func (l *Lockout) RecordFailure(ctx context.Context, principalID string) (int, bool, error) {
	if l == nil || !l.config.Enabled || principalID == "" {
		return 0, false, nil
	}

	res, err := recordFailureScript.Run(ctx, l.redis,
		[]string{failureKey(principalID), lockKey(principalID)},
		l.config.Threshold,
		l.config.Window.Milliseconds(),
		l.config.LockDuration.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("%w: unexpected script reply", ErrLockoutUnavailable)
	}

	return int(res[0]), res[1] == 1, nil
}

// Check reports whether the principal is currently locked out and, for
// expiring locks, when the lock ends. Callers must treat a non-nil error
// as locked; availability of the limiter is a precondition for letting
// credential checks proceed.
func (l *Lockout) Check(ctx context.Context, principalID string) (bool, time.Time, error) {
	if l == nil || !l.config.Enabled || principalID == "" {
		return false, time.Time{}, nil
	}

	ttl, err := l.redis.PTTL(ctx, lockKey(principalID)).Result()
	if err != nil {
		return true, time.Time{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	// go-redis passes the -2/-1 PTTL sentinels through as raw durations.
	switch {
	case ttl == time.Duration(-2): // key absent, not locked
		return false, time.Time{}, nil
	case ttl == time.Duration(-1): // lock with no expiry, manual unlock only
		return true, time.Time{}, nil
	default:
		return true, time.Now().Add(ttl), nil
	}
}

// Reset clears both the failure counter and any active lock. Called after
// a fully authenticated login and by manual unlock tooling.
func (l *Lockout) Reset(ctx context.Context, principalID string) error {
	if l == nil || !l.config.Enabled || principalID == "" {
		return nil
	}

	if err := l.redis.Del(ctx, failureKey(principalID), lockKey(principalID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// FailureCount returns the current failure count within the window.
func (l *Lockout) FailureCount(ctx context.Context, principalID string) (int, error) {
	if l == nil || !l.config.Enabled || principalID == "" {
		return 0, nil
	}

	count, err := l.redis.Get(ctx, failureKey(principalID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return int(count), nil
}
