package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps any transport-level Redis failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RotateStatus is the outcome of an atomic refresh rotation attempt.
type RotateStatus int64

const (
	// RotateNotFound means no session exists under the presented ID.
	RotateNotFound RotateStatus = 0
	// RotateExpired means the session existed but its lifetime had ended.
	// The script removed it.
	RotateExpired RotateStatus = 1
	// RotateReuse means the presented secret does not match the live
	// refresh hash. The token was already rotated once, so this is a
	// replay; the script destroyed the whole session.
	RotateReuse RotateStatus = 2
	// RotateOK means the hash was swapped and the old token is now dead.
	RotateOK RotateStatus = 3
	// RotateCorrupt means the stored blob failed structural validation.
	RotateCorrupt RotateStatus = 4
)

const indexKeyPrefix = "aki:"

// deleteSessionScript removes the blob and its index entry in one round
// trip. SREM runs unconditionally so a dangling index entry is cleaned up
// even when the blob already expired.
const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// rotateRefreshScript performs compare-and-swap refresh rotation entirely
// server-side. The fixed 56-byte blob tail (hash 32, created 8, activity 8,
// expires 8) is addressed relative to the blob end; the principal ID is
// parsed from the front only to locate the index set for cleanup.
//
// A hash mismatch is treated as token replay: the session is destroyed so
// neither the thief nor the victim can continue the lineage.
const rotateRefreshScript = `
local function read_be64(s, i)
  local n = 0
  for k = 0, 7 do
    local b = string.byte(s, i + k)
    if not b then
      return nil
    end
    n = n * 256 + b
  end
  return n
end

local function write_be64(n)
  local out = ""
  for k = 7, 0, -1 do
    out = out .. string.char(math.floor(n / 256 ^ k) % 256)
  end
  return out
end

local session_key = KEYS[1]
local session_id = ARGV[1]
local index_prefix = ARGV[2]
local provided_hash = ARGV[3]
local next_hash = ARGV[4]
local now_unix = tonumber(ARGV[5])

local data = redis.call("GET", session_key)
if not data then
  return {0}
end

if string.byte(data, 1) ~= 1 then
  return {4}
end
local id_len = string.byte(data, 2)
if not id_len or id_len == 0 or #data < id_len + 59 then
  return {4}
end
local principal_id = string.sub(data, 3, 2 + id_len)
local index_key = index_prefix .. principal_id

local expires_at = read_be64(data, #data - 7)
if not expires_at then
  return {4}
end

if expires_at <= now_unix then
  redis.call("DEL", session_key)
  redis.call("SREM", index_key, session_id)
  return {1}
end

local hash = string.sub(data, #data - 55, #data - 24)
if hash ~= provided_hash then
  redis.call("DEL", session_key)
  redis.call("SREM", index_key, session_id)
  return {2}
end

local ttl = redis.call("PTTL", session_key)
if ttl <= 0 then
  redis.call("DEL", session_key)
  redis.call("SREM", index_key, session_id)
  return {1}
end

local head = string.sub(data, 1, #data - 56)
local created = string.sub(data, #data - 23, #data - 16)
local expires = string.sub(data, #data - 7)
local updated = head .. next_hash .. created .. write_be64(now_unix) .. expires

redis.call("SET", session_key, updated, "PX", ttl)
redis.call("SADD", index_key, session_id)

return {3}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store is a Redis-backed session store that handles persistence,
// expiration, and atomic refresh-token rotation.
//
//	Docs: docs/session.md
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace for session blobs.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "aks"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) indexKey(principalID string) string {
	return indexKeyPrefix + principalID
}

// Save persists a [Session] with the given TTL and indexes it under its
// principal.
//
//	Performance: 2 Redis commands in one MULTI.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		pipe.SAdd(ctx, s.indexKey(sess.PrincipalID), sess.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get fetches a session without mutating TTL or index state. Returns
// redis.Nil when the session is absent or past its recorded expiry.
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID

	if time.Now().Unix() >= sess.ExpiresAt {
		return nil, redis.Nil
	}

	return sess, nil
}

// Delete removes a session and its index entry. Deleting an absent
// session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return err
	}

	err = deleteSessionLua.Run(ctx, s.redis,
		[]string{s.key(sessionID), s.indexKey(sess.PrincipalID)},
		sessionID,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForPrincipal removes every indexed session for a principal and
// returns how many blobs were actually deleted.
//
// Not fully atomic: a session created between the index read and the
// delete pipeline survives this call. The stray session expires naturally
// or is caught by the next invocation.
func (s *Store) DeleteAllForPrincipal(ctx context.Context, principalID string) (int, error) {
	indexKey := s.indexKey(principalID)

	sessionIDs, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if len(sessionIDs) == 0 {
		if err := s.redis.Del(ctx, indexKey).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return 0, nil
	}

	sessionKeys := make([]string, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		sessionKeys = append(sessionKeys, s.key(sessionID))
	}

	var delCmd *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		delCmd = pipe.Del(ctx, sessionKeys...)
		pipe.Del(ctx, indexKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return int(delCmd.Val()), nil
}

// ActiveSessionCount returns the number of indexed session IDs for a principal.
func (s *Store) ActiveSessionCount(ctx context.Context, principalID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.indexKey(principalID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// ActiveSessionIDs returns the indexed session IDs for a principal. The
// index may contain IDs whose blobs already expired; GetMany filters those.
func (s *Store) ActiveSessionIDs(ctx context.Context, principalID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.indexKey(principalID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// GetMany fetches multiple sessions without mutating Redis state. Absent
// and expired sessions are skipped, not errors.
func (s *Store) GetMany(ctx context.Context, sessionIDs []string) ([]*Session, error) {
	if len(sessionIDs) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, sid := range sessionIDs {
		cmds[i] = pipe.Get(ctx, s.key(sid))
	}

	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(sessionIDs))
	nowUnix := time.Now().Unix()
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		sess, decErr := Decode(data)
		if decErr != nil {
			return nil, decErr
		}
		sess.SessionID = sessionIDs[i]
		if nowUnix >= sess.ExpiresAt {
			continue
		}

		sessions = append(sessions, sess)
	}

	return sessions, nil
}

// RotateRefreshHash atomically swaps the refresh hash when providedHash
// matches the live one. On mismatch the session is destroyed server-side;
// the caller maps [RotateReuse] to its replay handling.
//
//	Performance: 1 EVALSHA round trip.
func (s *Store) RotateRefreshHash(
	ctx context.Context,
	sessionID string,
	providedHash [32]byte,
	nextHash [32]byte,
) (RotateStatus, error) {
	res, err := rotateRefreshLua.Run(ctx, s.redis,
		[]string{s.key(sessionID)},
		sessionID,
		indexKeyPrefix,
		string(providedHash[:]),
		string(nextHash[:]),
		time.Now().Unix(),
	).Int64Slice()
	if err != nil {
		return RotateNotFound, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) < 1 {
		return RotateCorrupt, nil
	}

	return RotateStatus(res[0]), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
