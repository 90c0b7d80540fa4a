package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the session store cannot reach Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionCorrupt is returned when a stored session blob cannot be decoded. The blob
// is removed.
var ErrSessionCorrupt = errors.New("stored session corrupt")

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
if ARGV[1] ~= "" then
  redis.call("SREM", KEYS[2], ARGV[1])
end
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is a Redis-backed persistence layer for the credential pair of each client,
// keyed by an opaque client key. It also indexes client keys per identity so every
// stored session of an identity can be dropped after an external invalidation.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client. prefix sets the
// Redis key namespace.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "obs"
	}
	return &Store{redis: redis, prefix: prefix}
}

func (s *Store) key(clientKey string) string {
	return s.prefix + ":c:" + clientKey
}

func (s *Store) identityKey(identityID string) string {
	return s.prefix + ":i:" + identityID
}

// Save persists sess under clientKey for ttl and indexes the client key under the
// session's identity.
//
//	Performance: 1 pipelined transaction (SET + SADD + EXPIRE).
func (s *Store) Save(ctx context.Context, clientKey string, sess *Session, ttl time.Duration) error {
	if clientKey == "" {
		return errors.New("session client key required")
	}
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	idxKey := s.identityKey(sess.Identity.ID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(clientKey), data, ttl)
		pipe.SAdd(ctx, idxKey, clientKey)
		pipe.Expire(ctx, idxKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Load returns the session stored under clientKey, or redis.Nil when none exists.
// Sessions stored in an older schema are rewritten in the current one, keeping their
// remaining TTL.
func (s *Store) Load(ctx context.Context, clientKey string) (*Session, error) {
	key := s.key(clientKey)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		_ = s.redis.Del(ctx, key).Err()
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}

	if err := s.maybeMigrateSessionSchema(ctx, key, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes the session stored under clientKey. Deleting a missing session is
// not an error.
func (s *Store) Delete(ctx context.Context, clientKey string) error {
	key := s.key(clientKey)

	identityID := ""
	data, err := s.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if sess, decErr := Decode(data); decErr == nil {
			identityID = sess.Identity.ID
		}
	case errors.Is(err, redis.Nil):
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if err := deleteSessionLua.Run(ctx, s.redis, []string{key, s.identityKey(identityID)}, clientKeyArg(identityID, clientKey)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func clientKeyArg(identityID, clientKey string) string {
	if identityID == "" {
		return ""
	}
	return clientKey
}

// ClientKeys lists the client keys holding a stored session for identityID.
func (s *Store) ClientKeys(ctx context.Context, identityID string) ([]string, error) {
	keys, err := s.redis.SMembers(ctx, s.identityKey(identityID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return keys, nil
}

// DeleteAllForIdentity removes every stored session of identityID and returns the
// client keys that were indexed.
//
// The index read and the deletes are separate round trips. A session saved in between
// survives until its TTL or the next call.
func (s *Store) DeleteAllForIdentity(ctx context.Context, identityID string) ([]string, error) {
	clientKeys, err := s.ClientKeys(ctx, identityID)
	if err != nil {
		return nil, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, ck := range clientKeys {
			pipe.Del(ctx, s.key(ck))
		}
		pipe.Del(ctx, s.identityKey(identityID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return clientKeys, nil
}

// Ping reports Redis round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) maybeMigrateSessionSchema(ctx context.Context, key string, sess *Session) error {
	if sess == nil || sess.SchemaVersion == CurrentSchemaVersion {
		return nil
	}

	pttl, err := s.redis.PTTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if pttl <= 0 {
		return nil
	}

	encoded, err := Encode(sess)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, key, encoded, pttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	sess.SchemaVersion = CurrentSchemaVersion
	return nil
}
