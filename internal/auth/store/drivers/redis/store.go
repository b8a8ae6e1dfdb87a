// Package redis stores refresh token records in Redis. Rotation and
// revocation run as Lua scripts so each is a single atomic step on the
// server. Records expire with their refresh token, so housekeeping is a no-op.
//
// Each user also has a set of their record hashes under "<prefix>user:<id>",
// which lets every session of a user be revoked at once. The set lives as
// long as the user's longest lived record.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	goredis "github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "gatekeeper:refresh:"

// Config controls the redis client behaviour.
type Config struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix namespaces every record key.
	KeyPrefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PingTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.KeyPrefix == "" {
		out.KeyPrefix = DefaultKeyPrefix
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 20
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// RefreshStore implements store.RefreshStore on top of a redis client.
type RefreshStore struct {
	rdb    *goredis.Client
	prefix string
}

var _ store.RefreshStore = (*RefreshStore)(nil)

// Open connects to redis and validates connectivity via PING.
func Open(ctx context.Context, cfg Config) (*RefreshStore, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(rdb, cfg.KeyPrefix), nil
}

// New wraps an existing client.
func New(rdb *goredis.Client, prefix string) *RefreshStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RefreshStore{rdb: rdb, prefix: prefix}
}

func (s *RefreshStore) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *RefreshStore) Close() error { return s.rdb.Close() }

func (s *RefreshStore) key(hash string) string { return s.prefix + hash }

func (s *RefreshStore) userKey(userID string) string { return s.prefix + "user:" + userID }

var createScript = goredis.NewScript(`
-- KEYS[1] = record key, KEYS[2] = user index key
-- ARGV = id, user_id, token_hash, session_id, expires_at_ms, now_ms
-- Returns 1 when stored, 0 when the key already exists.
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'id', ARGV[1], 'user_id', ARGV[2], 'token_hash', ARGV[3], 'session_id', ARGV[4],
  'expires_at', ARGV[5], 'revoked', '0', 'created_at', ARGV[6], 'updated_at', ARGV[6])
redis.call('PEXPIREAT', KEYS[1], ARGV[5])
redis.call('SADD', KEYS[2], ARGV[3])
if redis.call('PTTL', KEYS[2]) < tonumber(ARGV[5]) - tonumber(ARGV[6]) then
  redis.call('PEXPIREAT', KEYS[2], ARGV[5])
end
return 1
`)

var rotateScript = goredis.NewScript(`
-- KEYS[1] = predecessor key, KEYS[2] = successor key, KEYS[3] = user index key
-- ARGV = user_id, now_ms, next_id, next_token_hash, next_expires_at_ms
-- Returns the session id on success, nil when the predecessor is not
-- active for user_id or the successor key is taken.
local rec = redis.call('HMGET', KEYS[1], 'user_id', 'revoked', 'expires_at', 'session_id')
if not rec[1] or rec[1] ~= ARGV[1] or rec[2] ~= '0' then
  return false
end
if tonumber(rec[3]) <= tonumber(ARGV[2]) then
  return false
end
if redis.call('EXISTS', KEYS[2]) == 1 then
  return false
end
redis.call('HSET', KEYS[1], 'revoked', '1', 'updated_at', ARGV[2])
redis.call('HSET', KEYS[2],
  'id', ARGV[3], 'user_id', ARGV[1], 'token_hash', ARGV[4], 'session_id', rec[4],
  'expires_at', ARGV[5], 'revoked', '0', 'created_at', ARGV[2], 'updated_at', ARGV[2])
redis.call('PEXPIREAT', KEYS[2], ARGV[5])
redis.call('SADD', KEYS[3], ARGV[4])
if redis.call('PTTL', KEYS[3]) < tonumber(ARGV[5]) - tonumber(ARGV[2]) then
  redis.call('PEXPIREAT', KEYS[3], ARGV[5])
end
return rec[4]
`)

var revokeScript = goredis.NewScript(`
-- KEYS[1] = record key
-- ARGV[1] = now_ms
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'revoked', '1', 'updated_at', ARGV[1])
return 1
`)

var revokeAllScript = goredis.NewScript(`
-- KEYS[1] = user index key
-- ARGV = key prefix, now_ms
-- Returns the number of records revoked. Hashes whose record has expired
-- are dropped from the index.
local n = 0
for _, hash in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  local key = ARGV[1] .. hash
  local revoked = redis.call('HGET', key, 'revoked')
  if not revoked then
    redis.call('SREM', KEYS[1], hash)
  elseif revoked == '0' then
    redis.call('HSET', key, 'revoked', '1', 'updated_at', ARGV[2])
    n = n + 1
  end
end
return n
`)

func (s *RefreshStore) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	ok, err := createScript.Run(ctx, s.rdb, []string{s.key(t.TokenHash), s.userKey(t.UserID)},
		t.ID, t.UserID, t.TokenHash, t.SessionID, t.ExpiresAt.UnixMilli(), time.Now().UnixMilli(),
	).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (s *RefreshStore) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(hash)).Result()
	if err != nil {
		return domain.RefreshToken{}, err
	}
	if len(fields) == 0 {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	return parseRecord(fields)
}

func (s *RefreshStore) RotateRefreshToken(
	ctx context.Context,
	hash string,
	next domain.RefreshToken,
	now time.Time,
) (domain.RefreshToken, error) {
	sessionID, err := rotateScript.Run(ctx, s.rdb,
		[]string{s.key(hash), s.key(next.TokenHash), s.userKey(next.UserID)},
		next.UserID, now.UnixMilli(), next.ID, next.TokenHash, next.ExpiresAt.UnixMilli(),
	).Text()
	if errors.Is(err, goredis.Nil) {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	if err != nil {
		return domain.RefreshToken{}, err
	}
	next.SessionID = sessionID
	next.Revoked = false
	next.CreatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	next.UpdatedAt = next.CreatedAt
	return next, nil
}

func (s *RefreshStore) RevokeRefreshToken(ctx context.Context, hash string) error {
	ok, err := revokeScript.Run(ctx, s.rdb, []string{s.key(hash)}, time.Now().UnixMilli()).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RevokeAllUserRefreshTokens revokes every live record in the user's index.
func (s *RefreshStore) RevokeAllUserRefreshTokens(ctx context.Context, userID string) error {
	return revokeAllScript.Run(ctx, s.rdb, []string{s.userKey(userID)}, s.prefix, time.Now().UnixMilli()).Err()
}

// DeleteExpiredRefreshTokens is a no-op; records carry a PEXPIREAT matching
// their expiry.
func (s *RefreshStore) DeleteExpiredRefreshTokens(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func parseRecord(fields map[string]string) (domain.RefreshToken, error) {
	millis := func(name string) (time.Time, error) {
		ms, err := strconv.ParseInt(fields[name], 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("redis refresh record %s: %w", name, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	}

	expiresAt, err := millis("expires_at")
	if err != nil {
		return domain.RefreshToken{}, err
	}
	createdAt, err := millis("created_at")
	if err != nil {
		return domain.RefreshToken{}, err
	}
	updatedAt, err := millis("updated_at")
	if err != nil {
		return domain.RefreshToken{}, err
	}

	return domain.RefreshToken{
		ID:        fields["id"],
		UserID:    fields["user_id"],
		TokenHash: fields["token_hash"],
		SessionID: fields["session_id"],
		ExpiresAt: expiresAt,
		Revoked:   fields["revoked"] == "1",
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
