package auth

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores the session as three Redis string keys under a prefix.
// Writes use MULTI/EXEC and reads a single MGET, so other processes sharing
// the keys never see a mix of old and new values.
type RedisBackend struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisBackend returns a backend using keys "<prefix>:auth_token" and friends.
func NewRedisBackend(rdb redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "workping"
	}
	return &RedisBackend{rdb: rdb, prefix: prefix}
}

func (rb *RedisBackend) keys() (access, refresh, exp string) {
	return rb.prefix + ":auth_token", rb.prefix + ":auth_refresh", rb.prefix + ":auth_token_exp"
}

func (rb *RedisBackend) Load(ctx context.Context) (Session, error) {
	ak, rk, ek := rb.keys()

	vals, err := rb.rdb.MGet(ctx, ak, rk, ek).Result()
	if err != nil {
		return Session{}, fmt.Errorf("redis mget: %w", err)
	}

	str := func(v any) string {
		s, _ := v.(string)
		return s
	}

	s := Session{AccessToken: str(vals[0]), RefreshToken: str(vals[1])}
	if raw := str(vals[2]); raw != "" {
		exp, err := ParseExpiration(raw)
		if err != nil {
			return Session{}, fmt.Errorf("%w: %v", ErrStorageCorrupted, err)
		}
		s.ExpiresAt = exp
	}
	return s, nil
}

func (rb *RedisBackend) Save(ctx context.Context, s Session) error {
	ak, rk, ek := rb.keys()

	_, err := rb.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setOrDel(ctx, pipe, ak, s.AccessToken)
		setOrDel(ctx, pipe, rk, s.RefreshToken)
		setOrDel(ctx, pipe, ek, formatExpiration(s.ExpiresAt))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

func (rb *RedisBackend) Delete(ctx context.Context) error {
	ak, rk, ek := rb.keys()
	if err := rb.rdb.Del(ctx, ak, rk, ek).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func setOrDel(ctx context.Context, pipe redis.Pipeliner, key, val string) {
	if val == "" {
		pipe.Del(ctx, key)
		return
	}
	pipe.Set(ctx, key, val, 0)
}
