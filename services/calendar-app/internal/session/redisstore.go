package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL bounds how long an idle session survives in Redis. It
// tracks the refresh cookie lifetime, not the access token's exp, so a
// session whose access token lapsed can still be refreshed.
const DefaultSessionTTL = 30 * 24 * time.Hour

// RedisStore shares one session between BFF replicas. Every Save restarts
// the ttl; a ttl of zero keeps the entry until Clear.
type RedisStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, key string, ttl time.Duration) *RedisStore {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "calendar:session"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{rdb: rdb, key: key, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context) (State, bool, error) {
	raw, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

func (r *RedisStore) Save(ctx context.Context, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key, raw, r.ttl).Err()
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.rdb.Del(ctx, r.key).Err()
}

// Ping backs the readiness check.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
