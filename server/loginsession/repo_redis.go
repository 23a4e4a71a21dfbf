package loginsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-session/token"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "loginsession:"

// RedisLoginSessionRepo stores sessions in Redis with a TTL matching the
// token expiry, so revoked and expired tokens disappear on their own.
type RedisLoginSessionRepo struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisLoginSessionRepo(client *redis.Client, timeout time.Duration) *RedisLoginSessionRepo {
	return &RedisLoginSessionRepo{client: client, timeout: timeout}
}

func (r *RedisLoginSessionRepo) Upsert(tokenID string, session Session) error {
	if tokenID == "" {
		return fmt.Errorf("tokenID is required")
	}
	ttl := session.ExpiresAt.Sub(token.NowTimeFunc())
	if ttl <= 0 {
		return fmt.Errorf("session for %s already expired", tokenID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Set(ctx, keyPrefix+tokenID, data, ttl).Err()
}

func (r *RedisLoginSessionRepo) Get(tokenID string) (Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	data, err := r.client.Get(ctx, keyPrefix+tokenID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("redis get: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("decoding session: %w", err)
	}
	return session, nil
}

func (r *RedisLoginSessionRepo) Delete(tokenID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Del(ctx, keyPrefix+tokenID).Err()
}
