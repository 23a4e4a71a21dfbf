package credentials

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-session/session"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisStore keeps the record under the namespaced key in Redis. The Store
// contract is synchronous, so every call runs under its own timeout.
type RedisStore struct {
	cli     *redis.Client
	key     string
	timeout time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(cli *redis.Client, appName string, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisStore{
		cli:     cli,
		key:     StorageKey(appName),
		timeout: timeout,
	}
}

func (r *RedisStore) Key() string {
	return r.key
}

func (r *RedisStore) Load() (session.Session, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	data, err := r.cli.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return session.Session{}, false
	}
	if err != nil {
		log.Debug().Err(err).Str("key", r.key).Msg("Failed to read session from redis")
		return session.Session{}, false
	}
	return decode(r.key, data)
}

func (r *RedisStore) Save(s session.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.cli.Set(ctx, r.key, data, 0).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore Save] failed to write session")
	}
	return nil
}

func (r *RedisStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.cli.Del(ctx, r.key).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore Clear] failed to delete session")
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.cli.Close()
}
