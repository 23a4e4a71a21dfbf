// Package credentials persists the current session so it survives process
// restarts. A Store is a durable mirror of the session service's in-memory
// state, never a second source of truth.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keySuffix = "_userData"

var ErrInvalidSession = errors.New("session must carry both a user and a token")

// Store persists a single session record under a namespaced key.
//
// Load never fails: missing, unreadable or malformed records are reported
// as absent. Save replaces the record as a whole. Clear is idempotent.
type Store interface {
	Load() (session.Session, bool)
	Save(s session.Session) error
	Clear() error
	Key() string
}

// StorageKey returns the namespaced key for an application,
// e.g. "food-delivery_userData".
func StorageKey(appName string) string {
	return appName + keySuffix
}

// New builds the store selected by configuration
func New(cfg interface {
	config.EnvConfig
	config.StoreConfig
}) (Store, error) {
	switch cfg.GetStoreBackend() {
	case config.StoreMemory:
		return NewMemoryStore(cfg.GetAppName()), nil
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.GetRedisURL())
		if err != nil {
			return nil, fmt.Errorf("redis parse url: %w", err)
		}
		return NewRedisStore(redis.NewClient(opts), cfg.GetAppName(), 2*time.Second), nil
	case config.StoreFile, "":
		return NewFileStore(cfg.GetDataFolder(), cfg.GetAppName())
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.GetStoreBackend())
	}
}

func encode(s session.Session) ([]byte, error) {
	if !s.Valid() {
		return nil, ErrInvalidSession
	}
	return json.Marshal(s)
}

// decode treats anything that is not a complete record as absence
func decode(key string, data []byte) (session.Session, bool) {
	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Ignoring malformed session record")
		return session.Session{}, false
	}
	if !s.Valid() {
		log.Debug().Str("key", key).Msg("Ignoring incomplete session record")
		return session.Session{}, false
	}
	return s, true
}
