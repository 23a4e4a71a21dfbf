package config

import (
	"strings"
	"time"
)

const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type StoreConfig interface {
	GetStoreBackend() string
	GetRedisURL() string
	GetExpiryCheck() bool
}

type IdentityConfig interface {
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetOIDCScopes() []string
}

type ServerConfig interface {
	GetJWTSecret() string
	GetJWTPreviousSecrets() []string
	GetTokenIssuer() string
	GetTokenTTL() time.Duration
	GetResponseStyle() string
	GetSessionStore() string
}

type Store struct {
	src source
}

var _ StoreConfig = Store{}

func (s Store) GetStoreBackend() string {
	return strings.ToLower(s.src.get("STORE", StoreFile))
}

func (s Store) GetRedisURL() string {
	return s.src.get("REDIS_URL", "redis://localhost:6379/0")
}

// GetExpiryCheck controls whether persisted sessions with expired tokens are
// dropped when the session service initializes.
func (s Store) GetExpiryCheck() bool {
	return s.src.get("EXPIRY_CHECK", "true") != "false"
}

type Identity struct {
	src source
}

var _ IdentityConfig = Identity{}

func (i Identity) GetOIDCIssuer() string {
	return i.src.get("OIDC_ISSUER", "")
}

func (i Identity) GetOIDCClientID() string {
	return i.src.get("OIDC_CLIENT_ID", "")
}

func (i Identity) GetOIDCClientSecret() string {
	return i.src.get("OIDC_CLIENT_SECRET", "")
}

func (i Identity) GetOIDCScopes() []string {
	raw := i.src.get("OIDC_SCOPES", "openid,profile,email")
	scopes := make([]string, 0)
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

type Server struct {
	src source
}

var _ ServerConfig = Server{}

func (s Server) GetJWTSecret() string {
	return s.src.get("JWT_SECRET", "dev-secret-change-me")
}

// GetJWTPreviousSecrets lists retired secrets (comma separated) whose
// tokens are still accepted until they expire.
func (s Server) GetJWTPreviousSecrets() []string {
	secrets := make([]string, 0)
	for _, secret := range strings.Split(s.src.get("JWT_PREVIOUS_SECRETS", ""), ",") {
		if secret = strings.TrimSpace(secret); secret != "" {
			secrets = append(secrets, secret)
		}
	}
	return secrets
}

func (s Server) GetTokenIssuer() string {
	return s.src.get("TOKEN_ISSUER", "food-delivery-dev")
}

func (s Server) GetTokenTTL() time.Duration {
	return durationOr(s.src.get("TOKEN_TTL", ""), 1*time.Hour)
}

// GetResponseStyle selects the login payload shape: "nested" ({user, token})
// or "flat" ({userId, ..., accessToken}).
func (s Server) GetResponseStyle() string {
	return strings.ToLower(s.src.get("RESPONSE_STYLE", "nested"))
}

// GetSessionStore selects where the dev backend tracks issued tokens:
// "memory" or "redis" (using REDIS_URL).
func (s Server) GetSessionStore() string {
	return strings.ToLower(s.src.get("SESSION_STORE", StoreMemory))
}
