// Package session holds the authenticated identity shared by the credential
// store, the session service and the request pipeline.
package session

import (
	"time"

	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
)

// Session is the authenticated user plus their bearer token. Expiry is
// always derived from the token.
type Session struct {
	User  users.User `json:"user"`
	Token string     `json:"token"`
}

// Valid reports whether both halves of the session are present. Partial
// sessions are never stored or exposed.
func (s Session) Valid() bool {
	return s.Token != "" && !s.User.IsZero()
}

func (s Session) Expiry() (time.Time, bool) {
	return token.Expiry(s.Token)
}

func (s Session) Expired() bool {
	return token.IsExpired(s.Token)
}
