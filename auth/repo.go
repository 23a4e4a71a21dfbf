package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-session/session"
)

// Backend is the remote authentication API. Each call returns the session
// the backend issued, or an error carrying the backend's message.
type Backend interface {
	Login(ctx context.Context, credentials Credentials) (session.Session, error)
	Register(ctx context.Context, registration Registration) (session.Session, error)
	ExchangeProviderToken(ctx context.Context, providerToken string) (session.Session, error)
}
