// Package backend talks to the remote authentication API and turns its
// responses into sessions.
package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/authhttp"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
)

// HTTPBackend implements auth.Backend over the JSON API. It must use a
// client without the authenticated Transport: a 401 from the login
// endpoint means bad credentials, not an expired session.
type HTTPBackend struct {
	client       *authhttp.Client
	loginPath    string
	registerPath string
	exchangePath string
	logoutPath   string
}

var _ auth.Backend = (*HTTPBackend)(nil)

func NewHTTPBackend(client *authhttp.Client, cfg config.APIConfig) *HTTPBackend {
	return &HTTPBackend{
		client:       client,
		loginPath:    cfg.GetLoginPath(),
		registerPath: cfg.GetRegisterPath(),
		exchangePath: cfg.GetExchangePath(),
		logoutPath:   cfg.GetLogoutPath(),
	}
}

// New builds an HTTPBackend with its own plain client
func New(cfg config.APIConfig) *HTTPBackend {
	httpClient := &http.Client{Timeout: cfg.GetRequestTimeout()}
	return NewHTTPBackend(authhttp.NewClient(cfg.GetAPIBaseURL(), httpClient), cfg)
}

func (b *HTTPBackend) Login(ctx context.Context, credentials auth.Credentials) (session.Session, error) {
	return b.post(ctx, b.loginPath, credentials)
}

func (b *HTTPBackend) Register(ctx context.Context, registration auth.Registration) (session.Session, error) {
	return b.post(ctx, b.registerPath, registration)
}

func (b *HTTPBackend) ExchangeProviderToken(ctx context.Context, providerToken string) (session.Session, error) {
	return b.post(ctx, b.exchangePath, auth.ProviderExchange{ProviderToken: providerToken})
}

// Logout revokes token server side. It goes through the plain client so a
// token the server already rejects does not read as an expired session.
func (b *HTTPBackend) Logout(ctx context.Context, token string) error {
	if err := b.client.Post(ctx, b.logoutPath, nil, nil, authhttp.WithBearer(token)); err != nil {
		return errors.Wrap(err, "[HTTPBackend.Logout]")
	}
	return nil
}

func (b *HTTPBackend) post(ctx context.Context, path string, body any) (session.Session, error) {
	var env envelope
	if err := b.client.Post(ctx, path, body, &env); err != nil {
		return session.Session{}, err
	}
	return env.session()
}

// envelope is the API's response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// loginResult accepts both deployments' result shapes: nested
// {user, token} and flat {userId, ..., accessToken, role}.
type loginResult struct {
	User        *users.User `json:"user"`
	Token       string      `json:"token"`
	AccessToken string      `json:"accessToken"`

	UserID    users.ID `json:"userId"`
	ID        users.ID `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Role      string   `json:"role"`
}

func (e envelope) session() (session.Session, error) {
	if !e.Success {
		return session.Session{}, &authhttp.APIError{StatusCode: http.StatusOK, Message: e.Message}
	}

	var result loginResult
	if err := json.Unmarshal(e.Result, &result); err != nil {
		return session.Session{}, errors.Wrap(err, "[envelope.session] decoding result")
	}

	s := session.Session{Token: result.Token}
	if s.Token == "" {
		s.Token = result.AccessToken
	}

	if result.User != nil {
		s.User = *result.User
	} else {
		s.User = users.User{
			ID:        result.UserID,
			Username:  result.Username,
			Email:     result.Email,
			FirstName: result.FirstName,
			LastName:  result.LastName,
			Role:      users.RoleType(result.Role),
		}
		if s.User.ID.IsZero() {
			s.User.ID = result.ID
		}
	}
	if role, ok := users.ParseRole(string(s.User.Role)); ok {
		s.User.Role = role
	}

	if !s.Valid() {
		return session.Session{}, auth.ErrIncompleteSession
	}
	return s, nil
}
