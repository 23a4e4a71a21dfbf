package fakebackend

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/authhttp"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/users"
)

var _ auth.Backend = (*FakeBackend)(nil)

// FakeBackend issues sessions from an in-memory account table. Gate, when
// set, is received from before each call returns so tests can hold a
// response in flight.
type FakeBackend struct {
	lock      sync.RWMutex
	accounts  map[string]account
	providers map[string]session.Session
	Gate      chan struct{}
	Calls     int
}

type account struct {
	password string
	session  session.Session
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		accounts:  make(map[string]account),
		providers: make(map[string]session.Session),
	}
}

// AddUser registers a username/password pair and the session a login returns
func (fb *FakeBackend) AddUser(username, password string, s session.Session) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.accounts[strings.ToLower(username)] = account{password: password, session: s}
}

// AddProviderToken maps a provider token to the session the exchange returns
func (fb *FakeBackend) AddProviderToken(providerToken string, s session.Session) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.providers[providerToken] = s
}

func (fb *FakeBackend) Login(ctx context.Context, credentials auth.Credentials) (session.Session, error) {
	fb.lock.Lock()
	fb.Calls++
	acc, ok := fb.accounts[strings.ToLower(credentials.Username)]
	fb.lock.Unlock()

	if err := fb.wait(ctx); err != nil {
		return session.Session{}, err
	}
	if !ok || acc.password != credentials.Password {
		return session.Session{}, &authhttp.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid username or password"}
	}
	return acc.session, nil
}

func (fb *FakeBackend) Register(ctx context.Context, registration auth.Registration) (session.Session, error) {
	fb.lock.Lock()
	fb.Calls++
	key := strings.ToLower(registration.Username)
	if _, exists := fb.accounts[key]; exists {
		fb.lock.Unlock()
		return session.Session{}, &authhttp.APIError{StatusCode: http.StatusConflict, Message: "Username is already taken"}
	}
	role := registration.Role
	if role == "" {
		role = users.RoleCustomer
	}
	s := session.Session{
		User: users.User{
			ID:        users.NumericID(int64(len(fb.accounts) + 1)),
			Username:  registration.Username,
			Email:     registration.Email,
			FirstName: registration.FirstName,
			LastName:  registration.LastName,
			Role:      role,
		},
		Token: "registered." + key + ".token",
	}
	fb.accounts[key] = account{password: registration.Password, session: s}
	fb.lock.Unlock()

	if err := fb.wait(ctx); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

func (fb *FakeBackend) ExchangeProviderToken(ctx context.Context, providerToken string) (session.Session, error) {
	fb.lock.Lock()
	fb.Calls++
	s, ok := fb.providers[providerToken]
	fb.lock.Unlock()

	if err := fb.wait(ctx); err != nil {
		return session.Session{}, err
	}
	if !ok {
		return session.Session{}, &authhttp.APIError{StatusCode: http.StatusUnauthorized}
	}
	return s, nil
}

func (fb *FakeBackend) wait(ctx context.Context) error {
	if fb.Gate == nil {
		return nil
	}
	select {
	case <-fb.Gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
