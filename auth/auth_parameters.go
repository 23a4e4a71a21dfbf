package auth

import (
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/users"
)

// Credentials is the body of a username/password login
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the body of a sign-up request. Role is optional and the
// backend decides whether to honour it.
type Registration struct {
	Username        string         `json:"username"`
	Email           string         `json:"email"`
	Password        string         `json:"password"`
	ConfirmPassword string         `json:"-"`
	FirstName       string         `json:"firstName,omitempty"`
	LastName        string         `json:"lastName,omitempty"`
	Role            users.RoleType `json:"role,omitempty"`
}

// ProviderExchange is the body sent to the backend to swap an identity
// provider token for an application session.
type ProviderExchange struct {
	ProviderToken string `json:"providerToken"`
}

// Operation names a session-establishing call
type Operation string

const (
	OpLogin    Operation = "login"
	OpRegister Operation = "register"
	OpProvider Operation = "provider"
)

// Fallback notification messages, used when the backend gives none
const (
	MsgLoginFailed        = "Login failed. Please try again."
	MsgRegistrationFailed = "Registration failed. Please try again."
	MsgProviderFailed     = "Sign-in with provider failed. Please try again."
)

func defaultFallbacks() map[Operation]string {
	return map[Operation]string{
		OpLogin:    MsgLoginFailed,
		OpRegister: MsgRegistrationFailed,
		OpProvider: MsgProviderFailed,
	}
}

// State is a snapshot of the session container
type State struct {
	Session     session.Session
	Loading     bool
	Initialized bool
}

func (s State) Authenticated() bool {
	return s.Session.Valid()
}
