// Package auth is the session state container: the single source of truth
// for who is signed in. It hydrates from the credential store, establishes
// sessions through the backend and tears them down on logout or when the
// request pipeline reports a rejected token.
package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/jrsteele09/go-auth-session/authhttp"
	"github.com/jrsteele09/go-auth-session/credentials"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/ui"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Deps holds the collaborators of the SessionService
type Deps struct {
	Backend   Backend           // Remote login/register/exchange endpoints
	Store     credentials.Store // Durable mirror of the session
	Notifier  ui.Notifier       // Transient user-visible messages
	Navigator ui.Navigator      // Moves the UI after sign in
}

// SessionService owns the current session. The in-memory copy is
// authoritative and every mutation is written through to the store before
// it becomes visible.
type SessionService struct {
	deps        Deps
	validator   *Validator
	homeRoute   string
	expiryCheck bool
	fallbacks   map[Operation]string

	initOnce sync.Once

	mu          sync.Mutex
	current     session.Session
	initialized bool
	inFlight    int
	generation  uint64 // bumped by every teardown
	listeners   map[uint64]func(State)
	nextID      uint64
}

var _ authhttp.SessionAccessor = (*SessionService)(nil)

// SessionServiceOption defines a function type to modify the SessionService instance.
type SessionServiceOption func(*SessionService)

// WithHomeRoute sets where the UI lands after signing in ("/" by default)
func WithHomeRoute(route string) SessionServiceOption {
	return func(s *SessionService) {
		s.homeRoute = route
	}
}

// WithExpiryCheck controls whether Initialize discards a persisted session
// whose token is expired or undecodable. Enabled by default.
func WithExpiryCheck(enabled bool) SessionServiceOption {
	return func(s *SessionService) {
		s.expiryCheck = enabled
	}
}

// WithFallbackMessage overrides the notification shown when op fails and
// the backend gives no message.
func WithFallbackMessage(op Operation, message string) SessionServiceOption {
	return func(s *SessionService) {
		s.fallbacks[op] = message
	}
}

func NewSessionService(deps Deps, options ...SessionServiceOption) (*SessionService, error) {
	if deps.Backend == nil {
		return nil, errors.New("[NewSessionService] Backend is required")
	}
	if deps.Store == nil {
		return nil, errors.New("[NewSessionService] Store is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("[NewSessionService] Notifier is required")
	}
	if deps.Navigator == nil {
		return nil, errors.New("[NewSessionService] Navigator is required")
	}

	s := &SessionService{
		deps:        deps,
		validator:   NewValidator(),
		homeRoute:   "/",
		expiryCheck: true,
		fallbacks:   defaultFallbacks(),
		listeners:   make(map[uint64]func(State)),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Initialize hydrates the in-memory session from the store. Only the first
// call does any work.
func (s *SessionService) Initialize() State {
	s.initOnce.Do(func() {
		s.mu.Lock()
		if !s.current.Valid() {
			if persisted, ok := s.deps.Store.Load(); ok {
				if s.expiryCheck && persisted.Expired() {
					log.Info().Str("key", s.deps.Store.Key()).Msg("Discarding expired session")
					if err := s.deps.Store.Clear(); err != nil {
						log.Err(err).Msg("Failed to clear expired session")
					}
				} else {
					s.current = persisted
				}
			}
		}
		s.initialized = true
		s.mu.Unlock()
		s.publish()
	})
	return s.State()
}

func (s *SessionService) Login(ctx context.Context, credentials Credentials) error {
	if err := s.validator.ValidateCredentials(credentials); err != nil {
		s.deps.Notifier.Notify(ui.Notification{Level: ui.LevelError, Message: validationMessage(err)})
		return errors.Wrap(err, "[Login]")
	}
	return s.establish(ctx, OpLogin, func(ctx context.Context) (session.Session, error) {
		return s.deps.Backend.Login(ctx, credentials)
	})
}

func (s *SessionService) Register(ctx context.Context, registration Registration) error {
	if err := s.validator.ValidateRegistration(registration); err != nil {
		s.deps.Notifier.Notify(ui.Notification{Level: ui.LevelError, Message: validationMessage(err)})
		return errors.Wrap(err, "[Register]")
	}
	return s.establish(ctx, OpRegister, func(ctx context.Context) (session.Session, error) {
		return s.deps.Backend.Register(ctx, registration)
	})
}

// LoginWithProvider exchanges an identity provider token for a session
func (s *SessionService) LoginWithProvider(ctx context.Context, providerToken string) error {
	if err := s.validator.ValidateProviderToken(providerToken); err != nil {
		s.notifyFailure(OpProvider, err)
		return errors.Wrap(err, "[LoginWithProvider]")
	}
	return s.establish(ctx, OpProvider, func(ctx context.Context) (session.Session, error) {
		return s.deps.Backend.ExchangeProviderToken(ctx, providerToken)
	})
}

// establish runs a backend call without holding the lock and commits its
// session only if no teardown happened in the meantime.
func (s *SessionService) establish(ctx context.Context, op Operation, call func(context.Context) (session.Session, error)) error {
	s.mu.Lock()
	s.inFlight++
	generation := s.generation
	s.mu.Unlock()
	s.publish()

	issued, err := call(ctx)
	if err == nil && !issued.Valid() {
		err = ErrIncompleteSession
	}
	if err != nil {
		s.finish()
		s.notifyFailure(op, err)
		return errors.Wrapf(err, "[%s]", op)
	}

	s.mu.Lock()
	s.inFlight--
	if s.generation != generation {
		s.mu.Unlock()
		s.publish()
		log.Warn().Str("op", string(op)).Msg("Dropping session issued after sign out")
		return ErrSessionSuperseded
	}
	if err := s.deps.Store.Save(issued); err != nil {
		s.mu.Unlock()
		s.publish()
		s.notifyFailure(op, nil)
		return errors.Wrapf(err, "[%s] persisting session", op)
	}
	s.current = issued
	s.mu.Unlock()
	s.publish()

	log.Info().Str("op", string(op)).Str("user", issued.User.DisplayName()).Msg("Signed in")
	s.deps.Navigator.Navigate(s.landingRoute())
	return nil
}

func (s *SessionService) finish() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	s.publish()
}

// landingRoute honours a local redirect parameter left by the request
// pipeline, otherwise the home route.
func (s *SessionService) landingRoute() string {
	if target, ok := ui.RedirectTarget(s.deps.Navigator.Location()); ok {
		return target
	}
	return s.homeRoute
}

func (s *SessionService) notifyFailure(op Operation, err error) {
	message, ok := authhttp.MessageOf(err)
	if !ok {
		message = s.fallbacks[op]
	}
	s.deps.Notifier.Notify(ui.Notification{Level: ui.LevelError, Message: message})
}

func validationMessage(err error) string {
	if errors.Is(err, ErrPasswordsDontMatch) {
		return "Passwords do not match."
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i > 0 {
		msg = msg[:i]
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}

// Logout is idempotent; with no session it only clears the store
func (s *SessionService) Logout() error {
	s.mu.Lock()
	s.current = session.Session{}
	s.generation++
	err := s.deps.Store.Clear()
	s.mu.Unlock()
	s.publish()

	if err != nil {
		return errors.Wrap(err, "[Logout] clearing store")
	}
	return nil
}

// InvalidateToken tears down the session that owns tok. An empty tok means
// the request carried no token: the signed out state is still enforced
// unless a session has appeared since. It reports false when tok belongs to
// an older session or the session is already gone, so concurrent rejections
// of the same token tear down once.
func (s *SessionService) InvalidateToken(tok string) bool {
	s.mu.Lock()
	owner := s.current
	if !owner.Valid() {
		// Not hydrated yet: the request used the persisted token
		if persisted, ok := s.deps.Store.Load(); ok {
			owner = persisted
		}
	}
	if owner.Token != tok {
		s.mu.Unlock()
		return false
	}

	s.current = session.Session{}
	s.generation++
	if err := s.deps.Store.Clear(); err != nil {
		log.Err(err).Msg("Failed to clear rejected session")
	}
	s.mu.Unlock()
	s.publish()
	return true
}

func (s *SessionService) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Token, s.current.Valid()
}

// Current returns the signed in session. It is false before Initialize
// unless a sign in has already happened.
func (s *SessionService) Current() (session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current.Valid()
}

func (s *SessionService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *SessionService) stateLocked() State {
	return State{
		Session:     s.current,
		Loading:     s.inFlight > 0,
		Initialized: s.initialized,
	}
}

// Subscribe registers fn to receive a snapshot after every state change
func (s *SessionService) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *SessionService) publish() {
	s.mu.Lock()
	state := s.stateLocked()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

// Authorize gates a route. With no roles any signed in user passes.
func (s *SessionService) Authorize(roles ...users.RoleType) error {
	current, ok := s.Current()
	if !ok {
		return ErrNotAuthenticated
	}
	if len(roles) == 0 || current.User.HasRole(roles...) {
		return nil
	}
	return errors.Wrapf(ErrRoleNotAllowed, "role %q", current.User.Role)
}
