// Package authhttp is the authenticated request pipeline: every request to
// the backend carries the session's bearer token, and authorization
// failures in responses are handled once, centrally.
package authhttp

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/credentials"
	"github.com/jrsteele09/go-auth-session/ui"
	"github.com/rs/zerolog/log"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"

	MsgSessionExpired = "Your session has expired. Please sign in again."
	MsgForbidden      = "You do not have permission to perform this action."
	MsgServerError    = "Something went wrong on the server. Please try again later."
)

// SessionAccessor is the pipeline's view of the session service
type SessionAccessor interface {
	// Token returns the current bearer token
	Token() (string, bool)

	// InvalidateToken tears the session down after a 401 for a request
	// sent with token. It reports whether this call performed the teardown.
	InvalidateToken(token string) bool
}

// Transport implements http.RoundTripper
type Transport struct {
	base        http.RoundTripper
	session     SessionAccessor
	fallback    credentials.Store
	notifier    ui.Notifier
	navigator   ui.Navigator
	signInRoute string
}

var _ http.RoundTripper = (*Transport)(nil)

type TransportOption func(*Transport)

// WithBase sets the underlying transport (http.DefaultTransport otherwise)
func WithBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		t.base = base
	}
}

// WithFallbackStore reads the persisted token when the session service has
// none in memory, e.g. before it has been initialized.
func WithFallbackStore(store credentials.Store) TransportOption {
	return func(t *Transport) {
		t.fallback = store
	}
}

func WithNotifier(n ui.Notifier) TransportOption {
	return func(t *Transport) {
		t.notifier = n
	}
}

func WithNavigator(n ui.Navigator) TransportOption {
	return func(t *Transport) {
		t.navigator = n
	}
}

func WithSignInRoute(route string) TransportOption {
	return func(t *Transport) {
		t.signInRoute = route
	}
}

// NewTransport wires the pipeline to the session accessor. The accessor is
// fixed for the transport's lifetime.
func NewTransport(accessor SessionAccessor, options ...TransportOption) *Transport {
	t := &Transport{
		base:        http.DefaultTransport,
		session:     accessor,
		notifier:    ui.LogNotifier{},
		signInRoute: "/sign-in",
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok := t.token()

	// RoundTrippers must not modify the caller's request
	outbound := req.Clone(req.Context())
	if tok != "" {
		outbound.Header.Set(HeaderAuthorization, "Bearer "+tok)
	}
	if outbound.Header.Get(HeaderRequestID) == "" {
		outbound.Header.Set(HeaderRequestID, uuid.New().String())
	}

	resp, err := t.base.RoundTrip(outbound)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		t.handleUnauthorized(tok, outbound)
	case resp.StatusCode == http.StatusForbidden:
		t.notify(ui.LevelError, MsgForbidden)
	case resp.StatusCode >= http.StatusInternalServerError:
		log.Warn().Int("status", resp.StatusCode).Str("path", outbound.URL.Path).
			Str("request_id", outbound.Header.Get(HeaderRequestID)).Msg("Server error")
		t.notify(ui.LevelError, MsgServerError)
	}
	return resp, nil
}

func (t *Transport) token() string {
	if t.session != nil {
		if tok, ok := t.session.Token(); ok && tok != "" {
			return tok
		}
	}
	if t.fallback != nil {
		if s, ok := t.fallback.Load(); ok {
			return s.Token
		}
	}
	return ""
}

// handleUnauthorized runs the teardown once per session: concurrent 401s
// for the same token only notify and redirect for the first one. A 401 for
// a request without a token always signs out unless a session has started
// since it was sent.
func (t *Transport) handleUnauthorized(tok string, req *http.Request) {
	switch {
	case t.session != nil:
		if !t.session.InvalidateToken(tok) {
			return
		}
	case t.fallback != nil:
		if err := t.fallback.Clear(); err != nil {
			log.Err(err).Msg("Failed to clear rejected credentials")
		}
	}

	log.Info().Str("path", req.URL.Path).Msg("Session rejected by backend, signing out")
	t.notify(ui.LevelWarning, MsgSessionExpired)
	if t.navigator != nil {
		t.navigator.Navigate(SignInLocation(t.signInRoute, t.navigator.Location()))
	}
}

func (t *Transport) notify(level ui.Level, message string) {
	if t.notifier != nil {
		t.notifier.Notify(ui.Notification{Level: level, Message: message})
	}
}

// SignInLocation builds the sign-in route carrying the current location in
// the redirect query parameter.
func SignInLocation(signInRoute, current string) string {
	if current == "" {
		return signInRoute
	}
	sep := "?"
	if strings.Contains(signInRoute, "?") {
		sep = "&"
	}
	return signInRoute + sep + "redirect=" + url.QueryEscape(current)
}
