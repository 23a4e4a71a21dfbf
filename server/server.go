// Package server is a development backend for the session library: it
// implements the login, registration and provider exchange endpoints plus
// a few bearer-protected routes, backed by in-memory users.
package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/server/loginsession"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/rs/zerolog/log"
)

const (
	ResponseNested = "nested"
	ResponseFlat   = "flat"
)

type Server struct {
	env           string // Environment (e.g., "DEV", "PROD")
	mux           *http.ServeMux
	routes        []string
	config        config.Config
	users         users.Repo
	issuer        *token.Issuer
	loginSessions loginsession.Repo
	providers     ProviderVerifier
	responseStyle string
}

// ServerOption defines a function type to modify the Server instance.
type ServerOption func(*Server)

// WithLoginSessions replaces the in-memory registry of issued tokens
func WithLoginSessions(repo loginsession.Repo) ServerOption {
	return func(s *Server) {
		s.loginSessions = repo
	}
}

// WithProviderVerifier enables POST /api/auth/oauth/exchange
func WithProviderVerifier(v ProviderVerifier) ServerOption {
	return func(s *Server) {
		s.providers = v
	}
}

func New(cfg config.Config, userRepo users.Repo, options ...ServerOption) (*Server, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("[Server New] users repo is required")
	}

	s := &Server{
		env:           cfg.GetEnv(),
		mux:           http.NewServeMux(),
		config:        cfg,
		users:         userRepo,
		issuer:        token.NewIssuer(token.NewKeyring(cfg.GetJWTSecret(), cfg.GetJWTPreviousSecrets()...), cfg.GetTokenIssuer(), cfg.GetTokenTTL()),
		loginSessions: loginsession.NewInMemoryLoginSessionRepo(),
		responseStyle: cfg.GetResponseStyle(),
	}
	for _, opt := range options {
		opt(s)
	}

	if s.responseStyle != ResponseNested && s.responseStyle != ResponseFlat {
		return nil, fmt.Errorf("[Server New] unknown response style %q", s.responseStyle)
	}

	if s.env == "DEV" {
		if err := s.InitialiseSystem(); err != nil {
			return nil, fmt.Errorf("[Server New] Failed to initialise the system: %w", err)
		}
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Issuer exposes the token issuer, mainly so tests can mint tokens
func (s *Server) Issuer() *token.Issuer {
	return s.issuer
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Debug().Msgf("[%s] %s", methodColor(method).Sprintf(" %-7s", method), path)
}
