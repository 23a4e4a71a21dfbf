// Package identity runs the third-party sign-in flow: OpenID Connect
// authorization code with PKCE, ending in a verified ID token that the
// backend exchanges for an application session.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"golang.org/x/oauth2"
)

var (
	ErrNotConfigured = errors.New("identity provider not configured")
	ErrStateMismatch = errors.New("state parameter does not match")
	ErrNonceMismatch = errors.New("nonce does not match")
	ErrNoIDToken     = errors.New("no id_token in token response")
)

// Provider is an OIDC relying party
type Provider struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// Pending is the state of one sign-in attempt, kept between Begin and
// Complete.
type Pending struct {
	State        string
	Nonce        string
	CodeVerifier string
	RedirectURL  string
}

// NewProvider discovers the issuer configured in cfg
func NewProvider(ctx context.Context, cfg config.IdentityConfig) (*Provider, error) {
	if cfg.GetOIDCIssuer() == "" || cfg.GetOIDCClientID() == "" {
		return nil, ErrNotConfigured
	}

	provider, err := oidc.NewProvider(ctx, cfg.GetOIDCIssuer())
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return &Provider{
		oauth: oauth2.Config{
			ClientID:     cfg.GetOIDCClientID(),
			ClientSecret: cfg.GetOIDCClientSecret(),
			Endpoint:     provider.Endpoint(),
			Scopes:       cfg.GetOIDCScopes(),
		},
		verifier: provider.Verifier(&oidc.Config{
			ClientID: cfg.GetOIDCClientID(),
		}),
	}, nil
}

// Begin starts an attempt that will return to redirectURL
func (p *Provider) Begin(redirectURL string) (string, Pending) {
	pending := Pending{
		State:        generateRandomString(32),
		Nonce:        generateRandomString(32),
		CodeVerifier: oauth2.GenerateVerifier(),
		RedirectURL:  redirectURL,
	}

	cfg := p.oauth
	cfg.RedirectURL = redirectURL
	authURL := cfg.AuthCodeURL(pending.State,
		oidc.Nonce(pending.Nonce),
		oauth2.S256ChallengeOption(pending.CodeVerifier),
	)
	return authURL, pending
}

// Complete exchanges the authorization code and returns the verified raw
// ID token.
func (p *Provider) Complete(ctx context.Context, pending Pending, code, state string) (string, error) {
	if state == "" || state != pending.State {
		return "", ErrStateMismatch
	}

	cfg := p.oauth
	cfg.RedirectURL = pending.RedirectURL
	oauth2Token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(pending.CodeVerifier))
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", ErrNoIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", fmt.Errorf("ID token verification failed: %w", err)
	}

	var claims struct {
		Nonce string `json:"nonce"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("failed to extract claims: %w", err)
	}
	if claims.Nonce != pending.Nonce {
		return "", ErrNonceMismatch
	}

	return rawIDToken, nil
}

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
