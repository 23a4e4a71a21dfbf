package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-auth-session/internal/config"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/server/loginsession"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/rs/zerolog/log"
)

// apiResponse is the envelope every API route answers with
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// nestedLoginResult is {user, token}
type nestedLoginResult struct {
	User  users.User `json:"user"`
	Token string     `json:"token"`
}

// flatLoginResult is {userId, ..., accessToken, role}
type flatLoginResult struct {
	UserID      users.ID `json:"userId"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	FirstName   string   `json:"firstName,omitempty"`
	LastName    string   `json:"lastName,omitempty"`
	Role        string   `json:"role"`
	AccessToken string   `json:"accessToken"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to encode response")
	}
}

func writeResult(w http.ResponseWriter, status int, result any) {
	writeJSON(w, status, apiResponse{Success: true, Result: result})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Success: false, Message: message})
}

// writeAuthFailure reports a failed login, register or exchange. The flat
// deployment answers 200 with success=false.
func (s *Server) writeAuthFailure(w http.ResponseWriter, status int, message string) {
	if s.responseStyle == ResponseFlat {
		writeError(w, http.StatusOK, message)
		return
	}
	writeError(w, status, message)
}

// issueSession mints an access token for the account, records it as a live
// login session and writes the login result.
func (s *Server) issueSession(w http.ResponseWriter, status int, account *users.Account) {
	raw, err := s.issuer.CreateAccessToken(account.User)
	if err != nil {
		log.Err(err).Str("user", account.Username).Msg("Failed to create access token")
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	claims, err := s.issuer.Verify(raw)
	if err != nil {
		log.Err(err).Msg("Failed to verify freshly issued token")
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	err = s.loginSessions.Upsert(claims.ID, loginsession.Session{
		UserID:    account.ID.String(),
		Username:  account.Username,
		Role:      string(account.Role),
		CreatedAt: token.NowTimeFunc(),
		ExpiresAt: claims.Expiry,
	})
	if err != nil {
		log.Err(err).Msg("Failed to record login session")
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	if s.responseStyle == ResponseFlat {
		writeResult(w, status, flatLoginResult{
			UserID:      account.ID,
			Username:    account.Username,
			Email:       account.Email,
			FirstName:   account.FirstName,
			LastName:    account.LastName,
			Role:        strings.ToUpper(string(account.Role)),
			AccessToken: raw,
		})
		return
	}
	writeResult(w, status, nestedLoginResult{User: account.User, Token: raw})
}

// ProviderIdentity is what the backend learns from a verified provider token
type ProviderIdentity struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
}

// ProviderVerifier checks an identity provider token presented to the
// exchange endpoint.
type ProviderVerifier interface {
	VerifyProviderToken(ctx context.Context, raw string) (ProviderIdentity, error)
}

type providerClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

func (c providerClaims) identity() (ProviderIdentity, error) {
	if c.Email == "" {
		return ProviderIdentity{}, autherrors.Wrapf(autherrors.ErrInvalidToken, "provider token has no email")
	}
	if c.EmailVerified != nil && !*c.EmailVerified {
		return ProviderIdentity{}, autherrors.Wrapf(autherrors.ErrInvalidToken, "provider email %q is not verified", c.Email)
	}
	return ProviderIdentity{Subject: c.Subject, Email: c.Email, FirstName: c.GivenName, LastName: c.FamilyName}, nil
}

// OIDCProviderVerifier checks signature, issuer, audience and expiry
// against the provider's published keys.
type OIDCProviderVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCProviderVerifier(ctx context.Context, cfg config.IdentityConfig) (*OIDCProviderVerifier, error) {
	if cfg.GetOIDCIssuer() == "" || cfg.GetOIDCClientID() == "" {
		return nil, fmt.Errorf("[NewOIDCProviderVerifier] OIDC_ISSUER and OIDC_CLIENT_ID are required")
	}
	provider, err := oidc.NewProvider(ctx, cfg.GetOIDCIssuer())
	if err != nil {
		return nil, fmt.Errorf("[NewOIDCProviderVerifier] discovery failed: %w", err)
	}
	return &OIDCProviderVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.GetOIDCClientID()}),
	}, nil
}

func (v *OIDCProviderVerifier) VerifyProviderToken(ctx context.Context, raw string) (ProviderIdentity, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return ProviderIdentity{}, autherrors.Wrapf(autherrors.ErrInvalidToken, "%v", err)
	}
	var claims providerClaims
	if err := idToken.Claims(&claims); err != nil {
		return ProviderIdentity{}, autherrors.Wrapf(autherrors.ErrInvalidToken, "%v", err)
	}
	return claims.identity()
}

// UnverifiedProviderVerifier trusts the claims of any unexpired JWT. It is
// only wired in DEV when no issuer is configured.
type UnverifiedProviderVerifier struct{}

func (UnverifiedProviderVerifier) VerifyProviderToken(_ context.Context, raw string) (ProviderIdentity, error) {
	decoded, ok := token.Decode(raw)
	if !ok {
		return ProviderIdentity{}, autherrors.ErrInvalidToken
	}
	if token.IsExpired(raw) {
		return ProviderIdentity{}, autherrors.Wrapf(autherrors.ErrTokenExpired, "provider token")
	}

	var claims providerClaims
	claims.Subject, _ = decoded["sub"].(string)
	claims.Email, _ = decoded["email"].(string)
	claims.GivenName, _ = decoded["given_name"].(string)
	claims.FamilyName, _ = decoded["family_name"].(string)
	if verified, ok := decoded["email_verified"].(bool); ok {
		claims.EmailVerified = &verified
	}
	return claims.identity()
}

// NewProviderVerifier picks the OIDC verifier when an issuer is configured,
// the unverified one in DEV, and nothing otherwise.
func NewProviderVerifier(ctx context.Context, cfg config.Config) (ProviderVerifier, error) {
	if cfg.GetOIDCIssuer() != "" {
		verifier, err := NewOIDCProviderVerifier(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return verifier, nil
	}
	if cfg.GetEnv() == "DEV" {
		log.Warn().Msg("OIDC_ISSUER not set: provider tokens are accepted without signature checks")
		return UnverifiedProviderVerifier{}, nil
	}
	return nil, nil
}
