package server

import (
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/jrsteele09/go-auth-session/auth"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/rs/zerolog/log"
)

const (
	MsgInvalidCredentials = "Invalid username or password"
	MsgAccountBlocked     = "This account has been blocked"
	MsgUsernameTaken      = "Username is already taken"
	MsgEmailTaken         = "Email is already registered"
	MsgInvalidBody        = "Invalid request body"
)

// selfRegisterRoles are the roles a new account may ask for
var selfRegisterRoles = []users.RoleType{users.RoleCustomer, users.RoleRestaurantOwner, users.RoleDriver}

const maxBodyBytes = 1 << 20

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// requestMessage drops the wrapped sentinel from a validation error
func requestMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i > 0 {
		msg = msg[:i]
	}
	return msg
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "app": s.config.GetAppName()})
	}
}

// LoginHandler accepts a username or email plus password
func (s *Server) LoginHandler() http.HandlerFunc {
	validator := auth.NewValidator()
	return func(w http.ResponseWriter, r *http.Request) {
		var credentials auth.Credentials
		if err := decodeBody(r, &credentials); err != nil {
			writeError(w, http.StatusBadRequest, MsgInvalidBody)
			return
		}
		if err := validator.ValidateCredentials(credentials); err != nil {
			s.writeAuthFailure(w, http.StatusBadRequest, requestMessage(err))
			return
		}

		account, err := s.authenticate(credentials)
		if autherrors.Is(err, autherrors.ErrInvalidCredentials) {
			log.Info().Err(err).Msg("Rejected login")
			s.writeAuthFailure(w, http.StatusUnauthorized, MsgInvalidCredentials)
			return
		}
		if err != nil {
			log.Err(err).Str("username", credentials.Username).Msg("Failed to look up account")
			writeError(w, http.StatusInternalServerError, "Failed to sign in")
			return
		}
		if account.Blocked {
			s.writeAuthFailure(w, http.StatusForbidden, MsgAccountBlocked)
			return
		}

		account.LastLogin = token.NowTimeFunc()
		if err := s.users.Upsert(account); err != nil {
			log.Err(err).Str("username", account.Username).Msg("Failed to record last login")
		}
		s.issueSession(w, http.StatusOK, account)
	}
}

// authenticate resolves a username or email and checks the password. Unknown
// users and wrong passwords are both ErrInvalidCredentials.
func (s *Server) authenticate(credentials auth.Credentials) (*users.Account, error) {
	account, err := s.users.GetByUsername(credentials.Username)
	if autherrors.Is(err, autherrors.ErrUserNotFound) {
		account, err = s.users.GetByEmail(credentials.Username)
	}
	if autherrors.Is(err, autherrors.ErrUserNotFound) {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidCredentials, "no account %q", credentials.Username)
	}
	if err != nil {
		return nil, err
	}
	if !users.CheckPasswordHash(credentials.Password, account.PasswordHash) {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidCredentials, "wrong password for %q", account.Username)
	}
	return account, nil
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	validator := auth.NewValidator()
	return func(w http.ResponseWriter, r *http.Request) {
		var registration auth.Registration
		if err := decodeBody(r, &registration); err != nil {
			writeError(w, http.StatusBadRequest, MsgInvalidBody)
			return
		}
		if err := validator.ValidateRegistration(registration); err != nil {
			s.writeAuthFailure(w, http.StatusBadRequest, requestMessage(err))
			return
		}

		role := users.RoleCustomer
		if registration.Role != "" {
			role, _ = users.ParseRole(string(registration.Role))
		}
		if !slices.Contains(selfRegisterRoles, role) {
			s.writeAuthFailure(w, http.StatusForbidden, "Role cannot be self-assigned")
			return
		}

		if _, err := s.users.GetByEmail(registration.Email); err == nil {
			s.writeAuthFailure(w, http.StatusConflict, MsgEmailTaken)
			return
		}

		hash, err := users.HashPassword(registration.Password)
		if err != nil {
			log.Err(err).Msg("Failed to hash password")
			writeError(w, http.StatusInternalServerError, "Failed to create account")
			return
		}

		account := &users.Account{
			User: users.User{
				Username:  strings.TrimSpace(registration.Username),
				Email:     registration.Email,
				FirstName: registration.FirstName,
				LastName:  registration.LastName,
				Role:      role,
			},
			PasswordHash: hash,
			DateJoined:   token.NowTimeFunc(),
			LastLogin:    token.NowTimeFunc(),
		}
		if err := s.users.Upsert(account); err != nil {
			if autherrors.Is(err, autherrors.ErrUserExists) {
				s.writeAuthFailure(w, http.StatusConflict, MsgUsernameTaken)
				return
			}
			log.Err(err).Msg("Failed to create account")
			writeError(w, http.StatusInternalServerError, "Failed to create account")
			return
		}

		log.Info().Str("username", account.Username).Str("role", string(role)).Msg("Registered account")
		s.issueSession(w, http.StatusCreated, account)
	}
}

// ProviderExchangeHandler trades a verified provider token for a session,
// creating a customer account on first sight of the email.
func (s *Server) ProviderExchangeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.providers == nil {
			writeError(w, http.StatusNotImplemented, "Provider sign in is not configured")
			return
		}

		var exchange auth.ProviderExchange
		if err := decodeBody(r, &exchange); err != nil || exchange.ProviderToken == "" {
			writeError(w, http.StatusBadRequest, MsgInvalidBody)
			return
		}

		identity, err := s.providers.VerifyProviderToken(r.Context(), exchange.ProviderToken)
		if err != nil {
			log.Info().Err(err).Msg("Rejected provider token")
			s.writeAuthFailure(w, http.StatusUnauthorized, "")
			return
		}

		account, err := s.users.GetByEmail(identity.Email)
		if autherrors.Is(err, autherrors.ErrUserNotFound) {
			account = &users.Account{
				User: users.User{
					Username:  identity.Email,
					Email:     identity.Email,
					FirstName: identity.FirstName,
					LastName:  identity.LastName,
					Role:      users.RoleCustomer,
				},
				DateJoined: token.NowTimeFunc(),
			}
			err = s.users.Upsert(account)
		}
		if err != nil {
			log.Err(err).Str("email", identity.Email).Msg("Failed to resolve provider account")
			writeError(w, http.StatusInternalServerError, "Failed to create session")
			return
		}
		if account.Blocked {
			s.writeAuthFailure(w, http.StatusForbidden, MsgAccountBlocked)
			return
		}
		s.issueSession(w, http.StatusOK, account)
	}
}

// LogoutHandler revokes the presented token
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		if err := s.loginSessions.Delete(claims.ID); err != nil {
			log.Err(err).Str("jti", claims.ID).Msg("Failed to revoke login session")
			writeError(w, http.StatusInternalServerError, "Failed to sign out")
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Signed out"})
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		account, err := s.users.GetByID(users.StringID(claims.Subject))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Account no longer exists")
			return
		}
		writeResult(w, http.StatusOK, account)
	}
}

type overview struct {
	Accounts int                    `json:"accounts"`
	Blocked  int                    `json:"blocked"`
	ByRole   map[users.RoleType]int `json:"byRole"`
}

func (s *Server) AdminOverviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const pageSize = 100
		result := overview{ByRole: make(map[users.RoleType]int)}
		for offset := 0; ; offset += pageSize {
			page, err := s.users.List(offset, pageSize)
			if err != nil {
				log.Err(err).Msg("Failed to list accounts")
				writeError(w, http.StatusInternalServerError, "Failed to load overview")
				return
			}
			for _, account := range page {
				result.Accounts++
				result.ByRole[account.Role]++
				if account.Blocked {
					result.Blocked++
				}
			}
			if len(page) < pageSize {
				break
			}
		}
		writeResult(w, http.StatusOK, result)
	}
}

type passwordCheck struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// ValidatePasswordHandler lets sign up forms check strength before submit
func (s *Server) ValidatePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, MsgInvalidBody)
			return
		}
		if err := users.ValidatePasswordStrength(body.Password); err != nil {
			writeResult(w, http.StatusOK, passwordCheck{Valid: false, Message: err.Error()})
			return
		}
		writeResult(w, http.StatusOK, passwordCheck{Valid: true})
	}
}
