package auth

import (
	"fmt"
	"net/mail"
	"strings"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
)

// Validator checks requests locally before they are sent to the backend
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateCredentials only checks presence; the backend judges the password
func (v *Validator) ValidateCredentials(c Credentials) error {
	if strings.TrimSpace(c.Username) == "" {
		return autherrors.Wrapf(autherrors.ErrInvalidRequest, "username is required")
	}
	if c.Password == "" {
		return autherrors.Wrapf(autherrors.ErrInvalidRequest, "password is required")
	}
	return nil
}

func (v *Validator) ValidateRegistration(r Registration) error {
	if strings.TrimSpace(r.Username) == "" {
		return autherrors.Wrapf(autherrors.ErrInvalidRequest, "username is required")
	}
	if err := v.ValidateEmail(r.Email); err != nil {
		return err
	}
	if err := users.ValidatePasswordStrength(r.Password); err != nil {
		return autherrors.Wrapf(autherrors.ErrInvalidRequest, "%s", err.Error())
	}
	if r.ConfirmPassword != "" && r.ConfirmPassword != r.Password {
		return ErrPasswordsDontMatch
	}
	if r.Role != "" {
		if _, ok := users.ParseRole(string(r.Role)); !ok {
			return autherrors.Wrapf(autherrors.ErrInvalidRequest, "unknown role %q", r.Role)
		}
	}
	return nil
}

func (v *Validator) ValidateEmail(email string) error {
	if email == "" {
		return autherrors.Wrapf(autherrors.ErrInvalidRequest, "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return autherrors.Wrapf(autherrors.ErrInvalidRequest, "invalid email %q", email)
	}
	return nil
}

// ValidateProviderToken requires a JWT shaped token. Its signature is the
// backend's concern.
func (v *Validator) ValidateProviderToken(raw string) error {
	if raw == "" {
		return autherrors.Wrapf(autherrors.ErrInvalidRequest, "provider token is required")
	}
	if _, ok := token.Decode(raw); !ok {
		return fmt.Errorf("provider token is not a JWT: %w", autherrors.ErrInvalidToken)
	}
	return nil
}
