package token

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
)

// Claims are the verified claims of an access token issued by Issuer
type Claims struct {
	Subject  string
	Username string
	Email    string
	Role     users.RoleType
	Expiry   time.Time
	ID       string
}

// Issuer creates and verifies the access tokens handed out by the dev backend
type Issuer struct {
	keys   *Keyring
	issuer string
	ttl    time.Duration
}

func NewIssuer(keys *Keyring, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{
		keys:   keys,
		issuer: issuer,
		ttl:    ttl,
	}
}

// CreateAccessToken creates a bearer token for the user
func (i *Issuer) CreateAccessToken(user users.User) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"iss":      i.issuer,
		"sub":      user.ID.String(),
		"username": user.Username,
		"email":    user.Email,
		"role":     string(user.Role), // Platform role used for route gating
		"iat":      now.Unix(),
		"exp":      now.Add(i.ttl).Unix(),
		"jti":      uuid.New().String(),
	}

	signed, err := i.keys.sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, issuer and expiry of a token
func (i *Issuer) Verify(raw string) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(raw, jwtlib.MapClaims{}, i.keys.verificationKey,
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if autherrors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, autherrors.Wrapf(autherrors.ErrTokenExpired, "verify")
		}
		return nil, autherrors.Wrapf(autherrors.ErrInvalidToken, "verify: %v", err)
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok || !parsed.Valid {
		return nil, autherrors.ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	username, _ := claims["username"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	jti, _ := claims["jti"].(string)
	exp, _ := claims.GetExpirationTime()

	c := &Claims{
		Subject:  sub,
		Username: username,
		Email:    email,
		Role:     users.RoleType(role),
		ID:       jti,
	}
	if exp != nil {
		c.Expiry = exp.Time
	}
	return c, nil
}
