package token

import (
	"crypto/sha256"
	"encoding/hex"

	jwtlib "github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
)

// Keyring holds the HS256 secrets the dev backend accepts. New tokens are
// signed with the current secret; tokens signed with a retired secret keep
// verifying until they expire, so JWT_SECRET can rotate without logging
// everyone out.
type Keyring struct {
	current string
	keys    map[string][]byte
}

// NewKeyring signs with current and also verifies with previous. Empty
// secrets are ignored.
func NewKeyring(current string, previous ...string) *Keyring {
	k := &Keyring{keys: make(map[string][]byte)}
	k.current = k.add(current)
	for _, secret := range previous {
		if secret != "" {
			k.add(secret)
		}
	}
	return k
}

// keyID is derived from the secret so every process sharing a secret agrees
// on its kid without extra configuration.
func keyID(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:4])
}

func (k *Keyring) add(secret string) string {
	kid := keyID([]byte(secret))
	k.keys[kid] = []byte(secret)
	return kid
}

// CurrentKeyID is the kid stamped on newly signed tokens
func (k *Keyring) CurrentKeyID() string {
	return k.current
}

func (k *Keyring) sign(claims jwtlib.MapClaims) (string, error) {
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	tok.Header["kid"] = k.current
	return tok.SignedString(k.keys[k.current])
}

// verificationKey is a jwt.Keyfunc. Tokens without a kid are checked
// against the current secret.
func (k *Keyring) verificationKey(tok *jwtlib.Token) (any, error) {
	kid, _ := tok.Header["kid"].(string)
	if kid == "" {
		kid = k.current
	}
	secret, ok := k.keys[kid]
	if !ok {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidToken, "unknown key id %q", kid)
	}
	return secret, nil
}
