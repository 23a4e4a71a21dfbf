package token_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func freezeTime(t *testing.T, now time.Time) {
	t.Helper()
	prev := token.NowTimeFunc
	token.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { token.NowTimeFunc = prev })
}

// unsignedToken builds a compact JWT whose payload is the JSON encoding of
// claims. The signature segment is junk; the inspector never checks it.
func unsignedToken(t *testing.T, claims any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func TestDecode(t *testing.T) {
	raw := unsignedToken(t, map[string]any{"sub": "42", "exp": 1700000000})

	claims, ok := token.Decode(raw)
	require.True(t, ok)
	assert.Equal(t, "42", claims["sub"])
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":              "",
		"opaque":             "abc.def.ghi",
		"two segments":       "abc.def",
		"four segments":      "a.b.c.d",
		"not base64":         "a.!!!.c",
		"payload not json":   "a." + base64.RawURLEncoding.EncodeToString([]byte("hello")) + ".c",
		"payload not object": "a." + base64.RawURLEncoding.EncodeToString([]byte(`[1,2]`)) + ".c",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := token.Decode(raw)
			assert.False(t, ok)
		})
	}
}

func TestIsExpired(t *testing.T) {
	freezeTime(t, fixedNow)

	cases := []struct {
		name    string
		raw     string
		expired bool
	}{
		{"past", unsignedToken(t, map[string]any{"exp": fixedNow.Add(-time.Minute).Unix()}), true},
		{"future", unsignedToken(t, map[string]any{"exp": fixedNow.Add(time.Hour).Unix()}), false},
		{"exactly now", unsignedToken(t, map[string]any{"exp": fixedNow.Unix()}), true},
		{"one second left", unsignedToken(t, map[string]any{"exp": fixedNow.Add(time.Second).Unix()}), false},
		{"no exp claim", unsignedToken(t, map[string]any{"sub": "1"}), true},
		{"exp is a string", unsignedToken(t, map[string]any{"exp": "tomorrow"}), true},
		{"malformed", "abc.def.ghi", true},
		{"empty", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expired, token.IsExpired(tc.raw))
		})
	}
}

func TestExpiryMillisecondComparison(t *testing.T) {
	exp := fixedNow.Add(time.Minute)
	raw := unsignedToken(t, map[string]any{"exp": exp.Unix()})

	freezeTime(t, exp.Add(-time.Millisecond))
	assert.False(t, token.IsExpired(raw))

	freezeTime(t, exp)
	assert.True(t, token.IsExpired(raw))
}

func TestExpiry(t *testing.T) {
	exp := fixedNow.Add(2 * time.Hour)
	got, ok := token.Expiry(unsignedToken(t, map[string]any{"exp": exp.Unix()}))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = token.Expiry("abc.def.ghi")
	assert.False(t, ok)
}

func TestIssuerRoundTrip(t *testing.T) {
	freezeTime(t, time.Now())
	issuer := token.NewIssuer(token.NewKeyring("secret"), "food-delivery-test", time.Hour)

	user := users.User{ID: users.NumericID(7), Username: "alice", Email: "alice@example.com", Role: users.RoleDriver}
	raw, err := issuer.CreateAccessToken(user)
	require.NoError(t, err)
	assert.False(t, token.IsExpired(raw))

	claims, err := issuer.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, users.RoleDriver, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestIssuerRejectsForeignSignature(t *testing.T) {
	issuer := token.NewIssuer(token.NewKeyring("secret"), "food-delivery-test", time.Hour)
	other := token.NewIssuer(token.NewKeyring("other"), "food-delivery-test", time.Hour)

	raw, err := other.CreateAccessToken(users.User{ID: users.NumericID(1)})
	require.NoError(t, err)

	_, err = issuer.Verify(raw)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)
}

func TestIssuerRejectsExpired(t *testing.T) {
	issuer := token.NewIssuer(token.NewKeyring("secret"), "food-delivery-test", time.Minute)

	freezeTime(t, time.Now().Add(-time.Hour))
	raw, err := issuer.CreateAccessToken(users.User{ID: users.NumericID(1)})
	require.NoError(t, err)

	freezeTime(t, time.Now())
	_, err = issuer.Verify(raw)
	require.ErrorIs(t, err, autherrors.ErrTokenExpired)
}

func TestIssuerRejectsOtherAlgorithms(t *testing.T) {
	issuer := token.NewIssuer(token.NewKeyring("secret"), "food-delivery-test", time.Hour)

	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.MapClaims{
		"iss": "food-delivery-test",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Verify(raw)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)
}

func TestIssuerAcceptsRetiredSecret(t *testing.T) {
	old := token.NewIssuer(token.NewKeyring("old-secret"), "food-delivery-test", time.Hour)
	raw, err := old.CreateAccessToken(users.User{ID: users.NumericID(3)})
	require.NoError(t, err)

	rotated := token.NewIssuer(token.NewKeyring("new-secret", "old-secret"), "food-delivery-test", time.Hour)
	claims, err := rotated.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "3", claims.Subject)

	fresh, err := rotated.CreateAccessToken(users.User{ID: users.NumericID(3)})
	require.NoError(t, err)
	_, err = old.Verify(fresh)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)

	retired := token.NewIssuer(token.NewKeyring("new-secret"), "food-delivery-test", time.Hour)
	_, err = retired.Verify(raw)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)
}

func TestIssuerStampsKeyID(t *testing.T) {
	keys := token.NewKeyring("secret", "", "older")
	issuer := token.NewIssuer(keys, "food-delivery-test", time.Hour)

	raw, err := issuer.CreateAccessToken(users.User{ID: users.NumericID(1)})
	require.NoError(t, err)

	parsed, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	require.NoError(t, err)
	assert.Equal(t, keys.CurrentKeyID(), parsed.Header["kid"])
	assert.Len(t, keys.CurrentKeyID(), 8)
}
