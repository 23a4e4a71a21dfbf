// Package token inspects bearer tokens locally and issues the dev backend's
// access tokens.
package token

import (
	"encoding/json"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Decode returns the claims of a JWT's payload segment without verifying
// the signature. Anything that is not three dot separated segments with a
// base64url JSON object in the middle yields false.
func Decode(raw string) (jwtlib.MapClaims, bool) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil, false
	}

	payload, err := jwtlib.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return nil, false
	}

	claims := jwtlib.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, false
	}
	return claims, true
}

// Expiry returns the exp claim of the token
func Expiry(raw string) (time.Time, bool) {
	claims, ok := Decode(raw)
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// IsExpired fails closed: a token whose expiry cannot be read counts as
// expired. The exp claim is in seconds, the comparison is done in
// milliseconds.
func IsExpired(raw string) bool {
	exp, ok := Expiry(raw)
	if !ok {
		return true
	}
	return NowTimeFunc().UnixMilli() >= exp.UnixMilli()
}
