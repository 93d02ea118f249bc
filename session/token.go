package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry peeks at a JWT's exp claim without verifying the
// signature. Verification is the backend's job; this only lets the
// restore path skip a round-trip that cannot succeed. Returns false
// for opaque or claimless tokens.
func tokenExpiry(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
