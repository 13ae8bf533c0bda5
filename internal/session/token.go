package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryFromToken reads the exp claim of a JWT bearer token without verifying
// its signature. The client cannot verify server tokens; the claim is only
// used to size the local session lifetime. ok is false for opaque tokens.
func ExpiryFromToken(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// TTLFromToken returns the remaining lifetime encoded in token. ok is false
// for opaque tokens. A token whose exp has passed returns a non-positive ttl.
func TTLFromToken(token string, now time.Time) (ttl time.Duration, ok bool) {
	exp, ok := ExpiryFromToken(token)
	if !ok {
		return 0, false
	}
	return exp.Sub(now), true
}
