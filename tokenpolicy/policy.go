// Package tokenpolicy decides, from a bearer token's unverified claims, when
// the client should treat a token as expired, proactively refresh it, or
// consider the whole session inactive.
//
// Decoding here never verifies a signature. The server independently
// re-validates every protected call, so these decisions only ever gate
// client-side UX timing (silent refresh, logged-in rendering) and can never
// grant access.
package tokenpolicy

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	// RefreshThreshold is how close to expiry an access token may get before
	// the controller refreshes it proactively, avoiding a failed-request
	// round trip.
	RefreshThreshold = 5 * time.Minute

	// SessionTimeout is the fixed inactivity window after which a session is
	// considered expired regardless of token validity.
	SessionTimeout = 30 * time.Minute
)

// UnverifiedClaims holds claims decoded without signature verification. The
// distinct type keeps these advisory values from ever being passed where a
// verified identity is expected.
type UnverifiedClaims struct {
	ExpiresAt time.Time      // zero when the token carries no exp claim
	Subject   string         // sub claim, when present
	Raw       jwtlib.MapClaims
}

// DecodeClaims splits the token, base64url-decodes the payload segment and
// parses it as a claims record. It returns nil on any malformed input (wrong
// segment count, decode failure, parse failure) and never panics.
func DecodeClaims(rawToken string) *UnverifiedClaims {
	if strings.TrimSpace(rawToken) == "" {
		return nil
	}
	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil
	}
	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil
	}
	decoded := &UnverifiedClaims{Raw: claims}
	if exp, ok := claims["exp"].(float64); ok {
		decoded.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if sub, ok := claims["sub"].(string); ok {
		decoded.Subject = sub
	}
	return decoded
}

// IsExpired reports whether the token is past its expiry. Undecodable tokens
// and tokens without an expiry count as expired.
func IsExpired(rawToken string) bool {
	claims := DecodeClaims(rawToken)
	if claims == nil || claims.ExpiresAt.IsZero() {
		return true
	}
	return !claims.ExpiresAt.After(NowTimeFunc())
}

// ShouldRefresh reports whether the remaining time-to-expiry is below the
// refresh threshold. Undecodable tokens always qualify for a refresh attempt.
func ShouldRefresh(rawToken string) bool {
	claims := DecodeClaims(rawToken)
	if claims == nil || claims.ExpiresAt.IsZero() {
		return true
	}
	return claims.ExpiresAt.Before(NowTimeFunc().Add(RefreshThreshold))
}

// IsSessionExpired reports whether the elapsed time since the last recorded
// activity exceeds the timeout. A zero lastActivity means no activity was
// ever recorded and counts as expired. A non-positive timeout falls back to
// SessionTimeout.
func IsSessionExpired(lastActivity time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = SessionTimeout
	}
	if lastActivity.IsZero() {
		return true
	}
	return NowTimeFunc().Sub(lastActivity) > timeout
}
