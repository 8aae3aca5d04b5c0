package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the fields the client reads from a session token issued by the API.
type Claims struct {
	BusinessID string `json:"business_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// ParseClaims decodes a token without verifying its signature. The client never
// holds the signing key; it only inspects expiry and subject so it can decide
// whether a stored session is still worth presenting.
func ParseClaims(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, ErrInvalidToken
	}
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// ExpiresAt returns the token expiry, or false when the token is opaque or has no exp.
func ExpiresAt(token string) (time.Time, bool) {
	claims, err := ParseClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether token expires within leeway of now. Opaque tokens are
// never considered expired client-side; the API decides.
func Expired(token string, now time.Time, leeway time.Duration) bool {
	exp, ok := ExpiresAt(token)
	if !ok {
		return false
	}
	return !now.Add(leeway).Before(exp)
}

// SignHS256 issues a token; used by local tooling and tests that stand in for the API.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
