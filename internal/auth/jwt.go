package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotJWT       = errors.New("token is not a JWT")
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingToken = errors.New("missing token")
)

// Claims holds what the platform puts into notebook auth tokens.
type Claims struct {
	NotebookID string `json:"notebook_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Expired reports whether the token carries an expiry before now.
// Tokens without exp never expire.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return now.After(c.ExpiresAt.Time)
}

// Inspect decodes the claims of token without verifying its signature.
// The bootstrap does not hold the signing key; the sync service does the
// real validation. Opaque tokens return ErrNotJWT.
func Inspect(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if strings.Count(token, ".") != 2 {
		return nil, ErrNotJWT
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerHeader returns request headers carrying token as a bearer credential.
func BearerHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
