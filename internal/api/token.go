package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned for a bearer JWT whose exp is in the past.
var ErrTokenExpired = errors.New("api token expired")

// TokenInfo is what the dashboard can read from a bearer token without the
// signing key.
type TokenInfo struct {
	JWT       bool
	Subject   string
	ExpiresAt time.Time
}

// InspectToken reads the claims of a JWT bearer token without verifying the
// signature; the backend remains the authority. Opaque tokens are accepted
// as-is.
func InspectToken(token string, now time.Time) (TokenInfo, error) {
	token = strings.TrimSpace(token)
	if token == "" || strings.Count(token, ".") != 2 {
		return TokenInfo{}, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, nil
	}

	info := TokenInfo{JWT: true}
	// The backend issues numeric subjects.
	if sub, ok := claims["sub"]; ok && sub != nil {
		info.Subject = fmt.Sprint(sub)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return info, fmt.Errorf("read token expiry: %w", err)
	}
	if exp != nil {
		info.ExpiresAt = exp.Time
		if !now.Before(info.ExpiresAt) {
			return info, ErrTokenExpired
		}
	}
	return info, nil
}
