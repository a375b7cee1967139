package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The server verifies tokens; the client only uses exp to end the session
// no later than the token stops working. ok is false when the token has no
// exp claim.
func TokenExpiry(token string) (exp time.Time, ok bool, err error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return time.Time{}, false, fmt.Errorf("%w: empty", ErrTokenMalformed)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	expiry, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	if expiry == nil {
		return time.Time{}, false, nil
	}
	return expiry.Time, true, nil
}

// IsJWT reports whether token has the three dot-separated segments of a JWT.
func IsJWT(token string) bool {
	return strings.Count(token, ".") == 2
}
