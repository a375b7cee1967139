package auth

import "errors"

// Sentinel errors for session and access checks.
var (
	ErrUnauthenticated = errors.New("auth: not signed in")
	ErrForbidden       = errors.New("auth: access denied")
	ErrInvalidUser     = errors.New("auth: user info is invalid")
	ErrTokenMalformed  = errors.New("auth: token malformed")
)
