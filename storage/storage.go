package storage

import (
	"context"
	"errors"
	"strings"
)

// Well-known keys.
const (
	KeyCart              = "cart"
	KeyUserInfo          = "userInfo"
	KeySessionExpiration = "sessionExpiration"
)

// MaxKeyLength is the maximum allowed length for a storage key.
const MaxKeyLength = 256

// Sentinel errors for storage operations.
var (
	ErrInvalidKey = errors.New("storage: key is invalid")
	ErrClosed     = errors.New("storage: store is closed")
)

// Storage is a durable key/value store.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Get returns (nil, false, nil) on a miss; errors are reserved for I/O failures.
// - Set overwrites the whole value; Delete is idempotent.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ValidateKey checks if a key is usable.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" || len(key) > MaxKeyLength {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
