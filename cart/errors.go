package cart

import "errors"

// Sentinel errors for cart operations.
var (
	ErrInvalidProduct     = errors.New("cart: product is invalid")
	ErrOutOfStock         = errors.New("cart: product is out of stock")
	ErrQuantityOutOfRange = errors.New("cart: quantity out of range")
	ErrUnknownAction      = errors.New("cart: unknown action")
	ErrPersist            = errors.New("cart: failed to persist state")
)
