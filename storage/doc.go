// Package storage provides durable client-local key/value storage.
//
// Values are opaque byte slices written as whole-value overwrites, so the last
// write for a key wins. The cart store and the session persist through it.
package storage
