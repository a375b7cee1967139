package cache

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
)

// MaxEndpointLength is the maximum allowed length for an endpoint name.
const MaxEndpointLength = 128

// Sentinel errors for cache operations.
var (
	ErrInvalidEndpoint    = errors.New("cache: endpoint is invalid")
	ErrSubscriptionClosed = errors.New("cache: subscription is closed")
	ErrPayloadType        = errors.New("cache: unexpected payload type")
	ErrNilFunc            = errors.New("cache: func is nil")
)

// Status is the lifecycle state of a cached query.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// FetchFunc performs the network read for a query.
type FetchFunc func(ctx context.Context) (any, error)

// MutateFunc performs a one-shot write.
type MutateFunc func(ctx context.Context) (any, error)

// Listener receives a snapshot whenever a subscribed entry changes.
type Listener func(CachedQuery)

// Request identifies a query.
type Request struct {
	// Endpoint names the API operation, e.g. "getProducts".
	Endpoint string

	// Params are compared by content; map and field order are irrelevant.
	Params any

	// Tags attached to the result for invalidation.
	Tags []string

	// KeepUnusedFor overrides the policy grace window when positive.
	KeepUnusedFor time.Duration
}

// CachedQuery is a point-in-time view of a cache entry.
//
// Payload is shared between all holders of the entry and must be treated as
// read-only.
type CachedQuery struct {
	Key      string
	Endpoint string
	Status   Status
	Payload  any
	Err      error
	Tags     []string
	Stale    bool
	Fetching bool

	// Generation identifies the fetch that produced Payload or Err. It
	// grows with every applied result of the entry; zero means none yet.
	Generation uint64

	UpdatedAt  time.Time
	LastAccess time.Time
}

// HasTag reports whether the entry carries tag.
func (q CachedQuery) HasTag(tag string) bool {
	return slices.Contains(q.Tags, tag)
}

// ValidateEndpoint checks if an endpoint name is usable in a key.
func ValidateEndpoint(endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return ErrInvalidEndpoint
	}
	if len(endpoint) > MaxEndpointLength || strings.ContainsAny(endpoint, "\n\r:") {
		return ErrInvalidEndpoint
	}
	return nil
}
