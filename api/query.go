package api

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/jonwraymond/storefront/cache"
	"github.com/jonwraymond/storefront/observe"
)

// Query describes a cached read returning T. Build one with the
// constructors in this package, e.g. ProductsQuery.
type Query[T any] struct {
	resource string
	endpoint string
	path     string
	query    url.Values
	args     map[string]string
	tags     []string
}

// Endpoint returns the endpoint name used in cache keys.
func (q Query[T]) Endpoint() string { return q.endpoint }

// Request returns the cache request for q.
func (q Query[T]) Request() cache.Request {
	return cache.Request{Endpoint: q.endpoint, Params: q.args, Tags: q.tags}
}

func (q Query[T]) fetcher(c *Client) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var out T
		err := c.read(ctx, request{
			op: observe.OperationMeta{
				Resource: q.resource,
				Name:     q.endpoint,
				Method:   http.MethodGet,
				Path:     q.path,
			},
			path:  q.path,
			query: q.query,
			out:   &out,
		})
		return out, err
	}
}

// Get runs q through the cache of c.
func Get[T any](ctx context.Context, c *Client, q Query[T]) (T, error) {
	return cache.Fetch(ctx, c.cache, q.Request(), q.fetcher(c))
}

// Watch keeps q subscribed until the returned subscription is closed, the
// way a mounted view holds its data. It waits for the first result and
// returns it. listener then receives every later completed fetch, such as
// the refetch after a mutation invalidates one of q's tags. listener is
// never called after Close returns.
func Watch[T any](ctx context.Context, c *Client, q Query[T], listener func(T, error)) (T, *cache.Subscription, error) {
	var zero T
	fetch := q.fetcher(c)

	// Results up to and including the first one are returned, not
	// delivered. A result completing before the first has been handed
	// back is held in pending and delivered afterwards.
	var (
		mu        sync.Mutex
		deliverMu sync.Mutex
		ready     bool
		first     uint64
		pending   *cache.CachedQuery
	)
	emit := func(snap cache.CachedQuery) {
		switch snap.Status {
		case cache.StatusSuccess:
			v, err := cache.Payload[T](snap)
			listener(v, err)
		case cache.StatusError:
			listener(zero, snap.Err)
		}
	}

	sub, err := c.cache.Subscribe(q.Request(),
		func(ctx context.Context) (any, error) {
			v, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		func(snap cache.CachedQuery) {
			if listener == nil || snap.Fetching {
				return
			}
			mu.Lock()
			if !ready {
				if pending == nil || snap.Generation > pending.Generation {
					pending = &snap
				}
				mu.Unlock()
				return
			}
			skip := snap.Generation <= first
			mu.Unlock()
			if !skip {
				deliverMu.Lock()
				emit(snap)
				deliverMu.Unlock()
			}
		})
	if err != nil {
		return zero, nil, err
	}

	snap, err := sub.Result(ctx)
	if err != nil {
		sub.Close()
		return zero, nil, err
	}
	v, err := cache.Payload[T](snap)
	if err != nil {
		sub.Close()
		return zero, nil, err
	}

	// Later deliveries wait on deliverMu, so the held result goes first.
	deliverMu.Lock()
	mu.Lock()
	ready = true
	first = snap.Generation
	held := pending
	pending = nil
	mu.Unlock()
	if held != nil && held.Generation > first {
		emit(*held)
	}
	deliverMu.Unlock()
	return v, sub, nil
}
