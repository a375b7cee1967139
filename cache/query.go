package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/storefront/observe"
)

// Cache event names reported through observe.Metrics.
const (
	EventHit        = "hit"
	EventMiss       = "miss"
	EventJoin       = "join"
	EventRefetch    = "refetch"
	EventInvalidate = "invalidate"
	EventDiscard    = "discard"
	EventEvict      = "evict"
)

// QueryCache caches query results by key and tracks their subscribers.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Dedupe: at most one fetch per key is in flight for callers to join; a
//     refetch issued by invalidation supersedes older fetches, whose results
//     are discarded.
//   - Errors: fetch errors are recorded on the entry and returned to callers;
//     they never become a cached success and are not retried.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group

	keyer   Keyer
	policy  Policy
	logger  observe.Logger
	metrics observe.Metrics
	baseCtx context.Context
	now     func() time.Time
}

type entry struct {
	key        string
	endpoint   string
	tags       []string
	keepUnused time.Duration

	fetch FetchFunc
	call  func() (any, error)
	gen   uint64 // last issued fetch

	resultGen uint64 // fetch that produced payload or err

	status     Status
	payload    any
	err        error
	stale      bool
	fetching   bool
	updatedAt  time.Time
	lastAccess time.Time

	subs  map[*Subscription]struct{}
	evict *time.Timer
}

// Option configures a QueryCache.
type Option func(*QueryCache)

// WithPolicy sets the eviction policy. Default: DefaultPolicy().
func WithPolicy(p Policy) Option {
	return func(c *QueryCache) { c.policy = p }
}

// WithKeyer sets the key derivation. Default: DefaultKeyer.
func WithKeyer(k Keyer) Option {
	return func(c *QueryCache) {
		if k != nil {
			c.keyer = k
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(c *QueryCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observe.Metrics) Option {
	return func(c *QueryCache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithBaseContext sets the context used for refetches triggered by
// invalidation. Cancelling it does not cancel fetches already running.
func WithBaseContext(ctx context.Context) Option {
	return func(c *QueryCache) {
		if ctx != nil {
			c.baseCtx = ctx
		}
	}
}

// WithClock sets the time source for UpdatedAt and LastAccess.
// Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *QueryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty QueryCache.
func New(opts ...Option) *QueryCache {
	c := &QueryCache{
		entries: make(map[string]*entry),
		keyer:   NewDefaultKeyer(),
		policy:  DefaultPolicy(),
		logger:  observe.NopLogger(),
		metrics: observe.NopMetrics(),
		baseCtx: context.Background(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(observe.F("component", "query_cache"))
	return c
}

// Subscribe attaches a subscriber to the entry for req, creating it if
// needed and cancelling any pending eviction. It does not fetch; call
// Result. listener may be nil.
func (c *QueryCache) Subscribe(req Request, fetch FetchFunc, listener Listener) (*Subscription, error) {
	if fetch == nil {
		return nil, ErrNilFunc
	}
	key, err := c.keyer.Key(req.Endpoint, req.Params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key]
	if e == nil {
		e = &entry{
			key:      key,
			endpoint: req.Endpoint,
			subs:     make(map[*Subscription]struct{}),
		}
		c.entries[key] = e
	}
	e.fetch = fetch
	if len(req.Tags) > 0 {
		e.tags = slices.Clone(req.Tags)
	}
	e.keepUnused = c.policy.EffectiveKeepUnused(req.KeepUnusedFor)
	e.lastAccess = c.now()
	if e.evict != nil {
		e.evict.Stop()
		e.evict = nil
	}

	sub := &Subscription{cache: c, entry: e, listener: listener}
	e.subs[sub] = struct{}{}
	return sub, nil
}

// Query subscribes, waits for a result and closes the subscription, leaving
// the entry to the grace window.
func (c *QueryCache) Query(ctx context.Context, req Request, fetch FetchFunc) (CachedQuery, error) {
	sub, err := c.Subscribe(req, fetch, nil)
	if err != nil {
		return CachedQuery{}, err
	}
	defer sub.Close()
	return sub.Result(ctx)
}

// Peek returns the current entry for req without fetching.
func (c *QueryCache) Peek(req Request) (CachedQuery, bool) {
	key, err := c.keyer.Key(req.Endpoint, req.Params)
	if err != nil {
		return CachedQuery{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return CachedQuery{}, false
	}
	return e.snapshot(), true
}

// Len returns the number of entries held, including ones awaiting eviction.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Invalidate marks every entry carrying any of tags as stale. Entries with
// subscribers are refetched immediately and their listeners receive the new
// result; the rest refetch on next read. It returns the number of entries
// marked.
func (c *QueryCache) Invalidate(tags ...string) int {
	if len(tags) == 0 {
		return 0
	}

	c.mu.Lock()
	marked := 0
	for _, e := range c.entries {
		if !e.hasAnyTag(tags) {
			continue
		}
		e.stale = true
		marked++
		if len(e.subs) > 0 {
			c.issueLocked(c.baseCtx, e)
			c.metrics.RecordCacheEvent(c.baseCtx, EventRefetch)
		}
	}
	c.mu.Unlock()

	if marked > 0 {
		c.metrics.RecordCacheEvent(c.baseCtx, EventInvalidate)
		c.logger.Debug(c.baseCtx, "tags invalidated", observe.F("tags", tags), observe.F("entries", marked))
	}
	return marked
}

// Mutate runs a one-shot write. Its result is never cached. On success the
// given tags are invalidated; on error nothing is.
func (c *QueryCache) Mutate(ctx context.Context, tags []string, fn MutateFunc) (any, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	result, err := fn(ctx)
	if err != nil {
		return result, err
	}
	c.Invalidate(tags...)
	return result, nil
}

// Reset drops every entry. Subscribed entries are kept but returned to idle,
// their listeners are notified, and in-flight results are discarded.
func (c *QueryCache) Reset() {
	type delivery struct {
		subs []*Subscription
		snap CachedQuery
	}
	var deliveries []delivery

	c.mu.Lock()
	for key, e := range c.entries {
		if e.evict != nil {
			e.evict.Stop()
			e.evict = nil
		}
		c.group.Forget(key)
		e.gen++
		if len(e.subs) == 0 {
			delete(c.entries, key)
			continue
		}
		e.status = StatusIdle
		e.payload = nil
		e.err = nil
		e.stale = false
		e.fetching = false
		deliveries = append(deliveries, delivery{subs: e.subscribers(), snap: e.snapshot()})
	}
	c.mu.Unlock()

	for _, d := range deliveries {
		for _, s := range d.subs {
			s.deliver(d.snap)
		}
	}
}

func (c *QueryCache) result(ctx context.Context, s *Subscription) (CachedQuery, error) {
	e := s.entry
	for {
		if s.closed.Load() {
			return CachedQuery{}, ErrSubscriptionClosed
		}

		c.mu.Lock()
		e.lastAccess = c.now()
		if e.status == StatusSuccess && !e.stale {
			snap := e.snapshot()
			c.mu.Unlock()
			c.metrics.RecordCacheEvent(ctx, EventHit)
			return snap, nil
		}

		var ch <-chan singleflight.Result
		if e.fetching {
			ch = c.group.DoChan(e.key, e.call)
			c.metrics.RecordCacheEvent(ctx, EventJoin)
		} else {
			ch = c.issueLocked(ctx, e)
			c.metrics.RecordCacheEvent(ctx, EventMiss)
		}
		gen := e.gen
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return CachedQuery{}, ctx.Err()
		case <-ch:
		}

		c.mu.Lock()
		if e.gen != gen {
			// Superseded while waiting; follow the newest fetch.
			c.mu.Unlock()
			continue
		}
		snap := e.snapshot()
		c.mu.Unlock()

		if snap.Status == StatusError {
			return snap, snap.Err
		}
		return snap, nil
	}
}

// issueLocked starts a new fetch generation for e. Caller holds c.mu.
func (c *QueryCache) issueLocked(ctx context.Context, e *entry) <-chan singleflight.Result {
	e.gen++
	gen := e.gen
	e.fetching = true
	if e.status != StatusSuccess {
		e.status = StatusLoading
	}

	fetch := e.fetch
	fetchCtx := context.WithoutCancel(ctx)
	e.call = func() (any, error) {
		payload, err := fetch(fetchCtx)
		c.complete(e, gen, payload, err)
		return payload, err
	}

	// The previous call, if any, is superseded; new joiners must not attach to it.
	c.group.Forget(e.key)
	return c.group.DoChan(e.key, e.call)
}

// complete applies a fetch result if it belongs to the latest generation.
func (c *QueryCache) complete(e *entry, gen uint64, payload any, err error) {
	c.mu.Lock()
	if c.entries[e.key] != e || e.gen != gen {
		c.mu.Unlock()
		c.metrics.RecordCacheEvent(c.baseCtx, EventDiscard)
		c.logger.Debug(c.baseCtx, "discarding superseded result", observe.F("key", e.key))
		return
	}

	e.fetching = false
	e.resultGen = gen
	e.updatedAt = c.now()
	if err != nil {
		e.status = StatusError
		e.err = err
	} else {
		e.status = StatusSuccess
		e.payload = payload
		e.err = nil
		e.stale = false
	}
	snap := e.snapshot()
	subs := e.subscribers()
	c.mu.Unlock()

	if err != nil {
		c.logger.Debug(c.baseCtx, "query failed", observe.F("endpoint", e.endpoint), observe.F("error", err))
	}
	for _, s := range subs {
		s.deliver(snap)
	}
}

func (c *QueryCache) detach(s *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := s.entry
	delete(e.subs, s)
	if len(e.subs) > 0 || c.entries[e.key] != e {
		return
	}
	if e.keepUnused <= 0 {
		c.evictLocked(e)
		return
	}

	var t *time.Timer
	t = time.AfterFunc(e.keepUnused, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if e.evict == t && len(e.subs) == 0 && c.entries[e.key] == e {
			c.evictLocked(e)
		}
	})
	e.evict = t
}

func (c *QueryCache) evictLocked(e *entry) {
	delete(c.entries, e.key)
	e.evict = nil
	c.metrics.RecordCacheEvent(c.baseCtx, EventEvict)
	c.logger.Debug(c.baseCtx, "entry evicted", observe.F("key", e.key))
}

func (e *entry) hasAnyTag(tags []string) bool {
	for _, t := range tags {
		if slices.Contains(e.tags, t) {
			return true
		}
	}
	return false
}

func (e *entry) subscribers() []*Subscription {
	subs := make([]*Subscription, 0, len(e.subs))
	for s := range e.subs {
		subs = append(subs, s)
	}
	return subs
}

func (e *entry) snapshot() CachedQuery {
	return CachedQuery{
		Key:        e.key,
		Endpoint:   e.endpoint,
		Status:     e.status,
		Payload:    e.payload,
		Err:        e.err,
		Tags:       slices.Clone(e.tags),
		Stale:      e.stale,
		Fetching:   e.fetching,
		Generation: e.resultGen,
		UpdatedAt:  e.updatedAt,
		LastAccess: e.lastAccess,
	}
}

// Subscription is one attached reader of a cache entry, such as a mounted
// view.
//
// Contract:
//   - Close detaches; after Close returns no new listener call starts and
//     Result returns ErrSubscriptionClosed.
//   - Listener calls for one subscription never run concurrently.
type Subscription struct {
	cache    *QueryCache
	entry    *entry
	listener Listener

	closed    atomic.Bool
	deliverMu sync.Mutex
}

// Key returns the cache key of the subscribed entry.
func (s *Subscription) Key() string {
	return s.entry.key
}

// Result returns the entry, fetching when it is idle, stale or failed and
// joining the in-flight fetch when one is running.
func (s *Subscription) Result(ctx context.Context) (CachedQuery, error) {
	return s.cache.result(ctx, s)
}

// Snapshot returns the entry as it is now, without fetching.
func (s *Subscription) Snapshot() CachedQuery {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	return s.entry.snapshot()
}

// Close detaches the subscription. Idempotent.
func (s *Subscription) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.cache.detach(s)
}

func (s *Subscription) deliver(q CachedQuery) {
	if s.listener == nil {
		return
	}
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.closed.Load() {
		return
	}
	s.listener(q)
}

// Fetch runs a typed query through c.
func Fetch[T any](ctx context.Context, c *QueryCache, req Request, fetch func(context.Context) (T, error)) (T, error) {
	q, err := c.Query(ctx, req, func(ctx context.Context) (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return Payload[T](q)
}

// Payload extracts a typed payload from q.
func Payload[T any](q CachedQuery) (T, error) {
	v, ok := q.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s holds %T", ErrPayloadType, q.Endpoint, q.Payload)
	}
	return v, nil
}
