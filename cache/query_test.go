package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/storefront/observe"
)

func productsReq(params any) Request {
	return Request{Endpoint: "getProducts", Params: params, Tags: []string{"Products"}}
}

// counter returns a fetch func that counts calls and yields "v<n>".
func counter() (FetchFunc, *atomic.Int32) {
	var n atomic.Int32
	return func(context.Context) (any, error) {
		return fmt.Sprintf("v%d", n.Add(1)), nil
	}, &n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestQueryCache_DedupesConcurrentReads(t *testing.T) {
	c := New()
	defer c.Reset()

	gate := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (any, error) {
		calls.Add(1)
		<-gate
		return "page", nil
	}

	const readers = 10
	var wg sync.WaitGroup
	results := make(chan CachedQuery, readers)
	for i := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Alternate param order; all readers share one key.
			params := map[string]any{"keyword": "x", "pageNumber": 1}
			if i%2 == 0 {
				params = map[string]any{"pageNumber": 1, "keyword": "x"}
			}
			q, err := c.Query(context.Background(), productsReq(params), fetch)
			if err != nil {
				t.Errorf("Query() error = %v", err)
			}
			results <- q
		}()
	}

	waitFor(t, "first fetch", func() bool { return calls.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(results)

	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	for q := range results {
		if q.Status != StatusSuccess || q.Payload != "page" {
			t.Errorf("result = %+v", q)
		}
	}
}

func TestQueryCache_ServesWhileSubscribed(t *testing.T) {
	c := New()
	defer c.Reset()
	fetch, calls := counter()

	sub, err := c.Subscribe(productsReq(nil), fetch, nil)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	for range 3 {
		q, err := sub.Result(context.Background())
		if err != nil || q.Payload != "v1" {
			t.Fatalf("Result() = %v, %v", q.Payload, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", calls.Load())
	}

	// A second subscriber to the same key is served from the entry.
	q, err := c.Query(context.Background(), productsReq(nil), fetch)
	if err != nil || q.Payload != "v1" {
		t.Fatalf("Query() = %v, %v", q.Payload, err)
	}
	if calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", calls.Load())
	}
}

func TestQueryCache_EvictsAfterGraceWindow(t *testing.T) {
	c := New(WithPolicy(Policy{KeepUnusedFor: 30 * time.Millisecond}))
	defer c.Reset()
	fetch, calls := counter()

	if _, err := c.Query(context.Background(), productsReq(nil), fetch); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d right after last detach, want 1", c.Len())
	}

	waitFor(t, "eviction", func() bool { return c.Len() == 0 })

	q, err := c.Query(context.Background(), productsReq(nil), fetch)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if q.Payload != "v2" || calls.Load() != 2 {
		t.Errorf("after eviction payload = %v calls = %d, want v2 and 2", q.Payload, calls.Load())
	}
}

func TestQueryCache_ResubscribeCancelsEviction(t *testing.T) {
	c := New(WithPolicy(Policy{KeepUnusedFor: time.Hour}))
	defer c.Reset()
	fetch, calls := counter()

	_, _ = c.Query(context.Background(), productsReq(nil), fetch)

	sub, _ := c.Subscribe(productsReq(nil), fetch, nil)
	q, err := sub.Result(context.Background())
	if err != nil || q.Payload != "v1" {
		t.Fatalf("Result() = %v, %v", q.Payload, err)
	}
	if calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", calls.Load())
	}

	c.mu.Lock()
	pending := c.entries[sub.Key()].evict
	c.mu.Unlock()
	if pending != nil {
		t.Error("eviction timer still pending while subscribed")
	}
	sub.Close()
}

func TestQueryCache_ZeroWindowEvictsImmediately(t *testing.T) {
	c := New(WithPolicy(Policy{}))
	fetch, calls := counter()

	_, _ = c.Query(context.Background(), productsReq(nil), fetch)
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	_, _ = c.Query(context.Background(), productsReq(nil), fetch)
	if calls.Load() != 2 {
		t.Errorf("fetch calls = %d, want 2", calls.Load())
	}
}

func TestQueryCache_InvalidateRefetchesSubscribed(t *testing.T) {
	c := New()
	defer c.Reset()
	fetch, calls := counter()

	updates := make(chan CachedQuery, 4)
	sub, _ := c.Subscribe(productsReq(nil), fetch, func(q CachedQuery) { updates <- q })
	defer sub.Close()

	if _, err := sub.Result(context.Background()); err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	<-updates

	if n := c.Invalidate("Products"); n != 1 {
		t.Fatalf("Invalidate() marked %d, want 1", n)
	}

	select {
	case q := <-updates:
		if q.Payload != "v2" || q.Stale || q.Status != StatusSuccess {
			t.Errorf("pushed update = %+v", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update pushed after invalidation")
	}
	if calls.Load() != 2 {
		t.Errorf("fetch calls = %d, want 2", calls.Load())
	}
}

func TestQueryCache_GenerationGrowsWithEachResult(t *testing.T) {
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(WithClock(func() time.Time { return frozen }))
	defer c.Reset()
	fetch, _ := counter()

	updates := make(chan CachedQuery, 4)
	sub, _ := c.Subscribe(productsReq(nil), fetch, func(q CachedQuery) { updates <- q })
	defer sub.Close()

	first, err := sub.Result(context.Background())
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if first.Generation == 0 {
		t.Fatal("first result has Generation 0")
	}
	<-updates

	c.Invalidate("Products")
	select {
	case q := <-updates:
		if q.Generation <= first.Generation {
			t.Errorf("refetch Generation = %d, want > %d", q.Generation, first.Generation)
		}
		if !q.UpdatedAt.Equal(first.UpdatedAt) {
			t.Errorf("UpdatedAt = %v, want frozen %v", q.UpdatedAt, first.UpdatedAt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update pushed after invalidation")
	}
}

func TestQueryCache_InvalidateUnsubscribedIsLazy(t *testing.T) {
	c := New(WithPolicy(Policy{KeepUnusedFor: time.Hour}))
	defer c.Reset()
	fetch, calls := counter()

	_, _ = c.Query(context.Background(), productsReq(nil), fetch)
	_, _ = c.Query(context.Background(), Request{Endpoint: "getOrders", Tags: []string{"Orders"}}, fetch)

	if n := c.Invalidate("Products", "Nope"); n != 1 {
		t.Fatalf("Invalidate() marked %d, want 1", n)
	}
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 2 {
		t.Fatalf("unsubscribed entry refetched eagerly: calls = %d", calls.Load())
	}

	peek, ok := c.Peek(productsReq(nil))
	if !ok || !peek.Stale {
		t.Fatalf("Peek() = %+v, %v; want stale entry", peek, ok)
	}

	q, _ := c.Query(context.Background(), productsReq(nil), fetch)
	if q.Payload != "v3" {
		t.Errorf("payload after stale read = %v, want v3", q.Payload)
	}
	if n := c.Invalidate(); n != 0 {
		t.Errorf("Invalidate() with no tags marked %d", n)
	}
}

func TestQueryCache_LastIssuedWins(t *testing.T) {
	c := New()
	defer c.Reset()

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return "old", nil
		}
		return "new", nil
	}

	updates := make(chan CachedQuery, 4)
	sub, _ := c.Subscribe(productsReq(nil), fetch, func(q CachedQuery) { updates <- q })
	defer sub.Close()

	type res struct {
		q   CachedQuery
		err error
	}
	done := make(chan res, 1)
	go func() {
		q, err := sub.Result(context.Background())
		done <- res{q, err}
	}()

	<-started
	c.Invalidate("Products")

	q := <-updates
	if q.Payload != "new" {
		t.Fatalf("first applied payload = %v, want new", q.Payload)
	}

	close(release)
	r := <-done
	if r.err != nil || r.q.Payload != "new" {
		t.Fatalf("waiting reader got %v, %v; want new", r.q.Payload, r.err)
	}

	waitFor(t, "superseded fetch", func() bool {
		p, _ := c.Peek(productsReq(nil))
		return !p.Fetching
	})
	if p, _ := c.Peek(productsReq(nil)); p.Payload != "new" {
		t.Errorf("entry payload = %v, the older result overwrote the newer", p.Payload)
	}
	select {
	case q := <-updates:
		t.Errorf("superseded result delivered: %+v", q)
	default:
	}
}

func TestQueryCache_ErrorsAreNotCached(t *testing.T) {
	c := New()
	defer c.Reset()

	boom := errors.New("server down")
	var calls atomic.Int32
	fetch := func(context.Context) (any, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return "ok", nil
	}

	sub, _ := c.Subscribe(productsReq(nil), fetch, nil)
	defer sub.Close()

	q, err := sub.Result(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Result() error = %v, want %v", err, boom)
	}
	if q.Status != StatusError || !errors.Is(q.Err, boom) {
		t.Errorf("snapshot = %+v", q)
	}

	q, err = sub.Result(context.Background())
	if err != nil || q.Payload != "ok" || q.Status != StatusSuccess {
		t.Fatalf("second Result() = %+v, %v", q, err)
	}
	if calls.Load() != 2 {
		t.Errorf("fetch calls = %d, want 2", calls.Load())
	}
}

func TestQueryCache_Mutate(t *testing.T) {
	c := New(WithPolicy(Policy{KeepUnusedFor: time.Hour}))
	defer c.Reset()
	fetch, _ := counter()
	_, _ = c.Query(context.Background(), productsReq(nil), fetch)

	boom := errors.New("validation failed")
	if _, err := c.Mutate(context.Background(), []string{"Products"}, func(context.Context) (any, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("Mutate() error = %v", err)
	}
	if p, _ := c.Peek(productsReq(nil)); p.Stale {
		t.Error("failed mutation invalidated tags")
	}

	res, err := c.Mutate(context.Background(), []string{"Products"}, func(context.Context) (any, error) {
		return "created", nil
	})
	if err != nil || res != "created" {
		t.Fatalf("Mutate() = %v, %v", res, err)
	}
	if p, _ := c.Peek(productsReq(nil)); !p.Stale {
		t.Error("successful mutation did not invalidate tags")
	}

	if _, err := c.Mutate(context.Background(), nil, nil); !errors.Is(err, ErrNilFunc) {
		t.Errorf("Mutate(nil) error = %v", err)
	}
}

func TestSubscription_Close(t *testing.T) {
	c := New()
	defer c.Reset()
	fetch, _ := counter()

	var closedCalls atomic.Int32
	closed, _ := c.Subscribe(productsReq(nil), fetch, func(CachedQuery) { closedCalls.Add(1) })
	openUpdates := make(chan CachedQuery, 4)
	open, _ := c.Subscribe(productsReq(nil), fetch, func(q CachedQuery) { openUpdates <- q })
	defer open.Close()

	closed.Close()
	closed.Close()

	if _, err := closed.Result(context.Background()); !errors.Is(err, ErrSubscriptionClosed) {
		t.Fatalf("Result() after Close = %v, want ErrSubscriptionClosed", err)
	}

	if _, err := open.Result(context.Background()); err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	<-openUpdates
	c.Invalidate("Products")
	<-openUpdates

	if closedCalls.Load() != 0 {
		t.Errorf("closed subscription listener called %d times", closedCalls.Load())
	}
}

func TestSubscription_ContextCancel(t *testing.T) {
	c := New()
	defer c.Reset()

	release := make(chan struct{})
	sub, _ := c.Subscribe(productsReq(nil), func(context.Context) (any, error) {
		<-release
		return "late", nil
	}, nil)
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := sub.Result(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Result() error = %v, want deadline exceeded", err)
	}

	// The fetch itself is not cancelled; a later reader gets its result.
	close(release)
	q, err := sub.Result(context.Background())
	if err != nil || q.Payload != "late" {
		t.Fatalf("Result() = %v, %v", q.Payload, err)
	}
}

func TestQueryCache_Reset(t *testing.T) {
	c := New(WithPolicy(Policy{KeepUnusedFor: time.Hour}))
	fetch, calls := counter()

	_, _ = c.Query(context.Background(), Request{Endpoint: "getUsers", Tags: []string{"User"}}, fetch)

	updates := make(chan CachedQuery, 4)
	sub, _ := c.Subscribe(productsReq(nil), fetch, func(q CachedQuery) { updates <- q })
	defer sub.Close()
	_, _ = sub.Result(context.Background())
	<-updates

	c.Reset()

	if c.Len() != 1 {
		t.Errorf("Len() after Reset = %d, want only the subscribed entry", c.Len())
	}
	q := <-updates
	if q.Status != StatusIdle || q.Payload != nil {
		t.Errorf("reset notification = %+v", q)
	}

	q, _ = sub.Result(context.Background())
	if q.Payload != "v3" || calls.Load() != 3 {
		t.Errorf("after Reset payload = %v calls = %d", q.Payload, calls.Load())
	}
}

func TestFetch_Typed(t *testing.T) {
	c := New()
	defer c.Reset()

	type page struct{ N int }
	got, err := Fetch(context.Background(), c, productsReq(1), func(context.Context) (page, error) {
		return page{N: 7}, nil
	})
	if err != nil || got.N != 7 {
		t.Fatalf("Fetch() = %+v, %v", got, err)
	}

	_, err = Fetch(context.Background(), c, productsReq(1), func(context.Context) (string, error) {
		return "wrong", nil
	})
	if !errors.Is(err, ErrPayloadType) {
		t.Errorf("Fetch() with mismatched type error = %v, want ErrPayloadType", err)
	}
}

func TestQueryCache_SubscribeErrors(t *testing.T) {
	c := New()
	if _, err := c.Subscribe(Request{Endpoint: "getProducts"}, nil, nil); !errors.Is(err, ErrNilFunc) {
		t.Errorf("nil fetch error = %v", err)
	}
	fetch, _ := counter()
	if _, err := c.Subscribe(Request{}, fetch, nil); !errors.Is(err, ErrInvalidEndpoint) {
		t.Errorf("empty endpoint error = %v", err)
	}
}

type eventRecorder struct {
	observe.Metrics
	mu     sync.Mutex
	events map[string]int
}

func (r *eventRecorder) RecordCacheEvent(_ context.Context, event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string]int)
	}
	r.events[event]++
}

func (r *eventRecorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[event]
}

func TestQueryCache_Metrics(t *testing.T) {
	rec := &eventRecorder{}
	c := New(WithMetrics(rec), WithPolicy(Policy{}))
	fetch, _ := counter()

	sub, _ := c.Subscribe(productsReq(nil), fetch, nil)
	_, _ = sub.Result(context.Background())
	_, _ = sub.Result(context.Background())
	c.Invalidate("Products")
	waitFor(t, "refetch", func() bool { return !sub.Snapshot().Fetching })
	sub.Close()

	for event, want := range map[string]int{
		EventMiss:       1,
		EventHit:        1,
		EventRefetch:    1,
		EventInvalidate: 1,
		EventEvict:      1,
	} {
		if got := rec.count(event); got != want {
			t.Errorf("%s events = %d, want %d", event, got, want)
		}
	}
}
