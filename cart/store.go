package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jonwraymond/storefront/observe"
	"github.com/jonwraymond/storefront/storage"
)

// Listener is called with a snapshot after every successful mutation.
type Listener func(State)

// Store holds the current cart and persists it after every mutation.
//
// Contract:
//   - Concurrency: safe for concurrent use. Listeners run outside the lock and
//     must not assume ordering across concurrent mutations.
//   - Persistence: each mutating call performs exactly one commit. A failed
//     commit is returned wrapped in ErrPersist; the in-memory state still advances.
type Store struct {
	mu        sync.Mutex
	state     State
	reducer   Reducer
	storage   storage.Storage
	key       string
	logger    observe.Logger
	metrics   observe.Metrics
	listeners map[int]Listener
	nextID    int
}

// Option configures a Store.
type Option func(*Store)

// WithKey sets the storage key. Default: storage.KeyCart.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithPolicy sets the quantity policy. Default: QuantityClamp.
func WithPolicy(p QuantityPolicy) Option {
	return func(s *Store) { s.reducer.Policy = p }
}

// WithPricing sets the pricing rules. Default: DefaultPricing().
func WithPricing(p Pricing) Option {
	return func(s *Store) { s.reducer.Pricing = p }
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observe.Metrics) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewStore creates a Store rehydrated from st. Missing, unreadable or
// malformed stored data yields an empty cart; it never fails startup.
func NewStore(ctx context.Context, st storage.Storage, opts ...Option) *Store {
	s := &Store{
		reducer:   Reducer{Policy: QuantityClamp, Pricing: DefaultPricing()},
		storage:   st,
		key:       storage.KeyCart,
		logger:    observe.NopLogger(),
		metrics:   observe.NopMetrics(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(observe.F("component", "cart"))
	s.state = s.rehydrate(ctx)
	return s
}

func (s *Store) rehydrate(ctx context.Context) State {
	empty := s.reducer.Recompute(State{})
	if s.storage == nil {
		return empty
	}

	data, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn(ctx, "cart storage unreadable, starting empty", observe.F("error", err))
		return empty
	}
	if !ok {
		return empty
	}

	state, err := Decode(data)
	if err != nil {
		s.logger.Warn(ctx, "discarding malformed stored cart", observe.F("error", err))
		return empty
	}
	return s.reducer.Recompute(state)
}

// Decode parses a stored cart and validates its lines.
func Decode(data []byte) (State, error) {
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("cart: decode: %w", err)
	}
	seen := make(map[string]bool, len(state.Lines))
	for i, l := range state.Lines {
		switch {
		case l.ProductID == "":
			return State{}, fmt.Errorf("cart: line %d has no product id", i)
		case l.Quantity < 1:
			return State{}, fmt.Errorf("cart: line %d has quantity %d", i, l.Quantity)
		case l.Price.IsNegative():
			return State{}, fmt.Errorf("cart: line %d has negative price", i)
		case seen[l.ProductID]:
			return State{}, fmt.Errorf("cart: duplicate line for %s", l.ProductID)
		}
		seen[l.ProductID] = true
	}
	return state, nil
}

// State returns a snapshot of the current cart.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Policy returns the quantity policy in effect.
func (s *Store) Policy() QuantityPolicy {
	return s.reducer.Policy
}

// Dispatch applies a, commits the result and notifies listeners. When the
// reducer rejects a, nothing is committed and the current state is returned.
func (s *Store) Dispatch(ctx context.Context, a Action) (State, error) {
	s.mu.Lock()
	next, err := s.reducer.Apply(s.state, a)
	if err != nil {
		current := s.state.Clone()
		s.mu.Unlock()
		s.logger.Debug(ctx, "cart action rejected", observe.F("action", a.Kind()), observe.F("error", err))
		return current, err
	}

	s.state = next
	commitErr := s.commit(ctx, next)
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	s.metrics.RecordCartMutation(ctx, a.Kind())
	for _, l := range listeners {
		l(next.Clone())
	}
	return next.Clone(), commitErr
}

// commit writes the whole state. Caller holds s.mu so commits land in
// mutation order.
func (s *Store) commit(ctx context.Context, state State) error {
	if s.storage == nil {
		return nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Join(ErrPersist, err)
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		s.logger.Error(ctx, "cart commit failed", observe.F("key", s.key), observe.F("error", err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// AddItem upserts a line for p with qty.
func (s *Store) AddItem(ctx context.Context, p Product, qty int) (State, error) {
	return s.Dispatch(ctx, AddItem{Product: p, Quantity: qty})
}

// RemoveItem removes the line for productID, if present.
func (s *Store) RemoveItem(ctx context.Context, productID string) (State, error) {
	return s.Dispatch(ctx, RemoveItem{ProductID: productID})
}

// SetShippingAddress records the delivery address.
func (s *Store) SetShippingAddress(ctx context.Context, addr ShippingAddress) (State, error) {
	return s.Dispatch(ctx, SetShippingAddress{Address: addr})
}

// SetPaymentMethod records the payment method.
func (s *Store) SetPaymentMethod(ctx context.Context, method string) (State, error) {
	return s.Dispatch(ctx, SetPaymentMethod{Method: method})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) (State, error) {
	return s.Dispatch(ctx, Clear{})
}

// Subscribe registers l and returns a func that unregisters it.
func (s *Store) Subscribe(l Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}
