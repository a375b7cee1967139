package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonwraymond/storefront/observe"
	"github.com/jonwraymond/storefront/storage"
)

// DefaultTTL is how long a session lasts when the token does not say.
const DefaultTTL = 30 * 24 * time.Hour

// Reason says why a session ended.
type Reason string

const (
	ReasonLogout       Reason = "logout"
	ReasonExpired      Reason = "expired"
	ReasonUnauthorized Reason = "unauthorized"
	ReasonMalformed    Reason = "malformed"
)

// TerminateEvent describes an ended session.
type TerminateEvent struct {
	Reason Reason
	User   UserInfo
	At     time.Time
}

// TerminateListener is called after a session ends.
type TerminateListener func(ctx context.Context, ev TerminateEvent)

// Session is the persisted sign-in state.
//
// Contract:
//   - Concurrency: safe for concurrent use. Listeners run outside the lock.
//   - Terminate is idempotent: listeners hear about each signed-in session
//     ending exactly once.
type Session struct {
	mu        sync.Mutex
	storage   storage.Storage
	ttl       time.Duration
	now       func() time.Time
	logger    observe.Logger
	user      *UserInfo
	expiresAt time.Time

	listeners map[int]TerminateListener
	nextID    int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithTTL sets the session lifetime. Default: DefaultTTL.
func WithTTL(ttl time.Duration) SessionOption {
	return func(s *Session) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession creates a signed-out session backed by st. Call Restore to
// load a persisted one.
func NewSession(st storage.Storage, opts ...SessionOption) *Session {
	s := &Session{
		storage:   st,
		ttl:       DefaultTTL,
		now:       time.Now,
		logger:    observe.NopLogger(),
		listeners: make(map[int]TerminateListener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(observe.F("component", "session"))
	return s
}

// SetCredentials signs u in. The session expires after the TTL, or at the
// token's exp claim if that is sooner.
func (s *Session) SetCredentials(ctx context.Context, u UserInfo) error {
	if err := u.Validate(); err != nil {
		return err
	}

	expiresAt := s.now().Add(s.ttl)
	if IsJWT(u.Token) {
		exp, ok, err := TokenExpiry(u.Token)
		switch {
		case err != nil:
			s.logger.Warn(ctx, "ignoring unreadable token expiry", observe.F("error", err))
		case ok && exp.Before(expiresAt):
			expiresAt = exp
		}
	}

	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("auth: encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Set(ctx, storage.KeyUserInfo, data); err != nil {
		return fmt.Errorf("auth: persist user: %w", err)
	}
	if err := s.storage.Set(ctx, storage.KeySessionExpiration, formatMillis(expiresAt)); err != nil {
		return fmt.Errorf("auth: persist expiry: %w", err)
	}

	user := u
	s.user = &user
	s.expiresAt = expiresAt
	s.logger.Info(ctx, "signed in", observe.F("user_id", u.ID), observe.F("expires_at", expiresAt))
	return nil
}

// Restore loads the persisted session. It returns nil when nobody is signed
// in. A persisted session that has expired or cannot be read is terminated
// and nil is returned.
func (s *Session) Restore(ctx context.Context) (*UserInfo, error) {
	raw, ok, err := s.storage.Get(ctx, storage.KeyUserInfo)
	if err != nil {
		return nil, fmt.Errorf("auth: load user: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var u UserInfo
	if err := json.Unmarshal(raw, &u); err != nil || u.Validate() != nil {
		s.logger.Warn(ctx, "discarding malformed stored user")
		return nil, s.clearStored(ctx)
	}

	expRaw, hasExp, err := s.storage.Get(ctx, storage.KeySessionExpiration)
	if err != nil {
		return nil, fmt.Errorf("auth: load expiry: %w", err)
	}

	s.mu.Lock()
	s.user = &u
	if hasExp {
		if s.expiresAt, err = parseMillis(expRaw); err != nil {
			s.mu.Unlock()
			return nil, s.Terminate(ctx, ReasonMalformed)
		}
	} else {
		// Stored before expiry tracking; give it a fresh lifetime.
		s.expiresAt = s.now().Add(s.ttl)
		if err := s.storage.Set(ctx, storage.KeySessionExpiration, formatMillis(s.expiresAt)); err != nil {
			s.logger.Warn(ctx, "failed to persist session expiry", observe.F("error", err))
		}
	}
	expired := s.now().After(s.expiresAt)
	s.mu.Unlock()

	if expired {
		return nil, s.Terminate(ctx, ReasonExpired)
	}
	out := u
	return &out, nil
}

// User returns the signed-in user. An expired session is terminated and
// reported as signed out.
func (s *Session) User(ctx context.Context) (*UserInfo, bool) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil, false
	}
	if s.now().After(s.expiresAt) {
		s.mu.Unlock()
		if err := s.Terminate(ctx, ReasonExpired); err != nil {
			s.logger.Warn(ctx, "failed to end expired session", observe.F("error", err))
		}
		return nil, false
	}
	u := *s.user
	s.mu.Unlock()
	return &u, true
}

// Token returns the bearer token of the signed-in user, or "".
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.now().After(s.expiresAt) {
		return ""
	}
	return s.user.Token
}

// ExpiresAt returns when the current session ends; zero when signed out.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return time.Time{}
	}
	return s.expiresAt
}

// Context returns ctx carrying the signed-in user, if any.
func (s *Session) Context(ctx context.Context) context.Context {
	u, ok := s.User(ctx)
	if !ok {
		return ctx
	}
	return WithUser(ctx, u)
}

// Terminate signs out, removes the persisted session and notifies
// listeners. Calling it while signed out only clears storage.
func (s *Session) Terminate(ctx context.Context, reason Reason) error {
	s.mu.Lock()
	prev := s.user
	s.user = nil
	s.expiresAt = time.Time{}
	err := s.clearStoredLocked(ctx)
	var listeners []TerminateListener
	if prev != nil {
		listeners = make([]TerminateListener, 0, len(s.listeners))
		for _, l := range s.listeners {
			listeners = append(listeners, l)
		}
	}
	s.mu.Unlock()

	if prev == nil {
		return err
	}

	s.logger.Info(ctx, "session ended", observe.F("reason", string(reason)), observe.F("user_id", prev.ID))
	ev := TerminateEvent{Reason: reason, User: *prev, At: s.now()}
	for _, l := range listeners {
		l(ctx, ev)
	}
	return err
}

// Logout ends the session with ReasonLogout.
func (s *Session) Logout(ctx context.Context) error {
	return s.Terminate(ctx, ReasonLogout)
}

// HandleUnauthorized ends the session after the API rejected its
// credentials. It matches the API client's unauthorized hook.
func (s *Session) HandleUnauthorized(ctx context.Context) {
	if err := s.Terminate(ctx, ReasonUnauthorized); err != nil {
		s.logger.Warn(ctx, "failed to clear rejected session", observe.F("error", err))
	}
}

// OnTerminate registers l and returns a func that unregisters it.
func (s *Session) OnTerminate(l TerminateListener) (cancel func()) {
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

func (s *Session) clearStored(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearStoredLocked(ctx)
}

func (s *Session) clearStoredLocked(ctx context.Context) error {
	return errors.Join(
		s.storage.Delete(ctx, storage.KeyUserInfo),
		s.storage.Delete(ctx, storage.KeySessionExpiration),
	)
}

func formatMillis(t time.Time) []byte {
	return []byte(strconv.FormatInt(t.UnixMilli(), 10))
}

func parseMillis(b []byte) (time.Time, error) {
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("auth: bad expiry %q: %w", b, err)
	}
	return time.UnixMilli(ms), nil
}
