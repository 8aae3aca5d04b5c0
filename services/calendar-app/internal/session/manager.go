// Package session owns the signed-in user's credentials: login, logout,
// hydration at start-up and the single in-flight token refresh.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/md-rashed-zaman/apptremind-calendar/libs/auth"
	"github.com/md-rashed-zaman/apptremind-calendar/libs/runtime"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/backend"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRefreshFailed    = errors.New("session refresh failed")
)

const DefaultGracePeriod = 10 * time.Second

// Reasons passed to invalidation listeners.
const (
	ReasonLogout        = "logout"
	ReasonRefreshFailed = "refresh_failed"
	ReasonHydrateFailed = "hydrate_failed"
)

// API is the part of the backend the session talks to.
type API interface {
	Login(ctx context.Context, creds backend.Credentials) (backend.Session, error)
	Refresh(ctx context.Context, token, cookie string) (backend.Session, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (backend.Profile, error)
}

type Options struct {
	GracePeriod time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// Manager implements backend.TokenSource.
type Manager struct {
	api    API
	store  Store
	logger *slog.Logger
	grace  time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	state     State
	listeners []func(reason string)

	refresh singleflight.Group
}

func NewManager(api API, store Store, opts Options) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if opts.GracePeriod < 0 {
		opts.GracePeriod = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		api:    api,
		store:  store,
		logger: runtime.OrDiscard(opts.Logger),
		grace:  opts.GracePeriod,
		now:    opts.Now,
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) Authenticated() bool { return m.State().Authenticated() }

func (m *Manager) Token() string { return m.State().Token }

func (m *Manager) Cookie() string { return m.State().Cookie }

// OnInvalidated registers fn to run whenever local auth state is cleared, for
// dropping cached data and resetting open flows.
func (m *Manager) OnInvalidated(fn func(reason string)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *Manager) Login(ctx context.Context, creds backend.Credentials) (State, error) {
	s, err := m.api.Login(ctx, creds)
	if err != nil {
		return State{}, err
	}
	st := State{Token: s.Token, UserID: s.UserID, Cookie: s.Cookie, LoggedInAt: m.now()}
	if err := m.store.Save(ctx, st); err != nil {
		return State{}, fmt.Errorf("persist session: %w", err)
	}
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
	m.logger.Info("signed in", "user_id", st.UserID)
	return st, nil
}

// Logout tells the API (best effort) and clears everything local.
func (m *Manager) Logout(ctx context.Context) error {
	if m.Authenticated() {
		if err := m.api.Logout(ctx); err != nil {
			m.logger.Warn("logout request failed", "err", err)
		}
	}
	return m.invalidate(ctx, ReasonLogout)
}

func (m *Manager) invalidate(ctx context.Context, reason string) error {
	m.mu.Lock()
	m.state = State{}
	listeners := append([]func(string){}, m.listeners...)
	m.mu.Unlock()

	err := m.store.Clear(ctx)
	if err != nil {
		m.logger.Warn("clear session store failed", "err", err)
	}
	for _, fn := range listeners {
		fn(reason)
	}
	m.logger.Info("session cleared", "reason", reason)
	return err
}

func (m *Manager) inGracePeriod(st State) bool {
	return m.grace > 0 && !st.LoggedInAt.IsZero() && m.now().Sub(st.LoggedInAt) < m.grace
}

// Refresh replaces the token that the API rejected. If stale was already
// replaced by a concurrent refresh the current token is returned without a
// new request, and concurrent callers share one request.
//
// A refresh the API rejects clears the session, except inside the grace
// period after login. Network failures never clear it.
func (m *Manager) Refresh(ctx context.Context, stale string) (string, error) {
	cur := m.State()
	if !cur.Authenticated() {
		return "", ErrNotAuthenticated
	}
	if stale != "" && stale != cur.Token {
		return cur.Token, nil
	}

	v, err, _ := m.refresh.Do("refresh", func() (any, error) {
		s, err := m.api.Refresh(ctx, cur.Token, cur.Cookie)
		if err != nil {
			return nil, err
		}
		next := cur
		next.Token = s.Token
		if s.UserID != "" {
			next.UserID = s.UserID
		}
		if s.Cookie != "" {
			next.Cookie = s.Cookie
		}
		m.mu.Lock()
		if m.state.Token != cur.Token {
			// logged out or replaced while the request was in flight
			m.mu.Unlock()
			return nil, ErrNotAuthenticated
		}
		m.state = next
		m.mu.Unlock()
		if err := m.store.Save(ctx, next); err != nil {
			m.logger.Warn("persist refreshed session failed", "err", err)
		}
		return next.Token, nil
	})
	if err == nil {
		return v.(string), nil
	}

	if errors.Is(err, backend.ErrUnauthorized) || errors.Is(err, backend.ErrForbidden) {
		if m.inGracePeriod(cur) {
			m.logger.Warn("refresh rejected inside grace period; keeping session")
		} else if m.State().Token == cur.Token {
			_ = m.invalidate(ctx, ReasonRefreshFailed)
		}
	}
	return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
}

// Hydrate restores a stored session at start-up. A stored token survives a
// failed profile fetch unless the API answered 401 and then rejected the refresh.
// A JWT that has already expired goes straight to the refresh.
func (m *Manager) Hydrate(ctx context.Context) (bool, error) {
	st, ok, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("load stored session failed", "err", err)
		return false, err
	}
	if !ok || !st.Authenticated() {
		return false, nil
	}
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()

	if auth.Expired(st.Token, m.now(), 0) {
		return m.hydrateByRefresh(ctx, st), nil
	}

	p, err := m.api.Profile(ctx)
	switch {
	case err == nil:
		if st.UserID == "" && p.UserID != "" {
			m.mu.Lock()
			m.state.UserID = p.UserID
			m.mu.Unlock()
		}
		return true, nil
	case errors.Is(err, backend.ErrUnauthorized):
		return m.hydrateByRefresh(ctx, st), nil
	default:
		m.logger.Warn("profile fetch failed during hydrate; keeping session", "err", err)
		return true, nil
	}
}

func (m *Manager) hydrateByRefresh(ctx context.Context, st State) bool {
	_, err := m.Refresh(ctx, st.Token)
	switch {
	case err == nil:
		return true
	case errors.Is(err, backend.ErrUnauthorized), errors.Is(err, backend.ErrForbidden):
		if m.Authenticated() {
			_ = m.invalidate(ctx, ReasonHydrateFailed)
		}
		return false
	case errors.Is(err, ErrNotAuthenticated):
		return false
	default:
		// only an explicit rejection logs the user out
		m.logger.Warn("refresh failed during hydrate; keeping session", "err", err)
		return m.Authenticated()
	}
}
