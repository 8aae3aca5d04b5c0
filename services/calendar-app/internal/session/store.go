package session

import (
	"context"
	"sync"
	"time"
)

// State is everything persisted for a signed-in user.
type State struct {
	Token      string    `json:"token"`
	UserID     string    `json:"user_id"`
	Cookie     string    `json:"cookie,omitempty"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

func (s State) Authenticated() bool { return s.Token != "" }

// Store persists State between runs. Load reports false when nothing is stored.
type Store interface {
	Load(ctx context.Context) (State, bool, error)
	Save(ctx context.Context, st State) error
	Clear(ctx context.Context) error
}

type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(context.Context) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return State{}, false, nil
	}
	return *m.state, true, nil
}

func (m *MemoryStore) Save(_ context.Context, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = &st
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}
