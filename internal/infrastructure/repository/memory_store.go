package repository

import (
	"context"
	"sync"
	"time"

	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/ports"
)

// MemorySessionStore keeps sessions in process memory. Sessions are lost on restart,
// so it is meant for development and tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	now      func() time.Time
}

// NewMemorySessionStore creates an empty in-memory session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domain.Session), now: time.Now}
}

var _ ports.SessionStore = (*MemorySessionStore)(nil)

func (s *MemorySessionStore) Get(_ context.Context, shop string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[shop]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *MemorySessionStore) Set(_ context.Context, shop, accessToken, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[shop] = domain.Session{
		Shop:        shop,
		AccessToken: accessToken,
		Scope:       scope,
		UpdatedAt:   s.now(),
	}
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, shop string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, shop)
	return nil
}

// MemoryOAuthStateStore keeps in-flight authorization states in process memory
type MemoryOAuthStateStore struct {
	mu     sync.Mutex
	states map[string]domain.OAuthState
	now    func() time.Time
}

// NewMemoryOAuthStateStore creates an empty in-memory state store
func NewMemoryOAuthStateStore() *MemoryOAuthStateStore {
	return &MemoryOAuthStateStore{states: make(map[string]domain.OAuthState), now: time.Now}
}

var _ ports.OAuthStateStore = (*MemoryOAuthStateStore)(nil)

func (s *MemoryOAuthStateStore) Save(_ context.Context, state *domain.OAuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, existing := range s.states {
		if existing.Expired(now) {
			delete(s.states, key)
		}
	}
	s.states[state.State] = *state
	return nil
}

func (s *MemoryOAuthStateStore) Consume(_ context.Context, state string) (*domain.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.states[state]
	if !ok {
		return nil, nil
	}
	delete(s.states, state)
	return &existing, nil
}

// NopWebhookEventLog discards webhook events
type NopWebhookEventLog struct{}

func (NopWebhookEventLog) LogWebhook(context.Context, *domain.WebhookEvent) error {
	return nil
}
