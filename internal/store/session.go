package store

import (
	"context"
	"sync"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
)

type sessionState struct {
	User            *domain.UserIdentity `json:"user"`
	IsAuthenticated bool                 `json:"is_authenticated"`
}

// Session holds the identity a client is logged in as, if any.
// Logging in performs no credential check.
type Session struct {
	mu      sync.RWMutex
	state   sessionState
	persist *Persister[sessionState]
}

func LoadSession(ctx context.Context, repo repository.RecordRepository, name string) (*Session, error) {
	p := NewPersister[sessionState](repo, name)
	state, _, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{state: state, persist: p}, nil
}

// Login replaces the current identity.
func (s *Session) Login(ctx context.Context, user domain.UserIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, sessionState{User: &user, IsAuthenticated: true})
}

// Logout clears the identity. The cart and the order history are untouched.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, sessionState{})
}

func (s *Session) commit(ctx context.Context, next sessionState) error {
	if err := s.persist.Save(ctx, next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// Current returns the logged in identity.
func (s *Session) Current() (domain.UserIdentity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return domain.UserIdentity{}, false
	}
	return *s.state.User, true
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// OwnerID is the id orders are filed under: the user's id, or the guest
// sentinel when nobody is logged in.
func (s *Session) OwnerID() string {
	if user, ok := s.Current(); ok && user.ID != "" {
		return user.ID
	}
	return domain.GuestUserID
}
