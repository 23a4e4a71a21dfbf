package loginsession

import (
	"fmt"
	"sync"

	"github.com/jrsteele09/go-auth-session/token"
)

// InMemoryLoginSessionRepo is an in-memory implementation of Repo
type InMemoryLoginSessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewInMemoryLoginSessionRepo creates a new in-memory login session repository
func NewInMemoryLoginSessionRepo() *InMemoryLoginSessionRepo {
	return &InMemoryLoginSessionRepo{
		sessions: make(map[string]Session),
	}
}

// Upsert creates or updates a login session
func (r *InMemoryLoginSessionRepo) Upsert(tokenID string, session Session) error {
	if tokenID == "" {
		return fmt.Errorf("tokenID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[tokenID] = session
	return nil
}

// Get retrieves a login session. Expired sessions are reported as not found.
func (r *InMemoryLoginSessionRepo) Get(tokenID string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[tokenID]
	if !ok || !session.ExpiresAt.After(token.NowTimeFunc()) {
		return Session{}, ErrNotFound
	}
	return session, nil
}

// Delete removes a login session
func (r *InMemoryLoginSessionRepo) Delete(tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, tokenID) // Already doesn't exist, no error
	return nil
}
