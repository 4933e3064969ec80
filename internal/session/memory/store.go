// Package memory provides an in-memory session store for development and
// testing.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/codeecho/codeecho/internal/analysis"
)

// Store keeps sessions in a map guarded by a RWMutex.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]analysis.Session
}

// New constructs a Store.
func New() *Store {
	return &Store{
		sessions: make(map[string]analysis.Session),
	}
}

// Create stores a finished session. Creating the same ID twice is an error.
func (s *Store) Create(_ context.Context, session analysis.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	s.sessions[session.ID] = session
	return nil
}

// Get fetches a session by ID.
func (s *Store) Get(_ context.Context, id string) (analysis.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return analysis.Session{}, analysis.ErrSessionNotFound
	}
	return session, nil
}

// Len reports the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
