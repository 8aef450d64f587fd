// internal/game/session_store.go
package game

import (
	"sync"

	"github.com/google/uuid"
)

// SessionStore is the registry of running matches keyed by lobby ID. Entries are added when a
// lobby enters GAME and removed when the match completes or the lobby is torn down.
type SessionStore struct {
	mu      sync.Mutex
	runners map[uuid.UUID]*Runner
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		runners: make(map[uuid.UUID]*Runner),
	}
}

// Add registers r under its lobby. It returns false if the lobby already has a match.
func (s *SessionStore) Add(r *Runner) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.session.LobbyID
	if _, exists := s.runners[id]; exists {
		return false
	}
	s.runners[id] = r
	return true
}

func (s *SessionStore) Get(lobbyID uuid.UUID) (*Runner, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runners[lobbyID]
	return r, ok
}

// Remove drops the entry for lobbyID if it is still r. A nil r removes whatever is registered.
// It returns the removed runner, or nil.
func (s *SessionStore) Remove(lobbyID uuid.UUID, r *Runner) *Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.runners[lobbyID]
	if !ok || (r != nil && cur != r) {
		return nil
	}
	delete(s.runners, lobbyID)
	return cur
}

// FindByPlayer returns the running match userID plays in, or nil.
func (s *SessionStore) FindByPlayer(userID uuid.UUID) *Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runners {
		if r.session.HasPlayer(userID) {
			return r
		}
	}
	return nil
}

// Len is the number of running matches.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runners)
}

// All returns the registered runners.
func (s *SessionStore) All() []*Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Runner, 0, len(s.runners))
	for _, r := range s.runners {
		out = append(out, r)
	}
	return out
}
