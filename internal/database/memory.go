// internal/database/memory.go
package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/models"
)

// MemoryStore keeps lobbies in process memory. Records are copied on the way in and out, so
// callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	lobbies     map[uuid.UUID]*models.Lobby
	members     map[uuid.UUID]uuid.UUID // user -> lobby
	invitations map[uuid.UUID]*models.Invitation
	matches     []models.MatchRecord
	matchIDs    map[uuid.UUID]struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lobbies:     make(map[uuid.UUID]*models.Lobby),
		members:     make(map[uuid.UUID]uuid.UUID),
		invitations: make(map[uuid.UUID]*models.Invitation),
		matchIDs:    make(map[uuid.UUID]struct{}),
	}
}

func (s *MemoryStore) CreateLobby(_ context.Context, l *models.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[l.ID]; ok {
		return fmt.Errorf("lobby %s already exists", l.ID)
	}
	return s.putLocked(l)
}

func (s *MemoryStore) GetLobby(_ context.Context, id uuid.UUID) (*models.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lobbies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return l.Clone(), nil
}

func (s *MemoryStore) FindLobbyForUser(_ context.Context, userID uuid.UUID) (*models.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.members[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.lobbies[id].Clone(), nil
}

func (s *MemoryStore) ListLobbies(_ context.Context, states ...models.LobbyState) ([]*models.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		if matchState(l.State, states) {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveLobby(_ context.Context, l *models.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[l.ID]; !ok {
		return ErrNotFound
	}
	return s.putLocked(l)
}

func (s *MemoryStore) DeleteLobby(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[id]; !ok {
		return ErrNotFound
	}
	s.deleteLocked(id)
	return nil
}

func (s *MemoryStore) MergeLobbies(_ context.Context, into *models.Lobby, fromID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[into.ID]; !ok {
		return ErrNotFound
	}
	from, ok := s.lobbies[fromID]
	if !ok {
		return ErrNotFound
	}
	s.deleteLocked(fromID)
	if err := s.putLocked(into); err != nil {
		// restore the source so a failed merge leaves both lobbies as they were
		s.lobbies[fromID] = from
		for _, m := range from.Members {
			s.members[m.UserID] = fromID
		}
		return err
	}
	return nil
}

func (s *MemoryStore) CreateInvitation(_ context.Context, inv *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[inv.LobbyID]; !ok {
		return ErrNotFound
	}
	cp := *inv
	s.invitations[inv.ID] = &cp
	return nil
}

func (s *MemoryStore) JoinLobby(_ context.Context, l *models.Lobby, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[l.ID]; !ok {
		return 0, ErrNotFound
	}
	if err := s.putLocked(l); err != nil {
		return 0, err
	}
	n := 0
	for id, inv := range s.invitations {
		if inv.LobbyID == l.ID && inv.UserID == userID {
			delete(s.invitations, id)
			n++
		}
	}
	return n, nil
}

// putLocked replaces the lobby and its member index, rejecting users seated elsewhere.
func (s *MemoryStore) putLocked(l *models.Lobby) error {
	for _, m := range l.Members {
		if other, ok := s.members[m.UserID]; ok && other != l.ID {
			return ErrMemberConflict
		}
	}
	if prev, ok := s.lobbies[l.ID]; ok {
		for _, m := range prev.Members {
			delete(s.members, m.UserID)
		}
	}
	cp := l.Clone()
	for _, m := range cp.Members {
		m.LobbyID = cp.ID
		s.members[m.UserID] = cp.ID
	}
	s.lobbies[cp.ID] = cp
	return nil
}

func (s *MemoryStore) deleteLocked(id uuid.UUID) {
	for _, m := range s.lobbies[id].Members {
		delete(s.members, m.UserID)
	}
	delete(s.lobbies, id)
	for invID, inv := range s.invitations {
		if inv.LobbyID == id {
			delete(s.invitations, invID)
		}
	}
}

func matchState(st models.LobbyState, states []models.LobbyState) bool {
	if len(states) == 0 {
		return true
	}
	for _, want := range states {
		if st == want {
			return true
		}
	}
	return false
}

func (s *MemoryStore) InsertMatchRecords(_ context.Context, recs []models.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		if _, dup := s.matchIDs[rec.MatchID]; dup {
			continue
		}
		s.matchIDs[rec.MatchID] = struct{}{}
		rec.Players = append([]models.MatchPlayer(nil), rec.Players...)
		s.matches = append(s.matches, rec)
	}
	return nil
}

// RecentMatches returns up to limit matches, newest first.
func (s *MemoryStore) RecentMatches(_ context.Context, limit int) ([]models.MatchRecord, error) {
	if limit <= 0 {
		return []models.MatchRecord{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.MatchRecord, 0, min(limit, len(s.matches)))
	for i := len(s.matches) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.matches[i]
		rec.Players = append([]models.MatchPlayer(nil), rec.Players...)
		out = append(out, rec)
	}
	return out, nil
}
