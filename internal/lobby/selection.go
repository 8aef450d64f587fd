// internal/lobby/selection.go
package lobby

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/models"
)

// beginSelectionLocked opens the champions selection phase and arms its timeout.
func (s *Service) beginSelectionLocked(ctx context.Context, l *models.Lobby) (*models.Lobby, error) {
	staged := l.Clone()
	staged.State = models.StateSelection
	for _, m := range staged.Members {
		m.PaddleType = nil
		m.MapVote = nil
	}
	if err := s.store.SaveLobby(ctx, staged); err != nil {
		return nil, persistence(err)
	}

	s.notify.EmitToGroup(l.ID, EventLobbyUpdate, update(staged))
	s.notify.EmitToGroup(l.ID, EventSelectionStart, SelectionStart{
		LobbyID: l.ID,
		Paddles: models.ChampionPaddles,
		Maps:    models.Maps,
		Timeout: s.selectionTimeout.Seconds(),
	})
	s.startSelectionTimer(l.ID)
	s.logger(staged).Info("selection started")
	return staged, nil
}

// SelectPaddle records a member's paddle choice. Once every member has chosen, the map vote is
// resolved and the lobby enters GAME.
func (s *Service) SelectPaddle(ctx context.Context, lobbyID, userID uuid.UUID, p models.PaddleType) (*models.LobbyMember, error) {
	release := s.lobbies.Lock(lobbyID)
	defer release()

	l, err := s.load(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if l.Member(userID) == nil {
		return nil, ErrMemberNotFound
	}
	if l.State != models.StateSelection {
		return nil, ErrNotSelecting
	}
	if !p.Selectable() {
		return nil, ErrInvalidPaddle
	}

	staged := l.Clone()
	sm := staged.Member(userID)
	sm.PaddleType = &p
	if err := s.store.SaveLobby(ctx, staged); err != nil {
		return nil, persistence(err)
	}
	s.notify.EmitToGroup(l.ID, EventMemberUpdate, sm)

	if allSelected(staged) {
		if _, err := s.resolveSelectionLocked(ctx, staged); err != nil {
			return nil, err
		}
	}
	return sm, nil
}

// VoteMap records a member's map vote and broadcasts the tally.
func (s *Service) VoteMap(ctx context.Context, lobbyID, userID uuid.UUID, m models.MapName) ([]Vote, error) {
	release := s.lobbies.Lock(lobbyID)
	defer release()

	l, err := s.load(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if l.Member(userID) == nil {
		return nil, ErrMemberNotFound
	}
	if l.State != models.StateSelection {
		return nil, ErrNotSelecting
	}
	if !m.Valid() {
		return nil, ErrInvalidMap
	}

	staged := l.Clone()
	staged.Member(userID).MapVote = &m
	if err := s.store.SaveLobby(ctx, staged); err != nil {
		return nil, persistence(err)
	}
	votes := votesOf(staged)
	s.notify.EmitToGroup(l.ID, EventVote, VoteUpdate{LobbyID: l.ID, Votes: votes})
	return votes, nil
}

// Votes returns every member's current map vote.
func (s *Service) Votes(ctx context.Context, lobbyID uuid.UUID) ([]Vote, error) {
	l, err := s.load(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	return votesOf(l), nil
}

func (s *Service) resolveSelectionLocked(ctx context.Context, l *models.Lobby) (*models.Lobby, error) {
	s.stopSelectionTimer(l.ID)
	return s.enterGameLocked(ctx, l, majority(l))
}

func (s *Service) startSelectionTimer(lobbyID uuid.UUID) {
	if s.selectionTimeout <= 0 {
		return
	}
	t := time.AfterFunc(s.selectionTimeout, func() { s.selectionExpired(lobbyID) })

	s.timersMu.Lock()
	if old := s.timers[lobbyID]; old != nil {
		old.Stop()
	}
	s.timers[lobbyID] = t
	s.timersMu.Unlock()
}

func (s *Service) stopSelectionTimer(lobbyID uuid.UUID) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if t := s.timers[lobbyID]; t != nil {
		t.Stop()
		delete(s.timers, lobbyID)
	}
}

// selectionExpired forces resolution. Members without a paddle play the basic one. The state
// check makes a timer that fired after the phase ended a no-op.
func (s *Service) selectionExpired(lobbyID uuid.UUID) {
	release := s.lobbies.Lock(lobbyID)
	defer release()

	ctx := context.Background()
	l, err := s.load(ctx, lobbyID)
	if err != nil || l.State != models.StateSelection {
		return
	}
	s.logger(l).Info("selection timed out")
	if _, err := s.resolveSelectionLocked(ctx, l); err != nil {
		s.logger(l).WithError(err).Error("failed to resolve selection")
	}
}

func allSelected(l *models.Lobby) bool {
	for _, m := range l.Members {
		if m.PaddleType == nil {
			return false
		}
	}
	return len(l.Members) > 0
}

func votesOf(l *models.Lobby) []Vote {
	votes := make([]Vote, 0, len(l.Members))
	for _, m := range l.Members {
		votes = append(votes, Vote{UserID: m.UserID, Map: m.MapVote})
	}
	return votes
}

// majority picks the most voted map. Ties and an empty ballot keep the lobby's configured map.
func majority(l *models.Lobby) models.MapName {
	counts := make(map[models.MapName]int, len(models.Maps))
	for _, m := range l.Members {
		if m.MapVote != nil {
			counts[*m.MapVote]++
		}
	}
	best, bestN, tied := l.Map, 0, false
	for _, name := range models.Maps {
		switch n := counts[name]; {
		case n > bestN:
			best, bestN, tied = name, n, false
		case n == bestN && n > 0:
			tied = true
		}
	}
	if bestN == 0 || tied {
		return l.Map
	}
	return best
}
