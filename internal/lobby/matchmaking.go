// internal/lobby/matchmaking.go
package lobby

import (
	"context"
	"errors"
	"fmt"

	"github.com/jason-s-yu/pongarena/internal/models"
	"github.com/sirupsen/logrus"
)

// queueKey groups lobbies that could ever be matched together. Mode and size never change after
// creation, so the key is stable for a lobby's lifetime.
func queueKey(l *models.Lobby) string {
	return fmt.Sprintf("%s/%d", l.Mode, l.NbPlayers)
}

// compatible reports whether a parked lobby can complete l's roster.
func compatible(l, parked *models.Lobby) bool {
	if l.ID == parked.ID || l.Private || parked.Private {
		return false
	}
	if parked.State != models.StateMatchmaking {
		return false
	}
	if l.Mode != parked.Mode || l.NbPlayers != parked.NbPlayers {
		return false
	}
	if len(l.Members)+len(parked.Members) != l.NbPlayers {
		return false
	}
	// Champions matches pick their map by vote after the merge.
	return l.Mode == models.ModeChampions || l.Map == parked.Map
}

// mergeOrParkLocked either absorbs the oldest compatible parked lobby into l or parks l in
// MATCHMAKING. Must be called with both the queue token and l's token held. The returned bool
// reports whether a merge happened.
func (s *Service) mergeOrParkLocked(ctx context.Context, l *models.Lobby) (*models.Lobby, bool, error) {
	parked, err := s.store.ListLobbies(ctx, models.StateMatchmaking)
	if err != nil {
		return nil, false, persistence(err)
	}
	sortByAge(parked)

	for _, c := range parked {
		if !compatible(l, c) {
			continue
		}
		// Every lock holder on a parked lobby either finishes without the queue token or is
		// queued behind us on it, so blocking here is safe.
		release := s.lobbies.Lock(c.ID)
		other, err := s.load(ctx, c.ID)
		if errors.Is(err, ErrLobbyNotFound) || (err == nil && !compatible(l, other)) {
			release()
			continue
		}
		if err != nil {
			release()
			return nil, false, err
		}
		merged, err := s.mergeLocked(ctx, l, other)
		release()
		if err != nil {
			return nil, false, err
		}
		return merged, true, nil
	}

	staged := l.Clone()
	staged.State = models.StateMatchmaking
	if err := s.store.SaveLobby(ctx, staged); err != nil {
		return nil, false, persistence(err)
	}
	s.notify.EmitToGroup(l.ID, EventLobbyUpdate, update(staged))
	s.logger(staged).Info("lobby parked in matchmaking")
	return staged, false, nil
}

// mergeLocked moves other's members into l on team true and deletes other, atomically.
func (s *Service) mergeLocked(ctx context.Context, l, other *models.Lobby) (*models.Lobby, error) {
	staged := l.Clone()
	for _, m := range staged.Members {
		m.Team = false
	}
	for _, m := range other.Members {
		moved := m.Clone()
		moved.LobbyID = l.ID
		moved.Team = true
		staged.Members = append(staged.Members, moved)
	}
	staged.State = models.StateFull

	if err := s.store.MergeLobbies(ctx, staged, other.ID); err != nil {
		return nil, persistence(err)
	}

	for _, m := range other.Members {
		s.notify.LeaveGroup(other.ID, m.UserID)
		s.notify.JoinGroup(l.ID, m.UserID)
		s.notify.EmitToUser(m.UserID, EventLobbyMerged, LobbyMerged{From: other.ID, Into: l.ID})
		s.notify.EmitToGroup(l.ID, EventUserJoined, staged.Member(m.UserID))
	}
	u := update(staged)
	u.Lobby = staged
	s.notify.EmitToGroup(l.ID, EventLobbyUpdate, u)
	s.log.WithFields(logrus.Fields{"lobby_id": l.ID, "merged_from": other.ID}).Info("lobbies merged")
	return staged, nil
}
