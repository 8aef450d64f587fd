// internal/lobby/service.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/database"
	"github.com/jason-s-yu/pongarena/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	minPlayers = 2
	maxPlayers = 8
)

// Service is the lobby state machine. Every transition is staged on a copy of the stored lobby,
// persisted, and only then announced; a persistence failure leaves no trace.
//
// Lock order: requester user token, then matchmaking queue token, then lobby token. A second
// lobby token is only taken while merging, under the queue token.
type Service struct {
	store    Store
	notify   Notifier
	launcher Launcher
	log      logrus.FieldLogger

	selectionTimeout time.Duration

	users   *tokens[uuid.UUID]
	lobbies *tokens[uuid.UUID]
	queues  *tokens[string]

	timersMu sync.Mutex
	timers   map[uuid.UUID]*time.Timer
}

// NewService wires the state machine to its collaborators. launcher may be nil, in which case
// lobbies reach GAME without a running match.
func NewService(store Store, notify Notifier, launcher Launcher, selectionTimeout time.Duration, log logrus.FieldLogger) *Service {
	return &Service{
		store:            store,
		notify:           notify,
		launcher:         launcher,
		log:              log,
		selectionTimeout: selectionTimeout,
		users:            newTokens[uuid.UUID](),
		lobbies:          newTokens[uuid.UUID](),
		queues:           newTokens[string](),
		timers:           make(map[uuid.UUID]*time.Timer),
	}
}

// CreateParams are the settings chosen by a lobby's owner.
type CreateParams struct {
	NbPlayers   int             `json:"nbPlayers"`
	MaxDuration int             `json:"maxDuration"` // seconds, 0 for no time limit
	Mode        models.GameMode `json:"mode"`
	Map         models.MapName  `json:"map"`
	Private     bool            `json:"private"`
}

func (p CreateParams) validate() error {
	if p.NbPlayers < minPlayers || p.NbPlayers > maxPlayers || p.NbPlayers%2 != 0 {
		return ErrInvalidSettings
	}
	if p.MaxDuration < 0 || !p.Mode.Valid() {
		return ErrInvalidSettings
	}
	if !p.Map.Valid() {
		return ErrInvalidMap
	}
	return nil
}

// Create opens a lobby with ownerID as its first, ready member on team false.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, p CreateParams) (*models.Lobby, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	release := s.users.Lock(ownerID)
	defer release()

	if err := s.ensureFree(ctx, ownerID); err != nil {
		return nil, err
	}

	now := time.Now()
	l := &models.Lobby{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		NbPlayers:   p.NbPlayers,
		MaxDuration: p.MaxDuration,
		Mode:        p.Mode,
		Map:         p.Map,
		State:       models.StateJoinable,
		Private:     p.Private,
		CreatedAt:   now,
	}
	l.Members = []*models.LobbyMember{{LobbyID: l.ID, UserID: ownerID, Team: false, Ready: true, JoinedAt: now}}
	// A two-seat lobby needs no one else to be started.
	if p.NbPlayers == minPlayers {
		l.State = models.StateFull
	}

	if err := s.store.CreateLobby(ctx, l); err != nil {
		return nil, persistence(err)
	}
	s.notify.JoinGroup(l.ID, ownerID)
	s.notify.EmitToGroup(l.ID, EventLobbyUpdate, update(l))
	s.logger(l).Info("lobby created")
	return l, nil
}

// Join seats userID on the team with fewer members, ties going to team false.
func (s *Service) Join(ctx context.Context, lobbyID, userID uuid.UUID) (*models.Lobby, error) {
	releaseUser := s.users.Lock(userID)
	defer releaseUser()
	if err := s.ensureFree(ctx, userID); err != nil {
		return nil, err
	}

	release := s.lobbies.Lock(lobbyID)
	defer release()
	l, err := s.load(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if l.State != models.StateJoinable || len(l.Members) >= l.NbPlayers {
		return nil, ErrNotJoinable
	}

	staged := l.Clone()
	member := &models.LobbyMember{
		LobbyID:  l.ID,
		UserID:   userID,
		Team:     staged.TeamSize(false) > staged.TeamSize(true),
		JoinedAt: time.Now(),
	}
	staged.Members = append(staged.Members, member)
	reevaluate(staged)

	n, err := s.store.JoinLobby(ctx, staged, userID)
	if err != nil {
		return nil, persistence(err)
	}
	if n > 0 {
		s.logger(l).WithField("user_id", userID).Debugf("consumed %d invitation(s)", n)
	}

	s.notify.JoinGroup(l.ID, userID)
	s.notify.EmitToGroup(l.ID, EventUserJoined, member)
	if staged.State != l.State {
		s.notify.EmitToGroup(l.ID, EventLobbyUpdate, update(staged))
	}
	s.logger(staged).WithField("user_id", userID).Info("user joined lobby")
	return staged, nil
}

// Leave removes userID from the lobby. The owner leaving closes the lobby for everyone.
func (s *Service) Leave(ctx context.Context, lobbyID, userID uuid.UUID) error {
	releaseUser := s.users.Lock(userID)
	defer releaseUser()
	release := s.lobbies.Lock(lobbyID)
	defer release()

	l, err := s.load(ctx, lobbyID)
	if err != nil {
		return err
	}
	if l.Member(userID) == nil {
		return ErrMemberNotFound
	}
	if userID == l.OwnerID {
		return s.closeLocked(ctx, l, ReasonLeft)
	}
	if inMatch(l) {
		return ErrLobbyInMatch
	}
	_, err = s.removeLocked(ctx, l, userID, ReasonLeft)
	return err
}

// Kick removes a non-owner member on the owner's behalf.
func (s *Service) Kick(ctx context.Context, lobbyID, ownerID, targetID uuid.UUID) error {
	release := s.lobbies.Lock(lobbyID)
	defer release()

	l, err := s.load(ctx, lobbyID)
	if err != nil {
		return err
	}
	if l.OwnerID != ownerID {
		return ErrNotOwner
	}
	if targetID == ownerID {
		return ErrCannotKickSelf
	}
	if l.Member(targetID) == nil {
		return ErrMemberNotFound
	}
	if inMatch(l) {
		return ErrLobbyInMatch
	}
	if _, err := s.removeLocked(ctx, l, targetID, ReasonKicked); err != nil {
		return err
	}
	s.notify.EmitToUser(targetID, EventKicked, ForcedLeave{LobbyID: l.ID, Reason: ReasonKicked})
	return nil
}

// ChangeTeam moves an unready member of a private lobby to the other team.
func (s *Service) ChangeTeam(ctx context.Context, lobbyID, userID uuid.UUID) (*models.LobbyMember, error) {
	release := s.lobbies.Lock(lobbyID)
	defer release()

	l, err := s.load(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	m := l.Member(userID)
	if m == nil {
		return nil, ErrMemberNotFound
	}
	if inMatch(l) || l.State == models.StateMatchmaking {
		return nil, ErrLobbyInMatch
	}
	if !l.Private {
		return nil, ErrNotPrivate
	}
	if m.Ready {
		return nil, ErrIllegalWhileReady
	}
	if l.TeamSize(!m.Team) >= l.TeamCapacity() {
		return nil, ErrTeamFull
	}

	staged := l.Clone()
	sm := staged.Member(userID)
	sm.Team = !sm.Team
	if err := s.store.SaveLobby(ctx, staged); err != nil {
		return nil, persistence(err)
	}
	s.notify.EmitToGroup(l.ID, EventMemberUpdate, sm)
	return sm, nil
}

// ChangePrivacy toggles the lobby between private and public. Members of the opposing team are
// moved onto the owner's team up to its capacity and unreadied; anyone left over is forced out.
// The owner's team always ends up as team false.
func (s *Service) ChangePrivacy(ctx context.Context, lobbyID, ownerID uuid.UUID) (*models.Lobby, error) {
	release := s.lobbies.Lock(lobbyID)
	defer release()

	l, err := s.load(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if l.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	if inMatch(l) || l.State == models.StateMatchmaking {
		return nil, ErrLobbyInMatch
	}

	staged := l.Clone()
	ownerTeam := staged.Member(ownerID).Team
	room := staged.TeamCapacity() - staged.TeamSize(ownerTeam)
	var evicted []uuid.UUID
	kept := make([]*models.LobbyMember, 0, len(staged.Members))
	for _, m := range staged.Members {
		if m.Team != ownerTeam {
			if room <= 0 {
				evicted = append(evicted, m.UserID)
				continue
			}
			room--
			m.Team = ownerTeam
			m.Ready = false
		}
		kept = append(kept, m)
	}
	staged.Members = kept
	if ownerTeam {
		for _, m := range staged.Members {
			m.Team = false
			m.Ready = false
		}
	}
	staged.Private = !staged.Private
	reevaluate(staged)

	if err := s.store.SaveLobby(ctx, staged); err != nil {
		return nil, persistence(err)
	}
	for _, id := range evicted {
		s.notify.EmitToUser(id, EventForcedLeave, ForcedLeave{LobbyID: l.ID, Reason: ReasonRebalance})
		s.notify.EmitToGroup(l.ID, EventUserLeft, UserLeft{LobbyID: l.ID, UserID: id, Reason: ReasonRebalance})
		s.notify.LeaveGroup(l.ID, id)
	}
	u := update(staged)
	u.Lobby = staged
	s.notify.EmitToGroup(l.ID, EventLobbyUpdate, u)
	s.logger(staged).WithField("evicted", len(evicted)).Info("lobby privacy changed")
	return staged, nil
}

// ChangeReady toggles a member's readiness. Unreadying a lobby parked in matchmaking withdraws it.
func (s *Service) ChangeReady(ctx context.Context, lobbyID, userID uuid.UUID) (*models.LobbyMember, error) {
	release := s.lobbies.Lock(lobbyID)
	defer release()

	l, err := s.load(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if l.Member(userID) == nil {
		return nil, ErrMemberNotFound
	}
	if inMatch(l) {
		return nil, ErrLobbyInMatch
	}

	staged := l.Clone()
	sm := staged.Member(userID)
	sm.Ready = !sm.Ready
	if staged.State == models.StateMatchmaking && !sm.Ready {
		staged.State = models.StateFull
	}
	if err := s.store.SaveLobby(ctx, staged); err != nil {
		return nil, persistence(err)
	}
	s.notify.EmitToGroup(l.ID, EventMemberUpdate, sm)
	if staged.State != l.State {
		s.notify.EmitToGroup(l.ID, EventLobbyUpdate, update(staged))
	}
	return sm, nil
}

// Invite records a pending invitation and notifies the invitee.
func (s *Service) Invite(ctx context.Context, lobbyID, ownerID, inviteeID uuid.UUID) (*models.Invitation, error) {
	release := s.lobbies.Lock(lobbyID)
	defer release()

	l, err := s.load(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if l.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	if l.Member(inviteeID) != nil {
		return nil, ErrAlreadyInLobby
	}

	inv := &models.Invitation{ID: uuid.New(), LobbyID: l.ID, UserID: inviteeID, CreatedAt: time.Now()}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, persistence(err)
	}
	s.notify.EmitToUser(inviteeID, EventInvitation, InvitationNotice{InvitationID: inv.ID, LobbyID: l.ID, From: ownerID})
	return inv, nil
}

// StartGame moves a full, ready lobby towards a match. Public lobbies first look for a parked
// opponent to merge with and park themselves in MATCHMAKING when none is available.
func (s *Service) StartGame(ctx context.Context, lobbyID, userID uuid.UUID) (*models.Lobby, error) {
	peek, err := s.load(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	releaseQueue := s.queues.Lock(queueKey(peek))
	defer releaseQueue()
	release := s.lobbies.Lock(lobbyID)
	defer release()

	l, err := s.load(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if l.OwnerID != userID {
		return nil, ErrNotOwner
	}
	if l.State != models.StateFull {
		return nil, ErrNotFull
	}
	if !l.AllReady() {
		return nil, ErrNotReady
	}

	if !l.Private {
		next, merged, err := s.mergeOrParkLocked(ctx, l)
		if err != nil || !merged {
			return next, err
		}
		l = next
	}

	if l.Mode == models.ModeChampions {
		return s.beginSelectionLocked(ctx, l)
	}
	return s.enterGameLocked(ctx, l, l.Map)
}

// FinishMatch closes a lobby whose match has completed.
func (s *Service) FinishMatch(ctx context.Context, lobbyID uuid.UUID) error {
	release := s.lobbies.Lock(lobbyID)
	defer release()

	l, err := s.load(ctx, lobbyID)
	if err != nil {
		return err
	}
	if l.State != models.StateGame {
		return nil
	}
	return s.closeLocked(ctx, l, ReasonClosed)
}

// Get returns the stored lobby.
func (s *Service) Get(ctx context.Context, lobbyID uuid.UUID) (*models.Lobby, error) {
	return s.load(ctx, lobbyID)
}

// List returns lobbies in any of states, or every lobby when none is given.
func (s *Service) List(ctx context.Context, states ...models.LobbyState) ([]*models.Lobby, error) {
	ls, err := s.store.ListLobbies(ctx, states...)
	if err != nil {
		return nil, persistence(err)
	}
	return ls, nil
}

// FindForUser returns the lobby userID currently belongs to.
func (s *Service) FindForUser(ctx context.Context, userID uuid.UUID) (*models.Lobby, error) {
	l, err := s.store.FindLobbyForUser(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrLobbyNotFound
	}
	if err != nil {
		return nil, persistence(err)
	}
	return l, nil
}

// Maps lists the playable layouts.
func (s *Service) Maps() []models.MapName {
	return append([]models.MapName(nil), models.Maps...)
}

// Close stops pending selection timers.
func (s *Service) Close() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *Service) load(ctx context.Context, lobbyID uuid.UUID) (*models.Lobby, error) {
	l, err := s.store.GetLobby(ctx, lobbyID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrLobbyNotFound
	}
	if err != nil {
		return nil, persistence(err)
	}
	return l, nil
}

func (s *Service) ensureFree(ctx context.Context, userID uuid.UUID) error {
	_, err := s.store.FindLobbyForUser(ctx, userID)
	switch {
	case err == nil:
		return ErrAlreadyInLobby
	case errors.Is(err, database.ErrNotFound):
		return nil
	default:
		return persistence(err)
	}
}

// removeLocked drops userID from l and re-evaluates fullness. A lobby parked in matchmaking is
// withdrawn since it no longer has the roster it was matched on.
func (s *Service) removeLocked(ctx context.Context, l *models.Lobby, userID uuid.UUID, reason string) (*models.Lobby, error) {
	staged := l.Clone()
	staged.RemoveMember(userID)
	if staged.State == models.StateMatchmaking {
		staged.State = models.StateFull
	}
	reevaluate(staged)

	if err := s.store.SaveLobby(ctx, staged); err != nil {
		return nil, persistence(err)
	}
	s.notify.EmitToGroup(l.ID, EventUserLeft, UserLeft{LobbyID: l.ID, UserID: userID, Reason: reason})
	s.notify.LeaveGroup(l.ID, userID)
	if staged.State != l.State {
		s.notify.EmitToGroup(l.ID, EventLobbyUpdate, update(staged))
	}
	s.logger(staged).WithFields(logrus.Fields{"user_id": userID, "reason": reason}).Info("user left lobby")
	return staged, nil
}

// closeLocked deletes the lobby, cancels anything running for it and releases every member.
func (s *Service) closeLocked(ctx context.Context, l *models.Lobby, reason string) error {
	if err := s.store.DeleteLobby(ctx, l.ID); err != nil {
		return persistence(err)
	}
	s.stopSelectionTimer(l.ID)
	if l.State == models.StateGame && s.launcher != nil {
		s.launcher.Teardown(l.ID)
	}

	closed := l.Clone()
	closed.State = models.StateClosed
	s.notify.EmitToGroup(l.ID, EventLobbyUpdate, update(closed))
	for _, m := range l.Members {
		s.notify.LeaveGroup(l.ID, m.UserID)
	}
	s.logger(closed).WithField("reason", reason).Info("lobby closed")
	return nil
}

// enterGameLocked persists GAME on mapName, then hands the roster to the launcher. If the
// launcher refuses, l is restored.
func (s *Service) enterGameLocked(ctx context.Context, l *models.Lobby, mapName models.MapName) (*models.Lobby, error) {
	staged := l.Clone()
	staged.State = models.StateGame
	staged.Map = mapName
	if err := s.store.SaveLobby(ctx, staged); err != nil {
		return nil, persistence(err)
	}
	if s.launcher != nil {
		if err := s.launcher.Launch(ctx, staged); err != nil {
			if rerr := s.store.SaveLobby(ctx, l); rerr != nil {
				s.logger(l).WithError(rerr).Error("failed to restore lobby after launch failure")
			}
			return nil, fmt.Errorf("launch match: %w", err)
		}
	}
	s.notify.EmitToGroup(l.ID, EventLobbyUpdate, update(staged))
	s.notify.EmitToGroup(l.ID, EventRedirectToGame, Redirect{LobbyID: l.ID, Map: staged.Map, Mode: staged.Mode})
	s.logger(staged).WithField("players", len(staged.Members)).Info("lobby entered game")
	return staged, nil
}

func (s *Service) logger(l *models.Lobby) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{"lobby_id": l.ID, "state": l.State})
}

// isFull applies the capacity rule: a private lobby seats both teams, a public one only its half
// and leaves the other to the lobby it will be matched with.
func isFull(l *models.Lobby) bool {
	if l.Private {
		return len(l.Members) >= l.NbPlayers
	}
	return len(l.Members) >= l.TeamCapacity()
}

// reevaluate flips between JOINABLE and FULL after a roster change.
func reevaluate(l *models.Lobby) {
	switch {
	case l.State == models.StateJoinable && isFull(l):
		l.State = models.StateFull
	case l.State == models.StateFull && !isFull(l):
		l.State = models.StateJoinable
	}
}

func inMatch(l *models.Lobby) bool {
	return l.State == models.StateSelection || l.State == models.StateGame
}

func sortByAge(ls []*models.Lobby) {
	sort.SliceStable(ls, func(i, j int) bool { return ls[i].CreatedAt.Before(ls[j].CreatedAt) })
}
