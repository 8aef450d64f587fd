// internal/game/manager.go
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/models"
	"github.com/sirupsen/logrus"
)

var ErrMatchRunning = errors.New("lobby already has a running match")

// Publisher hands finished match records to the historian queue.
type Publisher interface {
	PublishMatch(ctx context.Context, rec models.MatchRecord) error
}

// Manager turns lobbies that reach GAME into running sessions and routes player input to them.
type Manager struct {
	ctx          context.Context
	cfg          Config
	readyTimeout time.Duration
	store        *SessionStore
	emit         Emitter
	publisher    Publisher
	log          logrus.FieldLogger

	// OnMatchEnd is called after a match completes and its registry entry is removed, so the
	// owning lobby can be closed.
	OnMatchEnd func(lobbyID uuid.UUID)
}

// NewManager builds a manager whose runners live until ctx is cancelled. publisher may be nil.
func NewManager(ctx context.Context, cfg Config, readyTimeout time.Duration, emit Emitter, publisher Publisher, log logrus.FieldLogger) *Manager {
	return &Manager{
		ctx:          ctx,
		cfg:          cfg,
		readyTimeout: readyTimeout,
		store:        NewSessionStore(),
		emit:         emit,
		publisher:    publisher,
		log:          log,
	}
}

// Sessions exposes the registry of running matches.
func (m *Manager) Sessions() *SessionStore {
	return m.store
}

// Launch creates and starts the session for a lobby that just entered GAME.
func (m *Manager) Launch(ctx context.Context, l *models.Lobby) error {
	roster := make([]PlayerSpec, 0, len(l.Members))
	for _, mem := range l.Members {
		spec := PlayerSpec{UserID: mem.UserID, Team: mem.Team, Paddle: models.PaddleBasic}
		if mem.PaddleType != nil {
			spec.Paddle = *mem.PaddleType
		}
		roster = append(roster, spec)
	}
	// Seats no member filled still get a paddle so both sides are defended.
	for _, team := range []bool{false, true} {
		for i := l.TeamSize(team); i < l.TeamCapacity(); i++ {
			roster = append(roster, PlayerSpec{
				UserID: uuid.NewSHA1(l.ID, []byte(fmt.Sprintf("vacant-%t-%d", team, i))),
				Team:   team,
				Paddle: models.PaddleBasic,
				Vacant: true,
			})
		}
	}

	s, err := NewSession(l.ID, l.Mode, l.Map, time.Duration(l.MaxDuration)*time.Second, roster, m.cfg)
	if err != nil {
		return err
	}

	r := NewRunner(s, m.emit, m.readyTimeout, m.log)
	r.OnFinish = func(s *Session, res TickResult) { m.finish(r, res) }
	if !m.store.Add(r) {
		return ErrMatchRunning
	}
	r.Start(m.ctx)

	m.log.WithFields(logrus.Fields{
		"lobby_id": l.ID,
		"match_id": s.ID,
		"players":  len(roster),
		"map":      l.Map,
	}).Info("match launched")
	return nil
}

// Teardown cancels the match of a lobby being disbanded. It is a no-op when none is running.
func (m *Manager) Teardown(lobbyID uuid.UUID) {
	if r := m.store.Remove(lobbyID, nil); r != nil {
		r.Stop()
		m.log.WithField("lobby_id", lobbyID).Info("match torn down")
	}
}

// ReadyToPlay marks userID ready in their running match.
func (m *Manager) ReadyToPlay(userID uuid.UUID) bool {
	r := m.store.FindByPlayer(userID)
	if r == nil {
		return false
	}
	r.MarkReady(userID)
	return true
}

// Command queues cmd for userID's paddle. Input for users outside any match is dropped.
func (m *Manager) Command(userID uuid.UUID, cmd Command) bool {
	r := m.store.FindByPlayer(userID)
	if r == nil {
		return false
	}
	return r.session.ApplyPaddleCommand(userID, cmd)
}

// SendGameInfo emits the full match description to userID only.
func (m *Manager) SendGameInfo(userID uuid.UUID) bool {
	r := m.store.FindByPlayer(userID)
	if r == nil {
		return false
	}
	m.emit.EmitToUser(userID, EventGameInfo, r.session.Info())
	return true
}

// Disconnect idles the paddle of a user whose connection dropped.
func (m *Manager) Disconnect(userID uuid.UUID) {
	if r := m.store.FindByPlayer(userID); r != nil {
		r.session.Idle(userID)
	}
}

// Shutdown stops every running match and waits for the runners to exit or ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) {
	if n := m.store.Len(); n > 0 {
		m.log.WithField("matches", n).Info("stopping running matches")
	}
	for _, r := range m.store.All() {
		m.store.Remove(r.session.LobbyID, r)
		r.Stop()
		select {
		case <-r.Done():
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) finish(r *Runner, res TickResult) {
	s := r.session
	if m.store.Remove(s.LobbyID, r) == nil {
		return
	}

	if m.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.publisher.PublishMatch(ctx, s.Record(time.Now())); err != nil {
			m.log.WithError(err).WithField("lobby_id", s.LobbyID).Warn("failed to publish match record")
		}
	}
	if m.OnMatchEnd != nil {
		m.OnMatchEnd(s.LobbyID)
	}
}
