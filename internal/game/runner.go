// internal/game/runner.go
package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Emitter delivers events to connected users. Delivery is best-effort.
type Emitter interface {
	EmitToUser(userID uuid.UUID, event string, payload interface{})
	EmitToGroup(groupID uuid.UUID, event string, payload interface{})
}

// Outbound match events.
const (
	EventFrame       = "frame"
	EventScoreUpdate = "score-update"
	EventGameOver    = "game-over"
	EventGameInfo    = "game-info"
	EventGameStart   = "game-start"
	EventAbilityUsed = "ability-used"
)

// GameOver is the payload of the final match event.
type GameOver struct {
	LobbyID uuid.UUID `json:"lobbyId"`
	Score   Score     `json:"score"`
	Winner  *bool     `json:"winner"`
}

// Runner drives one session at a fixed rate and broadcasts a frame per tick. It waits for every
// player to report ready-to-play, or for the ready timeout, before the first tick.
type Runner struct {
	session      *Session
	emit         Emitter
	log          logrus.FieldLogger
	readyTimeout time.Duration

	// OnFinish is called from the runner goroutine once the match reaches its score or time
	// bound. It is not called when the runner is stopped.
	OnFinish func(*Session, TickResult)

	readyMu   sync.Mutex
	ready     map[uuid.UUID]bool
	allReady  chan struct{}
	readyOnce sync.Once

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// NewRunner prepares a runner for s. Nothing happens until Start.
func NewRunner(s *Session, emit Emitter, readyTimeout time.Duration, log logrus.FieldLogger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		ctx:          ctx,
		cancel:       cancel,
		session:      s,
		emit:         emit,
		log:          log.WithFields(logrus.Fields{"lobby_id": s.LobbyID, "match_id": s.ID}),
		readyTimeout: readyTimeout,
		ready:        make(map[uuid.UUID]bool),
		allReady:     make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Session returns the simulated match.
func (r *Runner) Session() *Session {
	return r.session
}

// Start launches the tick loop. Cancelling parent stops the runner like Stop does.
func (r *Runner) Start(parent context.Context) {
	context.AfterFunc(parent, r.Stop)
	go r.loop(r.ctx)
}

// MarkReady records a player's ready-to-play. Unknown users are ignored.
func (r *Runner) MarkReady(userID uuid.UUID) {
	if !r.session.HasPlayer(userID) {
		return
	}
	r.readyMu.Lock()
	r.ready[userID] = true
	n := len(r.ready)
	r.readyMu.Unlock()

	if n == r.session.Humans() {
		r.readyOnce.Do(func() { close(r.allReady) })
	}
}

// Stop cancels the tick loop. It is safe to call more than once and from any goroutine,
// including OnFinish.
func (r *Runner) Stop() {
	r.stopOnce.Do(r.cancel)
}

// Done is closed once the tick loop has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	var timeout <-chan time.Time
	if r.readyTimeout > 0 {
		t := time.NewTimer(r.readyTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-ctx.Done():
		return
	case <-r.allReady:
	case <-timeout:
		r.log.Warn("ready-to-play timeout, starting without every player")
	}

	lobbyID := r.session.LobbyID
	r.emit.EmitToGroup(lobbyID, EventGameStart, r.session.Info())
	r.log.Info("match started")

	cfg := r.session.Config()
	dt := cfg.TickSeconds()
	ticker := time.NewTicker(cfg.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Debug("match runner stopped")
			return
		case <-ticker.C:
			res := r.session.Advance(dt)
			r.emit.EmitToGroup(lobbyID, EventFrame, res.Snapshot)
			for _, ev := range res.Goals() {
				r.emit.EmitToGroup(lobbyID, EventScoreUpdate, ev)
			}
			for _, ev := range res.Events {
				if ev.Type == EventAbility {
					r.emit.EmitToGroup(lobbyID, EventAbilityUsed, ev)
				}
			}
			if res.Over {
				r.emit.EmitToGroup(lobbyID, EventGameOver, GameOver{LobbyID: lobbyID, Score: res.Snapshot.Score, Winner: res.Winner})
				r.log.WithField("score", res.Snapshot.Score).Info("match finished")
				if r.OnFinish != nil {
					r.OnFinish(r.session, res)
				}
				return
			}
		}
	}
}
