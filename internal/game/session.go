// internal/game/session.go
package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/arena"
	"github.com/jason-s-yu/pongarena/internal/models"
)

// Config holds the tunables of a match simulation.
type Config struct {
	TickRate     int // ticks per second
	ScoreLimit   int // 0 disables the score bound
	Dimensions   arena.Dimensions
	BallSize     float64
	BallVelocity arena.Vector3 // kickoff velocity, units per second
	BallMaxSpeed float64
}

// DefaultConfig is the standard 60Hz first-to-five match.
func DefaultConfig() Config {
	return Config{
		TickRate:     60,
		ScoreLimit:   5,
		Dimensions:   arena.DefaultDimensions,
		BallSize:     0.5,
		BallVelocity: arena.Vec(3, 1.5, 12),
		BallMaxSpeed: 30,
	}
}

// TickInterval is the wall-clock duration of one tick.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// TickSeconds is the simulated duration of one tick.
func (c Config) TickSeconds() float64 {
	return 1 / float64(c.TickRate)
}

// elapsedEpsilon absorbs float accumulation error when comparing elapsed time to the bound.
const elapsedEpsilon = 1e-9

// PlayerSpec is one seat of the roster a session is created from. A vacant seat keeps an idle
// paddle for a slot no user filled.
type PlayerSpec struct {
	UserID uuid.UUID
	Team   bool
	Paddle models.PaddleType
	Vacant bool
}

// Player owns a paddle for the duration of a match.
type Player struct {
	ID     uuid.UUID
	Team   bool
	Vacant bool
	Paddle *arena.Paddle
}

var ErrEmptyRoster = errors.New("session needs at least one player per team")

// Session is the authoritative simulation of one match. It is the only writer of its state;
// input is queued with ApplyPaddleCommand and applied at the start of the next Advance.
type Session struct {
	ID          uuid.UUID
	LobbyID     uuid.UUID
	Mode        models.GameMode
	MaxDuration time.Duration // 0 disables the time bound
	StartedAt   time.Time

	cfg     Config
	engine  arena.CollisionEngine
	field   *arena.Field
	ball    *arena.Ball
	players []*Player
	index   map[uuid.UUID]int // occupied seats only
	humans  int

	mu      sync.Mutex
	pending []queuedCommand
	score   Score
	tick    uint64
	elapsed float64
	over    bool
	winner  *bool
}

// NewSession builds the field, ball and paddles for a roster. Team false players come first in
// the player order, each team keeping the roster's relative order.
func NewSession(lobbyID uuid.UUID, mode models.GameMode, mapName models.MapName, maxDuration time.Duration, roster []PlayerSpec, cfg Config) (*Session, error) {
	if cfg.TickRate <= 0 {
		return nil, fmt.Errorf("invalid tick rate %d", cfg.TickRate)
	}
	field, err := arena.NewField(mapName, cfg.Dimensions)
	if err != nil {
		return nil, err
	}

	var teams [2][]PlayerSpec
	for _, spec := range roster {
		teams[teamIndex(spec.Team)] = append(teams[teamIndex(spec.Team)], spec)
	}
	if len(teams[0]) == 0 || len(teams[1]) == 0 {
		return nil, ErrEmptyRoster
	}

	s := &Session{
		ID:          uuid.New(),
		LobbyID:     lobbyID,
		Mode:        mode,
		MaxDuration: maxDuration,
		StartedAt:   time.Now(),
		cfg:         cfg,
		field:       field,
		ball:        arena.NewBall(cfg.BallSize, arena.Vec(0, 0, 0), cfg.BallVelocity, cfg.BallMaxSpeed),
		index:       make(map[uuid.UUID]int, len(roster)),
	}
	for _, team := range teams {
		for slot, spec := range team {
			variant := arena.VariantFor(models.PaddleBasic)
			if mode == models.ModeChampions {
				variant = arena.VariantFor(spec.Paddle)
			}
			if !spec.Vacant {
				s.index[spec.UserID] = len(s.players)
				s.humans++
			}
			s.players = append(s.players, &Player{
				ID:     spec.UserID,
				Team:   spec.Team,
				Vacant: spec.Vacant,
				Paddle: field.NewPaddle(variant, spec.Team, slot, len(team)),
			})
		}
	}
	return s, nil
}

func teamIndex(team bool) int {
	if team {
		return 1
	}
	return 0
}

// Map is the layout this match is played on.
func (s *Session) Map() models.MapName {
	return s.field.Map
}

// Config returns the tunables the session was created with.
func (s *Session) Config() Config {
	return s.cfg
}

// Humans is the number of occupied seats.
func (s *Session) Humans() int {
	return s.humans
}

// HasPlayer reports whether userID holds an occupied seat.
func (s *Session) HasPlayer(userID uuid.UUID) bool {
	_, ok := s.index[userID]
	return ok
}

// ApplyPaddleCommand queues cmd for the player's paddle. Commands for players outside the
// roster, or after the match ended, are dropped. It reports whether cmd was queued.
func (s *Session) ApplyPaddleCommand(playerID uuid.UUID, cmd Command) bool {
	idx, ok := s.index[playerID]
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.over {
		return false
	}
	s.pending = append(s.pending, queuedCommand{player: idx, cmd: cmd})
	return true
}

// Idle stops a player's paddle, used when their connection drops. The player stays in the match.
func (s *Session) Idle(playerID uuid.UUID) {
	s.ApplyPaddleCommand(playerID, Command{Kind: CommandStop})
}

// Advance runs one tick of dt seconds: queued input, paddle motion, ball integration,
// collisions, queued abilities, scoring and the end-of-match check.
func (s *Session) Advance(dt float64) TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.over {
		return TickResult{Snapshot: s.snapshotLocked(), Over: true, Winner: s.winner}
	}

	s.tick++
	var events []Event

	var abilities []int
	for _, q := range s.pending {
		paddle := s.players[q.player].Paddle
		switch q.cmd.Kind {
		case CommandMove:
			paddle.SetIntent(q.cmd.Axis, q.cmd.Direction, true)
		case CommandNudge:
			paddle.SetIntent(q.cmd.Axis, q.cmd.Direction, false)
		case CommandStop:
			paddle.Stop()
		case CommandAbility:
			abilities = append(abilities, q.player)
		}
	}
	s.pending = s.pending[:0]

	paddles := make([]*arena.Paddle, len(s.players))
	for i, p := range s.players {
		p.Paddle.Step(dt)
		paddles[i] = p.Paddle
	}

	prev := s.ball.Center
	s.ball.Update(dt)
	contacts := s.engine.Resolve(s.ball, prev, s.field.Walls, paddles, s.field.Goals)

	scored := -1
	for _, c := range contacts {
		switch c.Kind {
		case arena.KindPaddle:
			p := s.players[c.Index]
			events = append(events, Event{Type: EventHit, Team: p.Team, PlayerID: p.ID, Score: s.score})
		case arena.KindGoal:
			if scored < 0 {
				scored = c.Index
			}
		}
	}

	if scored >= 0 {
		// The ball is about to be reset, so abilities wait for the kickoff tick.
		for _, idx := range abilities {
			s.pending = append(s.pending, queuedCommand{player: idx, cmd: Command{Kind: CommandAbility}})
		}
	} else if s.Mode == models.ModeChampions {
		for _, idx := range abilities {
			p := s.players[idx]
			if p.Paddle.Trigger(s.ball) {
				events = append(events, Event{
					Type:     EventAbility,
					Team:     p.Team,
					PlayerID: p.ID,
					Ability:  p.Paddle.Variant.Ability.String(),
					Score:    s.score,
				})
			}
		}
	}

	if scored >= 0 {
		team := s.field.Goals[scored].ScoringTeam
		s.score.add(team)
		s.ball.Reset()
		events = append(events, Event{Type: EventGoal, Team: team, Score: s.score})
	}

	s.elapsed += dt
	s.checkEndLocked()

	return TickResult{
		Snapshot: s.snapshotLocked(),
		Events:   events,
		Over:     s.over,
		Winner:   s.winner,
	}
}

func (s *Session) checkEndLocked() {
	if limit := s.cfg.ScoreLimit; limit > 0 && (s.score.False >= limit || s.score.True >= limit) {
		s.over = true
		s.winner = s.score.Leader()
		return
	}
	if s.MaxDuration > 0 && s.elapsed+elapsedEpsilon >= s.MaxDuration.Seconds() {
		s.over = true
		s.winner = s.score.Leader()
	}
}

// Over reports whether the match has ended.
func (s *Session) Over() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.over
}

// Snapshot returns the current broadcast view without advancing the match.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Tick:    s.tick,
		Ball:    BallState{Box: s.ball.Box, Velocity: s.ball.Velocity},
		Paddles: make([]PaddleState, len(s.players)),
		Score:   s.score,
		Elapsed: s.elapsed,
	}
	for i, p := range s.players {
		snap.Paddles[i] = paddleState(p)
	}
	return snap
}

func paddleState(p *Player) PaddleState {
	return PaddleState{
		Box:      p.Paddle.Box,
		PlayerID: p.ID,
		Team:     p.Team,
		Variant:  p.Paddle.Variant.Type,
		Cooldown: p.Paddle.Cooldown(),
		Charged:  p.Paddle.Charged(),
	}
}

// Info describes the whole match for a client that just joined or asked for a refresh.
func (s *Session) Info() GameInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := GameInfo{
		MatchID:     s.ID,
		LobbyID:     s.LobbyID,
		Mode:        s.Mode,
		Map:         s.field.Map,
		Dimensions:  s.field.Dims,
		Walls:       append([]arena.Wall(nil), s.field.Walls...),
		Goals:       append([]arena.Goal(nil), s.field.Goals...),
		Players:     make([]PlayerInfo, len(s.players)),
		Ball:        BallState{Box: s.ball.Box, Velocity: s.ball.Velocity},
		Score:       s.score,
		ScoreLimit:  s.cfg.ScoreLimit,
		MaxDuration: s.MaxDuration.Seconds(),
		Elapsed:     s.elapsed,
	}
	for i, p := range s.players {
		info.Players[i] = PlayerInfo{ID: p.ID, Team: p.Team, Vacant: p.Vacant, Paddle: paddleState(p), Type: p.Paddle.Variant.Type}
	}
	return info
}

// Record summarizes the match for the historian.
func (s *Session) Record(endedAt time.Time) models.MatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := models.MatchRecord{
		MatchID:    s.ID,
		LobbyID:    s.LobbyID,
		Mode:       s.Mode,
		Map:        s.field.Map,
		ScoreFalse: s.score.False,
		ScoreTrue:  s.score.True,
		Winner:     s.winner,
		DurationMs: int64(s.elapsed * 1000),
		StartedAt:  s.StartedAt,
		EndedAt:    endedAt,
	}
	for _, p := range s.players {
		if p.Vacant {
			continue
		}
		rec.Players = append(rec.Players, models.MatchPlayer{UserID: p.ID, Team: p.Team, Paddle: p.Paddle.Variant.Type})
	}
	return rec
}
