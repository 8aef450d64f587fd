// internal/game/snapshot.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/arena"
	"github.com/jason-s-yu/pongarena/internal/models"
)

// Score holds the goals scored by each team, keyed the way teams are on the wire.
type Score struct {
	False int `json:"false" msgpack:"f"`
	True  int `json:"true" msgpack:"t"`
}

// Of returns the score of team.
func (s Score) Of(team bool) int {
	if team {
		return s.True
	}
	return s.False
}

func (s *Score) add(team bool) {
	if team {
		s.True++
	} else {
		s.False++
	}
}

// Leader returns the team ahead, or nil on a draw.
func (s Score) Leader() *bool {
	switch {
	case s.True > s.False:
		t := true
		return &t
	case s.False > s.True:
		f := false
		return &f
	default:
		return nil
	}
}

// BallState is the broadcast view of the ball.
type BallState struct {
	arena.Box
	Velocity arena.Vector3 `json:"speed" msgpack:"v"`
}

// PaddleState is the broadcast view of one player's paddle.
type PaddleState struct {
	arena.Box
	PlayerID uuid.UUID         `json:"playerId" msgpack:"id"`
	Team     bool              `json:"team" msgpack:"t"`
	Variant  models.PaddleType `json:"variant" msgpack:"k"`
	Cooldown int               `json:"cooldown" msgpack:"c"`
	Charged  bool              `json:"charged,omitempty" msgpack:"h,omitempty"` // power shot armed
}

// Snapshot is the immutable per-tick state sent to clients as a frame.
type Snapshot struct {
	Tick    uint64        `json:"tick" msgpack:"n"`
	Ball    BallState     `json:"ball" msgpack:"b"`
	Paddles []PaddleState `json:"paddles" msgpack:"p"`
	Score   Score         `json:"score" msgpack:"s"`
	Elapsed float64       `json:"elapsed" msgpack:"e"` // seconds
}

// PlayerInfo is the static part of a player sent with game-info.
type PlayerInfo struct {
	ID     uuid.UUID         `json:"id"`
	Team   bool              `json:"team"`
	Vacant bool              `json:"vacant,omitempty"`
	Paddle PaddleState       `json:"paddle"`
	Type   models.PaddleType `json:"paddleType"`
}

// GameInfo is the full on-demand description of a running match.
type GameInfo struct {
	MatchID     uuid.UUID        `json:"matchId"`
	LobbyID     uuid.UUID        `json:"lobbyId"`
	Mode        models.GameMode  `json:"mode"`
	Map         models.MapName   `json:"map"`
	Dimensions  arena.Dimensions `json:"dimensions"`
	Walls       []arena.Wall     `json:"walls"`
	Goals       []arena.Goal     `json:"goals"`
	Players     []PlayerInfo     `json:"players"`
	Ball        BallState        `json:"ball"`
	Score       Score            `json:"score"`
	ScoreLimit  int              `json:"scoreLimit"`
	MaxDuration float64          `json:"maxDuration"` // seconds, 0 when unbounded
	Elapsed     float64          `json:"elapsed"`
}

// EventType tags notable things that happened during a tick.
type EventType string

const (
	EventGoal    EventType = "goal"
	EventHit     EventType = "hit"
	EventAbility EventType = "ability"
)

// Event is reported alongside the snapshot of the tick it happened in.
type Event struct {
	Type     EventType `json:"type"`
	Team     bool      `json:"team"`               // scoring team for goals, paddle team otherwise
	PlayerID uuid.UUID `json:"playerId,omitempty"` // hits and abilities
	Ability  string    `json:"ability,omitempty"`
	Score    Score     `json:"score"`
}

// TickResult is what Advance returns for one tick.
type TickResult struct {
	Snapshot Snapshot
	Events   []Event
	Over     bool
	Winner   *bool // nil on a draw or while running
}

// Goals filters the goal events.
func (r TickResult) Goals() []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Type == EventGoal {
			out = append(out, e)
		}
	}
	return out
}
