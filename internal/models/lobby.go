// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LobbyState is the lifecycle state of a lobby.
type LobbyState string

const (
	StateJoinable    LobbyState = "JOINABLE"
	StateFull        LobbyState = "FULL"
	StateMatchmaking LobbyState = "MATCHMAKING"
	StateSelection   LobbyState = "SELECTION"
	StateGame        LobbyState = "GAME"
	StateClosed      LobbyState = "CLOSED" // terminal, never persisted
)

// Valid reports whether s is a state a stored lobby can be in.
func (s LobbyState) Valid() bool {
	switch s {
	case StateJoinable, StateFull, StateMatchmaking, StateSelection, StateGame:
		return true
	}
	return false
}

// GameMode selects between the plain and the ability-enabled ruleset.
type GameMode string

const (
	ModeClassic   GameMode = "CLASSIC"
	ModeChampions GameMode = "CHAMPIONS"
)

// Valid reports whether m is a known mode.
func (m GameMode) Valid() bool {
	return m == ModeClassic || m == ModeChampions
}

// MapName identifies an arena layout.
type MapName string

const (
	MapClassic MapName = "CLASSIC"
	MapSpace   MapName = "SPACE"
)

// Maps lists every playable layout in display order.
var Maps = []MapName{MapClassic, MapSpace}

// Valid reports whether m is a known map.
func (m MapName) Valid() bool {
	for _, known := range Maps {
		if m == known {
			return true
		}
	}
	return false
}

// PaddleType is the paddle variant a member plays with.
type PaddleType string

const (
	PaddleBasic  PaddleType = "BASIC"
	PaddleRed    PaddleType = "RED"
	PaddleBlue   PaddleType = "BLUE"
	PaddleOrange PaddleType = "ORANGE"
	PaddlePurple PaddleType = "PURPLE"
	PaddleGreen  PaddleType = "GREEN"
)

// ChampionPaddles are the variants selectable during the selection phase.
var ChampionPaddles = []PaddleType{PaddleRed, PaddleBlue, PaddleOrange, PaddlePurple, PaddleGreen}

// Selectable reports whether p may be picked during selection.
func (p PaddleType) Selectable() bool {
	for _, known := range ChampionPaddles {
		if p == known {
			return true
		}
	}
	return false
}

// Lobby is the durable record of a pre-match grouping.
type Lobby struct {
	ID          uuid.UUID      `json:"id"`
	OwnerID     uuid.UUID      `json:"ownerId"`
	NbPlayers   int            `json:"nbPlayers"`
	MaxDuration int            `json:"maxDuration"` // seconds
	Mode        GameMode       `json:"mode"`
	Map         MapName        `json:"map"`
	State       LobbyState     `json:"state"`
	Private     bool           `json:"private"`
	CreatedAt   time.Time      `json:"createdAt"`
	Members     []*LobbyMember `json:"members"`
}

// LobbyMember is one user's seat in a lobby.
type LobbyMember struct {
	LobbyID    uuid.UUID   `json:"lobbyId"`
	UserID     uuid.UUID   `json:"userId"`
	Team       bool        `json:"team"`
	Ready      bool        `json:"ready"`
	PaddleType *PaddleType `json:"paddleType,omitempty"`
	MapVote    *MapName    `json:"mapVote,omitempty"`
	JoinedAt   time.Time   `json:"joinedAt"`
}

// Invitation is a pending request for a user to join a lobby.
type Invitation struct {
	ID        uuid.UUID `json:"id"`
	LobbyID   uuid.UUID `json:"lobbyId"`
	UserID    uuid.UUID `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Member returns the member record for userID, or nil.
func (l *Lobby) Member(userID uuid.UUID) *LobbyMember {
	for _, m := range l.Members {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

// TeamSize counts the members on team.
func (l *Lobby) TeamSize(team bool) int {
	n := 0
	for _, m := range l.Members {
		if m.Team == team {
			n++
		}
	}
	return n
}

// TeamCapacity is the number of seats on each side.
func (l *Lobby) TeamCapacity() int {
	return l.NbPlayers / 2
}

// AllReady reports whether every member is ready. An empty lobby is never ready.
func (l *Lobby) AllReady() bool {
	if len(l.Members) == 0 {
		return false
	}
	for _, m := range l.Members {
		if !m.Ready {
			return false
		}
	}
	return true
}

// RemoveMember drops userID from the roster and reports whether it was present.
func (l *Lobby) RemoveMember(userID uuid.UUID) bool {
	for i, m := range l.Members {
		if m.UserID == userID {
			l.Members = append(l.Members[:i], l.Members[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can stage changes without touching the original.
func (l *Lobby) Clone() *Lobby {
	if l == nil {
		return nil
	}
	cp := *l
	cp.Members = make([]*LobbyMember, len(l.Members))
	for i, m := range l.Members {
		cp.Members[i] = m.Clone()
	}
	return &cp
}

// Clone returns a deep copy of the member.
func (m *LobbyMember) Clone() *LobbyMember {
	cp := *m
	if m.PaddleType != nil {
		p := *m.PaddleType
		cp.PaddleType = &p
	}
	if m.MapVote != nil {
		v := *m.MapVote
		cp.MapVote = &v
	}
	return &cp
}
