// internal/lobby/events.go
package lobby

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/models"
)

// Outbound lobby events.
const (
	EventLobbyUpdate    = "on-lobby-update"
	EventUserJoined     = "user-joined-lobby"
	EventUserLeft       = "user-left-lobby"
	EventMemberUpdate   = "on-member-update"
	EventVote           = "on-vote"
	EventRedirectToGame = "redirect-to-game"
	EventForcedLeave    = "forced-leave"
	EventKicked         = "kicked"
	EventInvitation     = "invitation"
	EventSelectionStart = "selection-start"
	EventLobbyMerged    = "lobby-merged"
)

// Reasons attached to departures.
const (
	ReasonLeft      = "left"
	ReasonKicked    = "kicked"
	ReasonRebalance = "rebalance"
	ReasonClosed    = "closed"
)

type LobbyUpdate struct {
	LobbyID uuid.UUID         `json:"lobbyId"`
	State   models.LobbyState `json:"state"`
	Map     models.MapName    `json:"map,omitempty"`
	Private bool              `json:"private"`
	Lobby   *models.Lobby     `json:"lobby,omitempty"`
}

type UserLeft struct {
	LobbyID uuid.UUID `json:"lobbyId"`
	UserID  uuid.UUID `json:"userId"`
	Reason  string    `json:"reason,omitempty"`
}

type ForcedLeave struct {
	LobbyID uuid.UUID `json:"lobbyId"`
	Reason  string    `json:"reason"`
}

// Vote is one member's map vote; Map is nil until they vote.
type Vote struct {
	UserID uuid.UUID       `json:"userId"`
	Map    *models.MapName `json:"map"`
}

type VoteUpdate struct {
	LobbyID uuid.UUID `json:"lobbyId"`
	Votes   []Vote    `json:"votes"`
}

type Redirect struct {
	LobbyID uuid.UUID       `json:"lobbyId"`
	Map     models.MapName  `json:"map"`
	Mode    models.GameMode `json:"mode"`
}

type InvitationNotice struct {
	InvitationID uuid.UUID `json:"invitationId"`
	LobbyID      uuid.UUID `json:"lobbyId"`
	From         uuid.UUID `json:"from"`
}

type SelectionStart struct {
	LobbyID uuid.UUID           `json:"lobbyId"`
	Paddles []models.PaddleType `json:"paddles"`
	Maps    []models.MapName    `json:"maps"`
	Timeout float64             `json:"timeout"` // seconds
}

type LobbyMerged struct {
	From uuid.UUID `json:"from"`
	Into uuid.UUID `json:"into"`
}

func update(l *models.Lobby) LobbyUpdate {
	return LobbyUpdate{LobbyID: l.ID, State: l.State, Map: l.Map, Private: l.Private}
}
