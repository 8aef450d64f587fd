// internal/models/match.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchPlayer is one seat of a finished match.
type MatchPlayer struct {
	UserID uuid.UUID  `json:"user_id"`
	Team   bool       `json:"team"`
	Paddle PaddleType `json:"paddle"`
}

// MatchRecord is the summary of a completed match handed to the historian.
type MatchRecord struct {
	MatchID    uuid.UUID     `json:"match_id"`
	LobbyID    uuid.UUID     `json:"lobby_id"`
	Mode       GameMode      `json:"mode"`
	Map        MapName       `json:"map"`
	ScoreFalse int           `json:"score_false"`
	ScoreTrue  int           `json:"score_true"`
	Winner     *bool         `json:"winner,omitempty"` // nil on a draw
	Players    []MatchPlayer `json:"players"`
	DurationMs int64         `json:"duration_ms"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at"`
}
