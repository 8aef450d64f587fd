// internal/lobby/store.go
package lobby

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/models"
)

// Store is the durable source of truth for lobbies and their members. Missing rows are reported
// with database.ErrNotFound. Every write is atomic.
type Store interface {
	CreateLobby(ctx context.Context, l *models.Lobby) error
	GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error)
	FindLobbyForUser(ctx context.Context, userID uuid.UUID) (*models.Lobby, error)
	ListLobbies(ctx context.Context, states ...models.LobbyState) ([]*models.Lobby, error)
	// SaveLobby replaces the lobby row and its member set with l.
	SaveLobby(ctx context.Context, l *models.Lobby) error
	DeleteLobby(ctx context.Context, id uuid.UUID) error
	// MergeLobbies saves into (which already holds the moved members) and deletes fromID in one
	// transaction.
	MergeLobbies(ctx context.Context, into *models.Lobby, fromID uuid.UUID) error

	// JoinLobby saves l, which already seats userID, and deletes userID's pending invitations to
	// it in one transaction. It returns how many invitations were consumed.
	JoinLobby(ctx context.Context, l *models.Lobby, userID uuid.UUID) (int, error)

	CreateInvitation(ctx context.Context, inv *models.Invitation) error
}

// Notifier delivers lobby events over the realtime transport. Delivery is best-effort.
type Notifier interface {
	EmitToUser(userID uuid.UUID, event string, payload interface{})
	EmitToGroup(lobbyID uuid.UUID, event string, payload interface{})
	JoinGroup(lobbyID, userID uuid.UUID)
	LeaveGroup(lobbyID, userID uuid.UUID)
}

// Launcher owns running matches. Launch is called once a lobby is persisted in GAME; Teardown
// when a lobby in GAME is disbanded.
type Launcher interface {
	Launch(ctx context.Context, l *models.Lobby) error
	Teardown(lobbyID uuid.UUID)
}
