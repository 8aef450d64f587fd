// internal/database/lobby.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/pongarena/internal/models"
)

// PostgresStore persists lobbies in Postgres. Every write runs in its own transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates any missing tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const selectLobbies = `
	SELECT
		l.id, l.owner_id, l.nb_players, l.max_duration,
		l.mode, l.map, l.state, l.private, l.created_at,
		m.user_id, m.team, m.ready, m.paddle_type, m.map_vote, m.joined_at
	FROM lobbies l
	LEFT JOIN lobby_members m ON m.lobby_id = l.id
`

// CreateLobby inserts a lobby row and its initial members.
func (s *PostgresStore) CreateLobby(ctx context.Context, l *models.Lobby) error {
	q := `
	INSERT INTO lobbies (
		id, owner_id, nb_players, max_duration,
		mode, map, state, private, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			l.ID,
			l.OwnerID,
			l.NbPlayers,
			l.MaxDuration,
			string(l.Mode),
			string(l.Map),
			string(l.State),
			l.Private,
			l.CreatedAt,
		)
		if err != nil {
			return err
		}
		return insertMembers(ctx, tx, l)
	})
	return mapPgErr(err)
}

// GetLobby fetches a lobby with its members.
func (s *PostgresStore) GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error) {
	ls, err := s.query(ctx, selectLobbies+`WHERE l.id = $1 ORDER BY m.joined_at`, id)
	if err != nil {
		return nil, err
	}
	if len(ls) == 0 {
		return nil, ErrNotFound
	}
	return ls[0], nil
}

// FindLobbyForUser fetches the lobby userID is seated in.
func (s *PostgresStore) FindLobbyForUser(ctx context.Context, userID uuid.UUID) (*models.Lobby, error) {
	q := selectLobbies + `
	WHERE l.id = (SELECT lobby_id FROM lobby_members WHERE user_id = $1)
	ORDER BY m.joined_at
	`
	ls, err := s.query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	if len(ls) == 0 {
		return nil, ErrNotFound
	}
	return ls[0], nil
}

// ListLobbies returns lobbies in any of states, oldest first. No states means all lobbies.
func (s *PostgresStore) ListLobbies(ctx context.Context, states ...models.LobbyState) ([]*models.Lobby, error) {
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = string(st)
	}
	q := selectLobbies + `
	WHERE cardinality($1::text[]) = 0 OR l.state = ANY($1::text[])
	ORDER BY l.created_at, l.id, m.joined_at
	`
	return s.query(ctx, q, names)
}

// SaveLobby replaces the lobby row and its member set.
func (s *PostgresStore) SaveLobby(ctx context.Context, l *models.Lobby) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return saveLobby(ctx, tx, l)
	})
	return mapPgErr(err)
}

// DeleteLobby removes a lobby; members and invitations go with it.
func (s *PostgresStore) DeleteLobby(ctx context.Context, id uuid.UUID) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return deleteLobby(ctx, tx, id)
	})
	return mapPgErr(err)
}

// MergeLobbies deletes fromID and saves into in one transaction.
func (s *PostgresStore) MergeLobbies(ctx context.Context, into *models.Lobby, fromID uuid.UUID) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := deleteLobby(ctx, tx, fromID); err != nil {
			return err
		}
		return saveLobby(ctx, tx, into)
	})
	return mapPgErr(err)
}

// CreateInvitation records a pending invitation.
func (s *PostgresStore) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	q := `
	INSERT INTO lobby_invitations (id, lobby_id, user_id, created_at)
	VALUES ($1, $2, $3, $4)
	`
	_, err := s.pool.Exec(ctx, q, inv.ID, inv.LobbyID, inv.UserID, inv.CreatedAt)
	return mapPgErr(err)
}

// JoinLobby saves l and deletes userID's invitations to it in one transaction.
func (s *PostgresStore) JoinLobby(ctx context.Context, l *models.Lobby, userID uuid.UUID) (int, error) {
	var n int
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := saveLobby(ctx, tx, l); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM lobby_invitations WHERE lobby_id=$1 AND user_id=$2`, l.ID, userID)
		if err != nil {
			return err
		}
		n = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, mapPgErr(err)
	}
	return n, nil
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]*models.Lobby, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out   []*models.Lobby
		index = make(map[uuid.UUID]*models.Lobby)
	)
	for rows.Next() {
		var (
			l                    models.Lobby
			mode, mapName, state string
			userID               pgtype.UUID
			team, ready          pgtype.Bool
			paddleType, mapVote  pgtype.Text
			joinedAt             pgtype.Timestamptz
		)
		err := rows.Scan(
			&l.ID,
			&l.OwnerID,
			&l.NbPlayers,
			&l.MaxDuration,
			&mode,
			&mapName,
			&state,
			&l.Private,
			&l.CreatedAt,
			&userID,
			&team,
			&ready,
			&paddleType,
			&mapVote,
			&joinedAt,
		)
		if err != nil {
			return nil, err
		}

		cur, ok := index[l.ID]
		if !ok {
			l.Mode = models.GameMode(mode)
			l.Map = models.MapName(mapName)
			l.State = models.LobbyState(state)
			l.Members = []*models.LobbyMember{}
			cur = &l
			index[l.ID] = cur
			out = append(out, cur)
		}
		if !userID.Valid {
			continue
		}
		m := &models.LobbyMember{
			LobbyID:  cur.ID,
			UserID:   uuid.UUID(userID.Bytes),
			Team:     team.Bool,
			Ready:    ready.Bool,
			JoinedAt: joinedAt.Time,
		}
		if paddleType.Valid {
			p := models.PaddleType(paddleType.String)
			m.PaddleType = &p
		}
		if mapVote.Valid {
			v := models.MapName(mapVote.String)
			m.MapVote = &v
		}
		cur.Members = append(cur.Members, m)
	}
	return out, rows.Err()
}

func saveLobby(ctx context.Context, tx pgx.Tx, l *models.Lobby) error {
	q := `
	UPDATE lobbies SET
		owner_id=$2, nb_players=$3, max_duration=$4,
		mode=$5, map=$6, state=$7, private=$8
	WHERE id=$1
	`
	tag, err := tx.Exec(ctx, q,
		l.ID,
		l.OwnerID,
		l.NbPlayers,
		l.MaxDuration,
		string(l.Mode),
		string(l.Map),
		string(l.State),
		l.Private,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM lobby_members WHERE lobby_id=$1`, l.ID); err != nil {
		return err
	}
	return insertMembers(ctx, tx, l)
}

func insertMembers(ctx context.Context, tx pgx.Tx, l *models.Lobby) error {
	q := `
	INSERT INTO lobby_members (lobby_id, user_id, team, ready, paddle_type, map_vote, joined_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, m := range l.Members {
		_, err := tx.Exec(ctx, q,
			l.ID,
			m.UserID,
			m.Team,
			m.Ready,
			nullablePaddle(m.PaddleType),
			nullableMap(m.MapVote),
			m.JoinedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func deleteLobby(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM lobbies WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// mapPgErr translates constraint violations into the package's sentinel errors.
func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrMemberConflict, pgErr.Detail)
		case "23503": // foreign_key_violation
			return ErrNotFound
		}
	}
	return err
}

func nullablePaddle(p *models.PaddleType) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func nullableMap(m *models.MapName) *string {
	if m == nil {
		return nil
	}
	s := string(*m)
	return &s
}
