// internal/database/sqlite.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore persists lobbies in an embedded SQLite database, for single-node deployments and
// tests.
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it. Use ":memory:" for a
// throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite has a single writer, and an in-memory database lives and dies with
	// its connection.
	conn.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, err
		}
	}
	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

const sqliteSelectLobbies = `
	SELECT
		l.id, l.owner_id, l.nb_players, l.max_duration,
		l.mode, l.map, l.state, l.private, l.created_at,
		m.user_id, m.team, m.ready, m.paddle_type, m.map_vote, m.joined_at
	FROM lobbies l
	LEFT JOIN lobby_members m ON m.lobby_id = l.id
`

func (s *SQLiteStore) CreateLobby(ctx context.Context, l *models.Lobby) error {
	q := `
	INSERT INTO lobbies (
		id, owner_id, nb_players, max_duration,
		mode, map, state, private, created_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			l.ID,
			l.OwnerID,
			l.NbPlayers,
			l.MaxDuration,
			string(l.Mode),
			string(l.Map),
			string(l.State),
			l.Private,
			l.CreatedAt.UTC(),
		)
		if err != nil {
			return err
		}
		return sqliteInsertMembers(ctx, tx, l)
	})
}

func (s *SQLiteStore) GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error) {
	ls, err := s.query(ctx, sqliteSelectLobbies+`WHERE l.id = ? ORDER BY m.joined_at`, id)
	if err != nil {
		return nil, err
	}
	if len(ls) == 0 {
		return nil, ErrNotFound
	}
	return ls[0], nil
}

func (s *SQLiteStore) FindLobbyForUser(ctx context.Context, userID uuid.UUID) (*models.Lobby, error) {
	q := sqliteSelectLobbies + `
	WHERE l.id = (SELECT lobby_id FROM lobby_members WHERE user_id = ?)
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

func (s *SQLiteStore) ListLobbies(ctx context.Context, states ...models.LobbyState) ([]*models.Lobby, error) {
	q := sqliteSelectLobbies
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		marks := make([]string, len(states))
		for i, st := range states {
			marks[i] = "?"
			args = append(args, string(st))
		}
		q += `WHERE l.state IN (` + strings.Join(marks, ", ") + `)`
	}
	q += ` ORDER BY l.created_at, l.id, m.joined_at`
	return s.query(ctx, q, args...)
}

func (s *SQLiteStore) SaveLobby(ctx context.Context, l *models.Lobby) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return sqliteSaveLobby(ctx, tx, l)
	})
}

func (s *SQLiteStore) DeleteLobby(ctx context.Context, id uuid.UUID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return sqliteDeleteLobby(ctx, tx, id)
	})
}

func (s *SQLiteStore) MergeLobbies(ctx context.Context, into *models.Lobby, fromID uuid.UUID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := sqliteDeleteLobby(ctx, tx, fromID); err != nil {
			return err
		}
		return sqliteSaveLobby(ctx, tx, into)
	})
}

func (s *SQLiteStore) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO lobby_invitations (id, lobby_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
		inv.ID, inv.LobbyID, inv.UserID, inv.CreatedAt.UTC(),
	)
	return mapSQLiteErr(err)
}

func (s *SQLiteStore) JoinLobby(ctx context.Context, l *models.Lobby, userID uuid.UUID) (int, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := sqliteSaveLobby(ctx, tx, l); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM lobby_invitations WHERE lobby_id = ? AND user_id = ?`, l.ID, userID)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]*models.Lobby, error) {
	rows, err := s.conn.QueryContext(ctx, q, args...)
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
			userID               uuid.NullUUID
			team, ready          sql.NullBool
			paddleType, mapVote  sql.NullString
			joinedAt             sql.NullTime
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
			UserID:   userID.UUID,
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

// withTx runs f in a transaction, committing on success and rolling back otherwise.
func (s *SQLiteStore) withTx(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, mapSQLiteErr(err))
		}
		return mapSQLiteErr(err)
	}
	return tx.Commit()
}

func sqliteSaveLobby(ctx context.Context, tx *sql.Tx, l *models.Lobby) error {
	res, err := tx.ExecContext(ctx, `
	UPDATE lobbies SET
		owner_id = ?, nb_players = ?, max_duration = ?,
		mode = ?, map = ?, state = ?, private = ?
	WHERE id = ?
	`,
		l.OwnerID,
		l.NbPlayers,
		l.MaxDuration,
		string(l.Mode),
		string(l.Map),
		string(l.State),
		l.Private,
		l.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lobby_members WHERE lobby_id = ?`, l.ID); err != nil {
		return err
	}
	return sqliteInsertMembers(ctx, tx, l)
}

func sqliteInsertMembers(ctx context.Context, tx *sql.Tx, l *models.Lobby) error {
	q := `
	INSERT INTO lobby_members (lobby_id, user_id, team, ready, paddle_type, map_vote, joined_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, m := range l.Members {
		_, err := tx.ExecContext(ctx, q,
			l.ID,
			m.UserID,
			m.Team,
			m.Ready,
			nullablePaddle(m.PaddleType),
			nullableMap(m.MapVote),
			m.JoinedAt.UTC(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func sqliteDeleteLobby(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM lobbies WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapSQLiteErr(err error) error {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %s", ErrMemberConflict, sqlErr.Error())
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ErrNotFound
		}
	}
	return err
}
