// internal/database/match.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/pongarena/internal/models"
)

// InsertMatchRecords persists a batch of finished matches in a single transaction. Records already
// stored are skipped, so a redelivered batch is harmless.
func (s *PostgresStore) InsertMatchRecords(ctx context.Context, recs []models.MatchRecord) error {
	q := `
	INSERT INTO match_events (
		match_id, lobby_id, mode, map,
		score_false, score_true, winner,
		duration_ms, payload, started_at, ended_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (match_id) DO NOTHING
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			payload, err := json.Marshal(rec.Players)
			if err != nil {
				return fmt.Errorf("marshal players of match %s: %w", rec.MatchID, err)
			}
			_, err = tx.Exec(ctx, q,
				rec.MatchID,
				rec.LobbyID,
				string(rec.Mode),
				string(rec.Map),
				rec.ScoreFalse,
				rec.ScoreTrue,
				rec.Winner,
				rec.DurationMs,
				payload,
				rec.StartedAt,
				rec.EndedAt,
			)
			if err != nil {
				return fmt.Errorf("insert match %s: %w", rec.MatchID, err)
			}
		}
		return nil
	})
}

const selectMatches = `
	SELECT
		match_id, lobby_id, mode, map,
		score_false, score_true, winner,
		duration_ms, payload, started_at, ended_at
	FROM match_events
`

// RecentMatches returns up to limit matches, newest first.
func (s *PostgresStore) RecentMatches(ctx context.Context, limit int) ([]models.MatchRecord, error) {
	rows, err := s.pool.Query(ctx, selectMatches+`ORDER BY ended_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.MatchRecord{}
	for rows.Next() {
		var (
			rec      models.MatchRecord
			mode, mp string
			payload  []byte
		)
		err := rows.Scan(
			&rec.MatchID, &rec.LobbyID, &mode, &mp,
			&rec.ScoreFalse, &rec.ScoreTrue, &rec.Winner,
			&rec.DurationMs, &payload, &rec.StartedAt, &rec.EndedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := fillMatch(&rec, mode, mp, payload); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// InsertMatchRecords is the SQLite counterpart of PostgresStore.InsertMatchRecords.
func (s *SQLiteStore) InsertMatchRecords(ctx context.Context, recs []models.MatchRecord) error {
	q := `
	INSERT INTO match_events (
		match_id, lobby_id, mode, map,
		score_false, score_true, winner,
		duration_ms, payload, started_at, ended_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (match_id) DO NOTHING
	`
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, rec := range recs {
			payload, err := json.Marshal(rec.Players)
			if err != nil {
				return fmt.Errorf("marshal players of match %s: %w", rec.MatchID, err)
			}
			_, err = tx.ExecContext(ctx, q,
				rec.MatchID,
				rec.LobbyID,
				string(rec.Mode),
				string(rec.Map),
				rec.ScoreFalse,
				rec.ScoreTrue,
				rec.Winner,
				rec.DurationMs,
				string(payload),
				rec.StartedAt.UTC(),
				rec.EndedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("insert match %s: %w", rec.MatchID, err)
			}
		}
		return nil
	})
}

// RecentMatches returns up to limit matches, newest first.
func (s *SQLiteStore) RecentMatches(ctx context.Context, limit int) ([]models.MatchRecord, error) {
	rows, err := s.conn.QueryContext(ctx, selectMatches+`ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.MatchRecord{}
	for rows.Next() {
		var (
			rec      models.MatchRecord
			mode, mp string
			winner   sql.NullBool
			payload  string
		)
		err := rows.Scan(
			&rec.MatchID, &rec.LobbyID, &mode, &mp,
			&rec.ScoreFalse, &rec.ScoreTrue, &winner,
			&rec.DurationMs, &payload, &rec.StartedAt, &rec.EndedAt,
		)
		if err != nil {
			return nil, err
		}
		if winner.Valid {
			w := winner.Bool
			rec.Winner = &w
		}
		if err := fillMatch(&rec, mode, mp, []byte(payload)); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func fillMatch(rec *models.MatchRecord, mode, mapName string, players []byte) error {
	rec.Mode = models.GameMode(mode)
	rec.Map = models.MapName(mapName)
	if err := json.Unmarshal(players, &rec.Players); err != nil {
		return fmt.Errorf("decode players of match %s: %w", rec.MatchID, err)
	}
	return nil
}
