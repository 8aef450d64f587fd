// internal/database/schema.go
package database

// postgresSchema creates the lobby and match tables. The unique user_id on lobby_members is what
// keeps a user in at most one lobby.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS lobbies (
	id           UUID PRIMARY KEY,
	owner_id     UUID NOT NULL,
	nb_players   INTEGER NOT NULL,
	max_duration INTEGER NOT NULL DEFAULT 0,
	mode         TEXT NOT NULL,
	map          TEXT NOT NULL,
	state        TEXT NOT NULL,
	private      BOOLEAN NOT NULL DEFAULT false,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lobby_members (
	lobby_id    UUID NOT NULL REFERENCES lobbies(id) ON DELETE CASCADE,
	user_id     UUID NOT NULL UNIQUE,
	team        BOOLEAN NOT NULL,
	ready       BOOLEAN NOT NULL DEFAULT false,
	paddle_type TEXT,
	map_vote    TEXT,
	joined_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (lobby_id, user_id)
);

CREATE TABLE IF NOT EXISTS lobby_invitations (
	id         UUID PRIMARY KEY,
	lobby_id   UUID NOT NULL REFERENCES lobbies(id) ON DELETE CASCADE,
	user_id    UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS match_events (
	match_id    UUID PRIMARY KEY,
	lobby_id    UUID NOT NULL,
	mode        TEXT NOT NULL,
	map         TEXT NOT NULL,
	score_false INTEGER NOT NULL,
	score_true  INTEGER NOT NULL,
	winner      BOOLEAN,
	duration_ms BIGINT NOT NULL,
	payload     JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL
);
`

const sqliteSchema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS lobbies (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	nb_players   INTEGER NOT NULL,
	max_duration INTEGER NOT NULL DEFAULT 0,
	mode         TEXT NOT NULL,
	map          TEXT NOT NULL,
	state        TEXT NOT NULL,
	private      BOOLEAN NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS lobby_members (
	lobby_id    TEXT NOT NULL REFERENCES lobbies(id) ON DELETE CASCADE,
	user_id     TEXT NOT NULL UNIQUE,
	team        BOOLEAN NOT NULL,
	ready       BOOLEAN NOT NULL DEFAULT 0,
	paddle_type TEXT,
	map_vote    TEXT,
	joined_at   TIMESTAMP NOT NULL,
	PRIMARY KEY (lobby_id, user_id)
);

CREATE TABLE IF NOT EXISTS lobby_invitations (
	id         TEXT PRIMARY KEY,
	lobby_id   TEXT NOT NULL REFERENCES lobbies(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS match_events (
	match_id    TEXT PRIMARY KEY,
	lobby_id    TEXT NOT NULL,
	mode        TEXT NOT NULL,
	map         TEXT NOT NULL,
	score_false INTEGER NOT NULL,
	score_true  INTEGER NOT NULL,
	winner      BOOLEAN,
	duration_ms INTEGER NOT NULL,
	payload     TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	ended_at    TIMESTAMP NOT NULL
);
`
