package store

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
  id            TEXT PRIMARY KEY,
  name          TEXT NOT NULL,
  email         TEXT NOT NULL UNIQUE,
  username      TEXT NOT NULL DEFAULT '',
  photo_url     TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS watched_items (
  user_id        TEXT NOT NULL,
  media_type     TEXT NOT NULL,
  tmdb_id        BIGINT NOT NULL,
  season_number  INTEGER NOT NULL DEFAULT 0,
  episode_number INTEGER NOT NULL DEFAULT 0,
  watched_at     TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (user_id, media_type, tmdb_id, season_number, episode_number)
);

CREATE INDEX IF NOT EXISTS watched_items_user_watched_at
  ON watched_items (user_id, watched_at DESC);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
  id            TEXT PRIMARY KEY,
  name          TEXT NOT NULL,
  email         TEXT NOT NULL UNIQUE,
  username      TEXT NOT NULL DEFAULT '',
  photo_url     TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS watched_items (
  user_id        TEXT NOT NULL,
  media_type     TEXT NOT NULL,
  tmdb_id        INTEGER NOT NULL,
  season_number  INTEGER NOT NULL DEFAULT 0,
  episode_number INTEGER NOT NULL DEFAULT 0,
  watched_at     TEXT NOT NULL,
  UNIQUE(user_id, media_type, tmdb_id, season_number, episode_number)
);

CREATE INDEX IF NOT EXISTS watched_items_user_watched_at
  ON watched_items (user_id, watched_at DESC);
`
