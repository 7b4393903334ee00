package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

// SQLite is the single-node backend. Timestamps are stored as
// watched.StoredLayout text in UTC.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

type SQLiteOptions struct {
	BusyTimeout time.Duration
	Logger      *zap.Logger
}

func OpenSQLite(ctx context.Context, path string, opts SQLiteOptions) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", opts.BusyTimeout/time.Millisecond),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLite{db: db, log: log}, nil
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() { _ = s.db.Close() }

func (s *SQLite) List(ctx context.Context, userID string, f Filter) ([]watched.Unit, error) {
	q := `SELECT media_type, tmdb_id, season_number, episode_number, watched_at
	      FROM watched_items WHERE user_id = ?`
	args := []any{userID}
	if f.Kind != nil {
		q += " AND media_type = ?"
		args = append(args, string(*f.Kind))
	}
	if f.TitleID != nil {
		q += " AND tmdb_id = ?"
		args = append(args, *f.TitleID)
	}
	if f.Season != nil {
		q += " AND season_number = ?"
		args = append(args, *f.Season)
	}
	if f.Episode != nil {
		q += " AND episode_number = ?"
		args = append(args, *f.Episode)
	}
	q += " ORDER BY watched_at DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []watched.Unit
	for rows.Next() {
		u := watched.Unit{Key: watched.Key{UserID: userID}}
		var kind, at string
		if err := rows.Scan(&kind, &u.TitleID, &u.Season, &u.Episode, &at); err != nil {
			return nil, err
		}
		u.Kind = watched.MediaKind(kind)
		// Rows written outside this service may carry other layouts; one that
		// still does not parse is dropped on its own.
		u.WatchedAt, err = watched.ParseWatchedAt(at)
		if err != nil || u.WatchedAt.IsZero() {
			s.log.Warn("skipping watched row with malformed watched_at",
				zap.String("user_id", userID),
				zap.String("media_type", kind),
				zap.Int64("tmdb_id", u.TitleID),
				zap.String("watched_at", at))
			continue
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLite) Upsert(ctx context.Context, u watched.Unit) error {
	u, err := prepareUnit(u)
	if err != nil {
		return err
	}
	q := `
INSERT INTO watched_items (user_id, media_type, tmdb_id, season_number, episode_number, watched_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, media_type, tmdb_id, season_number, episode_number)
DO UPDATE SET watched_at = excluded.watched_at`
	_, err = s.db.ExecContext(ctx, q, u.UserID, string(u.Kind), u.TitleID, u.Season, u.Episode, watched.FormatWatchedAt(u.WatchedAt))
	return err
}

func (s *SQLite) Delete(ctx context.Context, k watched.Key) error {
	k = watched.NormalizeMovie(k)
	q := `DELETE FROM watched_items
	      WHERE user_id = ? AND media_type = ? AND tmdb_id = ? AND season_number = ? AND episode_number = ?`
	_, err := s.db.ExecContext(ctx, q, k.UserID, string(k.Kind), k.TitleID, k.Season, k.Episode)
	return err
}

func (s *SQLite) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = normalizeEmail(u.Email)
	u.CreatedAt = time.Now().UTC().Truncate(time.Second)

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email = ?`, u.Email).Scan(&exists)
	if err == nil {
		return User{}, ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, err
	}

	q := `INSERT INTO users (id, name, email, username, photo_url, password_hash, created_at)
	      VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q, u.ID, u.Name, u.Email, u.Username, u.PhotoURL, u.PasswordHash, u.CreatedAt.Format(watched.StoredLayout))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return User{}, ErrConflict
		}
		return User{}, err
	}
	return u, nil
}

const sqliteUserColumns = `id, name, email, username, photo_url, password_hash, created_at`

func (s *SQLite) FindUserByEmail(ctx context.Context, email string) (User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return User{}, ErrNotFound
	}
	return s.queryUser(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE email = ? LIMIT 1`, email)
}

func (s *SQLite) GetUserByID(ctx context.Context, id string) (User, error) {
	if strings.TrimSpace(id) == "" {
		return User{}, ErrNotFound
	}
	return s.queryUser(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`, id)
}

func (s *SQLite) UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (User, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET name = ?, username = ?, photo_url = ? WHERE id = ?`,
		p.Name, p.Username, p.PhotoURL, id)
	if err != nil {
		return User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return User{}, ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

func (s *SQLite) queryUser(ctx context.Context, q string, args ...any) (User, error) {
	var u User
	var created string
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&u.ID, &u.Name, &u.Email, &u.Username, &u.PhotoURL, &u.PasswordHash, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.CreatedAt, _ = time.Parse(watched.StoredLayout, created)
	return u, nil
}
