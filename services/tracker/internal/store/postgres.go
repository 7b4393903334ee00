package store

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

// Postgres is the production backend.
type Postgres struct {
	DB *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{DB: db}
}

func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, postgresSchema)
	return err
}

func (s *Postgres) Ping(ctx context.Context) error { return s.DB.Ping(ctx) }

func (s *Postgres) Close() { s.DB.Close() }

func (s *Postgres) List(ctx context.Context, userID string, f Filter) ([]watched.Unit, error) {
	q := `SELECT media_type, tmdb_id, season_number, episode_number, watched_at
	      FROM watched_items WHERE user_id=$1`
	args := []any{userID}
	add := func(col string, v any) {
		args = append(args, v)
		q += " AND " + col + "=$" + strconv.Itoa(len(args))
	}
	if f.Kind != nil {
		add("media_type", string(*f.Kind))
	}
	if f.TitleID != nil {
		add("tmdb_id", *f.TitleID)
	}
	if f.Season != nil {
		add("season_number", *f.Season)
	}
	if f.Episode != nil {
		add("episode_number", *f.Episode)
	}
	q += " ORDER BY watched_at DESC"

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []watched.Unit
	for rows.Next() {
		u := watched.Unit{Key: watched.Key{UserID: userID}}
		var kind string
		if err := rows.Scan(&kind, &u.TitleID, &u.Season, &u.Episode, &u.WatchedAt); err != nil {
			return nil, err
		}
		u.Kind = watched.MediaKind(kind)
		u.WatchedAt = u.WatchedAt.UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Postgres) Upsert(ctx context.Context, u watched.Unit) error {
	u, err := prepareUnit(u)
	if err != nil {
		return err
	}
	q := `
INSERT INTO watched_items (user_id, media_type, tmdb_id, season_number, episode_number, watched_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, media_type, tmdb_id, season_number, episode_number)
DO UPDATE SET watched_at = EXCLUDED.watched_at`
	_, err = s.DB.Exec(ctx, q, u.UserID, string(u.Kind), u.TitleID, u.Season, u.Episode, u.WatchedAt)
	return err
}

func (s *Postgres) Delete(ctx context.Context, k watched.Key) error {
	k = watched.NormalizeMovie(k)
	q := `DELETE FROM watched_items
	      WHERE user_id=$1 AND media_type=$2 AND tmdb_id=$3 AND season_number=$4 AND episode_number=$5`
	_, err := s.DB.Exec(ctx, q, k.UserID, string(k.Kind), k.TitleID, k.Season, k.Episode)
	return err
}

func (s *Postgres) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = normalizeEmail(u.Email)
	q := `
INSERT INTO users (id, name, email, username, photo_url, password_hash)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at`
	err := s.DB.QueryRow(ctx, q, u.ID, u.Name, u.Email, u.Username, u.PhotoURL, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrConflict
		}
		return User{}, err
	}
	return u, nil
}

const pgUserColumns = `id, name, email, username, photo_url, password_hash, created_at`

func (s *Postgres) FindUserByEmail(ctx context.Context, email string) (User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return User{}, ErrNotFound
	}
	return s.queryUser(ctx, `SELECT `+pgUserColumns+` FROM users WHERE email=$1 LIMIT 1`, email)
}

func (s *Postgres) GetUserByID(ctx context.Context, id string) (User, error) {
	if strings.TrimSpace(id) == "" {
		return User{}, ErrNotFound
	}
	return s.queryUser(ctx, `SELECT `+pgUserColumns+` FROM users WHERE id=$1`, id)
}

func (s *Postgres) UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (User, error) {
	q := `UPDATE users SET name=$2, username=$3, photo_url=$4 WHERE id=$1 RETURNING ` + pgUserColumns
	return s.queryUser(ctx, q, id, p.Name, p.Username, p.PhotoURL)
}

func (s *Postgres) queryUser(ctx context.Context, q string, args ...any) (User, error) {
	var u User
	err := s.DB.QueryRow(ctx, q, args...).Scan(&u.ID, &u.Name, &u.Email, &u.Username, &u.PhotoURL, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}
