package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/tracksm/internal/platform/db"
)

type OpenConfig struct {
	DatabaseURL string
	SQLitePath  string
	Production  bool
}

// Open picks a backend: Postgres when DatabaseURL is set, SQLite when
// SQLitePath is set, otherwise Memory. Memory is refused in production.
func Open(ctx context.Context, cfg OpenConfig, log *zap.Logger) (Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres open: %w", err)
		}
		pg := NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		log.Info("store: postgres")
		return pg, nil
	case cfg.SQLitePath != "":
		s, err := OpenSQLite(ctx, cfg.SQLitePath, SQLiteOptions{Logger: log})
		if err != nil {
			return nil, err
		}
		log.Info("store: sqlite", zap.String("path", cfg.SQLitePath))
		return s, nil
	case cfg.Production:
		return nil, errors.New("DATABASE_URL or SQLITE_PATH is required in production")
	}
	log.Warn("store: in-memory (data is lost on restart)")
	return NewMemory(), nil
}
