package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type TrackerConfig struct {
	JWTSecret      []byte
	AccessTokenTTL time.Duration

	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	TMDB TMDBConfig

	CatalogCacheTTL time.Duration
	PendingTTL      time.Duration
	Location        *time.Location

	RateLimitRPS   float64
	RateLimitBurst int
}

type TMDBConfig struct {
	APIKey   string
	BaseURL  string
	Language string
	RPS      float64
	Burst    int
}

func LoadTracker() (TrackerConfig, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return TrackerConfig{}, errors.New("JWT_SECRET is required")
	}

	tz := envString("TRACKER_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return TrackerConfig{}, fmt.Errorf("TRACKER_TIMEZONE %q: %w", tz, err)
	}

	return TrackerConfig{
		JWTSecret:      []byte(secret),
		AccessTokenTTL: envDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:     strings.TrimSpace(os.Getenv("SQLITE_PATH")),
		RedisURL:       strings.TrimSpace(os.Getenv("REDIS_URL")),
		TMDB: TMDBConfig{
			APIKey:   strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
			BaseURL:  strings.TrimRight(envString("TMDB_BASE_URL", "https://api.themoviedb.org/3"), "/"),
			Language: envString("TMDB_LANGUAGE", "pt-BR"),
			RPS:      envFloat("TMDB_RPS", 20),
			Burst:    envInt("TMDB_BURST", 0),
		},
		CatalogCacheTTL: envDuration("CATALOG_CACHE_TTL", 30*time.Minute),
		PendingTTL:      envDuration("PENDING_TTL", 15*time.Minute),
		Location:        loc,
		RateLimitRPS:    envFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:  envInt("RATE_LIMIT_BURST", 30),
	}, nil
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
