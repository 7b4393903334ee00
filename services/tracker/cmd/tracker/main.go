package main

import (
	"context"
	"errors"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/tracksm/internal/platform/analytics"
	"github.com/example/tracksm/internal/platform/config"
	"github.com/example/tracksm/internal/platform/httpserver"
	"github.com/example/tracksm/internal/platform/logging"
	"github.com/example/tracksm/internal/platform/natsconn"
	"github.com/example/tracksm/internal/platform/run"
	"github.com/example/tracksm/internal/platform/tracing"
	"github.com/example/tracksm/services/tracker/internal/catalog"
	trackerconfig "github.com/example/tracksm/services/tracker/internal/config"
	"github.com/example/tracksm/services/tracker/internal/engine"
	"github.com/example/tracksm/services/tracker/internal/handlers"
	trackerhttp "github.com/example/tracksm/services/tracker/internal/http"
	"github.com/example/tracksm/services/tracker/internal/identity"
	"github.com/example/tracksm/services/tracker/internal/latest"
	"github.com/example/tracksm/services/tracker/internal/ordering"
	"github.com/example/tracksm/services/tracker/internal/pending"
	"github.com/example/tracksm/services/tracker/internal/store"
	"github.com/example/tracksm/services/tracker/internal/syncgw"
)

// invalidationSubject carries catalog cache keys to drop ("ALL" purges).
const invalidationSubject = "tracker.catalog.invalidate"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	tcfg, err := trackerconfig.LoadTracker()
	if err != nil {
		log.Error("load tracker config", zap.Error(err))
		run.Exit(1)
	}

	ctx := context.Background()
	shutdownTracing := tracing.Init(ctx, log, tracing.Config{ServiceName: cfg.ServiceName, Environment: cfg.Env})

	st, err := store.Open(ctx, store.OpenConfig{
		DatabaseURL: tcfg.DatabaseURL,
		SQLitePath:  tcfg.SQLitePath,
		Production:  cfg.IsProduction(),
	}, log)
	if err != nil {
		log.Error("store open", zap.Error(err))
		run.Exit(1)
	}

	var rdb *redis.Client
	if tcfg.RedisURL != "" {
		opts, err := redis.ParseURL(tcfg.RedisURL)
		if err != nil {
			log.Error("parse REDIS_URL", zap.Error(err))
			run.Exit(1)
		}
		rdb = redis.NewClient(opts)
	}

	// NATS is optional: without it events are dropped and the memory cache
	// is not invalidated across instances.
	var ap *analytics.Publisher
	nc, err := natsconn.Connect(natsconn.Options{Name: cfg.ServiceName})
	if err != nil {
		log.Warn("nats unavailable, events disabled", zap.Error(err))
	} else {
		js, err := natsconn.EnsureStream(nc, analytics.StreamName, analytics.Subjects)
		if err != nil {
			log.Warn("jetstream unavailable, events disabled", zap.Error(err))
		} else {
			ap = analytics.New(js, log)
		}
	}

	tmdb := catalog.NewTMDB(catalog.TMDBOptions{
		BaseURL:  tcfg.TMDB.BaseURL,
		APIKey:   tcfg.TMDB.APIKey,
		Language: tcfg.TMDB.Language,
		RPS:      tcfg.TMDB.RPS,
		Burst:    tcfg.TMDB.Burst,
		Logger:   log,
	})
	if !tmdb.Configured() {
		log.Warn("TMDB_API_KEY not set, catalog lookups return empty results")
	}

	var cache catalog.Cache = catalog.NewTTLCache()
	if rdb != nil {
		cache = catalog.NewRedisCache(rdb)
	}
	if nc != nil {
		if _, err := catalog.SubscribeInvalidation(nc, invalidationSubject, cache, log); err != nil {
			log.Warn("catalog invalidation subscribe failed", zap.Error(err))
		}
	}
	cat := catalog.NewBatcher(catalog.NewCached(tmdb, cache, catalog.DefaultTTLs(tcfg.CatalogCacheTTL), log), log)

	ps, err := pending.NewStore(rdb, tcfg.PendingTTL, cfg.IsProduction())
	if err != nil {
		log.Error("pending store", zap.Error(err))
		run.Exit(1)
	}

	today := func() time.Time { return ordering.Today(time.Now(), tcfg.Location) }
	gw := syncgw.New(store.Events{Repo: st}, today, log)
	eng := engine.New(engine.Options{
		Gateway:  gw,
		Catalog:  cat,
		Pending:  ps,
		Gate:     ordering.NewGate(),
		Events:   ap,
		Location: tcfg.Location,
		Log:      log,
	})

	tokens := identity.Tokens{Secret: tcfg.JWTSecret, AccessTokenTTL: tcfg.AccessTokenTTL}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		Logger: log,
		ReadyFunc: func() error {
			c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := st.Ping(c); err != nil {
				return errors.New("store not ready")
			}
			if rdb != nil {
				if err := rdb.Ping(c).Err(); err != nil {
					return errors.New("redis not ready")
				}
			}
			return nil
		},
	})
	handlers.Mount(r, handlers.Deps{
		Engine:   eng,
		Gateway:  gw,
		Watched:  st,
		Identity: &identity.Service{Users: st, Tokens: tokens, Log: log},
		Catalog:  cat,
		Searches: latest.New(),
		Events:   ap,
		Verifier: tokens.Verifier(),
		Limiter:  trackerhttp.NewRateLimiter(tcfg.RateLimitRPS, tcfg.RateLimitBurst),
		Log:      log,
	})

	srv := httpserver.New(httpserver.Options{
		Addr:        cfg.HTTP.Addr,
		ServiceName: cfg.ServiceName,
		Logger:      log,
		Router:      r,
		Traced:      tracing.Enabled(),
	})

	closeDeps := func(context.Context) error {
		tmdb.Close()
		if nc != nil {
			nc.Close()
		}
		if rdb != nil {
			_ = rdb.Close()
		}
		st.Close()
		return nil
	}

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		return srv.Start(log)
	}, shutdownTracing, closeDeps, srv.Shutdown)

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
