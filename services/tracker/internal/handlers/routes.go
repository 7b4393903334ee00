package handlers

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/tracksm/internal/platform/analytics"
	"github.com/example/tracksm/internal/platform/auth"
	"github.com/example/tracksm/services/tracker/internal/catalog"
	"github.com/example/tracksm/services/tracker/internal/engine"
	trackerhttp "github.com/example/tracksm/services/tracker/internal/http"
	"github.com/example/tracksm/services/tracker/internal/identity"
	"github.com/example/tracksm/services/tracker/internal/latest"
	"github.com/example/tracksm/services/tracker/internal/store"
	"github.com/example/tracksm/services/tracker/internal/syncgw"
)

// Deps is everything the tracker routes need.
type Deps struct {
	Engine   *engine.Engine
	Gateway  *syncgw.Gateway
	Watched  store.WatchedRepository
	Identity *identity.Service
	Catalog  catalog.Provider
	Searches *latest.Tokens
	Events   *analytics.Publisher
	Verifier auth.JWTVerifier
	Limiter  *trackerhttp.RateLimiter
	Log      *zap.Logger
}

// Mount registers the /v1 API on r. r must already carry the base
// middlewares from httpserver.SetupRouter.
func Mount(r chi.Router, d Deps) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	if d.Searches == nil {
		d.Searches = latest.New()
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalUser(d.Verifier))
			if d.Limiter != nil {
				r.Use(d.Limiter.Middleware)
			}
			r.Post("/auth/register", Register(d.Identity, d.Events, log))
			r.Post("/auth/login", Login(d.Identity, d.Events, log))

			r.Get("/catalog/search", Search(d.Catalog, d.Searches, d.Events, log))
			r.Get("/catalog/summaries", GetSummaries(d.Catalog, log))
			r.Get("/catalog/person/{id}", GetPerson(d.Catalog, log))
			r.Get("/catalog/tv/{id}/episodes", GetEpisodes(d.Catalog, log))
			r.Get("/catalog/{kind}/{id}", GetDetails(d.Catalog, log))
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(d.Verifier))
			if d.Limiter != nil {
				r.Use(d.Limiter.Middleware)
			}
			r.Get("/auth/me", Me(d.Identity, log))
			r.Patch("/auth/profile", UpdateProfile(d.Identity, log))

			r.Get("/watched", ListWatched(d.Watched, log))
			r.Post("/watched", UpsertWatched(d.Gateway, d.Events, log))
			r.Delete("/watched", DeleteWatched(d.Gateway, d.Events, log))

			r.Get("/progress", GetProgress(d.Engine, log))
			r.Get("/stats/calendar", GetCalendar(d.Engine, log))

			r.Get("/series/{id}", GetSeries(d.Engine, log))
			r.Post("/series/{id}/next", MarkNext(d.Engine, log))
			r.Post("/series/{id}/episodes/{season}/{episode}/mark", MarkEpisode(d.Engine, log))
			r.Post("/series/{id}/episodes/{season}/{episode}/toggle", ToggleEpisode(d.Engine, log))
			r.Put("/series/{id}/episodes/{season}/{episode}/date", SetEpisodeDate(d.Engine, log))

			r.Post("/pending/{id}/resolve", ResolvePending(d.Engine, log))
			r.Delete("/pending/{id}", DismissPending(d.Engine, log))

			r.Post("/movies/{id}/toggle", ToggleMovie(d.Engine, log))
		})
	})
}
