package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/tracksm/internal/platform/analytics"
	"github.com/example/tracksm/internal/platform/api"
	"github.com/example/tracksm/internal/platform/httpserver"
	"github.com/example/tracksm/services/tracker/internal/identity"
)

type authResponse struct {
	identity.User
	AccessToken string `json:"accessToken"`
	ExpiresAt   string `json:"expiresAt"`
}

func toAuthResponse(s identity.Session) authResponse {
	return authResponse{User: s.User, AccessToken: s.AccessToken, ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339)}
}

// Register handles POST /v1/auth/register
func Register(svc *identity.Service, ap *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req identity.RegisterInput
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		sess, err := svc.Register(r.Context(), req)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}

		ap.Publish(analytics.SubjectAuthRegistered, "user_registered", sess.User.ID, map[string]any{
			"username": sess.User.Username,
		})
		api.WriteJSON(w, http.StatusCreated, toAuthResponse(sess))
	}
}

// Login handles POST /v1/auth/login
func Login(svc *identity.Service, ap *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req identity.LoginInput
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		sess, err := svc.Login(r.Context(), req)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}

		ap.Publish(analytics.SubjectAuthLoggedIn, "user_logged_in", sess.User.ID, nil)
		api.WriteJSON(w, http.StatusOK, toAuthResponse(sess))
	}
}

// UpdateProfile handles PATCH /v1/auth/profile
func UpdateProfile(svc *identity.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUser(w, r, rid)
		if !ok {
			return
		}

		var req identity.ProfileInput
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		u, err := svc.UpdateProfile(r.Context(), uid, req)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, u)
	}
}

// Me handles GET /v1/auth/me
func Me(svc *identity.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUser(w, r, rid)
		if !ok {
			return
		}
		u, err := svc.Me(r.Context(), uid)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, u)
	}
}
