package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/tracksm/internal/platform/api"
	"github.com/example/tracksm/services/tracker/internal/catalog"
	"github.com/example/tracksm/services/tracker/internal/identity"
	"github.com/example/tracksm/services/tracker/internal/ordering"
	"github.com/example/tracksm/services/tracker/internal/pending"
	"github.com/example/tracksm/services/tracker/internal/syncgw"
	"github.com/example/tracksm/services/tracker/internal/watched"
)

type inFlightResponse struct {
	Status string `json:"status"`
}

// writeError maps domain errors onto the API envelope. A rejected concurrent
// mutation is not an error for the caller: it gets 202 and no change.
func writeError(w http.ResponseWriter, log *zap.Logger, rid string, err error) {
	var (
		ve *watched.ValidationError
		ie *identity.Error
	)
	switch {
	case errors.Is(err, ordering.ErrInFlight):
		api.WriteJSON(w, http.StatusAccepted, inFlightResponse{Status: "in_flight"})
	case errors.As(err, &ve):
		api.BadRequest(w, "INVALID_UNIT_KEY", ve.Error(), rid, map[string]any{"field": ve.Field})
	case errors.Is(err, ordering.ErrInvalidChoice):
		api.BadRequest(w, "INVALID_CHOICE", err.Error(), rid, map[string]any{"choice": "current|all"})
	case errors.As(err, &ie):
		writeIdentityError(w, rid, ie)
	case errors.Is(err, pending.ErrNotFound):
		api.NotFound(w, "PENDING_NOT_FOUND", "Confirmation not found or expired", rid)
	case errors.Is(err, catalog.ErrNotFound):
		api.NotFound(w, "TITLE_NOT_FOUND", "Title not found", rid)
	case errors.Is(err, catalog.ErrNotConfigured):
		api.Unavailable(w, "CATALOG_NOT_CONFIGURED", "Catalog is not configured", rid)
	case errors.Is(err, syncgw.ErrCollaboratorUnavailable):
		log.Warn("collaborator unavailable", zap.String("request_id", rid), zap.Error(err))
		api.Unavailable(w, "COLLABORATOR_UNAVAILABLE", "Service temporarily unavailable, try again", rid)
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		log.Error("request failed", zap.String("request_id", rid), zap.Error(err))
		api.Internal(w, rid)
	}
}

func writeIdentityError(w http.ResponseWriter, rid string, e *identity.Error) {
	var details map[string]any
	if e.Field != "" {
		details = map[string]any{"field": e.Field}
	}
	switch e.Kind {
	case identity.KindValidation:
		api.BadRequest(w, e.Code, e.Message, rid, details)
	case identity.KindConflict:
		api.Conflict(w, e.Code, e.Message, rid, details)
	case identity.KindUnauthorized:
		api.Unauthorized(w, e.Code, e.Message, rid)
	case identity.KindNotFound:
		api.NotFound(w, e.Code, e.Message, rid)
	default:
		api.Internal(w, rid)
	}
}
