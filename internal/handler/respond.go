// Package handler exposes the services over HTTP. Every failure answers
// JSON {"error": "..."}.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/formmatic/formmatic/internal/auth"
	"github.com/formmatic/formmatic/internal/fillapi"
	"github.com/formmatic/formmatic/internal/models"
	"github.com/formmatic/formmatic/internal/orchestrator"
	"github.com/formmatic/formmatic/internal/service"
)

// maxBody bounds JSON request bodies.
const maxBody = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	return dec.Decode(v)
}

func caller(r *http.Request) service.Caller {
	claims := auth.GetUser(r.Context())
	if claims == nil {
		return service.Caller{}
	}
	return service.Caller{UserID: claims.UserID, Admin: claims.Role == models.RoleAdmin}
}

// writeServiceError maps service errors to status codes. Unexpected
// errors are logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	var fillErr *fillapi.Error
	switch {
	case errors.Is(err, service.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, orchestrator.ErrNoForms):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &fillErr), errors.Is(err, fillapi.ErrEmptyDocument):
		log.Warn("document generation failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timed out")
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
