package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/formmatic/formmatic/internal/service"
)

type DraftHandler struct {
	svc *service.DraftService
	log *zap.Logger
}

func NewDraftHandler(svc *service.DraftService, log *zap.Logger) *DraftHandler {
	return &DraftHandler{svc: svc, log: log}
}

// Get handles GET /api/draft/{key} and answers the stored JSON as is.
func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.Get(r.Context(), caller(r), chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// Put handles PUT /api/draft/{key}.
func (h *DraftHandler) Put(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	if err := h.svc.Set(r.Context(), caller(r), chi.URLParam(r, "key"), data); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/draft?key=a&key=b.
func (h *DraftHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), caller(r), r.URL.Query()["key"]...); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
