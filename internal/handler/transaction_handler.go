package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/formmatic/formmatic/internal/models"
	"github.com/formmatic/formmatic/internal/service"
)

type TransactionHandler struct {
	svc *service.TransactionService
	log *zap.Logger
}

func NewTransactionHandler(svc *service.TransactionService, log *zap.Logger) *TransactionHandler {
	return &TransactionHandler{svc: svc, log: log}
}

// Save handles POST /api/save.
func (h *TransactionHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req models.SaveRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := h.svc.Save(r.Context(), caller(r), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SaveResponse{TransactionID: id})
}

// Update handles POST /api/update.
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.SaveRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TransactionID == "" {
		req.TransactionID = req.FormData.ID()
	}
	id, err := h.svc.Update(r.Context(), caller(r), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SaveResponse{TransactionID: id})
}

func (h *TransactionHandler) Recent(w http.ResponseWriter, r *http.Request) {
	h.list(w)(h.svc.Recent(r.Context(), caller(r)))
}

func (h *TransactionHandler) Search(w http.ResponseWriter, r *http.Request) {
	h.list(w)(h.svc.Search(r.Context(), caller(r), r.URL.Query().Get("searchFor")))
}

func (h *TransactionHandler) ByDate(w http.ResponseWriter, r *http.Request) {
	h.list(w)(h.svc.ByDate(r.Context(), caller(r), r.URL.Query().Get("date")))
}

func (h *TransactionHandler) ByTransaction(w http.ResponseWriter, r *http.Request) {
	h.list(w)(h.svc.ByTransaction(r.Context(), caller(r), r.URL.Query().Get("transactionType")))
}

func (h *TransactionHandler) list(w http.ResponseWriter) func([]models.Transaction, error) {
	return func(txs []models.Transaction, err error) {
		if err != nil {
			writeServiceError(w, h.log, err)
			return
		}
		if txs == nil {
			txs = []models.Transaction{}
		}
		writeJSON(w, http.StatusOK, txs)
	}
}

// Delete handles DELETE /api/delete?clientId=.
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("clientId")
	if err := h.svc.Delete(r.Context(), caller(r), id); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// Put handles PUT /api/put?clientId=.
func (h *TransactionHandler) Put(w http.ResponseWriter, r *http.Request) {
	var in models.Transaction
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tx, err := h.svc.Put(r.Context(), caller(r), r.URL.Query().Get("clientId"), in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}
