package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/formmatic/formmatic/internal/apiclient"
	"github.com/formmatic/formmatic/internal/models"
	"github.com/formmatic/formmatic/internal/pdfmerge"
	"github.com/formmatic/formmatic/internal/service"
)

type FillHandler struct {
	fill  *service.FillService
	print *service.PrintService
	log   *zap.Logger
}

func NewFillHandler(fill *service.FillService, print *service.PrintService, log *zap.Logger) *FillHandler {
	return &FillHandler{fill: fill, print: print, log: log}
}

// FillPDF handles POST /api/fillPdf.
func (h *FillHandler) FillPDF(w http.ResponseWriter, r *http.Request) {
	var req models.FillRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pdf, err := h.fill.FillPDF(r.Context(), caller(r), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writePDF(w, req.FormType+".pdf", pdf)
}

// Print handles POST /api/print. Forms that could not be merged are named
// in the failed header; the packet itself is the body.
func (h *FillHandler) Print(w http.ResponseWriter, r *http.Request) {
	var req models.PrintRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.print.Print(r.Context(), caller(r), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	failed := append(pdfmerge.Titles(res.Failed), res.Skipped...)
	if len(failed) > 0 {
		escaped := make([]string, len(failed))
		for i, t := range failed {
			escaped[i] = url.QueryEscape(t)
		}
		w.Header().Set(apiclient.FailedHeader, strings.Join(escaped, ","))
	}
	writePDF(w, "packet.pdf", res.Merged)
}

func writePDF(w http.ResponseWriter, name string, pdf []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.Header().Set("Content-Disposition", `inline; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
