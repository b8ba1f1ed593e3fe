package handler

import (
	"net/http"

	"github.com/formmatic/formmatic/internal/formcodes"
	"github.com/formmatic/formmatic/internal/scenario"
)

// CatalogHandler serves the static scenario catalog and form table.
type CatalogHandler struct {
	registry *scenario.Registry
	forms    *formcodes.Table
}

func NewCatalogHandler(registry *scenario.Registry, forms *formcodes.Table) *CatalogHandler {
	return &CatalogHandler{registry: registry, forms: forms}
}

func (h *CatalogHandler) Scenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Catalog())
}

// FormCodes lists every form a transaction type may print.
func (h *CatalogHandler) FormCodes(w http.ResponseWriter, r *http.Request) {
	t := scenario.TransactionType(r.URL.Query().Get("transactionType"))
	if !t.Valid() {
		writeError(w, http.StatusBadRequest, "unknown transaction type")
		return
	}
	writeJSON(w, http.StatusOK, h.forms.Possible(t))
}
