package models

import (
	"strings"

	"github.com/formmatic/formmatic/internal/formdoc"
)

// Transaction is a saved DMV transaction. FormData holds the form document
// as the client sent it; the search fields are derived from it on save.
type Transaction struct {
	ID              string           `json:"_id,omitempty"`
	UserID          string           `json:"userId"`
	TransactionType string           `json:"transactionType"`
	FormData        formdoc.Document `json:"formData"`
	ClientName      string           `json:"clientName,omitempty"`
	HullID          string           `json:"hullId,omitempty"`
	Date            string           `json:"date"` // YYYY-MM-DD, for getByDate
	CreatedAt       string           `json:"createdAt"`
	UpdatedAt       string           `json:"updatedAt"`
}

// Describe fills the search fields from FormData.
func (t *Transaction) Describe() {
	t.ClientName = clientName(t.FormData)
	t.HullID = strings.ToUpper(t.FormData.String("vehicleInformation.hullId"))
}

func clientName(doc formdoc.Document) string {
	for _, prefix := range []string{"owners.0", "registeredOwnerOfRecord", "sellerInfo.sellers.0"} {
		if b := doc.String(prefix + ".businessName"); b != "" {
			return b
		}
		name := strings.TrimSpace(doc.String(prefix+".firstName") + " " + doc.String(prefix+".lastName"))
		if name != "" {
			return name
		}
	}
	return ""
}

// SaveRequest is the body of /api/save and /api/update.
type SaveRequest struct {
	UserID          string           `json:"userId"`
	TransactionType string           `json:"transactionType"`
	FormData        formdoc.Document `json:"formData"`
	TransactionID   string           `json:"transactionId,omitempty"`
}

// SaveResponse carries the id of the saved record.
type SaveResponse struct {
	TransactionID string `json:"transactionId"`
}

// FillRequest is the body of /api/fillPdf.
type FillRequest struct {
	TransactionID   string `json:"transactionId"`
	FormType        string `json:"formType"`
	TransactionType string `json:"transactionType"`
}

// PrintRequest is the body of /api/print.
type PrintRequest struct {
	TransactionID string `json:"transactionId"`
	// TransactionIDs prints a multiple transfer as one packet.
	TransactionIDs []string `json:"transactionIds,omitempty"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
