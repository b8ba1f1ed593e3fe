package models

// FilledPDF records one filled form cached in blob storage.
type FilledPDF struct {
	ID            string `json:"_id,omitempty"`
	TransactionID string `json:"transactionId"`
	FormType      string `json:"formType"`
	BlobKey       string `json:"blobKey"`
	Size          int64  `json:"size"`
	UserID        string `json:"userId"`
	CreatedAt     string `json:"createdAt"`
}
