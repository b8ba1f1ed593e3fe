// Package service holds the backend use cases behind the HTTP handlers.
package service

import (
	"context"
	"errors"

	"github.com/formmatic/formmatic/internal/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid request")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("invalid credentials")
)

// Caller is the authenticated user a request acts for.
type Caller struct {
	UserID string
	Admin  bool
}

// owns reports whether c may read or change records of userID.
func (c Caller) owns(userID string) bool {
	return c.Admin || (c.UserID != "" && c.UserID == userID)
}

// TransactionStore is the transaction persistence used by the services.
type TransactionStore interface {
	Create(ctx context.Context, tx *models.Transaction) (string, error)
	FindByID(ctx context.Context, id string) (*models.Transaction, error)
	Update(ctx context.Context, id string, tx *models.Transaction) error
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, filter map[string]any, limit int) ([]models.Transaction, error)
	TextSearch(ctx context.Context, query string, limit int) ([]models.Transaction, error)
}

// PDFStore caches filled PDFs.
type PDFStore interface {
	Create(ctx context.Context, pdf *models.FilledPDF) (string, error)
	FindForm(ctx context.Context, transactionID, formType string) (*models.FilledPDF, error)
	FindByTransaction(ctx context.Context, transactionID string) ([]models.FilledPDF, error)
	Delete(ctx context.Context, id string) error
	PutBlob(ctx context.Context, key string, data []byte, metadata map[string]string) error
	GetBlob(ctx context.Context, key string) ([]byte, error)
	DeleteBlob(ctx context.Context, key string) error
}

// UserStore is the account persistence used by AuthService.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (string, error)
}

// loadOwned fetches a transaction the caller may access.
func loadOwned(ctx context.Context, store TransactionStore, c Caller, id string) (*models.Transaction, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	tx, err := store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrNotFound
	}
	if !c.owns(tx.UserID) {
		return nil, ErrForbidden
	}
	return tx, nil
}
