package repository

import (
	"context"

	"github.com/formmatic/formmatic/internal/db"
	"github.com/formmatic/formmatic/internal/models"
)

const (
	DocumentsCollection = "_fm_documents"
	BlobBucket          = "formmatic_pdfs"
)

// DocumentRepo records filled PDFs and keeps their bytes in blob storage.
type DocumentRepo struct {
	pool *db.Pool
}

func NewDocumentRepo(pool *db.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

func (r *DocumentRepo) EnsureIndexes(ctx context.Context) error {
	c := r.pool.Get()
	if err := c.CreateIndex(ctx, DocumentsCollection, "transactionId"); err != nil {
		return err
	}
	return c.CreateCompositeIndex(ctx, DocumentsCollection, []string{"transactionId", "formType"})
}

func (r *DocumentRepo) EnsureBucket(ctx context.Context) error {
	return r.pool.Get().CreateBucket(ctx, BlobBucket)
}

func (r *DocumentRepo) Create(ctx context.Context, pdf *models.FilledPDF) (string, error) {
	doc, err := toDoc(pdf)
	if err != nil {
		return "", err
	}
	result, err := r.pool.Get().Insert(ctx, DocumentsCollection, doc)
	if err != nil {
		return "", err
	}
	return extractID(result), nil
}

// FindForm returns the cached fill of one form for a transaction.
func (r *DocumentRepo) FindForm(ctx context.Context, transactionID, formType string) (*models.FilledPDF, error) {
	doc, err := r.pool.Get().FindOne(ctx, DocumentsCollection, map[string]any{
		"transactionId": transactionID,
		"formType":      formType,
	})
	if err != nil || doc == nil {
		return nil, err
	}
	var pdf models.FilledPDF
	if err := fromDoc(doc, &pdf); err != nil {
		return nil, err
	}
	return &pdf, nil
}

func (r *DocumentRepo) FindByTransaction(ctx context.Context, transactionID string) ([]models.FilledPDF, error) {
	docs, err := r.pool.Get().Find(ctx, DocumentsCollection, map[string]any{"transactionId": transactionID}, nil)
	if err != nil {
		return nil, err
	}
	out := make([]models.FilledPDF, 0, len(docs))
	for _, d := range docs {
		var pdf models.FilledPDF
		if err := fromDoc(d, &pdf); err != nil {
			continue
		}
		out = append(out, pdf)
	}
	return out, nil
}

func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Get().DeleteOne(ctx, DocumentsCollection, byID(id))
	return err
}

func (r *DocumentRepo) PutBlob(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	return r.pool.Get().PutObject(ctx, BlobBucket, key, data, "application/pdf", metadata)
}

func (r *DocumentRepo) GetBlob(ctx context.Context, key string) ([]byte, error) {
	data, _, err := r.pool.Get().GetObject(ctx, BlobBucket, key)
	return data, err
}

func (r *DocumentRepo) DeleteBlob(ctx context.Context, key string) error {
	return r.pool.Get().DeleteObject(ctx, BlobBucket, key)
}
