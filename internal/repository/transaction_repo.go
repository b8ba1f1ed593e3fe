package repository

import (
	"context"

	"github.com/formmatic/formmatic/internal/db"
	"github.com/formmatic/formmatic/internal/models"
	"github.com/formmatic/formmatic/pkg/oxidb"
)

const TransactionsCollection = "_fm_transactions"

// TextFields are the transaction fields covered by the text index.
var TextFields = []string{"clientName", "hullId"}

type TransactionRepo struct {
	pool *db.Pool
}

func NewTransactionRepo(pool *db.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

func (r *TransactionRepo) EnsureIndexes(ctx context.Context) error {
	c := r.pool.Get()
	if err := c.CreateIndex(ctx, TransactionsCollection, "userId"); err != nil {
		return err
	}
	if err := c.CreateIndex(ctx, TransactionsCollection, "hullId"); err != nil {
		return err
	}
	if err := c.CreateCompositeIndex(ctx, TransactionsCollection, []string{"userId", "date"}); err != nil {
		return err
	}
	return c.CreateCompositeIndex(ctx, TransactionsCollection, []string{"userId", "transactionType"})
}

func (r *TransactionRepo) EnsureTextIndex(ctx context.Context) error {
	return r.pool.Get().CreateTextIndex(ctx, TransactionsCollection, TextFields)
}

func (r *TransactionRepo) Create(ctx context.Context, tx *models.Transaction) (string, error) {
	doc, err := transactionToDoc(tx)
	if err != nil {
		return "", err
	}
	result, err := r.pool.Get().Insert(ctx, TransactionsCollection, doc)
	if err != nil {
		return "", err
	}
	return extractID(result), nil
}

func (r *TransactionRepo) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	doc, err := r.pool.Get().FindOne(ctx, TransactionsCollection, byID(id))
	if err != nil || doc == nil {
		return nil, err
	}
	return docToTransaction(doc)
}

func (r *TransactionRepo) Update(ctx context.Context, id string, tx *models.Transaction) error {
	doc, err := transactionToDoc(tx)
	if err != nil {
		return err
	}
	_, err = r.pool.Get().UpdateOne(ctx, TransactionsCollection, byID(id), map[string]any{"$set": doc})
	return err
}

func (r *TransactionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Get().DeleteOne(ctx, TransactionsCollection, byID(id))
	return err
}

// Find lists transactions matching filter, most recently updated first.
func (r *TransactionRepo) Find(ctx context.Context, filter map[string]any, limit int) ([]models.Transaction, error) {
	opts := &oxidb.FindOptions{Sort: map[string]any{"updatedAt": -1}}
	if limit > 0 {
		opts.Limit = &limit
	}
	docs, err := r.pool.Get().Find(ctx, TransactionsCollection, filter, opts)
	if err != nil {
		return nil, err
	}
	return docsToTransactions(docs), nil
}

// TextSearch queries the clientName/hullId text index.
func (r *TransactionRepo) TextSearch(ctx context.Context, query string, limit int) ([]models.Transaction, error) {
	docs, err := r.pool.Get().TextSearch(ctx, TransactionsCollection, query, limit)
	if err != nil {
		return nil, err
	}
	return docsToTransactions(docs), nil
}

func (r *TransactionRepo) Count(ctx context.Context, filter map[string]any) (int, error) {
	return r.pool.Get().Count(ctx, TransactionsCollection, filter)
}

func transactionToDoc(tx *models.Transaction) (map[string]any, error) {
	doc, err := toDoc(tx)
	if err != nil {
		return nil, err
	}
	if fd, ok := doc["formData"].(map[string]any); ok {
		delete(fd, "_id")
	}
	return doc, nil
}

func docToTransaction(doc map[string]any) (*models.Transaction, error) {
	var tx models.Transaction
	if err := fromDoc(doc, &tx); err != nil {
		return nil, err
	}
	if tx.FormData != nil {
		tx.FormData.SetID(tx.ID)
	}
	return &tx, nil
}

func docsToTransactions(docs []map[string]any) []models.Transaction {
	out := make([]models.Transaction, 0, len(docs))
	for _, d := range docs {
		tx, err := docToTransaction(d)
		if err != nil {
			continue
		}
		out = append(out, *tx)
	}
	return out
}
