package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/formmatic/formmatic/internal/formdoc"
	"github.com/formmatic/formmatic/internal/models"
	"github.com/formmatic/formmatic/internal/scenario"
	"github.com/formmatic/formmatic/internal/sections"
)

const (
	recentLimit = 20
	searchLimit = 50
	dateLayout  = "2006-01-02"
)

// Forgetter drops cached artifacts of a transaction after it changes.
type Forgetter interface {
	Forget(ctx context.Context, transactionID string) error
}

type TransactionService struct {
	store TransactionStore
	cache Forgetter
	log   *zap.Logger
	now   func() time.Time
}

// NewTransactionService returns the service. cache may be nil.
func NewTransactionService(store TransactionStore, cache Forgetter, log *zap.Logger) *TransactionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TransactionService{store: store, cache: cache, log: log, now: time.Now}
}

// Save creates a transaction and returns its id. An admin may save on
// behalf of req.UserID; anyone else may only save for themselves.
func (s *TransactionService) Save(ctx context.Context, c Caller, req models.SaveRequest) (string, error) {
	owner := c.UserID
	if req.UserID != "" && req.UserID != c.UserID {
		if !c.Admin {
			return "", ErrForbidden
		}
		owner = req.UserID
	}
	doc, err := checkTransaction(req.TransactionType, req.FormData)
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	tx := &models.Transaction{
		UserID:          owner,
		TransactionType: req.TransactionType,
		FormData:        doc,
		Date:            now.Format(dateLayout),
		CreatedAt:       now.Format(time.RFC3339),
		UpdatedAt:       now.Format(time.RFC3339),
	}
	tx.Describe()
	id, err := s.store.Create(ctx, tx)
	if err != nil {
		return "", err
	}
	s.log.Info("transaction created", zap.String("transactionId", id), zap.String("transactionType", tx.TransactionType), zap.String("userId", owner))
	return id, nil
}

// Update replaces the form data of an existing transaction.
func (s *TransactionService) Update(ctx context.Context, c Caller, req models.SaveRequest) (string, error) {
	tx, err := loadOwned(ctx, s.store, c, req.TransactionID)
	if err != nil {
		return "", err
	}
	if req.TransactionType == "" {
		req.TransactionType = tx.TransactionType
	}
	doc, err := checkTransaction(req.TransactionType, req.FormData)
	if err != nil {
		return "", err
	}
	if err := s.replace(ctx, tx, req.TransactionType, doc); err != nil {
		return "", err
	}
	return tx.ID, nil
}

// Put is Update addressed by id, returning the stored record.
func (s *TransactionService) Put(ctx context.Context, c Caller, id string, in models.Transaction) (*models.Transaction, error) {
	tx, err := loadOwned(ctx, s.store, c, id)
	if err != nil {
		return nil, err
	}
	if in.TransactionType == "" {
		in.TransactionType = tx.TransactionType
	}
	doc, err := checkTransaction(in.TransactionType, in.FormData)
	if err != nil {
		return nil, err
	}
	if err := s.replace(ctx, tx, in.TransactionType, doc); err != nil {
		return nil, err
	}
	tx.FormData.SetID(tx.ID)
	return tx, nil
}

func (s *TransactionService) replace(ctx context.Context, tx *models.Transaction, t string, doc formdoc.Document) error {
	tx.TransactionType = t
	tx.FormData = doc
	tx.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	tx.Describe()
	if err := s.store.Update(ctx, tx.ID, tx); err != nil {
		return err
	}
	s.forget(ctx, tx.ID)
	s.log.Info("transaction updated", zap.String("transactionId", tx.ID))
	return nil
}

func (s *TransactionService) Get(ctx context.Context, c Caller, id string) (*models.Transaction, error) {
	return loadOwned(ctx, s.store, c, id)
}

func (s *TransactionService) Delete(ctx context.Context, c Caller, id string) error {
	if _, err := loadOwned(ctx, s.store, c, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.forget(ctx, id)
	s.log.Info("transaction deleted", zap.String("transactionId", id))
	return nil
}

func (s *TransactionService) forget(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Forget(ctx, id); err != nil {
		s.log.Warn("cannot drop cached pdfs", zap.String("transactionId", id), zap.Error(err))
	}
}

// Recent lists the caller's latest transactions.
func (s *TransactionService) Recent(ctx context.Context, c Caller) ([]models.Transaction, error) {
	return s.store.Find(ctx, map[string]any{"userId": c.UserID}, recentLimit)
}

// ByDate lists transactions saved on a YYYY-MM-DD date.
func (s *TransactionService) ByDate(ctx context.Context, c Caller, date string) ([]models.Transaction, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
	}
	return s.store.Find(ctx, map[string]any{"userId": c.UserID, "date": date}, 0)
}

// ByTransaction lists transactions of one type.
func (s *TransactionService) ByTransaction(ctx context.Context, c Caller, t string) ([]models.Transaction, error) {
	if !scenario.TransactionType(t).Valid() {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalid, scenario.ErrUnknownTransactionType, t)
	}
	return s.store.Find(ctx, map[string]any{"userId": c.UserID, "transactionType": t}, 0)
}

// Search matches client names through the text index and hull ids
// exactly. Hull matches come first.
func (s *TransactionService) Search(ctx context.Context, c Caller, query string) ([]models.Transaction, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: searchFor is required", ErrInvalid)
	}
	byHull, err := s.store.Find(ctx, map[string]any{"userId": c.UserID, "hullId": strings.ToUpper(query)}, searchLimit)
	if err != nil {
		return nil, err
	}
	byText, err := s.store.TextSearch(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(byHull))
	out := make([]models.Transaction, 0, len(byHull)+len(byText))
	for _, tx := range byHull {
		seen[tx.ID] = true
		out = append(out, tx)
	}
	var rest []models.Transaction
	for _, tx := range byText {
		if tx.UserID != c.UserID || seen[tx.ID] {
			continue
		}
		seen[tx.ID] = true
		rest = append(rest, tx)
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].UpdatedAt > rest[j].UpdatedAt })
	return append(out, rest...), nil
}

// checkTransaction validates the type and every known section of doc.
// Unknown top-level keys are kept as sent.
func checkTransaction(t string, doc formdoc.Document) (formdoc.Document, error) {
	if !scenario.TransactionType(t).Valid() {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalid, scenario.ErrUnknownTransactionType, t)
	}
	out := formdoc.Document{}
	for key, value := range doc {
		if key == formdoc.IDKey {
			continue
		}
		decoded, err := sections.DecodeField(key, value)
		switch {
		case errors.Is(err, sections.ErrUnknownSection):
			out[key] = value
		case err != nil:
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		case decoded != nil:
			out[key] = decoded
		}
	}
	return out, nil
}
