package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/formmatic/formmatic/internal/formcodes"
	"github.com/formmatic/formmatic/internal/models"
)

// Generator fills a PDF template from form data.
type Generator interface {
	Generate(ctx context.Context, template string, data map[string]any) ([]byte, error)
}

// FillService answers /api/fillPdf. Generated PDFs are cached in blob
// storage per transaction and form until the transaction changes.
type FillService struct {
	txs   TransactionStore
	pdfs  PDFStore
	gen   Generator
	forms *formcodes.Table
	log   *zap.Logger
}

func NewFillService(txs TransactionStore, pdfs PDFStore, gen Generator, log *zap.Logger) *FillService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FillService{txs: txs, pdfs: pdfs, gen: gen, forms: formcodes.Default(), log: log}
}

// FillPDF returns the filled form req.FormType for a saved transaction.
func (s *FillService) FillPDF(ctx context.Context, c Caller, req models.FillRequest) ([]byte, error) {
	if !s.forms.Known(req.FormType) {
		return nil, fmt.Errorf("%w: unknown form %q", ErrInvalid, req.FormType)
	}
	tx, err := loadOwned(ctx, s.txs, c, req.TransactionID)
	if err != nil {
		return nil, err
	}
	log := s.log.With(zap.String("transactionId", tx.ID), zap.String("form", req.FormType))
	if req.TransactionType != "" && req.TransactionType != tx.TransactionType {
		log.Warn("fill requested for a different transaction type", zap.String("requested", req.TransactionType))
	}

	if data := s.cached(ctx, tx.ID, req.FormType, log); data != nil {
		return data, nil
	}

	payload := map[string]any(tx.FormData.Clone())
	payload["transactionType"] = tx.TransactionType
	payload["formType"] = req.FormType
	payload["formTitle"] = s.forms.Title(req.FormType)
	start := time.Now()
	data, err := s.gen.Generate(ctx, req.FormType, payload)
	if err != nil {
		log.Warn("generation failed", zap.Error(err))
		return nil, err
	}
	log.Info("form generated", zap.Int("bytes", len(data)), zap.Duration("took", time.Since(start)))
	s.store(ctx, tx, req.FormType, data, log)
	return data, nil
}

func (s *FillService) cached(ctx context.Context, txID, form string, log *zap.Logger) []byte {
	rec, err := s.pdfs.FindForm(ctx, txID, form)
	if err != nil {
		log.Warn("cache lookup failed", zap.Error(err))
		return nil
	}
	if rec == nil {
		return nil
	}
	data, err := s.pdfs.GetBlob(ctx, rec.BlobKey)
	if err != nil || len(data) == 0 {
		log.Warn("cached pdf unreadable", zap.String("blobKey", rec.BlobKey), zap.Error(err))
		return nil
	}
	log.Debug("served cached pdf", zap.String("blobKey", rec.BlobKey))
	return data
}

// store caches a generated PDF. Failures are logged only: the caller
// already has the bytes.
func (s *FillService) store(ctx context.Context, tx *models.Transaction, form string, data []byte, log *zap.Logger) {
	key := fmt.Sprintf("%s/%s/%s.pdf", tx.ID, form, uuid.NewString())
	meta := map[string]string{"transactionId": tx.ID, "formType": form}
	if err := s.pdfs.PutBlob(ctx, key, data, meta); err != nil {
		log.Warn("cannot cache pdf", zap.Error(err))
		return
	}
	rec := &models.FilledPDF{
		TransactionID: tx.ID,
		FormType:      form,
		BlobKey:       key,
		Size:          int64(len(data)),
		UserID:        tx.UserID,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := s.pdfs.Create(ctx, rec); err != nil {
		log.Warn("cannot record cached pdf", zap.Error(err))
		_ = s.pdfs.DeleteBlob(ctx, key)
	}
}

// Forget drops every cached PDF of a transaction.
func (s *FillService) Forget(ctx context.Context, transactionID string) error {
	recs, err := s.pdfs.FindByTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	var errs []error
	for _, rec := range recs {
		if err := s.pdfs.DeleteBlob(ctx, rec.BlobKey); err != nil {
			errs = append(errs, err)
		}
		if err := s.pdfs.Delete(ctx, rec.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// callerFiller binds a FillService to one caller for the print pipeline.
type callerFiller struct {
	s *FillService
	c Caller
}

func (f callerFiller) FillPDF(ctx context.Context, req models.FillRequest) ([]byte, error) {
	return f.s.FillPDF(ctx, f.c, req)
}
