package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/formmatic/formmatic/internal/formdoc"
	"github.com/formmatic/formmatic/internal/models"
	"github.com/formmatic/formmatic/internal/orchestrator"
	"github.com/formmatic/formmatic/internal/persist"
	"github.com/formmatic/formmatic/internal/scenario"
)

// PrintService assembles the packet of saved transactions on the server.
// Scenario flags come from the caller's draft selection when one exists.
type PrintService struct {
	txs      TransactionStore
	fill     *FillService
	drafts   persist.Persister
	registry *scenario.Registry
	opts     orchestrator.PrinterOptions
	log      *zap.Logger
}

func NewPrintService(txs TransactionStore, fill *FillService, drafts persist.Persister, opts orchestrator.PrinterOptions, log *zap.Logger) *PrintService {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Logger == nil {
		opts.Logger = log
	}
	return &PrintService{txs: txs, fill: fill, drafts: drafts, registry: scenario.Default(), opts: opts, log: log}
}

func (s *PrintService) Print(ctx context.Context, c Caller, req models.PrintRequest) (*orchestrator.PrintResult, error) {
	ids := req.TransactionIDs
	if len(ids) == 0 && req.TransactionID != "" {
		ids = []string{req.TransactionID}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: transactionId is required", ErrInvalid)
	}

	var t scenario.TransactionType
	docs := make([]formdoc.Document, 0, len(ids))
	for _, id := range ids {
		tx, err := loadOwned(ctx, s.txs, c, id)
		if err != nil {
			return nil, err
		}
		if t == "" {
			t = scenario.TransactionType(tx.TransactionType)
		} else if string(t) != tx.TransactionType {
			return nil, fmt.Errorf("%w: transactions mix %q and %q", ErrInvalid, t, tx.TransactionType)
		}
		doc := tx.FormData.Clone()
		if doc == nil {
			doc = formdoc.Document{}
		}
		doc.SetID(tx.ID)
		docs = append(docs, doc)
	}

	sel := scenario.NewSelection(s.registry)
	if s.drafts != nil {
		if err := sel.Restore(ctx, persist.Namespaced(s.drafts, draftNamespace(c.UserID))); err != nil {
			s.log.Warn("cannot restore scenario selection, printing without flags", zap.Error(err))
		}
	}
	printer := orchestrator.NewPrinter(callerFiller{s: s.fill, c: c}, s.opts)
	return printer.Print(ctx, t, docs, sel)
}
