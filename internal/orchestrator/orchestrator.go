// Package orchestrator runs the save and print flows over the form state
// store: validate, persist through the backend, fill every required DMV
// form and merge the results into one packet.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/formmatic/formmatic/internal/composer"
	"github.com/formmatic/formmatic/internal/formdoc"
	"github.com/formmatic/formmatic/internal/formstate"
	"github.com/formmatic/formmatic/internal/metrics"
	"github.com/formmatic/formmatic/internal/models"
	"github.com/formmatic/formmatic/internal/scenario"
	"github.com/formmatic/formmatic/internal/sections"
)

var (
	ErrSaveCancelled = errors.New("orchestrator: save cancelled")
	ErrNoTransaction = errors.New("orchestrator: no transaction type selected")
)

// SaveError reports a failed save. Index is the failing transfer of a
// multiple transfer, -1 for a single form. Transfers before Index keep
// their ids.
type SaveError struct {
	Index int
	Err   error
}

func (e *SaveError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("save failed: %v", e.Err)
	}
	return fmt.Sprintf("save of transfer %d failed: %v", e.Index+1, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Backend is the server the orchestrator saves to and fills forms from.
type Backend interface {
	Filler
	Save(ctx context.Context, req models.SaveRequest) (string, error)
	Update(ctx context.Context, req models.SaveRequest) (string, error)
}

// Confirmer asks the user whether to save a form that failed validation.
type Confirmer interface {
	Confirm(ctx context.Context, errs []sections.FieldError) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, errs []sections.FieldError) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, errs []sections.FieldError) (bool, error) {
	return f(ctx, errs)
}

// Opener displays a printed packet, and separately every form that could
// not be merged into it.
type Opener interface {
	Open(ctx context.Context, title string, pdf []byte) error
}

// Orchestrator is bound to one user's store and selection.
type Orchestrator struct {
	store     *formstate.Store
	selection *scenario.Selection
	backend   Backend
	composer  *composer.Composer
	printer   *Printer
	confirmer Confirmer
	opener    Opener
	userID    string
	log       *zap.Logger
}

// Options wires the optional collaborators. Nil fields get defaults:
// the embedded compositions, a sequential printer, no confirmation (an
// invalid form is not saved) and no opener.
type Options struct {
	UserID    string
	Composer  *composer.Composer
	Printer   *Printer
	Confirmer Confirmer
	Opener    Opener
	Logger    *zap.Logger
}

func New(store *formstate.Store, sel *scenario.Selection, backend Backend, opts Options) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		selection: sel,
		backend:   backend,
		composer:  opts.Composer,
		printer:   opts.Printer,
		confirmer: opts.Confirmer,
		opener:    opts.Opener,
		userID:    opts.UserID,
		log:       opts.Logger,
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.composer == nil {
		o.composer = composer.Default()
	}
	if o.printer == nil {
		o.printer = NewPrinter(backend, PrinterOptions{Logger: o.log})
	}
	return o
}

// ValidateSingleForm checks every mounted section of doc.
func (o *Orchestrator) ValidateSingleForm(doc formdoc.Document) ([]sections.FieldError, error) {
	t := o.selection.TransactionType()
	if t == "" {
		return nil, ErrNoTransaction
	}
	return o.composer.Validate(t, doc, o.selection)
}

// ValidateTransfers checks each transfer of a multiple transfer. Field
// paths are prefixed with the transfer position.
func (o *Orchestrator) ValidateTransfers() ([]sections.FieldError, error) {
	var all []sections.FieldError
	for i, doc := range o.store.Transfers() {
		errs, err := o.ValidateSingleForm(doc)
		if err != nil {
			return nil, err
		}
		for _, e := range errs {
			e.Field = fmt.Sprintf("transfersData.%d.%s", i, e.Field)
			all = append(all, e)
		}
	}
	return all, nil
}

// Validate runs whichever validation applies to the store.
func (o *Orchestrator) Validate() ([]sections.FieldError, error) {
	if o.store.IsMultipleTransfer() {
		return o.ValidateTransfers()
	}
	return o.ValidateSingleForm(o.store.FormData())
}

// HandleSaveClick validates, turns on inline errors and saves. An invalid
// form is only saved once the Confirmer agrees.
func (o *Orchestrator) HandleSaveClick(ctx context.Context) error {
	errs, err := o.Validate()
	if err != nil {
		return err
	}
	o.store.SetShowValidationErrors(true)
	if len(errs) > 0 {
		o.log.Info("form has validation errors", zap.Int("count", len(errs)))
		if o.confirmer == nil {
			return ErrSaveCancelled
		}
		ok, err := o.confirmer.Confirm(ctx, errs)
		if err != nil {
			return fmt.Errorf("orchestrator: confirm: %w", err)
		}
		if !ok {
			return ErrSaveCancelled
		}
	}
	return o.HandleSave(ctx)
}

// HandleSave persists the store. Documents with an id are updated, others
// created, and the returned id is written back. Transfers are saved one at
// a time in order; the first failure stops the loop.
func (o *Orchestrator) HandleSave(ctx context.Context) error {
	t := o.selection.TransactionType()
	if t == "" {
		return ErrNoTransaction
	}
	if !o.store.IsMultipleTransfer() {
		id, err := o.saveOne(ctx, t, o.store.FormData())
		if err != nil {
			return &SaveError{Index: -1, Err: err}
		}
		o.store.SetID(id)
		return nil
	}

	for i, doc := range o.store.Transfers() {
		id, err := o.saveOne(ctx, t, doc)
		if err != nil {
			return &SaveError{Index: i, Err: err}
		}
		if err := o.store.SetTransferID(i, id); err != nil {
			return &SaveError{Index: i, Err: err}
		}
	}
	return nil
}

func (o *Orchestrator) saveOne(ctx context.Context, t scenario.TransactionType, doc formdoc.Document) (string, error) {
	req := models.SaveRequest{
		UserID:          o.userID,
		TransactionType: string(t),
		FormData:        doc,
		TransactionID:   doc.ID(),
	}
	op, call := "save", o.backend.Save
	if req.TransactionID != "" {
		op, call = "update", o.backend.Update
	}
	id, err := call(ctx, req)
	metrics.RecordSave(op, err)
	if err != nil {
		o.log.Warn("save failed", zap.String("op", op), zap.String("transactionId", req.TransactionID), zap.Error(err))
		return "", err
	}
	o.log.Info("saved transaction", zap.String("op", op), zap.String("transactionId", id))
	return id, nil
}

// HandlePrint saves first if any document lacks an id, then fills and
// merges every required form and hands the packet to the Opener.
func (o *Orchestrator) HandlePrint(ctx context.Context) (*PrintResult, error) {
	t := o.selection.TransactionType()
	if t == "" {
		return nil, ErrNoTransaction
	}
	if o.needsSave() {
		o.log.Info("saving before print")
		if err := o.HandleSave(ctx); err != nil {
			return nil, err
		}
	}

	docs := o.store.Transfers()
	if docs == nil {
		docs = []formdoc.Document{o.store.FormData()}
	}
	res, err := o.printer.Print(ctx, t, docs, o.selection)
	if err != nil {
		return nil, err
	}
	if o.opener != nil {
		o.open(ctx, res)
	}
	return res, nil
}

func (o *Orchestrator) needsSave() bool {
	if !o.store.IsMultipleTransfer() {
		return o.store.ID() == ""
	}
	for _, id := range o.store.TransferIDs() {
		if id == "" {
			return true
		}
	}
	return false
}

func (o *Orchestrator) open(ctx context.Context, res *PrintResult) {
	title := string(o.selection.TransactionType())
	if err := o.opener.Open(ctx, title, res.Merged); err != nil {
		o.log.Warn("cannot open packet", zap.Error(err))
	}
	for _, f := range res.Failed {
		if err := o.opener.Open(ctx, f.Title, f.Data); err != nil {
			o.log.Warn("cannot open form", zap.String("title", f.Title), zap.Error(err))
		}
	}
}
