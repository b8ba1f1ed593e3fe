package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/formmatic/formmatic/internal/formcodes"
	"github.com/formmatic/formmatic/internal/formdoc"
	"github.com/formmatic/formmatic/internal/metrics"
	"github.com/formmatic/formmatic/internal/models"
	"github.com/formmatic/formmatic/internal/pdfmerge"
	"github.com/formmatic/formmatic/internal/rules"
	"github.com/formmatic/formmatic/internal/scenario"
)

// ErrNoForms is returned when not a single form could be filled.
var ErrNoForms = errors.New("orchestrator: no forms were generated")

// Filler fills one DMV form for a saved transaction.
type Filler interface {
	FillPDF(ctx context.Context, req models.FillRequest) ([]byte, error)
}

// PrintResult is a merged packet plus the forms left out of it.
type PrintResult struct {
	*pdfmerge.Result
	// Skipped lists forms the fill endpoint did not produce.
	Skipped []string
}

// PrinterOptions tunes a Printer. Concurrency below two fills forms one
// after another; a zero FillRate does not throttle.
type PrinterOptions struct {
	Forms       *formcodes.Table
	Merger      *pdfmerge.Merger
	Concurrency int
	FillRate    rate.Limit
	Logger      *zap.Logger
}

// Printer fills and merges the forms of saved documents.
type Printer struct {
	filler      Filler
	forms       *formcodes.Table
	merger      *pdfmerge.Merger
	concurrency int
	limiter     *rate.Limiter
	log         *zap.Logger
}

func NewPrinter(filler Filler, opts PrinterOptions) *Printer {
	p := &Printer{
		filler:      filler,
		forms:       opts.Forms,
		merger:      opts.Merger,
		concurrency: opts.Concurrency,
		log:         opts.Logger,
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.forms == nil {
		p.forms = formcodes.Default()
	}
	if p.merger == nil {
		p.merger = pdfmerge.New(pdfmerge.NewPDFCPU(), p.log)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	if opts.FillRate > 0 {
		p.limiter = rate.NewLimiter(opts.FillRate, 1)
	}
	return p
}

type fillJob struct {
	req   models.FillRequest
	title string
}

// Jobs lists the fill calls for docs, in print order. Every document must
// carry its saved id.
func (p *Printer) Jobs(t scenario.TransactionType, docs []formdoc.Document, flags rules.Flags) ([]models.FillRequest, []string, error) {
	var reqs []models.FillRequest
	var titles []string
	for i, doc := range docs {
		id := doc.ID()
		if id == "" {
			return nil, nil, fmt.Errorf("orchestrator: document %d is not saved", i)
		}
		forms, err := p.forms.Codes(t, doc, flags)
		if err != nil {
			return nil, nil, err
		}
		for _, f := range forms {
			title := f.Code
			if len(docs) > 1 {
				title = fmt.Sprintf("%s #%d", f.Code, i+1)
			}
			reqs = append(reqs, models.FillRequest{TransactionID: id, FormType: f.Code, TransactionType: string(t)})
			titles = append(titles, title)
		}
	}
	return reqs, titles, nil
}

// Print fills every form of docs and merges them in table order. A form
// that fails to fill is logged and skipped; ErrNoForms is returned only
// when none could be filled.
func (p *Printer) Print(ctx context.Context, t scenario.TransactionType, docs []formdoc.Document, flags rules.Flags) (*PrintResult, error) {
	reqs, titles, err := p.Jobs(t, docs, flags)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, ErrNoForms
	}

	filled := make([][]byte, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range reqs {
		g.Go(func() error {
			data, err := p.fill(gctx, reqs[i])
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return nil
			}
			filled[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var arts []pdfmerge.Artifact
	var skipped []string
	for i, data := range filled {
		if data == nil {
			skipped = append(skipped, titles[i])
			continue
		}
		arts = append(arts, pdfmerge.Artifact{Title: titles[i], Data: data})
	}
	if len(arts) == 0 {
		return nil, ErrNoForms
	}

	res, err := p.merger.Merge(ctx, arts)
	if err != nil {
		return nil, err
	}
	p.log.Info("printed packet",
		zap.String("transactionType", string(t)),
		zap.Int("forms", len(arts)),
		zap.Int("pages", res.Pages),
		zap.Strings("skipped", skipped),
		zap.Strings("failed", pdfmerge.Titles(res.Failed)),
	)
	return &PrintResult{Result: res, Skipped: skipped}, nil
}

func (p *Printer) fill(ctx context.Context, req models.FillRequest) ([]byte, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	data, err := p.filler.FillPDF(ctx, req)
	switch {
	case err != nil:
		metrics.RecordFill(req.FormType, "error", time.Since(start))
		p.log.Warn("fill failed, skipping form", zap.String("form", req.FormType), zap.String("transactionId", req.TransactionID), zap.Error(err))
		return nil, err
	case len(data) == 0:
		metrics.RecordFill(req.FormType, "empty", time.Since(start))
		p.log.Warn("fill returned no data, skipping form", zap.String("form", req.FormType), zap.String("transactionId", req.TransactionID))
		return nil, errors.New("empty pdf")
	}
	metrics.RecordFill(req.FormType, "ok", time.Since(start))
	return data, nil
}
