// Package pdfmerge assembles filled DMV forms into one packet. Merging is
// best effort: an input that cannot be read or appended is set aside in
// the result instead of failing the packet.
package pdfmerge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/formmatic/formmatic/internal/metrics"
)

// ErrNoDocuments is returned when Merge is called without input.
var ErrNoDocuments = errors.New("pdfmerge: no documents to merge")

// Artifact is one filled form.
type Artifact struct {
	Title string
	Data  []byte
}

// Result is the outcome of a merge. Every input is either named in
// Included or listed in Failed.
type Result struct {
	Merged   []byte
	Failed   []Artifact
	Included []string
	// Pages is the page count of Merged, 0 when it could not be read.
	Pages int
}

// Engine reads and concatenates PDF bytes.
type Engine interface {
	PageCount(data []byte) (int, error)
	// Append returns acc with every page of next added at the end.
	Append(acc, next []byte) ([]byte, error)
}

// Merger runs the merge routine over an Engine.
type Merger struct {
	engine Engine
	log    *zap.Logger
}

// New returns a Merger. A nil logger discards output.
func New(engine Engine, log *zap.Logger) *Merger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Merger{engine: engine, log: log}
}

// Merge concatenates arts in order. A single input is returned unchanged.
// If no input can be read, the first input's raw bytes are returned and
// the rest are reported as failed.
func (m *Merger) Merge(ctx context.Context, arts []Artifact) (*Result, error) {
	if len(arts) == 0 {
		return nil, ErrNoDocuments
	}
	if len(arts) == 1 {
		pages, _ := m.engine.PageCount(arts[0].Data)
		metrics.RecordMerge(1, 0)
		return &Result{Merged: arts[0].Data, Included: []string{arts[0].Title}, Pages: pages}, nil
	}

	res := &Result{}
	var acc []byte
	for i, art := range arts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log := m.log.With(zap.Int("index", i), zap.String("title", art.Title))

		pages, err := m.engine.PageCount(art.Data)
		if err != nil || pages == 0 {
			if err == nil {
				err = errors.New("no pages")
			}
			log.Warn("cannot load pdf", zap.Error(err))
			res.Failed = append(res.Failed, art)
			continue
		}

		if acc == nil {
			acc = art.Data
		} else {
			next, err := m.engine.Append(acc, art.Data)
			if err != nil {
				log.Warn("cannot append pdf", zap.Error(err))
				res.Failed = append(res.Failed, art)
				continue
			}
			acc = next
		}
		res.Pages += pages
		res.Included = append(res.Included, art.Title)
		log.Debug("merged pdf", zap.Int("pages", pages), zap.Int("total", res.Pages))
	}

	if acc == nil {
		m.log.Warn("no pdf could be merged, returning first input", zap.Int("inputs", len(arts)))
		res = &Result{
			Merged:   arts[0].Data,
			Included: []string{arts[0].Title},
			Failed:   append([]Artifact(nil), arts[1:]...),
		}
	} else {
		res.Merged = acc
	}
	metrics.RecordMerge(len(res.Included), len(res.Failed))
	return res, nil
}

// Titles lists artifact titles, for log fields and headers.
func Titles(arts []Artifact) []string {
	out := make([]string, len(arts))
	for i, a := range arts {
		out[i] = a.Title
	}
	return out
}

func (a Artifact) String() string {
	return fmt.Sprintf("%s (%d bytes)", a.Title, len(a.Data))
}
