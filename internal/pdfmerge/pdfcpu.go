package pdfmerge

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// Keep pdfcpu from creating a config dir in the user's home.
	model.ConfigPath = "disable"
}

// PDFCPU is the production Engine. It reads in relaxed validation mode so
// forms produced by lenient generators still merge.
type PDFCPU struct {
	conf *model.Configuration
}

// NewPDFCPU returns a relaxed pdfcpu engine.
func NewPDFCPU() *PDFCPU {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPU{conf: conf}
}

func (p *PDFCPU) PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), p.conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu: page count: %w", err)
	}
	return n, nil
}

func (p *PDFCPU) Append(acc, next []byte) ([]byte, error) {
	var out bytes.Buffer
	inputs := []io.ReadSeeker{bytes.NewReader(acc), bytes.NewReader(next)}
	if err := api.MergeRaw(inputs, &out, false, p.conf); err != nil {
		return nil, fmt.Errorf("pdfcpu: append: %w", err)
	}
	return out.Bytes(), nil
}
