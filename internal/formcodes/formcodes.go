// Package formcodes maps a transaction to the DMV forms it prints.
package formcodes

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/formmatic/formmatic/internal/formdoc"
	"github.com/formmatic/formmatic/internal/rules"
	"github.com/formmatic/formmatic/internal/scenario"
)

//go:embed table.yaml
var tableYAML []byte

// Form is one fillable DMV template.
type Form struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

type entry struct {
	Code string     `yaml:"code"`
	When rules.Rule `yaml:"when"`
}

// Table is the static form-code table.
type Table struct {
	titles map[string]string
	common []entry
	byType map[scenario.TransactionType][]entry
}

// Default returns the embedded table.
func Default() *Table {
	t, err := Parse(tableYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// Parse builds a table from YAML. Every transaction type needs an entry
// and every code a title.
func Parse(data []byte) (*Table, error) {
	var f struct {
		Forms        map[string]string                    `yaml:"forms"`
		Common       []entry                              `yaml:"common"`
		Transactions map[scenario.TransactionType][]entry `yaml:"transactions"`
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("formcodes: parse: %w", err)
	}
	t := &Table{titles: f.Forms, common: f.Common, byType: f.Transactions}
	if err := t.checkCodes("common", f.Common); err != nil {
		return nil, err
	}
	for tt, entries := range f.Transactions {
		if !tt.Valid() {
			return nil, fmt.Errorf("formcodes: %w: %q", scenario.ErrUnknownTransactionType, tt)
		}
		if err := t.checkCodes(string(tt), entries); err != nil {
			return nil, err
		}
	}
	for _, tt := range scenario.TransactionTypes {
		if _, ok := f.Transactions[tt]; !ok {
			return nil, fmt.Errorf("formcodes: no forms for %q", tt)
		}
	}
	return t, nil
}

func (t *Table) checkCodes(where string, entries []entry) error {
	for _, e := range entries {
		if _, ok := t.titles[e.Code]; !ok {
			return fmt.Errorf("formcodes: %s: unknown form code %q", where, e.Code)
		}
	}
	return nil
}

// Codes returns the forms to print for tt, in table order followed by the
// common forms, without duplicates. Identical inputs give identical output.
func (t *Table) Codes(tt scenario.TransactionType, doc formdoc.Document, flags rules.Flags) ([]Form, error) {
	entries, ok := t.byType[tt]
	if !ok {
		return nil, fmt.Errorf("formcodes: %w: %q", scenario.ErrUnknownTransactionType, tt)
	}
	facts := rules.NewFacts(doc, string(tt), flags)
	seen := map[string]bool{}
	var forms []Form
	for _, group := range [][]entry{entries, t.common} {
		for _, e := range group {
			if seen[e.Code] {
				continue
			}
			ok, err := e.When.Eval(facts)
			if err != nil {
				return nil, fmt.Errorf("formcodes: %s: %w", e.Code, err)
			}
			if !ok {
				continue
			}
			seen[e.Code] = true
			forms = append(forms, Form{Code: e.Code, Title: t.titles[e.Code]})
		}
	}
	return forms, nil
}

// Title returns the display title of a form code, or the code itself.
func (t *Table) Title(code string) string {
	if title, ok := t.titles[code]; ok {
		return title
	}
	return code
}

// Known reports whether code is a form of the table.
func (t *Table) Known(code string) bool {
	_, ok := t.titles[code]
	return ok
}

// Possible lists every form tt may print, whatever the document holds.
func (t *Table) Possible(tt scenario.TransactionType) []Form {
	seen := map[string]bool{}
	var forms []Form
	for _, group := range [][]entry{t.byType[tt], t.common} {
		for _, e := range group {
			if !seen[e.Code] {
				seen[e.Code] = true
				forms = append(forms, Form{Code: e.Code, Title: t.titles[e.Code]})
			}
		}
	}
	return forms
}

// CodeList extracts the codes of forms.
func CodeList(forms []Form) []string {
	out := make([]string, len(forms))
	for i, f := range forms {
		out[i] = f.Code
	}
	return out
}
