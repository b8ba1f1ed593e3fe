// Package composer decides which form sections a transaction mounts.
package composer

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/formmatic/formmatic/internal/formdoc"
	"github.com/formmatic/formmatic/internal/rules"
	"github.com/formmatic/formmatic/internal/scenario"
	"github.com/formmatic/formmatic/internal/sections"
)

//go:embed compositions.yaml
var compositionsYAML []byte

type entry struct {
	Section string     `yaml:"section"`
	When    rules.Rule `yaml:"when"`
}

type file struct {
	AddOns       []entry `yaml:"addOns"`
	Transactions []struct {
		Type     scenario.TransactionType `yaml:"type"`
		Sections []entry                  `yaml:"sections"`
	} `yaml:"transactions"`
}

// Composer holds one ordered composition per transaction type.
type Composer struct {
	byType map[scenario.TransactionType][]entry
	addOns []entry
}

// Default returns the composer built from the embedded compositions.
func Default() *Composer {
	c, err := Parse(compositionsYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a composer from YAML, checking every section name and
// transaction type.
func Parse(data []byte) (*Composer, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("composer: parse: %w", err)
	}
	if err := checkSections(f.AddOns); err != nil {
		return nil, err
	}
	c := &Composer{byType: map[scenario.TransactionType][]entry{}, addOns: f.AddOns}
	for _, tx := range f.Transactions {
		if !tx.Type.Valid() {
			return nil, fmt.Errorf("composer: %w: %q", scenario.ErrUnknownTransactionType, tx.Type)
		}
		if _, dup := c.byType[tx.Type]; dup {
			return nil, fmt.Errorf("composer: duplicate composition %q", tx.Type)
		}
		if err := checkSections(tx.Sections); err != nil {
			return nil, fmt.Errorf("composer: %s: %w", tx.Type, err)
		}
		c.byType[tx.Type] = tx.Sections
	}
	return c, nil
}

func checkSections(entries []entry) error {
	seen := map[string]bool{}
	for _, e := range entries {
		if _, ok := sections.ByName(e.Section); !ok {
			return fmt.Errorf("%w: %q", sections.ErrUnknownSection, e.Section)
		}
		if seen[e.Section] {
			return fmt.Errorf("section %q listed twice", e.Section)
		}
		seen[e.Section] = true
	}
	return nil
}

// Mount returns the sections to show for t given the current document and
// scenario selection, in display order.
func (c *Composer) Mount(t scenario.TransactionType, doc formdoc.Document, flags rules.Flags) ([]*sections.Section, error) {
	base, ok := c.byType[t]
	if !ok {
		return nil, fmt.Errorf("composer: %w: %q", scenario.ErrUnknownTransactionType, t)
	}
	facts := rules.NewFacts(doc, string(t), flags)

	var mounted []*sections.Section
	listed := map[string]bool{}
	for _, e := range base {
		listed[e.Section] = true
		if err := mountIf(&mounted, e, facts); err != nil {
			return nil, err
		}
	}
	for _, e := range c.addOns {
		if listed[e.Section] {
			continue
		}
		if err := mountIf(&mounted, e, facts); err != nil {
			return nil, err
		}
	}
	return mounted, nil
}

func mountIf(mounted *[]*sections.Section, e entry, facts *rules.Facts) error {
	ok, err := e.When.Eval(facts)
	if err != nil {
		return fmt.Errorf("composer: %s: %w", e.Section, err)
	}
	if ok {
		s, _ := sections.ByName(e.Section)
		*mounted = append(*mounted, s)
	}
	return nil
}

// Validate runs the field checks of every mounted section.
func (c *Composer) Validate(t scenario.TransactionType, doc formdoc.Document, flags rules.Flags) ([]sections.FieldError, error) {
	mounted, err := c.Mount(t, doc, flags)
	if err != nil {
		return nil, err
	}
	var errs []sections.FieldError
	for _, s := range mounted {
		errs = append(errs, s.Validate(doc)...)
	}
	return errs, nil
}

// Names lists the mounted section names, for display and logging.
func Names(mounted []*sections.Section) []string {
	names := make([]string, len(mounted))
	for i, s := range mounted {
		names[i] = s.Name
	}
	return names
}
