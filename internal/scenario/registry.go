// Package scenario holds the static scenario catalog and the user's active
// scenario selection.
package scenario

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

var (
	ErrUnknownTransactionType = errors.New("unknown transaction type")
	ErrUnknownScenario        = errors.New("unknown scenario")
)

// Subsection is a toggleable scenario. In the catalog it is written either
// as a plain label or as an object with sub-options.
type Subsection struct {
	Name       string          `yaml:"name" json:"name"`
	Opens      TransactionType `yaml:"opens,omitempty" json:"opens,omitempty"`
	SubOptions []string        `yaml:"subOptions,omitempty" json:"subOptions,omitempty"`
}

// UnmarshalYAML accepts both "Label" and {name: Label, subOptions: [...]}.
func (s *Subsection) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Name = node.Value
		return nil
	}
	type plain Subsection
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = Subsection(p)
	return nil
}

// Group is one catalog entry: a transaction category and its scenarios.
type Group struct {
	TransactionType string       `yaml:"transactionType" json:"transactionType"`
	Subsections     []Subsection `yaml:"subsections" json:"subsections"`
}

// Registry is the read-only scenario catalog.
type Registry struct {
	groups   []Group
	byName   map[string]Subsection
	parentOf map[string]string
}

// Default returns the registry built from the embedded catalog. It panics
// on a malformed catalog since that is a build defect.
func Default() *Registry {
	r, err := Parse(catalogYAML)
	if err != nil {
		panic(err)
	}
	return r
}

// Parse builds a registry from catalog YAML.
func Parse(data []byte) (*Registry, error) {
	var groups []Group
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("scenario: parse catalog: %w", err)
	}
	r := &Registry{groups: groups, byName: map[string]Subsection{}, parentOf: map[string]string{}}
	for _, g := range groups {
		for _, s := range g.Subsections {
			if s.Name == "" {
				return nil, fmt.Errorf("scenario: empty subsection name in %q", g.TransactionType)
			}
			if _, dup := r.byName[s.Name]; dup {
				return nil, fmt.Errorf("scenario: duplicate subsection %q", s.Name)
			}
			if s.Opens != "" && !s.Opens.Valid() {
				return nil, fmt.Errorf("scenario: %q opens %w %q", s.Name, ErrUnknownTransactionType, s.Opens)
			}
			r.byName[s.Name] = s
			for _, opt := range s.SubOptions {
				if prev, dup := r.parentOf[opt]; dup {
					return nil, fmt.Errorf("scenario: sub-option %q under both %q and %q", opt, prev, s.Name)
				}
				r.parentOf[opt] = s.Name
			}
		}
	}
	return r, nil
}

// Catalog returns the catalog groups in file order.
func (r *Registry) Catalog() []Group {
	out := make([]Group, len(r.groups))
	copy(out, r.groups)
	return out
}

// Lookup finds a subsection by name.
func (r *Registry) Lookup(name string) (Subsection, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// ParentOf returns the subsection owning a sub-option.
func (r *Registry) ParentOf(option string) (string, bool) {
	p, ok := r.parentOf[option]
	return p, ok
}

// Opens resolves the transaction type a subsection selects.
func (r *Registry) Opens(name string) (TransactionType, error) {
	s, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	if s.Opens == "" {
		return "", fmt.Errorf("scenario: %q does not open a transaction", name)
	}
	return s.Opens, nil
}
