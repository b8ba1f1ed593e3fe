// Package sections describes the form sections a transaction is built from:
// which document key each one owns, the record shape stored there, and the
// field checks run before a save.
package sections

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/formmatic/formmatic/internal/formdoc"
)

var (
	// ErrUnknownSection is returned for a document key no section owns.
	ErrUnknownSection = errors.New("unknown form section")
	// ErrSchemaMismatch is returned when a value does not fit its section record.
	ErrSchemaMismatch = errors.New("value does not match section schema")
)

// FieldError is one failed field check.
type FieldError struct {
	Section string `json:"section"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Section, e.Field, e.Message)
}

// rule checks one field. Required fields fail when empty; check runs only
// on non-empty values. A rule is skipped when the document flag at unless
// is set, or when the sibling field named by unlessSet has a value.
type rule struct {
	field     string
	label     string
	required  bool
	check     func(string) error
	unless    string
	unlessSet string
}

func required(field, label string) rule {
	return rule{field: field, label: label, required: true}
}

func requiredWith(field, label string, check func(string) error) rule {
	return rule{field: field, label: label, required: true, check: check}
}

func optional(field, label string, check func(string) error) rule {
	return rule{field: field, label: label, check: check}
}

// skippedWhen skips the rule when the absolute document flag path is true.
func (r rule) skippedWhen(path string) rule {
	r.unless = path
	return r
}

// skippedWhenSet skips the rule when a sibling field is filled in.
func (r rule) skippedWhenSet(field string) rule {
	r.unlessSet = field
	return r
}

// Section is a named slice of the form document.
type Section struct {
	// Name identifies the section in transaction compositions.
	Name string
	// Key is the top-level document key the section owns.
	Key string
	// Multi marks sections stored as an array of records.
	Multi bool
	// MinItems applies to Multi sections.
	MinItems int
	// Persisted sections survive a reload in the draft store.
	Persisted bool

	record func() any
	rules  []rule
	// extra runs after the field rules for cross-field checks.
	extra func(doc formdoc.Document) []FieldError
}

// Decode checks value against the section record, rejecting unknown keys
// and mistyped fields, and returns it in JSON shape.
func (s *Section) Decode(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, s.Key, err)
	}
	target := s.record()
	if s.Multi {
		target = &[]json.RawMessage{}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, s.Key, err)
	}
	if s.Multi {
		for i, item := range *target.(*[]json.RawMessage) {
			dec := json.NewDecoder(bytes.NewReader(item))
			dec.DisallowUnknownFields()
			if err := dec.Decode(s.record()); err != nil {
				return nil, fmt.Errorf("%w: %s[%d]: %v", ErrSchemaMismatch, s.Key, i, err)
			}
		}
	}
	return formdoc.Normalize(value)
}

// Validate runs the section's field checks against doc.
func (s *Section) Validate(doc formdoc.Document) []FieldError {
	var errs []FieldError
	if s.Multi {
		n := doc.Len(s.Key)
		if n < s.MinItems {
			errs = append(errs, FieldError{Section: s.Name, Field: s.Key, Message: fmt.Sprintf("needs at least %d entries", s.MinItems)})
		}
		for i := 0; i < n; i++ {
			errs = append(errs, s.applyRules(doc, s.Key+"."+strconv.Itoa(i))...)
		}
	} else {
		errs = append(errs, s.applyRules(doc, s.Key)...)
	}
	if s.extra != nil {
		errs = append(errs, s.extra(doc)...)
	}
	return errs
}

func (s *Section) applyRules(doc formdoc.Document, prefix string) []FieldError {
	var errs []FieldError
	for _, r := range s.rules {
		errs = append(errs, s.applyRuleAt(doc, prefix, r)...)
	}
	return errs
}

func (s *Section) applyRuleAt(doc formdoc.Document, prefix string, r rule) []FieldError {
	if r.unless != "" && doc.Bool(r.unless) {
		return nil
	}
	if r.unlessSet != "" && doc.String(prefix+"."+r.unlessSet) != "" {
		return nil
	}
	path := prefix + "." + r.field
	v := doc.String(path)
	if v == "" {
		if r.required {
			return []FieldError{{Section: s.Name, Field: path, Message: r.label + " is required"}}
		}
		return nil
	}
	if r.check != nil {
		if err := r.check(v); err != nil {
			return []FieldError{{Section: s.Name, Field: path, Message: r.label + ": " + err.Error()}}
		}
	}
	return nil
}

var (
	byName = map[string]*Section{}
	byKey  = map[string]*Section{}
	order  []*Section
)

func register(s *Section) {
	if _, dup := byName[s.Name]; dup {
		panic("sections: duplicate section " + s.Name)
	}
	if _, dup := byKey[s.Key]; dup {
		panic("sections: duplicate key " + s.Key)
	}
	byName[s.Name] = s
	byKey[s.Key] = s
	order = append(order, s)
}

// ByName returns the section with the given composition name.
func ByName(name string) (*Section, bool) {
	s, ok := byName[name]
	return s, ok
}

// ByKey returns the section owning a document key.
func ByKey(key string) (*Section, bool) {
	s, ok := byKey[key]
	return s, ok
}

// All returns every section in registration order.
func All() []*Section {
	out := make([]*Section, len(order))
	copy(out, order)
	return out
}

// PersistedKeys lists the document keys kept in the draft store.
func PersistedKeys() []string {
	var keys []string
	for _, s := range order {
		if s.Persisted {
			keys = append(keys, s.Key)
		}
	}
	return keys
}

// DecodeField validates value for a top-level document key.
func DecodeField(key string, value any) (any, error) {
	s, ok := byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, key)
	}
	return s.Decode(value)
}
