// Package formdoc defines the Form Document exchanged between the form
// state store, the orchestrator and the backend: a string-keyed map whose
// top-level keys are section names.
package formdoc

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// IDKey holds the persisted record id once a document has been saved.
const IDKey = "_id"

// Document is a nested, string-keyed form document. Values are JSON-shaped:
// maps, slices, strings, float64 numbers, bools and nil.
type Document map[string]any

// ID returns the persisted record id, or "" for an unsaved document.
func (d Document) ID() string {
	switch v := d[IDKey].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

// SetID records the id returned by the backend.
func (d Document) SetID(id string) {
	d[IDKey] = id
}

// Clone returns a deep copy, so callers can hand out snapshots without
// sharing nested maps.
func (d Document) Clone() Document {
	if d == nil {
		return Document{}
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

// JSON encodes the document. Documents only hold JSON-shaped values, so a
// failure here means a caller stored something else.
func (d Document) JSON() []byte {
	b, err := json.Marshal(map[string]any(d))
	if err != nil {
		return []byte("{}")
	}
	return b
}

// Get resolves a gjson path such as "owners.0.firstName".
func (d Document) Get(path string) gjson.Result {
	return gjson.GetBytes(d.JSON(), path)
}

// Bool reads a flag. Missing values and the strings "true"/"yes" follow
// gjson's truthiness rules.
func (d Document) Bool(path string) bool {
	return d.Get(path).Bool()
}

// String reads a trimmed-as-stored string value, "" when missing.
func (d Document) String(path string) string {
	r := d.Get(path)
	if !r.Exists() || r.Type == gjson.Null {
		return ""
	}
	return r.String()
}

// Len returns the length of an array at path, 0 when missing.
func (d Document) Len(path string) int {
	r := d.Get(path)
	if !r.IsArray() {
		return 0
	}
	return len(r.Array())
}

// Section returns the top-level value stored under key as a map, or nil.
func (d Document) Section(key string) map[string]any {
	m, _ := d[key].(map[string]any)
	return m
}

// Normalize converts an arbitrary Go value (typed section records included)
// into its JSON-shaped equivalent.
func Normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("formdoc: normalize: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("formdoc: normalize: %w", err)
	}
	return out, nil
}

// Parse decodes a JSON object into a Document.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("formdoc: parse: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Document:
		return cloneValue(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
