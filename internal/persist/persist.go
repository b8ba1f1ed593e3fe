// Package persist is the single persistence adapter behind the form state
// store and the scenario selection. It stands in for the ad hoc browser
// local-storage keys of a web client: one interface, one key space.
package persist

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get for a key that was never set or was deleted.
var ErrNotFound = errors.New("persist: key not found")

// Persister stores opaque values by key.
type Persister interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// Keys shared by the store and the scenario selection.
const (
	KeyFormData           = "formmatic_form_data"
	KeyMultipleTransfer   = "formmatic_multiple_transfer"
	KeyActiveScenarios    = "formmatic_active_scenarios"
	KeyActiveSubOptions   = "formmatic_active_sub_options"
	KeySelectedSubsection = "formmatic_selected_subsection"
	KeyTransactionType    = "formmatic_transaction_type"
)

type namespaced struct {
	inner  Persister
	prefix string
}

// Namespaced scopes every key under ns, so one backend can hold the drafts
// of many users.
func Namespaced(p Persister, ns string) Persister {
	if ns == "" {
		return p
	}
	return &namespaced{inner: p, prefix: ns + ":"}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, keys ...string) error {
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = n.prefix + k
	}
	return n.inner.Delete(ctx, scoped...)
}

// sanitizeKey makes a key safe as a file name.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			return r
		}
		return '_'
	}, key)
}
