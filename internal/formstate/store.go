// Package formstate is the single source of truth for the form document a
// user is editing. Section values are checked against their typed records
// on write, and the whole store persists through one persist.Persister.
package formstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/formmatic/formmatic/internal/formdoc"
	"github.com/formmatic/formmatic/internal/persist"
	"github.com/formmatic/formmatic/internal/sections"
)

// AnyKey subscribes to every change.
const AnyKey = "*"

var (
	ErrSchemaMismatch = sections.ErrSchemaMismatch
	ErrNotMultiple    = errors.New("formstate: not a multiple transfer")
	ErrTransferIndex  = errors.New("formstate: transfer index out of range")
)

// Listener receives the new value of a key, or nil after a delete or clear.
type Listener func(key string, value any)

type subscription struct {
	id  uint64
	key string
	fn  Listener
}

// Store holds the form document and the multiple-transfer aggregate.
type Store struct {
	persister persist.Persister
	log       *zap.Logger

	mu         sync.RWMutex
	doc        formdoc.Document
	showErrors bool
	multi      *multipleTransfer
	fullDraft  bool

	subMu  sync.Mutex
	subs   []subscription
	nextID uint64
}

// Option configures a Store.
type Option func(*Store)

// WithFullDraft makes Persist write the whole document instead of the
// persisted sections only. Stores rebuilt from the draft before every save
// must use it.
func WithFullDraft() Option {
	return func(s *Store) { s.fullDraft = true }
}

// New returns an empty store. p may be nil for a store that never persists.
func New(p persist.Persister, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{persister: p, log: log, doc: formdoc.Document{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateField replaces the value stored at a top-level key. Nested objects
// are not merged. A nil value removes the key. Keys no section owns are
// stored as is, as Load keeps them.
func (s *Store) UpdateField(key string, value any) error {
	if key == formdoc.IDKey {
		id, ok := value.(string)
		if !ok && value != nil {
			return fmt.Errorf("%w: %s must be a string", ErrSchemaMismatch, key)
		}
		s.SetID(id)
		return nil
	}
	decoded, err := decodeField(key, value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if decoded == nil {
		delete(s.doc, key)
	} else {
		s.doc[key] = decoded
	}
	s.mu.Unlock()
	s.notify(key, decoded)
	return nil
}

// FormData returns a deep copy of the current document.
func (s *Store) FormData() formdoc.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// ID returns the saved record id, "" before the first save.
func (s *Store) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.ID()
}

// SetID writes the id returned by the backend. An empty id forgets it.
func (s *Store) SetID(id string) {
	s.mu.Lock()
	if id == "" {
		delete(s.doc, formdoc.IDKey)
	} else {
		s.doc.SetID(id)
	}
	s.mu.Unlock()
	var v any
	if id != "" {
		v = id
	}
	s.notify(formdoc.IDKey, v)
}

// Load replaces the document, e.g. with a saved record opened for editing.
// Known sections must decode; keys no section owns are kept as is.
func (s *Store) Load(doc formdoc.Document) error {
	next := formdoc.Document{}
	for key, value := range doc {
		if key == formdoc.IDKey {
			next[key] = value
			continue
		}
		if _, ok := sections.ByKey(key); !ok {
			s.log.Debug("keeping unmanaged key", zap.String("key", key))
			next[key] = value
			continue
		}
		decoded, err := sections.DecodeField(key, value)
		if err != nil {
			return err
		}
		if decoded != nil {
			next[key] = decoded
		}
	}
	next = next.Clone()
	s.mu.Lock()
	s.doc = next
	s.mu.Unlock()
	s.notify(AnyKey, nil)
	return nil
}

// SetShowValidationErrors sets the flag sections consult before reporting
// inline errors.
func (s *Store) SetShowValidationErrors(show bool) {
	s.mu.Lock()
	s.showErrors = show
	s.mu.Unlock()
}

func (s *Store) ShowValidationErrors() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.showErrors
}

// Subscribe registers fn for changes to key (or AnyKey). The returned func
// cancels the subscription.
func (s *Store) Subscribe(key string, fn Listener) (cancel func()) {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, key: key, fn: fn})
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(key string, value any) {
	s.subMu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()
	for _, sub := range subs {
		if sub.key == AnyKey || sub.key == key || key == AnyKey {
			sub.fn(key, cloneAny(value))
		}
	}
}

// ClearAllFormData resets the document and the multiple-transfer aggregate
// and removes every persisted key.
func (s *Store) ClearAllFormData(ctx context.Context) error {
	s.mu.Lock()
	s.doc = formdoc.Document{}
	s.multi = nil
	s.showErrors = false
	s.mu.Unlock()
	s.notify(AnyKey, nil)

	if s.persister == nil {
		return nil
	}
	if err := s.persister.Delete(ctx, persist.KeyFormData, persist.KeyMultipleTransfer); err != nil {
		return fmt.Errorf("formstate: clear persisted: %w", err)
	}
	return nil
}

// Persist writes the persisted sections (every key with WithFullDraft), the
// record id and the multiple-transfer aggregate.
func (s *Store) Persist(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	s.mu.RLock()
	draft := s.doc
	if !s.fullDraft {
		draft = formdoc.Document{}
		for _, key := range append(sections.PersistedKeys(), formdoc.IDKey) {
			if v, ok := s.doc[key]; ok {
				draft[key] = v
			}
		}
	}
	docJSON := draft.JSON()
	var multiJSON []byte
	if s.multi != nil {
		multiJSON, _ = json.Marshal(s.multi)
	}
	s.mu.RUnlock()

	if err := s.persister.Set(ctx, persist.KeyFormData, docJSON); err != nil {
		return fmt.Errorf("formstate: persist form data: %w", err)
	}
	if multiJSON == nil {
		if err := s.persister.Delete(ctx, persist.KeyMultipleTransfer); err != nil {
			return fmt.Errorf("formstate: persist transfers: %w", err)
		}
		return nil
	}
	if err := s.persister.Set(ctx, persist.KeyMultipleTransfer, multiJSON); err != nil {
		return fmt.Errorf("formstate: persist transfers: %w", err)
	}
	return nil
}

// Hydrate restores a persisted draft on top of the current document. A
// missing draft is not an error.
func (s *Store) Hydrate(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	raw, err := s.persister.Get(ctx, persist.KeyFormData)
	switch {
	case errors.Is(err, persist.ErrNotFound):
	case err != nil:
		return fmt.Errorf("formstate: hydrate: %w", err)
	default:
		draft, err := formdoc.Parse(raw)
		if err != nil {
			return fmt.Errorf("formstate: hydrate: %w", err)
		}
		merged := s.FormData()
		for k, v := range draft {
			merged[k] = v
		}
		if err := s.Load(merged); err != nil {
			return fmt.Errorf("formstate: hydrate: %w", err)
		}
	}

	raw, err = s.persister.Get(ctx, persist.KeyMultipleTransfer)
	switch {
	case errors.Is(err, persist.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("formstate: hydrate transfers: %w", err)
	}
	var m multipleTransfer
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("formstate: hydrate transfers: %w", err)
	}
	for i := range m.Transfers {
		if m.Transfers[i] == nil {
			m.Transfers[i] = formdoc.Document{}
		}
	}
	m.Count = len(m.Transfers)
	s.mu.Lock()
	s.multi = &m
	s.mu.Unlock()
	return nil
}

// decodeField checks value against the section owning key. Values of
// unmanaged keys only need to be JSON.
func decodeField(key string, value any) (any, error) {
	decoded, err := sections.DecodeField(key, value)
	if !errors.Is(err, sections.ErrUnknownSection) {
		return decoded, err
	}
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, key, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, key, err)
	}
	return v, nil
}

func cloneAny(v any) any {
	if v == nil {
		return nil
	}
	wrapped := formdoc.Document{"v": v}.Clone()
	return wrapped["v"]
}
