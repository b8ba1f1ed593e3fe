package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/formmatic/formmatic/internal/persist"
)

// ErrParentInactive is returned when a sub-option is switched on while its
// parent scenario is off.
var ErrParentInactive = errors.New("parent scenario is not active")

// Selection is the user's scenario state: the transaction being worked on
// plus the toggled scenario and sub-option flags. Safe for concurrent use.
type Selection struct {
	registry *Registry

	mu                 sync.RWMutex
	transactionType    TransactionType
	selectedSubsection string
	activeScenarios    map[string]bool
	activeSubOptions   map[string]bool
}

// NewSelection returns an empty selection over registry.
func NewSelection(registry *Registry) *Selection {
	return &Selection{
		registry:         registry,
		activeScenarios:  map[string]bool{},
		activeSubOptions: map[string]bool{},
	}
}

// Open selects the subsection that drives the mounted sections. At most one
// transaction type is active; opening another replaces it.
func (s *Selection) Open(subsection string) (TransactionType, error) {
	t, err := s.registry.Opens(subsection)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedSubsection != "" && s.selectedSubsection != subsection {
		s.deactivateLocked(s.selectedSubsection)
	}
	s.transactionType = t
	s.selectedSubsection = subsection
	s.activeScenarios[subsection] = true
	return t, nil
}

// SetTransactionType selects a type directly, e.g. when a saved record is
// opened for editing.
func (s *Selection) SetTransactionType(t TransactionType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTransactionType, t)
	}
	s.mu.Lock()
	s.transactionType = t
	s.mu.Unlock()
	return nil
}

// TransactionType returns the active transaction type, "" if none.
func (s *Selection) TransactionType() TransactionType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactionType
}

// SelectedSubsection returns the subsection last opened.
func (s *Selection) SelectedSubsection() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedSubsection
}

// ToggleScenario sets a scenario flag. Turning a scenario off drops its
// sub-options.
func (s *Selection) ToggleScenario(name string, on bool) error {
	if _, ok := s.registry.Lookup(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.activeScenarios[name] = true
		return nil
	}
	s.deactivateLocked(name)
	return nil
}

func (s *Selection) deactivateLocked(name string) {
	delete(s.activeScenarios, name)
	if sub, ok := s.registry.Lookup(name); ok {
		for _, opt := range sub.SubOptions {
			delete(s.activeSubOptions, opt)
		}
	}
}

// SetSubOption sets a sub-option flag. Its parent must be active.
func (s *Selection) SetSubOption(option string, on bool) error {
	parent, ok := s.registry.ParentOf(option)
	if !ok {
		return fmt.Errorf("%w: sub-option %q", ErrUnknownScenario, option)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !on {
		delete(s.activeSubOptions, option)
		return nil
	}
	if !s.activeScenarios[parent] {
		return fmt.Errorf("%w: %q needs %q", ErrParentInactive, option, parent)
	}
	s.activeSubOptions[option] = true
	return nil
}

// ScenarioActive reports a scenario flag.
func (s *Selection) ScenarioActive(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeScenarios[name]
}

// SubOptionActive reports a sub-option flag; always false while the parent
// is inactive.
func (s *Selection) SubOptionActive(option string) bool {
	parent, ok := s.registry.ParentOf(option)
	if !ok {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeScenarios[parent] && s.activeSubOptions[option]
}

// ActiveScenarios returns a copy of the scenario flags.
func (s *Selection) ActiveScenarios() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyFlags(s.activeScenarios)
}

// ActiveSubOptions returns a copy of the sub-option flags.
func (s *Selection) ActiveSubOptions() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyFlags(s.activeSubOptions)
}

// ActiveNames lists active scenarios, sorted.
func (s *Selection) ActiveNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.activeScenarios))
	for n, on := range s.activeScenarios {
		if on {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Reset clears every flag and the selected transaction.
func (s *Selection) Reset() {
	s.mu.Lock()
	s.transactionType = ""
	s.selectedSubsection = ""
	s.activeScenarios = map[string]bool{}
	s.activeSubOptions = map[string]bool{}
	s.mu.Unlock()
}

// Persist writes the selection through p.
func (s *Selection) Persist(ctx context.Context, p persist.Persister) error {
	s.mu.RLock()
	scenarios, _ := json.Marshal(s.activeScenarios)
	subOptions, _ := json.Marshal(s.activeSubOptions)
	selected, _ := json.Marshal(s.selectedSubsection)
	txType, _ := json.Marshal(s.transactionType)
	s.mu.RUnlock()

	for key, value := range map[string][]byte{
		persist.KeyActiveScenarios:    scenarios,
		persist.KeyActiveSubOptions:   subOptions,
		persist.KeySelectedSubsection: selected,
		persist.KeyTransactionType:    txType,
	} {
		if err := p.Set(ctx, key, value); err != nil {
			return fmt.Errorf("scenario: persist %s: %w", key, err)
		}
	}
	return nil
}

// Restore reloads a persisted selection. Missing keys leave the current
// state as is; unknown names and orphaned sub-options are dropped.
func (s *Selection) Restore(ctx context.Context, p persist.Persister) error {
	var (
		scenarios  map[string]bool
		subOptions map[string]bool
		selected   string
		txType     TransactionType
	)
	targets := map[string]any{
		persist.KeyActiveScenarios:    &scenarios,
		persist.KeyActiveSubOptions:   &subOptions,
		persist.KeySelectedSubsection: &selected,
		persist.KeyTransactionType:    &txType,
	}
	for key, target := range targets {
		raw, err := p.Get(ctx, key)
		if errors.Is(err, persist.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("scenario: restore %s: %w", key, err)
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return fmt.Errorf("scenario: restore %s: %w", key, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if scenarios != nil {
		s.activeScenarios = map[string]bool{}
		for name, on := range scenarios {
			if _, ok := s.registry.Lookup(name); ok && on {
				s.activeScenarios[name] = true
			}
		}
	}
	if subOptions != nil {
		s.activeSubOptions = map[string]bool{}
		for opt, on := range subOptions {
			parent, ok := s.registry.ParentOf(opt)
			if ok && on && s.activeScenarios[parent] {
				s.activeSubOptions[opt] = true
			}
		}
	}
	if selected != "" {
		s.selectedSubsection = selected
	}
	if txType.Valid() {
		s.transactionType = txType
	}
	return nil
}

// ClearPersisted resets the selection and removes its persisted keys.
func (s *Selection) ClearPersisted(ctx context.Context, p persist.Persister) error {
	s.Reset()
	if err := p.Delete(ctx,
		persist.KeyActiveScenarios,
		persist.KeyActiveSubOptions,
		persist.KeySelectedSubsection,
		persist.KeyTransactionType,
	); err != nil {
		return fmt.Errorf("scenario: clear: %w", err)
	}
	return nil
}

func copyFlags(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
