package formstate

import (
	"fmt"

	"github.com/formmatic/formmatic/internal/formdoc"
)

// SyncedVehicleFields are kept identical across every transfer.
var SyncedVehicleFields = []string{"hullId", "make", "year"}

const vehicleKey = "vehicleInformation"

type multipleTransfer struct {
	IsMultipleTransfer bool               `json:"isMultipleTransfer"`
	Count              int                `json:"transferCount"`
	Transfers          []formdoc.Document `json:"transfersData"`
}

// SetMultipleTransfer switches the store to count transfers. Existing
// transfers are kept; new ones start with the synced vehicle fields of the
// first. A count below one turns multiple transfer off.
func (s *Store) SetMultipleTransfer(count int) {
	s.mu.Lock()
	if count < 1 {
		s.multi = nil
		s.mu.Unlock()
		s.notify(AnyKey, nil)
		return
	}
	if s.multi == nil {
		s.multi = &multipleTransfer{IsMultipleTransfer: true}
	}
	for len(s.multi.Transfers) < count {
		next := formdoc.Document{}
		if len(s.multi.Transfers) > 0 {
			if v := syncedVehicle(s.multi.Transfers[0]); len(v) > 0 {
				next[vehicleKey] = v
			}
		}
		s.multi.Transfers = append(s.multi.Transfers, next)
	}
	s.multi.Transfers = s.multi.Transfers[:count]
	s.multi.Count = count
	s.mu.Unlock()
	s.notify(AnyKey, nil)
}

// IsMultipleTransfer reports whether the store holds per-transfer documents.
func (s *Store) IsMultipleTransfer() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.multi != nil
}

// TransferCount returns the number of transfers, 0 when not multiple.
func (s *Store) TransferCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.multi == nil {
		return 0
	}
	return s.multi.Count
}

// Transfers returns deep copies of the transfer documents.
func (s *Store) Transfers() []formdoc.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.multi == nil {
		return nil
	}
	out := make([]formdoc.Document, len(s.multi.Transfers))
	for i, d := range s.multi.Transfers {
		out[i] = d.Clone()
	}
	return out
}

// UpdateTransferField writes one section of transfer i. Writing vehicle
// information propagates the synced fields to every other transfer.
func (s *Store) UpdateTransferField(i int, key string, value any) error {
	decoded, err := decodeField(key, value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if err := s.checkIndexLocked(i); err != nil {
		s.mu.Unlock()
		return err
	}
	doc := s.multi.Transfers[i]
	if decoded == nil {
		delete(doc, key)
	} else {
		doc[key] = decoded
	}
	if key == vehicleKey {
		src := syncedVehicle(doc)
		for _, field := range SyncedVehicleFields {
			s.syncLocked(field, src[field])
		}
	}
	s.mu.Unlock()
	s.notify(key, decoded)
	return nil
}

// SyncVehicleField sets one of the synced vehicle fields on every transfer.
func (s *Store) SyncVehicleField(field, value string) error {
	if !isSynced(field) {
		return fmt.Errorf("formstate: %q is not a synced vehicle field", field)
	}
	s.mu.Lock()
	if s.multi == nil {
		s.mu.Unlock()
		return ErrNotMultiple
	}
	s.syncLocked(field, value)
	s.mu.Unlock()
	s.notify(vehicleKey, nil)
	return nil
}

func (s *Store) syncLocked(field string, value any) {
	for _, doc := range s.multi.Transfers {
		v, _ := doc[vehicleKey].(map[string]any)
		if v == nil {
			v = map[string]any{}
			doc[vehicleKey] = v
		}
		if value == nil || value == "" {
			delete(v, field)
		} else {
			v[field] = value
		}
	}
}

// TransferIDs returns the saved id of each transfer, "" where unsaved.
func (s *Store) TransferIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.multi == nil {
		return nil
	}
	ids := make([]string, len(s.multi.Transfers))
	for i, d := range s.multi.Transfers {
		ids[i] = d.ID()
	}
	return ids
}

// SetTransferID records the backend id of transfer i.
func (s *Store) SetTransferID(i int, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndexLocked(i); err != nil {
		return err
	}
	s.multi.Transfers[i].SetID(id)
	return nil
}

func (s *Store) checkIndexLocked(i int) error {
	if s.multi == nil {
		return ErrNotMultiple
	}
	if i < 0 || i >= len(s.multi.Transfers) {
		return fmt.Errorf("%w: %d of %d", ErrTransferIndex, i, len(s.multi.Transfers))
	}
	return nil
}

func syncedVehicle(doc formdoc.Document) map[string]any {
	v, _ := doc[vehicleKey].(map[string]any)
	out := map[string]any{}
	for _, field := range SyncedVehicleFields {
		if val, ok := v[field]; ok && val != "" {
			out[field] = val
		}
	}
	return out
}

func isSynced(field string) bool {
	for _, f := range SyncedVehicleFields {
		if f == field {
			return true
		}
	}
	return false
}
