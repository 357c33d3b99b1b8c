// Package inventorytest provides an in-memory inventory.Store for tests of
// packages that reconcile stock inside their own transactions.
package inventorytest

import (
	"context"
	"sort"

	"github.com/ledgerline/ledgerline/internal/inventory"
)

// Store keeps items and movements in maps. It is not safe for concurrent use.
type Store struct {
	Items     map[int64]inventory.Item
	Movements []inventory.Movement
	nextID    int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{Items: map[int64]inventory.Item{}}
}

// Add registers an item and returns its id.
func (s *Store) Add(companyID int64, name string, quantity int64) int64 {
	s.nextID++
	s.Items[s.nextID] = inventory.Item{ID: s.nextID, CompanyID: companyID, Name: name, Quantity: quantity}
	return s.nextID
}

// Quantity returns the on-hand quantity of an item.
func (s *Store) Quantity(id int64) int64 {
	return s.Items[id].Quantity
}

// GetItemForUpdate implements inventory.Store.
func (s *Store) GetItemForUpdate(ctx context.Context, companyID, itemID int64) (inventory.Item, error) {
	item, ok := s.Items[itemID]
	if !ok || item.CompanyID != companyID {
		return inventory.Item{}, inventory.ErrItemNotFound
	}
	return item, nil
}

// SetItemQuantity implements inventory.Store.
func (s *Store) SetItemQuantity(ctx context.Context, itemID, quantity int64) error {
	item, ok := s.Items[itemID]
	if !ok {
		return inventory.ErrItemNotFound
	}
	item.Quantity = quantity
	s.Items[itemID] = item
	return nil
}

// InsertMovement implements inventory.Store.
func (s *Store) InsertMovement(ctx context.Context, movement inventory.Movement) error {
	movement.ID = int64(len(s.Movements) + 1)
	s.Movements = append(s.Movements, movement)
	return nil
}

// Outstanding implements inventory.Store.
func (s *Store) Outstanding(ctx context.Context, ref inventory.Reference, itemID int64) (int64, error) {
	var taken int64
	for _, m := range s.Movements {
		if m.CompanyID != ref.CompanyID || m.RefModule != ref.Module || m.RefID != ref.ID || m.ItemID != itemID {
			continue
		}
		if m.Reason == inventory.ReasonConsume || m.Reason == inventory.ReasonRestore {
			taken -= m.Applied
		}
	}
	return taken, nil
}

// Snapshot captures quantities and ledger length for Restore.
type Snapshot struct {
	quantities map[int64]int64
	movements  int
}

// Snapshot records the current state.
func (s *Store) Snapshot() Snapshot {
	q := make(map[int64]int64, len(s.Items))
	for id, item := range s.Items {
		q[id] = item.Quantity
	}
	return Snapshot{quantities: q, movements: len(s.Movements)}
}

// Restore rolls the store back to snap.
func (s *Store) Restore(snap Snapshot) {
	for id, qty := range snap.quantities {
		item := s.Items[id]
		item.Quantity = qty
		s.Items[id] = item
	}
	s.Movements = s.Movements[:snap.movements]
}

// Quantities lists item quantities ordered by id.
func (s *Store) Quantities() []int64 {
	ids := make([]int64, 0, len(s.Items))
	for id := range s.Items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = s.Items[id].Quantity
	}
	return out
}
