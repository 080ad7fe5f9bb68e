package cart

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Store owns the cart state. The UI layer never touches the state directly,
// only through these operations. Every mutation recomputes the derived
// totals and writes the snapshot through to the SnapshotStore before
// returning; the in-memory update is applied even when the write fails, so
// a persistence outage degrades durability, not the session.
//
// A Store is constructed explicitly and injected where needed; there is no
// package-level instance.
type Store struct {
	mu         sync.RWMutex
	items      []Item
	total      int64
	totalItems int

	// cartOpen is transient UI state and is never persisted.
	cartOpen bool

	snapshots SnapshotStore
	log       logrus.FieldLogger
}

// NewStore returns an empty cart backed by the given snapshot store.
func NewStore(snapshots SnapshotStore, log logrus.FieldLogger) *Store {
	return &Store{
		snapshots: snapshots,
		log:       log,
	}
}

// Load hydrates the cart from the snapshot store. A missing snapshot leaves
// the cart empty; that is the first-visit case, not an error.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.snapshots.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return nil
		}
		return errors.Wrap(err, "loading cart snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = snap.Items
	s.total, s.totalItems = computeTotals(snap.Items)
	return nil
}

// Flush writes the current snapshot out. Called on shutdown; every mutation
// already writes through, so this only matters if a mid-session save failed.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	snap := s.snapshotLocked()
	s.mu.RUnlock()
	return s.snapshots.Save(ctx, snap)
}

// AddItem merges the incoming item into the cart: an existing line with the
// same id has its quantity incremented, otherwise the item is appended.
func (s *Store) AddItem(ctx context.Context, item Item) error {
	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].ID == item.ID {
			s.items[i].Quantity += item.Quantity
			found = true
			break
		}
	}
	if !found {
		s.items = append(s.items, item)
	}
	s.total, s.totalItems = computeTotals(s.items)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"id": item.ID, "quantity": item.Quantity}).Debug("cart: item added")
	return s.persist(ctx, snap)
}

// SetQuantity sets the line's quantity verbatim. It does not clamp and it
// retains a zero-quantity line; callers that want zero to mean "remove"
// use SetQuantityOrRemove. Unknown ids are a no-op.
func (s *Store) SetQuantity(ctx context.Context, id string, quantity int) error {
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Quantity = quantity
			break
		}
	}
	s.total, s.totalItems = computeTotals(s.items)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	return s.persist(ctx, snap)
}

// SetQuantityOrRemove behaves like SetQuantity but drops the line when the
// quantity reaches zero or below. This is the cart-page behavior.
func (s *Store) SetQuantityOrRemove(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, id)
	}
	return s.SetQuantity(ctx, id, quantity)
}

// RemoveItem deletes the line with the given id. Removing an absent id is a
// no-op.
func (s *Store) RemoveItem(ctx context.Context, id string) error {
	s.mu.Lock()
	kept := s.items[:0]
	for _, it := range s.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	s.items = kept
	s.total, s.totalItems = computeTotals(s.items)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	return s.persist(ctx, snap)
}

// Clear empties the cart, zeroes the totals and deletes the persisted
// snapshot, so the next load is indistinguishable from a first visit.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.items = nil
	s.total = 0
	s.totalItems = 0
	s.mu.Unlock()

	s.log.Debug("cart: cleared")
	if err := s.snapshots.Clear(ctx); err != nil {
		s.log.WithError(err).Warn("cart: snapshot clear failed")
		return errors.Wrap(err, "clearing cart snapshot")
	}
	return nil
}

// Replace overwrites the cart wholesale with the given lines and total.
// Used after a sync: the server-computed order is authoritative, so local
// state is replaced, not merged. The server total is taken as-is rather
// than recomputed, since server-side pricing may include adjustments the
// line items alone cannot reproduce.
func (s *Store) Replace(ctx context.Context, items []Item, total int64) error {
	s.mu.Lock()
	s.items = items
	s.total = total
	_, s.totalItems = computeTotals(items)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	return s.persist(ctx, snap)
}

// SetCartOpen toggles the cart panel flag. Pure UI state, nothing persisted.
func (s *Store) SetCartOpen(open bool) {
	s.mu.Lock()
	s.cartOpen = open
	s.mu.Unlock()
}

// CartOpen reports whether the cart panel is open.
func (s *Store) CartOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cartOpen
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Total returns the derived cart total in minor units.
func (s *Store) Total() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// TotalItems returns the derived sum of line quantities.
func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalItems
}

// Snapshot returns the persistable view of the cart.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	items := make([]Item, len(s.items))
	copy(items, s.items)
	return Snapshot{Items: items, Total: s.total, TotalItems: s.totalItems}
}

func (s *Store) persist(ctx context.Context, snap Snapshot) error {
	if err := s.snapshots.Save(ctx, snap); err != nil {
		s.log.WithError(err).Warn("cart: snapshot write failed")
		return errors.Wrap(err, "saving cart snapshot")
	}
	return nil
}
