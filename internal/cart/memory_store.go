package cart

import (
	"context"
	"sync"
)

// MemorySnapshotStore is an in-memory SnapshotStore for development and
// tests. Nothing survives a restart.
type MemorySnapshotStore struct {
	mu    sync.RWMutex
	snap  Snapshot
	saved bool
}

// NewMemorySnapshotStore constructor
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

// Initialize does nothing in this implementation.
func (m *MemorySnapshotStore) Initialize(ctx context.Context) error {
	return nil
}

// Load returns the last saved snapshot, or ErrNoSnapshot if Save was never
// called.
func (m *MemorySnapshotStore) Load(ctx context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.saved {
		return Snapshot{}, ErrNoSnapshot
	}
	return m.snap, nil
}

// Save keeps the snapshot in memory.
func (m *MemorySnapshotStore) Save(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	m.saved = true
	return nil
}

// Clear forgets the stored snapshot.
func (m *MemorySnapshotStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = Snapshot{}
	m.saved = false
	return nil
}

// Ping is a health check that always returns true.
func (m *MemorySnapshotStore) Ping(ctx context.Context) bool {
	return true
}
