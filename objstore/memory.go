package objstore

import (
	"context"
	"sync"

	"github.com/hupe1980/filesaga/fault"
	"github.com/hupe1980/filesaga/userpath"
)

// MemoryStore is an in-memory object store for testing and local runs.
// Thread-safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]struct{}
	creates int

	// CheckErr and CreateErr, if set, fail the matching operation.
	// Set them before the store is shared.
	CheckErr  error
	CreateErr error
}

// NewMemoryStore creates an empty in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]struct{}),
	}
}

// CheckPresence reports whether the object of p exists.
func (m *MemoryStore) CheckPresence(_ context.Context, p userpath.Path) (bool, error) {
	if m.CheckErr != nil {
		return false, fault.Server("checking file failed", m.CheckErr)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[p.Normalized()]
	return ok, nil
}

// Create stores an empty object for p.
func (m *MemoryStore) Create(_ context.Context, p userpath.Path) error {
	if m.CreateErr != nil {
		return fault.Server("creating file failed", m.CreateErr)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[p.Normalized()] = struct{}{}
	m.creates++
	return nil
}

// Seed marks the object with the given normalized key as present.
func (m *MemoryStore) Seed(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = struct{}{}
}

// Has reports whether an object exists for the normalized key.
func (m *MemoryStore) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[key]
	return ok
}

// Creates returns the number of successful Create calls.
func (m *MemoryStore) Creates() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.creates
}
