package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	state    State
	deadline time.Time
}

// MemoryStore keeps sessions in process memory. Entries past their TTL are
// dropped lazily on access and by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, id string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return State{}, ErrNotFound
	}
	if m.now().After(e.deadline) {
		delete(m.entries, id)
		return State{}, ErrNotFound
	}
	return e.state, nil
}

func (m *MemoryStore) Save(_ context.Context, state State, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[state.ID] = memoryEntry{state: state, deadline: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// Sweep removes expired entries and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, e := range m.entries {
		if now.After(e.deadline) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
