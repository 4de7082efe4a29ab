package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryStore implements Store in process memory. Expired entries are
// dropped lazily on access and whenever the store grows past maxEntries.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

// NewMemoryStore returns an in-memory Store holding at most maxEntries values.
// A non-positive maxEntries means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, maxEntries: maxEntries, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = m.now().Add(ttl)
	}
	if _, exists := m.entries[key]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictLocked()
	}
	m.entries[key] = memoryEntry{value: append([]byte(nil), value...), expires: expires}
	return nil
}

// evictLocked removes expired entries, or the entry closest to expiry when
// nothing has expired yet.
func (m *MemoryStore) evictLocked() {
	now := m.now()
	var victim string
	var victimExp time.Time
	for k, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, k)
			continue
		}
		if victim == "" || (!e.expires.IsZero() && (victimExp.IsZero() || e.expires.Before(victimExp))) {
			victim, victimExp = k, e.expires
		}
	}
	if m.maxEntries > 0 && len(m.entries) >= m.maxEntries && victim != "" {
		delete(m.entries, victim)
	}
}

// Len reports the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
