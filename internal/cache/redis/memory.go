package redis

import (
	"strings"
	"sync"
	"time"
)

// pruneThreshold triggers an expired-entry sweep when the fallback map
// grows past this many entries.
const pruneThreshold = 10_000

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

// memoryStore is the in-process fallback used by KV while Redis is
// unreachable. Entries carry the same envelope bytes Redis would hold,
// so reads behave identically regardless of which store served them.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]memoryEntry)}
}

func (m *memoryStore) set(key string, raw []byte, retention time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= pruneThreshold {
		m.pruneLocked()
	}
	m.entries[key] = memoryEntry{raw: raw, expiresAt: time.Now().Add(retention)}
}

func (m *memoryStore) get(key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.raw, true
}

func (m *memoryStore) delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *memoryStore) deletePrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

func (m *memoryStore) pruneLocked() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}
