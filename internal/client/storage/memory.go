package storage

import (
	"sync"
)

// MemoryStorage keeps values in process memory. Snapshot and Restore let
// tests simulate a page reload.
type MemoryStorage struct {
	mu      sync.RWMutex
	data    map[string][]byte
	failSet error
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStorage) Set(key string, value []byte) error {
	if key == "" {
		return ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// FailWrites makes every subsequent Set return err (nil to stop), mimicking
// a full or disabled browser store.
func (m *MemoryStorage) FailWrites(err error) {
	m.mu.Lock()
	m.failSet = err
	m.mu.Unlock()
}

// Snapshot copies the current contents
func (m *MemoryStorage) Snapshot() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

// Restore replaces the contents with a snapshot
func (m *MemoryStorage) Restore(snapshot map[string][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte, len(snapshot))
	for k, v := range snapshot {
		m.data[k] = append([]byte(nil), v...)
	}
}
