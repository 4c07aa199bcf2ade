package crypto

import (
	"sort"
	"sync"
)

// MemoryKeyStore implements EncryptedKeyStore with in-memory storage.
// Keys are kept in plaintext, so it is suitable for tests and ephemeral
// sessions only.
type MemoryKeyStore struct {
	mu     sync.RWMutex
	keys   map[string]EncryptedKey
	closed bool
}

// NewMemoryKeyStore creates a new in-memory key store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]EncryptedKey)}
}

// Store saves a deep copy of key.
func (m *MemoryKeyStore) Store(name string, key EncryptedKey) error {
	if err := validateKeyName(name); err != nil {
		return err
	}
	if !key.Algorithm.IsValid() {
		return ErrInvalidAlgorithm
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrKeyStoreClosed
	}
	if _, exists := m.keys[name]; exists {
		return ErrKeyStoreExists
	}
	key.Name = name
	m.keys[name] = key.clone()
	return nil
}

// Load returns a copy of the stored key.
func (m *MemoryKeyStore) Load(name string) (EncryptedKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return EncryptedKey{}, ErrKeyStoreClosed
	}
	key, ok := m.keys[name]
	if !ok {
		return EncryptedKey{}, ErrKeyStoreNotFound
	}
	return key.clone(), nil
}

// Delete wipes and removes a key.
func (m *MemoryKeyStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrKeyStoreClosed
	}
	key, ok := m.keys[name]
	if !ok {
		return ErrKeyStoreNotFound
	}
	key.Wipe()
	delete(m.keys, name)
	return nil
}

// List returns key names in sorted order.
func (m *MemoryKeyStore) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrKeyStoreClosed
	}
	names := make([]string, 0, len(m.keys))
	for name := range m.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close wipes every key. Safe to call multiple times.
func (m *MemoryKeyStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for name, key := range m.keys {
		key.Wipe()
		delete(m.keys, name)
	}
	return nil
}

var _ EncryptedKeyStore = (*MemoryKeyStore)(nil)
