package crypto

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	// keychainKeyPrefix namespaces key items within the service.
	keychainKeyPrefix = "key:"

	// keychainIndexKey holds a JSON array of stored key names. Keychain APIs
	// have no "list all" call.
	keychainIndexKey = "_index"
)

// KeychainStore implements EncryptedKeyStore on the OS keychain
// (macOS Keychain, Windows Credential Store, Linux Secret Service).
// The keychain encrypts at rest, so items hold plaintext key JSON.
type KeychainStore struct {
	service string
	mu      sync.RWMutex
	closed  bool
}

type keychainKeyData struct {
	Name        string `json:"name"`
	Algorithm   string `json:"algorithm"`
	PubKey      []byte `json:"pub_key"`
	PrivKeyData []byte `json:"priv_key_data"`
}

// NewKeychainStore opens the keychain under service. It probes the keychain
// once and returns ErrKeychainUnavailable when no backend answers.
func NewKeychainStore(service string) (*KeychainStore, error) {
	if service == "" {
		return nil, fmt.Errorf("%w: service name cannot be empty", ErrKeyStoreIO)
	}
	if _, err := keyring.Get(service, keychainIndexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrKeychainUnavailable, err)
	}
	return &KeychainStore{service: service}, nil
}

// Store saves a key and adds it to the index. On index failure the item is
// removed again.
func (ks *KeychainStore) Store(name string, key EncryptedKey) error {
	if err := validateKeyName(name); err != nil {
		return err
	}
	if !key.Algorithm.IsValid() {
		return ErrInvalidAlgorithm
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.closed {
		return ErrKeyStoreClosed
	}

	item := keychainKeyPrefix + name
	_, err := keyring.Get(ks.service, item)
	if err == nil {
		return ErrKeyStoreExists
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: failed to check existing key: %v", ErrKeyStoreIO, err)
	}

	data, err := json.Marshal(keychainKeyData{
		Name:        name,
		Algorithm:   string(key.Algorithm),
		PubKey:      key.PubKey,
		PrivKeyData: key.PrivKeyData,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to marshal key data: %v", ErrKeyStoreIO, err)
	}
	if err := keyring.Set(ks.service, item, string(data)); err != nil {
		return fmt.Errorf("%w: failed to store key in keychain: %v", ErrKeyStoreIO, err)
	}

	if err := ks.updateIndex(func(names []string) []string { return append(names, name) }); err != nil {
		_ = keyring.Delete(ks.service, item)
		return err
	}
	return nil
}

// Load retrieves a key from the keychain.
func (ks *KeychainStore) Load(name string) (EncryptedKey, error) {
	if err := validateKeyName(name); err != nil {
		return EncryptedKey{}, err
	}

	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.closed {
		return EncryptedKey{}, ErrKeyStoreClosed
	}

	raw, err := keyring.Get(ks.service, keychainKeyPrefix+name)
	if errors.Is(err, keyring.ErrNotFound) {
		return EncryptedKey{}, ErrKeyStoreNotFound
	}
	if err != nil {
		return EncryptedKey{}, fmt.Errorf("%w: failed to load key from keychain: %v", ErrKeyStoreIO, err)
	}

	var data keychainKeyData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return EncryptedKey{}, fmt.Errorf("%w: failed to parse key data: %v", ErrKeyStoreIO, err)
	}
	alg := Algorithm(data.Algorithm)
	if !alg.IsValid() {
		return EncryptedKey{}, fmt.Errorf("%w: unknown algorithm %q", ErrKeyStoreIO, data.Algorithm)
	}

	return EncryptedKey{
		Name:        data.Name,
		Algorithm:   alg,
		PubKey:      data.PubKey,
		PrivKeyData: data.PrivKeyData,
	}, nil
}

// Delete removes a key and its index entry.
func (ks *KeychainStore) Delete(name string) error {
	if err := validateKeyName(name); err != nil {
		return err
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.closed {
		return ErrKeyStoreClosed
	}

	err := keyring.Delete(ks.service, keychainKeyPrefix+name)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrKeyStoreNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: failed to delete key from keychain: %v", ErrKeyStoreIO, err)
	}

	return ks.updateIndex(func(names []string) []string {
		out := names[:0]
		for _, n := range names {
			if n != name {
				out = append(out, n)
			}
		}
		return out
	})
}

// List returns all key names from the index, sorted.
func (ks *KeychainStore) List() ([]string, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.closed {
		return nil, ErrKeyStoreClosed
	}
	return ks.readIndex()
}

// Close marks the store as closed. Safe to call multiple times.
func (ks *KeychainStore) Close() error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.closed = true
	return nil
}

// readIndex must be called with at least a read lock held.
func (ks *KeychainStore) readIndex() ([]string, error) {
	raw, err := keyring.Get(ks.service, keychainIndexKey)
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && raw == "") {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read key index: %v", ErrKeyStoreIO, err)
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("%w: corrupt key index: %v", ErrKeyStoreIO, err)
	}
	sort.Strings(names)
	return names, nil
}

// updateIndex must be called with the write lock held.
func (ks *KeychainStore) updateIndex(fn func([]string) []string) error {
	names, err := ks.readIndex()
	if err != nil {
		return err
	}
	names = fn(names)
	sort.Strings(names)
	names = dedupSorted(names)

	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal key index: %v", ErrKeyStoreIO, err)
	}
	if err := keyring.Set(ks.service, keychainIndexKey, string(data)); err != nil {
		return fmt.Errorf("%w: failed to update key index: %v", ErrKeyStoreIO, err)
	}
	return nil
}

func dedupSorted(names []string) []string {
	out := names[:0]
	for i, n := range names {
		if i == 0 || n != names[i-1] {
			out = append(out, n)
		}
	}
	return out
}

var _ EncryptedKeyStore = (*KeychainStore)(nil)
