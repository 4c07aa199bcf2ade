package crypto

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blockberries/tower-sdk/types"
)

// Keyring resolves key names to Signers on top of an EncryptedKeyStore.
// Loaded signers are cached until Delete or Close. All methods are
// thread-safe.
type Keyring struct {
	store EncryptedKeyStore

	mu     sync.RWMutex
	cache  map[string]Signer
	closed bool
}

// NewKeyring creates a keyring backed by store. The keyring owns the store
// and closes it on Close.
func NewKeyring(store EncryptedKeyStore) *Keyring {
	return &Keyring{
		store: store,
		cache: make(map[string]Signer),
	}
}

// ImportAccount derives the account key for account and stores it as name.
// The derived key is the one DeriveKey returns, so servers that derive keys
// from account ids accept its signatures.
func (kr *Keyring) ImportAccount(name string, account types.AccountID, algo Algorithm) (Signer, error) {
	key, err := DeriveKey(algo, account)
	if err != nil {
		return nil, err
	}
	return kr.add(name, key)
}

// ImportKey stores raw private key bytes as name.
func (kr *Keyring) ImportKey(name string, privKey []byte, algo Algorithm) (Signer, error) {
	key, err := PrivateKeyFromBytes(algo, privKey)
	if err != nil {
		return nil, err
	}
	return kr.add(name, key)
}

// NewKey generates a random key and stores it as name.
func (kr *Keyring) NewKey(name string, algo Algorithm) (Signer, error) {
	key, err := GeneratePrivateKey(algo)
	if err != nil {
		return nil, err
	}
	return kr.add(name, key)
}

func (kr *Keyring) add(name string, key PrivateKey) (Signer, error) {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	if kr.closed {
		key.Zeroize()
		return nil, ErrKeyringClosed
	}

	err := kr.store.Store(name, EncryptedKey{
		Name:        name,
		Algorithm:   key.Algorithm(),
		PubKey:      key.PublicKey().Bytes(),
		PrivKeyData: key.Bytes(),
	})
	if err != nil {
		key.Zeroize()
		return nil, err
	}

	signer := NewSigner(key)
	kr.cache[name] = signer
	return signer, nil
}

// Signer returns the signer stored under name.
func (kr *Keyring) Signer(name string) (Signer, error) {
	kr.mu.RLock()
	if kr.closed {
		kr.mu.RUnlock()
		return nil, ErrKeyringClosed
	}
	if s, ok := kr.cache[name]; ok {
		kr.mu.RUnlock()
		return s, nil
	}
	kr.mu.RUnlock()

	kr.mu.Lock()
	defer kr.mu.Unlock()

	if kr.closed {
		return nil, ErrKeyringClosed
	}
	if s, ok := kr.cache[name]; ok {
		return s, nil
	}

	stored, err := kr.store.Load(name)
	if err != nil {
		return nil, err
	}
	defer stored.Wipe()

	key, err := PrivateKeyFromBytes(stored.Algorithm, stored.PrivKeyData)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", name, err)
	}
	if len(stored.PubKey) > 0 {
		pub, err := PublicKeyFromBytes(stored.Algorithm, stored.PubKey)
		if err != nil || !pub.Equals(key.PublicKey()) {
			key.Zeroize()
			return nil, fmt.Errorf("%w: key %q public key does not match private key", ErrInvalidKey, name)
		}
	}

	signer := NewSigner(key)
	kr.cache[name] = signer
	return signer, nil
}

// List returns all stored key names.
func (kr *Keyring) List() ([]string, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	if kr.closed {
		return nil, ErrKeyringClosed
	}
	return kr.store.List()
}

// Delete removes name from the store and zeroizes any cached signer.
func (kr *Keyring) Delete(name string) error {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	if kr.closed {
		return ErrKeyringClosed
	}
	if s, ok := kr.cache[name]; ok {
		zeroizeSigner(s)
		delete(kr.cache, name)
	}
	return kr.store.Delete(name)
}

// Close zeroizes cached keys and closes the store. Stored keys are kept.
// Safe to call multiple times.
func (kr *Keyring) Close() error {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	if kr.closed {
		return nil
	}
	kr.closed = true

	for name, s := range kr.cache {
		zeroizeSigner(s)
		delete(kr.cache, name)
	}

	if err := kr.store.Close(); err != nil && !errors.Is(err, ErrKeyStoreClosed) {
		return err
	}
	return nil
}
