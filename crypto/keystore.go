package crypto

import (
	"fmt"
	"strings"
)

// MaxKeyNameLength is the maximum allowed length for a key name.
const MaxKeyNameLength = 255

// EncryptedKey is a stored key as handed to and from an EncryptedKeyStore.
// PrivKeyData is always plaintext at this boundary; stores that encrypt at
// rest fill Salt and Nonce on Load.
type EncryptedKey struct {
	Name        string    `json:"name"`
	Algorithm   Algorithm `json:"algorithm"`
	PubKey      []byte    `json:"pub_key"`
	PrivKeyData []byte    `json:"priv_key_data"`
	Salt        []byte    `json:"salt,omitempty"`
	Nonce       []byte    `json:"nonce,omitempty"`
}

// Wipe zeroes the private key material.
func (k *EncryptedKey) Wipe() {
	Zeroize(k.PrivKeyData)
}

// clone returns a deep copy so stores never share slices with callers.
func (k EncryptedKey) clone() EncryptedKey {
	out := k
	out.PubKey = append([]byte(nil), k.PubKey...)
	out.PrivKeyData = append([]byte(nil), k.PrivKeyData...)
	if k.Salt != nil {
		out.Salt = append([]byte(nil), k.Salt...)
	}
	if k.Nonce != nil {
		out.Nonce = append([]byte(nil), k.Nonce...)
	}
	return out
}

// EncryptedKeyStore provides persistent storage for account keys.
// Implementations must be thread-safe.
type EncryptedKeyStore interface {
	// Store saves a key. Returns ErrKeyStoreExists if the name is taken.
	Store(name string, key EncryptedKey) error

	// Load retrieves a key. Returns ErrKeyStoreNotFound if absent.
	Load(name string) (EncryptedKey, error)

	// Delete removes a key. Returns ErrKeyStoreNotFound if absent.
	Delete(name string) error

	// List returns all key names.
	List() ([]string, error)

	// Close releases resources. Later calls return ErrKeyStoreClosed.
	Close() error
}

// validateKeyName checks that a key name is safe for use as a filename
// or keychain item.
func validateKeyName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: key name cannot be empty", ErrInvalidKeyName)
	}
	if len(name) > MaxKeyNameLength {
		return fmt.Errorf("%w: key name too long (max %d characters)", ErrInvalidKeyName, MaxKeyNameLength)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: key name cannot contain path elements", ErrInvalidKeyName)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: key name cannot start with '.'", ErrInvalidKeyName)
	}
	for _, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("%w: key name contains control characters", ErrInvalidKeyName)
		}
	}
	return nil
}
