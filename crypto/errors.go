package crypto

import "errors"

// KeyStore errors
var (
	// ErrKeyStoreNotFound is returned when a key is not found in the store.
	ErrKeyStoreNotFound = errors.New("key not found in store")

	// ErrKeyStoreExists is returned when attempting to store a key that already exists.
	ErrKeyStoreExists = errors.New("key already exists in store")

	// ErrKeyStoreIO is returned when an I/O error occurs during store operations.
	ErrKeyStoreIO = errors.New("key store I/O error")

	// ErrInvalidKeyName is returned when a key name fails validation.
	ErrInvalidKeyName = errors.New("invalid key name")

	// ErrInvalidAlgorithm is returned when an algorithm is not recognized.
	ErrInvalidAlgorithm = errors.New("invalid algorithm")

	// ErrInvalidPassword is returned when decryption fails due to wrong password.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrKeyStoreClosed is returned when operations are attempted on a closed store.
	ErrKeyStoreClosed = errors.New("key store is closed")

	// ErrKeychainUnavailable is returned when the OS keychain cannot be accessed.
	// Common causes:
	//   - Linux: D-Bus not running, or no secret service daemon (gnome-keyring, ksecretservice)
	//   - Headless environments: No GUI session for authentication prompts
	ErrKeychainUnavailable = errors.New("keychain unavailable")
)

// Key errors
var (
	// ErrInvalidKey is returned for malformed key material.
	ErrInvalidKey = errors.New("invalid key data")

	// ErrKeyringClosed is returned when a closed Keyring is used.
	ErrKeyringClosed = errors.New("keyring is closed")
)
