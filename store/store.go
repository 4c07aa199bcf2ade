// Package store persists the client's transaction journal in a versioned
// IAVL tree so every recorded dispatch can be proven against a root hash.
package store

import (
	"errors"
)

var (
	// ErrNotFound is returned when a key is not found in the store
	ErrNotFound = errors.New("key not found")

	// ErrInvalidKey is returned when a key is invalid
	ErrInvalidKey = errors.New("invalid key")

	// ErrIteratorClosed is returned when an iterator is used after being closed
	ErrIteratorClosed = errors.New("iterator closed")

	// ErrStoreNil is returned when a store is nil
	ErrStoreNil = errors.New("store is nil")

	// ErrStoreClosed is returned when a closed store is used
	ErrStoreClosed = errors.New("store is closed")

	// ErrNotCommitted is returned when a proof is requested for data that is
	// not part of the last committed version
	ErrNotCommitted = errors.New("not committed")
)

// BackingStore is the raw key-value interface the journal is written against.
type BackingStore interface {
	// Get retrieves raw bytes by key. Returns ErrNotFound if absent.
	Get(key []byte) ([]byte, error)

	// Set stores raw bytes with the given key
	Set(key []byte, value []byte) error

	// Delete removes a key
	Delete(key []byte) error

	// Has checks if a key exists
	Has(key []byte) (bool, error)

	// Iterator returns an ascending iterator over [start, end)
	Iterator(start, end []byte) (RawIterator, error)

	// ReverseIterator returns a descending iterator over [start, end)
	ReverseIterator(start, end []byte) (RawIterator, error)

	// Close releases resources
	Close() error
}

// RawIterator is an iterator over raw key-value pairs
type RawIterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

func validateKey(key []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	return nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
