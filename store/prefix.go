package store

import (
	"bytes"
)

// PrefixStore namespaces a BackingStore: every key is stored under prefix and
// iterators only see, and strip, that prefix. Closing a PrefixStore does not
// close its parent.
type PrefixStore struct {
	parent BackingStore
	prefix []byte
}

// NewPrefixStore creates a new prefix store. It panics on a nil parent or an
// empty prefix, both of which are programming errors.
func NewPrefixStore(parent BackingStore, prefix []byte) *PrefixStore {
	if parent == nil {
		panic("parent store cannot be nil")
	}
	if len(prefix) == 0 {
		panic("prefix cannot be empty")
	}
	return &PrefixStore{parent: parent, prefix: copyBytes(prefix)}
}

// Key returns the parent-store key for key.
func (ps *PrefixStore) Key(key []byte) []byte {
	prefixed := make([]byte, len(ps.prefix)+len(key))
	copy(prefixed, ps.prefix)
	copy(prefixed[len(ps.prefix):], key)
	return prefixed
}

func (ps *PrefixStore) Get(key []byte) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return ps.parent.Get(ps.Key(key))
}

func (ps *PrefixStore) Set(key []byte, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return ps.parent.Set(ps.Key(key), value)
}

func (ps *PrefixStore) Delete(key []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return ps.parent.Delete(ps.Key(key))
}

func (ps *PrefixStore) Has(key []byte) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	return ps.parent.Has(ps.Key(key))
}

// Iterator iterates [start, end) within the prefix. Nil bounds mean the
// whole namespace.
func (ps *PrefixStore) Iterator(start, end []byte) (RawIterator, error) {
	s, e := ps.bounds(start, end)
	iter, err := ps.parent.Iterator(s, e)
	if err != nil {
		return nil, err
	}
	return &prefixIterator{parent: iter, prefix: ps.prefix}, nil
}

func (ps *PrefixStore) ReverseIterator(start, end []byte) (RawIterator, error) {
	s, e := ps.bounds(start, end)
	iter, err := ps.parent.ReverseIterator(s, e)
	if err != nil {
		return nil, err
	}
	return &prefixIterator{parent: iter, prefix: ps.prefix}, nil
}

func (ps *PrefixStore) Close() error { return nil }

func (ps *PrefixStore) bounds(start, end []byte) ([]byte, []byte) {
	s := ps.prefix
	if start != nil {
		s = ps.Key(start)
	}
	e := PrefixEnd(ps.prefix)
	if end != nil {
		e = ps.Key(end)
	}
	return s, e
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or nil if there is none.
func PrefixEnd(prefix []byte) []byte {
	bound := copyBytes(prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] < 0xFF {
			bound[i]++
			return bound[:i+1]
		}
	}
	return nil
}

// prefixIterator strips the namespace from keys.
type prefixIterator struct {
	parent RawIterator
	prefix []byte
}

func (pi *prefixIterator) Valid() bool {
	return pi.parent.Valid() && bytes.HasPrefix(pi.parent.Key(), pi.prefix)
}

func (pi *prefixIterator) Next() { pi.parent.Next() }

func (pi *prefixIterator) Key() []byte {
	if !pi.Valid() {
		return nil
	}
	return pi.parent.Key()[len(pi.prefix):]
}

func (pi *prefixIterator) Value() []byte { return pi.parent.Value() }
func (pi *prefixIterator) Error() error  { return pi.parent.Error() }
func (pi *prefixIterator) Close() error  { return pi.parent.Close() }

var _ BackingStore = (*PrefixStore)(nil)
