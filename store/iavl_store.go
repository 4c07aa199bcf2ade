package store

import (
	"fmt"
	"sync"

	"cosmossdk.io/log"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/iavl"
	ics23 "github.com/cosmos/ics23/go"
)

// Database backends accepted by OpenDB.
const (
	BackendMemory    = "memory"
	BackendGoLevelDB = "goleveldb"
)

// DefaultCacheSize is the IAVL node cache size used by OpenIAVLStore.
const DefaultCacheSize = 10_000

// OpenDB opens a cosmos-db database. The memory backend ignores dir.
func OpenDB(backend, name, dir string) (dbm.DB, error) {
	switch backend {
	case "", BackendMemory:
		return dbm.NewMemDB(), nil
	case BackendGoLevelDB:
		if dir == "" {
			return nil, fmt.Errorf("goleveldb backend requires a directory")
		}
		db, err := dbm.NewGoLevelDB(name, dir, nil)
		if err != nil {
			return nil, fmt.Errorf("open goleveldb %s/%s: %w", dir, name, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", backend)
	}
}

// IAVLStore is an IAVL-backed implementation of BackingStore.
// It wraps a MutableTree and adds locking, versioning and ICS-23 proofs.
// Writes are visible to Get immediately; proofs cover only saved versions.
type IAVLStore struct {
	mu      sync.RWMutex
	db      dbm.DB
	tree    *iavl.MutableTree
	version int64
	logger  log.Logger
	closed  bool
}

// NewIAVLStore creates an IAVL store on db and loads its latest version.
func NewIAVLStore(db dbm.DB, cacheSize int, logger log.Logger) (*IAVLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	tree := iavl.NewMutableTree(db, cacheSize, false, logger)
	version, err := tree.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load tree: %w", err)
	}
	logger.Debug("iavl store loaded", "version", version)

	return &IAVLStore{
		db:      db,
		tree:    tree,
		version: version,
		logger:  logger,
	}, nil
}

// OpenIAVLStore opens a database with OpenDB and wraps it in an IAVLStore.
// The returned store owns the database.
func OpenIAVLStore(backend, dir string, logger log.Logger) (*IAVLStore, error) {
	db, err := OpenDB(backend, "journal", dir)
	if err != nil {
		return nil, err
	}
	s, err := NewIAVLStore(db, DefaultCacheSize, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Get retrieves raw bytes by key
func (s *IAVLStore) Get(key []byte) ([]byte, error) {
	if s == nil {
		return nil, ErrStoreNil
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	value, err := s.tree.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	if value == nil {
		return nil, ErrNotFound
	}
	return copyBytes(value), nil
}

// Set stores raw bytes with the given key
func (s *IAVLStore) Set(key []byte, value []byte) error {
	if s == nil {
		return ErrStoreNil
	}
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.tree.Set(copyBytes(key), copyBytes(value)); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Delete removes a key
func (s *IAVLStore) Delete(key []byte) error {
	if s == nil {
		return ErrStoreNil
	}
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, _, err := s.tree.Remove(key); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// Has checks if a key exists
func (s *IAVLStore) Has(key []byte) (bool, error) {
	if s == nil {
		return false, ErrStoreNil
	}
	if err := validateKey(key); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrStoreClosed
	}

	has, err := s.tree.Has(key)
	if err != nil {
		return false, fmt.Errorf("failed to check key: %w", err)
	}
	return has, nil
}

// Iterator returns an ascending iterator over [start, end).
func (s *IAVLStore) Iterator(start, end []byte) (RawIterator, error) {
	return s.iterator(start, end, true)
}

// ReverseIterator returns a descending iterator over [start, end).
func (s *IAVLStore) ReverseIterator(start, end []byte) (RawIterator, error) {
	return s.iterator(start, end, false)
}

func (s *IAVLStore) iterator(start, end []byte, ascending bool) (RawIterator, error) {
	if s == nil {
		return nil, ErrStoreNil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	iter, err := s.tree.Iterator(start, end, ascending)
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	return &iavlIterator{iter: iter}, nil
}

// SaveVersion saves the working tree as a new version and returns the
// Merkle root hash and version number.
func (s *IAVLStore) SaveVersion() ([]byte, int64, error) {
	if s == nil {
		return nil, 0, ErrStoreNil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, 0, ErrStoreClosed
	}

	hash, version, err := s.tree.SaveVersion()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to save version: %w", err)
	}
	s.version = version
	s.logger.Debug("iavl version saved", "version", version, "root", fmt.Sprintf("%X", hash))
	return copyBytes(hash), version, nil
}

// GetProof returns an ICS-23 proof for key at the last saved version. The
// proof is a non-existence proof when the key is absent from that version.
func (s *IAVLStore) GetProof(key []byte) (*ics23.CommitmentProof, error) {
	if s == nil {
		return nil, ErrStoreNil
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if s.version == 0 {
		return nil, ErrNotCommitted
	}

	proof, err := s.tree.GetVersionedProof(key, s.version)
	if err != nil {
		return nil, fmt.Errorf("failed to get proof: %w", err)
	}
	return proof, nil
}

// Version returns the last saved version number
func (s *IAVLStore) Version() int64 {
	if s == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Hash returns the Merkle root hash of the last saved version
func (s *IAVLStore) Hash() []byte {
	if s == nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	return copyBytes(s.tree.Hash())
}

// Close closes the underlying database. Unsaved writes are lost.
func (s *IAVLStore) Close() error {
	if s == nil {
		return ErrStoreNil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// iavlIterator adapts a dbm.Iterator to RawIterator with defensive copies.
type iavlIterator struct {
	iter   dbm.Iterator
	closed bool
}

func (it *iavlIterator) Valid() bool {
	return !it.closed && it.iter.Valid()
}

func (it *iavlIterator) Next() {
	if !it.closed {
		it.iter.Next()
	}
}

func (it *iavlIterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return copyBytes(it.iter.Key())
}

func (it *iavlIterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return copyBytes(it.iter.Value())
}

func (it *iavlIterator) Error() error {
	if it.closed {
		return ErrIteratorClosed
	}
	return it.iter.Error()
}

func (it *iavlIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if err := it.iter.Close(); err != nil {
		return fmt.Errorf("failed to close IAVL iterator: %w", err)
	}
	return nil
}

var _ BackingStore = (*IAVLStore)(nil)
