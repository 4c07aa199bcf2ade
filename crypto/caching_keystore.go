package crypto

import (
	"container/list"
	"sync"
)

// CachingKeyStore wraps an EncryptedKeyStore with an LRU cache of loaded
// keys. It sits in front of FileKeyStore, where every Load pays a full
// PBKDF2 derivation.
//
// Writes go to the backend first and are cached only on success.
type CachingKeyStore struct {
	backend  EncryptedKeyStore
	capacity int

	mu    sync.Mutex
	cache map[string]*list.Element
	lru   *list.List // front = most recent

	hits   uint64
	misses uint64

	closed bool
}

type cacheEntry struct {
	name string
	key  EncryptedKey
}

// DefaultKeyCacheSize is used when NewCachingKeyStore is given capacity <= 0.
const DefaultKeyCacheSize = 16

// NewCachingKeyStore wraps backend. The caching store owns backend and
// closes it on Close.
func NewCachingKeyStore(backend EncryptedKeyStore, capacity int) *CachingKeyStore {
	if capacity <= 0 {
		capacity = DefaultKeyCacheSize
	}
	return &CachingKeyStore{
		backend:  backend,
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Load returns a copy of the cached key, falling back to the backend.
func (c *CachingKeyStore) Load(name string) (EncryptedKey, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return EncryptedKey{}, ErrKeyStoreClosed
	}
	if elem, ok := c.cache[name]; ok {
		c.lru.MoveToFront(elem)
		c.hits++
		key := elem.Value.(*cacheEntry).key.clone()
		c.mu.Unlock()
		return key, nil
	}
	c.misses++
	c.mu.Unlock()

	key, err := c.backend.Load(name)
	if err != nil {
		return EncryptedKey{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		key.Wipe()
		return EncryptedKey{}, ErrKeyStoreClosed
	}
	c.add(name, key)
	return key, nil
}

// Store writes through to the backend.
func (c *CachingKeyStore) Store(name string, key EncryptedKey) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrKeyStoreClosed
	}

	if err := c.backend.Store(name, key); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.add(name, key)
	}
	return nil
}

// Delete evicts name and deletes it from the backend.
func (c *CachingKeyStore) Delete(name string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrKeyStoreClosed
	}
	c.remove(name)
	c.mu.Unlock()

	return c.backend.Delete(name)
}

// List delegates to the backend; the cache may hold only a subset.
func (c *CachingKeyStore) List() ([]string, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrKeyStoreClosed
	}
	return c.backend.List()
}

// Close wipes cached keys and closes the backend. Safe to call multiple
// times.
func (c *CachingKeyStore) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for name := range c.cache {
		c.remove(name)
	}
	return c.backend.Close()
}

// Stats returns cache hits and misses.
func (c *CachingKeyStore) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of cached keys.
func (c *CachingKeyStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// add must be called with mu held.
func (c *CachingKeyStore) add(name string, key EncryptedKey) {
	if elem, ok := c.cache[name]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.key.Wipe()
		entry.key = key.clone()
		c.lru.MoveToFront(elem)
		return
	}
	if len(c.cache) >= c.capacity {
		if back := c.lru.Back(); back != nil {
			c.remove(back.Value.(*cacheEntry).name)
		}
	}
	c.cache[name] = c.lru.PushFront(&cacheEntry{name: name, key: key.clone()})
}

// remove must be called with mu held.
func (c *CachingKeyStore) remove(name string) {
	elem, ok := c.cache[name]
	if !ok {
		return
	}
	elem.Value.(*cacheEntry).key.Wipe()
	c.lru.Remove(elem)
	delete(c.cache, name)
}

var _ EncryptedKeyStore = (*CachingKeyStore)(nil)
