package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2 parameters. 100,000 iterations is the minimum acceptable in 2024.
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 32 // AES-256
	saltLen          = 16

	aesGCMNonceLen = 12

	keyFileExtension   = ".key"
	keyFilePermissions = 0600
	keyDirPermissions  = 0700
)

// FileKeyStore implements EncryptedKeyStore with encrypted files, one per key.
// Keys are encrypted with AES-256-GCM under a PBKDF2-derived key; the key name
// is bound as additional data so files cannot be swapped between names.
type FileKeyStore struct {
	dir        string
	password   []byte
	iterations int
	mu         sync.RWMutex
	closed     bool
}

// fileKeyData is the JSON structure stored on disk.
type fileKeyData struct {
	Name        string `json:"name"`
	Algorithm   string `json:"algorithm"`
	PubKey      string `json:"pub_key"`       // base64
	PrivKeyData string `json:"priv_key_data"` // base64, encrypted
	Salt        string `json:"salt"`          // base64
	Nonce       string `json:"nonce"`         // base64
}

// NewFileKeyStore creates a FileKeyStore rooted at dir, creating it with
// mode 0700 if needed.
func NewFileKeyStore(dir string, password string) (*FileKeyStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: directory path is empty", ErrKeyStoreIO)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password cannot be empty", ErrKeyStoreIO)
	}
	if err := os.MkdirAll(dir, keyDirPermissions); err != nil {
		return nil, fmt.Errorf("%w: failed to create directory: %v", ErrKeyStoreIO, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stat directory: %v", ErrKeyStoreIO, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: path is not a directory", ErrKeyStoreIO)
	}

	return &FileKeyStore{
		dir:        dir,
		password:   []byte(password),
		iterations: pbkdf2Iterations,
	}, nil
}

// Store encrypts and saves a key to disk.
func (s *FileKeyStore) Store(name string, key EncryptedKey) error {
	if err := validateKeyName(name); err != nil {
		return err
	}
	if !key.Algorithm.IsValid() {
		return ErrInvalidAlgorithm
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrKeyStoreClosed
	}

	path := s.keyFilePath(name)
	if _, err := os.Stat(path); err == nil {
		return ErrKeyStoreExists
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("%w: failed to generate salt: %v", ErrKeyStoreIO, err)
	}
	nonce := make([]byte, aesGCMNonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("%w: failed to generate nonce: %v", ErrKeyStoreIO, err)
	}

	derived := pbkdf2.Key(s.password, salt, s.iterations, pbkdf2KeyLen, sha256.New)
	defer Zeroize(derived)

	aead, err := newGCM(derived)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyStoreIO, err)
	}
	ciphertext := aead.Seal(nil, nonce, key.PrivKeyData, []byte(name))

	data, err := json.MarshalIndent(fileKeyData{
		Name:        name,
		Algorithm:   string(key.Algorithm),
		PubKey:      base64.StdEncoding.EncodeToString(key.PubKey),
		PrivKeyData: base64.StdEncoding.EncodeToString(ciphertext),
		Salt:        base64.StdEncoding.EncodeToString(salt),
		Nonce:       base64.StdEncoding.EncodeToString(nonce),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal key data: %v", ErrKeyStoreIO, err)
	}

	if err := os.WriteFile(path, data, keyFilePermissions); err != nil {
		return fmt.Errorf("%w: failed to write key file: %v", ErrKeyStoreIO, err)
	}
	return nil
}

// Load reads and decrypts a key from disk. A wrong password or a tampered
// file both surface as ErrInvalidPassword.
func (s *FileKeyStore) Load(name string) (EncryptedKey, error) {
	if err := validateKeyName(name); err != nil {
		return EncryptedKey{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return EncryptedKey{}, ErrKeyStoreClosed
	}

	raw, err := os.ReadFile(s.keyFilePath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return EncryptedKey{}, ErrKeyStoreNotFound
	}
	if err != nil {
		return EncryptedKey{}, fmt.Errorf("%w: failed to read key file: %v", ErrKeyStoreIO, err)
	}

	var data fileKeyData
	if err := json.Unmarshal(raw, &data); err != nil {
		return EncryptedKey{}, fmt.Errorf("%w: failed to parse key file: %v", ErrKeyStoreIO, err)
	}

	var pubKey, ciphertext, salt, nonce []byte
	for _, f := range []struct {
		dst  *[]byte
		src  string
		what string
	}{
		{&pubKey, data.PubKey, "public key"},
		{&ciphertext, data.PrivKeyData, "private key"},
		{&salt, data.Salt, "salt"},
		{&nonce, data.Nonce, "nonce"},
	} {
		b, err := base64.StdEncoding.DecodeString(f.src)
		if err != nil {
			return EncryptedKey{}, fmt.Errorf("%w: invalid %s encoding: %v", ErrKeyStoreIO, f.what, err)
		}
		*f.dst = b
	}

	alg := Algorithm(data.Algorithm)
	if !alg.IsValid() {
		return EncryptedKey{}, fmt.Errorf("%w: unknown algorithm %q", ErrKeyStoreIO, data.Algorithm)
	}

	derived := pbkdf2.Key(s.password, salt, s.iterations, pbkdf2KeyLen, sha256.New)
	defer Zeroize(derived)

	aead, err := newGCM(derived)
	if err != nil {
		return EncryptedKey{}, fmt.Errorf("%w: %v", ErrKeyStoreIO, err)
	}
	if len(nonce) != aead.NonceSize() {
		return EncryptedKey{}, fmt.Errorf("%w: bad nonce length %d", ErrKeyStoreIO, len(nonce))
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return EncryptedKey{}, ErrInvalidPassword
	}

	return EncryptedKey{
		Name:        data.Name,
		Algorithm:   alg,
		PubKey:      pubKey,
		PrivKeyData: plaintext,
		Salt:        salt,
		Nonce:       nonce,
	}, nil
}

// Delete removes a key file from disk.
func (s *FileKeyStore) Delete(name string) error {
	if err := validateKeyName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrKeyStoreClosed
	}

	err := os.Remove(s.keyFilePath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrKeyStoreNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: failed to delete key file: %v", ErrKeyStoreIO, err)
	}
	return nil
}

// List returns all key names in the store, sorted.
func (s *FileKeyStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrKeyStoreClosed
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read directory: %v", ErrKeyStoreIO, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), keyFileExtension) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), keyFileExtension))
	}
	sort.Strings(names)
	return names, nil
}

// Close marks the store as closed and zeroizes the password.
// Safe to call multiple times.
func (s *FileKeyStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	Zeroize(s.password)
	s.password = nil
	return nil
}

func (s *FileKeyStore) keyFilePath(name string) string {
	return filepath.Join(s.dir, name+keyFileExtension)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

var _ EncryptedKeyStore = (*FileKeyStore)(nil)
