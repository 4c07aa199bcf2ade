package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secp256k1ecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Zeroize securely overwrites a byte slice with zeros.
// Used to clear sensitive data (private keys) from memory.
//
// subtle.XORBytes cannot be elided as a dead store the way a plain loop can.
func Zeroize(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.XORBytes(b, b, b)
	runtime.KeepAlive(b)
}

// PublicKey represents a public key for signature verification.
type PublicKey interface {
	// Bytes returns the raw public key bytes.
	Bytes() []byte

	// Algorithm returns the key's algorithm.
	Algorithm() Algorithm

	// Verify verifies a signature against this public key.
	Verify(data, signature []byte) bool

	// Equals checks if two public keys are equal in constant time.
	Equals(other PublicKey) bool

	// String returns the Base64-encoded representation.
	String() string
}

// PrivateKey represents a private key for signing.
type PrivateKey interface {
	// Bytes returns the raw private key bytes.
	// WARNING: Handle with care. Consider zeroing after use.
	Bytes() []byte

	// Algorithm returns the key's algorithm.
	Algorithm() Algorithm

	// PublicKey returns the corresponding public key.
	PublicKey() PublicKey

	// Sign signs the given data.
	Sign(data []byte) ([]byte, error)

	// Zeroize overwrites the private key bytes with zeros.
	// After calling Zeroize, the key is no longer usable.
	Zeroize()
}

// ed25519PublicKey implements PublicKey for Ed25519.
type ed25519PublicKey struct {
	key ed25519.PublicKey
}

func (k *ed25519PublicKey) Bytes() []byte        { return k.key }
func (k *ed25519PublicKey) Algorithm() Algorithm { return AlgorithmEd25519 }

func (k *ed25519PublicKey) Verify(data, signature []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(k.key, data, signature)
}

func (k *ed25519PublicKey) Equals(other PublicKey) bool {
	if other == nil || other.Algorithm() != AlgorithmEd25519 {
		return false
	}
	return subtle.ConstantTimeCompare(k.key, other.Bytes()) == 1
}

func (k *ed25519PublicKey) String() string {
	return base64.StdEncoding.EncodeToString(k.key)
}

// ed25519PrivateKey implements PrivateKey for Ed25519.
type ed25519PrivateKey struct {
	key ed25519.PrivateKey
}

func (k *ed25519PrivateKey) Bytes() []byte        { return k.key }
func (k *ed25519PrivateKey) Algorithm() Algorithm { return AlgorithmEd25519 }

func (k *ed25519PrivateKey) PublicKey() PublicKey {
	return &ed25519PublicKey{key: k.key.Public().(ed25519.PublicKey)}
}

func (k *ed25519PrivateKey) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(k.key, data), nil
}

func (k *ed25519PrivateKey) Zeroize() {
	Zeroize(k.key)
}

// secp256k1PublicKey implements PublicKey for secp256k1.
// Uses 33-byte compressed format.
type secp256k1PublicKey struct {
	key *secp256k1.PublicKey
}

func (k *secp256k1PublicKey) Bytes() []byte        { return k.key.SerializeCompressed() }
func (k *secp256k1PublicKey) Algorithm() Algorithm { return AlgorithmSecp256k1 }

// Verify verifies a 64-byte (r || s) ECDSA signature over SHA-256(data).
// Scalars that overflow the group order or are zero are rejected.
func (k *secp256k1PublicKey) Verify(data, signature []byte) bool {
	if len(signature) != 64 {
		return false
	}

	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(signature[:32]); overflow || r.IsZero() {
		return false
	}
	if overflow := s.SetByteSlice(signature[32:]); overflow || s.IsZero() {
		return false
	}

	hash := sha256.Sum256(data)
	return secp256k1ecdsa.NewSignature(&r, &s).Verify(hash[:], k.key)
}

func (k *secp256k1PublicKey) Equals(other PublicKey) bool {
	if other == nil || other.Algorithm() != AlgorithmSecp256k1 {
		return false
	}
	return subtle.ConstantTimeCompare(k.Bytes(), other.Bytes()) == 1
}

func (k *secp256k1PublicKey) String() string {
	return base64.StdEncoding.EncodeToString(k.Bytes())
}

// secp256k1PrivateKey implements PrivateKey for secp256k1.
type secp256k1PrivateKey struct {
	key *secp256k1.PrivateKey
}

func (k *secp256k1PrivateKey) Bytes() []byte        { return k.key.Serialize() }
func (k *secp256k1PrivateKey) Algorithm() Algorithm { return AlgorithmSecp256k1 }

func (k *secp256k1PrivateKey) PublicKey() PublicKey {
	return &secp256k1PublicKey{key: k.key.PubKey()}
}

// Sign signs SHA-256(data) using RFC 6979 deterministic nonces.
// Returns a 64-byte (r || s) signature with low S.
func (k *secp256k1PrivateKey) Sign(data []byte) ([]byte, error) {
	hash := sha256.Sum256(data)
	sig := secp256k1ecdsa.Sign(k.key, hash[:])

	r := sig.R()
	s := sig.S()
	rBytes := r.Bytes()
	sBytes := s.Bytes()

	signature := make([]byte, 64)
	copy(signature[:32], rBytes[:])
	copy(signature[32:], sBytes[:])
	return signature, nil
}

func (k *secp256k1PrivateKey) Zeroize() {
	k.key.Zero()
}

// GeneratePrivateKey generates a new random private key.
func GeneratePrivateKey(algo Algorithm) (PrivateKey, error) {
	switch algo {
	case AlgorithmEd25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
		}
		return &ed25519PrivateKey{key: priv}, nil

	case AlgorithmSecp256k1:
		privKey, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
		}
		return &secp256k1PrivateKey{key: privKey}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAlgorithm, algo)
	}
}

// PrivateKeyFromBytes creates a private key from raw bytes.
// The caller should zero the input data after this call returns.
func PrivateKeyFromBytes(algo Algorithm, data []byte) (PrivateKey, error) {
	switch algo {
	case AlgorithmEd25519:
		if len(data) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: ed25519 private key is %d bytes, want %d",
				ErrInvalidKey, len(data), ed25519.PrivateKeySize)
		}
		key := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
		copy(key, data)
		return &ed25519PrivateKey{key: key}, nil

	case AlgorithmSecp256k1:
		if len(data) != 32 {
			return nil, fmt.Errorf("%w: secp256k1 private key is %d bytes, want 32", ErrInvalidKey, len(data))
		}
		var scalar secp256k1.ModNScalar
		if overflow := scalar.SetByteSlice(data); overflow || scalar.IsZero() {
			return nil, fmt.Errorf("%w: secp256k1 scalar out of range", ErrInvalidKey)
		}
		return &secp256k1PrivateKey{key: secp256k1.NewPrivateKey(&scalar)}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAlgorithm, algo)
	}
}

// PublicKeyFromBytes creates a public key from raw bytes.
// Expects compressed format (33 bytes) for secp256k1.
func PublicKeyFromBytes(algo Algorithm, data []byte) (PublicKey, error) {
	switch algo {
	case AlgorithmEd25519:
		if len(data) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: ed25519 public key is %d bytes, want %d",
				ErrInvalidKey, len(data), ed25519.PublicKeySize)
		}
		key := make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(key, data)
		return &ed25519PublicKey{key: key}, nil

	case AlgorithmSecp256k1:
		if len(data) != 33 {
			return nil, fmt.Errorf("%w: secp256k1 public key is %d bytes, want 33", ErrInvalidKey, len(data))
		}
		pubKey, err := secp256k1.ParsePubKey(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return &secp256k1PublicKey{key: pubKey}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAlgorithm, algo)
	}
}
