package crypto

// Signer is the interface for signing operations.
// Implementations must never expose private key material.
type Signer interface {
	// Algorithm returns the signing algorithm.
	Algorithm() Algorithm

	// PublicKey returns the public key.
	PublicKey() PublicKey

	// Sign signs the message and returns the signature.
	// The message should typically be a hash of the actual data.
	Sign(message []byte) ([]byte, error)
}

// BasicSigner wraps a PrivateKey to implement Signer.
// Thread-safe: signing operations are stateless.
type BasicSigner struct {
	privateKey PrivateKey
}

// NewSigner creates a new Signer from a PrivateKey.
func NewSigner(privateKey PrivateKey) Signer {
	return &BasicSigner{privateKey: privateKey}
}

// Sign signs the given data.
func (s *BasicSigner) Sign(data []byte) ([]byte, error) {
	return s.privateKey.Sign(data)
}

// PublicKey returns the signer's public key.
func (s *BasicSigner) PublicKey() PublicKey {
	return s.privateKey.PublicKey()
}

// Algorithm returns the signing algorithm.
func (s *BasicSigner) Algorithm() Algorithm {
	return s.privateKey.Algorithm()
}

// VerifySignature parses a raw public key and checks sig over msg.
// It returns false for malformed keys rather than an error, matching
// the boolean result of PublicKey.Verify.
func VerifySignature(algo Algorithm, pubKey, msg, sig []byte) bool {
	pk, err := PublicKeyFromBytes(algo, pubKey)
	if err != nil {
		return false
	}
	return pk.Verify(msg, sig)
}

// zeroizeSigner clears the private key held by a BasicSigner.
func zeroizeSigner(s Signer) {
	if bs, ok := s.(*BasicSigner); ok && bs.privateKey != nil {
		bs.privateKey.Zeroize()
	}
}
