package crypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ECDSA signatures are malleable: (r, n-s) verifies wherever (r, s) does.
// Sign always produces low-S; the helpers below let a server insist on it so
// that one signed transaction has exactly one signature encoding.

// IsLowS reports whether sig is in canonical low-S form for algo.
// Ed25519 signatures are not malleable in this way and always report true
// when they have the right length.
func IsLowS(algo Algorithm, sig []byte) bool {
	switch algo {
	case AlgorithmEd25519:
		return len(sig) == 64
	case AlgorithmSecp256k1:
		s, ok := sigScalar(sig)
		return ok && !s.IsOverHalfOrder()
	default:
		return false
	}
}

// NormalizeSignature returns sig with s replaced by n-s when s is over half
// the group order. It returns a copy and nil for malformed input.
func NormalizeSignature(algo Algorithm, sig []byte) []byte {
	switch algo {
	case AlgorithmEd25519:
		if len(sig) != 64 {
			return nil
		}
		return append([]byte(nil), sig...)
	case AlgorithmSecp256k1:
		s, ok := sigScalar(sig)
		if !ok {
			return nil
		}
		out := append([]byte(nil), sig...)
		if s.IsOverHalfOrder() {
			s.Negate()
			b := s.Bytes()
			copy(out[32:], b[:])
		}
		return out
	default:
		return nil
	}
}

// VerifyStrict is VerifySignature that also rejects high-S secp256k1
// signatures.
func VerifyStrict(algo Algorithm, pubKey, msg, sig []byte) bool {
	return IsLowS(algo, sig) && VerifySignature(algo, pubKey, msg, sig)
}

func sigScalar(sig []byte) (secp256k1.ModNScalar, bool) {
	var s secp256k1.ModNScalar
	if len(sig) != 64 {
		return s, false
	}
	if overflow := s.SetByteSlice(sig[32:]); overflow || s.IsZero() {
		return s, false
	}
	return s, true
}
