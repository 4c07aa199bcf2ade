package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/blockberries/tower-sdk/types"
)

// accountKeyDomain separates account-derived seeds from any other SHA-256 use.
const accountKeyDomain = "tower-sdk/account/v1"

// accountSeed returns SHA-256(domain || 0x00 || account).
func accountSeed(account types.AccountID) [32]byte {
	h := sha256.New()
	h.Write([]byte(accountKeyDomain))
	h.Write([]byte{0})
	h.Write([]byte(account))
	var seed [32]byte
	copy(seed[:], h.Sum(nil))
	return seed
}

// DeriveKey deterministically derives a private key from an account string.
// The same normalized account always yields the same key, so a player can sign
// in with nothing but the account id.
//
// SECURITY: the key is only as secret as the account string. Use a Keyring with
// generated keys for anything beyond local play.
func DeriveKey(algo Algorithm, account types.AccountID) (PrivateKey, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}
	seed := accountSeed(account)
	defer Zeroize(seed[:])

	switch algo {
	case AlgorithmEd25519:
		return &ed25519PrivateKey{key: ed25519.NewKeyFromSeed(seed[:])}, nil

	case AlgorithmSecp256k1:
		var scalar secp256k1.ModNScalar
		scalar.SetByteSlice(seed[:]) // reduces mod n
		if scalar.IsZero() {
			return nil, fmt.Errorf("%w: account %q derives a zero scalar", ErrInvalidKey, account)
		}
		return &secp256k1PrivateKey{key: secp256k1.NewPrivateKey(&scalar)}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAlgorithm, algo)
	}
}

// DeriveSigner is DeriveKey wrapped in a Signer.
func DeriveSigner(algo Algorithm, account types.AccountID) (Signer, error) {
	key, err := DeriveKey(algo, account)
	if err != nil {
		return nil, err
	}
	return NewSigner(key), nil
}
