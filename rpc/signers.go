package rpc

import (
	"github.com/blockberries/tower-sdk/crypto"
	"github.com/blockberries/tower-sdk/types"
)

// SignerResolver returns the signer for an account.
type SignerResolver interface {
	SignerFor(account types.AccountID) (crypto.Signer, error)
}

// SignerResolverFunc adapts a function to SignerResolver.
type SignerResolverFunc func(account types.AccountID) (crypto.Signer, error)

func (f SignerResolverFunc) SignerFor(account types.AccountID) (crypto.Signer, error) {
	return f(account)
}

// DerivedSigners derives each account's key from its id with crypto.DeriveKey.
func DerivedSigners(algo crypto.Algorithm) SignerResolver {
	return SignerResolverFunc(func(account types.AccountID) (crypto.Signer, error) {
		return crypto.DeriveSigner(algo, account)
	})
}

// KeyringSigner signs every account's transactions with the keyring key name.
func KeyringSigner(kr *crypto.Keyring, name string) SignerResolver {
	return SignerResolverFunc(func(types.AccountID) (crypto.Signer, error) {
		return kr.Signer(name)
	})
}

// PubKeyResolver returns the public key a server expects for account.
type PubKeyResolver func(algo crypto.Algorithm, account types.AccountID) ([]byte, error)

// DerivedPubKeys expects the key crypto.DeriveKey yields for the account.
func DerivedPubKeys(algo crypto.Algorithm, account types.AccountID) ([]byte, error) {
	key, err := crypto.DeriveKey(algo, account)
	if err != nil {
		return nil, err
	}
	defer key.Zeroize()
	return key.PublicKey().Bytes(), nil
}
