package vectors

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/blockberries/tower-sdk/crypto"
	"github.com/blockberries/tower-sdk/types"
)

// Transaction builds the transaction described by in.
func (in Input) Transaction() (*types.Transaction, error) {
	nonce, err := strconv.ParseUint(in.Nonce, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	params := make([]uint64, len(in.Params))
	for i, s := range in.Params {
		if params[i], err = strconv.ParseUint(s, 10, 64); err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
	}
	return types.NewTransaction(types.AccountID(in.Account), nonce, params), nil
}

// Regenerate recomputes every expected field of f from its inputs with this
// module's implementation. Secp256k1 signatures are left out: they are
// checked by verification, not by bytes.
func Regenerate(f *File) (*File, error) {
	out := &File{Version: f.Version, Description: f.Description}
	for _, v := range f.Vectors {
		exp, err := expected(v.Input)
		if err != nil {
			return nil, fmt.Errorf("vector %s: %w", v.Name, err)
		}
		v.Expected = exp
		out.Vectors = append(out.Vectors, v)
	}
	return out, nil
}

func expected(in Input) (Expected, error) {
	tx, err := in.Transaction()
	if err != nil {
		return Expected{}, err
	}
	doc, err := tx.ToSignDoc(in.AppID).ToJSON()
	if err != nil {
		return Expected{}, err
	}
	signBytes, err := tx.SignBytes(in.AppID)
	if err != nil {
		return Expected{}, err
	}

	keys := make(map[string]KeyVector)
	for _, algo := range []crypto.Algorithm{crypto.AlgorithmEd25519, crypto.AlgorithmSecp256k1} {
		key, err := crypto.DeriveKey(algo, tx.Account)
		if err != nil {
			return Expected{}, err
		}
		kv := KeyVector{PublicKeyHex: hex.EncodeToString(key.PublicKey().Bytes())}
		if algo == crypto.AlgorithmEd25519 {
			sig, err := key.Sign(signBytes)
			if err != nil {
				key.Zeroize()
				return Expected{}, err
			}
			kv.SignatureHex = hex.EncodeToString(sig)
		}
		key.Zeroize()
		keys[algo.String()] = kv
	}

	return Expected{
		SignDocJSON:  string(doc),
		SignBytesHex: hex.EncodeToString(signBytes),
		TxHashHex:    hex.EncodeToString(tx.Hash()),
		Keys:         keys,
	}, nil
}
