// Package vectors holds cross-implementation signing vectors for tower
// transactions.
//
// Every vector signs with the key crypto.DeriveKey derives from the vector's
// account, so a client in any language can check its SignDoc encoding, sign
// bytes, transaction hash and derived keys against the same file.
//
// SECURITY: derived keys are public knowledge. Never use them outside tests.
package vectors

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed testdata/vectors.json
var vectorsJSON []byte

// File is the root of the vector file.
type File struct {
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Vectors     []Vector `json:"vectors"`
}

// Vector is one signing case.
type Vector struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Input       Input    `json:"input"`
	Expected    Expected `json:"expected"`
}

// Input is the transaction being signed. Integers are decimal strings.
type Input struct {
	AppID   string   `json:"app_id"`
	Account string   `json:"account"`
	Nonce   string   `json:"nonce"`
	Params  []string `json:"params"`
}

// Expected holds the outputs a conforming implementation must produce.
type Expected struct {
	SignDocJSON  string               `json:"sign_doc_json"`
	SignBytesHex string               `json:"sign_bytes_hex"`
	TxHashHex    string               `json:"tx_hash_hex"`
	Keys         map[string]KeyVector `json:"keys"`
}

// KeyVector is the derived public key for one algorithm and, for
// deterministic schemes, the expected signature over the sign bytes.
type KeyVector struct {
	PublicKeyHex string `json:"public_key_hex"`
	SignatureHex string `json:"signature_hex,omitempty"`
}

// Load parses the embedded vector file.
func Load() (*File, error) {
	var f File
	if err := json.Unmarshal(vectorsJSON, &f); err != nil {
		return nil, fmt.Errorf("parse vectors: %w", err)
	}
	return &f, nil
}
