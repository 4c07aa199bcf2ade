package types

import (
	"bytes"
	"crypto/sha256"
	"fmt"
)

// MaxParams is the number of 64-bit lanes a transaction carries.
const MaxParams = 4

// Transaction is one signed command submitted to the application server.
//
// INVARIANT: Params[0] is a command word built by CreateCommand.
// INVARIANT: 1 <= len(Params) <= MaxParams.
type Transaction struct {
	// Account is the account executing this transaction
	Account AccountID `json:"account"`

	// Nonce prevents replay attacks
	Nonce uint64 `json:"nonce"`

	// Params holds the command word followed by its arguments
	Params []uint64 `json:"params"`
}

// NewTransaction creates a new transaction.
// Creates a defensive copy of params to prevent external mutation.
func NewTransaction(account AccountID, nonce uint64, params []uint64) *Transaction {
	paramsCopy := make([]uint64, len(params))
	copy(paramsCopy, params)

	return &Transaction{
		Account: account,
		Nonce:   nonce,
		Params:  paramsCopy,
	}
}

// NewCommandTransaction packs command and objectIndex into the leading word
// and appends args. Fails with ErrOutOfRange when objectIndex does not fit
// or when there are too many args.
func NewCommandTransaction(account AccountID, nonce uint64, command Command, objectIndex uint64, args ...uint64) (*Transaction, error) {
	if len(args) > MaxParams-1 {
		return nil, fmt.Errorf("%w: %d arguments, max %d", ErrOutOfRange, len(args), MaxParams-1)
	}
	word, err := CreateCommand(command, objectIndex)
	if err != nil {
		return nil, err
	}
	params := make([]uint64, 0, 1+len(args))
	params = append(params, word)
	params = append(params, args...)
	return &Transaction{Account: account, Nonce: nonce, Params: params}, nil
}

// Command decodes the leading command word.
func (tx *Transaction) Command() (Command, uint64) {
	if len(tx.Params) == 0 {
		return 0, 0
	}
	return SplitCommand(tx.Params[0])
}

// Arg returns argument i (0-based, after the command word), or 0 if absent.
func (tx *Transaction) Arg(i int) uint64 {
	if i < 0 || i+1 >= len(tx.Params) {
		return 0
	}
	return tx.Params[i+1]
}

// ValidateBasic performs basic validation, including that the command code
// is one this client knows.
func (tx *Transaction) ValidateBasic() error {
	if err := tx.ValidateShape(); err != nil {
		return err
	}
	if cmd, _ := tx.Command(); !cmd.IsKnown() {
		return fmt.Errorf("%w: %w %d", ErrInvalidTransaction, ErrUnknownCommand, uint32(cmd))
	}
	return nil
}

// ValidateShape checks the account and parameter count only. Servers use it
// and interpret the command word against their own command table.
func (tx *Transaction) ValidateShape() error {
	if tx == nil {
		return fmt.Errorf("%w: transaction is nil", ErrInvalidTransaction)
	}

	if err := tx.Account.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}

	if len(tx.Params) == 0 {
		return fmt.Errorf("%w: transaction must carry a command word", ErrInvalidTransaction)
	}
	if len(tx.Params) > MaxParams {
		return fmt.Errorf("%w: %d params exceeds %d", ErrInvalidTransaction, len(tx.Params), MaxParams)
	}
	return nil
}

// ToSignDoc converts the transaction to a SignDoc for signing.
//
// INVARIANT: Two calls with the same appID return equal SignDocs.
func (tx *Transaction) ToSignDoc(appID string) *SignDoc {
	params := make([]StringUint64, len(tx.Params))
	for i, p := range tx.Params {
		params[i] = StringUint64(p)
	}
	return &SignDoc{
		Version: SignDocVersion,
		AppID:   appID,
		Account: string(tx.Account),
		Nonce:   StringUint64(tx.Nonce),
		Params:  params,
	}
}

// SignBytes returns the bytes a signer must sign for appID.
func (tx *Transaction) SignBytes(appID string) ([]byte, error) {
	if err := tx.ValidateSignDocRoundtrip(appID); err != nil {
		return nil, err
	}
	return tx.ToSignDoc(appID).GetSignBytes()
}

// Hash computes the transaction hash. It is the sign bytes with an empty app
// id, so it identifies the command independent of the server it was sent to.
func (tx *Transaction) Hash() []byte {
	data, err := tx.ToSignDoc("").ToJSON()
	if err != nil {
		return nil
	}
	h := sha256.Sum256(data)
	return h[:]
}

// ValidateSignDocRoundtrip validates that SignDoc serialization is deterministic.
//
// SECURITY: Non-deterministic serialization could allow signature malleability.
//
// INVARIANT: If this returns nil, json1 == json2 byte-for-byte.
func (tx *Transaction) ValidateSignDocRoundtrip(appID string) error {
	signDoc := tx.ToSignDoc(appID)

	json1, err := signDoc.ToJSON()
	if err != nil {
		return fmt.Errorf("%w: initial serialization failed: %v", ErrSignDocMismatch, err)
	}

	parsed, err := ParseSignDoc(json1)
	if err != nil {
		return fmt.Errorf("%w: parsing failed: %v", ErrSignDocMismatch, err)
	}

	json2, err := parsed.ToJSON()
	if err != nil {
		return fmt.Errorf("%w: re-serialization failed: %v", ErrSignDocMismatch, err)
	}

	if !bytes.Equal(json1, json2) {
		return fmt.Errorf("%w: roundtrip produced different bytes (len %d vs %d)",
			ErrSignDocMismatch, len(json1), len(json2))
	}

	return nil
}
