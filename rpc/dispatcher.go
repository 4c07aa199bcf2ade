// Package rpc defines the transaction dispatcher used to talk to the tower
// defense application server, an HTTP client and server for it, and a
// sequencer that makes batch ordering explicit.
package rpc

import (
	"context"
	"fmt"

	"github.com/blockberries/tower-sdk/types"
)

// Dispatcher submits transactions and queries state on an application server.
//
// Implementations must be safe for concurrent use. A nil error from
// SendTransaction means the server accepted the transaction. Failures wrap
// types.ErrTransport when the server could not be reached or answered badly,
// and types.ErrRejected when it refused the transaction. Transactions that
// fail local checks wrap types.ErrInvalidTransaction, and also
// types.ErrUnknownCommand for an unknown command code. Those, and signer
// lookup errors, never reach the server.
type Dispatcher interface {
	// SendTransaction signs params for account and submits them.
	SendTransaction(ctx context.Context, params []uint64, account types.AccountID) (*Receipt, error)

	// QueryState reads the values of keys for account.
	QueryState(ctx context.Context, keys []uint64, account types.AccountID) (*State, error)

	// QueryConfig reads the server's static game configuration.
	QueryConfig(ctx context.Context) (*Config, error)
}

// Backend is a Dispatcher that can also execute transactions signed
// elsewhere. Handler serves a Backend.
type Backend interface {
	Dispatcher

	// DeliverTx executes an already authenticated transaction. The
	// transaction's nonce must be the account's next nonce.
	DeliverTx(ctx context.Context, tx *types.Transaction) (*Receipt, error)
}

// State keys understood by QueryState.
const (
	StateKeyNonce    uint64 = 0
	StateKeyTreasure uint64 = 1
	StateKeyMinted   uint64 = 2
	StateKeyClaimed  uint64 = 3
	StateKeyPlaced   uint64 = 4
)

// Event is a side effect reported in a receipt.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Receipt describes an accepted transaction.
type Receipt struct {
	Hash    string               `json:"hash"`
	Account types.AccountID      `json:"account"`
	Nonce   types.StringUint64   `json:"nonce"`
	Params  []types.StringUint64 `json:"params"`
	Command string               `json:"command"`
	Events  []Event              `json:"events,omitempty"`
}

// Transaction rebuilds the transaction the receipt is for.
func (r *Receipt) Transaction() *types.Transaction {
	params := make([]uint64, len(r.Params))
	for i, p := range r.Params {
		params[i] = uint64(p)
	}
	return types.NewTransaction(r.Account, uint64(r.Nonce), params)
}

// PlacedTower is a tower standing on the map.
type PlacedTower struct {
	Tile  types.StringUint64 `json:"tile"`
	Kind  types.StringUint64 `json:"kind"`
	Level types.StringUint64 `json:"level"`
	Owner types.AccountID    `json:"owner"`
}

// State is the answer to QueryState. Values holds one entry per requested
// key, in request order.
type State struct {
	Account  types.AccountID      `json:"account"`
	Nonce    types.StringUint64   `json:"nonce"`
	Treasure types.StringUint64   `json:"treasure"`
	Values   []types.StringUint64 `json:"values"`
	Minted   []types.StringUint64 `json:"minted"`
	Claimed  []types.StringUint64 `json:"claimed"`
	Towers   []PlacedTower        `json:"towers"`
}

// InventoryItem is one purchasable tower kind.
type InventoryItem struct {
	Cost            types.StringUint64 `json:"cost"`
	UpgradeModifier types.StringUint64 `json:"upgrade_modifier"`
	Level           types.StringUint64 `json:"level"`
}

// Config is the answer to QueryConfig.
type Config struct {
	MapWidth  types.StringUint64 `json:"map_width"`
	MapHeight types.StringUint64 `json:"map_height"`
	Inventory []InventoryItem    `json:"inventory"`
	Commands  map[string]uint32  `json:"commands"`
}

// SendError carries the transaction a failed send was for, so callers can
// journal it. It unwraps to the underlying error.
type SendError struct {
	Tx  *types.Transaction
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %s nonce %d: %v", e.Tx.Account, e.Tx.Nonce, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
