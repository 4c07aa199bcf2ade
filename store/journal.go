package store

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"cosmossdk.io/log"
	ics23 "github.com/cosmos/ics23/go"

	"github.com/blockberries/tower-sdk/types"
)

// Status is the outcome of a journaled dispatch.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Entry is one journaled transaction.
type Entry struct {
	Hash    string          `json:"hash"`
	Account types.AccountID `json:"account"`
	Nonce   uint64          `json:"nonce"`
	Params  []uint64        `json:"params"`
	Status  Status          `json:"status"`
	Error   string          `json:"error,omitempty"`
	Receipt json.RawMessage `json:"receipt,omitempty"`
}

// NewEntry returns a pending entry for tx.
func NewEntry(tx *types.Transaction) Entry {
	return Entry{
		Hash:    hex.EncodeToString(tx.Hash()),
		Account: tx.Account,
		Nonce:   tx.Nonce,
		Params:  append([]uint64(nil), tx.Params...),
		Status:  StatusPending,
	}
}

// Proof is an ICS-23 membership proof of a journal entry against a
// committed root.
type Proof struct {
	Key     []byte                 `json:"key"`
	Value   []byte                 `json:"value"`
	Root    []byte                 `json:"root"`
	Version int64                  `json:"version"`
	Proof   *ics23.CommitmentProof `json:"proof"`
}

var (
	txPrefix    = []byte("tx/")
	noncePrefix = []byte("nonce/")
)

// Journal records dispatched transactions in an IAVL store.
//
// Layout:
//
//	tx/<hex hash>                                 -> JSON Entry
//	nonce/<account> 0x00 <nonce BE64> <hex hash>  -> hex hash
//
// Account ids never contain control characters, so 0x00 cleanly ends the
// account and keeps one account's nonces contiguous and ordered. A nonce can
// carry several attempts: a rejected send frees its nonce for the next one.
type Journal struct {
	mu     sync.Mutex
	store  *IAVLStore
	txs    *PrefixStore
	nonces *PrefixStore
	codec  Serializer[Entry]
	logger log.Logger
}

// NewJournal creates a journal on s. The journal owns s.
func NewJournal(s *IAVLStore, logger log.Logger) *Journal {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Journal{
		store:  s,
		txs:    NewPrefixStore(s, txPrefix),
		nonces: NewPrefixStore(s, noncePrefix),
		codec:  NewJSONSerializer[Entry](),
		logger: logger.With("module", "journal"),
	}
}

// OpenJournal opens a journal on the given database backend.
func OpenJournal(backend, dir string, logger log.Logger) (*Journal, error) {
	s, err := OpenIAVLStore(backend, dir, logger)
	if err != nil {
		return nil, err
	}
	return NewJournal(s, logger), nil
}

// Record writes e, replacing any earlier entry with the same hash.
func (j *Journal) Record(e Entry) error {
	if _, err := hex.DecodeString(e.Hash); err != nil || e.Hash == "" {
		return fmt.Errorf("%w: entry hash %q", ErrInvalidKey, e.Hash)
	}
	if err := e.Account.Validate(); err != nil {
		return err
	}

	value, err := j.codec.Marshal(e)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.txs.Set([]byte(e.Hash), value); err != nil {
		return err
	}
	if err := j.nonces.Set(nonceKey(e.Account, e.Nonce, e.Hash), []byte(e.Hash)); err != nil {
		return err
	}
	j.logger.Debug("journaled", "hash", e.Hash, "account", e.Account, "nonce", e.Nonce, "status", e.Status)
	return nil
}

// Get returns the entry with the given hex hash.
func (j *Journal) Get(hash string) (Entry, error) {
	raw, err := j.txs.Get([]byte(hash))
	if err != nil {
		return Entry{}, err
	}
	return j.codec.Unmarshal(raw)
}

// ByNonce returns the entry recorded for account at nonce. When several
// attempts share the nonce, the accepted one wins; otherwise the first in
// hash order is returned.
func (j *Journal) ByNonce(account types.AccountID, nonce uint64) (Entry, error) {
	entries, err := j.scan(nonceKey(account, nonce, ""))
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrNotFound
	}
	for _, e := range entries {
		if e.Status == StatusAccepted {
			return e, nil
		}
	}
	return entries[0], nil
}

// List returns every recorded attempt for account in nonce order. Attempts
// at the same nonce are ordered by hash.
func (j *Journal) List(account types.AccountID) ([]Entry, error) {
	return j.scan(accountPrefix(account))
}

func (j *Journal) scan(start []byte) ([]Entry, error) {
	iter, err := j.nonces.Iterator(start, PrefixEnd(start))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Entry
	for ; iter.Valid(); iter.Next() {
		e, err := j.Get(string(iter.Value()))
		if err != nil {
			return nil, fmt.Errorf("nonce index points at %q: %w", iter.Value(), err)
		}
		out = append(out, e)
	}
	return out, iter.Error()
}

// Commit saves a new version and returns its root hash.
func (j *Journal) Commit() ([]byte, int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	root, version, err := j.store.SaveVersion()
	if err != nil {
		return nil, 0, err
	}
	j.logger.Info("journal committed", "version", version, "root", fmt.Sprintf("%X", root))
	return root, version, nil
}

// Prove returns a membership proof for the entry with the given hash as of
// the last Commit. Entries recorded after the last commit, or changed since,
// return ErrNotCommitted.
func (j *Journal) Prove(hash string) (*Proof, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	key := j.txs.Key([]byte(hash))
	cp, err := j.store.GetProof(key)
	if err != nil {
		return nil, err
	}
	current, err := j.store.Get(key)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	exist := cp.GetExist()
	if exist == nil || !bytes.Equal(exist.Value, current) {
		return nil, ErrNotCommitted
	}

	return &Proof{
		Key:     key,
		Value:   exist.Value,
		Root:    j.store.Hash(),
		Version: j.store.Version(),
		Proof:   cp,
	}, nil
}

// Close closes the underlying store.
func (j *Journal) Close() error {
	return j.store.Close()
}

// VerifyEntry reports whether p proves e under root.
func VerifyEntry(root []byte, p *Proof, e Entry) bool {
	if p == nil || p.Proof == nil {
		return false
	}
	value, err := NewJSONSerializer[Entry]().Marshal(e)
	if err != nil {
		return false
	}
	key := append(append([]byte(nil), txPrefix...), e.Hash...)
	return ics23.VerifyMembership(ics23.IavlSpec, root, p.Proof, key, value)
}

func accountPrefix(account types.AccountID) []byte {
	key := make([]byte, 0, len(account)+1)
	key = append(key, account...)
	return append(key, 0)
}

// nonceKey with an empty hash is the prefix of all attempts at nonce.
func nonceKey(account types.AccountID, nonce uint64, hash string) []byte {
	key := binary.BigEndian.AppendUint64(accountPrefix(account), nonce)
	return append(key, hash...)
}
