package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/tower-sdk/types"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(BackendMemory, "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func entryFor(t *testing.T, account types.AccountID, nonce uint64, cmd types.Command, idx uint64) Entry {
	t.Helper()
	tx, err := types.NewCommandTransaction(account, nonce, cmd, idx)
	require.NoError(t, err)
	return NewEntry(tx)
}

func TestJournal_RecordAndQuery(t *testing.T) {
	j := newTestJournal(t)

	mint := entryFor(t, "1234", 0, types.CmdMintTower, 1)
	claim := entryFor(t, "1234", 1, types.CmdClaimTower, 1)
	other := entryFor(t, "12345", 0, types.CmdMintTower, 2)

	// out of nonce order on purpose
	require.NoError(t, j.Record(claim))
	require.NoError(t, j.Record(mint))
	require.NoError(t, j.Record(other))

	got, err := j.Get(mint.Hash)
	require.NoError(t, err)
	assert.Equal(t, mint, got)
	assert.Equal(t, StatusPending, got.Status)

	got, err = j.ByNonce("1234", 1)
	require.NoError(t, err)
	assert.Equal(t, claim.Hash, got.Hash)

	_, err = j.ByNonce("1234", 7)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := j.List("1234")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(0), list[0].Nonce)
	assert.Equal(t, uint64(1), list[1].Nonce)

	// "1234" must not pick up "12345"
	list, err = j.List("12345")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, other.Hash, list[0].Hash)
}

func TestJournal_AttemptsShareNonce(t *testing.T) {
	j := newTestJournal(t)

	rejected := entryFor(t, "alice", 0, types.CmdClaimTower, 9)
	rejected.Status = StatusRejected
	rejected.Error = "tower not found"
	accepted := entryFor(t, "alice", 0, types.CmdMintTower, 0)
	accepted.Status = StatusAccepted
	next := entryFor(t, "alice", 1, types.CmdClaimTower, 0)

	require.NoError(t, j.Record(rejected))
	require.NoError(t, j.Record(accepted))
	require.NoError(t, j.Record(next))

	list, err := j.List("alice")
	require.NoError(t, err)
	require.Len(t, list, 3)
	hashes := []string{list[0].Hash, list[1].Hash}
	assert.ElementsMatch(t, []string{rejected.Hash, accepted.Hash}, hashes)
	assert.Equal(t, next.Hash, list[2].Hash)

	got, err := j.ByNonce("alice", 0)
	require.NoError(t, err)
	assert.Equal(t, accepted.Hash, got.Hash)

	// with no accepted attempt the recorded one is still found
	got, err = j.ByNonce("alice", 1)
	require.NoError(t, err)
	assert.Equal(t, next.Hash, got.Hash)

	// re-recording an attempt updates it in place
	rejected.Error = "tower 9 not found"
	require.NoError(t, j.Record(rejected))
	list, err = j.List("alice")
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestJournal_UpdateStatus(t *testing.T) {
	j := newTestJournal(t)
	e := entryFor(t, "1234", 0, types.CmdPlaceTower, 0)
	require.NoError(t, j.Record(e))

	e.Status = StatusAccepted
	e.Receipt = json.RawMessage(`{"success":true}`)
	require.NoError(t, j.Record(e))

	got, err := j.Get(e.Hash)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
	assert.JSONEq(t, `{"success":true}`, string(got.Receipt))
}

func TestJournal_RecordValidation(t *testing.T) {
	j := newTestJournal(t)
	e := entryFor(t, "1234", 0, types.CmdMintTower, 0)

	bad := e
	bad.Hash = "not-hex"
	assert.ErrorIs(t, j.Record(bad), ErrInvalidKey)

	bad = e
	bad.Hash = ""
	assert.ErrorIs(t, j.Record(bad), ErrInvalidKey)

	bad = e
	bad.Account = ""
	assert.ErrorIs(t, j.Record(bad), types.ErrInvalidAccount)
}

func TestJournal_Proofs(t *testing.T) {
	j := newTestJournal(t)
	e := entryFor(t, "1234", 0, types.CmdMintTower, 3)
	require.NoError(t, j.Record(e))

	_, err := j.Prove(e.Hash)
	assert.ErrorIs(t, err, ErrNotCommitted)

	root, version, err := j.Commit()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	proof, err := j.Prove(e.Hash)
	require.NoError(t, err)
	assert.Equal(t, root, proof.Root)
	assert.True(t, VerifyEntry(root, proof, e))

	t.Run("tampered entry fails", func(t *testing.T) {
		forged := e
		forged.Params = []uint64{types.MustCreateCommand(types.CmdMintTower, 4)}
		assert.False(t, VerifyEntry(root, proof, forged))
	})

	t.Run("wrong root fails", func(t *testing.T) {
		other := append([]byte(nil), root...)
		other[0] ^= 0xff
		assert.False(t, VerifyEntry(other, proof, e))
	})

	t.Run("changed since commit", func(t *testing.T) {
		e2 := e
		e2.Status = StatusAccepted
		require.NoError(t, j.Record(e2))
		_, err := j.Prove(e.Hash)
		assert.ErrorIs(t, err, ErrNotCommitted)

		root2, _, err := j.Commit()
		require.NoError(t, err)
		proof, err := j.Prove(e.Hash)
		require.NoError(t, err)
		assert.True(t, VerifyEntry(root2, proof, e2))
		assert.False(t, VerifyEntry(root2, proof, e))
	})

	t.Run("unknown hash", func(t *testing.T) {
		_, err := j.Prove("abcd")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	assert.False(t, VerifyEntry(root, nil, e))
}

func TestJSONSerializer_RejectsUnknownFields(t *testing.T) {
	_, err := NewJSONSerializer[Entry]().Unmarshal([]byte(`{"hash":"ab","surprise":1}`))
	assert.Error(t, err)
}
