package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCommandTransaction(t *testing.T) {
	t.Run("packs command word and args", func(t *testing.T) {
		tx, err := NewCommandTransaction("1234", 3, CmdPlaceTower, 1, EncodePosition(2, 5))
		require.NoError(t, err)
		assert.Equal(t, []uint64{uint64(1)<<32 + 1, EncodePosition(2, 5)}, tx.Params)

		cmd, idx := tx.Command()
		assert.Equal(t, CmdPlaceTower, cmd)
		assert.Equal(t, uint64(1), idx)
		assert.Equal(t, EncodePosition(2, 5), tx.Arg(0))
		assert.Zero(t, tx.Arg(1))
	})

	t.Run("too many args", func(t *testing.T) {
		_, err := NewCommandTransaction("1234", 0, CmdMintTower, 0, 1, 2, 3, 4)
		assert.ErrorIs(t, err, ErrOutOfRange)
	})

	t.Run("object index overflow", func(t *testing.T) {
		_, err := NewCommandTransaction("1234", 0, CmdMintTower, 1<<32)
		assert.ErrorIs(t, err, ErrOutOfRange)
	})
}

func TestNewTransaction_DefensiveCopy(t *testing.T) {
	params := []uint64{MustCreateCommand(CmdMintTower, 0)}
	tx := NewTransaction("1234", 0, params)
	params[0] = 99
	assert.Equal(t, MustCreateCommand(CmdMintTower, 0), tx.Params[0])
}

func TestTransaction_ValidateBasic(t *testing.T) {
	valid := func() *Transaction {
		tx, err := NewCommandTransaction("1234", 0, CmdMintTower, 0)
		require.NoError(t, err)
		return tx
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid().ValidateBasic())
	})

	t.Run("nil", func(t *testing.T) {
		var tx *Transaction
		assert.ErrorIs(t, tx.ValidateBasic(), ErrInvalidTransaction)
	})

	t.Run("bad account", func(t *testing.T) {
		tx := valid()
		tx.Account = ""
		err := tx.ValidateBasic()
		assert.ErrorIs(t, err, ErrInvalidTransaction)
	})

	t.Run("no params", func(t *testing.T) {
		tx := valid()
		tx.Params = nil
		assert.ErrorIs(t, tx.ValidateBasic(), ErrInvalidTransaction)
	})

	t.Run("too many params", func(t *testing.T) {
		tx := valid()
		tx.Params = append(tx.Params, 1, 2, 3, 4)
		assert.ErrorIs(t, tx.ValidateBasic(), ErrInvalidTransaction)
	})

	t.Run("unknown command", func(t *testing.T) {
		tx := valid()
		tx.Params[0] = MustCreateCommand(Command(9), 0)
		err := tx.ValidateBasic()
		assert.ErrorIs(t, err, ErrInvalidTransaction)
		assert.ErrorIs(t, err, ErrUnknownCommand)
	})

	t.Run("shape ignores command table", func(t *testing.T) {
		tx := valid()
		tx.Params[0] = MustCreateCommand(Command(9), 0)
		assert.NoError(t, tx.ValidateShape())
	})
}

func TestSignDoc_Canonical(t *testing.T) {
	tx, err := NewCommandTransaction("1234", 7, CmdClaimTower, 0)
	require.NoError(t, err)

	data, err := tx.ToSignDoc("towers").ToJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"version":"1","app_id":"towers","account":"1234","nonce":"7","params":["8589934592"]}`,
		string(data))

	t.Run("roundtrip is byte identical", func(t *testing.T) {
		require.NoError(t, tx.ValidateSignDocRoundtrip("towers"))
	})

	t.Run("max uint64 survives", func(t *testing.T) {
		tx := NewTransaction("1234", ^uint64(0), []uint64{^uint64(0)})
		data, err := tx.ToSignDoc("x").ToJSON()
		require.NoError(t, err)
		parsed, err := ParseSignDoc(data)
		require.NoError(t, err)
		assert.Equal(t, StringUint64(^uint64(0)), parsed.Nonce)
		assert.True(t, parsed.Equals(tx.ToSignDoc("x")))
	})

	t.Run("html characters are not escaped differently", func(t *testing.T) {
		tx := NewTransaction("a<b>&c", 0, []uint64{1})
		require.NoError(t, tx.ValidateSignDocRoundtrip(""))
	})

	t.Run("sign bytes are sha256 of json", func(t *testing.T) {
		got, err := tx.SignBytes("towers")
		require.NoError(t, err)
		want := sha256.Sum256(data)
		assert.Equal(t, want[:], got)
	})

	t.Run("app id changes sign bytes but not hash", func(t *testing.T) {
		a, err := tx.SignBytes("a")
		require.NoError(t, err)
		b, err := tx.SignBytes("b")
		require.NoError(t, err)
		assert.False(t, bytes.Equal(a, b))
		assert.Len(t, tx.Hash(), sha256.Size)
	})
}

func TestSignDoc_ValidateBasic(t *testing.T) {
	sd := &SignDoc{Version: SignDocVersion, Account: "1234", Params: []StringUint64{1}}
	require.NoError(t, sd.ValidateBasic())

	bad := *sd
	bad.Version = "2"
	assert.ErrorIs(t, bad.ValidateBasic(), ErrSignDocMismatch)

	bad = *sd
	bad.Params = make([]StringUint64, MaxParams+1)
	assert.ErrorIs(t, bad.ValidateBasic(), ErrSignDocMismatch)

	bad = *sd
	bad.Account = ""
	assert.ErrorIs(t, bad.ValidateBasic(), ErrSignDocMismatch)
}

func TestStringUint64_RejectsNonCanonical(t *testing.T) {
	for _, in := range []string{`""`, `"-1"`, `"00"`, `"+1"`, `" 1"`, `1`, `"18446744073709551616"`} {
		var v StringUint64
		assert.Error(t, json.Unmarshal([]byte(in), &v), in)
	}

	var v StringUint64
	require.NoError(t, json.Unmarshal([]byte(`"0"`), &v))
	assert.Zero(t, v)
}
