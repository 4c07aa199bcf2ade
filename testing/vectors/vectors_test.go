package vectors

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/tower-sdk/crypto"
	"github.com/blockberries/tower-sdk/types"
)

func TestVectors(t *testing.T) {
	f, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, f.Vectors)

	for _, v := range f.Vectors {
		t.Run(v.Name, func(t *testing.T) {
			tx, err := v.Input.Transaction()
			require.NoError(t, err)
			require.NoError(t, tx.ValidateShape())

			doc, err := tx.ToSignDoc(v.Input.AppID).ToJSON()
			require.NoError(t, err)
			assert.Equal(t, v.Expected.SignDocJSON, string(doc))

			signBytes, err := tx.SignBytes(v.Input.AppID)
			require.NoError(t, err)
			assert.Equal(t, v.Expected.SignBytesHex, hex.EncodeToString(signBytes))
			assert.Equal(t, v.Expected.TxHashHex, hex.EncodeToString(tx.Hash()))
			if v.Input.AppID == "" {
				assert.Equal(t, v.Expected.TxHashHex, v.Expected.SignBytesHex)
			}

			for name, kv := range v.Expected.Keys {
				t.Run(name, func(t *testing.T) {
					verifyKey(t, name, kv, v.Input.Account, signBytes)
				})
			}
		})
	}
}

func verifyKey(t *testing.T, name string, kv KeyVector, account string, signBytes []byte) {
	t.Helper()

	algo, err := crypto.ParseAlgorithm(name)
	require.NoError(t, err)
	signer, err := crypto.DeriveSigner(algo, types.AccountID(account))
	require.NoError(t, err)

	pub, err := hex.DecodeString(kv.PublicKeyHex)
	require.NoError(t, err)
	assert.Equal(t, pub, signer.PublicKey().Bytes())

	if kv.SignatureHex != "" {
		want, err := hex.DecodeString(kv.SignatureHex)
		require.NoError(t, err)
		assert.True(t, crypto.VerifyStrict(algo, pub, signBytes, want), "expected signature must verify")

		got, err := signer.Sign(signBytes)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		return
	}

	sig, err := signer.Sign(signBytes)
	require.NoError(t, err)
	assert.True(t, crypto.IsLowS(algo, sig))
	assert.True(t, crypto.VerifyStrict(algo, pub, signBytes, sig))
}

func TestRegenerate(t *testing.T) {
	f, err := Load()
	require.NoError(t, err)

	got, err := Regenerate(f)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestInput_Transaction(t *testing.T) {
	_, err := Input{Account: "a", Nonce: "-1", Params: []string{"1"}}.Transaction()
	assert.Error(t, err)
	_, err = Input{Account: "a", Nonce: "0", Params: []string{"18446744073709551616"}}.Transaction()
	assert.Error(t, err)
}
