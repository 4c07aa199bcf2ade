package towertesting_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/tower-sdk/crypto"
	"github.com/blockberries/tower-sdk/game"
	"github.com/blockberries/tower-sdk/rpc"
	towertesting "github.com/blockberries/tower-sdk/testing"
	"github.com/blockberries/tower-sdk/types"
)

// TestServer_Example shows the usual pattern: start a server, take a client,
// drive it and inspect the engine directly.
func TestServer_Example(t *testing.T) {
	srv := towertesting.NewServer(t, game.Options{})
	client := srv.Client(t, crypto.AlgorithmSecp256k1)
	ctx := context.Background()

	r, err := client.SendTransaction(ctx, towertesting.Params(types.CmdMintTower, 0), "1234")
	require.NoError(t, err)
	towertesting.AssertSignDocValid(t, r.Transaction(), towertesting.AppID)

	st, err := srv.Engine.QueryState(ctx, []uint64{rpc.StateKeyMinted}, "1234")
	require.NoError(t, err)
	assert.Equal(t, []types.StringUint64{1}, st.Values)
}
