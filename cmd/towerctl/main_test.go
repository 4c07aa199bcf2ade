package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/tower-sdk/game"
	"github.com/blockberries/tower-sdk/rpc"
	towertesting "github.com/blockberries/tower-sdk/testing"
	"github.com/blockberries/tower-sdk/types"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func towerctl(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func newServer(t *testing.T) *towertesting.Server {
	t.Helper()
	return newServerWith(t, game.Options{})
}

func newServerWith(t *testing.T, opts game.Options) *towertesting.Server {
	t.Helper()
	t.Setenv("TOWER_CONFIG", "")
	t.Setenv("TOWER_APP_ID", towertesting.AppID)
	t.Setenv("TOWER_LOG_LEVEL", "error")
	srv := towertesting.NewServer(t, opts)
	t.Setenv("TOWER_ENDPOINT", srv.URL())
	return srv
}

func decode[T any](t *testing.T, r result) T {
	t.Helper()
	require.Equal(t, 0, r.code, r.stderr)
	var v T
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &v), r.stdout)
	return v
}

func TestRun_Usage(t *testing.T) {
	r := towerctl(t)
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.stderr, "usage: towerctl")

	r = towerctl(t, "launch")
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.stderr, `unknown command "launch"`)

	assert.Equal(t, 0, towerctl(t, "mint", "-h").code)
	assert.Equal(t, 2, towerctl(t, "mint", "-bogus").code)
	assert.Equal(t, 2, towerctl(t, "mint", "extra").code)
	assert.Equal(t, 2, towerctl(t, "key").code)
}

func TestRun_SendCommands(t *testing.T) {
	srv := newServer(t)

	r := decode[rpc.Receipt](t, towerctl(t, "mint", "-account", "1234", "-id", "5"))
	assert.Equal(t, "mint_tower", r.Command)
	assert.Equal(t, types.StringUint64(0), r.Nonce)

	r = decode[rpc.Receipt](t, towerctl(t, "claim", "-account", "1234", "-id", "5"))
	assert.Equal(t, "claim_tower", r.Command)

	r = decode[rpc.Receipt](t, towerctl(t, "place", "-account", "1234", "-kind", "2", "-x", "4", "-y", "1"))
	assert.Equal(t, "place_tower", r.Command)

	r = decode[rpc.Receipt](t, towerctl(t, "drop", "-account", "1234", "-tile", "16"))
	assert.Equal(t, "drop_tower", r.Command)

	// code 4 without a configured upgrade code is a drop on an empty tile
	failed := towerctl(t, "upgrade", "-account", "1234", "-slot", "0")
	assert.Equal(t, 1, failed.code)
	assert.Contains(t, failed.stderr, "rejected")

	st := decode[rpc.State](t, towerctl(t, "state", "-account", "1234", "-keys", "0,2,3"))
	assert.Equal(t, []types.StringUint64{4, 1, 1}, st.Values)
	assert.Empty(t, st.Towers)

	cfg := decode[rpc.Config](t, towerctl(t, "config"))
	assert.Equal(t, types.StringUint64(game.MapWidth), cfg.MapWidth)

	assert.Equal(t, uint64(game.InitialTreasure-game.BaseTowerCost), srv.Engine.Treasure())
}

func TestRun_UpgradeCodeReplacesDrop(t *testing.T) {
	srv := newServerWith(t, game.Options{UpgradeCode: types.CmdUpgradeTower})
	t.Setenv("TOWER_UPGRADE_CODE", "4")

	decode[rpc.Receipt](t, towerctl(t, "place", "-account", "1234", "-kind", "2", "-x", "2", "-y", "0"))
	treasure := srv.Engine.Treasure()

	r := towerctl(t, "drop", "-account", "1234", "-tile", "2")
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.stderr, "drop is unavailable")

	batch := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(batch, []byte("- {command: drop, index: 2}\n"), 0o600))
	r = towerctl(t, "batch", "-account", "1234", "-file", batch)
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.stderr, "drop is unavailable")

	// nothing was sent: the tower stands and slot 2 is untouched
	assert.Equal(t, treasure, srv.Engine.Treasure())
	assert.Equal(t, uint64(1), srv.Engine.Inventory()[2].Level)

	up := decode[rpc.Receipt](t, towerctl(t, "upgrade", "-account", "1234", "-slot", "2"))
	assert.Equal(t, "upgrade_tower", up.Command)
	assert.Equal(t, uint64(2), srv.Engine.Inventory()[2].Level)

	cfg := decode[rpc.Config](t, towerctl(t, "config"))
	assert.NotContains(t, cfg.Commands, "drop")
}

func TestRun_RequiresAccount(t *testing.T) {
	newServer(t)
	r := towerctl(t, "mint", "-id", "1")
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.stderr, "account is required")

	assert.Equal(t, 2, towerctl(t, "state", "-account", "a", "-keys", "x").code)
}

func TestRun_Demo(t *testing.T) {
	srv := newServer(t)

	report := decode[demoReport](t, towerctl(t, "demo", "-account", "1234", "-id", "0", "-x", "3", "-y", "2"))
	assert.Equal(t, types.StringUint64(0), report.Mint.Nonce)
	assert.Equal(t, types.StringUint64(1), report.Claim.Nonce)
	assert.Equal(t, types.StringUint64(2), report.State.Nonce)
	assert.Len(t, report.Config.Inventory, 4)
	assert.Equal(t, types.StringUint64(2), report.Place.Nonce)
	assert.Equal(t, types.EncodePosition(3, 2), uint64(report.Place.Params[1]))

	st, err := srv.Engine.QueryState(context.Background(), nil, "1234")
	require.NoError(t, err)
	require.Len(t, st.Towers, 1)
	assert.Equal(t, types.StringUint64(3+2*game.MapWidth), st.Towers[0].Tile)

	// the tower id is already minted
	assert.Equal(t, 1, towerctl(t, "demo", "-account", "1234").code)
}

func TestRun_BatchWithJournal(t *testing.T) {
	newServer(t)
	dir := t.TempDir()
	t.Setenv("TOWER_JOURNAL_BACKEND", "goleveldb")
	t.Setenv("TOWER_JOURNAL_DIR", dir)

	file := filepath.Join(t.TempDir(), "calls.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
- {command: mint, index: 1, account: alice}
- {command: mint, index: 2, account: bob}
- {command: claim, index: 1, account: alice}
- {command: "3", index: 3}
`), 0o600))

	type line struct {
		Index   int          `json:"index"`
		Receipt *rpc.Receipt `json:"receipt"`
		Error   string       `json:"error"`
	}
	lines := decode[[]line](t, towerctl(t, "batch", "-account", "carol", "-file", file))
	require.Len(t, lines, 4)
	for i, l := range lines {
		assert.Equal(t, i, l.Index)
		assert.Empty(t, l.Error)
	}
	assert.Equal(t, types.AccountID("carol"), lines[3].Receipt.Account)

	entries := decode[[]map[string]any](t, towerctl(t, "journal", "list", "-account", "alice"))
	require.Len(t, entries, 2)
	assert.Equal(t, "accepted", entries[0]["status"])

	type proof struct {
		Verified bool `json:"verified"`
	}
	p := decode[proof](t, towerctl(t, "journal", "prove", "-hash", lines[0].Receipt.Hash))
	assert.True(t, p.Verified)

	assert.Equal(t, 2, towerctl(t, "journal", "prove", "-hash", "zz").code)
}

func TestRun_BatchUnorderedFailure(t *testing.T) {
	newServer(t)
	t.Setenv("TOWER_MODE", "unordered")

	file := filepath.Join(t.TempDir(), "calls.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
- {command: mint, index: 1, account: alice}
- {command: claim, index: 9, account: bob}
- {command: mint, index: 2, account: carol}
`), 0o600))

	r := towerctl(t, "batch", "-file", file)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "call 1")
	assert.Contains(t, r.stdout, `"index": 2`)
}

func TestRun_FileKeyStore(t *testing.T) {
	newServer(t)
	t.Setenv("TOWER_KEYSTORE_KIND", "file")
	t.Setenv("TOWER_KEYSTORE_DIR", t.TempDir())
	t.Setenv("TOWER_PASSWORD", "correct horse")

	imported := decode[keyInfo](t, towerctl(t, "key", "import", "-account", "alice"))
	assert.Equal(t, "default", imported.Name)

	created := decode[keyInfo](t, towerctl(t, "key", "new", "-name", "spare"))
	assert.NotEqual(t, imported.PubKey, created.PubKey)

	keys := decode[[]keyInfo](t, towerctl(t, "key", "list"))
	require.Len(t, keys, 2)
	assert.Equal(t, "default", keys[0].Name)
	assert.Equal(t, imported.PubKey, keys[0].PubKey)

	// the imported key is alice's derived key, which the server accepts
	r := decode[rpc.Receipt](t, towerctl(t, "mint", "-account", "alice", "-id", "1"))
	assert.Equal(t, types.AccountID("alice"), r.Account)

	assert.Equal(t, 0, towerctl(t, "key", "delete", "-name", "spare").code)
	assert.Len(t, decode[[]keyInfo](t, towerctl(t, "key", "list")), 1)

	t.Setenv("TOWER_PASSWORD", "wrong")
	assert.Equal(t, 1, towerctl(t, "mint", "-account", "alice", "-id", "2").code)
}

func TestRun_MemoryKeyStore(t *testing.T) {
	newServer(t)
	t.Setenv("TOWER_KEYSTORE_KIND", "memory")
	t.Setenv("TOWER_ALGORITHM", "secp256k1")

	r := decode[rpc.Receipt](t, towerctl(t, "mint", "-account", "dave", "-id", "3"))
	assert.Equal(t, "mint_tower", r.Command)
}

func TestRun_Serve(t *testing.T) {
	t.Setenv("TOWER_CONFIG", "")
	t.Setenv("TOWER_LOG_LEVEL", "error")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"serve", "-listen", "127.0.0.1:0"}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
}
