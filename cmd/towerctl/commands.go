package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blockberries/tower-sdk/config"
	"github.com/blockberries/tower-sdk/rpc"
	"github.com/blockberries/tower-sdk/types"
)

// sendOne loads the configuration, dispatches a single command word plus args
// for the configured account and prints the receipt. name is resolved against
// the loaded configuration.
func sendOne(ctx context.Context, e *env, c *commonFlags, name string, idx uint64, args ...uint64) error {
	a, err := e.load(c)
	if err != nil {
		return err
	}
	defer a.Close()

	cmd, err := resolveCommand(a.cfg, name)
	if err != nil {
		return err
	}
	word, err := types.CreateCommand(cmd, idx)
	if err != nil {
		return usageError{msg: err.Error()}
	}
	account, err := a.account()
	if err != nil {
		return err
	}
	client, err := a.client()
	if err != nil {
		return err
	}
	seq, journal, err := a.sequencer(client, rpc.ModeSequential)
	if err != nil {
		return err
	}
	defer a.commit(journal)

	results, err := seq.Run(ctx, []rpc.Call{{Params: append([]uint64{word}, args...), Account: account}})
	if err != nil {
		return err
	}
	return a.print(results[0].Receipt)
}

func runMint(ctx context.Context, e *env, args []string) error {
	fs, c := e.flags(e.name)
	id := fs.Uint64("id", 0, "tower id")
	if err := e.parse(fs, args); err != nil {
		return err
	}
	return sendOne(ctx, e, c, "mint", *id)
}

func runClaim(ctx context.Context, e *env, args []string) error {
	fs, c := e.flags(e.name)
	id := fs.Uint64("id", 0, "tower id")
	if err := e.parse(fs, args); err != nil {
		return err
	}
	return sendOne(ctx, e, c, "claim", *id)
}

func runPlace(ctx context.Context, e *env, args []string) error {
	fs, c := e.flags(e.name)
	kind := fs.Uint64("kind", 0, "inventory slot")
	x := fs.Uint("x", 0, "column")
	y := fs.Uint("y", 0, "row")
	if err := e.parse(fs, args); err != nil {
		return err
	}
	pos, err := position(*x, *y)
	if err != nil {
		return err
	}
	return sendOne(ctx, e, c, "place", *kind, pos)
}

func runDrop(ctx context.Context, e *env, args []string) error {
	fs, c := e.flags(e.name)
	tile := fs.Uint64("tile", 0, "tile index")
	if err := e.parse(fs, args); err != nil {
		return err
	}
	return sendOne(ctx, e, c, "drop", *tile)
}

func runUpgrade(ctx context.Context, e *env, args []string) error {
	fs, c := e.flags(e.name)
	slot := fs.Uint64("slot", 0, "inventory slot")
	if err := e.parse(fs, args); err != nil {
		return err
	}
	return sendOne(ctx, e, c, "upgrade", *slot)
}

// resolveCommand maps a command name or decimal code to the code the
// configured server expects. "upgrade" follows upgrade_code. When upgrade_code
// takes over the shared code 4, the server has no drop command and "drop" is
// refused.
func resolveCommand(cfg config.Config, name string) (types.Command, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "upgrade":
		if cfg.UpgradeCode != 0 {
			return types.Command(cfg.UpgradeCode), nil
		}
		return types.CmdUpgradeTower, nil
	case "drop":
		if types.Command(cfg.UpgradeCode) == types.CmdDropTower {
			return 0, usagef("drop is unavailable: upgrade_code %d replaces it", cfg.UpgradeCode)
		}
		return types.CmdDropTower, nil
	}
	cmd, err := types.ParseCommand(name)
	if err != nil {
		return 0, usageError{msg: err.Error()}
	}
	return cmd, nil
}

func position(x, y uint) (uint64, error) {
	if uint64(x) > math.MaxUint32 || uint64(y) > math.MaxUint32 {
		return 0, usagef("position (%d,%d) does not fit in 32-bit coordinates", x, y)
	}
	return types.EncodePosition(uint32(x), uint32(y)), nil
}

// batchCall is one entry of a batch file.
type batchCall struct {
	Command string   `yaml:"command"`
	Index   uint64   `yaml:"index"`
	Args    []uint64 `yaml:"args"`
	Account string   `yaml:"account"`
}

func runBatch(ctx context.Context, e *env, args []string) error {
	fs, c := e.flags(e.name)
	file := fs.String("file", "", "YAML list of {command, index, args, account}")
	if err := e.parse(fs, args); err != nil {
		return err
	}
	if *file == "" {
		return usagef("-file is required")
	}

	a, err := e.load(c)
	if err != nil {
		return err
	}
	defer a.Close()

	raw, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	var entries []batchCall
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse %s: %w", *file, err)
	}

	calls := make([]rpc.Call, len(entries))
	for i, entry := range entries {
		cmd, err := resolveCommand(a.cfg, entry.Command)
		if err != nil {
			return usagef("call %d: %v", i, err)
		}
		word, err := types.CreateCommand(cmd, entry.Index)
		if err != nil {
			return fmt.Errorf("call %d: %w", i, err)
		}
		account := types.AccountID(entry.Account)
		if account == "" {
			if account, err = a.account(); err != nil {
				return err
			}
		}
		calls[i] = rpc.Call{Params: append([]uint64{word}, entry.Args...), Account: types.NormalizeAccount(string(account))}
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	seq, journal, err := a.sequencer(client, a.cfg.DispatchMode())
	if err != nil {
		return err
	}
	defer a.commit(journal)

	results, runErr := seq.Run(ctx, calls)
	type line struct {
		Index   int          `json:"index"`
		Receipt *rpc.Receipt `json:"receipt,omitempty"`
		Error   string       `json:"error,omitempty"`
	}
	out := make([]line, len(results))
	for i, r := range results {
		out[i] = line{Index: r.Index, Receipt: r.Receipt}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	if err := a.print(out); err != nil {
		return err
	}
	return runErr
}

func runState(ctx context.Context, e *env, args []string) error {
	fs, c := e.flags(e.name)
	keyList := fs.String("keys", "0,1,2,3,4", "comma separated state keys")
	if err := e.parse(fs, args); err != nil {
		return err
	}
	keys, err := parseKeys(*keyList)
	if err != nil {
		return err
	}

	a, err := e.load(c)
	if err != nil {
		return err
	}
	defer a.Close()
	account, err := a.account()
	if err != nil {
		return err
	}
	client, err := a.client()
	if err != nil {
		return err
	}
	st, err := client.QueryState(ctx, keys, account)
	if err != nil {
		return err
	}
	return a.print(st)
}

func parseKeys(s string) ([]uint64, error) {
	if strings.TrimSpace(s) == "" {
		return []uint64{}, nil
	}
	parts := strings.Split(s, ",")
	keys := make([]uint64, len(parts))
	for i, p := range parts {
		k, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, usagef("bad state key %q", p)
		}
		keys[i] = k
	}
	return keys, nil
}

func runConfig(ctx context.Context, e *env, args []string) error {
	fs, c := e.flags(e.name)
	if err := e.parse(fs, args); err != nil {
		return err
	}
	a, err := e.load(c)
	if err != nil {
		return err
	}
	defer a.Close()
	client, err := a.client()
	if err != nil {
		return err
	}
	cfg, err := client.QueryConfig(ctx)
	if err != nil {
		return err
	}
	return a.print(cfg)
}

// demoReport is what demo prints.
type demoReport struct {
	Mint   *rpc.Receipt `json:"mint"`
	Claim  *rpc.Receipt `json:"claim"`
	State  *rpc.State   `json:"state"`
	Config *rpc.Config  `json:"config"`
	Place  *rpc.Receipt `json:"place"`
}

// runDemo mints and claims a tower, reads state and config, then places the
// tower. Each step waits for the previous one.
func runDemo(ctx context.Context, e *env, args []string) error {
	fs, c := e.flags(e.name)
	id := fs.Uint64("id", 0, "tower id, also used as the inventory slot to place")
	x := fs.Uint("x", 0, "column")
	y := fs.Uint("y", 0, "row")
	if err := e.parse(fs, args); err != nil {
		return err
	}
	pos, err := position(*x, *y)
	if err != nil {
		return err
	}

	a, err := e.load(c)
	if err != nil {
		return err
	}
	defer a.Close()
	account, err := a.account()
	if err != nil {
		return err
	}
	client, err := a.client()
	if err != nil {
		return err
	}
	seq, journal, err := a.sequencer(client, rpc.ModeSequential)
	if err != nil {
		return err
	}
	defer a.commit(journal)

	var report demoReport
	results, err := seq.Run(ctx, []rpc.Call{
		{Params: []uint64{types.MustCreateCommand(types.CmdMintTower, *id)}, Account: account},
		{Params: []uint64{types.MustCreateCommand(types.CmdClaimTower, *id)}, Account: account},
	})
	if err != nil {
		return err
	}
	report.Mint, report.Claim = results[0].Receipt, results[1].Receipt

	if report.State, err = client.QueryState(ctx, []uint64{rpc.StateKeyNonce, rpc.StateKeyTreasure}, account); err != nil {
		return err
	}
	if report.Config, err = client.QueryConfig(ctx); err != nil {
		return err
	}
	a.logger.Info("demo state", "nonce", uint64(report.State.Nonce), "treasure", uint64(report.State.Treasure),
		"map", fmt.Sprintf("%dx%d", report.Config.MapWidth, report.Config.MapHeight))

	results, err = seq.Run(ctx, []rpc.Call{
		{Params: []uint64{types.MustCreateCommand(types.CmdPlaceTower, *id), pos}, Account: account},
	})
	if err != nil {
		return err
	}
	report.Place = results[0].Receipt
	return a.print(report)
}
