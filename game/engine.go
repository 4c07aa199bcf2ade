package game

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/bits"
	"sort"
	"strconv"
	"sync"

	"cosmossdk.io/log"

	"github.com/blockberries/tower-sdk/rpc"
	"github.com/blockberries/tower-sdk/types"
)

// Options configures an Engine.
type Options struct {
	// UpgradeCode is the command code dispatched to UpgradeInventory. Zero
	// leaves code 4 meaning drop, since drop and upgrade share it. Setting it
	// to 4 makes code 4 an upgrade and leaves the engine without a drop.
	UpgradeCode types.Command

	// Treasure overrides InitialTreasure when non-zero.
	Treasure uint64

	// Inventory overrides DefaultInventory when non-nil.
	Inventory []InventoryItem

	Logger log.Logger
}

// Engine is the game state machine. All methods are safe for concurrent use;
// transactions are applied one at a time.
type Engine struct {
	mu sync.Mutex

	upgradeCode types.Command
	treasure    uint64
	inventory   []InventoryItem
	towers      map[uint64]*Tower          // by tile
	minted      map[uint64]types.AccountID // tower id -> minter
	players     map[types.AccountID]*Player

	logger log.Logger
}

// NewEngine creates an engine in its initial state.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		upgradeCode: opts.UpgradeCode,
		treasure:    InitialTreasure,
		inventory:   DefaultInventory(),
		towers:      make(map[uint64]*Tower),
		minted:      make(map[uint64]types.AccountID),
		players:     make(map[types.AccountID]*Player),
		logger:      opts.Logger,
	}
	if opts.Treasure != 0 {
		e.treasure = opts.Treasure
	}
	if opts.Inventory != nil {
		e.inventory = append([]InventoryItem(nil), opts.Inventory...)
	}
	if e.logger == nil {
		e.logger = log.NewNopLogger()
	}
	e.logger = e.logger.With("module", "game")
	return e
}

// SendTransaction applies params for account at the account's next nonce.
func (e *Engine) SendTransaction(ctx context.Context, params []uint64, account types.AccountID) (*rpc.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	account = types.NormalizeAccount(string(account))

	e.mu.Lock()
	defer e.mu.Unlock()

	var nonce uint64
	if p, ok := e.players[account]; ok {
		nonce = p.Nonce
	}
	tx := types.NewTransaction(account, nonce, params)
	receipt, err := e.deliver(tx)
	if err != nil {
		return nil, &rpc.SendError{Tx: tx, Err: err}
	}
	return receipt, nil
}

// DeliverTx applies an authenticated transaction.
func (e *Engine) DeliverTx(ctx context.Context, tx *types.Transaction) (*rpc.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deliver(tx)
}

// deliver must be called with mu held.
func (e *Engine) deliver(tx *types.Transaction) (*rpc.Receipt, error) {
	if err := tx.ValidateShape(); err != nil {
		return nil, reject(err)
	}

	player := e.players[tx.Account]
	if player == nil {
		player = newPlayer()
	}
	if tx.Nonce != player.Nonce {
		return nil, reject(fmt.Errorf("%w: got %d, want %d", ErrBadNonce, tx.Nonce, player.Nonce))
	}

	cmd, idx := tx.Command()
	name := cmd.String()
	var (
		events []rpc.Event
		err    error
	)
	switch {
	case e.upgradeCode != 0 && cmd == e.upgradeCode:
		name = "upgrade_tower"
		events, err = e.upgrade(idx)
	case cmd == types.CmdPlaceTower:
		events, err = e.place(tx.Account, idx, tx.Params[1:])
	case cmd == types.CmdClaimTower:
		events, err = e.claim(player, tx.Account, idx)
	case cmd == types.CmdMintTower:
		events, err = e.mint(player, tx.Account, idx)
	case cmd == types.CmdDropTower:
		events, err = e.drop(tx.Account, idx)
	default:
		err = fmt.Errorf("%w %d", types.ErrUnknownCommand, uint32(cmd))
	}
	if err != nil {
		e.logger.Debug("transaction rejected", "account", tx.Account, "nonce", tx.Nonce, "command", name, "err", err)
		return nil, reject(err)
	}

	player.Nonce++
	e.players[tx.Account] = player

	params := make([]types.StringUint64, len(tx.Params))
	for i, p := range tx.Params {
		params[i] = types.StringUint64(p)
	}
	e.logger.Info("transaction applied", "account", tx.Account, "nonce", tx.Nonce, "command", name, "treasure", e.treasure)
	return &rpc.Receipt{
		Hash:    hex.EncodeToString(tx.Hash()),
		Account: tx.Account,
		Nonce:   types.StringUint64(tx.Nonce),
		Params:  params,
		Command: name,
		Events:  events,
	}, nil
}

func reject(err error) error {
	return fmt.Errorf("%w: %w", types.ErrRejected, err)
}

func (e *Engine) mint(p *Player, account types.AccountID, id uint64) ([]rpc.Event, error) {
	if owner, ok := e.minted[id]; ok {
		return nil, fmt.Errorf("%w: tower %d minted by %s", ErrTowerExists, id, owner)
	}
	e.minted[id] = account
	p.Minted[id] = struct{}{}
	return []rpc.Event{event("mint", "tower", id)}, nil
}

func (e *Engine) claim(p *Player, account types.AccountID, id uint64) ([]rpc.Event, error) {
	owner, ok := e.minted[id]
	if !ok {
		return nil, fmt.Errorf("%w: tower %d", ErrTowerNotFound, id)
	}
	if owner != account {
		return nil, fmt.Errorf("%w: tower %d", ErrNotOwner, id)
	}
	if _, ok := p.Claimed[id]; ok {
		return nil, fmt.Errorf("%w: tower %d", ErrAlreadyClaimed, id)
	}
	p.Claimed[id] = struct{}{}
	return []rpc.Event{event("claim", "tower", id)}, nil
}

// place takes the packed position from args[0].
func (e *Engine) place(account types.AccountID, kind uint64, args []uint64) ([]rpc.Event, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: place needs a position argument", types.ErrInvalidTransaction)
	}
	pos := args[0]
	if kind >= uint64(len(e.inventory)) {
		return nil, fmt.Errorf("%w: %d", ErrNoInventory, kind)
	}
	item := e.inventory[kind]
	if item.Cost > e.treasure {
		return nil, fmt.Errorf("%w: cost %d, treasure %d", ErrInsufficientTreasure, item.Cost, e.treasure)
	}
	tile, err := TileIndex(types.DecodePosition(pos))
	if err != nil {
		return nil, err
	}
	if t, ok := e.towers[tile]; ok {
		return nil, fmt.Errorf("%w: tile %d holds %s's tower", ErrTileOccupied, tile, t.Owner)
	}

	e.treasure -= item.Cost
	e.towers[tile] = &Tower{Tile: tile, Kind: kind, Level: item.Level, Owner: account}

	ev := event("place", "tile", tile)
	ev.Attributes["kind"] = strconv.FormatUint(kind, 10)
	ev.Attributes["direction"] = item.Direction.String()
	ev.Attributes["treasure"] = strconv.FormatUint(e.treasure, 10)
	return []rpc.Event{ev}, nil
}

func (e *Engine) drop(account types.AccountID, tile uint64) ([]rpc.Event, error) {
	t, ok := e.towers[tile]
	if !ok {
		return nil, fmt.Errorf("%w: tile %d is empty", ErrTowerNotFound, tile)
	}
	if t.Owner != account {
		return nil, fmt.Errorf("%w: tile %d", ErrNotOwner, tile)
	}
	delete(e.towers, tile)
	return []rpc.Event{event("drop", "tile", tile)}, nil
}

// UpgradeInventory upgrades inventory slot idx, paying cost*modifier from the
// treasure. The slot's modifier is squared, its cost quadrupled and its level
// raised by one.
func (e *Engine) UpgradeInventory(idx uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.upgrade(idx)
	return err
}

func (e *Engine) upgrade(idx uint64) ([]rpc.Event, error) {
	if idx >= uint64(len(e.inventory)) {
		return nil, fmt.Errorf("%w: %d", ErrNoInventory, idx)
	}
	item := &e.inventory[idx]

	hi, upgradeCost := bits.Mul64(item.Cost, item.UpgradeModifier)
	if hi != 0 || upgradeCost > e.treasure {
		return nil, fmt.Errorf("%w: upgrade of slot %d costs %d*%d, treasure %d",
			ErrInsufficientTreasure, idx, item.Cost, item.UpgradeModifier, e.treasure)
	}
	hiMod, nextMod := bits.Mul64(item.UpgradeModifier, item.UpgradeModifier)
	hiCost, nextCost := bits.Mul64(item.Cost, 4)
	if hiMod != 0 || hiCost != 0 {
		return nil, fmt.Errorf("%w: slot %d cannot be upgraded further", types.ErrOutOfRange, idx)
	}

	e.treasure -= upgradeCost
	item.UpgradeModifier = nextMod
	item.Cost = nextCost
	item.Level++

	ev := event("upgrade", "slot", idx)
	ev.Attributes["level"] = strconv.FormatUint(item.Level, 10)
	ev.Attributes["treasure"] = strconv.FormatUint(e.treasure, 10)
	return []rpc.Event{ev}, nil
}

// QueryState returns account's view of the game. keys select Values; see
// the rpc.StateKey constants.
func (e *Engine) QueryState(ctx context.Context, keys []uint64, account types.AccountID) (*rpc.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	account = types.NormalizeAccount(string(account))
	if err := account.Validate(); err != nil {
		return nil, reject(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.players[account]
	if p == nil {
		p = newPlayer()
	}

	placed := uint64(0)
	towers := make([]rpc.PlacedTower, 0, len(e.towers))
	for _, t := range e.towers {
		if t.Owner == account {
			placed++
		}
		towers = append(towers, rpc.PlacedTower{
			Tile:  types.StringUint64(t.Tile),
			Kind:  types.StringUint64(t.Kind),
			Level: types.StringUint64(t.Level),
			Owner: t.Owner,
		})
	}
	sort.Slice(towers, func(i, j int) bool { return towers[i].Tile < towers[j].Tile })

	values := make([]types.StringUint64, len(keys))
	for i, k := range keys {
		switch k {
		case rpc.StateKeyNonce:
			values[i] = types.StringUint64(p.Nonce)
		case rpc.StateKeyTreasure:
			values[i] = types.StringUint64(e.treasure)
		case rpc.StateKeyMinted:
			values[i] = types.StringUint64(len(p.Minted))
		case rpc.StateKeyClaimed:
			values[i] = types.StringUint64(len(p.Claimed))
		case rpc.StateKeyPlaced:
			values[i] = types.StringUint64(placed)
		default:
			return nil, reject(fmt.Errorf("%w: %d", ErrUnknownStateKey, k))
		}
	}

	return &rpc.State{
		Account:  account,
		Nonce:    types.StringUint64(p.Nonce),
		Treasure: types.StringUint64(e.treasure),
		Values:   values,
		Minted:   sortedIDs(p.Minted),
		Claimed:  sortedIDs(p.Claimed),
		Towers:   towers,
	}, nil
}

// QueryConfig returns the map size, inventory and command table.
func (e *Engine) QueryConfig(ctx context.Context) (*rpc.Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inv := make([]rpc.InventoryItem, len(e.inventory))
	for i, item := range e.inventory {
		inv[i] = rpc.InventoryItem{
			Cost:            types.StringUint64(item.Cost),
			UpgradeModifier: types.StringUint64(item.UpgradeModifier),
			Level:           types.StringUint64(item.Level),
		}
	}
	upgrade := types.CmdUpgradeTower
	if e.upgradeCode != 0 {
		upgrade = e.upgradeCode
	}
	commands := map[string]uint32{
		"place":   uint32(types.CmdPlaceTower),
		"claim":   uint32(types.CmdClaimTower),
		"mint":    uint32(types.CmdMintTower),
		"drop":    uint32(types.CmdDropTower),
		"upgrade": uint32(upgrade),
	}
	if e.upgradeCode == types.CmdDropTower {
		// code 4 is read as an upgrade, so there is no way to drop
		delete(commands, "drop")
	}
	return &rpc.Config{
		MapWidth:  MapWidth,
		MapHeight: MapHeight,
		Inventory: inv,
		Commands:  commands,
	}, nil
}

// Treasure returns the current treasure.
func (e *Engine) Treasure() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.treasure
}

// Inventory returns a copy of the inventory.
func (e *Engine) Inventory() []InventoryItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]InventoryItem(nil), e.inventory...)
}

func event(typ, key string, v uint64) rpc.Event {
	return rpc.Event{Type: typ, Attributes: map[string]string{key: strconv.FormatUint(v, 10)}}
}

func sortedIDs(set map[uint64]struct{}) []types.StringUint64 {
	ids := make([]types.StringUint64, 0, len(set))
	for id := range set {
		ids = append(ids, types.StringUint64(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

var _ rpc.Backend = (*Engine)(nil)
