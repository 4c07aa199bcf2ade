// Package game is an in-process tower defense state machine. It implements
// rpc.Backend so the SDK can be played and tested without a remote server.
//
// It covers the transaction surface only: treasure, inventory, tower
// ownership and placement, and nonces. The wave simulation that a game
// server runs between transactions is not modeled. Neither is the map's
// path, spawner and collector layout, so every in-map tile accepts a tower.
package game

import (
	"errors"
	"fmt"

	"github.com/blockberries/tower-sdk/types"
)

// Map and economy constants.
const (
	MapWidth  = 12
	MapHeight = 8

	InitialTreasure     = 100
	BaseTowerCost       = 20
	UpgradeCostModifier = 2
)

var (
	ErrBadNonce             = errors.New("bad nonce")
	ErrInsufficientTreasure = errors.New("insufficient treasure")
	ErrNoInventory          = errors.New("no such inventory slot")
	ErrOutOfMap             = errors.New("position outside the map")
	ErrTileOccupied         = errors.New("tile occupied")
	ErrTowerExists          = errors.New("tower already minted")
	ErrTowerNotFound        = errors.New("tower not found")
	ErrNotOwner             = errors.New("not the owner")
	ErrAlreadyClaimed       = errors.New("tower already claimed")
	ErrUnknownStateKey      = errors.New("unknown state key")
)

// Direction is the way a tower faces.
type Direction uint8

const (
	Top Direction = iota
	Left
	Right
	Bottom
)

func (d Direction) String() string {
	switch d {
	case Top:
		return "top"
	case Left:
		return "left"
	case Right:
		return "right"
	case Bottom:
		return "bottom"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// InventoryItem is a purchasable tower kind.
type InventoryItem struct {
	Direction       Direction
	Cost            uint64
	UpgradeModifier uint64
	Level           uint64
}

// DefaultInventory returns one level-1 tower per direction.
func DefaultInventory() []InventoryItem {
	dirs := []Direction{Top, Left, Right, Bottom}
	inv := make([]InventoryItem, len(dirs))
	for i, d := range dirs {
		inv[i] = InventoryItem{
			Direction:       d,
			Cost:            BaseTowerCost,
			UpgradeModifier: UpgradeCostModifier,
			Level:           1,
		}
	}
	return inv
}

// Tower is a tower standing on a tile.
type Tower struct {
	Tile  uint64
	Kind  uint64
	Level uint64
	Owner types.AccountID
}

// Player is per-account state.
type Player struct {
	Nonce   uint64
	Minted  map[uint64]struct{}
	Claimed map[uint64]struct{}
}

func newPlayer() *Player {
	return &Player{
		Minted:  make(map[uint64]struct{}),
		Claimed: make(map[uint64]struct{}),
	}
}

// TileIndex converts a coordinate to a tile index, row-major.
func TileIndex(x, y uint32) (uint64, error) {
	if x >= MapWidth || y >= MapHeight {
		return 0, fmt.Errorf("%w: (%d,%d) on a %dx%d map", ErrOutOfMap, x, y, MapWidth, MapHeight)
	}
	return uint64(x) + uint64(y)*MapWidth, nil
}
