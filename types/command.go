package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Command identifies a game action. The numeric values are part of the wire
// format and must match the application server exactly.
type Command uint32

const (
	// CmdPlaceTower places an inventory tower on a map tile.
	CmdPlaceTower Command = 1

	// CmdClaimTower claims a previously minted tower.
	CmdClaimTower Command = 2

	// CmdMintTower mints a new tower id for the sending account.
	CmdMintTower Command = 3

	// CmdDropTower removes a placed tower from the map.
	CmdDropTower Command = 4

	// CmdUpgradeTower upgrades an inventory slot.
	//
	// NOTE: shares its value with CmdDropTower. The server owns the command
	// table; until it assigns a distinct code, a word carrying 4 is read as a drop.
	CmdUpgradeTower Command = 4
)

const (
	// ObjectIndexBits is the width of the object index field of a command word.
	ObjectIndexBits = 32

	// MaxObjectIndex is the largest object index a command word can carry.
	MaxObjectIndex = 1<<ObjectIndexBits - 1
)

// commandNames maps symbolic CLI names to codes. "upgrade" resolves to the
// shared code 4.
var commandNames = map[string]Command{
	"place":   CmdPlaceTower,
	"claim":   CmdClaimTower,
	"mint":    CmdMintTower,
	"drop":    CmdDropTower,
	"upgrade": CmdUpgradeTower,
}

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdPlaceTower:
		return "place_tower"
	case CmdClaimTower:
		return "claim_tower"
	case CmdMintTower:
		return "mint_tower"
	case CmdDropTower:
		return "drop_tower"
	default:
		return "command(" + strconv.FormatUint(uint64(c), 10) + ")"
	}
}

// IsKnown reports whether c is one of the declared command codes.
func (c Command) IsKnown() bool {
	switch c {
	case CmdPlaceTower, CmdClaimTower, CmdMintTower, CmdDropTower:
		return true
	default:
		return false
	}
}

// ParseCommand accepts a symbolic name ("mint", "place", ...) or a decimal code.
// Negative or oversized decimal input fails with ErrOutOfRange.
func ParseCommand(s string) (Command, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := commandNames[s]; ok {
		return c, nil
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: command %q is negative", ErrOutOfRange, s)
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: command %q exceeds 32 bits", ErrOutOfRange, s)
		}
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
	return Command(v), nil
}

// CreateCommand packs a command code and an object index into one word:
// (command << 32) + objectIndex.
//
// Fails with ErrOutOfRange when objectIndex does not fit in 32 bits; no
// partially corrupted word is ever returned.
func CreateCommand(command Command, objectIndex uint64) (uint64, error) {
	if objectIndex > MaxObjectIndex {
		return 0, fmt.Errorf("%w: object index %d exceeds %d bits", ErrOutOfRange, objectIndex, ObjectIndexBits)
	}
	return uint64(command)<<ObjectIndexBits + objectIndex, nil
}

// MustCreateCommand is like CreateCommand but panics on error.
// Intended for constant inputs in tests and fixtures.
func MustCreateCommand(command Command, objectIndex uint64) uint64 {
	word, err := CreateCommand(command, objectIndex)
	if err != nil {
		panic(err)
	}
	return word
}

// SplitCommand is the inverse of CreateCommand.
func SplitCommand(word uint64) (Command, uint64) {
	return Command(word >> ObjectIndexBits), word & MaxObjectIndex
}
