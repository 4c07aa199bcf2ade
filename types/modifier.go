package types

import (
	"fmt"
	"math/big"
)

const (
	// ModifierBits is the width of one packed modifier.
	ModifierBits = 8

	// MaxModifierValue is the largest value a single modifier may take.
	MaxModifierValue = 1<<ModifierBits - 1

	// MaxModifiers is the longest modifier list that fits a 64-bit word.
	MaxModifiers = 64 / ModifierBits
)

// EncodeModifier packs an ordered list of byte-sized modifiers into one word,
// most significant first. It is the big-endian base-256 concatenation of the
// list: EncodeModifier([1, 2]) == 258.
//
// Fails with ErrOutOfRange when a modifier exceeds MaxModifierValue or when the
// list is longer than MaxModifiers. Use EncodeModifierBig for longer lists.
func EncodeModifier(modifiers []uint64) (uint64, error) {
	if len(modifiers) > MaxModifiers {
		return 0, fmt.Errorf("%w: %d modifiers exceed the %d that fit a word", ErrOutOfRange, len(modifiers), MaxModifiers)
	}
	var word uint64
	for i, m := range modifiers {
		if m > MaxModifierValue {
			return 0, fmt.Errorf("%w: modifier %d is %d, max %d", ErrOutOfRange, i, m, MaxModifierValue)
		}
		word = word<<ModifierBits + m
	}
	return word, nil
}

// EncodeModifierBig is EncodeModifier without the length limit.
func EncodeModifierBig(modifiers []uint64) (*big.Int, error) {
	word := new(big.Int)
	m := new(big.Int)
	for i, v := range modifiers {
		if v > MaxModifierValue {
			return nil, fmt.Errorf("%w: modifier %d is %d, max %d", ErrOutOfRange, i, v, MaxModifierValue)
		}
		word.Lsh(word, ModifierBits)
		word.Add(word, m.SetUint64(v))
	}
	return word, nil
}

// DecodeModifier unpacks n modifiers from word. It fails when n is outside
// [0, MaxModifiers] or when word carries bits beyond the n requested bytes.
func DecodeModifier(word uint64, n int) ([]uint64, error) {
	if n < 0 || n > MaxModifiers {
		return nil, fmt.Errorf("%w: cannot decode %d modifiers", ErrOutOfRange, n)
	}
	if n < MaxModifiers && word>>(uint(n)*ModifierBits) != 0 {
		return nil, fmt.Errorf("%w: word %#x has more than %d modifiers", ErrOutOfRange, word, n)
	}
	out := make([]uint64, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = word & MaxModifierValue
		word >>= ModifierBits
	}
	return out, nil
}

// EncodePosition packs a map coordinate as (x << 32) + y.
func EncodePosition(x, y uint32) uint64 {
	return uint64(x)<<32 + uint64(y)
}

// DecodePosition is the inverse of EncodePosition.
func DecodePosition(pos uint64) (x, y uint32) {
	return uint32(pos >> 32), uint32(pos)
}
