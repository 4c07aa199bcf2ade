package types

import (
	"math/big"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeModifier(t *testing.T) {
	tests := []struct {
		name      string
		modifiers []uint64
		want      uint64
	}{
		{"empty list", nil, 0},
		{"single", []uint64{5}, 5},
		{"two bytes", []uint64{1, 2}, 258},
		{"leading zero", []uint64{0, 7}, 7},
		{"max byte", []uint64{255}, 255},
		{"three bytes", []uint64{1, 2, 3}, 1<<16 + 2<<8 + 3},
		{"full word", []uint64{255, 255, 255, 255, 255, 255, 255, 255}, ^uint64(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeModifier(tt.modifiers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeModifier_OutOfRange(t *testing.T) {
	t.Run("modifier of 256", func(t *testing.T) {
		word, err := EncodeModifier([]uint64{256})
		assert.ErrorIs(t, err, ErrOutOfRange)
		assert.Zero(t, word)
	})

	t.Run("bad modifier after good ones", func(t *testing.T) {
		word, err := EncodeModifier([]uint64{1, 2, 1000})
		assert.ErrorIs(t, err, ErrOutOfRange)
		assert.Zero(t, word, "no partial word on failure")
	})

	t.Run("too many modifiers", func(t *testing.T) {
		_, err := EncodeModifier(make([]uint64, MaxModifiers+1))
		assert.ErrorIs(t, err, ErrOutOfRange)
	})
}

func TestEncodeModifierBig(t *testing.T) {
	t.Run("matches EncodeModifier within a word", func(t *testing.T) {
		mods := []uint64{9, 8, 7, 6}
		small, err := EncodeModifier(mods)
		require.NoError(t, err)

		wide, err := EncodeModifierBig(mods)
		require.NoError(t, err)
		assert.Equal(t, new(big.Int).SetUint64(small), wide)
	})

	t.Run("grows past 64 bits", func(t *testing.T) {
		mods := make([]uint64, 12)
		mods[0] = 1
		wide, err := EncodeModifierBig(mods)
		require.NoError(t, err)
		assert.Equal(t, new(big.Int).Lsh(big.NewInt(1), 88), wide)
	})

	t.Run("empty is zero", func(t *testing.T) {
		wide, err := EncodeModifierBig(nil)
		require.NoError(t, err)
		assert.Equal(t, 0, wide.Sign())
	})

	t.Run("rejects 256", func(t *testing.T) {
		wide, err := EncodeModifierBig([]uint64{3, 256})
		assert.ErrorIs(t, err, ErrOutOfRange)
		assert.Nil(t, wide)
	})
}

func TestDecodeModifier(t *testing.T) {
	t.Run("inverts encode", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))
		for i := 0; i < 200; i++ {
			n := rng.Intn(MaxModifiers + 1)
			mods := make([]uint64, n)
			for j := range mods {
				mods[j] = uint64(rng.Intn(256))
			}
			word, err := EncodeModifier(mods)
			require.NoError(t, err)

			got, err := DecodeModifier(word, n)
			require.NoError(t, err)
			assert.Equal(t, mods, got)
		}
	})

	t.Run("258 decodes to 1,2", func(t *testing.T) {
		got, err := DecodeModifier(258, 2)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2}, got)
	})

	t.Run("word wider than n", func(t *testing.T) {
		_, err := DecodeModifier(258, 1)
		assert.ErrorIs(t, err, ErrOutOfRange)
	})

	t.Run("bad count", func(t *testing.T) {
		_, err := DecodeModifier(0, -1)
		assert.ErrorIs(t, err, ErrOutOfRange)
		_, err = DecodeModifier(0, MaxModifiers+1)
		assert.ErrorIs(t, err, ErrOutOfRange)
	})
}

func TestPosition(t *testing.T) {
	pos := EncodePosition(3, 7)
	assert.Equal(t, uint64(3)<<32+7, pos)

	x, y := DecodePosition(pos)
	assert.Equal(t, uint32(3), x)
	assert.Equal(t, uint32(7), y)
}

func TestEncoding_ConcurrentMatchesSequential(t *testing.T) {
	inputs := make([][]uint64, 64)
	for i := range inputs {
		inputs[i] = []uint64{uint64(i), uint64(255 - i), uint64(i * 3 % 256)}
	}

	want := make([]uint64, len(inputs))
	wantCmd := make([]uint64, len(inputs))
	for i, in := range inputs {
		w, err := EncodeModifier(in)
		require.NoError(t, err)
		want[i] = w
		wantCmd[i] = MustCreateCommand(Command(i), uint64(i)*1000)
	}

	var wg sync.WaitGroup
	got := make([]uint64, len(inputs))
	gotCmd := make([]uint64, len(inputs))
	errs := make([]error, len(inputs))
	for i := range inputs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], errs[i] = EncodeModifier(inputs[i])
			gotCmd[i], _ = CreateCommand(Command(i), uint64(i)*1000)
		}(i)
	}
	wg.Wait()

	for i := range inputs {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, want, got)
	assert.Equal(t, wantCmd, gotCmd)
}
