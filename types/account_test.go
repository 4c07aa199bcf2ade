package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAccount(t *testing.T) {
	// "é" as e + combining acute vs the precomposed rune
	decomposed := "cafe\u0301"
	precomposed := "caf\u00e9"

	assert.Equal(t, AccountID(precomposed), NormalizeAccount(decomposed))
	assert.Equal(t, NormalizeAccount(precomposed), NormalizeAccount("  "+decomposed+"\n"))
}

func TestAccountID_Validate(t *testing.T) {
	assert.NoError(t, AccountID("1234").Validate())
	assert.True(t, NormalizeAccount("cafe\u0301").IsValid())

	for name, a := range map[string]AccountID{
		"empty":          "",
		"too long":       AccountID(strings.Repeat("a", MaxAccountLength+1)),
		"not normalized": AccountID("cafe\u0301"),
		"padded":         " 1234",
		"control":        "12\x0034",
		"invalid utf8":   "12\xff",
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, a.Validate(), ErrInvalidAccount)
		})
	}
}
