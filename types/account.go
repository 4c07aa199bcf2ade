package types

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxAccountLength is the longest accepted account identifier in bytes.
const MaxAccountLength = 64

// AccountID is the account string a player signs in with. Keys are derived
// from its normalized form, so two spellings that normalize equally are the
// same account.
type AccountID string

// NormalizeAccount trims surrounding space and applies Unicode NFC.
func NormalizeAccount(s string) AccountID {
	return AccountID(norm.NFC.String(strings.TrimSpace(s)))
}

// String converts AccountID to string
func (a AccountID) String() string {
	return string(a)
}

// IsValid checks if the account identifier is valid
func (a AccountID) IsValid() bool {
	return a.Validate() == nil
}

// Validate reports why an account identifier is unusable.
// The identifier must already be normalized.
func (a AccountID) Validate() error {
	if len(a) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidAccount)
	}
	if len(a) > MaxAccountLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidAccount, len(a), MaxAccountLength)
	}
	if !norm.NFC.IsNormalString(string(a)) || strings.TrimSpace(string(a)) != string(a) {
		return fmt.Errorf("%w: %q is not normalized", ErrInvalidAccount, string(a))
	}
	for _, r := range string(a) {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return fmt.Errorf("%w: contains control or invalid characters", ErrInvalidAccount)
		}
	}
	return nil
}
