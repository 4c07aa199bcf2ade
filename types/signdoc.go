package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// SignDocVersion is the current version of the SignDoc format.
// Changing this version invalidates all existing signatures.
const SignDocVersion = "1"

// StringUint64 is a uint64 carried as a decimal JSON string. Command words use
// all 64 bits, which JSON numbers cannot hold exactly.
type StringUint64 uint64

// MarshalJSON implements json.Marshaler.
func (s StringUint64) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(s), 10) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler. Only canonical decimal strings
// are accepted: no sign, no leading zeros, no whitespace.
func (s *StringUint64) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("expected decimal string: %w", err)
	}
	if str == "" || (len(str) > 1 && str[0] == '0') || str[0] == '+' {
		return fmt.Errorf("non-canonical decimal %q", str)
	}
	v, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid decimal %q: %w", str, err)
	}
	*s = StringUint64(v)
	return nil
}

// SignDoc represents the canonical document that is signed for a transaction.
//
// INVARIANT: Two SignDocs with identical field values MUST produce identical JSON bytes.
type SignDoc struct {
	// Version MUST be SignDocVersion.
	Version string `json:"version"`

	// AppID binds the signature to one application server.
	AppID string `json:"app_id"`

	// Account is the signing account.
	Account string `json:"account"`

	// Nonce prevents replay.
	Nonce StringUint64 `json:"nonce"`

	// Params are the command word and its arguments, in order.
	Params []StringUint64 `json:"params"`
}

// ToJSON serializes the SignDoc to canonical JSON bytes.
//
// Keys are written in declaration order, integers as decimal strings and
// strings through cramberry's escaper, so the output never depends on
// encoding/json's HTML escaping settings.
func (sd *SignDoc) ToJSON() ([]byte, error) {
	if sd == nil {
		return nil, fmt.Errorf("%w: SignDoc is nil", ErrSignDocMismatch)
	}
	var buf bytes.Buffer
	buf.WriteString(`{"version":`)
	buf.WriteString(cramberry.EscapeJSONString(sd.Version))
	buf.WriteString(`,"app_id":`)
	buf.WriteString(cramberry.EscapeJSONString(sd.AppID))
	buf.WriteString(`,"account":`)
	buf.WriteString(cramberry.EscapeJSONString(sd.Account))
	buf.WriteString(`,"nonce":"`)
	buf.WriteString(strconv.FormatUint(uint64(sd.Nonce), 10))
	buf.WriteString(`","params":[`)
	for i, p := range sd.Params {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.FormatUint(uint64(p), 10))
		buf.WriteByte('"')
	}
	buf.WriteString(`]}`)
	return buf.Bytes(), nil
}

// GetSignBytes returns SHA-256(canonical JSON), the bytes that get signed.
func (sd *SignDoc) GetSignBytes() ([]byte, error) {
	jsonBytes, err := sd.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize SignDoc: %w", err)
	}
	hash := sha256.Sum256(jsonBytes)
	return hash[:], nil
}

// ValidateBasic performs stateless validation of the SignDoc.
func (sd *SignDoc) ValidateBasic() error {
	if sd.Version != SignDocVersion {
		return fmt.Errorf("%w: unsupported SignDoc version %q, expected %q",
			ErrSignDocMismatch, sd.Version, SignDocVersion)
	}
	if sd.Account == "" {
		return fmt.Errorf("%w: account cannot be empty", ErrSignDocMismatch)
	}
	if len(sd.Params) == 0 || len(sd.Params) > MaxParams {
		return fmt.Errorf("%w: %d params, want 1..%d", ErrSignDocMismatch, len(sd.Params), MaxParams)
	}
	return nil
}

// Equals checks if two SignDocs serialize to the same bytes.
func (sd *SignDoc) Equals(other *SignDoc) bool {
	if other == nil {
		return false
	}
	json1, err1 := sd.ToJSON()
	json2, err2 := other.ToJSON()
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(json1, json2)
}

// ParseSignDoc deserializes JSON bytes into a SignDoc.
func ParseSignDoc(data []byte) (*SignDoc, error) {
	var sd SignDoc
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("failed to parse SignDoc: %w", err)
	}
	return &sd, nil
}
