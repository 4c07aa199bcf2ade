package types

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with: go test -fuzz=FuzzParseSignDoc -fuzztime=60s ./types/...
func FuzzParseSignDoc(f *testing.F) {
	f.Add([]byte(`{"version":"1","app_id":"towers","account":"1234","nonce":"7","params":["8589934592"]}`))
	f.Add([]byte(`{"version":"1","app_id":"","account":"a","nonce":"18446744073709551615","params":["1","2","3","4"]}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"version":"1","nonce":1}`))
	f.Add([]byte(`{"version":"1","nonce":"-1"}`))
	f.Add([]byte(`{"version":"1","nonce":"18446744073709551616"}`))
	f.Add([]byte(`{"version":"1","params":[null]}`))
	f.Add([]byte(`{"version":"1","account":"\u0000<script>"}`))
	f.Add([]byte(`{"version":"1","params":[` + strings.Repeat(`"1",`, 100) + `"1"]}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		sd, err := ParseSignDoc(data)
		if err != nil {
			return
		}

		// whatever parses must re-serialize to valid, stable JSON
		out, err := sd.ToJSON()
		if err != nil {
			t.Fatalf("ToJSON: %v", err)
		}
		if !json.Valid(out) {
			t.Fatalf("invalid JSON: %s", out)
		}
		again, err := ParseSignDoc(out)
		if err != nil {
			t.Fatalf("reparse: %v", err)
		}
		out2, err := again.ToJSON()
		if err != nil {
			t.Fatalf("ToJSON after reparse: %v", err)
		}
		if !bytes.Equal(out, out2) {
			t.Fatalf("not stable:\n%s\n%s", out, out2)
		}
	})
}

// Run with: go test -fuzz=FuzzSignDoc_Strings -fuzztime=60s ./types/...
func FuzzSignDoc_Strings(f *testing.F) {
	f.Add("towers", "1234")
	f.Add("", "caf\u00e9")
	f.Add("a\"b", "back\\slash")
	f.Add("  ", "</script>")
	f.Add("\x00\x1f", "\ufeff")
	f.Add("日本語", "🚀")

	f.Fuzz(func(t *testing.T, appID, account string) {
		sd := &SignDoc{Version: SignDocVersion, AppID: appID, Account: account, Nonce: 1, Params: []StringUint64{1}}
		out, err := sd.ToJSON()
		if err != nil {
			t.Fatalf("ToJSON: %v", err)
		}
		if !json.Valid(out) {
			t.Fatalf("invalid JSON for %q/%q: %s", appID, account, out)
		}
		parsed, err := ParseSignDoc(out)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		// invalid UTF-8 is replaced on decode, so only valid strings roundtrip
		if utf8.ValidString(appID) && utf8.ValidString(account) && !sd.Equals(parsed) {
			t.Fatalf("roundtrip changed %q/%q", appID, account)
		}
	})
}

func TestSignDoc_UnicodeAccounts(t *testing.T) {
	// NFC and NFD spellings of the same account sign identically once normalized
	nfd := NewTransaction(NormalizeAccount("cafe\u0301"), 0, []uint64{1})
	nfc := NewTransaction(NormalizeAccount("caf\u00e9"), 0, []uint64{1})

	a, err := nfd.SignBytes("towers")
	require.NoError(t, err)
	b, err := nfc.SignBytes("towers")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// unnormalized spellings do not
	raw := NewTransaction("cafe\u0301", 0, []uint64{1})
	c, err := raw.SignBytes("towers")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
	assert.ErrorIs(t, raw.ValidateShape(), ErrInvalidTransaction)
}

func TestSignDoc_EscapesMatchEncodingJSON(t *testing.T) {
	for _, s := range []string{"plain", `q"uote`, "new\nline", "tab\t", "ctl\x01", "日本語"} {
		sd := &SignDoc{Version: SignDocVersion, AppID: s, Account: "1", Params: []StringUint64{1}}
		out, err := sd.ToJSON()
		require.NoError(t, err)

		var generic map[string]any
		require.NoError(t, json.Unmarshal(out, &generic), s)
		assert.Equal(t, s, generic["app_id"])
	}
}

func BenchmarkSignDoc_GetSignBytes(b *testing.B) {
	tx := NewTransaction("benchmark-account", 123456789, []uint64{
		MustCreateCommand(CmdPlaceTower, 11),
		EncodePosition(11, 7),
		1<<63 + 5,
		42,
	})
	sd := tx.ToSignDoc("tower-defense-production")

	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		if _, err := sd.GetSignBytes(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseSignDoc(b *testing.B) {
	data, err := NewTransaction("benchmark-account", 1, []uint64{1, 2, 3, 4}).ToSignDoc("towers").ToJSON()
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		if _, err := ParseSignDoc(data); err != nil {
			b.Fatal(err)
		}
	}
}
