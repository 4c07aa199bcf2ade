// Package towertesting provides test helpers for code built on the tower SDK:
// SignDoc determinism assertions and an in-process game server.
package towertesting

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/tower-sdk/types"
)

// AssertSignBytesDeterminism computes tx's sign bytes for appID iterations
// times and fails unless every result is byte-identical.
//
// SECURITY: a client and server that serialize the same transaction
// differently disagree on what was signed, and every signature fails.
//
// Usage:
//
//	tx := types.NewTransaction("1234", 0, []uint64{word})
//	towertesting.AssertSignBytesDeterminism(t, tx, "tower-defense", 100)
func AssertSignBytesDeterminism(t testing.TB, tx *types.Transaction, appID string, iterations int) {
	t.Helper()

	if iterations < 2 {
		t.Fatal("AssertSignBytesDeterminism requires at least 2 iterations")
	}

	first, err := tx.SignBytes(appID)
	require.NoError(t, err, "SignBytes failed on first call")

	for i := 1; i < iterations; i++ {
		got, err := tx.SignBytes(appID)
		require.NoError(t, err, "SignBytes failed on iteration %d", i)
		if !bytes.Equal(first, got) {
			t.Fatalf("SignBytes returned different bytes on iteration %d.\nFirst: %x\nGot:   %x", i, first, got)
		}
	}
}

// AssertSignDocValid checks that tx's SignDoc for appID is valid JSON, passes
// SignDoc.ValidateBasic, survives a parse and re-encode unchanged, and is
// deterministic.
func AssertSignDocValid(t testing.TB, tx *types.Transaction, appID string) {
	t.Helper()

	doc := tx.ToSignDoc(appID)
	require.NoError(t, doc.ValidateBasic())

	data, err := doc.ToJSON()
	require.NoError(t, err)
	require.True(t, json.Valid(data), "SignDoc is not valid JSON: %s", data)

	parsed, err := types.ParseSignDoc(data)
	require.NoError(t, err)
	require.True(t, doc.Equals(parsed), "SignDoc changed after parse: %s", data)
	require.NoError(t, tx.ValidateSignDocRoundtrip(appID))

	AssertSignBytesDeterminism(t, tx, appID, 100)
}

// AssertSignBytesDeterminismConcurrent is AssertSignBytesDeterminism across
// goroutines. A pass does not prove thread safety; run with -race.
func AssertSignBytesDeterminismConcurrent(t testing.TB, tx *types.Transaction, appID string, goroutines, iterationsPerGoroutine int) {
	t.Helper()

	if goroutines < 1 || iterationsPerGoroutine < 1 {
		t.Fatal("AssertSignBytesDeterminismConcurrent requires at least 1 goroutine and 1 iteration")
	}

	reference, err := tx.SignBytes(appID)
	require.NoError(t, err, "SignBytes failed on reference call")

	results := make(chan concurrentResult, goroutines*iterationsPerGoroutine)
	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range iterationsPerGoroutine {
				data, err := tx.SignBytes(appID)
				results <- concurrentResult{data: data, err: err, goroutine: g, iteration: i}
			}
		}()
	}
	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			t.Fatalf("SignBytes failed in goroutine %d, iteration %d: %v", r.goroutine, r.iteration, r.err)
		}
		if !bytes.Equal(reference, r.data) {
			t.Fatalf("SignBytes returned different bytes in goroutine %d, iteration %d.\nReference: %x\nGot:       %x",
				r.goroutine, r.iteration, reference, r.data)
		}
	}
}

type concurrentResult struct {
	data      []byte
	err       error
	goroutine int
	iteration int
}
