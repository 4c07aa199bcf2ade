package main

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/blockberries/tower-sdk/store"
)

type proofReport struct {
	Entry    store.Entry  `json:"entry"`
	Proof    *store.Proof `json:"proof"`
	Verified bool         `json:"verified"`
}

func runJournal(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return usagef("journal needs a subcommand: list or prove")
	}
	sub, args := args[0], args[1:]

	fs, c := e.flags("journal " + sub)
	hash := fs.String("hash", "", "prove: transaction hash in hex")
	if err := e.parse(fs, args); err != nil {
		return err
	}
	a, err := e.load(c)
	if err != nil {
		return err
	}
	defer a.Close()

	j, err := a.journal()
	if err != nil {
		return err
	}
	if j == nil {
		return usagef("no journal configured (journal.backend)")
	}

	switch sub {
	case "list":
		account, err := a.account()
		if err != nil {
			return err
		}
		entries, err := j.List(account)
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []store.Entry{}
		}
		return a.print(entries)

	case "prove":
		if _, err := hex.DecodeString(*hash); err != nil || *hash == "" {
			return usagef("-hash must be a hex transaction hash")
		}
		entry, err := j.Get(*hash)
		if err != nil {
			return err
		}
		proof, err := j.Prove(*hash)
		if errors.Is(err, store.ErrNotCommitted) {
			if _, _, err = j.Commit(); err == nil {
				proof, err = j.Prove(*hash)
			}
		}
		if err != nil {
			return err
		}
		return a.print(proofReport{
			Entry:    entry,
			Proof:    proof,
			Verified: store.VerifyEntry(proof.Root, proof, entry),
		})

	default:
		return usagef("unknown journal subcommand %q", sub)
	}
}
