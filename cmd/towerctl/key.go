package main

import (
	"context"
	"encoding/hex"

	"github.com/blockberries/tower-sdk/crypto"
)

type keyInfo struct {
	Name      string `json:"name"`
	Algorithm string `json:"algorithm,omitempty"`
	PubKey    string `json:"pub_key,omitempty"`
}

func runKey(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return usagef("key needs a subcommand: import, new, list or delete")
	}
	sub, args := args[0], args[1:]

	fs, c := e.flags("key " + sub)
	name := fs.String("name", "", "key name (defaults to keystore.key)")
	privHex := fs.String("hex", "", "import: raw private key in hex instead of deriving from -account")
	if err := e.parse(fs, args); err != nil {
		return err
	}

	a, err := e.load(c)
	if err != nil {
		return err
	}
	defer a.Close()
	if *name == "" {
		*name = a.cfg.KeyStore.Key
	}
	kr, err := a.keyring()
	if err != nil {
		return err
	}
	algo := a.cfg.SigningAlgorithm()

	var signer crypto.Signer
	switch sub {
	case "import":
		if *privHex != "" {
			raw, err := hex.DecodeString(*privHex)
			if err != nil {
				return usagef("-hex: %v", err)
			}
			defer crypto.Zeroize(raw)
			signer, err = kr.ImportKey(*name, raw, algo)
			if err != nil {
				return err
			}
		} else {
			account, err := a.account()
			if err != nil {
				return err
			}
			if signer, err = kr.ImportAccount(*name, account, algo); err != nil {
				return err
			}
		}
	case "new":
		if signer, err = kr.NewKey(*name, algo); err != nil {
			return err
		}
	case "list":
		names, err := kr.List()
		if err != nil {
			return err
		}
		infos := make([]keyInfo, len(names))
		for i, n := range names {
			infos[i] = keyInfo{Name: n}
			if s, err := kr.Signer(n); err == nil {
				infos[i].Algorithm = s.Algorithm().String()
				infos[i].PubKey = hex.EncodeToString(s.PublicKey().Bytes())
			} else {
				a.logger.Error("cannot load key", "name", n, "err", err)
			}
		}
		return a.print(infos)
	case "delete":
		if err := kr.Delete(*name); err != nil {
			return err
		}
		a.logger.Info("key deleted", "name", *name)
		return nil
	default:
		return usagef("unknown key subcommand %q", sub)
	}

	return a.print(keyInfo{
		Name:      *name,
		Algorithm: signer.Algorithm().String(),
		PubKey:    hex.EncodeToString(signer.PublicKey().Bytes()),
	})
}
