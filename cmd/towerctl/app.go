package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"cosmossdk.io/log"

	"github.com/blockberries/tower-sdk/config"
	"github.com/blockberries/tower-sdk/crypto"
	"github.com/blockberries/tower-sdk/rpc"
	"github.com/blockberries/tower-sdk/store"
	"github.com/blockberries/tower-sdk/types"
)

// env is what a subcommand runs with before configuration is loaded.
type env struct {
	name   string
	stdout io.Writer
	stderr io.Writer
}

type commonFlags struct {
	config   string
	endpoint string
	appID    string
	account  string
	mode     string
}

// flags returns a flag set for the subcommand with the shared flags
// registered. Values given on the command line override the config file and
// the environment.
func (e *env) flags(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	c := &commonFlags{}
	fs.StringVar(&c.config, "config", os.Getenv("TOWER_CONFIG"), "YAML config file")
	fs.StringVar(&c.endpoint, "endpoint", "", "application server URL")
	fs.StringVar(&c.appID, "app-id", "", "app id bound into signatures")
	fs.StringVar(&c.account, "account", "", "account id")
	fs.StringVar(&c.mode, "mode", "", "dispatch mode: sequential, unordered or lanes")
	return fs, c
}

func (e *env) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{msg: err.Error()}
	}
	if fs.NArg() > 0 {
		return usagef("unexpected arguments %v", fs.Args())
	}
	return nil
}

// app is a loaded configuration plus the resources opened from it.
type app struct {
	cfg     config.Config
	logger  log.Logger
	out     io.Writer
	closers []io.Closer
}

func (e *env) load(c *commonFlags) (*app, error) {
	cfg, err := config.Load(c.config)
	if err != nil {
		return nil, err
	}
	if c.endpoint != "" {
		cfg.Endpoint = c.endpoint
	}
	if c.appID != "" {
		cfg.AppID = c.appID
	}
	if c.account != "" {
		cfg.Account = c.account
	}
	if c.mode != "" {
		cfg.Mode = c.mode
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := cfg.Logger(e.stderr)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger.With("cmd", e.name), out: e.stdout}, nil
}

// Close releases everything the app opened, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) account() (types.AccountID, error) {
	if a.cfg.Account == "" {
		return "", usagef("an account is required (-account or TOWER_ACCOUNT)")
	}
	return types.NormalizeAccount(a.cfg.Account), nil
}

// keyStore opens the configured EncryptedKeyStore. The derived kind has none.
func (a *app) keyStore() (crypto.EncryptedKeyStore, error) {
	ks := a.cfg.KeyStore
	switch ks.Kind {
	case config.KeyStoreMemory:
		return crypto.NewMemoryKeyStore(), nil
	case config.KeyStoreFile:
		fileStore, err := crypto.NewFileKeyStore(ks.Dir, a.cfg.Password)
		if err != nil {
			return nil, err
		}
		if ks.Cache > 0 {
			return crypto.NewCachingKeyStore(fileStore, ks.Cache), nil
		}
		return fileStore, nil
	case config.KeyStoreKeychain:
		return crypto.NewKeychainStore(ks.Service)
	default:
		return nil, usagef("keystore kind %q holds no keys; use memory, file or keychain", ks.Kind)
	}
}

func (a *app) keyring() (*crypto.Keyring, error) {
	s, err := a.keyStore()
	if err != nil {
		return nil, err
	}
	kr := crypto.NewKeyring(s)
	a.closers = append(a.closers, kr)
	return kr, nil
}

// signers resolves signing keys. A memory key store starts empty, so it is
// seeded with the configured account's derived key.
func (a *app) signers() (rpc.SignerResolver, error) {
	algo := a.cfg.SigningAlgorithm()
	if a.cfg.KeyStore.Kind == config.KeyStoreDerived {
		return rpc.DerivedSigners(algo), nil
	}

	kr, err := a.keyring()
	if err != nil {
		return nil, err
	}
	if a.cfg.KeyStore.Kind == config.KeyStoreMemory {
		account, err := a.account()
		if err != nil {
			return nil, err
		}
		if _, err := kr.ImportAccount(a.cfg.KeyStore.Key, account, algo); err != nil {
			return nil, err
		}
	}
	return rpc.KeyringSigner(kr, a.cfg.KeyStore.Key), nil
}

func (a *app) client() (*rpc.HTTPClient, error) {
	signers, err := a.signers()
	if err != nil {
		return nil, err
	}
	opts := []rpc.ClientOption{rpc.WithTimeout(a.cfg.Timeout), rpc.WithLogger(a.logger)}
	if a.cfg.UpgradeCode != 0 {
		opts = append(opts, rpc.WithCommands(types.Command(a.cfg.UpgradeCode)))
	}
	return rpc.NewHTTPClient(a.cfg.Endpoint, a.cfg.AppID, signers, opts...)
}

// journal opens the configured journal, or returns nil when it is disabled.
func (a *app) journal() (*store.Journal, error) {
	if a.cfg.Journal.Backend == "" {
		return nil, nil
	}
	j, err := store.OpenJournal(a.cfg.Journal.Backend, a.cfg.Journal.Dir, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	a.closers = append(a.closers, j)
	return j, nil
}

// sequencer returns a sequencer over d in mode, journaling when configured.
func (a *app) sequencer(d rpc.Dispatcher, mode rpc.Mode) (*rpc.Sequencer, *store.Journal, error) {
	j, err := a.journal()
	if err != nil {
		return nil, nil, err
	}
	opts := []rpc.SequencerOption{rpc.WithSequencerLogger(a.logger)}
	if j != nil {
		opts = append(opts, rpc.WithJournal(j))
	}
	return rpc.NewSequencer(d, mode, opts...), j, nil
}

// commit saves the journal version covering this run's entries.
func (a *app) commit(j *store.Journal) {
	if j == nil {
		return
	}
	root, version, err := j.Commit()
	if err != nil {
		a.logger.Error("journal commit failed", "err", err)
		return
	}
	a.logger.Info("journal committed", "version", version, "root", fmt.Sprintf("%X", root))
}

func (a *app) print(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}
