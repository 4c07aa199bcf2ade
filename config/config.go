// Package config loads towerctl configuration from defaults, an optional YAML
// file and TOWER_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cosmossdk.io/log"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/blockberries/tower-sdk/crypto"
	"github.com/blockberries/tower-sdk/rpc"
	"github.com/blockberries/tower-sdk/store"
	"github.com/blockberries/tower-sdk/types"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "TOWER_"

// Key store kinds.
const (
	KeyStoreDerived  = "derived"
	KeyStoreMemory   = "memory"
	KeyStoreFile     = "file"
	KeyStoreKeychain = "keychain"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the full client and server configuration.
type Config struct {
	Endpoint  string        `yaml:"endpoint" env:"ENDPOINT"`
	AppID     string        `yaml:"app_id" env:"APP_ID"`
	Account   string        `yaml:"account" env:"ACCOUNT"`
	Algorithm string        `yaml:"algorithm" env:"ALGORITHM"`
	Mode      string        `yaml:"mode" env:"MODE"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// Listen and UpgradeCode configure `towerctl serve`.
	Listen      string `yaml:"listen" env:"LISTEN"`
	UpgradeCode uint32 `yaml:"upgrade_code" env:"UPGRADE_CODE"`

	KeyStore KeyStore `yaml:"keystore" envPrefix:"KEYSTORE_"`
	Journal  Journal  `yaml:"journal" envPrefix:"JOURNAL_"`
	Log      Log      `yaml:"log" envPrefix:"LOG_"`

	// Password unlocks the file key store. Environment only.
	Password string `yaml:"-" env:"PASSWORD"`
}

// KeyStore selects where signing keys come from.
type KeyStore struct {
	Kind    string `yaml:"kind" env:"KIND"`
	Dir     string `yaml:"dir" env:"DIR"`
	Service string `yaml:"service" env:"SERVICE"`
	Key     string `yaml:"key" env:"KEY"`
	Cache   int    `yaml:"cache" env:"CACHE"`
}

// Journal configures the transaction journal. An empty Backend disables it.
type Journal struct {
	Backend string `yaml:"backend" env:"BACKEND"`
	Dir     string `yaml:"dir" env:"DIR"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level" env:"LEVEL"`
	JSON  bool   `yaml:"json" env:"JSON"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Endpoint:  "http://127.0.0.1:8080",
		AppID:     "tower-defense",
		Algorithm: crypto.AlgorithmEd25519.String(),
		Mode:      rpc.ModeSequential.String(),
		Timeout:   rpc.DefaultTimeout,
		Listen:    "127.0.0.1:8080",
		KeyStore: KeyStore{
			Kind:    KeyStoreDerived,
			Service: "tower-sdk",
			Key:     "default",
			Cache:   crypto.DefaultKeyCacheSize,
		},
		Log: Log{Level: "info"},
	}
}

// Load layers defaults, the YAML file at path (skipped when path is empty)
// and the environment, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values and cross-field requirements.
func (c Config) Validate() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	}
	if c.Account != "" {
		if err := types.NormalizeAccount(c.Account).Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := crypto.ParseAlgorithm(c.Algorithm); err != nil {
		errs = append(errs, err)
	}
	if _, err := rpc.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	switch code := types.Command(c.UpgradeCode); code {
	case types.CmdPlaceTower, types.CmdClaimTower, types.CmdMintTower:
		errs = append(errs, fmt.Errorf("upgrade_code %d would shadow %s", c.UpgradeCode, code))
	}

	switch c.KeyStore.Kind {
	case KeyStoreDerived, KeyStoreMemory:
	case KeyStoreFile:
		if c.KeyStore.Dir == "" {
			errs = append(errs, errors.New("keystore.dir is required for the file key store"))
		}
		if c.Password == "" {
			errs = append(errs, fmt.Errorf("%sPASSWORD is required for the file key store", EnvPrefix))
		}
	case KeyStoreKeychain:
		if c.KeyStore.Service == "" {
			errs = append(errs, errors.New("keystore.service is required for the keychain"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown keystore kind %q", c.KeyStore.Kind))
	}
	if c.KeyStore.Cache < 0 {
		errs = append(errs, errors.New("keystore.cache cannot be negative"))
	}

	switch c.Journal.Backend {
	case "", store.BackendMemory:
	case store.BackendGoLevelDB:
		if c.Journal.Dir == "" {
			errs = append(errs, errors.New("journal.dir is required for goleveldb"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown journal backend %q", c.Journal.Backend))
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Logger builds the configured logger writing to w.
func (c Config) Logger(w io.Writer) (log.Logger, error) {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	opts := []log.Option{log.LevelOption(level)}
	if c.Log.JSON {
		opts = append(opts, log.OutputJSONOption())
	}
	return log.NewLogger(w, opts...), nil
}

// DispatchMode returns the parsed Mode.
func (c Config) DispatchMode() rpc.Mode {
	m, _ := rpc.ParseMode(c.Mode)
	return m
}

// SigningAlgorithm returns the parsed Algorithm.
func (c Config) SigningAlgorithm() crypto.Algorithm {
	a, _ := crypto.ParseAlgorithm(c.Algorithm)
	return a
}
